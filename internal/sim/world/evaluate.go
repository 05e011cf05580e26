package world

import (
	"math"

	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/transform"
)

var down = geom.Down.Vector()

// inBounds reports whether every cell of the placed footprint lies within
// |x|,|z| <= BoundaryR. Height is not limited.
func (w *World) inBounds(footprint geom.Region) bool {
	r := w.cfg.BoundaryR
	if r <= 0 {
		return true
	}
	limit := geom.Region{
		Min: geom.V(-r, math.MinInt, -r),
		Max: geom.V(r, math.MaxInt, r),
	}
	return limit.Contains(footprint.Min) && limit.Contains(footprint.Max)
}

// blocked checks a candidate's conditions against the block store. Unknown
// templates and cells outside the world boundary always block.
func (w *World) blocked(c spawn.Candidate, chain transform.Chain) bool {
	t, ok := w.catalogs.Template(c.TemplateID)
	if !ok {
		w.log.Warn().Str("template", c.TemplateID).Msg("candidate template not in catalog")
		return true
	}

	footprint := chain.Region(t.Bounds())
	if !w.inBounds(footprint) {
		return true
	}
	cells := make([]geom.Vec3i, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		cells = append(cells, chain.Pos(geom.FromArray(b.Pos)))
	}
	minY := footprint.Min.Y

	air := w.blocks.Air()
	if t.Conditions.RequireAir {
		for _, p := range cells {
			if w.blocks.Get(p) != air {
				return true
			}
		}
	}
	if t.Conditions.RequireGround {
		for _, p := range cells {
			if p.Y != minY {
				continue
			}
			if w.blocks.Get(p.Add(down)) == air {
				return true
			}
		}
	}
	return false
}
