package world

import (
	"fmt"

	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/spawn"
	"structspawn.ai/internal/sim/transform"
)

// queueCommit is the engine's committer. Writes are deferred to the end of
// the step so the engine never observes its own commit mid-step.
func (w *World) queueCommit(req spawn.Request, c spawn.Candidate, chain transform.Chain) {
	w.commits = append(w.commits, pendingCommit{req: req, cand: c, chain: chain})
}

func (w *World) applyCommits(tick uint64) {
	for _, pc := range w.commits {
		w.commitSpawn(tick, pc)
	}
	w.commits = w.commits[:0]
}

func (w *World) commitSpawn(tick uint64, pc pendingCommit) {
	t, ok := w.catalogs.Template(pc.cand.TemplateID)
	if !ok {
		w.log.Error().Str("template", pc.cand.TemplateID).Msg("committed template vanished from catalog")
		return
	}
	actor := fmt.Sprintf("spawn:%d", pc.req.ID)
	written := 0
	for _, b := range t.Blocks {
		id, ok := w.catalogs.Blocks.Index[b.Block]
		if !ok {
			continue
		}
		p := pc.chain.Pos(geom.FromArray(b.Pos))
		prev := w.blocks.Set(p, id)
		if prev == id {
			continue
		}
		written++
		w.auditSetBlock(tick, actor, p.ToArray(), prev, id, t.ID)
	}
	fp := pc.chain.Region(t.Bounds())
	w.log.Debug().
		Uint64("tick", tick).
		Uint64("request", uint64(pc.req.ID)).
		Str("template", t.ID).
		Int("blocks", written).
		Stringer("min", fp.Min).
		Stringer("max", fp.Max).
		Int("volume", fp.Volume()).
		Msg("template placed")

	if len(t.Placements) == 0 {
		return
	}
	depth := w.depth[pc.req.ID] + 1
	if depth > w.cfg.MaxDepth {
		w.log.Debug().
			Uint64("request", uint64(pc.req.ID)).
			Int("depth", depth).
			Int("max_depth", w.cfg.MaxDepth).
			Msg("follow-up placements not scheduled")
		return
	}
	specs := make([]spawn.PlacementSpec, 0, len(t.Placements))
	for _, p := range t.Placements {
		specs = append(specs, spawn.PlacementSpec{
			Anchor:   geom.FromArray(p.Pos),
			Front:    p.Front,
			Category: p.Category,
		})
	}
	w.intake(tick, spawn.Batch{
		Chain:      pc.chain,
		Placements: specs,
		Source:     fmt.Sprintf("template:%s", t.ID),
	}, depth)
}
