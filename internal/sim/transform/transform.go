// Package transform composes the block-space operations used to place a
// structure: quarter turns about the vertical axis and translations.
package transform

import (
	"encoding/json"
	"fmt"

	"structspawn.ai/internal/sim/geom"
)

// Op is a single geometric operation on block positions and facings.
type Op interface {
	Pos(p geom.Vec3i) geom.Vec3i
	Side(s geom.Side) geom.Side
}

// Rotation turns positions and horizontal sides clockwise about the Y axis.
type Rotation struct {
	Turns int
}

func (r Rotation) Pos(p geom.Vec3i) geom.Vec3i { return p.Rotate(r.Turns) }
func (r Rotation) Side(s geom.Side) geom.Side  { return s.Rotate(r.Turns) }

// Translation moves positions. Sides are unaffected.
type Translation struct {
	Offset geom.Vec3i
}

func (t Translation) Pos(p geom.Vec3i) geom.Vec3i { return p.Add(t.Offset) }
func (t Translation) Side(s geom.Side) geom.Side  { return s }

// Chain applies its operations in order, the first one first. The zero value
// is the identity. A Chain is itself an Op and can be nested in another chain.
type Chain struct {
	ops []Op
}

func NewChain(ops ...Op) Chain {
	c := Chain{}
	for _, op := range ops {
		c.Append(op)
	}
	return c
}

// Append adds op as the last step.
func (c *Chain) Append(op Op) {
	if op == nil {
		return
	}
	c.ops = append(c.ops, op)
}

// Then returns a new chain applying c and then next. Neither input is modified.
func (c Chain) Then(next Op) Chain {
	out := Chain{ops: make([]Op, 0, len(c.ops)+1)}
	out.ops = append(out.ops, c.ops...)
	if nc, ok := next.(Chain); ok {
		out.ops = append(out.ops, nc.ops...)
	} else if next != nil {
		out.ops = append(out.ops, next)
	}
	return out
}

func (c Chain) Len() int { return len(c.ops) }

func (c Chain) Ops() []Op { return append([]Op(nil), c.ops...) }

func (c Chain) Pos(p geom.Vec3i) geom.Vec3i {
	for _, op := range c.ops {
		p = op.Pos(p)
	}
	return p
}

func (c Chain) Side(s geom.Side) geom.Side {
	for _, op := range c.ops {
		s = op.Side(s)
	}
	return s
}

// Region transforms both corners of r and returns the box spanning them.
// Quarter turns keep boxes axis-aligned, so this is exact.
func (c Chain) Region(r geom.Region) geom.Region {
	return geom.RegionFromPoints(c.Pos(r.Min), c.Pos(r.Max))
}

func (c Chain) String() string {
	b, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("chain(%d ops)", len(c.ops))
	}
	return string(b)
}

type opJSON struct {
	Rotate *int    `json:"rotate,omitempty"`
	Move   *[3]int `json:"move,omitempty"`
}

// MarshalJSON flattens nested chains into a list like
// [{"rotate":1},{"move":[x,y,z]}].
func (c Chain) MarshalJSON() ([]byte, error) {
	out := []opJSON{}
	var walk func(ops []Op) error
	walk = func(ops []Op) error {
		for _, op := range ops {
			switch v := op.(type) {
			case Rotation:
				turns := geom.NormalizeTurns(v.Turns)
				out = append(out, opJSON{Rotate: &turns})
			case Translation:
				off := v.Offset.ToArray()
				out = append(out, opJSON{Move: &off})
			case Chain:
				if err := walk(v.ops); err != nil {
					return err
				}
			default:
				return fmt.Errorf("transform: cannot encode op %T", op)
			}
		}
		return nil
	}
	if err := walk(c.ops); err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func (c *Chain) UnmarshalJSON(b []byte) error {
	var in []opJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	ops := make([]Op, 0, len(in))
	for i, o := range in {
		switch {
		case o.Rotate != nil && o.Move == nil:
			ops = append(ops, Rotation{Turns: *o.Rotate})
		case o.Move != nil && o.Rotate == nil:
			ops = append(ops, Translation{Offset: geom.FromArray(*o.Move)})
		default:
			return fmt.Errorf("transform op %d: need exactly one of rotate or move", i)
		}
	}
	c.ops = ops
	return nil
}
