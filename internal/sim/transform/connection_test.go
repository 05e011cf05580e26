package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"structspawn.ai/internal/sim/geom"
)

func TestForConnectionPoint_QuarterTurnExample(t *testing.T) {
	target := geom.V(10, 0, 10)
	local := geom.V(2, 0, 0)

	c, err := ForConnectionPoint(target, geom.East, local, geom.North)
	require.NoError(t, err)

	ops := c.Ops()
	require.Len(t, ops, 2)
	assert.Equal(t, Rotation{Turns: 1}, ops[0])
	assert.Equal(t, Translation{Offset: geom.V(10, 0, 12)}, ops[1])

	assert.Equal(t, target, c.Pos(local))
	assert.Equal(t, geom.East, c.Side(geom.North))
}

func TestForConnectionPoint_AllOrientationsLandOnTarget(t *testing.T) {
	sides := []geom.Side{geom.North, geom.East, geom.South, geom.West}
	anchors := []geom.Vec3i{{}, geom.V(2, 0, 0), geom.V(-3, 1, 4), geom.V(0, -2, -5)}
	target := geom.V(-7, 12, 31)
	for _, lf := range sides {
		for _, tf := range sides {
			for _, la := range anchors {
				c, err := ForConnectionPoint(target, tf, la, lf)
				require.NoError(t, err)
				assert.Equal(t, target, c.Pos(la), "lf=%s tf=%s la=%v", lf, tf, la)
				assert.Equal(t, tf, c.Side(lf))
			}
		}
	}
}

func TestForConnectionPoint_RejectsVerticalFront(t *testing.T) {
	_, err := ForConnectionPoint(geom.V(0, 0, 0), geom.Up, geom.V(1, 0, 0), geom.North)
	assert.ErrorIs(t, err, geom.ErrNotHorizontal)
	_, err = ForConnectionPoint(geom.V(0, 0, 0), geom.North, geom.V(1, 0, 0), geom.Down)
	assert.ErrorIs(t, err, geom.ErrNotHorizontal)
}
