package transform

import (
	"fmt"

	"structspawn.ai/internal/sim/geom"
)

// ForConnectionPoint builds the chain that places a structure so that its
// local spawn anchor lands on targetAnchor and its local front faces
// targetFront. Both fronts must be horizontal.
func ForConnectionPoint(targetAnchor geom.Vec3i, targetFront geom.Side, localAnchor geom.Vec3i, localFront geom.Side) (Chain, error) {
	turns, err := geom.RotationFromTo(localFront, targetFront)
	if err != nil {
		return Chain{}, fmt.Errorf("connection point: %w", err)
	}
	rot := Rotation{Turns: turns}
	spawnAt := targetAnchor.Sub(rot.Pos(localAnchor))
	return NewChain(rot, Translation{Offset: spawnAt}), nil
}
