package geom

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotHorizontal is returned when a horizontal rotation is requested for a
// vertical or unknown side.
var ErrNotHorizontal = errors.New("side is not horizontal")

// Side is one of the six axis-aligned facings.
type Side uint8

const (
	SideInvalid Side = iota
	North
	East
	South
	West
	Up
	Down
)

var sideNames = [...]string{
	SideInvalid: "",
	North:       "NORTH",
	East:        "EAST",
	South:       "SOUTH",
	West:        "WEST",
	Up:          "UP",
	Down:        "DOWN",
}

// horizontal lists the four compass sides in clockwise order. A side's index
// here is its quarter-turn distance from North.
var horizontal = [4]Side{North, East, South, West}

func (s Side) Valid() bool { return s >= North && s <= Down }

func (s Side) Horizontal() bool { return s >= North && s <= West }

// Vector is the unit offset pointing out of the side.
func (s Side) Vector() Vec3i {
	switch s {
	case North:
		return Vec3i{Z: 1}
	case East:
		return Vec3i{X: 1}
	case South:
		return Vec3i{Z: -1}
	case West:
		return Vec3i{X: -1}
	case Up:
		return Vec3i{Y: 1}
	case Down:
		return Vec3i{Y: -1}
	}
	return Vec3i{}
}

func (s Side) Opposite() Side {
	switch s {
	case Up:
		return Down
	case Down:
		return Up
	}
	if !s.Horizontal() {
		return s
	}
	return s.Rotate(2)
}

// Rotate turns a horizontal side clockwise by turns quarter turns. Vertical
// and invalid sides are fixed points.
func (s Side) Rotate(turns int) Side {
	if !s.Horizontal() {
		return s
	}
	return horizontal[(int(s-North)+NormalizeTurns(turns))&3]
}

// RotationFromTo returns the quarter turns that rotate from onto to.
func RotationFromTo(from, to Side) (int, error) {
	if !from.Horizontal() || !to.Horizontal() {
		return 0, fmt.Errorf("rotation %s -> %s: %w", from, to, ErrNotHorizontal)
	}
	return NormalizeTurns(int(to) - int(from)), nil
}

func ParseSide(s string) (Side, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range sideNames {
		if n != "" && n == u {
			return Side(i), nil
		}
	}
	return SideInvalid, fmt.Errorf("unknown side %q", s)
}

func (s Side) String() string {
	if int(s) < len(sideNames) && s != SideInvalid {
		return sideNames[s]
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("marshal side: invalid value %d", uint8(s))
	}
	return []byte(sideNames[s]), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
