package geom

import "fmt"

// Vec3i is a block position on the integer lattice.
type Vec3i struct {
	X int
	Y int
	Z int
}

func V(x, y, z int) Vec3i { return Vec3i{X: x, Y: y, Z: z} }

func FromArray(a [3]int) Vec3i { return Vec3i{X: a[0], Y: a[1], Z: a[2]} }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }

func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

// Rotate turns the (x,z) components about the Y axis by turns quarter turns.
// Y is left untouched.
func (v Vec3i) Rotate(turns int) Vec3i {
	rx, rz := RotateXZ(v.X, v.Z, NormalizeTurns(turns))
	return Vec3i{X: rx, Y: v.Y, Z: rz}
}

func (v Vec3i) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }
