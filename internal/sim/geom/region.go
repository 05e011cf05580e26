package geom

// Region is an inclusive axis-aligned block box.
type Region struct {
	Min Vec3i
	Max Vec3i
}

// RegionFromPoints returns the smallest region containing a and b.
func RegionFromPoints(a, b Vec3i) Region {
	return Region{
		Min: Vec3i{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: Vec3i{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

func (r Region) Contains(p Vec3i) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y &&
		p.Z >= r.Min.Z && p.Z <= r.Max.Z
}

func (r Region) Size() Vec3i {
	return Vec3i{X: r.Max.X - r.Min.X + 1, Y: r.Max.Y - r.Min.Y + 1, Z: r.Max.Z - r.Min.Z + 1}
}

func (r Region) Volume() int {
	s := r.Size()
	return s.X * s.Y * s.Z
}

// Union grows r to also cover o.
func (r Region) Union(o Region) Region {
	return RegionFromPoints(
		Vec3i{X: min(r.Min.X, o.Min.X), Y: min(r.Min.Y, o.Min.Y), Z: min(r.Min.Z, o.Min.Z)},
		Vec3i{X: max(r.Max.X, o.Max.X), Y: max(r.Max.Y, o.Max.Y), Z: max(r.Max.Z, o.Max.Z)},
	)
}

// Each calls fn for every position in r in x, z, y order. Iteration stops
// early when fn returns false.
func (r Region) Each(fn func(p Vec3i) bool) {
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		for z := r.Min.Z; z <= r.Max.Z; z++ {
			for x := r.Min.X; x <= r.Max.X; x++ {
				if !fn(Vec3i{X: x, Y: y, Z: z}) {
					return
				}
			}
		}
	}
}
