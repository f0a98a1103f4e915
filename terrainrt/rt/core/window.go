package core

// Window is the disk of chunks kept around the viewer.
type Window struct {
	Radius int    `json:"radius"`
	Edge   uint32 `json:"edge"`
}

// InDisk reports whether offset (i, z) belongs to a window of radius r. The +1 slack admits a
// few offsets past the exact disk and must stay as is.
func InDisk(i, z, r int) bool {
	return i*i+z*z <= r*r+1
}

// Diameter is the side of the square of candidate offsets.
func (w Window) Diameter() int {
	return 2*w.Radius + 1
}

// Offsets lists every in-disk offset, X-major then Z, from -Radius to Radius.
func (w Window) Offsets() [][2]int {
	r := w.Radius
	out := make([][2]int, 0, w.Diameter()*w.Diameter())
	for i := -r; i <= r; i++ {
		for z := -r; z <= r; z++ {
			if InDisk(i, z, r) {
				out = append(out, [2]int{i, z})
			}
		}
	}
	return out
}

// Wanted returns the corners that should be resident around center, in Offsets order.
func (w Window) Wanted(center ChunkCoord) []ChunkCoord {
	offsets := w.Offsets()
	out := make([]ChunkCoord, len(offsets))
	for n, off := range offsets {
		out[n] = center.Offset(off[0], off[1], w.Edge)
	}
	return out
}

// Contains reports whether the chunk holding point p lies inside the window around center.
// p need not be a corner; it is floored onto the chunk grid first.
func (w Window) Contains(center, p ChunkCoord) bool {
	e := int64(w.Edge)
	i := floorDiv(int64(p.X)-int64(center.X), e)
	z := floorDiv(int64(p.Z)-int64(center.Z), e)
	r := int64(w.Radius)
	if i < -r || i > r || z < -r || z > r {
		return false
	}
	return InDisk(int(i), int(z), w.Radius)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
