package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ChunkKey is the canonical "x_z" identifier of a chunk corner, e.g. "32_-96".
type ChunkKey string

// ChunkCoord is a chunk corner in world units. Both axes are multiples of the chunk edge and
// stay within the edge-aligned int32 range; positions and offsets past it are clamped onto the
// outermost chunk rather than wrapped.
type ChunkCoord struct {
	X int32 `json:"x"`
	Z int32 `json:"z"`
}

func (c ChunkCoord) Key() ChunkKey {
	var b strings.Builder
	b.Grow(24)
	b.WriteString(strconv.FormatInt(int64(c.X), 10))
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(int64(c.Z), 10))
	return ChunkKey(b.String())
}

// Anchor is the [x, z] payload carried with a request.
func (c ChunkCoord) Anchor() [2]int32 {
	return [2]int32{c.X, c.Z}
}

// Offset returns the corner i chunks along X and j chunks along Z.
func (c ChunkCoord) Offset(i, j int, edge uint32) ChunkCoord {
	return ChunkCoord{
		X: clampAxis(int64(c.X)+int64(i)*int64(edge), edge),
		Z: clampAxis(int64(c.Z)+int64(j)*int64(edge), edge),
	}
}

func (c ChunkCoord) String() string {
	return string(c.Key())
}

// ParseKey turns a key back into its corner. Only the canonical spelling produced by
// ChunkCoord.Key is accepted.
func ParseKey(key ChunkKey) (ChunkCoord, error) {
	s := string(key)
	xs, zs, ok := strings.Cut(s, "_")
	if !ok || strings.Contains(zs, "_") {
		return ChunkCoord{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	x, err := strconv.ParseInt(xs, 10, 32)
	if err != nil {
		return ChunkCoord{}, fmt.Errorf("%w: %q: %v", ErrMalformedKey, s, err)
	}
	z, err := strconv.ParseInt(zs, 10, 32)
	if err != nil {
		return ChunkCoord{}, fmt.Errorf("%w: %q: %v", ErrMalformedKey, s, err)
	}
	c := ChunkCoord{X: int32(x), Z: int32(z)}
	if c.Key() != key {
		return ChunkCoord{}, fmt.Errorf("%w: %q is not canonical", ErrMalformedKey, s)
	}
	return c, nil
}

// SnapPosition returns the corner of the chunk containing (x, z).
func SnapPosition(x, z float64, edge uint32) ChunkCoord {
	return ChunkCoord{X: snapAxis(x, edge), Z: snapAxis(z, edge)}
}

// KeyOfPosition is SnapPosition(x, z, edge).Key().
func KeyOfPosition(x, z float64, edge uint32) ChunkKey {
	return SnapPosition(x, z, edge).Key()
}

func snapAxis(v float64, edge uint32) int32 {
	if math.IsNaN(v) {
		return 0
	}
	e := float64(edge)
	corner := math.Floor(v/e) * e
	// -0 * edge stays -0; fold it onto +0 before the integer conversion.
	if corner == 0 {
		corner = 0
	}
	lo, hi := axisBounds(edge)
	switch {
	case corner < float64(lo):
		return int32(lo)
	case corner > float64(hi):
		return int32(hi)
	}
	return int32(corner)
}

// axisBounds are the outermost edge-aligned corners representable as int32.
func axisBounds(edge uint32) (lo, hi int64) {
	e := int64(edge)
	hi = math.MaxInt32 / e * e
	lo = -(-math.MinInt32 / e * e)
	return lo, hi
}

func clampAxis(v int64, edge uint32) int32 {
	lo, hi := axisBounds(edge)
	return int32(min(max(v, lo), hi))
}
