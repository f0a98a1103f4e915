package host

import (
	"context"
	"math"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

const triangleEpsilon = 1e-7

// RayQuery answers ray queries against raw chunk bytes on the CPU.
type RayQuery struct{}

func (RayQuery) Intersect(ctx context.Context, ray core.Ray, raw core.RawChunkData) (core.RayHit, error) {
	if err := ctx.Err(); err != nil {
		return core.RayHit{}, err
	}
	return core.HitFromScalar(Nearest(ray, raw)), nil
}

// Nearest returns the smallest non-negative hit distance along ray, or core.Miss.
func Nearest(ray core.Ray, raw core.RawChunkData) float32 {
	best := float32(math.Inf(1))
	tris := raw.IndexCount() / 3
	for tri := uint32(0); tri < tris; tri++ {
		p0, _ := raw.Vertex(raw.Index(tri*3 + 0))
		p1, _ := raw.Vertex(raw.Index(tri*3 + 1))
		p2, _ := raw.Vertex(raw.Index(tri*3 + 2))
		if t, ok := IntersectTriangle(ray.Origin, ray.Dir, p0, p1, p2); ok && t < best {
			best = t
		}
	}
	if math.IsInf(float64(best), 1) {
		return core.Miss
	}
	return best
}

// IntersectTriangle is the Möller–Trumbore test, two-sided.
func IntersectTriangle(orig, dir, v0, v1, v2 mgl32.Vec3) (float32, bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	p := dir.Cross(e2)
	det := e1.Dot(p)
	if det > -triangleEpsilon && det < triangleEpsilon {
		return 0, false
	}
	inv := 1 / det
	s := orig.Sub(v0)
	u := s.Dot(p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := s.Cross(e1)
	v := dir.Dot(q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := e2.Dot(q) * inv
	if t < 0 {
		return 0, false
	}
	return t, true
}
