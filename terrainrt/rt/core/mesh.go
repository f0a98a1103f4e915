package core

import "github.com/go-gl/mathgl/mgl32"

// Mesh is resident chunk geometry after ingestion. Backends may keep device buffers behind
// it; Raw stays available for queries against the chunk.
type Mesh interface {
	Coord() ChunkCoord
	VertexCount() uint32
	IndexCount() uint32
	Raw() RawChunkData
	Release()
}

// Ray is a query ray in world space. Dir need not be normalized; distances are reported
// in multiples of its length.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

// Down builds a ray pointing straight down from origin.
func Down(origin mgl32.Vec3) Ray {
	return Ray{Origin: origin, Dir: mgl32.Vec3{0, -1, 0}}
}

// At returns Origin + Dir*t.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// RayHit is the scalar answer of a ray query.
type RayHit struct {
	Hit      bool
	Distance float32
}

// Miss is the raw value a query program writes when no triangle is hit.
const Miss float32 = -1

// HitFromScalar interprets the scalar written by a query program.
func HitFromScalar(v float32) RayHit {
	if v < 0 {
		return RayHit{}
	}
	return RayHit{Hit: true, Distance: v}
}
