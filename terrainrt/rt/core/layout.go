package core

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// VertexStride is the byte size of one vertex as the compute program writes it:
	// position vec3 + pad, normal vec3 + pad.
	VertexStride = 32
	IndexSize    = 4
	// WorkgroupSize is the local size of the generation program.
	WorkgroupSize = 64
	// NormalBorder is the ring of extra height samples around a chunk used for normals.
	NormalBorder = 1
)

// Layout fixes the byte sizes of a chunk of resolution Size x Size cells.
type Layout struct {
	Size uint32
}

func (l Layout) VertexCount() uint32 {
	return (l.Size + 1) * (l.Size + 1)
}

func (l Layout) IndexCount() uint32 {
	return l.Size * l.Size * 6
}

func (l Layout) VertexBytes() uint64 {
	return uint64(l.VertexCount()) * VertexStride
}

func (l Layout) IndexBytes() uint64 {
	return uint64(l.IndexCount()) * IndexSize
}

// Workgroups is the dispatch width needed to cover every vertex.
func (l Layout) Workgroups() uint32 {
	return (l.VertexCount() + WorkgroupSize - 1) / WorkgroupSize
}

// SampleEdge is the side of the height grid including the normal border.
func (l Layout) SampleEdge() uint32 {
	return l.Size + 1 + 2*NormalBorder
}

func (l Layout) SampleCount() uint32 {
	e := l.SampleEdge()
	return e * e
}

// RawChunkData holds the bytes read back from the device for one chunk.
type RawChunkData struct {
	Vertices []byte
	Indices  []byte
}

// NewRaw allocates zeroed buffers of the exact layout size.
func (l Layout) NewRaw() RawChunkData {
	return RawChunkData{
		Vertices: make([]byte, l.VertexBytes()),
		Indices:  make([]byte, l.IndexBytes()),
	}
}

func (l Layout) Validate(raw RawChunkData) error {
	if uint64(len(raw.Vertices)) != l.VertexBytes() {
		return fmt.Errorf("vertex data is %d bytes, want %d", len(raw.Vertices), l.VertexBytes())
	}
	if uint64(len(raw.Indices)) != l.IndexBytes() {
		return fmt.Errorf("index data is %d bytes, want %d", len(raw.Indices), l.IndexBytes())
	}
	return nil
}

func (r RawChunkData) VertexCount() uint32 {
	return uint32(len(r.Vertices) / VertexStride)
}

func (r RawChunkData) IndexCount() uint32 {
	return uint32(len(r.Indices) / IndexSize)
}

// Vertex decodes vertex i.
func (r RawChunkData) Vertex(i uint32) (pos, normal mgl32.Vec3) {
	off := int(i) * VertexStride
	for k := 0; k < 3; k++ {
		pos[k] = math.Float32frombits(binary.LittleEndian.Uint32(r.Vertices[off+k*4:]))
		normal[k] = math.Float32frombits(binary.LittleEndian.Uint32(r.Vertices[off+16+k*4:]))
	}
	return pos, normal
}

// PutVertex encodes vertex i; the padding lanes are written as zero.
func (r RawChunkData) PutVertex(i uint32, pos, normal mgl32.Vec3) {
	off := int(i) * VertexStride
	for k := 0; k < 3; k++ {
		binary.LittleEndian.PutUint32(r.Vertices[off+k*4:], math.Float32bits(pos[k]))
		binary.LittleEndian.PutUint32(r.Vertices[off+16+k*4:], math.Float32bits(normal[k]))
	}
	binary.LittleEndian.PutUint32(r.Vertices[off+12:], 0)
	binary.LittleEndian.PutUint32(r.Vertices[off+28:], 0)
}

func (r RawChunkData) Index(i uint32) uint32 {
	return binary.LittleEndian.Uint32(r.Indices[int(i)*IndexSize:])
}

func (r RawChunkData) PutIndex(i uint32, v uint32) {
	binary.LittleEndian.PutUint32(r.Indices[int(i)*IndexSize:], v)
}

// Clone returns a deep copy so the caller may keep it past buffer reuse.
func (r RawChunkData) Clone() RawChunkData {
	return RawChunkData{
		Vertices: append([]byte(nil), r.Vertices...),
		Indices:  append([]byte(nil), r.Indices...),
	}
}
