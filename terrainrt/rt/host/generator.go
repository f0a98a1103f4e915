package host

import (
	"context"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"
)

// Generator builds chunks on the CPU.
type Generator struct {
	Layout core.Layout
	Field  *noise.HeightField
	MinH   float32
	MaxH   float32
}

func NewGenerator(layout core.Layout, field *noise.HeightField, minH, maxH float32) *Generator {
	return &Generator{Layout: layout, Field: field, MinH: minH, MaxH: maxH}
}

func (g *Generator) Generate(ctx context.Context, coord core.ChunkCoord) (core.RawChunkData, error) {
	if err := ctx.Err(); err != nil {
		return core.RawChunkData{}, err
	}
	heights := g.Field.SampleChunk(coord, g.Layout)
	return BuildChunk(g.Layout, coord, heights, g.MinH, g.MaxH), nil
}

// Mesh is resident geometry that lives only in host memory.
type Mesh struct {
	coord    core.ChunkCoord
	raw      core.RawChunkData
	released bool
}

func (m *Mesh) Coord() core.ChunkCoord { return m.coord }
func (m *Mesh) VertexCount() uint32    { return m.raw.VertexCount() }
func (m *Mesh) IndexCount() uint32     { return m.raw.IndexCount() }
func (m *Mesh) Raw() core.RawChunkData { return m.raw }
func (m *Mesh) Release()               { m.released = true }
func (m *Mesh) Released() bool         { return m.released }

// Ingester wraps raw chunk bytes into host meshes.
type Ingester struct {
	Layout core.Layout
}

func (in Ingester) Ingest(key core.ChunkKey, coord core.ChunkCoord, raw core.RawChunkData) (core.Mesh, error) {
	if err := in.Layout.Validate(raw); err != nil {
		return nil, err
	}
	return &Mesh{coord: coord, raw: raw}, nil
}
