package gpu

import (
	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
)

// Mesh is a resident chunk with its own vertex and index buffers.
type Mesh struct {
	coord  core.ChunkCoord
	raw    core.RawChunkData
	vertex *wgpu.Buffer
	index  *wgpu.Buffer
}

func (m *Mesh) Coord() core.ChunkCoord     { return m.coord }
func (m *Mesh) VertexCount() uint32        { return m.raw.VertexCount() }
func (m *Mesh) IndexCount() uint32         { return m.raw.IndexCount() }
func (m *Mesh) Raw() core.RawChunkData     { return m.raw }
func (m *Mesh) VertexBuffer() *wgpu.Buffer { return m.vertex }
func (m *Mesh) IndexBuffer() *wgpu.Buffer  { return m.index }

func (m *Mesh) Release() {
	releaseBuffer(&m.vertex)
	releaseBuffer(&m.index)
}

// MeshIngester uploads raw chunk bytes into device buffers.
type MeshIngester struct {
	Layout core.Layout
	Device *wgpu.Device
}

func (in MeshIngester) Ingest(key core.ChunkKey, coord core.ChunkCoord, raw core.RawChunkData) (core.Mesh, error) {
	if err := in.Layout.Validate(raw); err != nil {
		return nil, err
	}
	vb, err := in.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Chunk Vertices " + string(key),
		Contents: raw.Vertices,
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, core.Exhausted("create vertex buffer "+string(key), err)
	}
	ib, err := in.Device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "Chunk Indices " + string(key),
		Contents: raw.Indices,
		Usage:    wgpu.BufferUsageIndex,
	})
	if err != nil {
		vb.Release()
		return nil, core.Exhausted("create index buffer "+string(key), err)
	}
	return &Mesh{coord: coord, raw: raw, vertex: vb, index: ib}, nil
}
