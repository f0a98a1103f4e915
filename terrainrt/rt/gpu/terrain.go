package gpu

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"
	"github.com/gekko3d/terrastream/terrainrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

// TerrainParamsSize is the padded size of the generation uniform.
const TerrainParamsSize = 32

// PackTerrainParams encodes
//
//	struct Params {
//	  chunk_size: vec2<u32>;      -- 0
//	  chunk_corner: vec2<i32>;    -- 8
//	  min_max_height: vec2<f32>;  -- 16
//	} -> 32 bytes (padded)
func PackTerrainParams(layout core.Layout, corner core.ChunkCoord, minH, maxH float32) []byte {
	buf := make([]byte, TerrainParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], layout.Size)
	binary.LittleEndian.PutUint32(buf[4:], layout.Size)
	binary.LittleEndian.PutUint32(buf[8:], uint32(corner.X))
	binary.LittleEndian.PutUint32(buf[12:], uint32(corner.Z))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(minH))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(maxH))
	return buf
}

// PackHeights encodes height samples as little endian f32.
func PackHeights(heights []float32, dst []byte) []byte {
	if cap(dst) < len(heights)*4 {
		dst = make([]byte, len(heights)*4)
	}
	dst = dst[:len(heights)*4]
	for i, h := range heights {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(h))
	}
	return dst
}

// TerrainGenerator runs terrain_gen.wgsl for one chunk at a time. It is not safe for
// concurrent use; the producer goroutine owns it.
type TerrainGenerator struct {
	Layout core.Layout
	Field  *noise.HeightField
	MinH   float32
	MaxH   float32

	mgr      *BufferManager
	rb       readback
	pipeline *wgpu.ComputePipeline

	paramsBuf   *wgpu.Buffer
	heightsBuf  *wgpu.Buffer
	vertexBuf   *wgpu.Buffer
	indexBuf    *wgpu.Buffer
	stageVerts  *wgpu.Buffer
	stageIdx    *wgpu.Buffer
	bindGroup   *wgpu.BindGroup
	heights     []float32
	heightBytes []byte
}

func NewTerrainGenerator(dev *Device, layout core.Layout, field *noise.HeightField, minH, maxH float32, timeout time.Duration) (*TerrainGenerator, error) {
	g := &TerrainGenerator{
		Layout:  layout,
		Field:   field,
		MinH:    minH,
		MaxH:    maxH,
		mgr:     NewBufferManager(dev.Device),
		rb:      newReadback(dev.Device, timeout),
		heights: make([]float32, layout.SampleCount()),
	}
	var err error
	g.pipeline, err = g.mgr.computePipeline("Terrain Gen", shaders.TerrainGenWGSL)
	if err != nil {
		return nil, err
	}
	if err := g.ensureBuffers(); err != nil {
		g.Release()
		return nil, err
	}
	return g, nil
}

func (g *TerrainGenerator) ensureBuffers() error {
	l := g.Layout
	created := false
	for _, b := range []struct {
		name  string
		buf   **wgpu.Buffer
		size  uint64
		usage wgpu.BufferUsage
	}{
		{"TerrainParams", &g.paramsBuf, TerrainParamsSize, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		{"TerrainHeights", &g.heightsBuf, uint64(l.SampleCount()) * 4, wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
		{"TerrainVertices", &g.vertexBuf, l.VertexBytes(), wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopySrc},
		{"TerrainIndices", &g.indexBuf, l.IndexBytes(), wgpu.BufferUsageStorage | wgpu.BufferUsageIndex | wgpu.BufferUsageCopySrc},
	} {
		fresh, err := g.mgr.ensureBuffer(b.name, b.buf, b.size, b.usage)
		if err != nil {
			return err
		}
		created = created || fresh
	}
	if created || g.bindGroup == nil {
		if g.bindGroup != nil {
			g.bindGroup.Release()
		}
		bg, err := g.mgr.bindBuffers("Terrain Gen BG", g.pipeline, g.paramsBuf, g.heightsBuf, g.vertexBuf, g.indexBuf)
		if err != nil {
			return err
		}
		g.bindGroup = bg
	}
	return nil
}

// Generate samples the height field around coord, dispatches the generation program and reads
// vertices then indices back into freshly allocated host memory.
func (g *TerrainGenerator) Generate(ctx context.Context, coord core.ChunkCoord) (core.RawChunkData, error) {
	if err := ctx.Err(); err != nil {
		return core.RawChunkData{}, err
	}
	if err := g.ensureBuffers(); err != nil {
		return core.RawChunkData{}, err
	}

	g.Field.Sample(coord, g.Layout.Size, core.NormalBorder, g.heights)
	g.heightBytes = PackHeights(g.heights, g.heightBytes)
	g.mgr.write(g.heightsBuf, g.heightBytes)
	g.mgr.write(g.paramsBuf, PackTerrainParams(g.Layout, coord, g.MinH, g.MaxH))

	return readChunk(ctx, g.rb, g, g.Layout, coord.Key())
}

// chunkPasses is the device work a chunk readback sequences.
type chunkPasses interface {
	ensureStaging() error
	staging() (vertices, indices mapper)
	submitVertices() error
	submitIndices() error
	dropStaging()
}

// readChunk runs the generation passes and reads both halves of the chunk through one pair of
// staging buffers. The vertex mapping is released before the index copy is submitted. After a
// failed read the staging pair is dropped, so the next call starts on fresh buffers.
func readChunk(ctx context.Context, rb readback, p chunkPasses, layout core.Layout, key core.ChunkKey) (core.RawChunkData, error) {
	if err := p.ensureStaging(); err != nil {
		return core.RawChunkData{}, err
	}
	verts, idx := p.staging()
	raw := layout.NewRaw()

	if err := p.submitVertices(); err != nil {
		return core.RawChunkData{}, err
	}
	if err := rb.read(ctx, "vertices "+string(key), verts, layout.VertexBytes(), raw.Vertices); err != nil {
		p.dropStaging()
		return core.RawChunkData{}, err
	}

	if err := p.submitIndices(); err != nil {
		return core.RawChunkData{}, err
	}
	if err := rb.read(ctx, "indices "+string(key), idx, layout.IndexBytes(), raw.Indices); err != nil {
		p.dropStaging()
		return core.RawChunkData{}, err
	}
	return raw, nil
}

func (g *TerrainGenerator) ensureStaging() error {
	l := g.Layout
	if _, err := g.mgr.ensureBuffer("TerrainStageVertices", &g.stageVerts, l.VertexBytes(), wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	_, err := g.mgr.ensureBuffer("TerrainStageIndices", &g.stageIdx, l.IndexBytes(), wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst)
	return err
}

func (g *TerrainGenerator) staging() (mapper, mapper) {
	return stagingBuffer{g.stageVerts}, stagingBuffer{g.stageIdx}
}

func (g *TerrainGenerator) submitVertices() error {
	return g.mgr.submit("terrain gen", func(enc *wgpu.CommandEncoder) error {
		if err := dispatch(enc, g.pipeline, g.bindGroup, g.Layout.Workgroups()); err != nil {
			return err
		}
		enc.CopyBufferToBuffer(g.vertexBuf, 0, g.stageVerts, 0, g.Layout.VertexBytes())
		return nil
	})
}

func (g *TerrainGenerator) submitIndices() error {
	return g.mgr.submit("terrain indices", func(enc *wgpu.CommandEncoder) error {
		enc.CopyBufferToBuffer(g.indexBuf, 0, g.stageIdx, 0, g.Layout.IndexBytes())
		return nil
	})
}

// dropStaging discards both staging buffers; a map may still be pending on them.
func (g *TerrainGenerator) dropStaging() {
	releaseBuffer(&g.stageVerts)
	releaseBuffer(&g.stageIdx)
}

func (g *TerrainGenerator) Release() {
	if g.bindGroup != nil {
		g.bindGroup.Release()
		g.bindGroup = nil
	}
	for _, b := range []**wgpu.Buffer{&g.paramsBuf, &g.heightsBuf, &g.vertexBuf, &g.indexBuf, &g.stageVerts, &g.stageIdx} {
		releaseBuffer(b)
	}
	if g.pipeline != nil {
		g.pipeline.Release()
		g.pipeline = nil
	}
}
