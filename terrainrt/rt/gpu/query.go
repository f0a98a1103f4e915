package gpu

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

const (
	QueryParamsSize = 32
	resultSize      = 4
)

// PackQuery encodes
//
//	struct Query {
//	  origin: vec3<f32>;  -- 0
//	  tri_count: u32;     -- 12
//	  dir: vec3<f32>;     -- 16
//	  _pad: u32;          -- 28
//	}
func PackQuery(ray core.Ray, triangles uint32) []byte {
	buf := make([]byte, QueryParamsSize)
	for k := 0; k < 3; k++ {
		binary.LittleEndian.PutUint32(buf[k*4:], math.Float32bits(ray.Origin[k]))
		binary.LittleEndian.PutUint32(buf[16+k*4:], math.Float32bits(ray.Dir[k]))
	}
	binary.LittleEndian.PutUint32(buf[12:], triangles)
	return buf
}

// RayQuery intersects a ray with one chunk on the device. Calls are serialized; only one
// query is in flight per instance.
type RayQuery struct {
	Layout core.Layout

	mu        sync.Mutex
	mgr       *BufferManager
	rb        readback
	pipeline  *wgpu.ComputePipeline
	paramsBuf *wgpu.Buffer
	vertexBuf *wgpu.Buffer
	indexBuf  *wgpu.Buffer
	resultBuf *wgpu.Buffer
	stageBuf  *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	out       []byte
}

func NewRayQuery(dev *Device, layout core.Layout, timeout time.Duration) (*RayQuery, error) {
	q := &RayQuery{
		Layout: layout,
		mgr:    NewBufferManager(dev.Device),
		rb:     newReadback(dev.Device, timeout),
		out:    make([]byte, resultSize),
	}
	var err error
	q.pipeline, err = q.mgr.computePipeline("Ray Intersect", shaders.RayIntersectWGSL)
	if err != nil {
		return nil, err
	}
	if err := q.ensureBuffers(); err != nil {
		q.Release()
		return nil, err
	}
	return q, nil
}

func (q *RayQuery) ensureBuffers() error {
	l := q.Layout
	created := false
	for _, b := range []struct {
		name  string
		buf   **wgpu.Buffer
		size  uint64
		usage wgpu.BufferUsage
	}{
		{"QueryParams", &q.paramsBuf, QueryParamsSize, wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst},
		{"QueryVertices", &q.vertexBuf, l.VertexBytes(), wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
		{"QueryIndices", &q.indexBuf, l.IndexBytes(), wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst},
		{"QueryResult", &q.resultBuf, resultSize, wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc},
		{"QueryStage", &q.stageBuf, resultSize, wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst},
	} {
		fresh, err := q.mgr.ensureBuffer(b.name, b.buf, b.size, b.usage)
		if err != nil {
			return err
		}
		created = created || fresh
	}
	if created || q.bindGroup == nil {
		if q.bindGroup != nil {
			q.bindGroup.Release()
		}
		bg, err := q.mgr.bindBuffers("Ray Intersect BG", q.pipeline, q.paramsBuf, q.vertexBuf, q.indexBuf, q.resultBuf)
		if err != nil {
			return err
		}
		q.bindGroup = bg
	}
	return nil
}

// Intersect returns the nearest non-negative hit distance of ray against raw. A failed
// readback is an error, never a miss.
func (q *RayQuery) Intersect(ctx context.Context, ray core.Ray, raw core.RawChunkData) (core.RayHit, error) {
	if err := q.Layout.Validate(raw); err != nil {
		return core.RayHit{}, fmt.Errorf("ray query: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.ensureBuffers(); err != nil {
		return core.RayHit{}, err
	}
	q.mgr.write(q.vertexBuf, raw.Vertices)
	q.mgr.write(q.indexBuf, raw.Indices)
	q.mgr.write(q.paramsBuf, PackQuery(ray, raw.IndexCount()/3))

	err := q.mgr.submit("ray query", func(enc *wgpu.CommandEncoder) error {
		if err := dispatch(enc, q.pipeline, q.bindGroup, 1); err != nil {
			return err
		}
		enc.CopyBufferToBuffer(q.resultBuf, 0, q.stageBuf, 0, resultSize)
		return nil
	})
	if err != nil {
		return core.RayHit{}, err
	}
	if err := q.rb.read(ctx, "ray query", stagingBuffer{q.stageBuf}, resultSize, q.out); err != nil {
		releaseBuffer(&q.stageBuf)
		return core.RayHit{}, err
	}
	return core.HitFromScalar(math.Float32frombits(binary.LittleEndian.Uint32(q.out))), nil
}

func (q *RayQuery) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.bindGroup != nil {
		q.bindGroup.Release()
		q.bindGroup = nil
	}
	for _, b := range []**wgpu.Buffer{&q.paramsBuf, &q.vertexBuf, &q.indexBuf, &q.resultBuf, &q.stageBuf} {
		releaseBuffer(b)
	}
	if q.pipeline != nil {
		q.pipeline.Release()
		q.pipeline = nil
	}
}
