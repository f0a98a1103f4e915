package gpu

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePasses stands in for the device: it logs every submit, unmap and staging change, and
// completes whichever staging map is pending when polled.
type fakePasses struct {
	layout    core.Layout
	events    []string
	created   int
	failVerts int

	verts *fakeStaging
	idx   *fakeStaging
}

func (f *fakePasses) ensureStaging() error {
	if f.verts != nil {
		return nil
	}
	f.created++
	f.events = append(f.events, fmt.Sprintf("staging %d", f.created))
	f.verts = &fakeStaging{data: fill(f.layout.VertexBytes(), 0xA0), ok: true, status: "success"}
	f.idx = &fakeStaging{data: fill(f.layout.IndexBytes(), 0x0B), ok: true, status: "success"}
	if f.failVerts > 0 {
		f.failVerts--
		f.verts.ok, f.verts.status = false, "device lost"
	}
	f.verts.onUnmap = func() { f.events = append(f.events, "unmap vertices") }
	f.idx.onUnmap = func() { f.events = append(f.events, "unmap indices") }
	return nil
}

func (f *fakePasses) staging() (mapper, mapper) { return f.verts, f.idx }

func (f *fakePasses) submitVertices() error {
	f.events = append(f.events, "submit vertices")
	return nil
}

func (f *fakePasses) submitIndices() error {
	f.events = append(f.events, "submit indices")
	return nil
}

func (f *fakePasses) dropStaging() {
	f.events = append(f.events, "drop staging")
	f.verts, f.idx = nil, nil
}

func (f *fakePasses) poll(wait bool) {
	for _, s := range []*fakeStaging{f.verts, f.idx} {
		if s != nil && s.pending != nil && !s.never {
			cb := s.pending
			s.pending = nil
			cb(s.ok, s.status)
		}
	}
}

func fill(n uint64, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func newFakePasses() (*fakePasses, readback) {
	f := &fakePasses{layout: core.Layout{Size: 1}}
	return f, readback{poller: f, timeout: time.Second}
}

func TestReadChunk_IndexCopyFollowsVertexUnmap(t *testing.T) {
	f, rb := newFakePasses()

	raw, err := readChunk(context.Background(), rb, f, f.layout, "0_0")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"staging 1",
		"submit vertices",
		"unmap vertices",
		"submit indices",
		"unmap indices",
	}, f.events)
	assert.Equal(t, fill(f.layout.VertexBytes(), 0xA0), raw.Vertices)
	assert.Equal(t, fill(f.layout.IndexBytes(), 0x0B), raw.Indices)
	assert.NoError(t, f.layout.Validate(raw))
}

func TestReadChunk_ReusesStagingAcrossChunks(t *testing.T) {
	f, rb := newFakePasses()
	for _, key := range []core.ChunkKey{"0_0", "1_0", "2_0"} {
		_, err := readChunk(context.Background(), rb, f, f.layout, key)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.created)
	assert.Equal(t, 3, f.verts.unmapped)
	assert.Equal(t, 3, f.idx.unmapped)
}

func TestReadChunk_FailedVertexReadRecreatesStaging(t *testing.T) {
	f, rb := newFakePasses()
	f.failVerts = 1

	_, err := readChunk(context.Background(), rb, f, f.layout, "0_0")
	require.ErrorIs(t, err, core.ErrReadbackFailure)
	assert.Equal(t, []string{"staging 1", "submit vertices", "drop staging"}, f.events)
	assert.Nil(t, f.verts)

	f.events = nil
	raw, err := readChunk(context.Background(), rb, f, f.layout, "0_0")
	require.NoError(t, err)
	assert.Equal(t, 2, f.created)
	assert.Equal(t, []string{
		"staging 2",
		"submit vertices",
		"unmap vertices",
		"submit indices",
		"unmap indices",
	}, f.events)
	assert.NoError(t, f.layout.Validate(raw))
}

func TestReadChunk_CancelledIndexReadDropsStaging(t *testing.T) {
	f, rb := newFakePasses()
	require.NoError(t, f.ensureStaging())
	f.idx.never = true
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := readChunk(ctx, rb, f, f.layout, "0_0")
	require.ErrorIs(t, err, core.ErrReadbackFailure)
	assert.Equal(t, "drop staging", f.events[len(f.events)-1])
	assert.Nil(t, f.idx)
}
