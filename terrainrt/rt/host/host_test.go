package host

import (
	"context"
	"testing"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatHeights(layout core.Layout, v float32) []float32 {
	h := make([]float32, layout.SampleCount())
	for i := range h {
		h[i] = v
	}
	return h
}

func TestBuildChunk_FlatGrid(t *testing.T) {
	layout := core.Layout{Size: 4}
	corner := core.ChunkCoord{X: 32, Z: -32}
	raw := BuildChunk(layout, corner, flatHeights(layout, 0), -5, 5)
	require.NoError(t, layout.Validate(raw))

	pos, n := raw.Vertex(0)
	assert.Equal(t, mgl32.Vec3{32, 0, -32}, pos)
	assert.InDelta(t, 1.0, n.Y(), 1e-6)

	pos, _ = raw.Vertex(layout.VertexCount() - 1)
	assert.Equal(t, mgl32.Vec3{36, 0, -28}, pos)

	// First cell: (v0, v2, v1), (v1, v2, v3).
	assert.Equal(t, []uint32{0, 5, 1, 1, 5, 6}, []uint32{
		raw.Index(0), raw.Index(1), raw.Index(2), raw.Index(3), raw.Index(4), raw.Index(5),
	})
	for i := uint32(0); i < raw.IndexCount(); i++ {
		assert.Less(t, raw.Index(i), layout.VertexCount())
	}
}

func TestBuildChunk_SlopeNormal(t *testing.T) {
	layout := core.Layout{Size: 2}
	edge := int(layout.SampleEdge())
	heights := make([]float32, layout.SampleCount())
	// Height rises along +X by 0.1 per sample -> elevation rises by 0.5 per unit with [-5, 5].
	for j := 0; j < edge; j++ {
		for i := 0; i < edge; i++ {
			heights[j*edge+i] = float32(i) * 0.1
		}
	}
	raw := BuildChunk(layout, core.ChunkCoord{}, heights, -5, 5)
	_, n := raw.Vertex(4)
	assert.Less(t, n.X(), float32(0), "normal leans away from the uphill direction")
	assert.InDelta(t, 0, n.Z(), 1e-6)
	assert.InDelta(t, 1, n.Len(), 1e-5)
}

func TestGenerator_IngestCounts(t *testing.T) {
	layout := core.Layout{Size: 32}
	gen := NewGenerator(layout, noise.NewDefault(), -5, 5)
	coord := core.ChunkCoord{X: -32, Z: 64}
	raw, err := gen.Generate(context.Background(), coord)
	require.NoError(t, err)

	mesh, err := Ingester{Layout: layout}.Ingest(coord.Key(), coord, raw)
	require.NoError(t, err)

	resident := core.NewCache[core.Mesh]()
	resident.Insert(coord.Key(), mesh)
	got, ok := resident.Get(coord.Key())
	require.True(t, ok)
	assert.Equal(t, uint32(33*33), got.VertexCount())
	assert.Equal(t, uint32(32*32*6), got.IndexCount())
	assert.Equal(t, coord, got.Coord())

	again, err := gen.Generate(context.Background(), coord)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestGenerator_Canceled(t *testing.T) {
	gen := NewGenerator(core.Layout{Size: 4}, noise.NewDefault(), -5, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.Generate(ctx, core.ChunkCoord{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIngester_RejectsWrongSize(t *testing.T) {
	_, err := Ingester{Layout: core.Layout{Size: 4}}.Ingest("0_0", core.ChunkCoord{}, core.Layout{Size: 2}.NewRaw())
	assert.Error(t, err)
}

func TestRayQuery_DownOntoFlatChunk(t *testing.T) {
	layout := core.Layout{Size: 4}
	raw := BuildChunk(layout, core.ChunkCoord{}, flatHeights(layout, 0), -5, 5)

	hit, err := RayQuery{}.Intersect(context.Background(), core.Down(mgl32.Vec3{1.3, 10, 2.7}), raw)
	require.NoError(t, err)
	assert.True(t, hit.Hit)
	assert.InDelta(t, 10, hit.Distance, 1e-4)

	hit, err = RayQuery{}.Intersect(context.Background(), core.Down(mgl32.Vec3{100, 10, 100}), raw)
	require.NoError(t, err)
	assert.False(t, hit.Hit)

	up := core.Ray{Origin: mgl32.Vec3{1, 10, 1}, Dir: mgl32.Vec3{0, 1, 0}}
	assert.Equal(t, core.Miss, Nearest(up, raw))
}
