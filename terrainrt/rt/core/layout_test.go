package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout_Sizes(t *testing.T) {
	l := Layout{Size: 32}
	assert.Equal(t, uint32(33*33), l.VertexCount())
	assert.Equal(t, uint32(32*32*6), l.IndexCount())
	assert.Equal(t, uint64(34848), l.VertexBytes())
	assert.Equal(t, uint64(24576), l.IndexBytes())
	assert.Equal(t, uint32(18), l.Workgroups())
	assert.Equal(t, uint32(35*35), l.SampleCount())
}

func TestLayout_Validate(t *testing.T) {
	l := Layout{Size: 4}
	require.NoError(t, l.Validate(l.NewRaw()))

	raw := l.NewRaw()
	raw.Indices = raw.Indices[:len(raw.Indices)-4]
	assert.Error(t, l.Validate(raw))
}

func TestRawChunkData_VertexEncoding(t *testing.T) {
	l := Layout{Size: 2}
	raw := l.NewRaw()
	raw.PutVertex(4, mgl32.Vec3{1, -2.5, 3}, mgl32.Vec3{0, 1, 0})
	raw.PutIndex(7, 42)

	pos, n := raw.Vertex(4)
	assert.Equal(t, mgl32.Vec3{1, -2.5, 3}, pos)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, n)
	assert.Equal(t, uint32(42), raw.Index(7))
	assert.Equal(t, l.VertexCount(), raw.VertexCount())
	assert.Equal(t, l.IndexCount(), raw.IndexCount())

	clone := raw.Clone()
	clone.PutIndex(7, 1)
	assert.Equal(t, uint32(42), raw.Index(7))
}

func TestHitFromScalar(t *testing.T) {
	assert.False(t, HitFromScalar(Miss).Hit)
	assert.Equal(t, RayHit{Hit: true, Distance: 2}, HitFromScalar(2))
	assert.Equal(t, mgl32.Vec3{0, 8, 0}, Down(mgl32.Vec3{0, 10, 0}).At(2))
}
