package app

import (
	"encoding/binary"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiler_ScopesAndCounts(t *testing.T) {
	p := NewProfiler()
	end := p.Scope("drain")
	time.Sleep(time.Millisecond)
	end()
	p.BeginScope("plan")
	p.EndScope("plan")
	p.SetCount("resident", 12)
	p.AddCount("stale", 2)
	p.AddCount("stale", 1)

	snap := p.Snapshot()
	assert.Greater(t, snap.Scopes["drain"], 0.0)
	assert.Equal(t, 12, snap.Counts["resident"])
	assert.Equal(t, 3, snap.Counts["stale"])

	out := p.String()
	assert.Less(t, strings.Index(out, "drain"), strings.Index(out, "plan"))
	assert.Contains(t, out, "resident")
}

func TestCamera_AxesAreOrthogonal(t *testing.T) {
	c := NewCameraState()
	for _, yaw := range []float32{0, 0.7, 2.1, -1.3} {
		c.Yaw = yaw
		c.Pitch = 0
		assert.InDelta(t, 0, c.Forward().Dot(c.Right()), 1e-5)
		assert.InDelta(t, 0, c.Right().Y(), 1e-6)
	}
	c.Yaw, c.Pitch = 0, 0
	assert.InDelta(t, -1, c.Forward().Z(), 1e-6)

	c.Pitch = 3
	c.ClampPitch()
	assert.Equal(t, float32(1.5), c.Pitch)
}

func TestChunkVisible(t *testing.T) {
	c := NewCameraState()
	c.Position = mgl32.Vec3{0, 10, 0}
	c.Pitch = 0
	vp := c.ProjectionMatrix(16.0 / 9.0).Mul4(c.ViewMatrix())
	planes := ExtractFrustum(vp)

	// The camera looks down -Z.
	assert.True(t, ChunkVisible(planes, core.ChunkCoord{X: -16, Z: -64}, 32, -5, 5))
	assert.False(t, ChunkVisible(planes, core.ChunkCoord{X: -16, Z: 64}, 32, -5, 5))
	assert.False(t, ChunkVisible(planes, core.ChunkCoord{X: -16, Z: -4000}, 32, -5, 5))
}

func TestPackCamera(t *testing.T) {
	vp := mgl32.Ident4()
	buf := PackCamera(vp, mgl32.Vec3{0, -1, 0}, -5, 5)
	require.Len(t, buf, CameraUniformSize)
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[0:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(buf[60:])))
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(buf[68:])))
	assert.Equal(t, float32(5), math.Float32frombits(binary.LittleEndian.Uint32(buf[84:])))
}

type stubMesh struct{ coord core.ChunkCoord }

func (m stubMesh) Coord() core.ChunkCoord { return m.coord }
func (stubMesh) VertexCount() uint32      { return 0 }
func (stubMesh) IndexCount() uint32       { return 0 }
func (stubMesh) Raw() core.RawChunkData   { return core.RawChunkData{} }
func (stubMesh) Release()                 {}

func TestRenderPreview_TintsStreamState(t *testing.T) {
	w := core.Window{Radius: 1, Edge: 4}
	field := noise.NewDefault()
	state := core.NewState(w)
	state.Replan(0, 0)
	state.Ingest("0_0", stubMesh{})

	img := RenderPreview(field, w, core.ChunkCoord{}, state)
	require.Equal(t, 12, img.Bounds().Dx())
	require.Equal(t, 12, img.Bounds().Dy())

	// Pixel (4, 4) is world (0, 0), inside the resident chunk.
	resident := img.RGBAAt(4, 4)
	assert.Greater(t, resident.G, resident.R)
	// Pixel (0, 4) is world (-4, 0), still requested.
	requested := img.RGBAAt(0, 4)
	assert.Greater(t, requested.R, requested.G)

	plain := RenderPreview(field, w, core.ChunkCoord{}, nil).RGBAAt(4, 4)
	assert.Equal(t, plain.R, plain.G)
}

func TestWritePreview_ScaledPNG(t *testing.T) {
	w := core.Window{Radius: 1, Edge: 4}
	img := ScalePreview(RenderPreview(noise.NewDefault(), w, core.ChunkCoord{}, nil), 48)
	path := filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, WritePreview(path, img))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 48, decoded.Bounds().Dx())
}
