package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMesh struct {
	coord    ChunkCoord
	released bool
}

func (m *stubMesh) Coord() ChunkCoord   { return m.coord }
func (m *stubMesh) VertexCount() uint32 { return 0 }
func (m *stubMesh) IndexCount() uint32  { return 0 }
func (m *stubMesh) Raw() RawChunkData   { return RawChunkData{} }
func (m *stubMesh) Release()            { m.released = true }

func testWindow() Window {
	return Window{Radius: 10, Edge: 32}
}

func TestInDisk_Symmetry(t *testing.T) {
	for r := 0; r <= 12; r++ {
		for i := -r; i <= r; i++ {
			for z := -r; z <= r; z++ {
				in := InDisk(i, z, r)
				assert.Equal(t, in, InDisk(-i, z, r))
				assert.Equal(t, in, InDisk(i, -z, r))
				// 90 degree rotation maps (i, z) to (-z, i).
				assert.Equal(t, in, InDisk(-z, i, r))
			}
		}
	}
}

func TestInDisk_Slack(t *testing.T) {
	// (r, 1) lies outside the exact disk but inside the slack.
	assert.True(t, InDisk(10, 1, 10))
	assert.False(t, InDisk(10, 2, 10))
	assert.True(t, InDisk(1, 0, 0))
	assert.False(t, InDisk(1, 1, 0))
}

func TestReplan_OriginEnumeration(t *testing.T) {
	w := testWindow()
	s := NewState(w)
	s.Replan(0, 0)

	want := map[ChunkKey]ChunkCoord{}
	for i := -10; i <= 10; i++ {
		for z := -10; z <= 10; z++ {
			if i*i+z*z <= 10*10+1 {
				c := ChunkCoord{X: int32(i * 32), Z: int32(z * 32)}
				want[c.Key()] = c
			}
		}
	}
	assert.Equal(t, want, s.Requested)
	assert.Len(t, w.Offsets(), len(want))
	assert.Equal(t, 0, s.Resident.Len())
	assert.Contains(t, s.Requested, ChunkKey("320_32"))
	assert.NotContains(t, s.Requested, ChunkKey("320_64"))
}

func TestReplan_SameChunkSameWindow(t *testing.T) {
	a := NewState(testWindow())
	b := NewState(testWindow())
	a.Replan(1, 1)
	b.Replan(31.99, 0.5)
	assert.Equal(t, a.Requested, b.Requested)

	c, ok := a.Center()
	require.True(t, ok)
	assert.Equal(t, ChunkCoord{}, c)
}

func TestReplan_Idempotent(t *testing.T) {
	s := NewState(testWindow())
	s.Replan(100, -40)
	m := &stubMesh{coord: ChunkCoord{X: 96, Z: -64}}
	require.True(t, s.Ingest("96_-64", m))

	s.Replan(100, -40)
	firstReq := s.RequestedSnapshot()
	firstRes := s.Resident.Keys()

	dropped := s.Replan(100, -40)
	assert.Empty(t, dropped)
	assert.Equal(t, firstReq, s.Requested)
	assert.Equal(t, firstRes, s.Resident.Keys())
	require.NoError(t, s.Check())
}

func TestReplan_CarriesAndDrops(t *testing.T) {
	s := NewState(Window{Radius: 1, Edge: 32})
	s.Replan(0, 0)
	require.Len(t, s.Requested, 9)

	meshes := map[ChunkKey]*stubMesh{}
	for _, k := range s.RequestedKeys() {
		c, err := ParseKey(k)
		require.NoError(t, err)
		m := &stubMesh{coord: c}
		meshes[k] = m
		require.True(t, s.Ingest(k, m))
	}
	assert.Empty(t, s.Requested)
	assert.Equal(t, 9, s.Resident.Len())

	// Move two chunks along +X: the column at x=-32 and x=0 falls out.
	dropped := s.Replan(64, 0)
	require.NoError(t, s.Check())
	assert.Len(t, dropped, 6)
	for _, m := range dropped {
		assert.Less(t, m.Coord().X, int32(32))
	}
	assert.Equal(t, 3, s.Resident.Len())
	assert.Len(t, s.Requested, 6)
	for k := range s.Requested {
		assert.False(t, s.Resident.Has(k))
	}
	assert.False(t, meshes["0_0"].released, "replan hands dropped meshes back, it does not release them")
}

func TestReplan_DropsStaleRequests(t *testing.T) {
	s := NewState(Window{Radius: 1, Edge: 32})
	s.Replan(0, 0)
	assert.Contains(t, s.Requested, ChunkKey("-32_0"))

	s.Replan(32*10, 0)
	assert.NotContains(t, s.Requested, ChunkKey("-32_0"))
	assert.Contains(t, s.Requested, ChunkKey("320_0"))
}

func TestIngest_Staging00(t *testing.T) {
	s := NewState(testWindow())
	s.Replan(0, 0)
	require.Contains(t, s.Requested, ChunkKey("0_0"))
	require.False(t, s.Resident.Has("0_0"))

	assert.True(t, s.Ingest("0_0", &stubMesh{}))
	assert.True(t, s.Resident.Has("0_0"))
	assert.NotContains(t, s.Requested, ChunkKey("0_0"))

	// Second arrival of the same chunk is not wanted any more.
	assert.False(t, s.Ingest("0_0", &stubMesh{}))
	// Out of window.
	assert.False(t, s.Ingest("3200_0", &stubMesh{}))
	require.NoError(t, s.Check())
}

func TestWindow_Contains(t *testing.T) {
	w := testWindow()
	center := ChunkCoord{X: 64, Z: -32}
	for _, c := range w.Wanted(center) {
		assert.True(t, w.Contains(center, c), "%v", c)
	}
	assert.False(t, w.Contains(center, center.Offset(10, 2, 32)))
	assert.False(t, w.Contains(center, center.Offset(11, 0, 32)))
}

func TestWindow_ContainsFloorsPoints(t *testing.T) {
	w := Window{Radius: 10, Edge: 32}
	origin := ChunkCoord{}

	// -351 lies in chunk -352, eleven chunks out.
	assert.False(t, w.Contains(origin, ChunkCoord{X: -351}))
	assert.False(t, w.Contains(origin, ChunkCoord{X: -321}))
	assert.True(t, w.Contains(origin, ChunkCoord{X: -320}))
	assert.True(t, w.Contains(origin, ChunkCoord{X: 351}))
	assert.False(t, w.Contains(origin, ChunkCoord{X: 352}))
	assert.True(t, w.Contains(origin, ChunkCoord{X: -1, Z: -1}))
	for _, p := range []ChunkCoord{{X: -351}, {X: 5, Z: -33}, {X: 351, Z: 31}} {
		assert.Equal(t, w.Contains(origin, SnapPosition(float64(p.X), float64(p.Z), w.Edge)), w.Contains(origin, p), "%v", p)
	}
}

func TestReplan_RequestsExactlyWanted(t *testing.T) {
	w := testWindow()
	s := NewState(w)
	s.Replan(-40, 70)
	center, _ := s.Center()
	wanted := w.Wanted(center)
	require.Len(t, s.Requested, len(wanted))
	for _, c := range wanted {
		assert.Equal(t, c, s.Requested[c.Key()])
	}
}

func TestState_Release(t *testing.T) {
	s := NewState(Window{Radius: 0, Edge: 32})
	s.Replan(0, 0)
	m := &stubMesh{}
	require.True(t, s.Ingest("0_0", m))
	s.Release()
	assert.True(t, m.released)
	assert.Equal(t, 0, s.Resident.Len())
}
