package noise

import (
	"sync"
	"testing"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeightField_DeterministicAndBounded(t *testing.T) {
	a := NewDefault()
	b := New(DefaultSeed, DefaultScale)
	for x := -50.0; x <= 50; x += 7.3 {
		for z := -50.0; z <= 50; z += 5.1 {
			ha := a.Height(x, z)
			assert.Equal(t, ha, b.Height(x, z))
			assert.GreaterOrEqual(t, ha, -1.0)
			assert.LessOrEqual(t, ha, 1.0)
		}
	}
}

func TestHeightField_ConcurrentReads(t *testing.T) {
	h := NewDefault()
	want := h.Height(12.5, -3)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				assert.Equal(t, want, h.Height(12.5, -3))
			}
		}()
	}
	wg.Wait()
}

func TestElevation(t *testing.T) {
	assert.Equal(t, float32(-5), Elevation(-1, -5, 5))
	assert.Equal(t, float32(0), Elevation(0, -5, 5))
	assert.Equal(t, float32(5), Elevation(1, -5, 5))
}

func TestSampleChunk_BorderAlignment(t *testing.T) {
	h := NewDefault()
	layout := core.Layout{Size: 4}
	corner := core.ChunkCoord{X: 32, Z: -64}
	grid := h.SampleChunk(corner, layout)
	require.Len(t, grid, int(layout.SampleCount()))

	edge := int(layout.SampleEdge())
	// Sample (border, border) is the chunk corner itself.
	assert.Equal(t, float32(h.Height(32, -64)), grid[core.NormalBorder*edge+core.NormalBorder])
	assert.Equal(t, float32(h.Height(31, -65)), grid[0])
	assert.Equal(t, float32(h.Height(37, -59)), grid[len(grid)-1])
}
