// Package host is the CPU backend: it produces the same chunk bytes and query answers as the
// compute programs, for headless runs and as the reference the GPU path is checked against.
package host

import (
	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"

	"github.com/go-gl/mathgl/mgl32"
)

// BuildChunk turns a bordered height grid into vertex and index bytes, exactly as
// terrain_gen.wgsl does.
func BuildChunk(layout core.Layout, corner core.ChunkCoord, heights []float32, minH, maxH float32) core.RawChunkData {
	n := layout.Size
	edge := layout.SampleEdge()
	b := uint32(core.NormalBorder)
	raw := layout.NewRaw()

	elev := func(i, j uint32) float32 {
		return noise.Elevation(float64(heights[j*edge+i]), minH, maxH)
	}

	for j := uint32(0); j <= n; j++ {
		for i := uint32(0); i <= n; i++ {
			si, sj := i+b, j+b
			y := elev(si, sj)
			hl, hr := elev(si-1, sj), elev(si+1, sj)
			hd, hu := elev(si, sj-1), elev(si, sj+1)
			normal := mgl32.Vec3{hl - hr, 2, hd - hu}.Normalize()
			pos := mgl32.Vec3{float32(corner.X) + float32(i), y, float32(corner.Z) + float32(j)}
			raw.PutVertex(j*(n+1)+i, pos, normal)
		}
	}

	for j := uint32(0); j < n; j++ {
		for i := uint32(0); i < n; i++ {
			base := (j*n + i) * 6
			v0 := j*(n+1) + i
			v1 := v0 + 1
			v2 := v0 + n + 1
			v3 := v2 + 1
			raw.PutIndex(base+0, v0)
			raw.PutIndex(base+1, v2)
			raw.PutIndex(base+2, v1)
			raw.PutIndex(base+3, v1)
			raw.PutIndex(base+4, v2)
			raw.PutIndex(base+5, v3)
		}
	}
	return raw
}
