// Package noise provides the deterministic height field terrain is built from.
package noise

import (
	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/ojrac/opensimplex-go"
)

const (
	DefaultSeed  int64   = 883_279_212_983_182_319
	DefaultScale float64 = 0.044
)

// HeightField maps world (x, z) to a height in [-1, 1]. It is immutable and safe for
// concurrent use.
type HeightField struct {
	noise opensimplex.Noise
	seed  int64
	scale float64
}

func New(seed int64, scale float64) *HeightField {
	if scale == 0 {
		scale = DefaultScale
	}
	return &HeightField{
		noise: opensimplex.New(seed),
		seed:  seed,
		scale: scale,
	}
}

func NewDefault() *HeightField {
	return New(DefaultSeed, DefaultScale)
}

func (h *HeightField) Seed() int64 {
	return h.seed
}

func (h *HeightField) Scale() float64 {
	return h.scale
}

// Height samples the field at world (x, z).
func (h *HeightField) Height(x, z float64) float64 {
	v := h.noise.Eval2(x*h.scale, z*h.scale)
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Elevation maps a [-1, 1] height onto [min, max].
func Elevation(height float64, min, max float32) float32 {
	return min + float32((height+1)*0.5)*(max-min)
}

// Sample fills dst with the heights of a chunk grid, row-major in Z then X, including a ring
// of border samples on every side. dst must hold (size+1+2*border)^2 values.
func (h *HeightField) Sample(corner core.ChunkCoord, size uint32, border int, dst []float32) {
	edge := int(size) + 1 + 2*border
	if len(dst) < edge*edge {
		panic("noise: sample buffer too small")
	}
	for j := 0; j < edge; j++ {
		z := float64(int(corner.Z) + j - border)
		for i := 0; i < edge; i++ {
			x := float64(int(corner.X) + i - border)
			dst[j*edge+i] = float32(h.Height(x, z))
		}
	}
}

// SampleChunk allocates and fills the height grid used by the generators.
func (h *HeightField) SampleChunk(corner core.ChunkCoord, layout core.Layout) []float32 {
	dst := make([]float32, layout.SampleCount())
	h.Sample(corner, layout.Size, core.NormalBorder, dst)
	return dst
}
