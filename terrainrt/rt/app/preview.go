package app

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/noise"

	"golang.org/x/image/draw"
)

// RenderPreview draws the height field under the window around center, one pixel per world
// unit. Resident chunks are tinted green and requested ones red; state may be nil.
func RenderPreview(field *noise.HeightField, w core.Window, center core.ChunkCoord, state *core.State) *image.RGBA {
	edge := int(w.Edge)
	side := w.Diameter() * edge
	originX := int(center.X) - w.Radius*edge
	originZ := int(center.Z) - w.Radius*edge

	img := image.NewRGBA(image.Rect(0, 0, side, side))
	for pz := 0; pz < side; pz++ {
		for px := 0; px < side; px++ {
			x, z := originX+px, originZ+pz
			h := field.Height(float64(x), float64(z))
			g := uint8((h + 1) * 0.5 * 255)
			c := color.RGBA{R: g, G: g, B: g, A: 255}

			if state != nil {
				key := core.KeyOfPosition(float64(x), float64(z), w.Edge)
				switch {
				case state.Resident.Has(key):
					c.G = uint8(min(255, int(c.G)+48))
				case hasKey(state.Requested, key):
					c.R = uint8(min(255, int(c.R)+64))
				}
			}
			img.SetRGBA(px, pz, c)
		}
	}
	return img
}

func hasKey(m map[core.ChunkKey]core.ChunkCoord, key core.ChunkKey) bool {
	_, ok := m[key]
	return ok
}

// ScalePreview resamples src to a size x size image.
func ScalePreview(src image.Image, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// WritePreview encodes img as PNG at path.
func WritePreview(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode preview: %w", err)
	}
	return f.Close()
}
