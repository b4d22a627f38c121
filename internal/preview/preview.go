// Package preview renders height maps as grayscale images.
package preview

import (
	"image"
	"image/color"
	"io"
	"math"

	"golang.org/x/image/tiff"

	"landmass/internal/noise"
)

// Gray16 maps each sample linearly from black (0) to white (1). Row y of the map
// becomes image row y. Samples outside [0, 1] are clamped.
func Gray16(h *noise.HeightMap) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, h.Width, h.Height))
	for y := 0; y < h.Height; y++ {
		for x := 0; x < h.Width; x++ {
			v := math.Min(math.Max(float64(h.At(x, y)), 0), 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v * 0xffff))})
		}
	}
	return img
}

// WriteTIFF encodes img as a deflate-compressed TIFF.
func WriteTIFF(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}
