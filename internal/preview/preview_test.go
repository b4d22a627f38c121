package preview

import (
	"bytes"
	"image"
	"testing"

	"golang.org/x/image/tiff"

	"landmass/internal/noise"
)

func TestGray16Mapping(t *testing.T) {
	h := &noise.HeightMap{Width: 3, Height: 2, Values: []float32{0, 0.5, 1, -1, 2, 0.25}}
	img := Gray16(h)
	if img.Bounds() != image.Rect(0, 0, 3, 2) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	want := []uint16{0, 32768, 65535, 0, 65535, 16384}
	for i, w := range want {
		x, y := i%3, i/3
		if got := img.Gray16At(x, y).Y; got != w {
			t.Errorf("(%d,%d) = %d, want %d", x, y, got, w)
		}
	}
}

func TestWriteTIFFRoundTrip(t *testing.T) {
	h := noise.Generate(32, 16, noise.DefaultParams())
	img := Gray16(h)

	var buf bytes.Buffer
	if err := WriteTIFF(&buf, img); err != nil {
		t.Fatalf("WriteTIFF: %v", err)
	}
	decoded, err := tiff.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds %v, want %v", decoded.Bounds(), img.Bounds())
	}
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			r, _, _, _ := decoded.At(x, y).RGBA()
			if uint16(r) != img.Gray16At(x, y).Y {
				t.Fatalf("pixel (%d,%d) = %d, want %d", x, y, r, img.Gray16At(x, y).Y)
			}
		}
	}
}
