package noise

import "math"

// HeightMap is a row-major grid of heights in [0,1].
type HeightMap struct {
	Width, Height int
	Values        []float32
}

// At returns the height at column x, row y.
func (h *HeightMap) At(x, y int) float32 {
	return h.Values[y*h.Width+x]
}

// Min returns the smallest value in the grid.
func (h *HeightMap) Min() float32 {
	m := float32(math.MaxFloat32)
	for _, v := range h.Values {
		m = min(m, v)
	}
	return m
}

// Max returns the largest value in the grid.
func (h *HeightMap) Max() float32 {
	m := float32(-math.MaxFloat32)
	for _, v := range h.Values {
		m = max(m, v)
	}
	return m
}

// Field sums octaves of a primitive into normalized height maps.
type Field struct {
	prim Primitive
}

// NewField returns a field over the given primitive. A nil primitive selects simplex noise.
func NewField(p Primitive) *Field {
	if p == nil {
		p, _ = NewPrimitive(PrimitiveSimplex, 0)
	}
	return &Field{prim: p}
}

var defaultField = NewField(nil)

// Generate builds a height map with the default simplex field.
func Generate(width, height int, p Params) *HeightMap {
	return defaultField.Generate(width, height, p)
}

// Generate builds a width x height map. Every value ends up in [0,1]: the grid minimum
// maps to 0 and the maximum to 1. A flat grid (including zero octaves) is 0.5 everywhere.
func (f *Field) Generate(width, height int, p Params) *HeightMap {
	width = max(width, 1)
	height = max(height, 1)
	p = p.Normalized()

	offsets := OctaveOffsets(p.Seed, p.Octaves)
	raw := make([]float64, width*height)

	minH := math.Inf(1)
	maxH := math.Inf(-1)

	halfWidth := float64(width / 2)
	halfHeight := float64(height / 2)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			amplitude := 1.0
			frequency := 1.0
			h := 0.0

			for o := 0; o < p.Octaves; o++ {
				sx := (float64(x)-halfWidth)/p.Scale*frequency + offsets[o][0] + p.Offset[0]
				sy := (float64(y)-halfHeight)/p.Scale*frequency + offsets[o][1] + p.Offset[1]

				h += (f.prim.Eval2(sx, sy)*2 - 1) * amplitude

				amplitude *= p.Persistence
				frequency *= p.Lacunarity
			}

			minH = math.Min(minH, h)
			maxH = math.Max(maxH, h)
			raw[y*width+x] = h
		}
	}

	out := &HeightMap{Width: width, Height: height, Values: make([]float32, len(raw))}
	span := maxH - minH
	if !(span > 0) {
		for i := range out.Values {
			out.Values[i] = 0.5
		}
		return out
	}
	for i, h := range raw {
		out.Values[i] = float32((h - minH) / span)
	}
	return out
}
