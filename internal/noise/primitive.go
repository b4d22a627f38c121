package noise

import (
	"errors"
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

// Primitive is a continuous 2D noise function returning values in [0,1].
// Implementations must be safe for concurrent use.
type Primitive interface {
	Eval2(x, y float64) float64
}

// Primitive names accepted by NewPrimitive.
const (
	PrimitiveSimplex = "simplex"
	PrimitivePerlin  = "perlin"
	PrimitiveValue   = "value"
)

// ErrUnknownPrimitive is returned by NewPrimitive for an unrecognized name.
var ErrUnknownPrimitive = errors.New("noise: unknown primitive")

// NewPrimitive builds the named primitive. The seed only shuffles the primitive's
// own lattice; terrain variation comes from Params.Seed.
func NewPrimitive(name string, seed int64) (Primitive, error) {
	switch name {
	case "", PrimitiveSimplex:
		return opensimplex.NewNormalized(seed), nil
	case PrimitivePerlin:
		return newPerlinPrimitive(seed), nil
	case PrimitiveValue:
		return valuePrimitive{seed: seed}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrimitive, name)
	}
}

// perlinPrimitive adapts go-perlin's [-1,1] output to [0,1].
type perlinPrimitive struct {
	p *perlin.Perlin
}

func newPerlinPrimitive(seed int64) perlinPrimitive {
	// A single iteration keeps the primitive band-limited; octaves are summed by Field.
	return perlinPrimitive{p: perlin.NewPerlin(2, 2, 1, seed)}
}

func (pp perlinPrimitive) Eval2(x, y float64) float64 {
	return clamp01((pp.p.Noise2D(x, y) + 1) / 2)
}

// valuePrimitive is lattice value noise: hashed corner values blended with a quintic fade.
type valuePrimitive struct {
	seed int64
}

func (vp valuePrimitive) Eval2(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)

	fx := fade(x - x0)
	fy := fade(y - y0)

	ix, iy := int64(x0), int64(y0)
	v00 := latticeValue(ix, iy, vp.seed)
	v10 := latticeValue(ix+1, iy, vp.seed)
	v01 := latticeValue(ix, iy+1, vp.seed)
	v11 := latticeValue(ix+1, iy+1, vp.seed)

	return lerp(lerp(v00, v10, fx), lerp(v01, v11, fx), fy)
}

// fade is 6t^5 - 15t^4 + 10t^3.
func fade(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// hash2 is a SplitMix64 style mix of a lattice point and seed.
func hash2(x, y, seed int64) uint64 {
	v := uint64(x)*0x9E3779B97F4A7C15 + uint64(y)*0x517CC1B727220A95 + uint64(seed)
	v += 0x9E3779B97F4A7C15
	v = (v ^ (v >> 30)) * 0xBF58476D1CE4E5B9
	v = (v ^ (v >> 27)) * 0x94D049BB133111EB
	return v ^ (v >> 31)
}

func latticeValue(x, y, seed int64) float64 {
	h := hash2(x, y, seed)
	return float64(h&0xFFFFFFFF) / float64(0xFFFFFFFF)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
