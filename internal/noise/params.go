package noise

import "math/rand"

const (
	// MinScale replaces any non-positive scale.
	MinScale = 0.0001

	// OffsetRange bounds octave offsets. Larger magnitudes start repeating values
	// in the underlying primitives.
	OffsetRange = 100000
)

// Params controls the fractal sum for one Generate call.
type Params struct {
	Scale       float64
	Seed        int64
	Octaves     int
	Persistence float64
	Lacunarity  float64
	// Offset is added to every sample coordinate after scaling (world offset).
	Offset [2]float64
}

// DefaultParams returns the stock fractal settings.
func DefaultParams() Params {
	return Params{
		Scale:       50,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2,
	}
}

// Normalized returns a copy with out-of-range values clamped to their minimums.
// Invalid parameters are never rejected.
func (p Params) Normalized() Params {
	if p.Scale <= 0 {
		p.Scale = MinScale
	}
	if p.Octaves < 0 {
		p.Octaves = 0
	}
	if p.Persistence < 0 {
		p.Persistence = 0
	}
	if p.Persistence > 1 {
		p.Persistence = 1
	}
	if p.Lacunarity < 1 {
		p.Lacunarity = 1
	}
	return p
}

// OctaveOffsets derives one sample offset per octave from seed.
// Offsets fall in [-OffsetRange, OffsetRange).
func OctaveOffsets(seed int64, octaves int) [][2]float64 {
	if octaves <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	offsets := make([][2]float64, octaves)
	for i := range offsets {
		x := rng.Intn(2*OffsetRange) - OffsetRange
		y := rng.Intn(2*OffsetRange) - OffsetRange
		offsets[i] = [2]float64{float64(x), float64(y)}
	}
	return offsets
}
