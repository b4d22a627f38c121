package config

import (
	"log"

	"landmass/internal/meshing"
	"landmass/internal/noise"
	"landmass/internal/world"
)

// ChunkEdge returns the world-space edge length implied by chunk.resolution.
func (c Config) ChunkEdge() float32 {
	return float32(c.Chunk.Resolution - 1)
}

// NoiseParams returns the normalized fractal noise parameters.
func (c Config) NoiseParams() noise.Params {
	return noise.Params{
		Scale:       c.Noise.Scale,
		Seed:        c.Noise.Seed,
		Octaves:     c.Noise.Octaves,
		Persistence: c.Noise.Persistence,
		Lacunarity:  c.Noise.Lacunarity,
		Offset:      c.Noise.Offset,
	}.Normalized()
}

// HeightCurve returns the mesh height curve; linear when no keys are set.
func (c Config) HeightCurve() meshing.Curve {
	if len(c.Mesh.HeightCurve) == 0 {
		return meshing.Linear
	}
	keys := make([]meshing.Keyframe, len(c.Mesh.HeightCurve))
	for i, k := range c.Mesh.HeightCurve {
		keys[i] = meshing.Keyframe{Time: k.Time, Value: k.Value, InTangent: k.InTangent, OutTangent: k.OutTangent}
	}
	return meshing.NewKeyframeCurve(keys...)
}

// WorldOptions translates the config into world options.
func (c Config) WorldOptions(display world.Display, logger *log.Logger) (world.Options, error) {
	prim, err := noise.NewPrimitive(c.Noise.Primitive, c.Noise.PrimitiveSeed)
	if err != nil {
		return world.Options{}, err
	}
	return world.Options{
		Generator: world.GeneratorOptions{
			Field:       noise.NewField(prim),
			Params:      c.NoiseParams(),
			Resolution:  c.Chunk.Resolution,
			HeightScale: c.Mesh.HeightScale,
			Curve:       c.HeightCurve(),
			DetailLevel: c.Mesh.DetailLevel,
		},
		Streamer: world.StreamerOptions{
			ChunkEdge:       c.ChunkEdge(),
			MaxViewDistance: c.Chunk.MaxViewDistance,
			Capacity:        c.Chunk.Capacity,
			Workers:         c.Chunk.Workers,
			Display:         display,
			Logger:          logger,
		},
	}, nil
}
