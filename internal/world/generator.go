package world

import (
	"landmass/internal/meshing"
	"landmass/internal/noise"
	"landmass/internal/profiling"
)

// BuildResult is the output of one chunk build.
type BuildResult struct {
	Heights *noise.HeightMap
	Mesh    *meshing.Mesh
}

// ChunkBuilder produces the height map and mesh for a chunk. Implementations must
// be safe for concurrent use when the streamer runs with workers.
type ChunkBuilder interface {
	BuildChunk(coord ChunkCoord) BuildResult
}

// BuilderFunc adapts a function to ChunkBuilder.
type BuilderFunc func(coord ChunkCoord) BuildResult

func (f BuilderFunc) BuildChunk(coord ChunkCoord) BuildResult { return f(coord) }

// Generator builds terrain chunks from a noise field.
type Generator struct {
	field       *noise.Field
	params      noise.Params
	resolution  int
	edge        float32
	heightScale float32
	curve       meshing.Curve
	detailLevel int
}

// GeneratorOptions configures a Generator. Zero values select the defaults.
type GeneratorOptions struct {
	Field       *noise.Field // nil uses simplex noise with seed 0
	Params      noise.Params
	Resolution  int // samples per chunk edge, default ChunkResolution
	HeightScale float32
	Curve       meshing.Curve // nil is linear
	DetailLevel int
}

// NewGenerator creates a generator. Noise parameters are normalized once here.
func NewGenerator(opts GeneratorOptions) *Generator {
	field := opts.Field
	if field == nil {
		field = noise.NewField(nil)
	}
	res := opts.Resolution
	if res < 2 {
		res = ChunkResolution
	}
	curve := opts.Curve
	if curve == nil {
		curve = meshing.Linear
	}
	return &Generator{
		field:       field,
		params:      opts.Params.Normalized(),
		resolution:  res,
		edge:        float32(res - 1),
		heightScale: opts.HeightScale,
		curve:       curve,
		detailLevel: meshing.ClampDetailLevel(opts.DetailLevel),
	}
}

// ChunkEdge is the world-space edge length of the chunks this generator builds.
func (g *Generator) ChunkEdge() float32 {
	return g.edge
}

// Resolution returns the samples per chunk edge.
func (g *Generator) Resolution() int {
	return g.resolution
}

// ChunkParams returns the noise parameters for coord. The base offset is shifted
// by the chunk position so that, for a single octave, neighbouring chunks sample
// a continuous field. Mesh z decreases with sample row, hence the negated Y shift.
func (g *Generator) ChunkParams(coord ChunkCoord) noise.Params {
	p := g.params
	p.Offset[0] += float64(coord.X) * float64(g.edge) / p.Scale
	p.Offset[1] -= float64(coord.Y) * float64(g.edge) / p.Scale
	return p
}

// HeightMap samples the chunk's height map.
func (g *Generator) HeightMap(coord ChunkCoord) *noise.HeightMap {
	return g.field.Generate(g.resolution, g.resolution, g.ChunkParams(coord))
}

// BuildChunk samples and meshes one chunk.
func (g *Generator) BuildChunk(coord ChunkCoord) BuildResult {
	defer profiling.Track("world.BuildChunk")()

	h := g.HeightMap(coord)
	return BuildResult{
		Heights: h,
		Mesh:    meshing.BuildMesh(h, g.heightScale, g.curve, g.detailLevel),
	}
}
