package world

import (
	"math"

	"landmass/internal/meshing"

	"github.com/go-gl/mathgl/mgl32"
)

// Options configures a World. The streamer's chunk edge always follows the
// generator resolution.
type Options struct {
	Store     *ChunkStore // nil creates a new store
	Generator GeneratorOptions
	Streamer  StreamerOptions
}

// World wires a generator, a chunk store and a streamer together.
type World struct {
	store    *ChunkStore
	gen      *Generator
	streamer *ChunkStreamer
}

func New(opts Options) *World {
	gen := NewGenerator(opts.Generator)
	store := opts.Store
	if store == nil {
		store = NewChunkStore()
	}

	sopts := opts.Streamer
	sopts.ChunkEdge = gen.ChunkEdge()
	return &World{
		store:    store,
		gen:      gen,
		streamer: NewChunkStreamer(store, gen, sopts),
	}
}

func (w *World) Store() *ChunkStore            { return w.store }
func (w *World) Generator() *Generator         { return w.gen }
func (w *World) Streamer() *ChunkStreamer      { return w.streamer }
func (w *World) Tick(obs mgl32.Vec2) TickStats { return w.streamer.Tick(obs) }
func (w *World) WaitIdle() int                 { return w.streamer.WaitIdle() }
func (w *World) Close()                        { w.streamer.Close() }

// ChunkCoordAt returns the coordinate of the chunk whose bounds contain the world
// position. Positions on a shared edge belong to the chunk on the positive side.
func (w *World) ChunkCoordAt(pos mgl32.Vec2) ChunkCoord {
	edge := float64(w.gen.ChunkEdge())
	return ChunkCoord{
		X: int(math.Floor(float64(pos.X())/edge + 0.5)),
		Y: int(math.Floor(float64(pos.Y())/edge + 0.5)),
	}
}

// SurfaceHeightAt returns the mesh height at the world position, or false if the
// chunk there is not built yet. The nearest height sample is used.
func (w *World) SurfaceHeightAt(pos mgl32.Vec2) (float32, bool) {
	c := w.store.Get(w.ChunkCoordAt(pos))
	if c == nil {
		return 0, false
	}
	m := c.Mesh()
	if m == nil {
		return 0, false
	}

	edge := float64(w.gen.ChunkEdge())
	half := edge / 2
	// Local sample indices; mesh z grows opposite to sample rows.
	x := int(math.Round(float64(pos.X()-c.Position.X()) + half))
	y := int(math.Round(half - float64(pos.Y()-c.Position.Y())))

	step := meshing.Stride(m.DetailLevel)
	col := min(max((x+step/2)/step, 0), m.Cols-1)
	row := min(max((y+step/2)/step, 0), m.Rows-1)
	return m.Vertices[row*m.Cols+col].Y(), true
}
