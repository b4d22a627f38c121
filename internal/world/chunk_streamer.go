package world

import (
	"log"
	"math"
	"sort"
	"time"

	"landmass/internal/profiling"

	"github.com/go-gl/mathgl/mgl32"
)

// StreamerOptions configures a ChunkStreamer.
type StreamerOptions struct {
	ChunkEdge       float32 // world size of a chunk, default ChunkEdge
	MaxViewDistance float32 // default DefaultMaxViewDistance
	Capacity        int     // max resident chunks, 0 disables eviction
	Workers         int     // background builders, 0 builds inside Tick
	Display         Display
	Logger          *log.Logger
}

// TickStats summarizes one Tick.
type TickStats struct {
	Tick      uint64        `json:"tick"`
	ObserverX float32       `json:"observer_x"`
	ObserverY float32       `json:"observer_y"`
	Center    ChunkCoord    `json:"center"`
	Created   int           `json:"created"`
	Installed int           `json:"installed"`
	Shown     int           `json:"shown"`
	Hidden    int           `json:"hidden"`
	Visible   int           `json:"visible"`
	Evicted   int           `json:"evicted"`
	Pending   int           `json:"pending"`
	Resident  int           `json:"resident"`
	Duration  time.Duration `json:"duration_ns"`
}

// ChunkStreamer keeps the chunks around an observer resident and decides which
// are visible. Tick, WaitIdle and Close must be called from one goroutine.
type ChunkStreamer struct {
	store   *ChunkStore
	builder ChunkBuilder
	display Display
	logger  *log.Logger

	edge        float32
	maxView     float64
	capacity    int
	viewRadius  int
	pool        *buildPool // nil when building synchronously
	visibleLast []*Chunk
	window      []*Chunk // scratch for evict
	tick        uint64
}

// NewChunkStreamer creates a streamer over store.
func NewChunkStreamer(store *ChunkStore, builder ChunkBuilder, opts StreamerOptions) *ChunkStreamer {
	if opts.ChunkEdge <= 0 {
		opts.ChunkEdge = ChunkEdge
	}
	if opts.MaxViewDistance <= 0 {
		opts.MaxViewDistance = DefaultMaxViewDistance
	}
	if opts.Display == nil {
		opts.Display = NopDisplay{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	cs := &ChunkStreamer{
		store:      store,
		builder:    builder,
		display:    opts.Display,
		logger:     opts.Logger,
		edge:       opts.ChunkEdge,
		maxView:    float64(opts.MaxViewDistance),
		capacity:   max(opts.Capacity, 0),
		viewRadius: int(math.RoundToEven(float64(opts.MaxViewDistance / opts.ChunkEdge))),
	}
	if opts.Workers > 0 {
		cs.pool = newBuildPool(opts.Workers, builder)
	}
	return cs
}

// Store returns the chunk registry.
func (cs *ChunkStreamer) Store() *ChunkStore {
	return cs.store
}

// ViewRadius is the half-width, in chunks, of the window examined each tick.
func (cs *ChunkStreamer) ViewRadius() int {
	return cs.viewRadius
}

// CenterCoord maps a world position to the chunk coordinate it is closest to.
// Halves round to even.
func (cs *ChunkStreamer) CenterCoord(pos mgl32.Vec2) ChunkCoord {
	return ChunkCoord{
		X: int(math.RoundToEven(float64(pos.X() / cs.edge))),
		Y: int(math.RoundToEven(float64(pos.Y() / cs.edge))),
	}
}

// Tick runs one visibility update for the observer position.
//
// Every chunk visible after the previous tick starts as a hiding candidate. Each
// cell of the window around the observer is then visited row-major: missing
// chunks are created (and built, or queued for building), and every chunk in the
// window becomes visible iff its bounds lie within the view distance. Candidates
// not shown again are hidden.
func (cs *ChunkStreamer) Tick(observer mgl32.Vec2) TickStats {
	defer profiling.Track("world.Tick")()
	start := time.Now()

	cs.tick++
	st := TickStats{Tick: cs.tick, ObserverX: observer.X(), ObserverY: observer.Y()}
	st.Installed = cs.installFinished() // async builds from earlier ticks

	center := cs.CenterCoord(observer)
	st.Center = center

	candidates := cs.visibleLast
	shown := make(map[ChunkCoord]struct{}, len(candidates))
	visibleNow := make([]*Chunk, 0, len(candidates))

	r := cs.viewRadius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			coord := center.Add(dx, dy)
			c := cs.store.Get(coord)
			if c == nil {
				var installed bool
				c, installed = cs.createChunk(coord)
				st.Created++
				if installed {
					st.Installed++
				}
			}
			visible := c.Bounds.Distance(observer) <= cs.maxView
			if cs.setVisible(c, visible) {
				if visible {
					st.Shown++
				} else {
					st.Hidden++
				}
			}
			if visible {
				shown[coord] = struct{}{}
				visibleNow = append(visibleNow, c)
			}
		}
	}

	for _, c := range candidates {
		if _, ok := shown[c.Coord]; ok {
			continue
		}
		if cs.setVisible(c, false) {
			st.Hidden++
		}
	}
	cs.visibleLast = visibleNow

	st.Evicted = cs.evict(center)
	st.Visible = len(visibleNow)
	st.Resident = cs.store.Len()
	if cs.pool != nil {
		st.Pending = cs.pool.pendingCount()
	}
	st.Duration = time.Since(start)
	return st
}

// WaitIdle blocks until every queued build finished and installs the results.
func (cs *ChunkStreamer) WaitIdle() int {
	if cs.pool == nil {
		return 0
	}
	cs.pool.wait()
	return cs.installFinished()
}

// Close stops the background builders. Builds still running are completed and
// discarded.
func (cs *ChunkStreamer) Close() {
	if cs.pool != nil {
		cs.pool.shutdown()
	}
}

// createChunk registers a chunk for coord and builds it, inline or on the pool.
// It reports whether the mesh was installed before returning.
func (cs *ChunkStreamer) createChunk(coord ChunkCoord) (*Chunk, bool) {
	c := NewChunk(coord, cs.edge)
	cs.store.Add(c)

	if cs.pool == nil {
		return c, cs.install(c, cs.builder.BuildChunk(coord))
	}
	if !cs.pool.submit(c) {
		cs.logger.Printf("Chunk %v build not queued", coord)
	}
	return c, false
}

func (cs *ChunkStreamer) installFinished() int {
	if cs.pool == nil {
		return 0
	}
	n := 0
	for _, fb := range cs.pool.drain() {
		if cs.store.Get(fb.chunk.Coord) != fb.chunk {
			continue
		}
		if cs.install(fb.chunk, fb.result) {
			n++
		}
	}
	return n
}

func (cs *ChunkStreamer) install(c *Chunk, res BuildResult) bool {
	if !c.install(res) {
		return false
	}
	cs.display.ChunkMeshReady(c)
	return true
}

func (cs *ChunkStreamer) setVisible(c *Chunk, visible bool) bool {
	if visible {
		c.lastShown.Store(cs.tick)
	}
	if !c.setVisible(visible) {
		return false
	}
	cs.display.ChunkVisibilityChanged(c, visible)
	return true
}

// evict drops hidden chunks until the store fits the capacity. Visible chunks,
// chunks with a build in flight and chunks inside the current window are kept.
// The least recently shown go first.
func (cs *ChunkStreamer) evict(center ChunkCoord) int {
	if cs.capacity <= 0 {
		return 0
	}
	excess := cs.store.Len() - cs.capacity
	if excess <= 0 {
		return 0
	}
	defer profiling.Track("world.Evict")()

	cs.window = cs.store.AppendChunksInWindow(center, cs.viewRadius, cs.window[:0])
	keep := make(map[*Chunk]struct{}, len(cs.window))
	for _, c := range cs.window {
		keep[c] = struct{}{}
	}

	victims := make([]*Chunk, 0, excess)
	for _, c := range cs.store.All() {
		if _, ok := keep[c]; ok || c.IsVisible() || c.IsPending() {
			continue
		}
		victims = append(victims, c)
	}
	sort.SliceStable(victims, func(i, j int) bool {
		return victims[i].LastShownTick() < victims[j].LastShownTick()
	})

	n := 0
	for _, c := range victims {
		if n == excess {
			break
		}
		if cs.store.Remove(c.Coord) != nil {
			cs.display.ChunkEvicted(c)
			n++
		}
	}
	return n
}
