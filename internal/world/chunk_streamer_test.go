package world

import (
	"sync"
	"sync/atomic"
	"testing"

	"landmass/internal/meshing"
	"landmass/internal/noise"

	"github.com/go-gl/mathgl/mgl32"
)

// countingBuilder returns a flat 2x2 mesh and counts builds per coordinate.
type countingBuilder struct {
	gate  chan struct{}
	calls atomic.Int32

	mu     sync.Mutex
	byCell map[ChunkCoord]int
}

func newCountingBuilder() *countingBuilder {
	return &countingBuilder{byCell: make(map[ChunkCoord]int)}
}

func (b *countingBuilder) BuildChunk(coord ChunkCoord) BuildResult {
	if b.gate != nil {
		<-b.gate
	}
	b.calls.Add(1)
	b.mu.Lock()
	b.byCell[coord]++
	b.mu.Unlock()

	h := &noise.HeightMap{Width: 2, Height: 2, Values: make([]float32, 4)}
	return BuildResult{Heights: h, Mesh: meshing.BuildMesh(h, 1, nil, 0)}
}

func (b *countingBuilder) maxPerCell() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := 0
	for _, n := range b.byCell {
		m = max(m, n)
	}
	return m
}

type recordingDisplay struct {
	mu      sync.Mutex
	ready   []ChunkCoord
	shown   []ChunkCoord
	hidden  []ChunkCoord
	evicted []ChunkCoord
}

func (d *recordingDisplay) ChunkMeshReady(c *Chunk) {
	d.mu.Lock()
	d.ready = append(d.ready, c.Coord)
	d.mu.Unlock()
}

func (d *recordingDisplay) ChunkVisibilityChanged(c *Chunk, visible bool) {
	d.mu.Lock()
	if visible {
		d.shown = append(d.shown, c.Coord)
	} else {
		d.hidden = append(d.hidden, c.Coord)
	}
	d.mu.Unlock()
}

func (d *recordingDisplay) ChunkEvicted(c *Chunk) {
	d.mu.Lock()
	d.evicted = append(d.evicted, c.Coord)
	d.mu.Unlock()
}

func newTestStreamer(opts StreamerOptions) (*ChunkStreamer, *countingBuilder, *recordingDisplay) {
	b := newCountingBuilder()
	d := &recordingDisplay{}
	opts.Display = d
	return NewChunkStreamer(NewChunkStore(), b, opts), b, d
}

func TestTickInitialWindow(t *testing.T) {
	cs, b, d := newTestStreamer(StreamerOptions{})

	st := cs.Tick(mgl32.Vec2{0, 0})
	if st.Created != 9 || st.Installed != 9 || st.Visible != 9 || st.Shown != 9 || st.Hidden != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if n := cs.Store().Len(); n != 9 {
		t.Errorf("resident = %d, want 9", n)
	}
	if n := b.calls.Load(); n != 9 {
		t.Errorf("builds = %d, want 9", n)
	}
	if len(d.ready) != 9 || len(d.shown) != 9 {
		t.Errorf("events ready=%d shown=%d, want 9/9", len(d.ready), len(d.shown))
	}
	// Corner chunks are 120*sqrt(2) away from the origin.
	for _, c := range cs.Store().All() {
		if !c.IsVisible() || !c.HasMesh() {
			t.Errorf("chunk %v visible=%v mesh=%v", c.Coord, c.IsVisible(), c.HasMesh())
		}
	}
	// Row-major creation order.
	if d.ready[0] != (ChunkCoord{-1, -1}) || d.ready[1] != (ChunkCoord{0, -1}) || d.ready[8] != (ChunkCoord{1, 1}) {
		t.Errorf("creation order = %v", d.ready)
	}
}

func TestTickIdempotent(t *testing.T) {
	cs, b, d := newTestStreamer(StreamerOptions{})
	cs.Tick(mgl32.Vec2{10, -20})

	st := cs.Tick(mgl32.Vec2{10, -20})
	if st.Created != 0 || st.Installed != 0 || st.Shown != 0 || st.Hidden != 0 || st.Visible != 9 {
		t.Fatalf("second tick changed state: %+v", st)
	}
	if n := b.calls.Load(); n != 9 {
		t.Errorf("builds = %d, want 9", n)
	}
	if len(d.shown) != 9 || len(d.hidden) != 0 {
		t.Errorf("events shown=%d hidden=%d", len(d.shown), len(d.hidden))
	}
}

func TestVisibilityBoundaryInclusive(t *testing.T) {
	cs, _, _ := newTestStreamer(StreamerOptions{ChunkEdge: 100, MaxViewDistance: 150})
	if cs.ViewRadius() != 2 {
		t.Fatalf("view radius = %d, want 2", cs.ViewRadius())
	}

	cs.Tick(mgl32.Vec2{0, 0})
	edge := cs.Store().Get(ChunkCoord{2, 0})
	if edge == nil || !edge.IsVisible() {
		t.Fatalf("chunk at exactly the view distance should be visible")
	}
	if c := cs.Store().Get(ChunkCoord{2, 1}); c == nil || c.IsVisible() {
		t.Errorf("chunk (2,1) should be resident and hidden")
	}

	st := cs.Tick(mgl32.Vec2{-0.5, 0})
	if edge.IsVisible() {
		t.Errorf("chunk (2,0) should hide once past the view distance")
	}
	if st.Hidden == 0 {
		t.Errorf("expected a hidden transition, got %+v", st)
	}
}

func TestTickWindowCoverage(t *testing.T) {
	cs, _, _ := newTestStreamer(StreamerOptions{ChunkEdge: 100, MaxViewDistance: 250})
	obs := mgl32.Vec2{430, -170}
	cs.Tick(obs)

	center := cs.CenterCoord(obs)
	r := cs.ViewRadius()
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c := cs.Store().Get(center.Add(dx, dy))
			if c == nil {
				t.Fatalf("window cell %v missing", center.Add(dx, dy))
			}
			want := c.Bounds.Distance(obs) <= 250
			if c.IsVisible() != want {
				t.Errorf("chunk %v visible=%v, want %v", c.Coord, c.IsVisible(), want)
			}
		}
	}
	if got, want := cs.Store().Len(), (2*r+1)*(2*r+1); got != want {
		t.Errorf("resident = %d, want %d", got, want)
	}
}

func TestMovingHidesPreviouslyVisible(t *testing.T) {
	cs, _, d := newTestStreamer(StreamerOptions{})
	cs.Tick(mgl32.Vec2{0, 0})

	st := cs.Tick(mgl32.Vec2{2400, 0})
	if st.Center != (ChunkCoord{10, 0}) {
		t.Fatalf("center = %v", st.Center)
	}
	if st.Hidden != 9 || st.Shown != 9 || st.Created != 9 {
		t.Errorf("unexpected stats %+v", st)
	}
	if len(d.hidden) != 9 {
		t.Errorf("hidden events = %d, want 9", len(d.hidden))
	}
	if c := cs.Store().Get(ChunkCoord{0, 0}); c == nil || c.IsVisible() {
		t.Errorf("origin chunk should stay resident and hidden")
	}
	if got := len(cs.Store().Visible()); got != 9 {
		t.Errorf("visible = %d, want 9", got)
	}
}

func TestCenterCoordRoundsHalfToEven(t *testing.T) {
	cs, _, _ := newTestStreamer(StreamerOptions{})
	cases := []struct {
		x    float32
		want int
	}{
		{0, 0},
		{120, 0},
		{121, 1},
		{360, 2},
		{-120, 0},
		{-360, -2},
		{600, 2},
	}
	for _, tc := range cases {
		if got := cs.CenterCoord(mgl32.Vec2{tc.x, tc.x}); got != (ChunkCoord{tc.want, tc.want}) {
			t.Errorf("CenterCoord(%v) = %v, want %d", tc.x, got, tc.want)
		}
	}
}

func TestViewRadius(t *testing.T) {
	cases := []struct {
		edge, view float32
		want       int
	}{
		{240, 300, 1},
		{100, 150, 2},
		{100, 250, 2},
		{100, 350, 4},
		{240, 100, 0},
	}
	for _, tc := range cases {
		cs, _, _ := newTestStreamer(StreamerOptions{ChunkEdge: tc.edge, MaxViewDistance: tc.view})
		if got := cs.ViewRadius(); got != tc.want {
			t.Errorf("ViewRadius(%v/%v) = %d, want %d", tc.view, tc.edge, got, tc.want)
		}
	}
}

func TestEvictionLeastRecentlyShown(t *testing.T) {
	cs, _, d := newTestStreamer(StreamerOptions{Capacity: 12})

	cs.Tick(mgl32.Vec2{0, 0})
	st := cs.Tick(mgl32.Vec2{2400, 0})
	if st.Evicted != 6 || st.Resident != 12 {
		t.Fatalf("unexpected stats %+v", st)
	}
	// Ties go row-major, so the origin's top two rows leave first.
	for _, c := range []ChunkCoord{{-1, -1}, {1, -1}, {0, 0}, {1, 0}} {
		if cs.Store().Has(c) {
			t.Errorf("chunk %v should have been evicted", c)
		}
	}
	if !cs.Store().Has(ChunkCoord{0, 1}) {
		t.Errorf("chunk (0,1) should survive the first eviction")
	}

	st = cs.Tick(mgl32.Vec2{4800, 0})
	if st.Evicted != 9 || st.Resident != 12 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if cs.Store().Has(ChunkCoord{0, 1}) {
		t.Errorf("older chunk (0,1) should go before newer ones")
	}
	for _, c := range []ChunkCoord{{9, 1}, {10, 1}, {11, 1}} {
		if !cs.Store().Has(c) {
			t.Errorf("chunk %v should survive", c)
		}
	}
	if len(d.evicted) != 15 {
		t.Errorf("evicted events = %d, want 15", len(d.evicted))
	}
}

func TestEvictionKeepsVisible(t *testing.T) {
	cs, _, d := newTestStreamer(StreamerOptions{Capacity: 1})
	st := cs.Tick(mgl32.Vec2{0, 0})
	if st.Evicted != 0 || st.Resident != 9 {
		t.Errorf("visible chunks were evicted: %+v", st)
	}
	if len(d.evicted) != 0 {
		t.Errorf("evicted events = %v", d.evicted)
	}
}

func TestEvictionKeepsHiddenChunksInWindow(t *testing.T) {
	// Radius 2 window; 12 cells off the axes are out of view but stay resident.
	cs, _, d := newTestStreamer(StreamerOptions{ChunkEdge: 100, MaxViewDistance: 150, Capacity: 1})
	st := cs.Tick(mgl32.Vec2{0, 0})
	if st.Visible != 13 || st.Resident != 25 || st.Evicted != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if cs.Store().Get(ChunkCoord{2, 1}).IsVisible() {
		t.Fatalf("chunk (2,1) should be hidden")
	}
	if len(d.evicted) != 0 {
		t.Errorf("evicted events = %v", d.evicted)
	}
}

func TestEvictionSkipsChunksStillBuilding(t *testing.T) {
	b := newCountingBuilder()
	b.gate = make(chan struct{})
	cs := NewChunkStreamer(NewChunkStore(), b, StreamerOptions{Workers: 2, Capacity: 9})
	defer cs.Close()

	cs.Tick(mgl32.Vec2{0, 0})
	st := cs.Tick(mgl32.Vec2{2400, 0})
	if st.Evicted != 0 || st.Resident != 18 {
		t.Fatalf("chunks with builds in flight were evicted: %+v", st)
	}
	cs.Tick(mgl32.Vec2{0, 0})

	close(b.gate)
	cs.WaitIdle()
	st = cs.Tick(mgl32.Vec2{0, 0})
	if st.Evicted != 9 || st.Resident != 9 || st.Pending != 0 {
		t.Errorf("unexpected stats after builds finished %+v", st)
	}
	for _, c := range cs.Store().All() {
		if !c.HasMesh() {
			t.Errorf("chunk %v never built", c.Coord)
		}
	}
	if got := b.maxPerCell(); got != 1 {
		t.Errorf("a chunk was built %d times", got)
	}
}

func TestAsyncBuildsEachChunkOnce(t *testing.T) {
	b := newCountingBuilder()
	b.gate = make(chan struct{})
	d := &recordingDisplay{}
	cs := NewChunkStreamer(NewChunkStore(), b, StreamerOptions{Workers: 4, Display: d})
	defer cs.Close()

	st := cs.Tick(mgl32.Vec2{0, 0})
	if st.Created != 9 || st.Pending != 9 || st.Visible != 9 {
		t.Fatalf("unexpected stats %+v", st)
	}
	for i := 0; i < 5; i++ {
		if st := cs.Tick(mgl32.Vec2{0, 0}); st.Created != 0 {
			t.Fatalf("tick %d recreated chunks: %+v", i, st)
		}
	}
	if len(d.ready) != 0 {
		t.Fatalf("meshes reported before builds finished: %v", d.ready)
	}

	close(b.gate)
	if n := cs.WaitIdle(); n != 9 {
		t.Errorf("WaitIdle installed %d, want 9", n)
	}
	if got := b.maxPerCell(); got != 1 {
		t.Errorf("a chunk was built %d times", got)
	}
	if len(d.ready) != 9 {
		t.Errorf("ready events = %d, want 9", len(d.ready))
	}
	for _, c := range cs.Store().All() {
		if c.IsPending() || !c.HasMesh() {
			t.Errorf("chunk %v pending=%v mesh=%v", c.Coord, c.IsPending(), c.HasMesh())
		}
	}

	st = cs.Tick(mgl32.Vec2{0, 0})
	if st.Installed != 0 || st.Pending != 0 {
		t.Errorf("unexpected stats after idle %+v", st)
	}
}

func TestAsyncInstallsOnTick(t *testing.T) {
	b := newCountingBuilder()
	cs := NewChunkStreamer(NewChunkStore(), b, StreamerOptions{Workers: 2})
	defer cs.Close()

	cs.Tick(mgl32.Vec2{0, 0})
	cs.pool.wait()
	if st := cs.Tick(mgl32.Vec2{0, 0}); st.Installed != 9 {
		t.Errorf("installed = %d, want 9", st.Installed)
	}
}

func BenchmarkTickStationary(b *testing.B) {
	cs, _, _ := newTestStreamer(StreamerOptions{ChunkEdge: 10, MaxViewDistance: 100})
	cs.Tick(mgl32.Vec2{0, 0})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cs.Tick(mgl32.Vec2{float32(i % 3), float32((i / 3) % 3)})
	}
}
