package world

import (
	"math"
	"sync/atomic"

	"landmass/internal/meshing"
	"landmass/internal/noise"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	// ChunkResolution is the number of height samples along a chunk edge.
	// 241 keeps a full-detail chunk under MaxMeshVertices, and 240 divides
	// evenly by every LOD stride (1, 2, 4, 6, 8, 10, 12).
	ChunkResolution = 241

	// ChunkEdge is the world-space edge length of one chunk.
	ChunkEdge = ChunkResolution - 1

	// MaxMeshVertices is the per-mesh vertex limit of the target renderers (16-bit indices).
	MaxMeshVertices = 65535

	DefaultMaxViewDistance = 300
)

// ChunkCoord is a chunk grid cell. Y runs along the world z axis.
type ChunkCoord struct {
	X, Y int
}

// Add offsets the coordinate by (dx, dy) cells.
func (c ChunkCoord) Add(dx, dy int) ChunkCoord {
	return ChunkCoord{X: c.X + dx, Y: c.Y + dy}
}

// Less orders coordinates row-major (Y, then X).
func (c ChunkCoord) Less(o ChunkCoord) bool {
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

// Bounds is an axis-aligned square (or rectangle) on the ground plane.
type Bounds struct {
	Center mgl32.Vec2
	Size   mgl32.Vec2
}

func (b Bounds) Min() mgl32.Vec2 { return b.Center.Sub(b.Size.Mul(0.5)) }
func (b Bounds) Max() mgl32.Vec2 { return b.Center.Add(b.Size.Mul(0.5)) }

// SqrDistance is the squared distance from p to the closest point of the bounds;
// zero when p is inside.
func (b Bounds) SqrDistance(p mgl32.Vec2) float64 {
	lo, hi := b.Min(), b.Max()
	dx := axisGap(float64(p.X()), float64(lo.X()), float64(hi.X()))
	dy := axisGap(float64(p.Y()), float64(lo.Y()), float64(hi.Y()))
	return dx*dx + dy*dy
}

func axisGap(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}

// Distance is the distance from p to the closest point of the bounds.
func (b Bounds) Distance(p mgl32.Vec2) float64 {
	return math.Sqrt(b.SqrDistance(p))
}

// Chunk is one streamed square of terrain. Only the streamer mutates it; the
// accessors are safe to call from other goroutines.
type Chunk struct {
	Coord    ChunkCoord
	Position mgl32.Vec2
	Bounds   Bounds

	visible   atomic.Bool
	pending   atomic.Bool
	lastShown atomic.Uint64
	mesh      atomic.Pointer[meshing.Mesh]
	heights   atomic.Pointer[noise.HeightMap]
}

// NewChunk creates a hidden, unbuilt chunk for coord.
func NewChunk(coord ChunkCoord, edge float32) *Chunk {
	pos := mgl32.Vec2{float32(coord.X) * edge, float32(coord.Y) * edge}
	return &Chunk{
		Coord:    coord,
		Position: pos,
		Bounds:   Bounds{Center: pos, Size: mgl32.Vec2{edge, edge}},
	}
}

// IsVisible reports whether the chunk should currently be drawn.
func (c *Chunk) IsVisible() bool {
	return c.visible.Load()
}

// IsPending reports whether a build for this chunk is in flight.
func (c *Chunk) IsPending() bool {
	return c.pending.Load()
}

// Mesh returns the built mesh, or nil before the build completes.
func (c *Chunk) Mesh() *meshing.Mesh {
	return c.mesh.Load()
}

// HasMesh reports whether the chunk has been built.
func (c *Chunk) HasMesh() bool {
	return c.mesh.Load() != nil
}

// HeightMap returns the height samples the mesh was built from.
func (c *Chunk) HeightMap() *noise.HeightMap {
	return c.heights.Load()
}

// LastShownTick is the last tick the chunk was visible in.
func (c *Chunk) LastShownTick() uint64 {
	return c.lastShown.Load()
}

// setVisible stores v and reports whether it changed.
func (c *Chunk) setVisible(v bool) bool {
	return c.visible.Swap(v) != v
}

// install stores a finished build. It never replaces an existing mesh.
func (c *Chunk) install(res BuildResult) bool {
	c.pending.Store(false)
	if res.Mesh == nil || !c.mesh.CompareAndSwap(nil, res.Mesh) {
		return false
	}
	c.heights.Store(res.Heights)
	return true
}
