package world

// Display receives chunk lifecycle events from the streamer. Calls arrive on the
// goroutine running Tick and must not block.
type Display interface {
	// ChunkMeshReady fires once per chunk, when its mesh is installed.
	ChunkMeshReady(c *Chunk)
	// ChunkVisibilityChanged fires only on transitions.
	ChunkVisibilityChanged(c *Chunk, visible bool)
	// ChunkEvicted fires after a hidden chunk leaves the store.
	ChunkEvicted(c *Chunk)
}

// NopDisplay ignores every event.
type NopDisplay struct{}

func (NopDisplay) ChunkMeshReady(*Chunk)               {}
func (NopDisplay) ChunkVisibilityChanged(*Chunk, bool) {}
func (NopDisplay) ChunkEvicted(*Chunk)                 {}
