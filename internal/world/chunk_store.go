package world

import (
	"sort"
	"sync"
)

// ChunkStore is the chunk registry. The streamer is its only writer; readers such
// as display adapters may query it concurrently.
type ChunkStore struct {
	chunks map[ChunkCoord]*Chunk
	mu     sync.RWMutex
}

// NewChunkStore creates an empty store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[ChunkCoord]*Chunk),
	}
}

// Get returns the chunk at coord, or nil when it is not resident.
func (cs *ChunkStore) Get(coord ChunkCoord) *Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.chunks[coord]
}

// Has checks if a chunk is resident.
func (cs *ChunkStore) Has(coord ChunkCoord) bool {
	cs.mu.RLock()
	_, exists := cs.chunks[coord]
	cs.mu.RUnlock()
	return exists
}

// Add inserts c unless its coordinate is already taken. It reports whether c was added.
func (cs *ChunkStore) Add(c *Chunk) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if _, ok := cs.chunks[c.Coord]; ok {
		return false
	}
	cs.chunks[c.Coord] = c
	return true
}

// Remove deletes and returns the chunk at coord.
func (cs *ChunkStore) Remove(coord ChunkCoord) *Chunk {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	c, ok := cs.chunks[coord]
	if !ok {
		return nil
	}
	delete(cs.chunks, coord)
	return c
}

// Len returns the number of resident chunks.
func (cs *ChunkStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chunks)
}

// All returns every resident chunk in row-major coordinate order.
func (cs *ChunkStore) All() []*Chunk {
	return cs.collect(func(*Chunk) bool { return true })
}

// Visible returns the visible chunks in row-major coordinate order.
func (cs *ChunkStore) Visible() []*Chunk {
	return cs.collect((*Chunk).IsVisible)
}

// AppendChunksInWindow appends the resident chunks of the square window of the
// given radius around center, row-major, and returns the resulting slice.
func (cs *ChunkStore) AppendChunksInWindow(center ChunkCoord, radius int, dst []*Chunk) []*Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if c, ok := cs.chunks[center.Add(dx, dy)]; ok {
				dst = append(dst, c)
			}
		}
	}
	return dst
}

func (cs *ChunkStore) collect(keep func(*Chunk) bool) []*Chunk {
	cs.mu.RLock()
	out := make([]*Chunk, 0, len(cs.chunks))
	for _, c := range cs.chunks {
		if keep(c) {
			out = append(out, c)
		}
	}
	cs.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Coord.Less(out[j].Coord) })
	return out
}
