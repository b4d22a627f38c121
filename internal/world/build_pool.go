package world

import (
	"sync"

	"github.com/alitto/pond/v2"
)

// finishedBuild is a completed build waiting to be installed by the streamer.
type finishedBuild struct {
	chunk  *Chunk
	result BuildResult
}

// buildPool runs chunk builds in the background. Workers never touch the store or
// the display; they only append to done, which the streamer drains on its own
// goroutine.
type buildPool struct {
	pool    pond.Pool
	builder ChunkBuilder
	wg      sync.WaitGroup

	mu      sync.Mutex
	pending map[ChunkCoord]struct{}
	done    []finishedBuild
	closed  bool
}

func newBuildPool(workers int, builder ChunkBuilder) *buildPool {
	return &buildPool{
		pool:    pond.NewPool(workers),
		builder: builder,
		pending: make(map[ChunkCoord]struct{}),
	}
}

// submit queues a build for c. It returns false if one is already in flight for
// the coordinate or the pool is shut down.
func (p *buildPool) submit(c *Chunk) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if _, ok := p.pending[c.Coord]; ok {
		p.mu.Unlock()
		return false
	}
	p.pending[c.Coord] = struct{}{}
	p.wg.Add(1)
	p.mu.Unlock()

	c.pending.Store(true)
	p.pool.Submit(func() {
		defer p.wg.Done()
		res := p.builder.BuildChunk(c.Coord)

		p.mu.Lock()
		delete(p.pending, c.Coord)
		p.done = append(p.done, finishedBuild{chunk: c, result: res})
		p.mu.Unlock()
	})
	return true
}

// drain takes every finished build.
func (p *buildPool) drain() []finishedBuild {
	p.mu.Lock()
	out := p.done
	p.done = nil
	p.mu.Unlock()
	return out
}

// wait blocks until every submitted build has finished.
func (p *buildPool) wait() {
	p.wg.Wait()
}

func (p *buildPool) pendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// shutdown stops accepting builds and waits for running ones to finish.
func (p *buildPool) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.pool.StopAndWait()
}
