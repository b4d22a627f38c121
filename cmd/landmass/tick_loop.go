package main

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-gl/mathgl/mgl32"

	"landmass/internal/profiling"
	"landmass/internal/telemetry"
	"landmass/internal/transport/ws"
	"landmass/internal/world"
)

type tickLoopOptions struct {
	RateHz   float64
	Velocity mgl32.Vec2 // observer drift while no viewer drives it
	SlowTick time.Duration
	Report   time.Duration
	Index    dropCounter // optional, for dropped-tick reports
}

// dropCounter is implemented by *telemetry.SQLiteIndex.
type dropCounter interface {
	Dropped() uint64
}

// tickLoop drives the streamer at a fixed rate.
type tickLoop struct {
	world  *world.World
	driver *ws.Server // may be nil
	sink   telemetry.Sink
	logger *log.Logger
	opts   tickLoopOptions

	observer mgl32.Vec2
	lastTime time.Time

	// Totals since the last report
	ticks       int
	created     int
	evicted     int
	lastDropped uint64
	lastReport  time.Time
}

func newTickLoop(w *world.World, driver *ws.Server, sink telemetry.Sink, logger *log.Logger, opts tickLoopOptions) *tickLoop {
	if opts.RateHz <= 0 {
		opts.RateHz = 30
	}
	if opts.SlowTick <= 0 {
		// Half the tick budget.
		opts.SlowTick = time.Duration(float64(time.Second) / opts.RateHz / 2)
	}
	if opts.Report <= 0 {
		opts.Report = 10 * time.Second
	}
	if sink == nil {
		sink = telemetry.Multi{}
	}
	return &tickLoop{
		world:      w,
		driver:     driver,
		sink:       sink,
		logger:     logger,
		opts:       opts,
		lastTime:   time.Now(),
		lastReport: time.Now(),
	}
}

// Ticks returns how many ticks ran.
func (l *tickLoop) Ticks() int {
	return l.ticks
}

// Run ticks until ctx is done or maxTicks ticks ran (0 means no limit).
func (l *tickLoop) Run(ctx context.Context, maxTicks int) {
	interval := time.Duration(float64(time.Second) / l.opts.RateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for maxTicks <= 0 || l.ticks < maxTicks {
		now := time.Now()
		l.step(now.Sub(l.lastTime).Seconds())
		l.lastTime = now

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	l.world.WaitIdle()
}

func (l *tickLoop) step(dt float64) world.TickStats {
	profiling.Default.Reset()

	if pos, ok := l.driverPosition(); ok {
		l.observer = pos
	} else {
		l.observer = l.observer.Add(l.opts.Velocity.Mul(float32(dt)))
	}

	st := l.world.Tick(l.observer)
	l.ticks++
	l.created += st.Created
	l.evicted += st.Evicted

	if err := l.sink.RecordTick(st); err != nil {
		l.logger.Printf("Record tick %d: %v", st.Tick, err)
	}
	if st.Duration > l.opts.SlowTick {
		l.logger.Printf("Slow tick: %v. Top tasks: %s", st.Duration, profiling.TopN(5))
	}
	if time.Since(l.lastReport) >= l.opts.Report {
		l.report(st)
	}
	return st
}

func (l *tickLoop) driverPosition() (mgl32.Vec2, bool) {
	if l.driver == nil {
		return mgl32.Vec2{}, false
	}
	return l.driver.Observer()
}

func (l *tickLoop) report(st world.TickStats) {
	l.logger.Printf("Tick %s at (%.1f, %.1f): %d visible, %s resident, %d pending; %s built, %s evicted since last report",
		humanize.Comma(int64(st.Tick)), st.ObserverX, st.ObserverY,
		st.Visible, humanize.Comma(int64(st.Resident)), st.Pending,
		humanize.Comma(int64(l.created)), humanize.Comma(int64(l.evicted)))
	l.created, l.evicted = 0, 0
	l.lastReport = time.Now()

	if l.opts.Index == nil {
		return
	}
	if d := l.opts.Index.Dropped(); d > l.lastDropped {
		l.logger.Printf("Tick index dropped %s ticks since last report", humanize.Comma(int64(d-l.lastDropped)))
		l.lastDropped = d
	}
}
