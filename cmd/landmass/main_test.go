package main

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"landmass/internal/noise"
	"landmass/internal/world"
)

func TestParseVec2(t *testing.T) {
	v, err := parseVec2(" 12.5, -3 ")
	if err != nil || v != (mgl32.Vec2{12.5, -3}) {
		t.Fatalf("parseVec2 = %v, %v", v, err)
	}
	for _, bad := range []string{"", "1", "1,2,3", "a,1"} {
		if _, err := parseVec2(bad); err == nil {
			t.Errorf("parseVec2(%q) accepted", bad)
		}
	}
}

type countingSink struct{ ticks []world.TickStats }

func (s *countingSink) RecordTick(st world.TickStats) error {
	s.ticks = append(s.ticks, st)
	return nil
}
func (s *countingSink) Close() error { return nil }

func testWorld() *world.World {
	p := noise.DefaultParams()
	p.Octaves = 0
	return world.New(world.Options{
		Generator: world.GeneratorOptions{Params: p, Resolution: 9, HeightScale: 4},
		Streamer:  world.StreamerOptions{MaxViewDistance: 10},
	})
}

func TestTickLoopWalksObserver(t *testing.T) {
	w := testWorld()
	defer w.Close()
	sink := &countingSink{}
	var buf bytes.Buffer
	loop := newTickLoop(w, nil, sink, log.New(&buf, "", 0), tickLoopOptions{
		RateHz:   30,
		Velocity: mgl32.Vec2{8, 0},
		SlowTick: time.Hour,
		Report:   time.Hour,
	})

	loop.step(1)
	st := loop.step(1)
	if st.ObserverX != 16 || st.ObserverY != 0 {
		t.Errorf("observer = (%v, %v), want (16, 0)", st.ObserverX, st.ObserverY)
	}
	if st.Center != (world.ChunkCoord{X: 2, Y: 0}) {
		t.Errorf("center = %v", st.Center)
	}
	if len(sink.ticks) != 2 || loop.Ticks() != 2 {
		t.Errorf("recorded %d ticks, loop counted %d", len(sink.ticks), loop.Ticks())
	}
}

func TestTickLoopRunStopsAfterMaxTicks(t *testing.T) {
	w := testWorld()
	defer w.Close()
	sink := &countingSink{}
	loop := newTickLoop(w, nil, sink, log.New(&bytes.Buffer{}, "", 0), tickLoopOptions{RateHz: 1000, SlowTick: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	loop.Run(ctx, 3)
	if loop.Ticks() != 3 || len(sink.ticks) != 3 {
		t.Fatalf("ticks = %d, recorded %d", loop.Ticks(), len(sink.ticks))
	}
	if sink.ticks[2].Tick != 3 {
		t.Errorf("last tick = %d", sink.ticks[2].Tick)
	}
}

func TestTickLoopReportsSlowTicks(t *testing.T) {
	w := testWorld()
	defer w.Close()
	var buf bytes.Buffer
	loop := newTickLoop(w, nil, nil, log.New(&buf, "", 0), tickLoopOptions{RateHz: 30, SlowTick: time.Nanosecond, Report: time.Nanosecond})
	loop.step(0)
	out := buf.String()
	if !strings.Contains(out, "Slow tick:") || !strings.Contains(out, "visible") {
		t.Errorf("log = %q", out)
	}
}

type fixedDrops struct{ n uint64 }

func (f *fixedDrops) Dropped() uint64 { return f.n }

func TestTickLoopReportsIndexDrops(t *testing.T) {
	w := testWorld()
	defer w.Close()
	drops := &fixedDrops{}
	var buf bytes.Buffer
	loop := newTickLoop(w, nil, nil, log.New(&buf, "", 0), tickLoopOptions{
		RateHz: 30, SlowTick: time.Hour, Report: time.Nanosecond, Index: drops,
	})

	loop.step(0)
	if strings.Contains(buf.String(), "dropped") {
		t.Fatalf("reported drops for a healthy index: %q", buf.String())
	}
	drops.n = 1500
	loop.step(0)
	if !strings.Contains(buf.String(), "Tick index dropped 1,500 ticks") {
		t.Errorf("log = %q", buf.String())
	}
	buf.Reset()
	loop.step(0)
	if strings.Contains(buf.String(), "dropped") {
		t.Errorf("repeated an old drop count: %q", buf.String())
	}
}
