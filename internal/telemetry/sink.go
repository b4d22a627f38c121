package telemetry

import (
	"errors"

	"landmass/internal/world"
)

// Sink consumes per-tick statistics. RecordTick is called from the tick goroutine
// and must not block for long.
type Sink interface {
	RecordTick(st world.TickStats) error
	Close() error
}

// Multi fans ticks out to several sinks. Every sink sees every tick even if an
// earlier one fails.
type Multi []Sink

func (m Multi) RecordTick(st world.TickStats) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordTick(st); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks in reverse order.
func (m Multi) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
