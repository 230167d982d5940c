// Package ema implements an exponentially-weighted moving average suitable
// for tracking rate and latency counters sampled once per tick, in the
// idiom of catrate's atomic-word counters: the backing value is stored as
// a math.Float64bits pattern behind an atomic.Uint64, so a tick-thread
// writer and best-effort readers never need a mutex.
package ema

import (
	"math"
	"sync/atomic"
)

// DefaultSmoothing is the smoothing factor used by New when none is given.
const DefaultSmoothing = 0.25

// EMA tracks a smoothed sample of a scalar series. The zero value is not
// usable; construct with New.
type EMA struct {
	alpha float64
	bits  atomic.Uint64
	set   atomic.Bool
}

// New returns an EMA using the given smoothing factor. alpha must be in
// (0, 1]; a value of 0 or outside that range falls back to
// DefaultSmoothing.
func New(alpha float64) *EMA {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultSmoothing
	}
	return &EMA{alpha: alpha}
}

// Update folds sample into the moving average and returns the new value.
// The first call seeds the average with sample itself.
//
// Update must only be called from the single writer goroutine (the tick
// loop); Value may be called concurrently from any goroutine.
func (e *EMA) Update(sample float64) float64 {
	var next float64
	if e.set.Load() {
		prev := math.Float64frombits(e.bits.Load())
		next = e.alpha*sample + (1-e.alpha)*prev
	} else {
		next = sample
	}

	e.bits.Store(math.Float64bits(next))
	e.set.Store(true)

	return next
}

// Value returns the current smoothed value, or 0 if Update has never been
// called.
func (e *EMA) Value() float64 {
	if !e.set.Load() {
		return 0
	}
	return math.Float64frombits(e.bits.Load())
}

// Reset clears the average back to its unseeded zero value.
func (e *EMA) Reset() {
	e.set.Store(false)
	e.bits.Store(0)
}
