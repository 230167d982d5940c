package krpc

import (
	"time"

	"github.com/joeycumines/logiface"
)

// Config is the mutable-at-runtime configuration surface described in
// §4.4. There is no persisted state; a host typically constructs one
// Config, passes it to NewEngine, and may replace the Engine's copy later
// via SetConfig.
type Config struct {
	// OneRPCPerUpdate restricts each tick to at most one executed
	// continuation per outer round (§4.4, step 2e).
	OneRPCPerUpdate bool

	// MaxTimePerUpdate is the per-tick wall-clock budget. The adaptive
	// rate controller (§4.4.3) adjusts this value after every tick; there
	// is no option that turns the controller off.
	MaxTimePerUpdate time.Duration

	// BlockingRecv, if true, causes the poll phase to keep polling until
	// a continuation becomes available, RecvTimeout elapses, or the
	// budget is exhausted (§4.4, step 2a).
	BlockingRecv bool

	// RecvTimeout bounds how long the poll phase will block when
	// BlockingRecv is true.
	RecvTimeout time.Duration
}

// DefaultConfig returns the conservative starting point used by
// NewEngine: a 10ms budget, non-blocking receive, and no single-RPC
// restriction.
func DefaultConfig() Config {
	return Config{
		MaxTimePerUpdate: 10 * time.Millisecond,
		RecvTimeout:      5 * time.Millisecond,
	}
}

// Option configures an Engine at construction time, in the functional-
// option idiom used throughout this module's logging dependency
// (logiface.Option).
type Option[E logiface.Event] func(*Engine[E])

// WithConfig installs cfg wholesale, replacing DefaultConfig.
func WithConfig[E logiface.Event](cfg Config) Option[E] {
	return func(e *Engine[E]) { e.cfg = cfg }
}

// WithOneRPCPerUpdate sets Config.OneRPCPerUpdate.
func WithOneRPCPerUpdate[E logiface.Event](v bool) Option[E] {
	return func(e *Engine[E]) { e.cfg.OneRPCPerUpdate = v }
}

// WithMaxTimePerUpdate sets Config.MaxTimePerUpdate.
func WithMaxTimePerUpdate[E logiface.Event](d time.Duration) Option[E] {
	return func(e *Engine[E]) { e.cfg.MaxTimePerUpdate = d }
}

// WithBlockingRecv sets Config.BlockingRecv and Config.RecvTimeout.
func WithBlockingRecv[E logiface.Event](timeout time.Duration) Option[E] {
	return func(e *Engine[E]) {
		e.cfg.BlockingRecv = true
		e.cfg.RecvTimeout = timeout
	}
}

// WithClock overrides the monotonic clock used for budget accounting.
// Intended for tests.
func WithClock[E logiface.Event](clock func() time.Time) Option[E] {
	return func(e *Engine[E]) { e.clock = clock }
}
