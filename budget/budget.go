// Package budget implements the monotonic clock and microsecond budget
// accountant that bounds a single tick: one tick-wide stopwatch, plus three
// phase-scoped stopwatches (poll, execute, stream); budget exhaustion is
// checked against the tick-wide one.
package budget

import "time"

// Clock returns the current monotonic instant, matching time.Now's
// semantics. It exists so tests can supply a fake, in the manner of
// catrate's package-level timeNow test seam.
type Clock func() time.Time

// stopwatch accumulates elapsed time across possibly-many start/stop
// cycles within a single tick (the poll and execute phases, in particular,
// are started and stopped once per outer round of the tick loop).
type stopwatch struct {
	clock     Clock
	running   bool
	startedAt time.Time
	total     time.Duration
}

func (s *stopwatch) start() {
	if s.running {
		return
	}
	s.running = true
	s.startedAt = s.clock()
}

func (s *stopwatch) stop() {
	if !s.running {
		return
	}
	s.running = false
	s.total += s.clock().Sub(s.startedAt)
}

func (s *stopwatch) elapsed() time.Duration {
	if s.running {
		return s.total + s.clock().Sub(s.startedAt)
	}
	return s.total
}

func (s *stopwatch) reset() {
	s.running = false
	s.total = 0
}

// Tracker owns the timers for one tick: an overall tick timer, and
// independent poll/execute/stream phase timers. Budget exhaustion
// (§4.4.2) is always measured against the tick timer, never a phase
// timer alone.
type Tracker struct {
	clock     Clock
	tick      stopwatch
	poll      stopwatch
	exec      stopwatch
	stream    stopwatch
	maxUpdate time.Duration // MaxTimePerUpdate, mutable per-tick by the adaptive controller
}

// NewTracker constructs a Tracker. If clock is nil, time.Now is used.
func NewTracker(clock Clock, maxUpdate time.Duration) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	t := &Tracker{clock: clock, maxUpdate: maxUpdate}
	t.tick.clock = clock
	t.poll.clock = clock
	t.exec.clock = clock
	t.stream.clock = clock
	return t
}

// BeginTick resets all timers and starts the tick-wide stopwatch. Call
// once at the start of every tick.
func (t *Tracker) BeginTick() {
	t.tick.reset()
	t.poll.reset()
	t.exec.reset()
	t.stream.reset()
	t.tick.start()
}

// StartPoll/StopPoll bracket one poll phase.
func (t *Tracker) StartPoll() { t.poll.start() }
func (t *Tracker) StopPoll()  { t.poll.stop() }

// StartExec/StopExec bracket one execute phase.
func (t *Tracker) StartExec() { t.exec.start() }
func (t *Tracker) StopExec()  { t.exec.stop() }

// StartStream/StopStream bracket the Stream Tick Loop (§4.5), measured
// separately from the RPC Tick Loop's poll/exec phases so the Statistics
// Surface (§4.7) can report stream time per tick distinct from overall
// tick time.
func (t *Tracker) StartStream() { t.stream.start() }
func (t *Tracker) StopStream()  { t.stream.stop() }

// TickElapsed, PollElapsed, ExecElapsed, and StreamElapsed report the
// cumulative time spent so far in each scope.
func (t *Tracker) TickElapsed() time.Duration   { return t.tick.elapsed() }
func (t *Tracker) PollElapsed() time.Duration   { return t.poll.elapsed() }
func (t *Tracker) ExecElapsed() time.Duration   { return t.exec.elapsed() }
func (t *Tracker) StreamElapsed() time.Duration { return t.stream.elapsed() }

// MaxTimePerUpdate returns the current per-tick budget.
func (t *Tracker) MaxTimePerUpdate() time.Duration { return t.maxUpdate }

// SetMaxTimePerUpdate installs a new per-tick budget, as adjusted by the
// adaptive rate controller between ticks.
func (t *Tracker) SetMaxTimePerUpdate(d time.Duration) { t.maxUpdate = d }

// Exhausted reports whether the tick-wide timer has reached or exceeded
// the configured budget. Per §4.4.2, both the poll and execute phases
// consult this against the overall tick timer, never their own phase
// timer alone.
func (t *Tracker) Exhausted() bool {
	return t.tick.elapsed() >= t.maxUpdate
}
