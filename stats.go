package krpc

import (
	"sync/atomic"
	"time"

	"github.com/dhropo/krpc/ema"
)

// statsTracker owns the EMAs and raw counters of §4.7, plus the adaptive
// rate controller of §4.4.3. EMA.Update is only ever called from the tick
// thread; the atomic counters may be read from any goroutine per §5.
type statsTracker struct {
	bytesReadPerSec    *ema.EMA
	bytesWrittenPerSec *ema.EMA
	rpcRate            *ema.EMA
	timePerTick        *ema.EMA
	pollTimePerTick    *ema.EMA
	execTimePerTick    *ema.EMA
	streamRPCRate      *ema.EMA
	streamTimePerTick  *ema.EMA

	rpcsExecuted       atomic.Uint64
	streamRPCsExecuted atomic.Uint64
	streamRPCsLastTick atomic.Uint64

	lastBytesRead    uint64
	lastBytesWritten uint64
}

func newStatsTracker() *statsTracker {
	return &statsTracker{
		bytesReadPerSec:    ema.New(ema.DefaultSmoothing),
		bytesWrittenPerSec: ema.New(ema.DefaultSmoothing),
		rpcRate:            ema.New(ema.DefaultSmoothing),
		timePerTick:        ema.New(ema.DefaultSmoothing),
		pollTimePerTick:    ema.New(ema.DefaultSmoothing),
		execTimePerTick:    ema.New(ema.DefaultSmoothing),
		streamRPCRate:      ema.New(ema.DefaultSmoothing),
		streamTimePerTick:  ema.New(ema.DefaultSmoothing),
	}
}

// recordTick folds one tick's measurements into the EMAs. totalBytesRead
// and totalBytesWritten are cumulative totals across all attached
// transports (§4.7); the tracker differences them into a per-tick rate.
func (s *statsTracker) recordTick(
	tickElapsed, pollElapsed, execElapsed, streamElapsed time.Duration,
	rpcsThisTick int,
	streamRPCsThisTick int,
	totalBytesRead, totalBytesWritten uint64,
) {
	perSecond := func(delta uint64) float64 {
		if tickElapsed <= 0 {
			return 0
		}
		return float64(delta) / tickElapsed.Seconds()
	}

	s.bytesReadPerSec.Update(perSecond(totalBytesRead - s.lastBytesRead))
	s.bytesWrittenPerSec.Update(perSecond(totalBytesWritten - s.lastBytesWritten))
	s.lastBytesRead = totalBytesRead
	s.lastBytesWritten = totalBytesWritten

	s.rpcRate.Update(perSecond(uint64(rpcsThisTick)))
	s.streamRPCRate.Update(perSecond(uint64(streamRPCsThisTick)))

	s.timePerTick.Update(float64(tickElapsed))
	s.pollTimePerTick.Update(float64(pollElapsed))
	s.execTimePerTick.Update(float64(execElapsed))
	s.streamTimePerTick.Update(float64(streamElapsed))

	s.rpcsExecuted.Add(uint64(rpcsThisTick))
	s.streamRPCsExecuted.Add(uint64(streamRPCsThisTick))
	s.streamRPCsLastTick.Store(uint64(streamRPCsThisTick))
}

// Stats is a read-only snapshot of the Statistics Surface (§4.7),
// returned by (*Engine).Stats so observers never touch live atomics or
// EMAs directly.
type Stats struct {
	BytesReadPerSec    float64
	BytesWrittenPerSec float64
	RPCRate            float64
	TimePerTick        time.Duration
	PollTimePerTick    time.Duration
	ExecTimePerTick    time.Duration
	StreamRPCRate      float64
	StreamTimePerTick  time.Duration

	RPCsExecuted       uint64
	StreamRPCsExecuted uint64
	// StreamRPCs is the number of stream invocations attempted on the
	// most recent tick (§4.5).
	StreamRPCs uint64

	MaxTimePerUpdate time.Duration
}

func (s *statsTracker) snapshot(maxTimePerUpdate time.Duration) Stats {
	return Stats{
		BytesReadPerSec:    s.bytesReadPerSec.Value(),
		BytesWrittenPerSec: s.bytesWrittenPerSec.Value(),
		RPCRate:            s.rpcRate.Value(),
		TimePerTick:        time.Duration(s.timePerTick.Value()),
		PollTimePerTick:    time.Duration(s.pollTimePerTick.Value()),
		ExecTimePerTick:    time.Duration(s.execTimePerTick.Value()),
		StreamRPCRate:      s.streamRPCRate.Value(),
		StreamTimePerTick:  time.Duration(s.streamTimePerTick.Value()),
		RPCsExecuted:       s.rpcsExecuted.Load(),
		StreamRPCsExecuted: s.streamRPCsExecuted.Load(),
		StreamRPCs:         s.streamRPCsLastTick.Load(),
		MaxTimePerUpdate:   maxTimePerUpdate,
	}
}

const (
	minMaxTimePerUpdate  = time.Millisecond
	maxMaxTimePerUpdate  = 25 * time.Millisecond
	idleMaxTimePerUpdate = 10 * time.Millisecond
	idleExecThreshold    = time.Millisecond
	adaptiveStep         = 100 * time.Microsecond
)

// adjustMaxTimePerUpdate implements the adaptive rate controller of
// §4.4.3: it retunes MaxTimePerUpdate toward a target tick period derived
// from the host's frame rate, one 100µs step per tick, with an idle
// re-arm to 10ms so a quiet period doesn't starve a sudden burst.
func adjustMaxTimePerUpdate(current, tickElapsed, execTimePerTick time.Duration, targetPeriod time.Duration) time.Duration {
	switch {
	case tickElapsed > targetPeriod:
		next := current - adaptiveStep
		if next < minMaxTimePerUpdate {
			next = minMaxTimePerUpdate
		}
		return next

	case execTimePerTick < idleExecThreshold:
		return idleMaxTimePerUpdate

	default:
		next := current + adaptiveStep
		if next > maxMaxTimePerUpdate {
			next = maxMaxTimePerUpdate
		}
		return next
	}
}

// targetTickPeriod is §4.4.3's "host_frequency / 59": a host's monotonic
// clock frequency divided by 59 gives a target period expressed in clock
// ticks, which converts back to wall-clock time as exactly 1/59th of a
// second, regardless of that frequency - Go's time.Duration is already
// frequency-normalized (fixed nanosecond resolution), so the formula
// collapses to this constant. Slightly below a 60-tick ceiling, so the
// controller pushes up against it rather than settling below it.
const targetTickPeriod = time.Second / 59
