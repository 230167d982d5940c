package krpc

import (
	"context"
	"time"

	"github.com/joeycumines/logiface"

	"github.com/dhropo/krpc/budget"
	"github.com/dhropo/krpc/roundrobin"
	"github.com/dhropo/krpc/streamreg"
)

// Engine is the core RPC execution engine (§2). It is generic over the
// logiface event type E so callers may plug in any logiface backend (this
// module defaults its example wiring to stumpy) while the engine logs
// through the same builder-style API the rest of the ecosystem uses.
//
// An Engine is not safe for concurrent use. All mutating methods,
// including Tick, must be called from a single goroutine - the host's
// simulation loop (§5).
type Engine[E logiface.Event] struct {
	cfg   Config
	clock func() time.Time
	now   Clock // UniversalTime, embedded into every outgoing Response

	registry ServiceRegistry
	logger   *logiface.Logger[E]

	transports       []Transport
	streamTransports []StreamTransport

	scheduler   *roundrobin.Scheduler[RPCClient]
	rpcClients  map[ClientID]RPCClient
	outstanding map[ClientID]bool // at most one continuation, active or yielded, per client (§3, §9)

	active  []*continuation
	yielded []*continuation

	streamReg     *streamreg.Registry
	streamClients map[ClientID]StreamClient

	observers []Observer

	tracker *budget.Tracker
	stats   *statsTracker

	lastTickRPCCount int
}

// NewEngine constructs an Engine. registry resolves and executes
// procedure calls (§6); now supplies the host simulation's authoritative
// clock, embedded into every Response (§6, "Universal time"). logger may
// be nil, in which case nothing is logged. opts may override DefaultConfig.
func NewEngine[E logiface.Event](registry ServiceRegistry, now Clock, logger *logiface.Logger[E], opts ...Option[E]) *Engine[E] {
	e := &Engine[E]{
		cfg:           DefaultConfig(),
		clock:         time.Now,
		now:           now,
		registry:      registry,
		logger:        logger,
		scheduler:     roundrobin.New[RPCClient](),
		rpcClients:    make(map[ClientID]RPCClient),
		outstanding:   make(map[ClientID]bool),
		streamReg:     streamreg.New(),
		streamClients: make(map[ClientID]StreamClient),
		stats:         newStatsTracker(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.tracker = budget.NewTracker(e.clock, e.cfg.MaxTimePerUpdate)

	return e
}

// AttachTransport registers a Transport as a source of RPC clients and
// inbound requests. Per §9's "Servers list" design note, this is an event
// subscription, not insertion into a public mutable slice: the tick loop
// drives every currently-attached transport without holding an owning
// collection the host can corrupt.
func (e *Engine[E]) AttachTransport(t Transport) {
	e.transports = append(e.transports, t)
}

// DetachTransport unregisters a previously attached Transport. A no-op if
// t was never attached.
func (e *Engine[E]) DetachTransport(t Transport) {
	for i, v := range e.transports {
		if v == t {
			e.transports = append(e.transports[:i], e.transports[i+1:]...)
			return
		}
	}
}

// AttachStreamTransport registers a StreamTransport, the streaming
// channel's counterpart to AttachTransport.
func (e *Engine[E]) AttachStreamTransport(t StreamTransport) {
	e.streamTransports = append(e.streamTransports, t)
}

// DetachStreamTransport unregisters a previously attached StreamTransport.
func (e *Engine[E]) DetachStreamTransport(t StreamTransport) {
	for i, v := range e.streamTransports {
		if v == t {
			e.streamTransports = append(e.streamTransports[:i], e.streamTransports[i+1:]...)
			return
		}
	}
}

// AddStream registers a standing subscription on behalf of rpcClientID,
// returning its StreamID. Stream setup errors (§7 item 5) are returned
// directly to the caller and never corrupt the stream registry.
func (e *Engine[E]) AddStream(rpcClientID ClientID, req Request) (streamreg.StreamID, error) {
	return e.streamReg.AddStream(e.registry, rpcClientID, req)
}

// RemoveStream deregisters a standing subscription. Idempotent (§4.3).
func (e *Engine[E]) RemoveStream(rpcClientID ClientID, id streamreg.StreamID) {
	e.streamReg.RemoveStream(rpcClientID, id)
}

// Config returns a copy of the engine's current configuration.
func (e *Engine[E]) Config() Config { return e.cfg }

// SetConfig replaces the engine's configuration, including re-arming the
// budget tracker with the new MaxTimePerUpdate.
func (e *Engine[E]) SetConfig(cfg Config) {
	e.cfg = cfg
	e.tracker.SetMaxTimePerUpdate(cfg.MaxTimePerUpdate)
}

// Stats returns a point-in-time snapshot of the Statistics Surface (§4.7).
// Safe to call from any goroutine (§5).
func (e *Engine[E]) Stats() Stats {
	return e.stats.snapshot(e.tracker.MaxTimePerUpdate())
}

// Tick drives one pass of the RPC Tick Loop (§4.4) followed by the Stream
// Tick Loop (§4.5), then updates the Statistics Surface and adaptive rate
// controller (§4.4.3) from the time actually measured. scene is the
// current game scene for this tick, made available to handlers via
// package rpcctx.
func (e *Engine[E]) Tick(ctx context.Context, scene any) {
	e.tracker.BeginTick()

	e.refreshClients()

	e.pollAndExecute(ctx, scene)

	e.tracker.StartStream()
	streamExecuted := e.streamTick(ctx)
	e.tracker.StopStream()

	tickElapsed := e.tracker.TickElapsed()

	var bytesRead, bytesWritten uint64
	for _, t := range e.transports {
		bytesRead += t.BytesRead()
		bytesWritten += t.BytesWritten()
	}

	e.stats.recordTick(
		tickElapsed,
		e.tracker.PollElapsed(),
		e.tracker.ExecElapsed(),
		e.tracker.StreamElapsed(),
		e.lastTickRPCCount,
		streamExecuted,
		bytesRead,
		bytesWritten,
	)

	next := adjustMaxTimePerUpdate(e.tracker.MaxTimePerUpdate(), tickElapsed, e.tracker.ExecElapsed(), targetTickPeriod)
	e.tracker.SetMaxTimePerUpdate(next)
	e.cfg.MaxTimePerUpdate = next

	if e.logger != nil {
		if b := e.logger.Debug(); b.Enabled() {
			b.Dur(`tick`, tickElapsed).
				Dur(`maxTimePerUpdate`, next).
				Log(`krpc: tick complete`)
		}
	}
}

// refreshClients drives every attached transport's maintenance pass, then
// reconciles the scheduler and stream registry membership against the
// transports' current client lists, firing connect/disconnect events
// (§4.4 step 1, §4.8).
func (e *Engine[E]) refreshClients() {
	for _, t := range e.transports {
		t.Update()
	}
	for _, t := range e.streamTransports {
		t.Update()
	}

	seen := make(map[ClientID]bool, len(e.rpcClients))
	for _, t := range e.transports {
		for _, c := range t.Clients() {
			id := c.ID()
			seen[id] = true
			if _, known := e.rpcClients[id]; !known {
				e.rpcClients[id] = c
				e.scheduler.Add(c)
				e.notifyRPCConnected(c)
			}
		}
	}
	for id, c := range e.rpcClients {
		if !seen[id] || !c.Connected() {
			delete(e.rpcClients, id)
			delete(e.outstanding, id)
			e.scheduler.Remove(c)
			e.notifyRPCDisconnected(c)
		}
	}

	streamSeen := make(map[ClientID]bool, len(e.streamClients))
	for _, t := range e.streamTransports {
		for _, c := range t.Clients() {
			id := c.ID()
			streamSeen[id] = true
			if _, known := e.streamClients[id]; !known {
				e.streamClients[id] = c
				e.streamReg.AttachStreamClient(c)
				e.notifyStreamConnected(c)
			}
		}
	}
	for id, c := range e.streamClients {
		if !streamSeen[id] || !c.Connected() {
			delete(e.streamClients, id)
			e.streamReg.DetachStreamClient(id)
			e.notifyStreamDisconnected(c)
		}
	}
}
