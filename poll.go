package krpc

import (
	"fmt"
)

// pollPhase is step 2a of the RPC Tick Loop (§4.4): round-robin over
// currently connected RPC clients, giving each client with no outstanding
// continuation a chance to hand over one fresh request. A client already
// mid-continuation (active or yielded) is skipped until that continuation
// completes, enforcing the at-most-one-in-flight invariant of §3 and §9.
//
// Polling stops the moment the tick's overall budget is exhausted, or
// after one full round-robin pass when BlockingRecv is false. When
// BlockingRecv is true, polling instead keeps re-scanning for fresh data
// until a continuation is queued, RecvTimeout elapses, or the budget runs
// out (§4.4, step 2a) - the
// engine has no socket to block on, so this is approximated by spinning
// the round-robin scan under a deadline, which is equivalent from the
// scheduler's point of view.
func (e *Engine[E]) pollPhase() {
	e.tracker.StartPoll()
	defer e.tracker.StopPoll()

	deadline := e.clock().Add(e.cfg.RecvTimeout)

	for {
		polledAny := e.pollOneRound()

		if e.tracker.Exhausted() {
			return
		}
		if !e.cfg.BlockingRecv {
			return
		}
		if polledAny || len(e.active) > 0 {
			return
		}
		if !e.clock().Before(deadline) {
			return
		}
	}
}

// pollOneRound performs a single round-robin pass over all known clients,
// enqueuing a fresh continuation for each eligible one, and reports
// whether at least one was enqueued.
func (e *Engine[E]) pollOneRound() bool {
	var polledAny bool

	e.scheduler.Range(func(client RPCClient) bool {
		if e.tracker.Exhausted() {
			return false
		}
		if e.outstanding[client.ID()] {
			return true
		}
		if !client.Connected() {
			return true
		}

		stream := client.Stream()
		if stream == nil || !stream.DataAvailable() {
			return true
		}

		req, err := stream.Read()
		if err != nil {
			e.sendError(client, fmt.Errorf("krpc: failed to read request: %w", err))
			return true
		}

		cont, err := e.buildContinuation(client, req)
		if err != nil {
			e.sendError(client, err)
			return true
		}

		e.active = append(e.active, cont)
		e.outstanding[client.ID()] = true
		polledAny = true
		e.notifyActivity(client)

		return true
	})

	return polledAny
}

// buildContinuation resolves and decodes req into a fresh continuation
// (§4.2, "Decoding"). Resolution and decode failures are domain-classified
// per §7: they are reported straight back to the client rather than
// treated as engine faults.
func (e *Engine[E]) buildContinuation(client RPCClient, req Request) (*continuation, error) {
	handle, err := e.registry.GetProcedureSignature(req.Service, req.Procedure)
	if err != nil {
		return nil, err
	}

	args, err := e.registry.GetArguments(handle, req.Args)
	if err != nil {
		return nil, err
	}

	return &continuation{client: client, handle: handle, args: args}, nil
}

// sendError writes an error Response directly to client, bypassing the
// continuation queue entirely - used for failures that occur before a
// continuation could be built at all.
func (e *Engine[E]) sendError(client RPCClient, err error) {
	resp := Response{Err: err}
	resp.Time = e.now()
	stream := client.Stream()
	if stream == nil {
		return
	}
	_ = stream.Write(resp)
}
