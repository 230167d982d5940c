package krpc

import "context"

// executeRound is steps 2b-2e of the RPC Tick Loop (§4.4): drain the
// active queue in FIFO order, respecting the tick's overall budget before
// every continuation, Config.OneRPCPerUpdate's single-continuation cap,
// and mid-queue disconnects (§4.6, disconnect tolerance). It reports
// whether it ran at least one continuation, so pollAndExecute's outer
// round loop knows whether another round could make progress.
//
// Continuations carried over from a prior tick's suspension (§3) sit at
// the front of the queue, so a client that yielded gets priority over
// freshly polled requests once it becomes runnable again.
func (e *Engine[E]) executeRound(ctx context.Context, scene any) (executedAny bool) {
	e.tracker.StartExec()
	defer e.tracker.StopExec()

	pending := e.active
	e.active = nil

	for len(pending) > 0 {
		cont := pending[0]
		pending = pending[1:]

		if !cont.client.Connected() {
			delete(e.outstanding, cont.client.ID())
			continue
		}

		if e.tracker.Exhausted() {
			pending = append([]*continuation{cont}, pending...)
			break
		}

		result := cont.run(ctx, scene, e.registry)
		e.lastTickRPCCount++
		executedAny = true

		if result.suspended != nil {
			e.yielded = append(e.yielded, result.suspended)
		} else {
			delete(e.outstanding, cont.client.ID())
			e.deliver(cont.client, result.response)
		}

		if e.cfg.OneRPCPerUpdate {
			break
		}
	}

	e.active = append(e.active, pending...)
	return executedAny
}

// deliver writes resp to client's RPC stream, stamping it with the
// engine's universal clock (§6).
func (e *Engine[E]) deliver(client RPCClient, resp Response) {
	resp.Time = e.now()
	stream := client.Stream()
	if stream == nil {
		return
	}
	_ = stream.Write(resp)
}

// pollAndExecute runs the RPC Tick Loop's outer round (§4.4 step 2): poll
// and execute repeat, round after round, until the tick's budget is
// exhausted, Config.OneRPCPerUpdate caps the tick at one continuation, or
// a round neither polls nor executes anything. Without this outer loop a
// single poll round only ever hands each client one fresh continuation
// (the at-most-one-outstanding invariant, §3/§9), so a client with
// several queued requests would advance at most one per tick regardless
// of how much budget remained - this loop is what lets the engine spend
// the whole budget fairly draining every client's backlog in one tick.
//
// Continuations yielded on the previous tick are folded to the front of
// the active queue before the first round, so a resumed continuation
// picks up ahead of newly polled work (§3).
func (e *Engine[E]) pollAndExecute(ctx context.Context, scene any) {
	e.lastTickRPCCount = 0

	if len(e.yielded) > 0 {
		e.active = append(e.yielded, e.active...)
		e.yielded = nil
	}

	for {
		e.pollPhase()

		executedAny := e.executeRound(ctx, scene)

		if e.tracker.Exhausted() {
			return
		}
		if e.cfg.OneRPCPerUpdate {
			return
		}
		if !executedAny && len(e.active) == 0 {
			return
		}
	}
}
