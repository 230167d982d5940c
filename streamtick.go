package krpc

import "context"

// streamTick is the Stream Tick Loop of §4.5: every standing subscription
// is re-invoked once, and a batch is written to a stream client only when
// at least one of its subscriptions produced a value different from what
// was last sent (§4.5, §8 diffing example). Unlike the RPC loop, the
// stream loop is not budget-gated - every subscription runs exactly once
// per tick, since a partially-evaluated stream tick would make the
// change-diffing state inconsistent.
func (e *Engine[E]) streamTick(ctx context.Context) int {
	writes, executed := e.streamReg.Tick(ctx, e.registry, e.now)

	for _, w := range writes {
		_ = w.Client.Stream().Write(w.Message)
	}

	return executed
}
