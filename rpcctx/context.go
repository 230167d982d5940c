// Package rpcctx carries the ambient, per-activation values (§4.6) a
// procedure handler needs regardless of how deep it is in the call chain:
// the RPC client that originated the current request, and the game scene
// the host set for this tick.
//
// This is deliberately realized as a context.Context value rather than a
// package-level mutable slot - that is the re-architecture the teacher's
// design notes call for (§9, "Singleton core"): ambient state scoped to one
// activation, not a shared global.
package rpcctx

import "context"

type contextKey struct{}

// Activation is the value installed in a context.Context for the duration
// of one continuation's Run call (§4.6 lifecycle: set immediately before
// invoking Run, cleared on exit - including suspension and error, which in
// the context.Context realization is automatic once the derived context
// falls out of scope).
type Activation struct {
	// Client is the RPC client that originated the call currently
	// executing.
	Client any

	// Scene is the current game scene, set once per tick by the host.
	// Opaque to this package; handlers type-assert to their own scene
	// type.
	Scene any
}

// WithActivation returns a copy of ctx carrying act, to be passed into one
// continuation's Run call.
func WithActivation(ctx context.Context, act Activation) context.Context {
	return context.WithValue(ctx, contextKey{}, act)
}

// FromContext returns the Activation installed by WithActivation, if any.
func FromContext(ctx context.Context) (Activation, bool) {
	act, ok := ctx.Value(contextKey{}).(Activation)
	return act, ok
}

// Client returns the ambient client, or nil if none is set.
func Client(ctx context.Context) any {
	act, _ := FromContext(ctx)
	return act.Client
}

// Scene returns the ambient game scene, or nil if none is set.
func Scene(ctx context.Context) any {
	act, _ := FromContext(ctx)
	return act.Scene
}
