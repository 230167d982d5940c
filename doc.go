// Package krpc implements a single-threaded, cooperatively scheduled RPC
// execution engine for a game-tick-bound remote-procedure-call server.
//
// Each call to (*Engine).Tick hands the engine a bounded wall-clock
// budget. Within that budget it round-robins across connected clients,
// drains pending requests, runs each to completion or suspension, and
// sends responses. In parallel, Tick re-evaluates every active stream
// subscription and pushes a batched update only when the value changed.
//
// The engine treats sockets, wire framing, and the service registry as
// external collaborators, consumed through the interfaces in package
// rpctypes. Wiring a host loop to this engine means implementing
// rpctypes.Transport, rpctypes.StreamTransport, and
// rpctypes.ServiceRegistry, then calling Engine.AttachTransport and
// Engine.Tick once per frame.
package krpc
