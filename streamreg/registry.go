// Package streamreg implements the Stream Registry (§4.3): per-stream-
// client standing subscriptions, deduplicated by (procedure, decoded
// argument tuple), each remembering the last value it sent so the Stream
// Tick Loop (§4.5) can push only on change.
package streamreg

import (
	"context"
	"fmt"

	"golang.org/x/exp/slices"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dhropo/krpc/rpctypes"
)

// StreamID identifies one StreamRequest, unique within its stream client
// (§3). Allocation is monotonic per client; uniqueness across clients is
// not required (§4.3).
type StreamID uint64

type entry struct {
	id       StreamID
	handle   rpctypes.ProcedureHandle
	args     rpctypes.DecodedArgs
	lastSent *structpb.Value
	lastErr  error
	sent     bool // false iff this entry has never produced a sent response ("never sent", §3)
}

type client struct {
	peer    rpctypes.StreamClient
	entries []*entry // insertion order, significant for batch ordering (§4.5)
	byID    map[StreamID]*entry
	nextID  StreamID
}

// Registry owns every stream client's active StreamRequests and their
// result caches (§3, Stream Registry state). Not safe for concurrent use;
// owned by the single tick thread.
type Registry struct {
	clients map[rpctypes.ClientID]*client
	order   []rpctypes.ClientID // insertion order of stream clients
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{clients: make(map[rpctypes.ClientID]*client)}
}

// AttachStreamClient registers sc as resolvable by AddStream. A no-op if
// already attached.
func (r *Registry) AttachStreamClient(sc rpctypes.StreamClient) {
	id := sc.ID()
	if _, ok := r.clients[id]; ok {
		return
	}
	r.clients[id] = &client{peer: sc, byID: make(map[StreamID]*entry)}
	r.order = append(r.order, id)
}

// DetachStreamClient removes the stream client and every StreamRequest
// (and cache entry) it owned, e.g. on stream-client disconnect.
func (r *Registry) DetachStreamClient(id rpctypes.ClientID) {
	if _, ok := r.clients[id]; !ok {
		return
	}
	delete(r.clients, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}

// AddStream resolves rpcClientID's stream peer, resolves the procedure and
// decodes its arguments via registry, then either returns the id of an
// existing, identical StreamRequest (deduplication, §4.3) or allocates a
// new one. Errors here are the "stream setup errors" of §7, item 5: they
// never poison the Registry.
func (r *Registry) AddStream(registry rpctypes.ServiceRegistry, rpcClientID rpctypes.ClientID, req rpctypes.Request) (StreamID, error) {
	c, ok := r.clients[rpcClientID]
	if !ok {
		return 0, rpctypes.ErrNoStreamChannel
	}

	handle, err := registry.GetProcedureSignature(req.Service, req.Procedure)
	if err != nil {
		return 0, err
	}

	args, err := registry.GetArguments(handle, req.Args)
	if err != nil {
		return 0, err
	}

	if i := slices.IndexFunc(c.entries, func(e *entry) bool {
		return e.handle == handle && e.args.Equal(args)
	}); i >= 0 {
		return c.entries[i].id, nil
	}

	c.nextID++
	e := &entry{id: c.nextID, handle: handle, args: args}
	c.entries = append(c.entries, e)
	c.byID[e.id] = e

	return e.id, nil
}

// RemoveStream deletes the StreamRequest and its cache entry. Idempotent:
// no error if id is unknown (§4.3).
func (r *Registry) RemoveStream(rpcClientID rpctypes.ClientID, id StreamID) {
	c, ok := r.clients[rpcClientID]
	if !ok {
		return
	}
	e, ok := c.byID[id]
	if !ok {
		return
	}
	delete(c.byID, id)
	if i := slices.Index(c.entries, e); i >= 0 {
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
	}
}

// Len reports the number of active StreamRequests across every stream
// client, for diagnostics and tests.
func (r *Registry) Len() int {
	var n int
	for _, c := range r.clients {
		n += len(c.entries)
	}
	return n
}

// Write pairs a StreamMessage with the stream client it should be written
// to.
type Write struct {
	Client  rpctypes.StreamClient
	Message rpctypes.StreamMessage
}

// Tick runs the Stream Tick Loop (§4.5): every active StreamRequest, for
// every stream client, is re-evaluated; a StreamMessage batch is produced
// per stream client and returned for writing, omitting clients with
// nothing changed to send. executed reports the total number of procedure
// invocations attempted this tick (sent or suppressed), matching
// StreamRPCsExecuted (§4.7). now is read once per call, and every response
// sent by that call carries the same timestamp.
func (r *Registry) Tick(ctx context.Context, registry rpctypes.ServiceRegistry, now rpctypes.Clock) (writes []Write, executed int) {
	tickTime := now()

	for _, id := range r.order {
		c := r.clients[id]
		if len(c.entries) == 0 {
			continue
		}

		var msg rpctypes.StreamMessage
		for _, e := range c.entries {
			executed++

			resp := invoke(ctx, registry, e)

			if !e.sent || responseChanged(e, resp) {
				e.sent = true
				e.lastSent = resp.Result
				e.lastErr = resp.Err
				resp.Time = tickTime
				msg.Responses = append(msg.Responses, resp)
			}
		}

		if len(msg.Responses) > 0 {
			writes = append(writes, Write{Client: c.peer, Message: msg})
		}
	}

	return writes, executed
}

// responseChanged compares resp to entry's cached last-sent response,
// using decoded-value equality (never byte or reference equality, per §9
// "Result-equality comparison"). A transition into or out of an error
// state always counts as a change.
func responseChanged(e *entry, resp rpctypes.Response) bool {
	if resp.IsError() != (e.lastErr != nil) {
		return true
	}
	if resp.IsError() {
		return resp.Err.Error() != e.lastErr.Error()
	}
	return !rpctypes.ValueEqual(e.lastSent, resp.Result)
}

// invoke calls the registry for one StreamRequest, synthesizing an error
// Response for unexpected failures (including panics) in the same spirit
// as the RPC execute phase (§7, §4.5 item 1).
func invoke(ctx context.Context, registry rpctypes.ServiceRegistry, e *entry) (resp rpctypes.Response) {
	defer func() {
		if p := recover(); p != nil {
			resp = rpctypes.Response{Err: fmt.Errorf("streamreg: panic in procedure: %v", p)}
		}
	}()

	outcome, err := registry.HandleRequest(ctx, e.handle, e.args, nil)
	if err != nil {
		return rpctypes.Response{Err: fmt.Errorf("streamreg: unexpected error: %w", err)}
	}
	if outcome.IsSuspended() {
		// streaming procedures are expected to be side-effect-free and
		// fast (§4.5); a suspend here is a registry bug, not a domain
		// error.
		return rpctypes.Response{Err: fmt.Errorf("streamreg: procedure suspended during a stream tick")}
	}
	return outcome.Response()
}
