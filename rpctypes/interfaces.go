package rpctypes

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

type (
	// RPCClient is a non-owning reference to one connected client's RPC
	// side (§3, §6). The transport collaborator owns the real connection
	// and may mark it disconnected at any time; the engine must tolerate
	// that happening between any two method calls.
	RPCClient interface {
		ID() ClientID
		Address() string
		Connected() bool
		Stream() RPCStream
	}

	// RPCStream is one RPCClient's request/response channel.
	RPCStream interface {
		// DataAvailable reports whether a complete request frame is
		// ready to Read without blocking.
		DataAvailable() bool
		// Read consumes one complete request frame. Only valid to call
		// when DataAvailable reports true.
		Read() (Request, error)
		// Write sends a completed Response back to the client, in the
		// same order its request was read (§4.2).
		Write(Response) error
	}

	// StreamClient is the parallel identity for a client's streaming
	// channel (§3), correlated to its RPC peer by ClientID.
	StreamClient interface {
		ID() ClientID
		Connected() bool
		Stream() StreamWriter
	}

	// StreamWriter is the outbound channel for one StreamClient's
	// batched stream messages.
	StreamWriter interface {
		Write(StreamMessage) error
	}

	// Transport drives the RPC side of zero or more clients (§6). Update
	// performs one non-blocking maintenance pass (accept connections,
	// progress handshakes); Clients enumerates currently known clients.
	Transport interface {
		Update()
		BytesRead() uint64
		BytesWritten() uint64
		Clients() []RPCClient
	}

	// StreamTransport is Transport's counterpart for the streaming
	// channel.
	StreamTransport interface {
		Update()
		Clients() []StreamClient
	}

	// ServiceRegistry resolves (service, procedure) names to executable
	// handlers, decodes wire arguments, and executes calls (§6).
	//
	// HandleRequest is also the suspension point: resume is nil for a
	// fresh call, and is whatever a prior Outcome.Resume returned for a
	// resumed one. A domain error (§7 taxonomy item 1) is conveyed via a
	// Response carrying Err, not via the returned error; the returned
	// error is reserved for unexpected failures (§7 taxonomy item 2),
	// which the engine will attach a stack trace to.
	ServiceRegistry interface {
		GetProcedureSignature(service, procedure string) (ProcedureHandle, error)
		GetArguments(handle ProcedureHandle, encoded []*structpb.Value) (DecodedArgs, error)
		HandleRequest(ctx context.Context, handle ProcedureHandle, args DecodedArgs, resume ResumeState) (Outcome, error)
	}

	// Clock supplies the host simulation's authoritative time, embedded
	// into every outgoing Response (§6, "Universal time").
	Clock func() float64
)
