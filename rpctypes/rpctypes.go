// Package rpctypes holds the data model shared by the engine and the
// collaborator interfaces it consumes (§3, §6): addressed requests,
// responses, decoded argument tuples, and the external transport and
// service-registry contracts. It is a leaf package so that both the root
// engine package and streamreg can depend on it without a cycle.
package rpctypes

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ClientID is a stable, unique identifier shared between an RPC client and
// its (optional) stream peer (§3).
type ClientID string

// ProcedureHandle is an opaque, comparable handle resolved from a
// (service, procedure) name pair by a ServiceRegistry. Comparability is
// relied on by the stream registry's deduplication (§4.3).
type ProcedureHandle any

// DecodedArgs is a frozen, ordered tuple of decoded positional arguments.
// Equality is sequence equality of the decoded values (§4.3, §9 "Result-
// equality comparison"), never raw byte or reference equality.
type DecodedArgs []*structpb.Value

// Equal reports whether a and b hold the same ordered tuple of decoded
// values, comparing element-wise with proto.Equal.
func (a DecodedArgs) Equal(b DecodedArgs) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !proto.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// ValueEqual reports whether two opaque result/argument values are equal,
// treating nil as a value distinct from any *structpb.Value (used by the
// stream tick loop's "never sent" cache sentinel, §3).
func ValueEqual(a, b *structpb.Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return proto.Equal(a, b)
}

// Request is an addressed call: a service and procedure name, plus
// positional arguments as opaque encoded values. Immutable once
// constructed (§3).
type Request struct {
	Service   string
	Procedure string
	Args      []*structpb.Value
}

// Response is either a successful return value plus a server timestamp, or
// an error. Exactly one of Result or Err is meaningful; IsError reports
// which (§3).
type Response struct {
	Result *structpb.Value
	Time   float64
	Err    error
}

// IsError reports whether this Response carries an error.
func (r Response) IsError() bool { return r.Err != nil }

// OK constructs a successful Response. Time is stamped by the caller
// (Engine) immediately before the response is sent (§4.4.1).
func OK(result *structpb.Value) Response {
	return Response{Result: result}
}

// DomainError constructs a Response carrying a domain error (§7, taxonomy
// item 1): the procedure rejected the call. Surfaced to the client as a
// short human-readable message, with no stack trace.
func DomainError(code codes.Code, format string, args ...any) Response {
	return Response{Err: status.Errorf(code, format, args...)}
}

// IsDomainError reports whether err was constructed via DomainError (or any
// other *status.Status-carrying error), as opposed to an unexpected
// failure. This is the classification boundary described in §6 and §7:
// domain errors are distinguishable from unexpected ones so the engine can
// decide whether to attach a stack trace.
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := status.FromError(err)
	return ok
}

// ErrNoStreamChannel is returned by a stream registry when a stream
// subscription targets an RPC client with no corresponding stream peer
// (§4.3).
var ErrNoStreamChannel = status.Error(codes.FailedPrecondition, "rpctypes: no stream channel for client")

// ErrUnknownProcedure is a convenience domain error for service registries
// to return from GetProcedureSignature.
func ErrUnknownProcedure(service, procedure string) error {
	return status.Errorf(codes.NotFound, "rpctypes: unknown procedure %s.%s", service, procedure)
}

// StreamMessage is a batch of responses pushed to a stream client in a
// single write, in the insertion order of the StreamRequests that produced
// them (§4.5).
type StreamMessage struct {
	Responses []Response
}

// ResumeState is the opaque, handler-owned partial state captured when a
// continuation suspends (§3, §4.2). It is round-tripped unexamined by the
// engine.
type ResumeState any

// Outcome is the tagged result of one attempt to run a continuation (§4.2,
// §9 "Exception-based suspension"): either the call is Done with a
// Response, or it Suspended, carrying the state needed to resume it on a
// later tick.
type Outcome struct {
	done      bool
	response  Response
	suspended bool
	resume    ResumeState
}

// Done constructs a completed Outcome.
func Done(resp Response) Outcome { return Outcome{done: true, response: resp} }

// Suspend constructs a suspended Outcome, capturing resume for the next
// attempt.
func Suspend(resume ResumeState) Outcome { return Outcome{suspended: true, resume: resume} }

// IsDone reports whether this Outcome completed with a Response.
func (o Outcome) IsDone() bool { return o.done }

// IsSuspended reports whether this Outcome suspended.
func (o Outcome) IsSuspended() bool { return o.suspended }

// Response returns the completed Response. Only meaningful if IsDone.
func (o Outcome) Response() Response { return o.response }

// Resume returns the captured resume state. Only meaningful if
// IsSuspended.
func (o Outcome) Resume() ResumeState { return o.resume }

// String implements fmt.Stringer, for logging.
func (o Outcome) String() string {
	switch {
	case o.suspended:
		return "Outcome(suspended)"
	case o.done && o.response.IsError():
		return fmt.Sprintf("Outcome(done, error=%v)", o.response.Err)
	default:
		return "Outcome(done)"
	}
}
