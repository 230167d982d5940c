package krpc

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dhropo/krpc/rpcctx"
)

// continuation is the engine's internal realization of §3's
// RequestContinuation and §4.2's contract: an owning handle for one
// request's execution, carrying the originating client (checked for
// disconnect before every run), the resolved procedure, its decoded
// arguments, and whatever resume state a prior suspension captured.
//
// A continuation is "fresh" when resume is nil and it was just built from
// a wire request; it is "resumed" otherwise. The original encoded request
// bytes are never retained past decoding (§4.2).
type continuation struct {
	client RPCClient
	handle ProcedureHandle
	args   DecodedArgs
	resume ResumeState
}

// runResult is the outcome of attempting one continuation, already
// classified per §7: exactly one of response, suspended, or (implicitly,
// via a non-nil response.Err with no status classification) unexpected
// failure applies.
type runResult struct {
	response  Response
	suspended *continuation
}

// run attempts to complete c, converting panics and unexpected handler
// errors into an error Response carrying a stack trace (§4.2, §7 item 2).
// Domain errors (§7 item 1) pass through unchanged, since the registry
// already encoded them into the Response.
func (c *continuation) run(ctx context.Context, scene any, registry ServiceRegistry) (result runResult) {
	defer func() {
		if p := recover(); p != nil {
			result = runResult{response: Response{
				Err: fmt.Errorf("krpc: panic in procedure: %v\n%s", p, debug.Stack()),
			}}
		}
	}()

	ctx = rpcctx.WithActivation(ctx, rpcctx.Activation{Client: c.client, Scene: scene})

	outcome, err := registry.HandleRequest(ctx, c.handle, c.args, c.resume)
	if err != nil {
		return runResult{response: Response{
			Err: fmt.Errorf("krpc: unexpected error: %w\n%s", err, debug.Stack()),
		}}
	}

	if outcome.IsSuspended() {
		return runResult{suspended: &continuation{
			client: c.client,
			handle: c.handle,
			args:   c.args,
			resume: outcome.Resume(),
		}}
	}

	return runResult{response: outcome.Response()}
}
