package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dhropo/krpc"
)

// demoHandle is the resolved procedure handle this registry hands back to
// the engine; a plain string is comparable, satisfying krpc.ProcedureHandle
// and the stream registry's deduplication requirement (§4.3).
type demoHandle string

const (
	handleEcho      demoHandle = "echo.Echo"
	handleIncrement demoHandle = "counter.Increment"
	handleCurrent   demoHandle = "counter.Current"
	handleWait      demoHandle = "wait.Ticks"
)

// demoRegistry is a minimal krpc.ServiceRegistry exercising every shape of
// Outcome the engine must handle: an immediate success, a domain error, and
// a cooperative suspension that resumes across several ticks.
type demoRegistry struct {
	counter atomic.Int64
}

func newDemoRegistry() *demoRegistry { return &demoRegistry{} }

func (r *demoRegistry) GetProcedureSignature(service, procedure string) (krpc.ProcedureHandle, error) {
	switch demoHandle(service + "." + procedure) {
	case handleEcho:
		return handleEcho, nil
	case handleIncrement:
		return handleIncrement, nil
	case handleCurrent:
		return handleCurrent, nil
	case handleWait:
		return handleWait, nil
	default:
		return nil, krpc.ErrUnknownProcedure(service, procedure)
	}
}

// GetArguments is a no-op decode: the console already hands over
// structpb.Value arguments, so there is no wire format to unmarshal.
func (r *demoRegistry) GetArguments(handle krpc.ProcedureHandle, encoded []*structpb.Value) (krpc.DecodedArgs, error) {
	return krpc.DecodedArgs(encoded), nil
}

func (r *demoRegistry) HandleRequest(ctx context.Context, handle krpc.ProcedureHandle, args krpc.DecodedArgs, resume krpc.ResumeState) (krpc.Outcome, error) {
	switch handle {
	case handleEcho:
		if len(args) == 0 {
			return krpc.Done(krpc.DomainError(codes.InvalidArgument, "echo.Echo requires one argument")), nil
		}
		return krpc.Done(krpc.OK(args[0])), nil

	case handleIncrement:
		next := r.counter.Add(1)
		return krpc.Done(krpc.OK(structpb.NewNumberValue(float64(next)))), nil

	case handleCurrent:
		return krpc.Done(krpc.OK(structpb.NewNumberValue(float64(r.counter.Load())))), nil

	case handleWait:
		return r.handleWait(args, resume)

	default:
		return krpc.Outcome{}, fmt.Errorf("demoRegistry: unreachable handle %v", handle)
	}
}

// handleWait demonstrates the continuation pattern of §3: called with a
// remaining tick count, it suspends once per tick until the count reaches
// zero, then completes with the number of ticks it actually waited.
func (r *demoRegistry) handleWait(args krpc.DecodedArgs, resume krpc.ResumeState) (krpc.Outcome, error) {
	var remaining, waited float64

	if resume != nil {
		state := resume.(waitState)
		remaining, waited = state.remaining, state.waited
	} else {
		if len(args) == 0 || args[0].GetNumberValue() <= 0 {
			return krpc.Done(krpc.OK(structpb.NewNumberValue(0))), nil
		}
		remaining = args[0].GetNumberValue()
	}

	remaining--
	waited++

	if remaining <= 0 {
		return krpc.Done(krpc.OK(structpb.NewNumberValue(waited))), nil
	}
	return krpc.Suspend(waitState{remaining: remaining, waited: waited}), nil
}

type waitState struct {
	remaining, waited float64
}
