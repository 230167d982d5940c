package streamreg_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dhropo/krpc/rpctypes"
	"github.com/dhropo/krpc/streamreg"
)

type fakeStreamClient struct {
	id rpctypes.ClientID
}

func (c *fakeStreamClient) ID() rpctypes.ClientID         { return c.id }
func (c *fakeStreamClient) Connected() bool               { return true }
func (c *fakeStreamClient) Stream() rpctypes.StreamWriter { return nil }

type fakeRegistry struct {
	results map[string]func() (*structpb.Value, error)
}

func (r *fakeRegistry) GetProcedureSignature(service, procedure string) (rpctypes.ProcedureHandle, error) {
	key := service + "." + procedure
	if _, ok := r.results[key]; !ok {
		return nil, rpctypes.ErrUnknownProcedure(service, procedure)
	}
	return key, nil
}

func (r *fakeRegistry) GetArguments(handle rpctypes.ProcedureHandle, encoded []*structpb.Value) (rpctypes.DecodedArgs, error) {
	return rpctypes.DecodedArgs(encoded), nil
}

func (r *fakeRegistry) HandleRequest(ctx context.Context, handle rpctypes.ProcedureHandle, args rpctypes.DecodedArgs, resume rpctypes.ResumeState) (rpctypes.Outcome, error) {
	fn := r.results[handle.(string)]
	v, err := fn()
	if err != nil {
		return rpctypes.Outcome{}, err
	}
	return rpctypes.Done(rpctypes.OK(v)), nil
}

func num(n float64) *structpb.Value { return structpb.NewNumberValue(n) }

func TestAddStream_dedupesIdenticalProcedureAndArgs(t *testing.T) {
	r := streamreg.New()
	sc := &fakeStreamClient{id: "c1"}
	r.AttachStreamClient(sc)

	reg := &fakeRegistry{results: map[string]func() (*structpb.Value, error){
		"svc.proc": func() (*structpb.Value, error) { return num(42), nil },
	}}

	req := rpctypes.Request{Service: "svc", Procedure: "proc", Args: []*structpb.Value{num(1)}}

	id1, err := r.AddStream(reg, "c1", req)
	require.NoError(t, err)

	id2, err := r.AddStream(reg, "c1", req)
	require.NoError(t, err)

	require.Equal(t, id1, id2)
	require.Equal(t, 1, r.Len())
}

func TestAddStream_unknownClientFails(t *testing.T) {
	r := streamreg.New()
	reg := &fakeRegistry{results: map[string]func() (*structpb.Value, error){}}
	_, err := r.AddStream(reg, "ghost", rpctypes.Request{Service: "svc", Procedure: "proc"})
	require.ErrorIs(t, err, rpctypes.ErrNoStreamChannel)
}

func TestRemoveStream_isIdempotentAndFreesID(t *testing.T) {
	r := streamreg.New()
	sc := &fakeStreamClient{id: "c1"}
	r.AttachStreamClient(sc)

	reg := &fakeRegistry{results: map[string]func() (*structpb.Value, error){
		"svc.proc": func() (*structpb.Value, error) { return num(1), nil },
	}}
	req := rpctypes.Request{Service: "svc", Procedure: "proc"}

	id, err := r.AddStream(reg, "c1", req)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	r.RemoveStream("c1", id)
	require.Equal(t, 0, r.Len())

	r.RemoveStream("c1", id) // idempotent
	require.Equal(t, 0, r.Len())

	id2, err := r.AddStream(reg, "c1", req)
	require.NoError(t, err)
	require.NotEqual(t, id, id2)
}

func TestTick_sendsOnChangeOnly(t *testing.T) {
	r := streamreg.New()
	sc := &fakeStreamClient{id: "c1"}
	r.AttachStreamClient(sc)

	value := num(42)
	reg := &fakeRegistry{results: map[string]func() (*structpb.Value, error){
		"svc.proc": func() (*structpb.Value, error) { return value, nil },
	}}

	_, err := r.AddStream(reg, "c1", rpctypes.Request{Service: "svc", Procedure: "proc"})
	require.NoError(t, err)

	clockTick := 0
	clock := func() float64 { clockTick++; return float64(clockTick) }

	// tick 1: first value, always sent
	writes, executed := r.Tick(context.Background(), reg, clock)
	require.Equal(t, 1, executed)
	require.Len(t, writes, 1)
	require.Len(t, writes[0].Message.Responses, 1)
	require.Equal(t, float64(1), writes[0].Message.Responses[0].Time)
	if diff := cmp.Diff(num(42), writes[0].Message.Responses[0].Result, protocmp.Transform()); diff != "" {
		t.Errorf("tick 1 decoded value mismatch (-want +got):\n%s", diff)
	}

	// tick 2: same value, suppressed
	writes, executed = r.Tick(context.Background(), reg, clock)
	require.Equal(t, 1, executed)
	require.Empty(t, writes)

	// tick 3: value changes, sent again
	value = num(43)
	writes, executed = r.Tick(context.Background(), reg, clock)
	require.Equal(t, 1, executed)
	require.Len(t, writes, 1)
	require.Equal(t, float64(3), writes[0].Message.Responses[0].Time)
	if diff := cmp.Diff(num(43), writes[0].Message.Responses[0].Result, protocmp.Transform()); diff != "" {
		t.Errorf("tick 3 decoded value mismatch (-want +got):\n%s", diff)
	}
}

func TestTick_emptyBatchesAreNotReturned(t *testing.T) {
	r := streamreg.New()
	sc := &fakeStreamClient{id: "c1"}
	r.AttachStreamClient(sc)

	reg := &fakeRegistry{results: map[string]func() (*structpb.Value, error){}}

	writes, executed := r.Tick(context.Background(), reg, func() float64 { return 0 })
	require.Empty(t, writes)
	require.Equal(t, 0, executed)
}

func TestDetachStreamClient_removesEverything(t *testing.T) {
	r := streamreg.New()
	sc := &fakeStreamClient{id: "c1"}
	r.AttachStreamClient(sc)

	reg := &fakeRegistry{results: map[string]func() (*structpb.Value, error){
		"svc.proc": func() (*structpb.Value, error) { return num(1), nil },
	}}
	_, err := r.AddStream(reg, "c1", rpctypes.Request{Service: "svc", Procedure: "proc"})
	require.NoError(t, err)

	r.DetachStreamClient("c1")
	require.Equal(t, 0, r.Len())

	_, err = r.AddStream(reg, "c1", rpctypes.Request{Service: "svc", Procedure: "proc"})
	require.ErrorIs(t, err, rpctypes.ErrNoStreamChannel)
}
