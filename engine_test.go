package krpc_test

import (
	"context"
	"testing"

	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dhropo/krpc"
)

type fakeClient struct {
	id        krpc.ClientID
	connected bool
	requests  []krpc.Request
	responses []krpc.Response
}

func (c *fakeClient) ID() krpc.ClientID      { return c.id }
func (c *fakeClient) Address() string        { return string(c.id) }
func (c *fakeClient) Connected() bool        { return c.connected }
func (c *fakeClient) Stream() krpc.RPCStream { return c }

func (c *fakeClient) DataAvailable() bool { return len(c.requests) > 0 }

func (c *fakeClient) Read() (krpc.Request, error) {
	req := c.requests[0]
	c.requests = c.requests[1:]
	return req, nil
}

func (c *fakeClient) Write(resp krpc.Response) error {
	c.responses = append(c.responses, resp)
	return nil
}

type fakeTransport struct {
	clients []*fakeClient
}

func (t *fakeTransport) Update()              {}
func (t *fakeTransport) BytesRead() uint64    { return 0 }
func (t *fakeTransport) BytesWritten() uint64 { return 0 }

func (t *fakeTransport) Clients() []krpc.RPCClient {
	out := make([]krpc.RPCClient, 0, len(t.clients))
	for _, c := range t.clients {
		out = append(out, c)
	}
	return out
}

// fakeRegistry implements krpc.ServiceRegistry with two procedures: an
// immediate echo, and a suspend-N-ticks procedure exercising the
// continuation pattern (§3).
type fakeRegistry struct{}

func (fakeRegistry) GetProcedureSignature(service, procedure string) (krpc.ProcedureHandle, error) {
	switch service + "." + procedure {
	case "demo.Echo", "demo.Wait":
		return service + "." + procedure, nil
	default:
		return nil, krpc.ErrUnknownProcedure(service, procedure)
	}
}

func (fakeRegistry) GetArguments(handle krpc.ProcedureHandle, encoded []*structpb.Value) (krpc.DecodedArgs, error) {
	return krpc.DecodedArgs(encoded), nil
}

func (fakeRegistry) HandleRequest(ctx context.Context, handle krpc.ProcedureHandle, args krpc.DecodedArgs, resume krpc.ResumeState) (krpc.Outcome, error) {
	switch handle {
	case "demo.Echo":
		return krpc.Done(krpc.OK(args[0])), nil

	case "demo.Wait":
		remaining := 0
		if resume != nil {
			remaining = resume.(int)
		} else {
			remaining = int(args[0].GetNumberValue())
		}
		remaining--
		if remaining <= 0 {
			return krpc.Done(krpc.OK(structpb.NewStringValue("done"))), nil
		}
		return krpc.Suspend(remaining), nil

	default:
		panic("unreachable")
	}
}

func newTestEngine(registry krpc.ServiceRegistry) *krpc.Engine[*stumpy.Event] {
	return krpc.NewEngine[*stumpy.Event](registry, func() float64 { return 0 }, nil)
}

func TestEngine_basicRequestResponse(t *testing.T) {
	client := &fakeClient{id: "c1", connected: true}
	client.requests = append(client.requests, krpc.Request{
		Service: "demo", Procedure: "Echo",
		Args: []*structpb.Value{structpb.NewStringValue("hello")},
	})

	transport := &fakeTransport{clients: []*fakeClient{client}}
	engine := newTestEngine(fakeRegistry{})
	engine.AttachTransport(transport)

	engine.Tick(context.Background(), nil)

	require.Len(t, client.responses, 1)
	resp := client.responses[0]
	require.NoError(t, resp.Err)
	assert.Equal(t, "hello", resp.Result.GetStringValue())

	stats := engine.Stats()
	assert.EqualValues(t, 1, stats.RPCsExecuted)
}

func TestEngine_suspensionResumesAcrossTicks(t *testing.T) {
	client := &fakeClient{id: "c1", connected: true}
	client.requests = append(client.requests, krpc.Request{
		Service: "demo", Procedure: "Wait",
		Args: []*structpb.Value{structpb.NewNumberValue(3)},
	})

	transport := &fakeTransport{clients: []*fakeClient{client}}
	engine := newTestEngine(fakeRegistry{})
	engine.AttachTransport(transport)

	engine.Tick(context.Background(), nil)
	assert.Empty(t, client.responses, "still suspended after tick 1")

	engine.Tick(context.Background(), nil)
	assert.Empty(t, client.responses, "still suspended after tick 2")

	engine.Tick(context.Background(), nil)
	require.Len(t, client.responses, 1, "completes on tick 3")
	assert.Equal(t, "done", client.responses[0].Result.GetStringValue())
}

func TestEngine_disconnectDuringExecutionIsTolerated(t *testing.T) {
	client := &fakeClient{id: "c1", connected: true}
	client.requests = append(client.requests, krpc.Request{
		Service: "demo", Procedure: "Wait",
		Args: []*structpb.Value{structpb.NewNumberValue(2)},
	})

	transport := &fakeTransport{clients: []*fakeClient{client}}
	engine := newTestEngine(fakeRegistry{})
	engine.AttachTransport(transport)

	engine.Tick(context.Background(), nil)
	assert.Empty(t, client.responses)

	client.connected = false
	transport.clients = nil

	require.NotPanics(t, func() {
		engine.Tick(context.Background(), nil)
	})
	assert.Empty(t, client.responses, "dropped client never receives its stale continuation's response")
}

func TestEngine_oneRPCPerUpdateCapsExecutionToOnePerTick(t *testing.T) {
	a := &fakeClient{id: "a", connected: true}
	b := &fakeClient{id: "b", connected: true}
	a.requests = append(a.requests, krpc.Request{Service: "demo", Procedure: "Echo", Args: []*structpb.Value{structpb.NewStringValue("a")}})
	b.requests = append(b.requests, krpc.Request{Service: "demo", Procedure: "Echo", Args: []*structpb.Value{structpb.NewStringValue("b")}})

	transport := &fakeTransport{clients: []*fakeClient{a, b}}
	engine := krpc.NewEngine[*stumpy.Event](fakeRegistry{}, func() float64 { return 0 }, nil, krpc.WithOneRPCPerUpdate[*stumpy.Event](true))
	engine.AttachTransport(transport)

	engine.Tick(context.Background(), nil)
	total := len(a.responses) + len(b.responses)
	assert.Equal(t, 1, total, "only one continuation runs per tick")

	engine.Tick(context.Background(), nil)
	total = len(a.responses) + len(b.responses)
	assert.Equal(t, 2, total, "the other client's request runs on the next tick")
}

func TestEngine_drainsAClientsBacklogWithinOneTickWhenBudgetAllows(t *testing.T) {
	client := &fakeClient{id: "c1", connected: true}
	for _, arg := range []string{"one", "two", "three"} {
		client.requests = append(client.requests, krpc.Request{
			Service: "demo", Procedure: "Echo",
			Args: []*structpb.Value{structpb.NewStringValue(arg)},
		})
	}

	transport := &fakeTransport{clients: []*fakeClient{client}}
	engine := newTestEngine(fakeRegistry{})
	engine.AttachTransport(transport)

	engine.Tick(context.Background(), nil)

	require.Len(t, client.responses, 3, "a generous budget drains the whole backlog in one tick, not one request per tick")
	assert.Equal(t, "one", client.responses[0].Result.GetStringValue())
	assert.Equal(t, "two", client.responses[1].Result.GetStringValue())
	assert.Equal(t, "three", client.responses[2].Result.GetStringValue())

	stats := engine.Stats()
	assert.EqualValues(t, 3, stats.RPCsExecuted)
}
