package main

import (
	"fmt"
	"sync/atomic"

	"github.com/dhropo/krpc"
)

// demoClient is a single in-process RPCClient/RPCStream: the console's
// typed lines become requests pushed onto requests, and responses are
// printed as they're written back by the engine.
type demoClient struct {
	id        krpc.ClientID
	connected atomic.Bool
	requests  chan krpc.Request

	bytesRead    atomic.Uint64
	bytesWritten atomic.Uint64
}

func newDemoClient(id krpc.ClientID) *demoClient {
	c := &demoClient{id: id, requests: make(chan krpc.Request, 16)}
	c.connected.Store(true)
	return c
}

func (c *demoClient) ID() krpc.ClientID      { return c.id }
func (c *demoClient) Address() string        { return "console://" + string(c.id) }
func (c *demoClient) Connected() bool        { return c.connected.Load() }
func (c *demoClient) Stream() krpc.RPCStream { return c }

func (c *demoClient) DataAvailable() bool {
	return len(c.requests) > 0
}

func (c *demoClient) Read() (krpc.Request, error) {
	req := <-c.requests
	c.bytesRead.Add(uint64(len(req.Service) + len(req.Procedure)))
	return req, nil
}

func (c *demoClient) Write(resp krpc.Response) error {
	c.bytesWritten.Add(1)
	if resp.IsError() {
		fmt.Printf("[%s] error: %v\n", c.id, resp.Err)
		return nil
	}
	fmt.Printf("[%s] @%.6f -> %s\n", c.id, resp.Time, resp.Result.String())
	return nil
}

// submit enqueues req for the next poll phase to pick up.
func (c *demoClient) submit(req krpc.Request) { c.requests <- req }

// demoTransport is a krpc.Transport fronting exactly one demoClient - there
// is only one console, so there is only one connection.
type demoTransport struct {
	client *demoClient
}

func newDemoTransport(client *demoClient) *demoTransport {
	return &demoTransport{client: client}
}

func (t *demoTransport) Update() {}

func (t *demoTransport) BytesRead() uint64    { return t.client.bytesRead.Load() }
func (t *demoTransport) BytesWritten() uint64 { return t.client.bytesWritten.Load() }

func (t *demoTransport) Clients() []krpc.RPCClient {
	return []krpc.RPCClient{t.client}
}
