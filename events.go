package krpc

// Observer receives lifecycle and activity notifications (§4.8). Every
// method must tolerate being invoked from the tick thread and must not
// call back into any Engine method that mutates state (§5): that would
// re-enter the single-threaded tick loop.
//
// Observers should embed BaseObserver to stay forward-compatible with new
// notifications, in the same spirit as logiface.UnimplementedEvent.
type Observer interface {
	OnRPCClientConnected(RPCClient)
	OnRPCClientDisconnected(RPCClient)
	OnStreamClientConnected(StreamClient)
	OnStreamClientDisconnected(StreamClient)
	OnClientActivity(RPCClient)
}

// BaseObserver implements Observer with no-op methods, so callers can
// embed it and override only the notifications they care about.
type BaseObserver struct{}

func (BaseObserver) OnRPCClientConnected(RPCClient)          {}
func (BaseObserver) OnRPCClientDisconnected(RPCClient)       {}
func (BaseObserver) OnStreamClientConnected(StreamClient)    {}
func (BaseObserver) OnStreamClientDisconnected(StreamClient) {}
func (BaseObserver) OnClientActivity(RPCClient)              {}

var _ Observer = BaseObserver{}

// AddObserver registers obs to receive future lifecycle notifications.
// Observers should be registered before transports are attached, so no
// connection event is missed (§4.8).
func (e *Engine[E]) AddObserver(obs Observer) {
	e.observers = append(e.observers, obs)
}

func (e *Engine[E]) notifyRPCConnected(c RPCClient) {
	for _, o := range e.observers {
		o.OnRPCClientConnected(c)
	}
}

func (e *Engine[E]) notifyRPCDisconnected(c RPCClient) {
	for _, o := range e.observers {
		o.OnRPCClientDisconnected(c)
	}
}

func (e *Engine[E]) notifyStreamConnected(c StreamClient) {
	for _, o := range e.observers {
		o.OnStreamClientConnected(c)
	}
}

func (e *Engine[E]) notifyStreamDisconnected(c StreamClient) {
	for _, o := range e.observers {
		o.OnStreamClientDisconnected(c)
	}
}

func (e *Engine[E]) notifyActivity(c RPCClient) {
	for _, o := range e.observers {
		o.OnClientActivity(c)
	}
}
