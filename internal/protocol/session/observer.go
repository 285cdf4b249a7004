package session

// Inbound drop reasons reported to observers.
const (
	DropFrame           = "frame"
	DropSchema          = "schema"
	DropUnknownProtocol = "unknown_protocol"
	DropCodec           = "codec"
	DropHandler         = "handler"
)

// Observer receives lifecycle and traffic notifications. Methods run on the
// manager's event loop and must not call back into the manager.
type Observer interface {
	StateChanged(from, to State)
	FrameReceived(protocol string)
	FrameSent(protocol string)
	InboundDropped(reason string)
	ReconnectScheduled()
	SendFailed()
}

type NopObserver struct{}

func (NopObserver) StateChanged(State, State) {}
func (NopObserver) FrameReceived(string)      {}
func (NopObserver) FrameSent(string)          {}
func (NopObserver) InboundDropped(string)     {}
func (NopObserver) ReconnectScheduled()       {}
func (NopObserver) SendFailed()               {}

type stateHook struct {
	NopObserver
	fn func(from, to State)
}

func (h stateHook) StateChanged(from, to State) { h.fn(from, to) }

// fanout forwards to every observer in order.
type fanout []Observer

func (f fanout) StateChanged(from, to State) {
	for _, o := range f {
		o.StateChanged(from, to)
	}
}

func (f fanout) FrameReceived(protocol string) {
	for _, o := range f {
		o.FrameReceived(protocol)
	}
}

func (f fanout) FrameSent(protocol string) {
	for _, o := range f {
		o.FrameSent(protocol)
	}
}

func (f fanout) InboundDropped(reason string) {
	for _, o := range f {
		o.InboundDropped(reason)
	}
}

func (f fanout) ReconnectScheduled() {
	for _, o := range f {
		o.ReconnectScheduled()
	}
}

func (f fanout) SendFailed() {
	for _, o := range f {
		o.SendFailed()
	}
}
