// Package dispatch routes decoded inbound messages to semantic handlers by
// protocol name.
package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	logs "github.com/danmuck/robolink/internal/logging"
	"github.com/danmuck/robolink/internal/protocol/codec"
)

// Sink renders decoded application messages. Implementations live outside the core.
// A session.Manager delivers to its sink in order on a separate goroutine, so
// callbacks may call back into the manager (e.g. Disconnect from OnLogout).
type Sink interface {
	OnPositionUpdate(entityID int64, x, y int64, facing string)
	OnLogout(reason string)
	OnMessage(sender, text string)
}

// Controller is the owning connection as seen from a handler.
type Controller interface {
	Disconnect()
}

// Context carries what a handler may touch while handling one message.
type Context struct {
	Protocol string
	Sink     Sink
	Conn     Controller
}

type Handler func(ctx Context, fields codec.Fields) error

// Dispatcher maps protocol names to handlers. Unregistered names fall
// through to the default handler, which never fails.
type Dispatcher struct {
	mu       sync.RWMutex
	sink     Sink
	handlers map[string]Handler
	fallback Handler
}

func New(sink Sink) *Dispatcher {
	if sink == nil {
		sink = NopSink{}
	}
	return &Dispatcher{
		sink:     sink,
		handlers: make(map[string]Handler),
		fallback: HandleUnknown,
	}
}

// Register binds name to h, replacing any previous binding.
func (d *Dispatcher) Register(name string, h Handler) {
	key := strings.TrimSpace(name)
	if key == "" || h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[key] = h
}

// SetFallback replaces the handler for unregistered protocol names.
func (d *Dispatcher) SetFallback(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = h
}

// Routes returns registered protocol names in sorted order.
func (d *Dispatcher) Routes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the handler for name. Handler panics are recovered and
// returned as errors so a bad message cannot take down the caller.
func (d *Dispatcher) Dispatch(conn Controller, name string, fields codec.Fields) (err error) {
	d.mu.RLock()
	h, ok := d.handlers[name]
	if !ok {
		h = d.fallback
	}
	d.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: handler %q panicked: %v", name, r)
		}
	}()
	logs.Debugf("dispatch.Dispatch protocol=%q routed=%t fields=%d", name, ok, len(fields))
	return h(Context{Protocol: name, Sink: d.sink, Conn: conn}, fields)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) OnPositionUpdate(int64, int64, int64, string) {}
func (NopSink) OnLogout(string)                               {}
func (NopSink) OnMessage(string, string)                      {}
