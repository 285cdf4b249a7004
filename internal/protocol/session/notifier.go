package session

import (
	"sync"

	"github.com/danmuck/robolink/internal/dispatch"
	logs "github.com/danmuck/robolink/internal/logging"
)

// notifier queues sink callbacks from the event loop and delivers them in
// order on its own goroutine, so a sink may call Manager methods.
type notifier struct {
	sink dispatch.Sink

	mu    sync.Mutex
	queue []func(dispatch.Sink)
	wake  chan struct{}
}

func newNotifier(sink dispatch.Sink) *notifier {
	return &notifier{sink: sink, wake: make(chan struct{}, 1)}
}

func (n *notifier) push(fn func(dispatch.Sink)) {
	n.mu.Lock()
	n.queue = append(n.queue, fn)
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) take() []func(dispatch.Sink) {
	n.mu.Lock()
	defer n.mu.Unlock()
	batch := n.queue
	n.queue = nil
	return batch
}

// run delivers until stop closes, then flushes what is left.
func (n *notifier) run(stop <-chan struct{}) {
	for {
		select {
		case <-n.wake:
			n.deliver(n.take())
		case <-stop:
			n.deliver(n.take())
			return
		}
	}
}

func (n *notifier) deliver(batch []func(dispatch.Sink)) {
	for _, fn := range batch {
		n.call(fn)
	}
}

func (n *notifier) call(fn func(dispatch.Sink)) {
	defer func() {
		if r := recover(); r != nil {
			logs.Errf("session.notifier sink panicked: %v", r)
		}
	}()
	fn(n.sink)
}

func (n *notifier) OnPositionUpdate(entityID, x, y int64, facing string) {
	n.push(func(s dispatch.Sink) { s.OnPositionUpdate(entityID, x, y, facing) })
}

func (n *notifier) OnLogout(reason string) {
	n.push(func(s dispatch.Sink) { s.OnLogout(reason) })
}

func (n *notifier) OnMessage(sender, text string) {
	n.push(func(s dispatch.Sink) { s.OnMessage(sender, text) })
}
