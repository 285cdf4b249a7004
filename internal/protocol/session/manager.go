package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/danmuck/robolink/internal/dispatch"
	logs "github.com/danmuck/robolink/internal/logging"
	"github.com/danmuck/robolink/internal/protocol"
	"github.com/danmuck/robolink/internal/protocol/codec"
	"github.com/danmuck/robolink/internal/protocol/frame"
	"github.com/danmuck/robolink/internal/protocol/schema"
)

var (
	ErrNotStarted     = fmt.Errorf("%w: manager not started", protocol.ErrNotConnected)
	ErrClosed         = fmt.Errorf("%w: manager closed", protocol.ErrNotConnected)
	ErrAlreadyStarted = errors.New("session: manager already started")
)

// Router receives decoded inbound messages. *dispatch.Dispatcher satisfies it.
// Dispatch runs on the event loop: handlers must use conn rather than call
// Manager methods, and a custom router's sink is invoked there as well.
type Router interface {
	Dispatch(conn dispatch.Controller, name string, fields codec.Fields) error
}

// SchemaSource yields the active registry. *schema.Holder satisfies it.
type SchemaSource interface {
	Current() (*schema.Registry, error)
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// OnStateChange registers fn for every state transition.
func OnStateChange(fn func(from, to State)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.observers = append(m.observers, stateHook{fn: fn})
		}
	}
}

// rawProtocolLabel names SendRaw frames in logs and metrics; ids are caller
// controlled and must not become label values.
const rawProtocolLabel = "raw"

type eventKind int

const (
	evConnect eventKind = iota + 1
	evDisconnect
	evSend
	evStop
	evDialed
	evClosed
	evInbound
	evReconnect
)

type event struct {
	kind eventKind
	gen  uint64

	info      ConnectionInfo
	transport Transport
	err       error
	msgKind   MessageKind
	data      []byte

	name       string
	fields     codec.Fields
	raw        bool
	protocolID uint32

	reply chan error
}

// Manager owns one logical connection.
type Manager struct {
	cfg       Config
	dialer    Dialer
	clock     Clock
	schemas   SchemaSource
	router    Router
	sink      dispatch.Sink
	notify    *notifier
	observers []Observer
	obs       Observer

	events  chan event
	done    chan struct{}
	started atomic.Bool
	state   atomic.Int32

	statusMu sync.RWMutex
	status   Status
	infoSnap *ConnectionInfo

	// Owned by the event loop.
	loopCtx   context.Context
	gen       uint64
	info      *ConnectionInfo
	transport Transport
	timer     Timer
}

// NewManager builds a manager. A nil dialer dials websockets, a nil router
// uses the default dispatch table, and a nil sink discards output.
func NewManager(cfg Config, dialer Dialer, schemas SchemaSource, router Router, sink dispatch.Sink, opts ...Option) *Manager {
	cfg = cfg.normalized()
	if sink == nil {
		sink = dispatch.NopSink{}
	}
	notify := newNotifier(sink)
	if router == nil {
		router = dispatch.NewDefault(notify)
	}
	if dialer == nil {
		dialer = WebsocketDialer{ReadLimit: int64(cfg.MaxFrameBytes) + frame.HeaderLen}
	}
	if schemas == nil {
		schemas = schema.NewHolder()
	}
	m := &Manager{
		cfg:     cfg,
		dialer:  dialer,
		clock:   SystemClock(),
		schemas: schemas,
		router:  router,
		sink:    notify,
		notify:  notify,
		events:  make(chan event, cfg.EventQueue),
		done:    make(chan struct{}),
		status:  Status{State: StateDisconnected, StateName: StateDisconnected.String()},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.obs = fanout(m.observers)
	return m
}

// Start runs the event loop until ctx ends or Close is called.
func (m *Manager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.loopCtx = loopCtx
	go m.run(loopCtx, cancel)
	go m.notify.run(m.done)
	logs.Debugf("session.Manager.Start reconnect_delay=%s dial_timeout=%s", m.cfg.ReconnectDelay, m.cfg.DialTimeout)
	return nil
}

// Close disconnects and stops the event loop.
func (m *Manager) Close() error {
	if !m.started.Load() {
		return nil
	}
	err := m.call(event{kind: evStop})
	<-m.done
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Done is closed once the event loop has exited.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Connect replaces any current transport with a new dial to info.Endpoint.
// It returns once the dial is under way; the outcome arrives as a state change.
func (m *Manager) Connect(info ConnectionInfo) error {
	if err := ValidateEndpoint(m.cfg.SecurityMode, info.Endpoint); err != nil {
		return err
	}
	return m.call(event{kind: evConnect, info: info})
}

// Disconnect closes the transport and forgets the stored info so nothing reconnects.
func (m *Manager) Disconnect() error {
	return m.call(event{kind: evDisconnect})
}

// Send encodes fields as the request of the named protocol and writes one frame.
func (m *Manager) Send(name string, fields codec.Fields) error {
	return m.call(event{kind: evSend, name: name, fields: fields})
}

// SendRaw writes an already encoded body under protocolID.
func (m *Manager) SendRaw(protocolID uint32, payload []byte) error {
	return m.call(event{kind: evSend, raw: true, protocolID: protocolID, data: payload})
}

func (m *Manager) State() State {
	return State(m.state.Load())
}

func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

// Info returns the stored connection info, if any.
func (m *Manager) Info() (ConnectionInfo, bool) {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	if m.infoSnap == nil {
		return ConnectionInfo{}, false
	}
	return *m.infoSnap, true
}

func (m *Manager) call(ev event) error {
	if !m.started.Load() {
		return ErrNotStarted
	}
	ev.reply = make(chan error, 1)
	if !m.post(ev) {
		return ErrClosed
	}
	select {
	case err := <-ev.reply:
		return err
	case <-m.done:
		select {
		case err := <-ev.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// post enqueues ev. It reports false once the loop has exited.
func (m *Manager) post(ev event) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) run(ctx context.Context, cancel context.CancelFunc) {
	defer close(m.done)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			m.disconnect("shutdown")
			logs.Debugf("session.Manager.run exit err=%v", ctx.Err())
			return
		case ev := <-m.events:
			if ev.kind == evStop {
				m.disconnect("shutdown")
				ev.reply <- nil
				return
			}
			m.handle(ev)
		}
	}
}

func (m *Manager) handle(ev event) {
	switch ev.kind {
	case evConnect:
		m.connect(ev.info)
		ev.reply <- nil
	case evDisconnect:
		m.disconnect("client disconnect")
		ev.reply <- nil
	case evSend:
		ev.reply <- m.send(ev)
	case evDialed:
		m.dialed(ev)
	case evClosed:
		m.closed(ev)
	case evInbound:
		m.inbound(ev)
	case evReconnect:
		m.reconnect(ev)
	}
}

func (m *Manager) connect(info ConnectionInfo) {
	m.stopTimer()
	m.dropTransport("superseded by new connect")
	m.gen++
	stored := info
	m.info = &stored
	m.updateStatus(func(s *Status) {
		s.SessionID = uuid.NewString()
		s.Endpoint = RedactEndpoint(info.Endpoint)
		s.ConnectedAt = time.Time{}
		s.LastError = ""
	}, &stored)
	m.setState(StateConnecting)
	logs.Infof("session.Manager connect endpoint=%q gen=%d", RedactEndpoint(info.Endpoint), m.gen)
	go m.dial(m.gen, info.Endpoint)
}

func (m *Manager) dial(gen uint64, endpoint string) {
	ctx, cancel := context.WithTimeout(m.loopCtx, m.cfg.DialTimeout)
	defer cancel()
	t, err := m.dialer.Dial(ctx, endpoint)
	if err != nil && !errors.Is(err, protocol.ErrTransport) {
		err = fmt.Errorf("%w: %v", protocol.ErrTransport, err)
	}
	if !m.post(event{kind: evDialed, gen: gen, transport: t, err: err}) && t != nil {
		_ = t.Close("manager closed")
	}
}

func (m *Manager) dialed(ev event) {
	if ev.gen != m.gen || m.State() != StateConnecting {
		if ev.transport != nil {
			logs.Debugf("session.Manager discard stale dial gen=%d current=%d", ev.gen, m.gen)
			_ = ev.transport.Close("superseded")
		}
		return
	}
	if ev.err != nil {
		logs.Warnf("session.Manager dial failed err=%v", ev.err)
		m.setLastError(ev.err)
		m.lostConnection()
		return
	}
	m.transport = ev.transport
	go m.read(ev.gen, ev.transport)
	m.updateStatus(func(s *Status) { s.ConnectedAt = time.Now() }, m.info)
	m.setState(StateConnected)
	m.sink.OnMessage(dispatch.SenderSystem, "connection established")
}

func (m *Manager) read(gen uint64, t Transport) {
	for {
		kind, data, err := t.ReadMessage(m.loopCtx)
		if err != nil {
			m.post(event{kind: evClosed, gen: gen, err: err})
			return
		}
		if !m.post(event{kind: evInbound, gen: gen, msgKind: kind, data: data}) {
			return
		}
	}
}

func (m *Manager) closed(ev event) {
	if ev.gen != m.gen || m.transport == nil {
		return
	}
	logs.Warnf("session.Manager transport closed gen=%d err=%v", ev.gen, ev.err)
	m.setLastError(ev.err)
	m.lostConnection()
}

func (m *Manager) lostConnection() {
	m.dropTransport("connection lost")
	if m.info == nil {
		m.setState(StateDisconnected)
		return
	}
	m.setState(StateReconnecting)
	m.stopTimer()
	gen := m.gen
	m.timer = m.clock.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.post(event{kind: evReconnect, gen: gen})
	})
	m.updateStatus(func(s *Status) { s.Reconnects++ }, m.info)
	m.obs.ReconnectScheduled()
	m.sink.OnMessage(dispatch.SenderSystem, fmt.Sprintf("connection lost, reconnecting in %s", m.cfg.ReconnectDelay))
}

func (m *Manager) reconnect(ev event) {
	if ev.gen != m.gen || m.info == nil || m.State() != StateReconnecting {
		return
	}
	m.timer = nil
	logs.Infof("session.Manager reconnect gen=%d", m.gen)
	m.connect(*m.info)
}

func (m *Manager) disconnect(reason string) {
	m.info = nil
	m.stopTimer()
	m.dropTransport(reason)
	m.gen++
	m.updateStatus(func(s *Status) { s.ConnectedAt = time.Time{} }, nil)
	m.setState(StateDisconnected)
}

func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) dropTransport(reason string) {
	if m.transport == nil {
		return
	}
	t := m.transport
	m.transport = nil
	if err := t.Close(reason); err != nil {
		logs.Debugf("session.Manager close transport reason=%q err=%v", reason, err)
	}
}

func (m *Manager) send(ev event) error {
	if m.State() != StateConnected || m.transport == nil {
		return protocol.ErrNotConnected
	}
	name := ev.name
	id := ev.protocolID
	payload := ev.data
	if ev.raw {
		name = rawProtocolLabel
	} else {
		reg, err := m.schemas.Current()
		if err != nil {
			return m.sendFailed(name, err)
		}
		p, err := reg.ByName(name)
		if err != nil {
			return m.sendFailed(name, err)
		}
		payload, err = codec.Encode(p, ev.fields)
		if err != nil {
			return m.sendFailed(name, err)
		}
		id = p.Tag
	}
	b, err := frame.Encode(id, payload)
	if err != nil {
		return m.sendFailed(name, err)
	}
	ctx, cancel := context.WithTimeout(m.loopCtx, m.cfg.WriteTimeout)
	defer cancel()
	if err := m.transport.WriteMessage(ctx, b); err != nil {
		if !errors.Is(err, protocol.ErrTransport) {
			err = fmt.Errorf("%w: %v", protocol.ErrTransport, err)
		}
		return m.sendFailed(name, err)
	}
	m.obs.FrameSent(name)
	logs.Debugf("session.Manager send protocol=%s id=%d bytes=%d", name, id, len(b))
	return nil
}

func (m *Manager) sendFailed(name string, err error) error {
	m.obs.SendFailed()
	logs.Warnf("session.Manager send protocol=%s err=%v", name, err)
	return err
}

func (m *Manager) inbound(ev event) {
	if ev.gen != m.gen || m.transport == nil {
		return
	}
	if ev.msgKind == MessageText {
		m.sink.OnMessage(dispatch.SenderServer, string(ev.data))
		return
	}
	f, err := frame.DecodeWithLimits(ev.data, m.cfg.frameLimits())
	if err != nil {
		m.dropInbound(DropFrame, err)
		return
	}
	reg, err := m.schemas.Current()
	if err != nil {
		m.dropInbound(DropSchema, err)
		return
	}
	p, err := reg.ByTag(f.ProtocolID)
	if err != nil {
		m.dropInbound(DropUnknownProtocol, err)
		return
	}
	fields, err := codec.Decode(p, f.Payload)
	if err != nil {
		m.dropInbound(DropCodec, err)
		return
	}
	m.obs.FrameReceived(p.Name)
	if err := m.router.Dispatch(loopConn{m}, p.Name, fields); err != nil {
		m.dropInbound(DropHandler, err)
	}
}

func (m *Manager) dropInbound(reason string, err error) {
	m.obs.InboundDropped(reason)
	logs.Warnf("session.Manager drop inbound reason=%s err=%v", reason, err)
}

func (m *Manager) setState(to State) {
	from := State(m.state.Swap(int32(to)))
	if from == to {
		return
	}
	m.statusMu.Lock()
	m.status.State = to
	m.status.StateName = to.String()
	m.statusMu.Unlock()
	logs.Debugf("session.Manager state %s -> %s", from, to)
	m.obs.StateChanged(from, to)
}

func (m *Manager) setLastError(err error) {
	if err == nil {
		return
	}
	m.updateStatus(func(s *Status) { s.LastError = err.Error() }, m.info)
}

func (m *Manager) updateStatus(fn func(*Status), info *ConnectionInfo) {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()
	fn(&m.status)
	if info == nil {
		m.infoSnap = nil
		return
	}
	snap := *info
	m.infoSnap = &snap
}

// loopConn is handed to handlers, which run on the event loop.
type loopConn struct {
	m *Manager
}

func (c loopConn) Disconnect() {
	c.m.disconnect("disconnect requested by handler")
}
