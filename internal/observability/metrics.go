package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danmuck/robolink/internal/protocol/session"
)

const namespace = "robolink"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Status server HTTP requests.",
		},
		[]string{"server", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status server request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"server", "method", "path", "status"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Inbound frames decoded and dispatched, by protocol.",
		},
		[]string{"protocol"},
	)
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Outbound frames written, by protocol.",
		},
		[]string{"protocol"},
	)
	inboundDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "inbound_dropped_total",
			Help:      "Inbound messages dropped, by reason.",
		},
		[]string{"reason"},
	)
	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after an unexpected close.",
		},
	)
	sendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "send_errors_total",
			Help:      "Send calls that failed after passing the connected check.",
		},
	)
	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "Connection state: 0 disconnected, 1 connecting, 2 connected, 3 reconnecting.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesReceived, framesSent, inboundDropped,
			reconnects, sendErrors, connectionState,
		)
	})
}

func RecordHTTPRequest(server, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(server, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(server, method, path, statusLabel).Observe(duration.Seconds())
}

// SessionMetrics feeds connection manager notifications into Prometheus.
type SessionMetrics struct{}

var _ session.Observer = SessionMetrics{}

func NewSessionMetrics() SessionMetrics {
	RegisterMetrics()
	return SessionMetrics{}
}

func (SessionMetrics) StateChanged(_, to session.State) {
	connectionState.Set(float64(to))
}

func (SessionMetrics) FrameReceived(protocol string) {
	framesReceived.WithLabelValues(protocol).Inc()
}

func (SessionMetrics) FrameSent(protocol string) {
	framesSent.WithLabelValues(protocol).Inc()
}

func (SessionMetrics) InboundDropped(reason string) {
	inboundDropped.WithLabelValues(reason).Inc()
}

func (SessionMetrics) ReconnectScheduled() {
	reconnects.Inc()
}

func (SessionMetrics) SendFailed() {
	sendErrors.Inc()
}
