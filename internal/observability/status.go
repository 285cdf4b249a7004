package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logs "github.com/danmuck/robolink/internal/logging"
	"github.com/danmuck/robolink/internal/protocol/session"
)

// StatusSource reports the live connection state. *session.Manager satisfies it.
type StatusSource interface {
	Status() session.Status
}

// StatusServer exposes health, connection status and metrics over HTTP.
type StatusServer struct {
	name    string
	source  StatusSource
	router  *gin.Engine
	started time.Time
	srv     *http.Server
}

func NewStatusServer(name string, source StatusSource, corsOrigins []string) *StatusServer {
	RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(ComponentLogger(name)))
	r.Use(RequestMetricsMiddleware(name))
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: corsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &StatusServer{name: name, source: source, router: r, started: time.Now()}
	s.srv = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	s.registerRoutes()
	return s
}

func (s *StatusServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.name,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		if s.source == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no session"})
			return
		}
		c.JSON(http.StatusOK, s.source.Status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *StatusServer) Serve(ln net.Listener) error {
	logs.Infof("observability.StatusServer listening addr=%s", ln.Addr())
	err := s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *StatusServer) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
