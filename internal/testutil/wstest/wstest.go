// Package wstest runs an in-process websocket endpoint for client tests.
package wstest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/danmuck/robolink/internal/testutil/tlstest"
)

// Conn is one accepted server-side connection.
type Conn struct {
	*websocket.Conn
	Token string
}

// Server accepts websocket upgrades on any path and hands each connection
// to the test through Accept.
type Server struct {
	srv   *httptest.Server
	ca    *tlstest.Authority
	conns chan *Conn
}

// New serves plain ws://.
func New(t testing.TB) *Server {
	t.Helper()
	s := newServer()
	s.srv.Start()
	t.Cleanup(s.srv.Close)
	return s
}

// NewTLS serves wss:// with a certificate from a fresh test authority.
func NewTLS(t testing.TB) *Server {
	t.Helper()
	s := newServer()
	s.ca = tlstest.NewAuthority(t, "wstest-ca")
	s.srv.TLS = s.ca.ServerConfig(t, "127.0.0.1", "localhost")
	s.srv.StartTLS()
	t.Cleanup(s.srv.Close)
	return s
}

func newServer() *Server {
	s := &Server{conns: make(chan *Conn, 8)}
	s.srv = httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.SetReadLimit(16 << 20)
		s.conns <- &Conn{Conn: c, Token: r.URL.Query().Get("token")}
	}))
	return s
}

// Client trusts the server's authority. Plain servers get http.DefaultClient.
func (s *Server) Client() *http.Client {
	if s.ca == nil {
		return http.DefaultClient
	}
	return s.ca.Client()
}

// URL returns the ws:// or wss:// endpoint for path with token as query.
func (s *Server) URL(path, token string) string {
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + path
	if token != "" {
		u += "?token=" + token
	}
	return u
}

// Accept waits for the next client connection.
func (s *Server) Accept(t testing.TB, timeout time.Duration) *Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		t.Cleanup(func() { _ = c.CloseNow() })
		return c
	case <-time.After(timeout):
		t.Fatalf("wstest: no connection within %s", timeout)
		return nil
	}
}

// ReadBinary reads one message and fails the test unless it is binary.
func (c *Conn) ReadBinary(t testing.TB, timeout time.Duration) []byte {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	typ, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("wstest: read: %v", err)
	}
	if typ != websocket.MessageBinary {
		t.Fatalf("wstest: got %v message, want binary", typ)
	}
	return data
}

func (c *Conn) WriteBinary(t testing.TB, b []byte) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageBinary, b); err != nil {
		t.Fatalf("wstest: write: %v", err)
	}
}

func (c *Conn) WriteText(t testing.TB, s string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte(s)); err != nil {
		t.Fatalf("wstest: write: %v", err)
	}
}
