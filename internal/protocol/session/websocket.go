package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"

	logs "github.com/danmuck/robolink/internal/logging"
	"github.com/danmuck/robolink/internal/protocol"
	"github.com/danmuck/robolink/internal/protocol/frame"
)

// WebsocketDialer dials endpoints with coder/websocket.
type WebsocketDialer struct {
	HTTPClient *http.Client
	Header     http.Header
	// ReadLimit caps one inbound message. Zero derives it from the default frame limits.
	ReadLimit int64
}

// redactToken scrubs the endpoint's token from msg; http errors quote the URL.
func redactToken(endpoint, msg string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return msg
	}
	token := u.Query().Get("token")
	if token == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(token), "REDACTED")
	return strings.ReplaceAll(msg, token, "REDACTED")
}

func (d WebsocketDialer) Dial(ctx context.Context, endpoint string) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
		HTTPHeader: d.Header,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %s", protocol.ErrTransport, RedactEndpoint(endpoint), redactToken(endpoint, err.Error()))
	}
	limit := d.ReadLimit
	if limit <= 0 {
		limit = int64(frame.DefaultLimits().MaxPayloadBytes) + frame.HeaderLen
	}
	conn.SetReadLimit(limit)
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadMessage(ctx context.Context) (MessageKind, []byte, error) {
	typ, data, err := t.conn.Read(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read: %v", protocol.ErrTransport, err)
	}
	if typ == websocket.MessageText {
		return MessageText, data, nil
	}
	return MessageBinary, data, nil
}

func (t *wsTransport) WriteMessage(ctx context.Context, b []byte) error {
	if err := t.conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("%w: write: %v", protocol.ErrTransport, err)
	}
	return nil
}

// closeWait bounds the close handshake before the socket is dropped outright.
const closeWait = time.Second

// Close runs the close handshake and returns once the socket is closed,
// forcing it after closeWait if the peer does not answer.
func (t *wsTransport) Close(reason string) error {
	done := make(chan error, 1)
	go func() {
		done <- t.conn.Close(websocket.StatusNormalClosure, reason)
	}()
	select {
	case err := <-done:
		if err != nil {
			logs.Debugf("session.wsTransport close reason=%q err=%v", reason, err)
		}
	case <-time.After(closeWait):
		logs.Debugf("session.wsTransport close reason=%q handshake timed out", reason)
		_ = t.conn.CloseNow()
	}
	return nil
}
