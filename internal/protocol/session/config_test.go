package session

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/robolink/internal/protocol"
	"github.com/danmuck/robolink/internal/testutil/testlog"
)

func TestDefaultConfigReconnectDelay(t *testing.T) {
	testlog.Start(t)
	if got := DefaultConfig().ReconnectDelay; got != 3000*time.Millisecond {
		t.Fatalf("reconnect delay=%s", got)
	}
	cfg := Config{ReconnectDelay: 250 * time.Millisecond}.normalized()
	if cfg.ReconnectDelay != 250*time.Millisecond {
		t.Fatalf("explicit delay overwritten: %s", cfg.ReconnectDelay)
	}
	if cfg.DialTimeout != DefaultDialTimeout || cfg.EventQueue != DefaultEventQueue || cfg.MaxFrameBytes == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.SecurityMode != SecurityModeDevelopment {
		t.Fatalf("mode=%q", cfg.SecurityMode)
	}
}

func TestValidateEndpoint(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		mode     SecurityMode
		endpoint string
		want     error
	}{
		{SecurityModeDevelopment, "ws://h/p?token=T", nil},
		{SecurityModeDevelopment, "wss://h/p", nil},
		{SecurityModeProduction, "wss://h/p", nil},
		{" Production ", "ws://h/p", ErrTLSRequired},
		{SecurityModeDevelopment, "http://h/p", ErrInvalidEndpoint},
		{SecurityModeDevelopment, "ws:///p", ErrInvalidEndpoint},
		{SecurityModeDevelopment, "://bad", ErrInvalidEndpoint},
		{"paranoid", "wss://h/p", ErrInvalidSecurityMode},
	}
	for _, tc := range cases {
		err := ValidateEndpoint(tc.mode, tc.endpoint)
		if tc.want == nil {
			if err != nil {
				t.Fatalf("%q %q: %v", tc.mode, tc.endpoint, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) || !errors.Is(err, protocol.ErrTransport) {
			t.Fatalf("%q %q: err=%v want %v", tc.mode, tc.endpoint, err, tc.want)
		}
	}
}

func TestRedactEndpoint(t *testing.T) {
	testlog.Start(t)
	if got := RedactEndpoint("wss://h/p?token=secret&v=1"); got != "wss://h/p?token=REDACTED&v=1" {
		t.Fatalf("got=%q", got)
	}
	if got := RedactEndpoint("ws://h/p"); got != "ws://h/p" {
		t.Fatalf("got=%q", got)
	}
}

func TestStateString(t *testing.T) {
	names := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateReconnecting: "reconnecting",
		State(42):         "unknown",
	}
	for s, want := range names {
		if s.String() != want {
			t.Fatalf("%d: %q", s, s.String())
		}
	}
}

func TestStatusJSONOmitsUnsetConnectedAt(t *testing.T) {
	testlog.Start(t)
	idle, err := json.Marshal(Status{State: StateDisconnected, StateName: StateDisconnected.String()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(idle), "connected_at") {
		t.Fatalf("disconnected status=%s", idle)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	live, err := json.Marshal(Status{StateName: "connected", ConnectedAt: at})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(live), `"connected_at":"2026-01-02T03:04:05Z"`) {
		t.Fatalf("connected status=%s", live)
	}
}
