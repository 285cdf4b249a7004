package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danmuck/robolink/internal/testutil/testlog"
)

func newLoginServer(t *testing.T, handler func(w http.ResponseWriter, creds credentials)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path != "/login" && r.URL.Path != "/register" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		handler(w, creds)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSuccess(t *testing.T) {
	testlog.Start(t)
	c := newLoginServer(t, func(w http.ResponseWriter, creds credentials) {
		if creds.Username != "ada" || creds.Password != "pw" {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "T", "sproto_desc": "c2NoZW1h"})
	})
	s, err := c.Login(context.Background(), "ada", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.Token != "T" || s.SchemaDesc != "c2NoZW1h" {
		t.Fatalf("session=%+v", s)
	}
}

func TestLoginFailures(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
	}{
		{name: "rejected", status: http.StatusOK, body: map[string]any{"success": false, "message": "bad credentials"}, wantErr: ErrRejected},
		{name: "rejected with 401", status: http.StatusUnauthorized, body: map[string]any{"success": false, "message": "locked"}, wantErr: ErrRejected},
		{name: "server error", status: http.StatusInternalServerError, body: "oops", wantErr: ErrHTTPStatus},
		{name: "missing schema", status: http.StatusOK, body: map[string]any{"success": true, "token": "T"}, wantErr: ErrMalformedResponse},
		{name: "not json", status: http.StatusOK, body: nil, wantErr: ErrMalformedResponse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newLoginServer(t, func(w http.ResponseWriter, _ credentials) {
				if tc.body == nil {
					w.WriteHeader(tc.status)
					_, _ = w.Write([]byte("<html>"))
					return
				}
				writeJSON(w, tc.status, tc.body)
			})
			_, err := c.Login(context.Background(), "ada", "pw")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRejectedErrorMessage(t *testing.T) {
	testlog.Start(t)
	c := newLoginServer(t, func(w http.ResponseWriter, _ credentials) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "user exists"})
	})
	err := c.Register(context.Background(), "ada", "pw")
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rej.Op != "register" || rej.Message != "user exists" {
		t.Fatalf("rejected=%+v", rej)
	}
}

func TestRegisterSuccessAndEmptyCredentials(t *testing.T) {
	testlog.Start(t)
	c := newLoginServer(t, func(w http.ResponseWriter, _ credentials) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	if err := c.Register(context.Background(), "ada", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := c.Login(context.Background(), "  ", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestEndpoint(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		base, token, want string
		wantErr           error
	}{
		{base: "ws://h/p", token: "T", want: "ws://h/p?token=T"},
		{base: "wss://h:9948/test_websocket", token: "a b&c", want: "wss://h:9948/test_websocket?token=a+b%26c"},
		{base: "ws://h/p?token=old", token: "new", want: "ws://h/p?token=new"},
		{base: "http://h/p", token: "T", wantErr: ErrInvalidEndpoint},
		{base: "ws:///p", token: "T", wantErr: ErrInvalidEndpoint},
		{base: "ws://h/p", token: "", wantErr: ErrInvalidEndpoint},
	}
	for _, tc := range tests {
		got, err := Endpoint(tc.base, tc.token)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%s: expected %v, got %v", tc.base, tc.wantErr, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %q err=%v want %q", tc.base, got, err, tc.want)
		}
	}
}
