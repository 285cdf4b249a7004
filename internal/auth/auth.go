// Package auth talks to the HTTP login service that hands out a websocket
// token and the base64 protocol schema for the session.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logs "github.com/danmuck/robolink/internal/logging"
)

const maxResponseBytes = 1 << 20

var (
	ErrRejected           = errors.New("auth: rejected")
	ErrHTTPStatus         = errors.New("auth: unexpected http status")
	ErrMalformedResponse  = errors.New("auth: malformed response")
	ErrInvalidCredentials = errors.New("auth: username and password are required")
	ErrInvalidEndpoint    = errors.New("auth: invalid websocket endpoint")
)

// RejectedError carries the server's reason for refusing a request.
type RejectedError struct {
	Op      string
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth: %s rejected", e.Op)
	}
	return fmt.Sprintf("auth: %s rejected: %s", e.Op, e.Message)
}

func (e *RejectedError) Unwrap() error {
	return ErrRejected
}

// Session is what a successful login yields.
type Session struct {
	Token      string
	SchemaDesc string
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type reply struct {
	Success    bool   `json:"success"`
	Token      string `json:"token"`
	SprotoDesc string `json:"sproto_desc"`
	Message    string `json:"message"`
}

// Client calls the login service rooted at BaseURL.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

// Login exchanges credentials for a token and schema blob.
func (c *Client) Login(ctx context.Context, username, password string) (Session, error) {
	r, err := c.post(ctx, "login", "/login", username, password)
	if err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(r.Token) == "" || strings.TrimSpace(r.SprotoDesc) == "" {
		return Session{}, fmt.Errorf("%w: login reply missing token or sproto_desc", ErrMalformedResponse)
	}
	logs.Infof("auth.Login ok user=%q schema_bytes=%d", username, len(r.SprotoDesc))
	return Session{Token: r.Token, SchemaDesc: r.SprotoDesc}, nil
}

// Register creates an account. The caller logs in separately afterwards.
func (c *Client) Register(ctx context.Context, username, password string) error {
	if _, err := c.post(ctx, "register", "/register", username, password); err != nil {
		return err
	}
	logs.Infof("auth.Register ok user=%q", username)
	return nil
}

func (c *Client) post(ctx context.Context, op, path, username, password string) (reply, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return reply{}, ErrInvalidCredentials
	}
	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return reply{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return reply{}, fmt.Errorf("auth: build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("auth: %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return reply{}, fmt.Errorf("auth: %s read body: %w", op, err)
	}
	var r reply
	decodeErr := json.Unmarshal(raw, &r)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Some deployments answer a refusal with 401 and the usual body.
		if decodeErr == nil && !r.Success && r.Message != "" {
			logs.Warnf("auth.%s rejected status=%d message=%q", op, resp.StatusCode, r.Message)
			return reply{}, &RejectedError{Op: op, Message: r.Message}
		}
		return reply{}, fmt.Errorf("%w: %s %d", ErrHTTPStatus, op, resp.StatusCode)
	}
	if decodeErr != nil {
		return reply{}, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if !r.Success {
		logs.Warnf("auth.%s rejected message=%q", op, r.Message)
		return reply{}, &RejectedError{Op: op, Message: r.Message}
	}
	return r, nil
}

// Endpoint attaches token to a ws:// or wss:// base URL as the token query parameter.
func Endpoint(wsBase, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(wsBase))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidEndpoint)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
