package session

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/danmuck/robolink/internal/protocol"
)

// SecurityMode selects how strictly endpoints are vetted before dialing.
type SecurityMode string

const (
	SecurityModeDevelopment SecurityMode = "development"
	SecurityModeProduction  SecurityMode = "production"
)

var (
	ErrInvalidSecurityMode = fmt.Errorf("%w: invalid security mode", protocol.ErrTransport)
	ErrInvalidEndpoint     = fmt.Errorf("%w: invalid endpoint", protocol.ErrTransport)
	ErrTLSRequired         = fmt.Errorf("%w: tls required", protocol.ErrTransport)
)

func NormalizeSecurityMode(mode SecurityMode) SecurityMode {
	if strings.TrimSpace(string(mode)) == "" {
		return SecurityModeDevelopment
	}
	return SecurityMode(strings.ToLower(strings.TrimSpace(string(mode))))
}

// ValidateEndpoint checks that endpoint is a websocket URL the mode allows.
// Production only dials wss.
func ValidateEndpoint(mode SecurityMode, endpoint string) error {
	mode = NormalizeSecurityMode(mode)
	switch mode {
	case SecurityModeDevelopment, SecurityModeProduction:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurityMode, mode)
	}
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, RedactEndpoint(endpoint))
	}
	switch strings.ToLower(u.Scheme) {
	case "wss":
	case "ws":
		if mode == SecurityModeProduction {
			return ErrTLSRequired
		}
	default:
		return fmt.Errorf("%w: scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	return nil
}

// RedactEndpoint masks the token query value for logs and status output.
func RedactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "<invalid>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
