package session

import "time"

// State is the connection lifecycle position.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectionInfo is what a connect attempt needs. Reconnects reuse it as is.
type ConnectionInfo struct {
	Token    string
	Endpoint string
}

// Status is a point-in-time view of a Manager for observers.
type Status struct {
	State       State     `json:"-"`
	StateName   string    `json:"state"`
	SessionID   string    `json:"session_id,omitempty"`
	Endpoint    string    `json:"endpoint,omitempty"`
	ConnectedAt time.Time `json:"connected_at,omitzero"`
	Reconnects  uint64    `json:"reconnects"`
	LastError   string    `json:"last_error,omitempty"`
}
