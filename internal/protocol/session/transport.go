package session

import (
	"context"
	"time"
)

// MessageKind distinguishes transport message payloads.
type MessageKind int

const (
	MessageBinary MessageKind = iota + 1
	MessageText
)

// Transport is one open message-oriented connection.
type Transport interface {
	// ReadMessage blocks for the next whole message. Any error ends the transport.
	ReadMessage(ctx context.Context) (MessageKind, []byte, error)
	WriteMessage(ctx context.Context, b []byte) error
	Close(reason string) error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Transport, error)
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
func SystemClock() Clock { return systemClock{} }
