package session

import (
	"time"

	"github.com/danmuck/robolink/internal/protocol/frame"
)

const (
	DefaultReconnectDelay = 3000 * time.Millisecond
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 5 * time.Second
	DefaultEventQueue     = 64
)

// Config defines connection lifecycle defaults.
type Config struct {
	// ReconnectDelay is the fixed wait between an unexpected close and the
	// next connect attempt. There is no growth and no attempt cap.
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxFrameBytes  uint64
	EventQueue     int
	SecurityMode   SecurityMode
}

func DefaultConfig() Config {
	return Config{
		ReconnectDelay: DefaultReconnectDelay,
		DialTimeout:    DefaultDialTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		MaxFrameBytes:  frame.DefaultLimits().MaxPayloadBytes,
		EventQueue:     DefaultEventQueue,
		SecurityMode:   SecurityModeDevelopment,
	}
}

// normalized fills zero fields from DefaultConfig.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = def.ReconnectDelay
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.MaxFrameBytes == 0 {
		c.MaxFrameBytes = def.MaxFrameBytes
	}
	if c.EventQueue <= 0 {
		c.EventQueue = def.EventQueue
	}
	c.SecurityMode = NormalizeSecurityMode(c.SecurityMode)
	return c
}

func (c Config) frameLimits() frame.Limits {
	return frame.Limits{MaxPayloadBytes: c.MaxFrameBytes}
}
