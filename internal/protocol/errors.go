package protocol

import "errors"

// Error categories. Specific errors in sub-packages wrap exactly one of these.
var (
	ErrFrame          = errors.New("protocol: frame error")
	ErrSchema         = errors.New("protocol: schema error")
	ErrCodec          = errors.New("protocol: codec error")
	ErrTransport      = errors.New("protocol: transport error")
	ErrNotConnected   = errors.New("protocol: not connected")
	ErrNotInitialized = errors.New("protocol: schema not initialized")
)
