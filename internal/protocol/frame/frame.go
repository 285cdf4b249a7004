package frame

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/robolink/internal/protocol"
)

// HeaderLen is the fixed wire header: u32 protocol id, u32 body length, both little-endian.
const HeaderLen = 8

var (
	ErrFrameTooShort   = fmt.Errorf("%w: frame shorter than header", protocol.ErrFrame)
	ErrLengthMismatch  = fmt.Errorf("%w: declared length does not match body", protocol.ErrFrame)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", protocol.ErrFrame)
)

// Frame is one complete transport message.
type Frame struct {
	ProtocolID uint32
	Payload    []byte
}

// Limits constrains inbound frame memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 8 * 1024 * 1024,
	}
}

// Encode writes one frame into a freshly allocated buffer.
func Encode(protocolID uint32, payload []byte) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderLen+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], protocolID)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[HeaderLen:], payload)
	return buf, nil
}

// Decode parses one whole frame. The returned payload aliases b.
func Decode(b []byte) (Frame, error) {
	if len(b) < HeaderLen {
		return Frame{}, fmt.Errorf("%w: got %d bytes", ErrFrameTooShort, len(b))
	}
	id := binary.LittleEndian.Uint32(b[0:4])
	declared := binary.LittleEndian.Uint32(b[4:8])
	actual := uint64(len(b) - HeaderLen)
	if uint64(declared) != actual {
		return Frame{}, fmt.Errorf("%w: declared=%d actual=%d", ErrLengthMismatch, declared, actual)
	}
	return Frame{ProtocolID: id, Payload: b[HeaderLen:]}, nil
}

// DecodeWithLimits is Decode with an upper bound on the body size.
func DecodeWithLimits(b []byte, limits Limits) (Frame, error) {
	f, err := Decode(b)
	if err != nil {
		return Frame{}, err
	}
	if limits.MaxPayloadBytes > 0 && uint64(len(f.Payload)) > limits.MaxPayloadBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(f.Payload), limits.MaxPayloadBytes)
	}
	return f, nil
}
