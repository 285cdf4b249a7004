// Package codec turns application field maps into message bodies and back,
// driven entirely by a schema.Protocol resolved at runtime.
//
// Body layout (v1): fields in declaration order, no per-field header.
//   - integer: 8 bytes, little-endian two's-complement int64
//   - string:  u32 little-endian byte length, then UTF-8 bytes
package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/danmuck/robolink/internal/protocol"
	"github.com/danmuck/robolink/internal/protocol/schema"
)

const (
	integerWidth = 8
	textLenWidth = 4
)

var (
	ErrMissingField     = fmt.Errorf("%w: missing field", protocol.ErrCodec)
	ErrTypeMismatch     = fmt.Errorf("%w: field type mismatch", protocol.ErrCodec)
	ErrTruncatedMessage = fmt.Errorf("%w: truncated message", protocol.ErrCodec)
	ErrTrailingBytes    = fmt.Errorf("%w: trailing bytes", protocol.ErrCodec)
)

// FieldError names the field that failed to encode.
type FieldError struct {
	Protocol string
	Field    string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("codec: protocol=%q field=%q: %v", e.Protocol, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Encode serializes the request shape of p.
func Encode(p schema.Protocol, fields Fields) ([]byte, error) {
	return encodeShape(p.Name, p.Request, fields)
}

// EncodeResponse serializes the response shape of p.
func EncodeResponse(p schema.Protocol, fields Fields) ([]byte, error) {
	return encodeShape(p.Name, p.Response, fields)
}

// Decode parses a body against the response shape of p.
func Decode(p schema.Protocol, b []byte) (Fields, error) {
	return decodeShape(p.Name, p.Response, b)
}

// DecodeRequest parses a body against the request shape of p.
func DecodeRequest(p schema.Protocol, b []byte) (Fields, error) {
	return decodeShape(p.Name, p.Request, b)
}

func encodeShape(name string, shape []schema.Field, fields Fields) ([]byte, error) {
	buf := make([]byte, 0, 16*len(shape))
	for _, f := range shape {
		raw, ok := fields[f.Name]
		if !ok {
			return nil, &FieldError{Protocol: name, Field: f.Name, Err: ErrMissingField}
		}
		switch f.Kind {
		case schema.KindInteger:
			v, ok := toInt64(raw)
			if !ok {
				return nil, &FieldError{Protocol: name, Field: f.Name, Err: fmt.Errorf("%w: want integer, got %T", ErrTypeMismatch, raw)}
			}
			buf = binary.LittleEndian.AppendUint64(buf, uint64(v))
		case schema.KindText:
			s, ok := raw.(string)
			if !ok {
				return nil, &FieldError{Protocol: name, Field: f.Name, Err: fmt.Errorf("%w: want string, got %T", ErrTypeMismatch, raw)}
			}
			if !utf8.ValidString(s) {
				return nil, &FieldError{Protocol: name, Field: f.Name, Err: fmt.Errorf("%w: string is not valid UTF-8", ErrTypeMismatch)}
			}
			if uint64(len(s)) > math.MaxUint32 {
				return nil, &FieldError{Protocol: name, Field: f.Name, Err: fmt.Errorf("%w: string too long", ErrTypeMismatch)}
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
			buf = append(buf, s...)
		default:
			return nil, &FieldError{Protocol: name, Field: f.Name, Err: fmt.Errorf("%w: unsupported kind %s", ErrTypeMismatch, f.Kind)}
		}
	}
	return buf, nil
}

func decodeShape(name string, shape []schema.Field, b []byte) (Fields, error) {
	out := make(Fields, len(shape))
	off := 0
	for _, f := range shape {
		remaining := len(b) - off
		switch f.Kind {
		case schema.KindInteger:
			if remaining < integerWidth {
				return nil, fmt.Errorf("%w: protocol=%q field=%q need=%d have=%d", ErrTruncatedMessage, name, f.Name, integerWidth, remaining)
			}
			out[f.Name] = int64(binary.LittleEndian.Uint64(b[off : off+integerWidth]))
			off += integerWidth
		case schema.KindText:
			if remaining < textLenWidth {
				return nil, fmt.Errorf("%w: protocol=%q field=%q need=%d have=%d", ErrTruncatedMessage, name, f.Name, textLenWidth, remaining)
			}
			n := uint64(binary.LittleEndian.Uint32(b[off : off+textLenWidth]))
			off += textLenWidth
			if n > uint64(len(b)-off) {
				return nil, fmt.Errorf("%w: protocol=%q field=%q need=%d have=%d", ErrTruncatedMessage, name, f.Name, n, len(b)-off)
			}
			out[f.Name] = string(b[off : off+int(n)])
			off += int(n)
		default:
			return nil, fmt.Errorf("%w: protocol=%q field=%q unsupported kind %s", ErrTypeMismatch, name, f.Name, f.Kind)
		}
	}
	if off != len(b) {
		return nil, fmt.Errorf("%w: protocol=%q extra=%d", ErrTrailingBytes, name, len(b)-off)
	}
	return out, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return uintToInt64(n)
	default:
		return 0, false
	}
}

func uintToInt64(n uint64) (int64, bool) {
	if n > math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}
