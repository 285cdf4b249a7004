package codec

import "fmt"

// Fields maps field names to values: int64 or string once decoded.
type Fields map[string]any

// Int returns an integer field. Any Go integer kind is accepted.
func (f Fields) Int(name string) (int64, error) {
	raw, ok := f[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	v, ok := toInt64(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T", ErrTypeMismatch, name, raw)
	}
	return v, nil
}

// Text returns a string field.
func (f Fields) Text(name string) (string, error) {
	raw, ok := f[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T", ErrTypeMismatch, name, raw)
	}
	return s, nil
}

// TextOr returns a string field or fallback when absent or not a string.
func (f Fields) TextOr(name, fallback string) string {
	s, err := f.Text(name)
	if err != nil {
		return fallback
	}
	return s
}
