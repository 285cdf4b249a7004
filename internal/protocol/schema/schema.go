package schema

import (
	"encoding/base64"
	"fmt"
	"slices"
	"sort"
	"strings"

	logs "github.com/danmuck/robolink/internal/logging"
	"github.com/danmuck/robolink/internal/protocol"
)

var (
	ErrParse           = fmt.Errorf("%w: parse failed", protocol.ErrSchema)
	ErrUnknownProtocol = fmt.Errorf("%w: unknown protocol", protocol.ErrSchema)
)

// Kind is the wire kind of one field.
type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindText:
		return "string"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Field declares one named, typed field of a request or response shape.
type Field struct {
	Name string
	Tag  uint16
	Kind Kind
}

// Protocol is one immutable protocol descriptor.
// Request and Response must not be modified by callers.
type Protocol struct {
	Name     string
	Tag      uint32
	Request  []Field
	Response []Field
}

// ParseError reports a malformed schema. Line is 1-based; 0 means not line-specific.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: line %d: %s", e.Line, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// Registry resolves protocol descriptors by name or tag.
// It is read-only after construction and safe for concurrent use.
// clone copies the field slices so callers cannot reach registry storage.
func (p Protocol) clone() Protocol {
	p.Request = slices.Clone(p.Request)
	p.Response = slices.Clone(p.Response)
	return p
}

type Registry struct {
	protocols []Protocol
	byName    map[string]int
	byTag     map[uint32]int
}

// Load decodes the base64 schema blob returned at login and parses it.
func Load(base64Text string) (*Registry, error) {
	raw := strings.TrimSpace(base64Text)
	text, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		var rawErr error
		text, rawErr = base64.RawStdEncoding.DecodeString(raw)
		if rawErr != nil {
			logs.Errf("schema.Load invalid base64 err=%v", err)
			return nil, &ParseError{Reason: fmt.Sprintf("invalid base64: %v", err)}
		}
	}
	return Parse(string(text))
}

// Parse builds a registry from decoded schema text.
func Parse(text string) (*Registry, error) {
	protos, err := parseDocument(text)
	if err != nil {
		logs.Errf("schema.Parse failed err=%v", err)
		return nil, err
	}
	reg, err := newRegistry(protos)
	if err != nil {
		logs.Errf("schema.Parse failed err=%v", err)
		return nil, err
	}
	logs.Infof("schema.Parse ok protocols=%d", len(reg.protocols))
	return reg, nil
}

func newRegistry(protos []Protocol) (*Registry, error) {
	sort.SliceStable(protos, func(i, j int) bool {
		return protos[i].Tag < protos[j].Tag
	})
	reg := &Registry{
		protocols: protos,
		byName:    make(map[string]int, len(protos)),
		byTag:     make(map[uint32]int, len(protos)),
	}
	for i, p := range protos {
		if _, ok := reg.byName[p.Name]; ok {
			return nil, &ParseError{Reason: fmt.Sprintf("duplicate protocol name %q", p.Name)}
		}
		if prev, ok := reg.byTag[p.Tag]; ok {
			return nil, &ParseError{Reason: fmt.Sprintf("duplicate protocol tag %d (%q, %q)", p.Tag, protos[prev].Name, p.Name)}
		}
		reg.byName[p.Name] = i
		reg.byTag[p.Tag] = i
	}
	return reg, nil
}

func (r *Registry) ByName(name string) (Protocol, error) {
	i, ok := r.byName[name]
	if !ok {
		return Protocol{}, fmt.Errorf("%w: name=%q", ErrUnknownProtocol, name)
	}
	return r.protocols[i].clone(), nil
}

func (r *Registry) ByTag(tag uint32) (Protocol, error) {
	i, ok := r.byTag[tag]
	if !ok {
		return Protocol{}, fmt.Errorf("%w: tag=%d", ErrUnknownProtocol, tag)
	}
	return r.protocols[i].clone(), nil
}

// Protocols returns all descriptors ordered by tag.
func (r *Registry) Protocols() []Protocol {
	out := make([]Protocol, len(r.protocols))
	for i, p := range r.protocols {
		out[i] = p.clone()
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.protocols)
}
