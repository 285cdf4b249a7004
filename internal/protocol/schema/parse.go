package schema

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokTypeName // .Name
	tokNumber
	tokLBrace
	tokRBrace
	tokColon
	tokStar
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) describe() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokColon:
		return "':'"
	case tokStar:
		return "'*'"
	default:
		return strconv.Quote(t.text)
	}
}

func tokenize(text string) ([]token, error) {
	var toks []token
	line := 1
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '{':
			toks = append(toks, token{kind: tokLBrace, text: "{", line: line})
			i++
		case c == '}':
			toks = append(toks, token{kind: tokRBrace, text: "}", line: line})
			i++
		case c == ':':
			toks = append(toks, token{kind: tokColon, text: ":", line: line})
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, text: "*", line: line})
			i++
		case c == '.':
			j := i + 1
			if j >= len(text) || !isIdentStart(text[j]) {
				return nil, &ParseError{Line: line, Reason: "expected type name after '.'"}
			}
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			toks = append(toks, token{kind: tokTypeName, text: text[i+1 : j], line: line})
			i = j
		case isDigit(c):
			j := i
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: text[i:j], line: line})
			i = j
		case isIdentStart(c):
			j := i
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: text[i:j], line: line})
			i = j
		default:
			return nil, &ParseError{Line: line, Reason: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

// shape is a request/response block before type references are resolved.
type shape struct {
	fields  []Field
	typeRef string
	refLine int
}

type protoDecl struct {
	name     string
	tag      uint32
	request  shape
	response shape
}

type parser struct {
	toks   []token
	pos    int
	types  map[string][]Field
	protos []protoDecl
}

func parseDocument(text string) ([]Protocol, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, types: make(map[string][]Field)}
	if err := p.parseTop(); err != nil {
		return nil, err
	}
	return p.resolve()
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, &ParseError{Line: t.line, Reason: fmt.Sprintf("expected %s, got %s", what, t.describe())}
	}
	return t, nil
}

func (p *parser) parseTop() error {
	for {
		t := p.peek()
		switch t.kind {
		case tokEOF:
			return nil
		case tokTypeName:
			if err := p.parseTypeDef(); err != nil {
				return err
			}
		case tokIdent:
			if err := p.parseProtocol(); err != nil {
				return err
			}
		default:
			return &ParseError{Line: t.line, Reason: fmt.Sprintf("expected type or protocol definition, got %s", t.describe())}
		}
	}
}

func (p *parser) parseTypeDef() error {
	name := p.next()
	if _, ok := p.types[name.text]; ok {
		return &ParseError{Line: name.line, Reason: fmt.Sprintf("duplicate type %q", name.text)}
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return err
	}
	fields, err := p.parseFields()
	if err != nil {
		return err
	}
	p.types[name.text] = fields
	return nil
}

func (p *parser) parseProtocol() error {
	name := p.next()
	tagTok, err := p.expect(tokNumber, "protocol tag")
	if err != nil {
		return err
	}
	tag, err := strconv.ParseUint(tagTok.text, 10, 32)
	if err != nil {
		return &ParseError{Line: tagTok.line, Reason: fmt.Sprintf("protocol tag %s out of range", tagTok.text)}
	}
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return err
	}
	decl := protoDecl{name: name.text, tag: uint32(tag)}
	seen := map[string]bool{}
	for {
		t := p.next()
		if t.kind == tokRBrace {
			break
		}
		if t.kind != tokIdent || (t.text != "request" && t.text != "response") {
			return &ParseError{Line: t.line, Reason: fmt.Sprintf("expected request or response, got %s", t.describe())}
		}
		if seen[t.text] {
			return &ParseError{Line: t.line, Reason: fmt.Sprintf("duplicate %s block in %q", t.text, decl.name)}
		}
		seen[t.text] = true
		sh, err := p.parseShape()
		if err != nil {
			return err
		}
		if t.text == "request" {
			decl.request = sh
		} else {
			decl.response = sh
		}
	}
	p.protos = append(p.protos, decl)
	return nil
}

func (p *parser) parseShape() (shape, error) {
	t := p.next()
	switch t.kind {
	case tokLBrace:
		fields, err := p.parseFields()
		if err != nil {
			return shape{}, err
		}
		return shape{fields: fields}, nil
	case tokIdent:
		if t.text == "nil" {
			return shape{}, nil
		}
		return shape{typeRef: t.text, refLine: t.line}, nil
	default:
		return shape{}, &ParseError{Line: t.line, Reason: fmt.Sprintf("expected '{' or type name, got %s", t.describe())}
	}
}

// parseFields consumes fields up to and including the closing brace.
func (p *parser) parseFields() ([]Field, error) {
	fields := []Field{}
	names := map[string]bool{}
	tags := map[uint16]bool{}
	for {
		t := p.next()
		switch t.kind {
		case tokRBrace:
			return fields, nil
		case tokTypeName:
			return nil, &ParseError{Line: t.line, Reason: fmt.Sprintf("nested type %q is not supported", t.text)}
		case tokIdent:
		default:
			return nil, &ParseError{Line: t.line, Reason: fmt.Sprintf("expected field name, got %s", t.describe())}
		}
		tagTok, err := p.expect(tokNumber, "field tag")
		if err != nil {
			return nil, err
		}
		tag, err := strconv.ParseUint(tagTok.text, 10, 16)
		if err != nil {
			return nil, &ParseError{Line: tagTok.line, Reason: fmt.Sprintf("field tag %s out of range", tagTok.text)}
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		kind, err := p.parseKind()
		if err != nil {
			return nil, err
		}
		if names[t.text] {
			return nil, &ParseError{Line: t.line, Reason: fmt.Sprintf("duplicate field name %q", t.text)}
		}
		if tags[uint16(tag)] {
			return nil, &ParseError{Line: tagTok.line, Reason: fmt.Sprintf("duplicate field tag %d", tag)}
		}
		names[t.text] = true
		tags[uint16(tag)] = true
		fields = append(fields, Field{Name: t.text, Tag: uint16(tag), Kind: kind})
	}
}

func (p *parser) parseKind() (Kind, error) {
	t := p.next()
	if t.kind == tokStar {
		return 0, &ParseError{Line: t.line, Reason: "unsupported field type: arrays"}
	}
	if t.kind != tokIdent {
		return 0, &ParseError{Line: t.line, Reason: fmt.Sprintf("expected field type, got %s", t.describe())}
	}
	switch t.text {
	case "integer":
		return KindInteger, nil
	case "string":
		return KindText, nil
	default:
		return 0, &ParseError{Line: t.line, Reason: fmt.Sprintf("unsupported field type %q", t.text)}
	}
}

func (p *parser) resolve() ([]Protocol, error) {
	out := make([]Protocol, 0, len(p.protos))
	for _, d := range p.protos {
		req, err := p.resolveShape(d.request)
		if err != nil {
			return nil, err
		}
		resp, err := p.resolveShape(d.response)
		if err != nil {
			return nil, err
		}
		out = append(out, Protocol{Name: d.name, Tag: d.tag, Request: req, Response: resp})
	}
	return out, nil
}

func (p *parser) resolveShape(sh shape) ([]Field, error) {
	if sh.typeRef == "" {
		if sh.fields == nil {
			return []Field{}, nil
		}
		return sh.fields, nil
	}
	fields, ok := p.types[sh.typeRef]
	if !ok {
		return nil, &ParseError{Line: sh.refLine, Reason: fmt.Sprintf("undefined type %q", sh.typeRef)}
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out, nil
}
