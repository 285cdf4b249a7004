package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/robolink/internal/protocol/codec"
	"github.com/danmuck/robolink/internal/protocol/schema"
)

// chatProtocol carries lines that do not start with a protocol name.
const chatProtocol = "ws_message"

type commandKind int

const (
	cmdNone commandKind = iota
	cmdSend
	cmdRaw
	cmdQuit
	cmdHelp
)

type command struct {
	kind       commandKind
	name       string
	fields     codec.Fields
	protocolID uint32
	payload    []byte
}

var errUnterminatedQuote = errors.New("unterminated quote")

// parseCommand turns one input line into an action. Values are typed by the
// request shape of the named protocol.
func parseCommand(line string, reg *schema.Registry) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdNone}, nil
	}
	if strings.HasPrefix(line, "/") {
		return parseSlash(line)
	}
	args, err := splitArgs(line)
	if err != nil {
		return command{}, err
	}
	p, err := reg.ByName(args[0])
	if err != nil {
		chat, chatErr := reg.ByName(chatProtocol)
		if chatErr != nil {
			return command{}, err
		}
		return command{kind: cmdSend, name: chat.Name, fields: codec.Fields{"text": line}}, nil
	}
	fields := make(codec.Fields, len(args)-1)
	for _, arg := range args[1:] {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return command{}, fmt.Errorf("%s: expected key=value, got %q", p.Name, arg)
		}
		f, ok := findField(p.Request, key)
		if !ok {
			return command{}, fmt.Errorf("%s: no request field %q", p.Name, key)
		}
		switch f.Kind {
		case schema.KindInteger:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return command{}, fmt.Errorf("%s.%s: %w", p.Name, key, err)
			}
			fields[key] = n
		default:
			fields[key] = value
		}
	}
	return command{kind: cmdSend, name: p.Name, fields: fields}, nil
}

func parseSlash(line string) (command, error) {
	args := strings.Fields(line)
	switch args[0] {
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/raw":
		if len(args) < 2 || len(args) > 3 {
			return command{}, fmt.Errorf("usage: /raw <protocol-id> [hex-body]")
		}
		id, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return command{}, fmt.Errorf("/raw: protocol id: %w", err)
		}
		var body []byte
		if len(args) == 3 {
			body, err = hex.DecodeString(args[2])
			if err != nil {
				return command{}, fmt.Errorf("/raw: body: %w", err)
			}
		}
		return command{kind: cmdRaw, protocolID: uint32(id), payload: body}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s", args[0])
	}
}

func findField(fields []schema.Field, name string) (schema.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return schema.Field{}, false
}

// splitArgs splits on whitespace. Double quotes group words and are removed;
// a backslash escapes the next character inside quotes.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		escaped bool
		started bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote || escaped {
		return nil, errUnterminatedQuote
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

const helpText = `input:
  <protocol> key=value ...   send a request, e.g. normal_pos id=1 x=3 y=4 facing=north
  any other text             chat via ws_message
  /raw <id> [hex]            send an already encoded body
  /help                      this text
  /quit                      disconnect and exit`
