package dispatch

import (
	"fmt"
	"sort"
	"strings"

	logs "github.com/danmuck/robolink/internal/logging"
	"github.com/danmuck/robolink/internal/protocol/codec"
)

// Protocol names served by the built-in routes.
const (
	ProtoAuthResponse = "auth_response"
	ProtoKickOut      = "kick_out"
	ProtoRobotPos     = "robot_pos"
	ProtoWSMessage    = "ws_message"
	ProtoEcho         = "echo"
	ProtoRobotCtrl    = "robot_ctrl"
	ProtoRobotMsg     = "robot_msg"
	ProtoBuildInfo    = "build_info"
	ProtoHeartbeat    = "heartbeat"
)

const (
	SenderServer = "server"
	SenderSystem = "system"
	SenderBuild  = "build"
	SenderError  = "error"
)

// AuthOK is the success code carried by auth_response.
const AuthOK = 200

// NewDefault returns a dispatcher with the built-in routes registered.
func NewDefault(sink Sink) *Dispatcher {
	d := New(sink)
	d.Register(ProtoAuthResponse, HandleAuthResult)
	d.Register(ProtoKickOut, HandleKick)
	d.Register(ProtoRobotPos, HandlePosition)
	for _, name := range []string{ProtoWSMessage, ProtoEcho, ProtoRobotCtrl, ProtoRobotMsg} {
		d.Register(name, HandleMessage)
	}
	d.Register(ProtoBuildInfo, handleMessageAs(SenderBuild))
	d.Register(ProtoHeartbeat, HandleHeartbeat)
	return d
}

func HandleAuthResult(ctx Context, fields codec.Fields) error {
	code, err := fields.Int("code")
	if err != nil {
		return err
	}
	msg := fields.TextOr("message", "")
	if code == AuthOK {
		logs.Infof("dispatch.auth ok")
		ctx.Sink.OnMessage(SenderSystem, "authenticated")
		return nil
	}
	logs.Warnf("dispatch.auth rejected code=%d message=%q", code, msg)
	ctx.Sink.OnMessage(SenderError, fmt.Sprintf("authentication failed (%d): %s", code, msg))
	return nil
}

// HandleKick tears down the owning connection without reconnecting.
func HandleKick(ctx Context, fields codec.Fields) error {
	reason := fields.TextOr("reason", "kicked by server")
	logs.Warnf("dispatch.kick reason=%q", reason)
	ctx.Sink.OnMessage(SenderSystem, reason)
	if ctx.Conn != nil {
		ctx.Conn.Disconnect()
	}
	ctx.Sink.OnLogout(reason)
	return nil
}

func HandlePosition(ctx Context, fields codec.Fields) error {
	id, err := fields.Int("id")
	if err != nil {
		return err
	}
	x, err := fields.Int("x")
	if err != nil {
		return err
	}
	y, err := fields.Int("y")
	if err != nil {
		return err
	}
	ctx.Sink.OnPositionUpdate(id, x, y, fields.TextOr("facing", ""))
	return nil
}

func HandleMessage(ctx Context, fields codec.Fields) error {
	return handleMessageAs(SenderServer)(ctx, fields)
}

func handleMessageAs(defaultSender string) Handler {
	return func(ctx Context, fields codec.Fields) error {
		text, err := fields.Text("text")
		if err != nil {
			return err
		}
		ctx.Sink.OnMessage(fields.TextOr("sender", defaultSender), text)
		return nil
	}
}

func HandleHeartbeat(ctx Context, fields codec.Fields) error {
	logs.Tracef("dispatch.heartbeat")
	return nil
}

// HandleUnknown logs the protocol name and raw fields and never fails.
func HandleUnknown(ctx Context, fields codec.Fields) error {
	logs.Warnf("dispatch.unknown protocol=%q fields=%s", ctx.Protocol, formatFields(fields))
	return nil
}

func formatFields(fields codec.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
