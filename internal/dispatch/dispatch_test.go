package dispatch

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/danmuck/robolink/internal/protocol/codec"
	"github.com/danmuck/robolink/internal/testutil/testlog"
)

type position struct {
	id, x, y int64
	facing   string
}

type message struct {
	sender, text string
}

type recordingSink struct {
	positions []position
	logouts   []string
	messages  []message
}

func (s *recordingSink) OnPositionUpdate(id, x, y int64, facing string) {
	s.positions = append(s.positions, position{id, x, y, facing})
}

func (s *recordingSink) OnLogout(reason string) {
	s.logouts = append(s.logouts, reason)
}

func (s *recordingSink) OnMessage(sender, text string) {
	s.messages = append(s.messages, message{sender, text})
}

type countingConn struct {
	disconnects int
}

func (c *countingConn) Disconnect() { c.disconnects++ }

func TestPositionUpdate(t *testing.T) {
	testlog.Start(t)
	sink := &recordingSink{}
	d := NewDefault(sink)
	err := d.Dispatch(nil, ProtoRobotPos, codec.Fields{"id": int64(7), "x": int64(-3), "y": int64(12), "facing": "north"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	want := []position{{7, -3, 12, "north"}}
	if !reflect.DeepEqual(sink.positions, want) {
		t.Fatalf("positions=%+v want=%+v", sink.positions, want)
	}
}

func TestPositionMissingFieldFails(t *testing.T) {
	testlog.Start(t)
	sink := &recordingSink{}
	d := NewDefault(sink)
	err := d.Dispatch(nil, ProtoRobotPos, codec.Fields{"id": int64(1), "x": int64(2)})
	if !errors.Is(err, codec.ErrMissingField) {
		t.Fatalf("expected missing field, got %v", err)
	}
	if len(sink.positions) != 0 {
		t.Fatalf("sink should not be called")
	}
}

func TestKickDisconnectsThenLogsOut(t *testing.T) {
	testlog.Start(t)
	sink := &recordingSink{}
	conn := &countingConn{}
	d := NewDefault(sink)
	if err := d.Dispatch(conn, ProtoKickOut, codec.Fields{"reason": "duplicate login"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if conn.disconnects != 1 {
		t.Fatalf("disconnects=%d want=1", conn.disconnects)
	}
	if !reflect.DeepEqual(sink.logouts, []string{"duplicate login"}) {
		t.Fatalf("logouts=%v", sink.logouts)
	}
}

func TestAuthResult(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		name   string
		fields codec.Fields
		want   message
	}{
		{"ok", codec.Fields{"code": int64(200), "message": ""}, message{SenderSystem, "authenticated"}},
		{"rejected", codec.Fields{"code": int64(401), "message": "bad token"}, message{SenderError, "authentication failed (401): bad token"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &recordingSink{}
			if err := NewDefault(sink).Dispatch(nil, ProtoAuthResponse, tc.fields); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if len(sink.messages) != 1 || sink.messages[0] != tc.want {
				t.Fatalf("messages=%+v want=%+v", sink.messages, tc.want)
			}
			if len(sink.logouts) != 0 {
				t.Fatalf("auth result must not log out")
			}
		})
	}
}

func TestGenericMessageSenders(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		proto  string
		fields codec.Fields
		want   message
	}{
		{ProtoWSMessage, codec.Fields{"sender": "alice", "text": "hi"}, message{"alice", "hi"}},
		{ProtoEcho, codec.Fields{"text": "ping"}, message{SenderServer, "ping"}},
		{ProtoRobotCtrl, codec.Fields{"text": "ack"}, message{SenderServer, "ack"}},
		{ProtoRobotMsg, codec.Fields{"sender": "r2", "text": "beep"}, message{"r2", "beep"}},
		{ProtoBuildInfo, codec.Fields{"text": "v1.2.3"}, message{SenderBuild, "v1.2.3"}},
	}
	for _, tc := range cases {
		t.Run(tc.proto, func(t *testing.T) {
			sink := &recordingSink{}
			if err := NewDefault(sink).Dispatch(nil, tc.proto, tc.fields); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if len(sink.messages) != 1 || sink.messages[0] != tc.want {
				t.Fatalf("messages=%+v want=%+v", sink.messages, tc.want)
			}
		})
	}
}

func TestUnknownAndHeartbeatDoNotFail(t *testing.T) {
	testlog.Start(t)
	sink := &recordingSink{}
	d := NewDefault(sink)
	for _, name := range []string{"no_such_protocol", ProtoHeartbeat} {
		if err := d.Dispatch(nil, name, codec.Fields{"a": int64(1), "b": "x"}); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if len(sink.messages)+len(sink.positions)+len(sink.logouts) != 0 {
		t.Fatalf("sink should be untouched: %+v", sink)
	}
}

func TestRegisterOverridesAndFallback(t *testing.T) {
	testlog.Start(t)
	d := New(nil)
	var got []string
	d.Register("custom", func(ctx Context, fields codec.Fields) error {
		got = append(got, "custom:"+ctx.Protocol)
		return nil
	})
	d.Register("   ", func(Context, codec.Fields) error { return errors.New("never") })
	d.SetFallback(func(ctx Context, fields codec.Fields) error {
		got = append(got, "fallback:"+ctx.Protocol)
		return nil
	})
	_ = d.Dispatch(nil, "custom", nil)
	_ = d.Dispatch(nil, "other", nil)
	if !reflect.DeepEqual(got, []string{"custom:custom", "fallback:other"}) {
		t.Fatalf("got=%v", got)
	}
	if routes := d.Routes(); !reflect.DeepEqual(routes, []string{"custom"}) {
		t.Fatalf("routes=%v", routes)
	}
}

func TestHandlerPanicRecovered(t *testing.T) {
	testlog.Start(t)
	d := New(nil)
	d.Register("boom", func(Context, codec.Fields) error { panic("bad") })
	err := d.Dispatch(nil, "boom", nil)
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("expected recovered panic, got %v", err)
	}
}

func TestFormatFieldsSorted(t *testing.T) {
	if got := formatFields(codec.Fields{"b": "x", "a": int64(1)}); got != "{a=1 b=x}" {
		t.Fatalf("got=%q", got)
	}
}
