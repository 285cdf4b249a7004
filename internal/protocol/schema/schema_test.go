package schema

import (
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/danmuck/robolink/internal/protocol"
	"github.com/danmuck/robolink/internal/testutil/testlog"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("testdata/robot.sproto")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(b)
}

func TestParseFixture(t *testing.T) {
	testlog.Start(t)
	reg, err := Parse(loadFixture(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if reg.Len() != 7 {
		t.Fatalf("protocol count = %d, want 7", reg.Len())
	}

	auth, err := reg.ByName("auth")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if auth.Tag != 1 || len(auth.Request) != 2 || len(auth.Response) != 0 {
		t.Fatalf("unexpected auth descriptor: %+v", auth)
	}
	if auth.Request[0] != (Field{Name: "username", Tag: 0, Kind: KindText}) {
		t.Fatalf("unexpected first auth field: %+v", auth.Request[0])
	}

	pos, err := reg.ByTag(6)
	if err != nil {
		t.Fatalf("by tag: %v", err)
	}
	if pos.Name != "robot_pos" {
		t.Fatalf("tag 6 resolved to %q", pos.Name)
	}
	wantPos := []Field{
		{Name: "id", Tag: 0, Kind: KindInteger},
		{Name: "x", Tag: 1, Kind: KindInteger},
		{Name: "y", Tag: 2, Kind: KindInteger},
		{Name: "facing", Tag: 3, Kind: KindText},
	}
	if len(pos.Response) != len(wantPos) {
		t.Fatalf("robot_pos response = %+v", pos.Response)
	}
	for i := range wantPos {
		if pos.Response[i] != wantPos[i] {
			t.Fatalf("robot_pos field %d = %+v, want %+v", i, pos.Response[i], wantPos[i])
		}
	}

	hb, err := reg.ByName("heartbeat")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if len(hb.Request) != 0 || len(hb.Response) != 0 {
		t.Fatalf("heartbeat should have empty shapes: %+v", hb)
	}

	list := reg.Protocols()
	for i := 1; i < len(list); i++ {
		if list[i-1].Tag >= list[i].Tag {
			t.Fatalf("protocols not ordered by tag: %d before %d", list[i-1].Tag, list[i].Tag)
		}
	}
}

func TestLoadBase64(t *testing.T) {
	testlog.Start(t)
	text := loadFixture(t)

	reg, err := Load(base64.StdEncoding.EncodeToString([]byte(text)))
	if err != nil {
		t.Fatalf("load padded: %v", err)
	}
	if _, err := reg.ByName("kick_out"); err != nil {
		t.Fatalf("kick_out: %v", err)
	}

	if _, err := Load(base64.RawStdEncoding.EncodeToString([]byte(text)) + "\n"); err != nil {
		t.Fatalf("load unpadded: %v", err)
	}

	_, err = Load("not base64 !!!")
	if !errors.Is(err, ErrParse) || !errors.Is(err, protocol.ErrSchema) {
		t.Fatalf("expected schema parse error, got %v", err)
	}
}

func TestUnknownProtocol(t *testing.T) {
	testlog.Start(t)
	reg, err := Parse(loadFixture(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := reg.ByName("missing"); !errors.Is(err, ErrUnknownProtocol) {
		t.Fatalf("expected ErrUnknownProtocol, got %v", err)
	}
	if _, err := reg.ByTag(999); !errors.Is(err, ErrUnknownProtocol) {
		t.Fatalf("expected ErrUnknownProtocol, got %v", err)
	}
}

func TestLookupsDoNotExposeRegistryStorage(t *testing.T) {
	testlog.Start(t)
	reg, err := Parse(loadFixture(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	byName, _ := reg.ByName("normal_pos")
	byName.Request[0].Name = "mutated"
	byTag, _ := reg.ByTag(byName.Tag)
	byTag.Request[1].Kind = KindText
	all := reg.Protocols()
	for i := range all {
		for j := range all[i].Response {
			all[i].Response[j].Name = "mutated"
		}
	}

	again, err := reg.ByName("normal_pos")
	if err != nil {
		t.Fatalf("by name: %v", err)
	}
	if again.Request[0].Name != "id" || again.Request[1].Kind != KindInteger {
		t.Fatalf("request fields changed: %+v", again.Request)
	}
	pos, _ := reg.ByName("robot_pos")
	if len(pos.Response) == 0 || pos.Response[0].Name != "id" {
		t.Fatalf("response fields changed: %+v", pos.Response)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{
			name:   "duplicate protocol tag",
			text:   "a 1 { }\nb 1 { }",
			reason: "duplicate protocol tag",
		},
		{
			name:   "duplicate protocol name",
			text:   "a 1 { }\na 2 { }",
			reason: "duplicate protocol name",
		},
		{
			name:   "duplicate field name",
			text:   "a 1 { request { x 0 : integer x 1 : string } }",
			reason: "duplicate field name",
		},
		{
			name:   "duplicate field tag",
			text:   "a 1 { request { x 0 : integer y 0 : string } }",
			reason: "duplicate field tag",
		},
		{
			name:   "unsupported kind",
			text:   "a 1 { request { ok 0 : boolean } }",
			reason: "unsupported field type",
		},
		{
			name:   "array kind",
			text:   "a 1 { request { ids 0 : *integer } }",
			reason: "unsupported field type",
		},
		{
			name:   "undefined type",
			text:   "a 1 { request Missing }",
			reason: "undefined type",
		},
		{
			name:   "missing tag",
			text:   "a { }",
			reason: "expected protocol tag",
		},
		{
			name:   "unterminated block",
			text:   "a 1 { request { x 0 : integer }",
			reason: "end of input",
		},
		{
			name:   "bad character",
			text:   "a 1 { request { x 0 = integer } }",
			reason: "unexpected character",
		},
		{
			name:   "duplicate block",
			text:   "a 1 { request nil request nil }",
			reason: "duplicate request block",
		},
		{
			name:   "nested type",
			text:   ".T { .U { } }",
			reason: "nested type",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.text)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %T %v", err, err)
			}
			if !strings.Contains(pe.Reason, tc.reason) {
				t.Fatalf("reason %q does not mention %q", pe.Reason, tc.reason)
			}
			if !errors.Is(err, protocol.ErrSchema) {
				t.Fatalf("parse error must carry schema category: %v", err)
			}
		})
	}
}

func TestParseErrorReportsLine(t *testing.T) {
	testlog.Start(t)
	_, err := Parse("a 1 {\n  request {\n    x 0 : float\n  }\n}")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Line != 3 {
		t.Fatalf("line = %d, want 3", pe.Line)
	}
}

func TestHolderLifecycle(t *testing.T) {
	testlog.Start(t)
	h := NewHolder()
	if _, err := h.Current(); !errors.Is(err, protocol.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	blob := base64.StdEncoding.EncodeToString([]byte(loadFixture(t)))
	if _, err := h.LoadAndInstall(blob); err != nil {
		t.Fatalf("install: %v", err)
	}
	reg, err := h.Current()
	if err != nil || reg.Len() == 0 {
		t.Fatalf("current after install: reg=%v err=%v", reg, err)
	}

	if _, err := h.LoadAndInstall("%%%"); err == nil {
		t.Fatalf("expected bad blob to fail")
	}
	if cur, _ := h.Current(); cur != reg {
		t.Fatalf("failed install must keep previous registry")
	}

	h.Reset()
	if _, err := h.Current(); !errors.Is(err, protocol.ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized after reset, got %v", err)
	}
}
