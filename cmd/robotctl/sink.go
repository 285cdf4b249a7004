package main

import (
	"fmt"
	"io"
	"sync"
)

// terminalSink renders session output as lines. OnLogout fires onLogout once.
type terminalSink struct {
	mu       sync.Mutex
	out      io.Writer
	once     sync.Once
	onLogout func(reason string)
}

func newTerminalSink(out io.Writer, onLogout func(string)) *terminalSink {
	return &terminalSink{out: out, onLogout: onLogout}
}

func (s *terminalSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *terminalSink) OnPositionUpdate(entityID, x, y int64, facing string) {
	if facing == "" {
		s.printf("robot %d at (%d, %d)", entityID, x, y)
		return
	}
	s.printf("robot %d at (%d, %d) facing %s", entityID, x, y, facing)
}

func (s *terminalSink) OnLogout(reason string) {
	s.printf("logged out: %s", reason)
	if s.onLogout != nil {
		s.once.Do(func() { s.onLogout(reason) })
	}
}

func (s *terminalSink) OnMessage(sender, text string) {
	s.printf("[%s] %s", sender, text)
}
