package schema

import (
	"sync"

	"github.com/danmuck/robolink/internal/protocol"
)

// Holder owns the registry for one login session.
// The registry is installed once after login and dropped on logout.
type Holder struct {
	mu  sync.RWMutex
	reg *Registry
}

func NewHolder() *Holder {
	return &Holder{}
}

// Install replaces the current registry.
func (h *Holder) Install(reg *Registry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reg = reg
}

// LoadAndInstall decodes a base64 schema blob and installs it on success.
func (h *Holder) LoadAndInstall(base64Text string) (*Registry, error) {
	reg, err := Load(base64Text)
	if err != nil {
		return nil, err
	}
	h.Install(reg)
	return reg, nil
}

// Current returns the installed registry or protocol.ErrNotInitialized.
func (h *Holder) Current() (*Registry, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.reg == nil {
		return nil, protocol.ErrNotInitialized
	}
	return h.reg, nil
}

func (h *Holder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reg = nil
}
