// Package automation hosts named entry points that external triggers (HTTP
// calls, global shortcuts, the CLI) invoke by name.
package automation

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"keyrelay/internal/channel"
	"keyrelay/internal/protocol"
)

var (
	// ErrAlreadyRegistered is returned when an entry point name is taken
	ErrAlreadyRegistered = errors.New("entry point already registered")

	// ErrEmptyName is returned when registering an entry point without a name
	ErrEmptyName = errors.New("entry point name is empty")
)

// EntryPoint is a callable registered under a stable name
type EntryPoint = channel.Handler

// Host is the registry of entry points
type Host struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	fn EntryPoint
}

// NewHost creates an empty host
func NewHost() *Host {
	return &Host{entries: make(map[string]*entry)}
}

// Register makes fn callable under name. The returned function removes the
// registration; calling it more than once is harmless.
func (h *Host) Register(name string, fn EntryPoint) (func(), error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.entries[name]; exists {
		return nil, fmt.Errorf("%s: %w", name, ErrAlreadyRegistered)
	}
	e := &entry{fn: fn}
	h.entries[name] = e
	log.Printf("Automation: registered entry point '%s'", name)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			// Only remove our own registration
			if h.entries[name] == e {
				delete(h.entries, name)
				log.Printf("Automation: unregistered entry point '%s'", name)
			}
		})
	}, nil
}

// Invoke calls the entry point registered under name
func (h *Host) Invoke(name string, args map[string]any) protocol.Result {
	h.mu.RLock()
	e, ok := h.entries[name]
	h.mu.RUnlock()

	if !ok {
		return protocol.NotImplemented(name)
	}
	return e.fn(name, args)
}

// Names lists registered entry points in sorted order
func (h *Host) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.entries))
	for name := range h.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
