// Package hotkey matches global desktop shortcuts and invokes automation
// entry points for them.
package hotkey

import (
	"log"
	"strings"
	"sync"

	"keyrelay/internal/config"
	"keyrelay/internal/protocol"
)

// Invoker runs a named entry point
type Invoker interface {
	Invoke(name string, args map[string]any) protocol.Result
}

// Manager handles global hotkey registration and matching
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool // keys currently held
	devices      []string
}

type registeredHotkey struct {
	parts    []string // e.g. ["CTRL", "ALT", "LEFT"]
	original string
	callback func()
}

// NewManager creates a new hotkey manager. devices are the keyboards read
// on platforms without a global hook API (Linux evdev paths).
func NewManager(devices []string) *Manager {
	return &Manager{
		currentState: make(map[string]bool),
		devices:      devices,
	}
}

// Register registers a hotkey string (e.g. "Ctrl+Alt+Left") and a callback.
// It returns the hotkey's index.
func (m *Manager) Register(hotkeyStr string, callback func()) int {
	parts := ParseHotkey(hotkeyStr)
	if len(parts) == 0 {
		return -1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: hotkeyStr,
		callback: callback,
	})
	return len(m.hotkeys) - 1
}

// Bind registers every shortcut so that it invokes its entry point on host
func (m *Manager) Bind(shortcuts []config.Shortcut, host Invoker) {
	for _, sc := range shortcuts {
		sc := sc
		m.Register(sc.Hotkey, func() {
			res := host.Invoke(sc.Call, sc.Args)
			if !res.IsOK() {
				log.Printf("Hotkey: %s -> %s: %s %s", sc.Hotkey, sc.Call, res.Status, res.Err)
			}
		})
	}
	log.Printf("Hotkey: %d shortcut(s) bound", len(shortcuts))
}

// ParseHotkey splits "Ctrl+Alt+Left" into upper-case key names. Empty parts
// make the whole hotkey invalid.
func ParseHotkey(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(strings.ToUpper(s), "+")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
		if parts[i] == "" {
			return nil
		}
	}
	return parts
}

// Clear removes all registered hotkeys
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState updates the internal state of a key and checks for matches.
func (m *Manager) UpdateState(key string, isDown bool) {
	m.mu.Lock()
	key = strings.ToUpper(key)
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if isDown {
		m.checkMatches()
	}
}

func (m *Manager) checkMatches() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, hk := range m.hotkeys {
		match := true
		// All parts of the hotkey must be held
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}

		if match {
			log.Printf("Hotkey triggered: %s", hk.original)
			go hk.callback()
		}
	}
}

// Start initiates the platform-specific global key source.
func (m *Manager) Start() error {
	return m.startPlatform()
}

// Stop releases the platform key source
func (m *Manager) Stop() {
	m.stopPlatform()
}
