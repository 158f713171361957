package hotkey

import (
	"sync"
	"testing"
	"time"

	"keyrelay/internal/config"
	"keyrelay/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invocation struct {
	name string
	args map[string]any
}

type fakeHost struct {
	mu    sync.Mutex
	calls []invocation
}

func (h *fakeHost) Invoke(name string, args map[string]any) protocol.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, invocation{name, args})
	return protocol.OK()
}

func (h *fakeHost) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func TestParseHotkey(t *testing.T) {
	assert.Equal(t, []string{"CTRL", "ALT", "LEFT"}, ParseHotkey("Ctrl + Alt+left"))
	assert.Nil(t, ParseHotkey(""))
	assert.Nil(t, ParseHotkey("Ctrl++X"))
}

func TestRegisterRejectsEmpty(t *testing.T) {
	m := NewManager(nil)
	assert.Equal(t, -1, m.Register("  ", func() {}))
	assert.Equal(t, 0, m.Register("Ctrl+X", func() {}))
}

func TestShortcutInvokesEntryPoint(t *testing.T) {
	m := NewManager(nil)
	host := &fakeHost{}
	m.Bind([]config.Shortcut{
		{Hotkey: "Ctrl+Alt+Left", Call: protocol.CallMovePointer, Args: map[string]any{"dx": -40, "dy": 0}},
		{Hotkey: "Ctrl+Alt+Right", Call: protocol.CallMovePointer, Args: map[string]any{"dx": 40, "dy": 0}},
	}, host)

	m.UpdateState("CTRL", true)
	m.UpdateState("alt", true)
	assert.Never(t, func() bool { return host.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	m.UpdateState("LEFT", true)
	require.Eventually(t, func() bool { return host.count() == 1 }, time.Second, 5*time.Millisecond)

	host.mu.Lock()
	assert.Equal(t, protocol.CallMovePointer, host.calls[0].name)
	assert.Equal(t, -40, host.calls[0].args["dx"])
	host.mu.Unlock()
}

func TestReleasedKeyStopsMatching(t *testing.T) {
	m := NewManager(nil)
	host := &fakeHost{}
	m.Bind([]config.Shortcut{{Hotkey: "Ctrl+Up", Call: "x"}}, host)

	m.UpdateState("CTRL", true)
	m.UpdateState("CTRL", false)
	m.UpdateState("UP", true)
	assert.Never(t, func() bool { return host.count() > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestClear(t *testing.T) {
	m := NewManager(nil)
	fired := make(chan struct{}, 1)
	m.Register("F5", func() { fired <- struct{}{} })
	m.Clear()
	m.UpdateState("F5", true)

	select {
	case <-fired:
		t.Fatal("cleared hotkey fired")
	case <-time.After(50 * time.Millisecond):
	}
}
