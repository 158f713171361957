package channel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyrelay/internal/protocol"
)

func TestReceiveWithoutHandler(t *testing.T) {
	c := New(nil)
	res := c.Receive("setInterceptVolume", map[string]any{"enabled": true})
	assert.Equal(t, protocol.StatusNotImplemented, res.Status)
}

func TestOnReceiveReplacesHandler(t *testing.T) {
	c := New(nil)
	c.OnReceive(func(string, map[string]any) protocol.Result { return protocol.Failed(assert.AnError) })
	c.OnReceive(func(string, map[string]any) protocol.Result { return protocol.OK() })

	assert.True(t, c.Receive("anything", nil).IsOK())
}

func TestSendForwards(t *testing.T) {
	var got []string
	c := New(SenderFunc(func(cmd protocol.Command) { got = append(got, cmd.Name()) }))

	c.Send(protocol.NewCommand(protocol.CmdPowerDown, nil))
	c.Send(protocol.NewCommand(protocol.CmdPowerUp, nil))

	assert.Equal(t, []string{protocol.CmdPowerDown, protocol.CmdPowerUp}, got)
}

func TestRouterUnknownName(t *testing.T) {
	r := NewRouter()
	r.Handle("known", func(string, map[string]any) protocol.Result { return protocol.OK() })

	assert.True(t, r.Dispatch("known", nil).IsOK())

	res := r.Dispatch("unknown_action", nil)
	assert.Equal(t, protocol.StatusNotImplemented, res.Status)
	assert.Contains(t, res.Err, "unknown_action")
}

func TestRouterRecoversPanics(t *testing.T) {
	r := NewRouter()
	r.Handle("boom", func(string, map[string]any) protocol.Result { panic("bad handler") })

	res := r.Dispatch("boom", nil)
	assert.Equal(t, protocol.StatusError, res.Status)
	assert.Contains(t, res.Err, "bad handler")
}

func TestLoopbackPreservesOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	l := NewLoopback(func(cmd protocol.Command) {
		mu.Lock()
		got = append(got, cmd.Name())
		mu.Unlock()
	}, 16)

	want := []string{protocol.CmdVolumeUp, protocol.CmdVolumeDown, protocol.CmdPowerDown, protocol.CmdPowerUp}
	for _, name := range want {
		l.Send(protocol.NewCommand(name, nil))
	}
	l.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, len(want))
	assert.Equal(t, want, got)
}

func TestLoopbackSendAfterClose(t *testing.T) {
	called := false
	l := NewLoopback(func(protocol.Command) { called = true }, 1)
	l.Close()
	l.Close()

	l.Send(protocol.NewCommand(protocol.CmdVolumeUp, nil))
	assert.False(t, called)
}
