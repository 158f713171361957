package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyrelay/internal/channel"
	"keyrelay/internal/protocol"
)

type recorder struct {
	names []string
}

func (r *recorder) Send(cmd protocol.Command) { r.names = append(r.names, cmd.Name()) }

func newGate(mode VolumeMode) (*Gate, *recorder) {
	rec := &recorder{}
	return New(NewPolicy(mode), rec), rec
}

func TestUnknownKeysPassThrough(t *testing.T) {
	g, rec := newGate(VolumeGated)
	g.SetPolicy(true)

	for _, code := range []KeyCode{KeyUnknown, KeyCode(99)} {
		assert.False(t, g.OnKeyDown(code))
		assert.False(t, g.OnKeyUp(code))
	}
	assert.Empty(t, rec.names)
}

func TestPowerAlwaysIntercepted(t *testing.T) {
	for _, enabled := range []bool{false, true} {
		g, rec := newGate(VolumeGated)
		g.SetPolicy(enabled)

		assert.True(t, g.OnKeyDown(KeyPower))
		assert.True(t, g.OnKeyUp(KeyPower))
		assert.Equal(t, []string{protocol.CmdPowerDown, protocol.CmdPowerUp}, rec.names)
	}
}

func TestVolumeDisabledByDefault(t *testing.T) {
	g, rec := newGate(VolumeGated)

	assert.False(t, g.OnKeyDown(KeyVolumeUp))
	assert.False(t, g.OnKeyDown(KeyVolumeDown))
	assert.Empty(t, rec.names)
}

func TestVolumeEnabled(t *testing.T) {
	g, rec := newGate(VolumeGated)
	g.SetPolicy(true)

	assert.True(t, g.OnKeyDown(KeyVolumeUp))
	assert.Equal(t, []string{protocol.CmdVolumeUp}, rec.names)

	assert.True(t, g.OnKeyDown(KeyVolumeDown))
	assert.Equal(t, []string{protocol.CmdVolumeUp, protocol.CmdVolumeDown}, rec.names)
}

func TestVolumeReleaseNeverConsumed(t *testing.T) {
	g, rec := newGate(VolumeAlways)

	assert.False(t, g.OnKeyUp(KeyVolumeUp))
	assert.False(t, g.OnKeyUp(KeyVolumeDown))
	assert.Empty(t, rec.names)
}

func TestVolumeAlwaysMode(t *testing.T) {
	g, rec := newGate(VolumeAlways)

	assert.False(t, g.Policy().InterceptVolume())
	assert.True(t, g.OnKeyDown(KeyVolumeUp))
	assert.Equal(t, []string{protocol.CmdVolumeUp}, rec.names)
}

func TestSetPolicyLastWriteWins(t *testing.T) {
	g, _ := newGate(VolumeGated)

	g.SetPolicy(true)
	g.SetPolicy(false)
	assert.False(t, g.Policy().InterceptVolume())

	g.SetPolicy(true)
	g.SetPolicy(true)
	assert.True(t, g.Policy().InterceptVolume())
}

func TestHandleByPhase(t *testing.T) {
	g, rec := newGate(VolumeGated)

	assert.True(t, g.Handle(KeyEvent{Code: KeyPower, Phase: PhaseDown}))
	assert.True(t, g.Handle(KeyEvent{Code: KeyPower, Phase: PhaseUp}))
	assert.False(t, g.Handle(KeyEvent{Code: KeyVolumeUp, Phase: PhaseDown}))
	assert.Equal(t, []string{protocol.CmdPowerDown, protocol.CmdPowerUp}, rec.names)
}

func TestHandleCallSetInterceptVolume(t *testing.T) {
	g, _ := newGate(VolumeGated)

	res := g.HandleCall(protocol.CallSetInterceptVolume, map[string]any{"enabled": true})
	require.True(t, res.IsOK())
	assert.True(t, g.Policy().InterceptVolume())

	res = g.HandleCall(protocol.CallSetInterceptVolume, map[string]any{"enabled": "no"})
	assert.Equal(t, protocol.StatusInvalidArgs, res.Status)
	assert.True(t, g.Policy().InterceptVolume(), "malformed args leave the policy untouched")
}

func TestHandleCallUnknownName(t *testing.T) {
	g, _ := newGate(VolumeGated)
	g.SetPolicy(true)

	res := g.HandleCall("unknown_action", nil)
	assert.Equal(t, protocol.StatusNotImplemented, res.Status)
	assert.True(t, g.Policy().InterceptVolume())
}

func TestGateOverChannelPreservesOrder(t *testing.T) {
	var got []string
	done := make(chan struct{})
	l := channel.NewLoopback(func(cmd protocol.Command) {
		got = append(got, cmd.Name())
		if len(got) == 2 {
			close(done)
		}
	}, 8)
	defer l.Close()

	ch := channel.New(l)
	g := New(NewPolicy(VolumeGated), ch)
	ch.OnReceive(g.HandleCall)

	require.True(t, ch.Receive(protocol.CallSetInterceptVolume, map[string]any{"enabled": true}).IsOK())
	g.OnKeyDown(KeyVolumeUp)
	g.OnKeyDown(KeyVolumeDown)

	<-done
	assert.Equal(t, []string{protocol.CmdVolumeUp, protocol.CmdVolumeDown}, got)
}

func TestParseVolumeMode(t *testing.T) {
	m, err := ParseVolumeMode("")
	require.NoError(t, err)
	assert.Equal(t, VolumeGated, m)

	m, err = ParseVolumeMode("always")
	require.NoError(t, err)
	assert.Equal(t, VolumeAlways, m)

	_, err = ParseVolumeMode("sometimes")
	assert.Error(t, err)
}

func TestKeyStrings(t *testing.T) {
	assert.Equal(t, "POWER", KeyPower.String())
	assert.Equal(t, "UNKNOWN", KeyCode(42).String())
	assert.Equal(t, "UP", PhaseUp.String())
}
