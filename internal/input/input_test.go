package input

import (
	"strings"
	"testing"

	"keyrelay/internal/gate"
	"keyrelay/internal/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyRecorder struct {
	calls   []string
	consume bool
}

func (r *keyRecorder) OnKeyDown(code gate.KeyCode) bool {
	r.calls = append(r.calls, "down:"+code.String())
	return r.consume
}

func (r *keyRecorder) OnKeyUp(code gate.KeyCode) bool {
	r.calls = append(r.calls, "up:"+code.String())
	return r.consume
}

func TestDecodeEventsBothLayouts(t *testing.T) {
	for _, tv := range []int{8, 16} {
		evs := []Event{
			{Type: EvKey, Code: KeyVolumeUp, Value: ValueDown},
			{Type: EvSyn},
			{Type: EvKey, Code: KeyVolumeUp, Value: ValueUp},
		}
		var buf []byte
		for _, ev := range evs {
			buf = append(buf, EncodeEvent(ev, tv)...)
		}
		require.Len(t, buf, 3*EventSize(tv))

		got, err := DecodeEvents(buf, tv)
		require.NoError(t, err)
		assert.Equal(t, evs, got, "timeval size %d", tv)
	}
}

func TestDecodeEventsRejectsPartial(t *testing.T) {
	_, err := DecodeEvents(make([]byte, 25), 16)
	assert.Error(t, err)

	_, err = DecodeEvents(make([]byte, 24), 12)
	assert.Error(t, err)
}

func TestNegativeValueSurvives(t *testing.T) {
	got, err := DecodeEvents(EncodeEvent(Event{Type: EvMsc, Code: 4, Value: -7}, 16), 16)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), got[0].Value)
}

func TestToKeyEvent(t *testing.T) {
	kev, ok := ToKeyEvent(Event{Type: EvKey, Code: KeyPower, Value: ValueDown})
	require.True(t, ok)
	assert.Equal(t, gate.KeyEvent{Code: gate.KeyPower, Phase: gate.PhaseDown}, kev)

	kev, ok = ToKeyEvent(Event{Type: EvKey, Code: KeyVolumeDown, Value: ValueRepeat})
	require.True(t, ok)
	assert.Equal(t, gate.PhaseDown, kev.Phase, "autorepeat is a press")

	kev, ok = ToKeyEvent(Event{Type: EvKey, Code: KeyVolumeUp, Value: ValueUp})
	require.True(t, ok)
	assert.Equal(t, gate.KeyEvent{Code: gate.KeyVolumeUp, Phase: gate.PhaseUp}, kev)

	_, ok = ToKeyEvent(Event{Type: EvSyn})
	assert.False(t, ok)
	_, ok = ToKeyEvent(Event{Type: EvKey, Code: KeyPower, Value: 5})
	assert.False(t, ok)
}

func TestGateHandler(t *testing.T) {
	rec := &keyRecorder{consume: true}
	h := GateHandler(rec)

	assert.True(t, h(Event{Type: EvKey, Code: KeyPower, Value: ValueDown}))
	assert.True(t, h(Event{Type: EvKey, Code: KeyPower, Value: ValueUp}))
	assert.False(t, h(Event{Type: EvKey, Code: 30, Value: ValueDown}), "unknown keys go to the OS")
	assert.False(t, h(Event{Type: EvSyn}))
	assert.Equal(t, []string{"down:POWER", "up:POWER"}, rec.calls)
}

func TestGateHandlerWithRealGate(t *testing.T) {
	var sent []string
	g := gate.New(gate.NewPolicy(gate.VolumeGated), senderFunc(func(name string) { sent = append(sent, name) }))
	h := GateHandler(g)

	assert.False(t, h(Event{Type: EvKey, Code: KeyVolumeUp, Value: ValueDown}))
	g.SetPolicy(true)
	assert.True(t, h(Event{Type: EvKey, Code: KeyVolumeUp, Value: ValueDown}))
	assert.False(t, h(Event{Type: EvKey, Code: KeyVolumeUp, Value: ValueUp}))
	assert.Equal(t, []string{"volume_up"}, sent)
}

func TestKeyName(t *testing.T) {
	cases := map[uint16]string{
		KeyLeftCtrl: "CTRL",
		KeyRightAlt: "ALT",
		KeyLeftMeta: "CMD",
		KeyLeft:     "LEFT",
		16:          "Q",
		30:          "A",
		38:          "L",
		50:          "M",
		2:           "1",
		10:          "9",
		11:          "0",
		59:          "F1",
		68:          "F10",
		88:          "F12",
		KeyVolumeUp: "VOLUMEUP",
		240:         "",
	}
	for code, want := range cases {
		assert.Equal(t, want, KeyName(code), "code %d", code)
	}
}

const procDevices = `I: Bus=0019 Vendor=0000 Product=0001 Version=0000
N: Name="Power Button"
P: Phys=LNXPWRBN/button/input0
H: Handlers=kbd event0
B: EV=3

I: Bus=0003 Vendor=046d Product=c31c Version=0110
N: Name="Logitech USB Keyboard"
H: Handlers=sysrq kbd leds event3
B: EV=120013

I: Bus=0003 Vendor=046d Product=c077 Version=0111
N: Name="Logitech USB Optical Mouse"
H: Handlers=mouse0 event4
`

func TestParseDevices(t *testing.T) {
	devs, err := parseDevices(strings.NewReader(procDevices))
	require.NoError(t, err)
	require.Len(t, devs, 3)

	assert.Equal(t, "Power Button", devs[0].Name)
	assert.Equal(t, "/dev/input/event0", devs[0].Path)
	assert.True(t, devs[0].HasVolumeKeys())

	assert.Equal(t, "/dev/input/event3", devs[1].Path)
	assert.Equal(t, "/dev/input/event4", devs[2].Path)
	assert.False(t, devs[2].HasVolumeKeys())
}

type senderFunc func(name string)

func (f senderFunc) Send(cmd protocol.Command) { f(cmd.Name()) }

func TestGrabbable(t *testing.T) {
	bit := func(types ...uint16) uint32 {
		var m uint32
		for _, ty := range types {
			m |= 1 << ty
		}
		return m
	}

	assert.True(t, grabbable(bit(EvSyn, EvKey)), "power button")
	assert.True(t, grabbable(bit(EvSyn, EvKey, EvMsc, EvLed, EvRep)), "keyboard")
	assert.False(t, grabbable(bit(EvSyn, EvKey, EvRel)), "mouse")
	assert.False(t, grabbable(bit(EvSyn, EvKey, EvAbs)), "touchscreen")
	assert.False(t, grabbable(bit(EvSyn, EvKey, EvSw)), "lid switch")
}
