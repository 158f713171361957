// Package input connects physical keys to the gate and provides the virtual
// keyboard the desktop uses to replay keys.
//
// Key codes are Linux evdev codes on every platform; the Windows hook
// translates virtual-key codes into them.
package input

import (
	"encoding/binary"
	"errors"
	"fmt"

	"keyrelay/internal/gate"
)

// ErrUnsupported is returned by Source.Start where no input backend exists
var ErrUnsupported = errors.New("input capture not supported on this platform")

// Event types (linux/input-event-codes.h)
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03
	EvMsc uint16 = 0x04
	EvSw  uint16 = 0x05
	EvLed uint16 = 0x11
	EvSnd uint16 = 0x12
	EvRep uint16 = 0x14
	EvFF  uint16 = 0x15
)

// KeyMax is the highest evdev key code
const KeyMax uint16 = 0x2ff

// grabSafeEvents are the event types the passthrough keyboard can stand in
// for. LED, sound, repeat and force-feedback are driven by the OS, not read.
const grabSafeEvents = 1<<EvSyn | 1<<EvKey | 1<<EvMsc | 1<<EvLed | 1<<EvSnd | 1<<EvRep | 1<<EvFF

// grabbable reports whether a device with the EVIOCGBIT(0) mask evBits can
// be grabbed without losing events. Pointer axes and switches cannot be
// re-emitted by the passthrough keyboard.
func grabbable(evBits uint32) bool {
	return evBits&^grabSafeEvents == 0
}

// Key values carried by an EvKey event
const (
	ValueUp     int32 = 0
	ValueDown   int32 = 1
	ValueRepeat int32 = 2
)

// Key codes used by keyrelay
const (
	KeyEsc        uint16 = 1
	KeyBackspace  uint16 = 14
	KeyTab        uint16 = 15
	KeyEnter      uint16 = 28
	KeyLeftCtrl   uint16 = 29
	KeyLeftShift  uint16 = 42
	KeyRightShift uint16 = 54
	KeyLeftAlt    uint16 = 56
	KeySpace      uint16 = 57
	KeyRightCtrl  uint16 = 97
	KeyRightAlt   uint16 = 100
	KeyHome       uint16 = 102
	KeyUp         uint16 = 103
	KeyPageUp     uint16 = 104
	KeyLeft       uint16 = 105
	KeyRight      uint16 = 106
	KeyEnd        uint16 = 107
	KeyDown       uint16 = 108
	KeyPageDown   uint16 = 109
	KeyInsert     uint16 = 110
	KeyDelete     uint16 = 111
	KeyVolumeDown uint16 = 114
	KeyVolumeUp   uint16 = 115
	KeyPower      uint16 = 116
	KeyLeftMeta   uint16 = 125
	KeyRightMeta  uint16 = 126

	KeyNextSong     uint16 = 163
	KeyPlayPause    uint16 = 164
	KeyPreviousSong uint16 = 165
	KeyStopCD       uint16 = 166
	KeyPlayCD       uint16 = 200
	KeyPauseCD      uint16 = 201
)

// Event is one evdev input_event without its timestamp
type Event struct {
	Type  uint16
	Code  uint16
	Value int32
}

// Handler receives each key event and reports whether it was consumed.
// Consumed events never reach the OS.
type Handler func(ev Event) bool

// GateHandler adapts a gate to a Handler. Keys the gate does not know are
// never consumed.
func GateHandler(h gate.KeyHandler) Handler {
	return func(ev Event) bool {
		kev, ok := ToKeyEvent(ev)
		if !ok || kev.Code == gate.KeyUnknown {
			return false
		}
		if kev.Phase == gate.PhaseUp {
			return h.OnKeyUp(kev.Code)
		}
		return h.OnKeyDown(kev.Code)
	}
}

// ToKeyEvent converts an EvKey event. Autorepeat counts as a press.
func ToKeyEvent(ev Event) (gate.KeyEvent, bool) {
	if ev.Type != EvKey {
		return gate.KeyEvent{}, false
	}
	var phase gate.Phase
	switch ev.Value {
	case ValueDown, ValueRepeat:
		phase = gate.PhaseDown
	case ValueUp:
		phase = gate.PhaseUp
	default:
		return gate.KeyEvent{}, false
	}
	return gate.KeyEvent{Code: GateKey(ev.Code), Phase: phase}, true
}

// GateKey maps an evdev key code to the gate's key set
func GateKey(code uint16) gate.KeyCode {
	switch code {
	case KeyVolumeUp:
		return gate.KeyVolumeUp
	case KeyVolumeDown:
		return gate.KeyVolumeDown
	case KeyPower:
		return gate.KeyPower
	default:
		return gate.KeyUnknown
	}
}

// EventSize returns the input_event record size for a timeval of tvSize bytes
func EventSize(tvSize int) int {
	return tvSize + 8
}

// DecodeEvents splits buf into input_event records of size EventSize(tvSize).
// A trailing partial record is an error.
func DecodeEvents(buf []byte, tvSize int) ([]Event, error) {
	size := EventSize(tvSize)
	if tvSize != 8 && tvSize != 16 {
		return nil, fmt.Errorf("unsupported timeval size %d", tvSize)
	}
	if len(buf)%size != 0 {
		return nil, fmt.Errorf("short input_event read: %d bytes", len(buf))
	}

	events := make([]Event, 0, len(buf)/size)
	for off := 0; off < len(buf); off += size {
		rec := buf[off+tvSize : off+size]
		events = append(events, Event{
			Type:  binary.NativeEndian.Uint16(rec[0:2]),
			Code:  binary.NativeEndian.Uint16(rec[2:4]),
			Value: int32(binary.NativeEndian.Uint32(rec[4:8])),
		})
	}
	return events, nil
}

// EncodeEvent writes ev as an input_event record with a zero timestamp
func EncodeEvent(ev Event, tvSize int) []byte {
	buf := make([]byte, EventSize(tvSize))
	binary.NativeEndian.PutUint16(buf[tvSize:], ev.Type)
	binary.NativeEndian.PutUint16(buf[tvSize+2:], ev.Code)
	binary.NativeEndian.PutUint32(buf[tvSize+4:], uint32(ev.Value))
	return buf
}
