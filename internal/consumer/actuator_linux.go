//go:build linux

package consumer

import (
	"fmt"

	"keyrelay/internal/input"
	"keyrelay/internal/protocol"
)

var mediaKeys = map[string]uint16{
	protocol.MediaPlayPause: input.KeyPlayPause,
	protocol.MediaPlay:      input.KeyPlayCD,
	protocol.MediaPause:     input.KeyPauseCD,
	protocol.MediaNext:      input.KeyNextSong,
	protocol.MediaPrevious:  input.KeyPreviousSong,
	protocol.MediaStop:      input.KeyStopCD,
}

// keyActuator replays volume and media keys through a uinput keyboard so
// the desktop environment applies its own volume step, OSD and MPRIS
// routing.
type keyActuator struct {
	kb *input.VirtualKeyboard
}

// NewSystemActuator creates the platform volume actuator
func NewSystemActuator() (Actuator, func() error, error) {
	keys := []uint16{input.KeyVolumeUp, input.KeyVolumeDown}
	for _, k := range mediaKeys {
		keys = append(keys, k)
	}
	kb, err := input.NewVirtualKeyboard("keyrelay volume", keys)
	if err != nil {
		return nil, nil, err
	}
	return keyActuator{kb: kb}, kb.Close, nil
}

func (a keyActuator) VolumeUp() error   { return a.kb.Tap(input.KeyVolumeUp) }
func (a keyActuator) VolumeDown() error { return a.kb.Tap(input.KeyVolumeDown) }

func (a keyActuator) Media(action string) error {
	key, ok := mediaKeys[action]
	if !ok {
		return fmt.Errorf("unknown media action %q", action)
	}
	return a.kb.Tap(key)
}
