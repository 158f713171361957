//go:build darwin

package consumer

import (
	"fmt"
	"os/exec"

	"keyrelay/internal/protocol"
)

// volumeStep matches one press of the hardware volume key (100/16)
const volumeStep = 6

// musicVerbs are the Music.app commands for each media action
var musicVerbs = map[string]string{
	protocol.MediaPlayPause: "playpause",
	protocol.MediaPlay:      "play",
	protocol.MediaPause:     "pause",
	protocol.MediaNext:      "next track",
	protocol.MediaPrevious:  "previous track",
	protocol.MediaStop:      "stop",
}

type osascriptActuator struct{}

// NewSystemActuator creates the platform volume actuator
func NewSystemActuator() (Actuator, func() error, error) {
	return osascriptActuator{}, func() error { return nil }, nil
}

func (osascriptActuator) VolumeUp() error   { return adjustVolume(volumeStep) }
func (osascriptActuator) VolumeDown() error { return adjustVolume(-volumeStep) }

func (osascriptActuator) Media(action string) error {
	verb, ok := musicVerbs[action]
	if !ok {
		return fmt.Errorf("unknown media action %q", action)
	}
	script := fmt.Sprintf(`if application "Music" is running then tell application "Music" to %s`, verb)
	if out, err := exec.Command("osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w (%s)", err, out)
	}
	return nil
}

func adjustVolume(delta int) error {
	script := fmt.Sprintf("set volume output volume ((output volume of (get volume settings)) + (%d))", delta)
	if out, err := exec.Command("osascript", "-e", script).CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w (%s)", err, out)
	}
	return nil
}
