//go:build linux

package hotkey

import (
	"log"

	"keyrelay/internal/input"
)

var linuxSource *input.Source

func (m *Manager) startPlatform() error {
	if len(m.devices) == 0 {
		log.Println("Hotkey Engine: No shortcut_devices configured, global shortcuts disabled.")
		return nil
	}

	// Read without grabbing; the keys still reach the desktop
	src := input.NewSource(m.devices, false, func(ev input.Event) bool {
		if name := input.KeyName(ev.Code); name != "" {
			m.UpdateState(name, ev.Value != input.ValueUp)
		}
		return false
	})
	if err := src.Start(); err != nil {
		return err
	}
	linuxSource = src
	log.Println("Hotkey Engine: evdev shortcut reader started.")
	return nil
}

func (m *Manager) stopPlatform() {
	if linuxSource != nil {
		linuxSource.Stop()
		linuxSource = nil
	}
}
