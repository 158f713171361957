//go:build linux

package osutils

import (
	"fmt"
	"log"
	"os/exec"
)

// displayTools are tried in order; KDE Wayland first, then X11
var displayTools = []struct {
	bin     string
	off, on []string
}{
	{bin: "kscreen-doctor", off: []string{"--dpms", "off"}, on: []string{"--dpms", "on"}},
	{bin: "xset", off: []string{"dpms", "force", "off"}, on: []string{"dpms", "force", "on"}},
}

// TurnOffDisplay puts the displays to sleep
func TurnOffDisplay() error {
	log.Println("Display: Sleeping displays")
	return runDisplayTool(false)
}

// WakeUp turns the displays back on
func WakeUp() error {
	log.Println("Display: Waking displays")
	return runDisplayTool(true)
}

func runDisplayTool(on bool) error {
	var lastErr error = ErrUnsupported
	for _, tool := range displayTools {
		path, err := exec.LookPath(tool.bin)
		if err != nil {
			continue
		}
		args := tool.off
		if on {
			args = tool.on
		}
		out, err := exec.Command(path, args...).CombinedOutput()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("%s: %w (%s)", tool.bin, err, out)
		log.Printf("Display: %v", lastErr)
	}
	return lastErr
}
