package input

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// DevicesFile lists the kernel's input devices
const DevicesFile = "/proc/bus/input/devices"

// Device is one entry of DevicesFile
type Device struct {
	Name     string
	Path     string // /dev/input/eventN
	Handlers []string
}

// HasVolumeKeys is a rough guess from the handler list; keyboards and
// button devices expose a "kbd" handler.
func (d Device) HasVolumeKeys() bool {
	for _, h := range d.Handlers {
		if h == "kbd" {
			return true
		}
	}
	return false
}

// ListDevices reads DevicesFile. It fails on systems without procfs.
func ListDevices() ([]Device, error) {
	f, err := os.Open(DevicesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseDevices(f)
}

func parseDevices(r io.Reader) ([]Device, error) {
	var (
		devices []Device
		cur     Device
	)
	flush := func() {
		if cur.Path != "" {
			devices = append(devices, cur)
		}
		cur = Device{}
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "N: Name="):
			cur.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "H: Handlers="):
			cur.Handlers = strings.Fields(strings.TrimPrefix(line, "H: Handlers="))
			for _, h := range cur.Handlers {
				if strings.HasPrefix(h, "event") {
					cur.Path = "/dev/input/" + h
				}
			}
		}
	}
	flush()
	return devices, sc.Err()
}
