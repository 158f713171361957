//go:build linux

package input

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Source reads evdev devices and offers their key events to a Handler
type Source struct {
	paths   []string
	grab    bool
	handler Handler

	mu          sync.Mutex
	devices     []openDevice
	passthrough *VirtualKeyboard
	wg          sync.WaitGroup
}

type openDevice struct {
	f       *os.File
	grabbed bool
}

// NewSource creates a source over the given /dev/input/event* paths. With
// grab set, key-only devices are taken exclusively and unconsumed keys are
// re-emitted through a virtual keyboard. Devices that also report pointer
// axes or switches are read without a grab.
func NewSource(paths []string, grab bool, h Handler) *Source {
	return &Source{paths: paths, grab: grab, handler: h}
}

// Start opens the devices and begins reading
func (s *Source) Start() error {
	if len(s.paths) == 0 {
		return errors.New("no input devices configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.grab {
		kb, err := NewVirtualKeyboard("keyrelay passthrough", passthroughKeys())
		if err != nil {
			return fmt.Errorf("passthrough keyboard: %w", err)
		}
		s.passthrough = kb
	}

	for _, path := range s.paths {
		f, err := os.Open(path)
		if err != nil {
			s.closeLocked()
			return fmt.Errorf("open %s: %w", path, err)
		}
		dev := openDevice{f: f}
		if s.grab {
			if bits, err := unix.IoctlGetUint32(int(f.Fd()), eviocGBitEv); err != nil || !grabbable(bits) {
				log.Printf("Input: %s reports more than keys (bits=%#x), reading without grab; consumed keys also reach the OS", path, bits)
			} else if err := unix.IoctlSetInt(int(f.Fd()), eviocGrab, 1); err != nil {
				f.Close()
				s.closeLocked()
				return fmt.Errorf("EVIOCGRAB %s: %w", path, err)
			} else {
				dev.grabbed = true
			}
		}
		s.devices = append(s.devices, dev)
		log.Printf("Input: Reading %s (grab=%v)", path, dev.grabbed)

		// Only a grabbed device needs its unconsumed keys re-emitted
		var pt *VirtualKeyboard
		if dev.grabbed {
			pt = s.passthrough
		}
		s.wg.Add(1)
		go s.readLoop(path, f, pt)
	}
	return nil
}

func (s *Source) readLoop(path string, f *os.File, pt *VirtualKeyboard) {
	defer s.wg.Done()

	size := EventSize(timevalSize)
	buf := make([]byte, size*64)
	for {
		n, err := io.ReadAtLeast(f, buf, size)
		if err != nil {
			if !errors.Is(err, os.ErrClosed) {
				log.Printf("Input: %s stopped: %v", path, err)
			}
			return
		}
		events, err := DecodeEvents(buf[:n-n%size], timevalSize)
		if err != nil {
			log.Printf("Input: %s: %v", path, err)
			continue
		}
		for _, ev := range events {
			s.dispatch(ev, pt)
		}
	}
}

func (s *Source) dispatch(ev Event, pt *VirtualKeyboard) {
	if ev.Type != EvKey {
		return
	}
	if s.handler != nil && s.handler(ev) {
		return
	}
	if pt != nil {
		if err := pt.Emit(ev.Code, ev.Value); err != nil {
			log.Printf("Input: passthrough of key %d failed: %v", ev.Code, err)
		}
	}
}

// Stop releases the devices and waits for the readers
func (s *Source) Stop() error {
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Source) closeLocked() {
	for _, dev := range s.devices {
		if dev.grabbed {
			unix.IoctlSetInt(int(dev.f.Fd()), eviocGrab, 0)
		}
		dev.f.Close()
	}
	s.devices = nil
	if s.passthrough != nil {
		s.passthrough.Close()
		s.passthrough = nil
	}
}
