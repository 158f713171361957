//go:build linux

package input

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const uinputPath = "/dev/uinput"

// ioctl numbers from linux/uinput.h and linux/input.h
const (
	uiSetEvBit   = 0x40045564 // _IOW('U', 100, int)
	uiSetKeyBit  = 0x40045565 // _IOW('U', 101, int)
	uiSetRelBit  = 0x40045566 // _IOW('U', 102, int)
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	eviocGrab    = 0x40044590 // _IOW('E', 0x90, int)
	eviocGBitEv  = 0x80044520 // EVIOCGBIT(0, 4)

	uinputMaxNameSize = 80
	absCnt            = 64
	busVirtual        = 0x06

	relX    = 0x00
	relY    = 0x01
	btnLeft = 0x110
)

var timevalSize = int(unsafe.Sizeof(unix.Timeval{}))

// uinputUserDev mirrors struct uinput_user_dev
type uinputUserDev struct {
	Name         [uinputMaxNameSize]byte
	Bustype      uint16
	Vendor       uint16
	Product      uint16
	Version      uint16
	FFEffectsMax uint32
	AbsMax       [absCnt]int32
	AbsMin       [absCnt]int32
	AbsFuzz      [absCnt]int32
	AbsFlat      [absCnt]int32
}

// VirtualKeyboard is a uinput device that can emit the keys it was created
// with.
type VirtualKeyboard struct {
	mu   sync.Mutex
	f    *os.File
	keys map[uint16]bool
}

// NewVirtualKeyboard creates a uinput keyboard named name able to emit keys
func NewVirtualKeyboard(name string, keys []uint16) (*VirtualKeyboard, error) {
	allowed := make(map[uint16]bool, len(keys))
	f, err := createDevice(name, 0x1, func(fd int) error {
		if err := unix.IoctlSetInt(fd, uiSetEvBit, int(EvKey)); err != nil {
			return fmt.Errorf("UI_SET_EVBIT: %w", err)
		}
		for _, k := range keys {
			if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(k)); err != nil {
				return fmt.Errorf("UI_SET_KEYBIT %d: %w", k, err)
			}
			allowed[k] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &VirtualKeyboard{f: f, keys: allowed}, nil
}

// createDevice opens uinput, lets setup enable event bits, and creates the
// device.
func createDevice(name string, product uint16, setup func(fd int) error) (*os.File, error) {
	f, err := os.OpenFile(uinputPath, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uinputPath, err)
	}

	if err := setup(int(f.Fd())); err != nil {
		f.Close()
		return nil, err
	}

	dev := uinputUserDev{Bustype: busVirtual, Vendor: 0x1, Product: product, Version: 1}
	copy(dev.Name[:uinputMaxNameSize-1], name)
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.NativeEndian, &dev); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write uinput_user_dev: %w", err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), uiDevCreate, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("UI_DEV_CREATE: %w", err)
	}

	// udev needs a moment before the first event is routed
	time.Sleep(100 * time.Millisecond)
	return f, nil
}

func destroyDevice(f *os.File) error {
	unix.IoctlSetInt(int(f.Fd()), uiDevDestroy, 0)
	return f.Close()
}

// Emit writes a key transition followed by a SYN_REPORT
func (k *VirtualKeyboard) Emit(code uint16, value int32) error {
	if !k.keys[code] {
		return fmt.Errorf("key %d not enabled on virtual keyboard", code)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.f == nil {
		return os.ErrClosed
	}

	rec := append(EncodeEvent(Event{Type: EvKey, Code: code, Value: value}, timevalSize),
		EncodeEvent(Event{Type: EvSyn}, timevalSize)...)
	_, err := k.f.Write(rec)
	return err
}

// Tap presses and releases code
func (k *VirtualKeyboard) Tap(code uint16) error {
	if err := k.Emit(code, ValueDown); err != nil {
		return err
	}
	return k.Emit(code, ValueUp)
}

// Close destroys the device
func (k *VirtualKeyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.f == nil {
		return nil
	}
	err := destroyDevice(k.f)
	k.f = nil
	return err
}

// VirtualPointer is a uinput relative mouse. The compositor applies its
// motion to the session cursor, including on Wayland.
type VirtualPointer struct {
	mu sync.Mutex
	f  *os.File
}

// NewVirtualPointer creates a uinput mouse named name
func NewVirtualPointer(name string) (*VirtualPointer, error) {
	f, err := createDevice(name, 0x2, func(fd int) error {
		for _, bit := range []int{int(EvKey), int(EvRel)} {
			if err := unix.IoctlSetInt(fd, uiSetEvBit, bit); err != nil {
				return fmt.Errorf("UI_SET_EVBIT %d: %w", bit, err)
			}
		}
		// Without a button the device is not classified as a pointer
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, btnLeft); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT: %w", err)
		}
		for _, axis := range []int{relX, relY} {
			if err := unix.IoctlSetInt(fd, uiSetRelBit, axis); err != nil {
				return fmt.Errorf("UI_SET_RELBIT %d: %w", axis, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &VirtualPointer{f: f}, nil
}

// MoveBy emits one relative motion frame
func (p *VirtualPointer) MoveBy(dx, dy int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return os.ErrClosed
	}

	var rec []byte
	if dx != 0 {
		rec = append(rec, EncodeEvent(Event{Type: EvRel, Code: relX, Value: int32(dx)}, timevalSize)...)
	}
	if dy != 0 {
		rec = append(rec, EncodeEvent(Event{Type: EvRel, Code: relY, Value: int32(dy)}, timevalSize)...)
	}
	if rec == nil {
		return nil
	}
	rec = append(rec, EncodeEvent(Event{Type: EvSyn}, timevalSize)...)
	_, err := p.f.Write(rec)
	return err
}

// Close destroys the device
func (p *VirtualPointer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.f == nil {
		return nil
	}
	err := destroyDevice(p.f)
	p.f = nil
	return err
}

// passthroughKeys is every key a grabbed device may need to re-emit
func passthroughKeys() []uint16 {
	keys := make([]uint16, 0, KeyMax)
	for k := uint16(1); k <= KeyMax; k++ {
		keys = append(keys, k)
	}
	return keys
}
