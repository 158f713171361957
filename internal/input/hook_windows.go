//go:build windows

package input

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

const (
	whKeyboardLL  = 13
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmQuit        = 0x0012
	vkVolumeDown  = 0xAE
	vkVolumeUp    = 0xAF
	llkhfInjected = 0x10
)

type kbdLLHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

// Only one low-level hook per process is installed
var (
	activeMu     sync.Mutex
	activeSource *Source
	hookHandle   uintptr
)

// Source offers the volume keys to a Handler through a low-level keyboard
// hook. Device paths and grab do not apply on Windows; returning true from
// the handler always suppresses the key.
type Source struct {
	handler  Handler
	threadID uint32
	done     chan struct{}
}

// NewSource creates the hook source. paths and grab are ignored.
func NewSource(paths []string, grab bool, h Handler) *Source {
	return &Source{handler: h, done: make(chan struct{})}
}

// Start installs the hook on a dedicated thread running a message loop
func (s *Source) Start() error {
	activeMu.Lock()
	if activeSource != nil {
		activeMu.Unlock()
		return errors.New("keyboard hook already installed")
	}
	activeSource = s
	activeMu.Unlock()

	started := make(chan error, 1)
	go func() {
		// Hooks are delivered to the installing thread's message loop
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer close(s.done)

		s.threadID = windows.GetCurrentThreadId()
		hMod, _, _ := procGetModuleHandle.Call(0)
		h, _, err := procSetWindowsHookEx.Call(whKeyboardLL, syscall.NewCallback(keyboardHookProc), hMod, 0)
		if h == 0 {
			started <- fmt.Errorf("SetWindowsHookEx: %w", err)
			return
		}
		hookHandle = h
		started <- nil
		log.Println("Input: Windows keyboard hook installed")

		var msg struct {
			Hwnd    syscall.Handle
			Message uint32
			Wparam  uintptr
			Lparam  uintptr
			Time    uint32
			Pt      struct{ X, Y int32 }
		}
		for {
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				break
			}
		}
		procUnhookWindowsHookEx.Call(h)
		hookHandle = 0
	}()

	if err := <-started; err != nil {
		activeMu.Lock()
		activeSource = nil
		activeMu.Unlock()
		return err
	}
	return nil
}

// Stop removes the hook
func (s *Source) Stop() error {
	activeMu.Lock()
	if activeSource != s {
		activeMu.Unlock()
		return nil
	}
	activeSource = nil
	activeMu.Unlock()

	procPostThreadMessage.Call(uintptr(s.threadID), wmQuit, 0, 0)
	<-s.done
	return nil
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
		if ev, ok := hookEvent(kbd, wParam); ok {
			activeMu.Lock()
			src := activeSource
			activeMu.Unlock()
			if src != nil && src.handler != nil && src.handler(ev) {
				return 1
			}
		}
	}
	ret, _, _ := procCallNextHookEx.Call(hookHandle, uintptr(nCode), wParam, lParam)
	return ret
}

func hookEvent(kbd *kbdLLHookStruct, wParam uintptr) (Event, bool) {
	// Keys we synthesise ourselves (e.g. the desktop consumer) must not loop back
	if kbd.Flags&llkhfInjected != 0 {
		return Event{}, false
	}

	var code uint16
	switch kbd.VkCode {
	case vkVolumeUp:
		code = KeyVolumeUp
	case vkVolumeDown:
		code = KeyVolumeDown
	default:
		return Event{}, false
	}

	switch wParam {
	case wmKeyDown, wmSysKeyDown:
		return Event{Type: EvKey, Code: code, Value: ValueDown}, true
	case wmKeyUp, wmSysKeyUp:
		return Event{Type: EvKey, Code: code, Value: ValueUp}, true
	}
	return Event{}, false
}
