//go:build windows

package hotkey

import (
	"fmt"
	"log"
	"runtime"
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
	whKeyboardLL = 13
	wmKeyDown    = 0x0100
	wmSysKeyDown = 0x0104
	wmQuit       = 0x0012
)

type kbdLLHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

var (
	instanceManager *Manager
	keyboardHook    uintptr
	hookThreadID    uint32
)

func (m *Manager) startPlatform() error {
	instanceManager = m

	started := make(chan error, 1)
	// Hooks must be registered in the same thread that runs the message loop
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		hookThreadID = windows.GetCurrentThreadId()
		hMod, _, _ := procGetModuleHandle.Call(0)

		var err error
		keyboardHook, _, err = procSetWindowsHookEx.Call(
			whKeyboardLL,
			syscall.NewCallback(keyboardHookPtr),
			hMod,
			0,
		)
		if keyboardHook == 0 {
			started <- fmt.Errorf("setting keyboard hook: %w", err)
			return
		}
		started <- nil
		log.Println("Hotkey Engine: Windows global keyboard hook started.")

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

		procUnhookWindowsHookEx.Call(keyboardHook)
		keyboardHook = 0
	}()

	return <-started
}

func (m *Manager) stopPlatform() {
	if hookThreadID != 0 {
		procPostThreadMessage.Call(uintptr(hookThreadID), wmQuit, 0, 0)
		hookThreadID = 0
	}
}

func keyboardHookPtr(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == 0 {
		kbd := (*kbdLLHookStruct)(unsafe.Pointer(lParam))
		if keyName := vkCodeToName(kbd.VkCode); keyName != "" {
			isDown := wParam == wmKeyDown || wParam == wmSysKeyDown
			instanceManager.UpdateState(keyName, isDown)
		}
	}
	ret, _, _ := procCallNextHookEx.Call(keyboardHook, uintptr(nCode), wParam, lParam)
	return ret
}

var vkNames = map[uint32]string{
	0x11: "CTRL", 0xA2: "CTRL", 0xA3: "CTRL",
	0x12: "ALT", 0xA4: "ALT", 0xA5: "ALT",
	0x10: "SHIFT", 0xA0: "SHIFT", 0xA1: "SHIFT",
	0x5B: "CMD", 0x5C: "CMD", // Windows key as CMD for consistency
	0x20: "SPACE",
	0x0D: "ENTER",
	0x1B: "ESC",
	0x08: "BACKSPACE",
	0x09: "TAB",
	0x21: "PAGEUP",
	0x22: "PAGEDOWN",
	0x23: "END",
	0x24: "HOME",
	0x25: "LEFT",
	0x26: "UP",
	0x27: "RIGHT",
	0x28: "DOWN",
	0x2D: "INSERT",
	0x2E: "DELETE",
	0xAE: "VOLUMEDOWN",
	0xAF: "VOLUMEUP",
}

func vkCodeToName(vk uint32) string {
	if name, ok := vkNames[vk]; ok {
		return name
	}

	// Letters A-Z and digits 0-9 share their ASCII codes
	if (vk >= 0x41 && vk <= 0x5A) || (vk >= 0x30 && vk <= 0x39) {
		return string(rune(vk))
	}

	// F1-F12
	if vk >= 0x70 && vk <= 0x7B {
		return fmt.Sprintf("F%d", vk-0x6F)
	}

	return ""
}
