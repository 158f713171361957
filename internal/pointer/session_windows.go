//go:build windows

package pointer

import (
	"fmt"
	"log"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procGetCursorPos = user32.NewProc("GetCursorPos")
	procSetCursorPos = user32.NewProc("SetCursorPos")
)

type point struct {
	X, Y int32
}

type win32Session struct{}

// NewSystemSession returns the Win32 desktop cursor
func NewSystemSession() Session {
	log.Println("Pointer: using Win32 session cursor")
	return win32Session{}
}

func (win32Session) CursorPos() (Position, error) {
	var pt point
	ret, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return Position{}, fmt.Errorf("GetCursorPos: %w", err)
	}
	return Position{X: int(pt.X), Y: int(pt.Y)}, nil
}

func (win32Session) SetCursorPos(p Position) error {
	ret, _, err := procSetCursorPos.Call(uintptr(int32(p.X)), uintptr(int32(p.Y)))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos: %w", err)
	}
	return nil
}
