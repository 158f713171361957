//go:build windows

package osutils

import (
	"log"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32          = windows.NewLazySystemDLL("user32.dll")
	procSendInput   = user32.NewProc("SendInput")
	procPostMessage = user32.NewProc("PostMessageW")
)

const (
	hwndBroadcast   = 0xFFFF
	wmSysCommand    = 0x0112
	scMonitorPower  = 0xF170
	monitorPowerOff = 2

	inputMouse      = 0
	mouseeventfMove = 0x0001
)

type mouseInput struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type mouseINPUT struct {
	Type uint32
	Mi   mouseInput // largest union member, no padding needed
}

// TurnOffDisplay puts the monitors into power-save
func TurnOffDisplay() error {
	log.Println("Display: Sleeping displays")
	r, _, err := procPostMessage.Call(hwndBroadcast, wmSysCommand, scMonitorPower, monitorPowerOff)
	if r == 0 {
		return err
	}
	return nil
}

// WakeUp simulates a one pixel mouse movement, which powers the monitors on
func WakeUp() error {
	log.Println("Display: Waking displays")

	var in mouseINPUT
	in.Type = inputMouse
	in.Mi.DwFlags = mouseeventfMove
	for _, d := range []int32{1, -1} {
		in.Mi.Dx, in.Mi.Dy = d, d
		r, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
		if r == 0 {
			return err
		}
	}
	return nil
}
