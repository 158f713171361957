//go:build windows

package consumer

import (
	"fmt"
	"unsafe"

	"keyrelay/internal/protocol"

	"golang.org/x/sys/windows"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	inputKeyboard  = 1
	keyeventfKeyUp = 0x0002
	vkVolumeDown   = 0xAE
	vkVolumeUp     = 0xAF
	vkMediaNext    = 0xB0
	vkMediaPrev    = 0xB1
	vkMediaStop    = 0xB2
	vkMediaPlay    = 0xB3 // VK_MEDIA_PLAY_PAUSE; there is no separate play or pause key
)

var mediaVKs = map[string]uint16{
	protocol.MediaPlayPause: vkMediaPlay,
	protocol.MediaPlay:      vkMediaPlay,
	protocol.MediaPause:     vkMediaPlay,
	protocol.MediaNext:      vkMediaNext,
	protocol.MediaPrevious:  vkMediaPrev,
	protocol.MediaStop:      vkMediaStop,
}

type keybdInput struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type keybdINPUT struct {
	Type uint32
	Ki   keybdInput
	_    [8]byte // pad to sizeof(INPUT)
}

type sendInputActuator struct{}

// NewSystemActuator creates the platform volume actuator
func NewSystemActuator() (Actuator, func() error, error) {
	return sendInputActuator{}, func() error { return nil }, nil
}

func (sendInputActuator) VolumeUp() error   { return tapVK(vkVolumeUp) }
func (sendInputActuator) VolumeDown() error { return tapVK(vkVolumeDown) }

func (sendInputActuator) Media(action string) error {
	vk, ok := mediaVKs[action]
	if !ok {
		return fmt.Errorf("unknown media action %q", action)
	}
	return tapVK(vk)
}

func tapVK(vk uint16) error {
	inputs := [2]keybdINPUT{
		{Type: inputKeyboard, Ki: keybdInput{WVk: vk}},
		{Type: inputKeyboard, Ki: keybdInput{WVk: vk, DwFlags: keyeventfKeyUp}},
	}
	n, _, err := procSendInput.Call(2, uintptr(unsafe.Pointer(&inputs[0])), unsafe.Sizeof(inputs[0]))
	if n != 2 {
		return err
	}
	return nil
}
