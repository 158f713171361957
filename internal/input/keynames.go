package input

import "fmt"

var keyNames = map[uint16]string{
	KeyLeftCtrl:   "CTRL",
	KeyRightCtrl:  "CTRL",
	KeyLeftAlt:    "ALT",
	KeyRightAlt:   "ALT",
	KeyLeftShift:  "SHIFT",
	KeyRightShift: "SHIFT",
	KeyLeftMeta:   "CMD",
	KeyRightMeta:  "CMD",
	KeySpace:      "SPACE",
	KeyEnter:      "ENTER",
	KeyEsc:        "ESC",
	KeyBackspace:  "BACKSPACE",
	KeyTab:        "TAB",
	KeyHome:       "HOME",
	KeyEnd:        "END",
	KeyPageUp:     "PAGEUP",
	KeyPageDown:   "PAGEDOWN",
	KeyInsert:     "INSERT",
	KeyDelete:     "DELETE",
	KeyUp:         "UP",
	KeyDown:       "DOWN",
	KeyLeft:       "LEFT",
	KeyRight:      "RIGHT",
	KeyVolumeUp:   "VOLUMEUP",
	KeyVolumeDown: "VOLUMEDOWN",
}

// evdev letter codes follow the physical QWERTY rows
var letterRows = []struct {
	first   uint16
	letters string
}{
	{16, "QWERTYUIOP"},
	{30, "ASDFGHJKL"},
	{44, "ZXCVBNM"},
}

// KeyName returns the hotkey name of an evdev key code ("CTRL", "A", "F5",
// "LEFT"), or "" for keys shortcuts cannot use.
func KeyName(code uint16) string {
	if name, ok := keyNames[code]; ok {
		return name
	}
	for _, row := range letterRows {
		if code >= row.first && int(code-row.first) < len(row.letters) {
			return string(row.letters[code-row.first])
		}
	}
	switch {
	case code >= 2 && code <= 10: // KEY_1..KEY_9
		return string(rune('1' + code - 2))
	case code == 11:
		return "0"
	case code >= 59 && code <= 68: // KEY_F1..KEY_F10
		return fmt.Sprintf("F%d", code-58)
	case code == 87:
		return "F11"
	case code == 88:
		return "F12"
	}
	return ""
}
