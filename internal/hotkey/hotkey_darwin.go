//go:build darwin

package hotkey

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

// Forward declaration of the callback
CGEventRef eventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static CFRunLoopRef tapLoop = NULL;

// Helper to start the loop - takes uintptr_t to avoid Go unsafe.Pointer conversion
static inline void startEventTap(uintptr_t refcon) {
    CGEventMask mask = CGEventMaskBit(kCGEventKeyDown) | CGEventMaskBit(kCGEventKeyUp) |
        CGEventMaskBit(kCGEventFlagsChanged);
    CFMachPortRef tap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionListenOnly,
        mask,
        eventCallback,
        (void*)refcon
    );

    if (!tap) {
        printf("Hotkey Engine: ERROR! Failed to create CGEventTap. Accessibility permissions missing?\n");
        return;
    }

    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    CFRunLoopAddSource(CFRunLoopGetCurrent(), source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    printf("Hotkey Engine: CGEventTap successfully initialized.\n");
    tapLoop = CFRunLoopGetCurrent();
    CFRunLoopRun();
}

static inline void stopEventTap() {
    if (tapLoop) {
        CFRunLoopStop(tapLoop);
        tapLoop = NULL;
    }
}
*/
import "C"
import (
	"log"
	"runtime/cgo"
	"unsafe"
)

//export eventCallback
func eventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	h := cgo.Handle(uintptr(refcon))
	m := h.Value().(*Manager)

	switch eventType {
	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		isDown := eventType == C.kCGEventKeyDown
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		keyName := macKeyCodeToName(keyCode)
		if keyName != "" {
			m.UpdateState(keyName, isDown)
		}

	case C.kCGEventFlagsChanged:
		// Handle modifier key state changes
		flags := C.CGEventGetFlags(event)
		keyCode := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))

		// Determine which modifier and its state based on keycode and flags
		switch keyCode {
		case 55, 54: // Command keys
			m.UpdateState("CMD", (flags&C.kCGEventFlagMaskCommand) != 0)
		case 56, 60: // Shift keys
			m.UpdateState("SHIFT", (flags&C.kCGEventFlagMaskShift) != 0)
		case 58, 61: // Alt/Option keys
			m.UpdateState("ALT", (flags&C.kCGEventFlagMaskAlternate) != 0)
		case 59, 62: // Control keys
			m.UpdateState("CTRL", (flags&C.kCGEventFlagMaskControl) != 0)
		}
	}

	return event
}

var tapHandle cgo.Handle

func (m *Manager) startPlatform() error {
	tapHandle = cgo.NewHandle(m)
	go func() {
		log.Println("Hotkey Engine: macOS CGEventTap started.")
		C.startEventTap(C.uintptr_t(tapHandle))
	}()
	return nil
}

func (m *Manager) stopPlatform() {
	C.stopEventTap()
}

// macKeys maps virtual key codes (HIToolbox Events.h) to hotkey names
var macKeys = map[uint16]string{
	55: "CMD", 54: "CMD", 56: "SHIFT", 60: "SHIFT", 58: "ALT", 61: "ALT",
	59: "CTRL", 62: "CTRL", 49: "SPACE", 36: "ENTER", 53: "ESC", 123: "LEFT",
	124: "RIGHT", 125: "DOWN", 126: "UP", 0: "A", 11: "B", 8: "C",
	2: "D", 14: "E", 3: "F", 5: "G", 4: "H", 34: "I",
	38: "J", 40: "K", 37: "L", 46: "M", 45: "N", 31: "O",
	35: "P", 12: "Q", 15: "R", 1: "S", 17: "T", 32: "U",
	9: "V", 13: "W", 7: "X", 16: "Y", 6: "Z", 29: "0",
	18: "1", 19: "2", 20: "3", 21: "4", 23: "5", 22: "6",
	26: "7", 28: "8", 25: "9", 122: "F1", 120: "F2", 99: "F3",
	118: "F4", 96: "F5", 97: "F6", 98: "F7", 100: "F8", 101: "F9",
	109: "F10", 103: "F11", 111: "F12",
}

func macKeyCodeToName(code uint16) string {
	return macKeys[code]
}
