//go:build darwin

package osutils

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>

static void nudgeMouse() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint loc = CGEventGetLocation(event);
    CFRelease(event);

    CGEventRef away = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved,
        CGPointMake(loc.x + 1, loc.y + 1), kCGMouseButtonLeft);
    CGEventPost(kCGHIDEventTap, away);
    CFRelease(away);

    CGEventRef back = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved,
        loc, kCGMouseButtonLeft);
    CGEventPost(kCGHIDEventTap, back);
    CFRelease(back);
}
*/
import "C"

import (
	"log"
	"os/exec"
)

// TurnOffDisplay puts the displays to sleep
func TurnOffDisplay() error {
	log.Println("Display: Sleeping displays")
	return exec.Command("pmset", "displaysleepnow").Run()
}

// WakeUp wakes the displays with a one pixel pointer nudge and a user
// activity assertion.
func WakeUp() error {
	log.Println("Display: Waking displays")
	C.nudgeMouse()
	return exec.Command("caffeinate", "-u", "-t", "1").Run()
}
