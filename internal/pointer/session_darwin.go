//go:build darwin

package pointer

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation

#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>

CGPoint currentCursor() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint cursor = CGEventGetLocation(event);
    CFRelease(event);
    return cursor;
}

// Warp, then post a mouse-moved event so applications see the jump.
void warpCursor(CGFloat x, CGFloat y) {
    CGPoint p = CGPointMake(x, y);
    CGWarpMouseCursorPosition(p);
    CGEventRef event = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved, p, kCGMouseButtonLeft);
    CGEventPost(kCGSessionEventTap, event);
    CFRelease(event);
}
*/
import "C"

import "log"

type quartzSession struct{}

// NewSystemSession returns the CoreGraphics cursor of the logged-in session
func NewSystemSession() Session {
	log.Println("Pointer: using CoreGraphics session cursor")
	return quartzSession{}
}

func (quartzSession) CursorPos() (Position, error) {
	p := C.currentCursor()
	return Position{X: int(p.x), Y: int(p.y)}, nil
}

func (quartzSession) SetCursorPos(p Position) error {
	C.warpCursor(C.CGFloat(p.X), C.CGFloat(p.Y))
	return nil
}
