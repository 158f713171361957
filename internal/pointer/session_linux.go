//go:build linux

package pointer

import (
	"log"

	"keyrelay/internal/input"
)

// homeTravel is a move larger than any screen; the compositor clamps it to
// the top-left corner.
const homeTravel = 1 << 15

// relativeDevice emits relative motion
type relativeDevice interface {
	MoveBy(dx, dy int) error
}

// relativeSession drives the cursor through a uinput mouse. The compositor
// owns the absolute position, so the session homes the cursor to (0,0)
// once and then tracks its own copy, emitting the difference on every write.
type relativeSession struct {
	*VirtualSession
	dev relativeDevice
}

// NewSystemSession returns a uinput-backed session, or a virtual cursor when
// /dev/uinput is not writable.
//
// The uinput session cannot read the real cursor. Movement by other mice is
// not seen, so the tracked position drifts from the real one. libinput also
// applies pointer acceleration to the emitted deltas, so large moves can
// overshoot. Only the top-left edge is clamped because the screen size is
// not known here.
func NewSystemSession() Session {
	dev, err := input.NewVirtualPointer("keyrelay pointer")
	if err != nil {
		log.Printf("Pointer: uinput unavailable (%v), tracking a virtual cursor", err)
		return NewVirtualSession(Position{})
	}
	return newRelativeSession(dev)
}

func newRelativeSession(dev relativeDevice) *relativeSession {
	if err := dev.MoveBy(-homeTravel, -homeTravel); err != nil {
		log.Printf("Pointer: cannot home cursor: %v", err)
	}
	return &relativeSession{VirtualSession: NewVirtualSession(Position{}), dev: dev}
}

func (s *relativeSession) SetCursorPos(p Position) error {
	p.X = max(p.X, 0)
	p.Y = max(p.Y, 0)
	cur, _ := s.VirtualSession.CursorPos()
	if err := s.dev.MoveBy(p.X-cur.X, p.Y-cur.Y); err != nil {
		return err
	}
	return s.VirtualSession.SetCursorPos(p)
}
