// Package pointer applies relative movements to the session's absolute cursor.
package pointer

import (
	"fmt"
	"log"
	"sync"

	"keyrelay/internal/automation"
	"keyrelay/internal/protocol"
)

// Position is an absolute cursor location in session coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Session exposes the host session's global cursor
type Session interface {
	CursorPos() (Position, error)
	SetCursorPos(p Position) error
}

// Service relocates the pointer by relative deltas
type Service struct {
	mu      sync.Mutex
	session Session
}

// NewService creates a service over session
func NewService(session Session) *Service {
	return &Service{session: session}
}

// Move reads the current position and writes (x+dx, y+dy) as one update.
// No clamping happens here; the session decides what off-screen means.
func (s *Service) Move(dx, dy int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.session.CursorPos()
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	if dx == 0 && dy == 0 {
		return nil
	}
	next := Position{X: cur.X + dx, Y: cur.Y + dy}
	if err := s.session.SetCursorPos(next); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}

// Position returns the current cursor position
func (s *Service) Position() (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.CursorPos()
}

// Register exposes Move on host as protocol.CallMovePointer. The returned
// function must be called on shutdown to remove the entry point.
func (s *Service) Register(host *automation.Host) (func(), error) {
	return host.Register(protocol.CallMovePointer, s.handleMove)
}

func (s *Service) handleMove(_ string, args map[string]any) protocol.Result {
	dx, okX := protocol.IntArg(args, "dx")
	dy, okY := protocol.IntArg(args, "dy")
	if !okX || !okY {
		return protocol.InvalidArgs("movePointer requires integer 'dx' and 'dy'")
	}
	if err := s.Move(dx, dy); err != nil {
		log.Printf("Pointer: move (%d,%d) failed: %v", dx, dy, err)
		return protocol.Failed(err)
	}
	return protocol.OK()
}
