package pointer

import "sync"

// VirtualSession keeps the cursor in memory. It backs the service on
// platforms where the compositor owns the real cursor, and in tests.
type VirtualSession struct {
	mu  sync.Mutex
	pos Position
}

// NewVirtualSession starts at p
func NewVirtualSession(p Position) *VirtualSession {
	return &VirtualSession{pos: p}
}

func (v *VirtualSession) CursorPos() (Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos, nil
}

func (v *VirtualSession) SetCursorPos(p Position) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pos = p
	return nil
}
