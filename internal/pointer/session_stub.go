//go:build !darwin && !windows && !linux

package pointer

import "log"

// NewSystemSession returns an in-memory cursor; there is no cursor API here
// so positions are tracked by the service only.
func NewSystemSession() Session {
	log.Println("Pointer: no session cursor API on this platform, tracking a virtual cursor")
	return NewVirtualSession(Position{})
}
