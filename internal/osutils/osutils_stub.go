//go:build !windows

package osutils

import (
	"log"
	"os"
)

// IsAdmin reports whether the process runs as root
func IsAdmin() bool {
	return os.Geteuid() == 0
}

// EnsureFirewallRule is a no-op outside Windows
func EnsureFirewallRule(port int) error {
	log.Printf("Firewall: Automatic rule management is only supported on Windows (port %d left as is)", port)
	return nil
}
