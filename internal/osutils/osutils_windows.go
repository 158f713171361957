//go:build windows

package osutils

import (
	"fmt"
	"log"
	"os/exec"
	"strings"

	"golang.org/x/sys/windows"
)

// IsAdmin reports whether the process token is elevated
func IsAdmin() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// EnsureFirewallRule opens port for inbound TCP (API, WebSocket) and UDP
// (gate commands). Without elevation it asks for it through UAC.
func EnsureFirewallRule(port int) error {
	out, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+FirewallRuleName).CombinedOutput()
	if err == nil && ruleCovers(string(out), port) {
		log.Printf("Firewall: '%s' already allows port %d", FirewallRuleName, port)
		return nil
	}

	script := firewallScript(port)
	if IsAdmin() {
		if out, err := exec.Command("powershell", "-NoProfile", "-Command", script).CombinedOutput(); err != nil {
			return fmt.Errorf("firewall rule: %w (%s)", err, strings.TrimSpace(string(out)))
		}
		log.Printf("Firewall: '%s' set for TCP and UDP port %d", FirewallRuleName, port)
		return nil
	}

	log.Printf("Firewall: not elevated, asking UAC to add '%s' for port %d", FirewallRuleName, port)
	verb, _ := windows.UTF16PtrFromString("runas")
	exe, _ := windows.UTF16PtrFromString("powershell.exe")
	args, _ := windows.UTF16PtrFromString(`-NoProfile -WindowStyle Hidden -Command "` + script + `"`)
	if err := windows.ShellExecute(0, verb, exe, args, nil, windows.SW_HIDE); err != nil {
		return fmt.Errorf("elevate powershell: %w", err)
	}
	return nil
}
