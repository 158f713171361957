// Package osutils wraps the OS facilities the desktop needs: display power,
// privilege checks and firewall rules.
package osutils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupported is returned when a facility has no implementation on this OS
var ErrUnsupported = errors.New("not supported on this platform")

// FirewallRuleName is the rule EnsureFirewallRule manages
const FirewallRuleName = "keyrelay desktop"

// ruleCovers reports whether netsh output shows an allow rule for port
func ruleCovers(netshOutput string, port int) bool {
	return strings.Contains(netshOutput, FirewallRuleName) &&
		strings.Contains(netshOutput, strconv.Itoa(port)) &&
		strings.Contains(netshOutput, "Allow")
}

// firewallScript replaces any previous rule; no -Program filter so the rule
// survives the binary moving.
func firewallScript(port int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue", FirewallRuleName)
	for _, proto := range []string{"TCP", "UDP"} {
		fmt.Fprintf(&b, "; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol %s -Action Allow -Profile Any",
			FirewallRuleName, port, proto)
	}
	return b.String()
}
