package osutils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirewallScriptOpensTCPAndUDP(t *testing.T) {
	script := firewallScript(18090)

	assert.True(t, strings.HasPrefix(script, "Remove-NetFirewallRule -DisplayName 'keyrelay desktop'"))
	assert.Contains(t, script, "-LocalPort 18090 -Protocol TCP -Action Allow")
	assert.Contains(t, script, "-LocalPort 18090 -Protocol UDP -Action Allow")
	assert.NotContains(t, script, "-Program")
}

func TestRuleCovers(t *testing.T) {
	out := "Rule Name: keyrelay desktop\nLocalPort: 18090\nAction: Allow\n"
	assert.True(t, ruleCovers(out, 18090))
	assert.False(t, ruleCovers(out, 9000))
	assert.False(t, ruleCovers("No rules match the specified criteria.", 18090))
	assert.False(t, ruleCovers(strings.Replace(out, "Allow", "Block", 1), 18090))
}
