package autostart

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLineQuoting(t *testing.T) {
	e := launchEntry{ExecutablePath: `/opt/key relay/keyrelay`, Args: []string{"-role", "desktop", `a"b`}}
	assert.Equal(t, `"/opt/key relay/keyrelay" -role desktop "a\"b"`, e.CommandLine())
}

func TestDesktopEntryTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autostart", "keyrelay.desktop")
	require.NoError(t, writeEntry(path, xdgDesktopEntry, launchEntry{ExecutablePath: "/usr/bin/keyrelay", Args: []string{"-role", "desktop"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Exec=/usr/bin/keyrelay -role desktop\n")
}

func TestPlistTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.plist")
	require.NoError(t, writeEntry(path, macLaunchAgentPlist, launchEntry{ExecutablePath: "/Applications/keyrelay", Args: []string{"-role", "desktop"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<string>/Applications/keyrelay</string>\n        <string>-role</string>\n        <string>desktop</string>")
}

func TestEnableDisableLinux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG autostart only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	require.False(t, IsEnabled())
	require.NoError(t, Enable("-role", "desktop"))
	assert.True(t, IsEnabled())
	assert.FileExists(t, filepath.Join(dir, "autostart", "keyrelay.desktop"))

	require.NoError(t, Disable())
	assert.False(t, IsEnabled())
	require.NoError(t, Disable(), "disabling twice is fine")
}
