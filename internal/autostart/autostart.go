// Package autostart registers keyrelay to start on login.
package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/template"
)

// AppID names the login entry on every platform
const AppID = "keyrelay"

const macLaunchAgentPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.keyrelay.agent</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`

const xdgDesktopEntry = `[Desktop Entry]
Type=Application
Name=keyrelay
Comment=Relay phone volume and power keys to this desktop
Exec={{.CommandLine}}
X-GNOME-Autostart-enabled=true
NoDisplay=true
`

type launchEntry struct {
	ExecutablePath string
	Args           []string
}

// CommandLine quotes the entry for Exec= and the Windows Run key
func (e launchEntry) CommandLine() string {
	parts := []string{quote(e.ExecutablePath)}
	for _, a := range e.Args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}

// Enable starts keyrelay with args on login
func Enable(args ...string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}
	entry := launchEntry{ExecutablePath: execPath, Args: args}

	switch runtime.GOOS {
	case "windows":
		return enableWindows(entry)
	default:
		path, tmpl, err := entryFile()
		if err != nil {
			return err
		}
		return writeEntry(path, tmpl, entry)
	}
}

// Disable removes the login entry
func Disable() error {
	if runtime.GOOS == "windows" {
		return disableWindows()
	}
	path, _, err := entryFile()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsEnabled checks if auto-start is enabled
func IsEnabled() bool {
	if runtime.GOOS == "windows" {
		return isEnabledWindows()
	}
	path, _, err := entryFile()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// entryFile returns the login item path and template for file-based platforms
func entryFile() (string, string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", "com.keyrelay.agent.plist"), macLaunchAgentPlist, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			base = filepath.Join(home, ".config")
		}
		return filepath.Join(base, "autostart", AppID+".desktop"), xdgDesktopEntry, nil
	default:
		return "", "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func writeEntry(path, text string, entry launchEntry) error {
	tmpl, err := template.New(filepath.Base(path)).Parse(text)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return tmpl.Execute(f, entry)
}
