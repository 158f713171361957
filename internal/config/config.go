// Package config provides configuration management for keyrelay.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Roles
const (
	// RoleGate runs the key interception gate and connects to a desktop
	RoleGate = "gate"

	// RoleDesktop runs the command consumer, automation host and API server
	RoleDesktop = "desktop"

	// RoleLocal runs both sides in one process, joined by a loopback channel
	RoleLocal = "local"
)

var (
	// ErrInvalidRole is returned for an unknown role
	ErrInvalidRole = errors.New("invalid role")

	// ErrMissingCoordinator is returned when a gate has no desktop address
	ErrMissingCoordinator = errors.New("gate role requires coordinator_addr")

	// ErrInvalidShortcut is returned for a shortcut without hotkey or call
	ErrInvalidShortcut = errors.New("invalid shortcut")
)

// Config represents the application configuration
type Config struct {
	// General contains general application settings
	General GeneralConfig `json:"general"`

	// Shortcuts bind desktop hotkeys to automation entry points
	Shortcuts []Shortcut `json:"shortcuts,omitempty"`
}

// Shortcut invokes an automation entry point when its hotkey is held
type Shortcut struct {
	// Hotkey is the key combination (e.g. "Ctrl+Alt+Left")
	Hotkey string `json:"hotkey"`

	// Call is the entry point name (e.g. "movePointer")
	Call string `json:"call"`

	// Args are passed to the entry point
	Args map[string]any `json:"args,omitempty"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// Role is "gate", "desktop" or "local"
	Role string `json:"role"`

	// DeviceName identifies this gate to the desktop
	DeviceName string `json:"device_name,omitempty"`

	// ListenPort is the desktop API / WebSocket / UDP port
	ListenPort int `json:"listen_port"`

	// CoordinatorAddr is the Address:Port of the desktop (mandatory for gates)
	CoordinatorAddr string `json:"coordinator_addr,omitempty"`

	// APIToken is an optional bearer token for API and WebSocket requests
	APIToken string `json:"api_token,omitempty"`

	// UDPEnabled sends gate commands over UDP when the path is open
	UDPEnabled bool `json:"udp_enabled"`

	// VolumeMode is "gated" (default) or "always"
	VolumeMode string `json:"volume_mode,omitempty"`

	// InputDevices lists evdev nodes the gate reads (e.g. /dev/input/event0)
	InputDevices []string `json:"input_devices,omitempty"`

	// GrabDevices takes exclusive access to InputDevices so consumed keys
	// never reach the OS; unconsumed keys are re-emitted
	GrabDevices bool `json:"grab_devices"`

	// ShortcutDevices lists keyboards the desktop reads for global shortcuts
	ShortcutDevices []string `json:"shortcut_devices,omitempty"`

	// StartOnBoot determines if the app starts on login
	StartOnBoot bool `json:"start_on_boot"`

	// ShowTray shows the system tray icon in desktop role
	ShowTray bool `json:"show_tray"`

	// RequireApproval holds new gates as pending until they are approved
	RequireApproval bool `json:"require_approval"`

	// ApprovedDevices are gate names allowed to send commands
	ApprovedDevices []string `json:"approved_devices,omitempty"`

	// BlockedDevices are gate names refused at connect
	BlockedDevices []string `json:"blocked_devices,omitempty"`
}

// Clone returns a deep copy of c
func (c *Config) Clone() *Config {
	out := *c
	out.General.InputDevices = append([]string(nil), c.General.InputDevices...)
	out.General.ShortcutDevices = append([]string(nil), c.General.ShortcutDevices...)
	out.General.ApprovedDevices = append([]string(nil), c.General.ApprovedDevices...)
	out.General.BlockedDevices = append([]string(nil), c.General.BlockedDevices...)
	out.Shortcuts = append([]Shortcut(nil), c.Shortcuts...)
	return &out
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			Role:        RoleDesktop,
			ListenPort:  18090,
			UDPEnabled:  true,
			VolumeMode:  "gated",
			GrabDevices: true,
			ShowTray:    true,
		},
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	switch c.General.Role {
	case RoleDesktop, RoleLocal:
	case RoleGate:
		if c.General.CoordinatorAddr == "" {
			return ErrMissingCoordinator
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRole, c.General.Role)
	}

	if c.General.ListenPort <= 0 || c.General.ListenPort > 65535 {
		return fmt.Errorf("listen_port out of range: %d", c.General.ListenPort)
	}

	for i, sc := range c.Shortcuts {
		if strings.TrimSpace(sc.Hotkey) == "" || sc.Call == "" {
			return fmt.Errorf("%w: shortcuts[%d]", ErrInvalidShortcut, i)
		}
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a configuration manager at the per-OS default path
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath), nil
}

// NewManagerAt creates a configuration manager backed by path
func NewManagerAt(path string) *Manager {
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
	}
}

// Path returns the backing file path
func (m *Manager) Path() string {
	return m.configPath
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "keyrelay")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "keyrelay")
	default:
		base := os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			base = filepath.Join(home, ".config")
		}
		configDir = filepath.Join(base, "keyrelay")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the configuration from disk. A missing file keeps the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	m.config = cfg
	cb := m.onChanged
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	cb := m.onChanged
	m.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
