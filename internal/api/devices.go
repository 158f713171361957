package api

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
	"time"

	"keyrelay/internal/config"
)

// DeviceState is a gate's standing with this desktop
type DeviceState string

const (
	DeviceApproved DeviceState = "approved"
	DevicePending  DeviceState = "pending"
	DeviceBlocked  DeviceState = "blocked"
)

// Device actions accepted by Devices.Apply
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionBlock   = "block"
	ActionUnblock = "unblock"
)

var (
	// ErrUnknownAction is returned for an action other than the four above
	ErrUnknownAction = errors.New("unknown device action")

	// ErrNoDevice is returned when acting on an empty device name
	ErrNoDevice = errors.New("device name required")
)

// DeviceInfo describes a known gate
type DeviceInfo struct {
	Name     string      `json:"name"`
	State    DeviceState `json:"state"`
	LastSeen *time.Time  `json:"last_seen,omitempty"`
}

// Devices decides which gates may talk to the desktop. Approved and blocked
// names persist in the config; pending requests live until approved,
// rejected or the process exits.
type Devices struct {
	cfgMgr  *config.Manager
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]time.Time
	onChange func(name string, state DeviceState)
}

func newDevices(cfgMgr *config.Manager) *Devices {
	return &Devices{
		cfgMgr:  cfgMgr,
		pending: make(map[string]time.Time),
	}
}

// State returns the state of name without recording it
func (d *Devices) State(name string) DeviceState {
	gen := d.cfgMgr.Get().General
	if slices.Contains(gen.BlockedDevices, name) {
		return DeviceBlocked
	}
	if !gen.RequireApproval || slices.Contains(gen.ApprovedDevices, name) {
		return DeviceApproved
	}
	return DevicePending
}

// Check returns the state of name. An unknown device is recorded as pending
// when approval is required.
func (d *Devices) Check(name string) DeviceState {
	state := d.State(name)
	if state != DevicePending {
		return state
	}

	d.mu.Lock()
	_, known := d.pending[name]
	d.pending[name] = time.Now()
	d.mu.Unlock()
	if !known {
		log.Printf("Devices: '%s' is waiting for approval", name)
	}
	return DevicePending
}

// Allowed reports whether name may send commands
func (d *Devices) Allowed(name string) bool {
	return d.Check(name) == DeviceApproved
}

// Apply performs action on name and persists the result
func (d *Devices) Apply(name, action string) error {
	if name == "" {
		return ErrNoDevice
	}
	switch action {
	case ActionApprove, ActionReject, ActionBlock, ActionUnblock:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	var state DeviceState
	err := d.update(func(gen *config.GeneralConfig) {
		switch action {
		case ActionApprove:
			gen.BlockedDevices = without(gen.BlockedDevices, name)
			if !slices.Contains(gen.ApprovedDevices, name) {
				gen.ApprovedDevices = append(gen.ApprovedDevices, name)
			}
			state = DeviceApproved
		case ActionReject:
			gen.ApprovedDevices = without(gen.ApprovedDevices, name)
			state = DevicePending
		case ActionBlock:
			gen.ApprovedDevices = without(gen.ApprovedDevices, name)
			if !slices.Contains(gen.BlockedDevices, name) {
				gen.BlockedDevices = append(gen.BlockedDevices, name)
			}
			state = DeviceBlocked
		case ActionUnblock:
			gen.BlockedDevices = without(gen.BlockedDevices, name)
			state = DevicePending
			if !gen.RequireApproval || slices.Contains(gen.ApprovedDevices, name) {
				state = DeviceApproved
			}
		}
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	if action != ActionUnblock || state == DeviceApproved {
		delete(d.pending, name)
	}
	cb := d.onChange
	d.mu.Unlock()

	log.Printf("Devices: %s '%s' -> %s", action, name, state)
	if cb != nil {
		cb(name, state)
	}
	return nil
}

// List returns approved, blocked and pending devices sorted by name
func (d *Devices) List() []DeviceInfo {
	gen := d.cfgMgr.Get().General
	var out []DeviceInfo
	for _, name := range gen.ApprovedDevices {
		out = append(out, DeviceInfo{Name: name, State: DeviceApproved})
	}
	for _, name := range gen.BlockedDevices {
		out = append(out, DeviceInfo{Name: name, State: DeviceBlocked})
	}

	d.mu.Lock()
	for name, seen := range d.pending {
		out = append(out, DeviceInfo{Name: name, State: DevicePending, LastSeen: &seen})
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Pending returns the names waiting for approval
func (d *Devices) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	names := make([]string, 0, len(d.pending))
	for name := range d.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OnChange registers fn to run after every successful Apply
func (d *Devices) OnChange(fn func(name string, state DeviceState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

func (d *Devices) update(fn func(gen *config.GeneralConfig)) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	cfg := d.cfgMgr.Get().Clone()
	fn(&cfg.General)
	d.cfgMgr.Set(cfg)
	return d.cfgMgr.Save()
}

func without(list []string, name string) []string {
	out := list[:0:0]
	for _, s := range list {
		if s != name {
			out = append(out, s)
		}
	}
	return out
}
