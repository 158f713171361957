package gate

import (
	"fmt"
	"sync/atomic"
)

// VolumeMode selects how volume keys are treated
type VolumeMode string

const (
	// VolumeGated intercepts volume keys only while interception is enabled
	VolumeGated VolumeMode = "gated"

	// VolumeAlways intercepts volume keys regardless of the enabled flag
	VolumeAlways VolumeMode = "always"
)

// ParseVolumeMode validates a configured mode. The empty string maps to VolumeGated.
func ParseVolumeMode(s string) (VolumeMode, error) {
	switch VolumeMode(s) {
	case "", VolumeGated:
		return VolumeGated, nil
	case VolumeAlways:
		return VolumeAlways, nil
	default:
		return "", fmt.Errorf("unknown volume mode %q", s)
	}
}

// Policy is the interception policy owned by a Gate. Reads are lock-free so
// the key event path never blocks; writes come only through SetInterceptVolume.
type Policy struct {
	mode    VolumeMode
	enabled atomic.Bool
}

// NewPolicy creates a policy with volume interception disabled
func NewPolicy(mode VolumeMode) *Policy {
	if mode == "" {
		mode = VolumeGated
	}
	return &Policy{mode: mode}
}

// Mode returns the configured volume mode
func (p *Policy) Mode() VolumeMode { return p.mode }

// InterceptVolume reports the current value of the enabled flag
func (p *Policy) InterceptVolume() bool { return p.enabled.Load() }

// SetInterceptVolume overwrites the enabled flag (last write wins)
func (p *Policy) SetInterceptVolume(enabled bool) { p.enabled.Store(enabled) }

// InterceptsVolume reports whether a volume key event should be consumed now
func (p *Policy) InterceptsVolume() bool {
	return p.mode == VolumeAlways || p.enabled.Load()
}
