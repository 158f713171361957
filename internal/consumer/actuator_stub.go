//go:build !linux && !windows && !darwin

package consumer

import "keyrelay/internal/osutils"

// NewSystemActuator is unavailable on this platform
func NewSystemActuator() (Actuator, func() error, error) {
	return nil, nil, osutils.ErrUnsupported
}
