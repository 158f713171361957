//go:build !darwin && !windows && !linux

package osutils

// TurnOffDisplay is not implemented on this platform
func TurnOffDisplay() error {
	return ErrUnsupported
}

// WakeUp is not implemented on this platform
func WakeUp() error {
	return ErrUnsupported
}
