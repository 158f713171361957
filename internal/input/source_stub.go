//go:build !linux && !windows

package input

// Source is unavailable on this platform
type Source struct{}

// NewSource creates a source whose Start always fails
func NewSource(paths []string, grab bool, h Handler) *Source {
	return &Source{}
}

// Start returns ErrUnsupported
func (s *Source) Start() error {
	return ErrUnsupported
}

// Stop is a no-op
func (s *Source) Stop() error {
	return nil
}
