package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyrelay/internal/protocol"
)

func okEntry(string, map[string]any) protocol.Result { return protocol.OK() }

func TestRegisterAndInvoke(t *testing.T) {
	h := NewHost()

	var gotArgs map[string]any
	unregister, err := h.Register("movePointer", func(_ string, args map[string]any) protocol.Result {
		gotArgs = args
		return protocol.OK()
	})
	require.NoError(t, err)
	defer unregister()

	res := h.Invoke("movePointer", map[string]any{"dx": 1})
	assert.True(t, res.IsOK())
	assert.Equal(t, map[string]any{"dx": 1}, gotArgs)
	assert.Equal(t, []string{"movePointer"}, h.Names())
}

func TestInvokeUnknown(t *testing.T) {
	h := NewHost()
	res := h.Invoke("nope", nil)
	assert.Equal(t, protocol.StatusNotImplemented, res.Status)
}

func TestDuplicateRegistration(t *testing.T) {
	h := NewHost()
	_, err := h.Register("a", okEntry)
	require.NoError(t, err)

	_, err = h.Register("a", okEntry)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = h.Register("", okEntry)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestUnregisterIsScoped(t *testing.T) {
	h := NewHost()
	first, err := h.Register("a", okEntry)
	require.NoError(t, err)

	first()
	first()
	assert.Empty(t, h.Names())

	second, err := h.Register("a", okEntry)
	require.NoError(t, err)

	// A stale unregister must not remove the newer registration
	first()
	assert.Equal(t, []string{"a"}, h.Names())

	second()
	assert.Equal(t, protocol.StatusNotImplemented, h.Invoke("a", nil).Status)
}
