package pointer

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyrelay/internal/automation"
	"keyrelay/internal/protocol"
)

func TestMoveAppliesDelta(t *testing.T) {
	s := NewService(NewVirtualSession(Position{X: 100, Y: 200}))

	require.NoError(t, s.Move(5, -3))
	pos, err := s.Position()
	require.NoError(t, err)
	assert.Equal(t, Position{X: 105, Y: 197}, pos)
}

func TestMoveZeroIsNoop(t *testing.T) {
	s := NewService(NewVirtualSession(Position{X: 100, Y: 200}))

	require.NoError(t, s.Move(0, 0))
	pos, _ := s.Position()
	assert.Equal(t, Position{X: 100, Y: 200}, pos)
}

func TestMoveDoesNotClamp(t *testing.T) {
	s := NewService(NewVirtualSession(Position{X: 3, Y: 3}))

	require.NoError(t, s.Move(-10, -20))
	pos, _ := s.Position()
	assert.Equal(t, Position{X: -7, Y: -17}, pos)
}

func TestConcurrentMovesAreSerialised(t *testing.T) {
	s := NewService(NewVirtualSession(Position{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Move(1, 2)
		}()
	}
	wg.Wait()

	pos, _ := s.Position()
	assert.Equal(t, Position{X: 50, Y: 100}, pos)
}

type failingSession struct{ readErr, writeErr error }

func (f failingSession) CursorPos() (Position, error) { return Position{}, f.readErr }
func (f failingSession) SetCursorPos(Position) error  { return f.writeErr }

func TestMoveSessionErrors(t *testing.T) {
	boom := errors.New("boom")

	err := NewService(failingSession{readErr: boom}).Move(1, 1)
	assert.ErrorIs(t, err, boom)

	err = NewService(failingSession{writeErr: boom}).Move(1, 1)
	assert.ErrorIs(t, err, boom)
}

func TestRegisteredEntryPoint(t *testing.T) {
	host := automation.NewHost()
	s := NewService(NewVirtualSession(Position{X: 100, Y: 200}))

	unregister, err := s.Register(host)
	require.NoError(t, err)

	// JSON numbers arrive as float64
	res := host.Invoke(protocol.CallMovePointer, map[string]any{"dx": float64(5), "dy": float64(-3)})
	require.True(t, res.IsOK(), res.Err)
	pos, _ := s.Position()
	assert.Equal(t, Position{X: 105, Y: 197}, pos)

	res = host.Invoke(protocol.CallMovePointer, map[string]any{"dx": "left"})
	assert.Equal(t, protocol.StatusInvalidArgs, res.Status)

	unregister()
	res = host.Invoke(protocol.CallMovePointer, map[string]any{"dx": 1, "dy": 1})
	assert.Equal(t, protocol.StatusNotImplemented, res.Status)
}
