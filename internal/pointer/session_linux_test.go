//go:build linux

package pointer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDevice struct {
	moves [][2]int
	err   error
}

func (d *recordingDevice) MoveBy(dx, dy int) error {
	if d.err != nil {
		return d.err
	}
	d.moves = append(d.moves, [2]int{dx, dy})
	return nil
}

func TestRelativeSessionHomesAndEmitsDeltas(t *testing.T) {
	dev := &recordingDevice{}
	svc := NewService(newRelativeSession(dev))

	require.Len(t, dev.moves, 1)
	assert.Equal(t, [2]int{-homeTravel, -homeTravel}, dev.moves[0], "homed to the top-left corner")

	require.NoError(t, svc.Move(30, 40))
	require.NoError(t, svc.Move(-10, 5))
	pos, err := svc.Position()
	require.NoError(t, err)
	assert.Equal(t, Position{X: 20, Y: 45}, pos)
	assert.Equal(t, [][2]int{{30, 40}, {-10, 5}}, dev.moves[1:])
}

func TestRelativeSessionClampsAtTopLeft(t *testing.T) {
	dev := &recordingDevice{}
	svc := NewService(newRelativeSession(dev))

	require.NoError(t, svc.Move(10, 10))
	require.NoError(t, svc.Move(-50, -3))
	pos, _ := svc.Position()
	assert.Equal(t, Position{X: 0, Y: 7}, pos)
	assert.Equal(t, [2]int{-10, -3}, dev.moves[len(dev.moves)-1])
}

func TestRelativeSessionKeepsPositionOnError(t *testing.T) {
	dev := &recordingDevice{}
	s := newRelativeSession(dev)
	dev.err = errors.New("device gone")

	assert.Error(t, s.SetCursorPos(Position{X: 5, Y: 5}))
	pos, _ := s.CursorPos()
	assert.Equal(t, Position{}, pos)
}
