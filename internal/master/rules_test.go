package master

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/chompchamps/internal/state"
)

func newTestView(t *testing.T, width, height int) *state.View {
	t.Helper()
	data := make([]byte, state.DataSize(width, height))
	v, err := state.NewView(data)
	require.NoError(t, err)
	h := v.Header()
	h.Width = uint16(width)
	h.Height = uint16(height)
	board := v.Board()
	for i := range board {
		board[i] = state.Cell(1)
	}
	return v
}

func TestIsValidRejectsOutOfBounds(t *testing.T) {
	v := newTestView(t, 3, 3)
	h := v.Header()
	h.PlayerCount = 1
	h.Players[0].X, h.Players[0].Y = 0, 0

	assert.False(t, isValid(v, 0, state.Up))
	assert.False(t, isValid(v, 0, state.Left))
	assert.True(t, isValid(v, 0, state.Right))
}

func TestIsValidRejectsCapturedCell(t *testing.T) {
	v := newTestView(t, 3, 3)
	h := v.Header()
	h.PlayerCount = 1
	h.Players[0].X, h.Players[0].Y = 1, 1
	v.Set(2, 1, state.OwnedBy(0))

	assert.False(t, isValid(v, 0, state.Right))
}

func TestApplyMoveAwardsScoreAndAdvances(t *testing.T) {
	v := newTestView(t, 3, 3)
	h := v.Header()
	h.PlayerCount = 1
	h.Players[0].X, h.Players[0].Y = 1, 1
	v.Set(2, 1, state.Cell(7))

	applyMove(v, 0, state.Right)

	p := &h.Players[0]
	assert.Equal(t, uint32(7), p.Score)
	assert.Equal(t, uint16(2), p.X)
	assert.Equal(t, uint16(1), p.Y)
	assert.Equal(t, uint32(1), p.ValidMoves)
	idx, owned := v.At(2, 1).OwnerIndex()
	assert.True(t, owned)
	assert.Equal(t, 0, idx)
}

func TestHasAnyLegalMove(t *testing.T) {
	v := newTestView(t, 1, 1)
	h := v.Header()
	h.PlayerCount = 1
	h.Players[0].X, h.Players[0].Y = 0, 0

	assert.False(t, hasAnyLegalMove(v, 0), "a 1x1 board has no neighbor to move to")
}

func TestHasAnyLegalMoveWithOpenNeighbor(t *testing.T) {
	v := newTestView(t, 2, 1)
	h := v.Header()
	h.PlayerCount = 1
	h.Players[0].X, h.Players[0].Y = 0, 0

	assert.True(t, hasAnyLegalMove(v, 0))
}
