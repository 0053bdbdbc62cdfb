package master

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/chompchamps/internal/state"
)

func newOpenBoardView(t *testing.T, width, height, playerCount int) *state.View {
	t.Helper()
	data := make([]byte, state.DataSize(width, height))
	v, err := state.NewView(data)
	require.NoError(t, err)
	h := v.Header()
	h.Width, h.Height = uint16(width), uint16(height)
	h.PlayerCount = uint32(playerCount)
	board := v.Board()
	for i := range board {
		board[i] = state.Cell(1)
	}
	return v
}

func TestCheckTerminationNotTerminated(t *testing.T) {
	v := newOpenBoardView(t, 5, 5, 1)
	now := time.Now()
	reason := checkTermination(v, now, 10*time.Second, now)
	assert.Equal(t, NotTerminated, reason)
}

func TestCheckTerminationNoLegalMove(t *testing.T) {
	v := newOpenBoardView(t, 1, 1, 1)
	now := time.Now()
	reason := checkTermination(v, now, 10*time.Second, now)
	assert.Equal(t, NoLegalMove, reason)
}

func TestCheckTerminationAllBlocked(t *testing.T) {
	v := newOpenBoardView(t, 5, 5, 2)
	h := v.Header()
	h.Players[0].SetBlocked()
	h.Players[1].SetBlocked()
	now := time.Now()
	reason := checkTermination(v, now, 10*time.Second, now)
	assert.Equal(t, AllBlocked, reason)
}

func TestCheckTerminationInactivityTimeout(t *testing.T) {
	v := newOpenBoardView(t, 5, 5, 1)
	last := time.Now().Add(-20 * time.Second)
	reason := checkTermination(v, last, 10*time.Second, time.Now())
	assert.Equal(t, InactivityTimeout, reason)
}

func TestCheckTerminationIgnoresBlockedPlayersInLegalMoveScan(t *testing.T) {
	v := newOpenBoardView(t, 5, 5, 2)
	h := v.Header()
	h.Players[0].SetBlocked() // blocked; player 1 is not, and can still move
	h.Players[1].X, h.Players[1].Y = 0, 0
	now := time.Now()
	reason := checkTermination(v, now, 10*time.Second, now)
	assert.Equal(t, NotTerminated, reason)
}

func TestTerminationReasonString(t *testing.T) {
	assert.Equal(t, "no_legal_move", NoLegalMove.String())
	assert.Equal(t, "timeout", InactivityTimeout.String())
	assert.Equal(t, "all_blocked", AllBlocked.String())
	assert.Equal(t, "not_terminated", NotTerminated.String())
}
