package master

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dungeongate/chompchamps/internal/state"
)

func headerWith(players ...state.PlayerRecord) *state.Header {
	h := &state.Header{PlayerCount: uint32(len(players))}
	for i, p := range players {
		h.Players[i] = p
	}
	return h
}

func TestRankHighestScoreWins(t *testing.T) {
	h := headerWith(
		state.PlayerRecord{Score: 10},
		state.PlayerRecord{Score: 20},
		state.PlayerRecord{Score: 5},
	)
	r := rank(h)
	assert.False(t, r.Tie)
	assert.Equal(t, 1, r.WinnerIndex)
}

func TestRankTiebreakByFewerValidMoves(t *testing.T) {
	h := headerWith(
		state.PlayerRecord{Score: 10, ValidMoves: 5},
		state.PlayerRecord{Score: 10, ValidMoves: 3},
	)
	r := rank(h)
	assert.False(t, r.Tie)
	assert.Equal(t, 1, r.WinnerIndex)
}

func TestRankTiebreakByFewerInvalidMoves(t *testing.T) {
	h := headerWith(
		state.PlayerRecord{Score: 10, ValidMoves: 3, InvalidMoves: 4},
		state.PlayerRecord{Score: 10, ValidMoves: 3, InvalidMoves: 1},
	)
	r := rank(h)
	assert.False(t, r.Tie)
	assert.Equal(t, 1, r.WinnerIndex)
}

func TestRankFullTie(t *testing.T) {
	h := headerWith(
		state.PlayerRecord{Score: 10, ValidMoves: 3, InvalidMoves: 1},
		state.PlayerRecord{Score: 10, ValidMoves: 3, InvalidMoves: 1},
	)
	r := rank(h)
	assert.True(t, r.Tie)
}

func TestRankSingleSurvivorWinsAtZeroScore(t *testing.T) {
	h := headerWith(state.PlayerRecord{Score: 0})
	r := rank(h)
	assert.False(t, r.Tie)
	assert.Equal(t, 0, r.WinnerIndex)
}

func TestRankNoPlayersIsATie(t *testing.T) {
	h := &state.Header{PlayerCount: 0}
	r := rank(h)
	assert.True(t, r.Tie)
}
