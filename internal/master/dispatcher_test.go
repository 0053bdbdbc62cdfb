package master

import (
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dungeongate/chompchamps/internal/protocol"
	"github.com/dungeongate/chompchamps/internal/state"
	"github.com/dungeongate/chompchamps/pkg/metrics"
)

func newTestDispatcher(t *testing.T, width, height, playerCount int) *Dispatcher {
	t.Helper()
	data := make([]byte, state.DataSize(width, height))
	view, err := state.NewView(data)
	require.NoError(t, err)
	h := view.Header()
	h.Width, h.Height = uint16(width), uint16(height)
	h.PlayerCount = uint32(playerCount)
	board := view.Board()
	for i := range board {
		board[i] = state.Cell(1)
	}

	sb := &protocol.SyncBlock{}
	sb.Init()

	d := &Dispatcher{
		cfg:    Config{DelayMS: 0, Width: width, Height: height},
		logger: slog.New(slog.DiscardHandler),
		view:   view,
		sync:   sb,
		moveCh: make(chan moveEvent, maxPlayers),
	}
	for i := 0; i < playerCount; i++ {
		d.players = append(d.players, &playerProc{idx: i})
	}
	return d
}

func TestBlockStalePlayersMarksNoLegalMovePlayers(t *testing.T) {
	d := newTestDispatcher(t, 1, 1, 1)
	d.blockStalePlayers()

	assert.True(t, d.players[0].blocked)
	assert.True(t, d.view.Header().Players[0].IsBlocked())
}

func TestBlockStalePlayersLeavesMobilePlayersAlone(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 1)
	d.blockStalePlayers()

	assert.False(t, d.players[0].blocked)
	assert.False(t, d.view.Header().Players[0].IsBlocked())
}

func TestNoOpenPipesAllBlocked(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 2)
	assert.False(t, d.noOpenPipes())
	d.players[0].blocked = true
	assert.False(t, d.noOpenPipes())
	d.players[1].blocked = true
	assert.True(t, d.noOpenPipes())
}

func TestHandleEventAppliesValidMoveAndReArmsToken(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 1)
	h := d.view.Header()
	h.Players[0].X, h.Players[0].Y = 2, 2

	d.handleEvent(moveEvent{idx: 0, b: byte(state.Right), ok: true})

	assert.Equal(t, uint32(1), h.Players[0].ValidMoves)
	assert.True(t, d.sync.PlayerReady[0].TryWait(), "token should have been re-posted for the still-mobile player")
}

func TestHandleEventCountsInvalidMove(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 1)
	h := d.view.Header()
	h.Players[0].X, h.Players[0].Y = 0, 0 // top-left corner: Up is out of bounds

	d.handleEvent(moveEvent{idx: 0, b: byte(state.Up), ok: true})

	assert.Equal(t, uint32(1), h.Players[0].InvalidMoves)
	assert.Equal(t, uint32(0), h.Players[0].ValidMoves)
}

func TestHandleEventEOFBlocksPlayer(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 1)

	d.handleEvent(moveEvent{idx: 0, ok: false})

	assert.True(t, d.players[0].blocked)
	assert.True(t, d.view.Header().Players[0].IsBlocked())
}

func TestHandleEventDropsByteFromAlreadyBlockedPlayer(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 1)
	d.players[0].blocked = true
	d.view.Header().Players[0].SetBlocked()

	d.handleEvent(moveEvent{idx: 0, b: byte(state.Right), ok: true})

	assert.Equal(t, uint32(0), d.view.Header().Players[0].ValidMoves)
	assert.Equal(t, uint32(0), d.view.Header().Players[0].InvalidMoves)
}

func TestHandleEventDoesNotReArmNewlyBlockedPlayer(t *testing.T) {
	d := newTestDispatcher(t, 1, 1, 1) // 1x1 board: any move leaves no further legal move
	h := d.view.Header()
	h.Players[0].X, h.Players[0].Y = 0, 0

	d.handleEvent(moveEvent{idx: 0, b: byte(state.Up), ok: true}) // invalid, but blockStalePlayers still runs

	assert.True(t, d.players[0].blocked)
	assert.False(t, d.sync.PlayerReady[0].TryWait(), "blocked player must not receive another token")
}

func TestFinalReasonFallsBackToAllBlocked(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 1)
	d.lastValidMove = time.Now()
	reason := d.finalReason()
	assert.Equal(t, AllBlocked, reason)
}

func TestWakePlayersForShutdownPostsEveryToken(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 3)
	d.players[1].blocked = true // a player parked in Wait() after running dry

	d.wakePlayersForShutdown()

	for i := range d.players {
		assert.True(t, d.sync.PlayerReady[i].TryWait(),
			"player %d must have a pending token so its Wait() returns and it can observe game_over", i)
	}
}

func TestUpdatePlayerGaugesCountsActiveAndBlocked(t *testing.T) {
	d := newTestDispatcher(t, 5, 5, 3)
	mx := metrics.NewGameMetrics()
	d.mx = mx

	d.players[1].blocked = true
	d.updatePlayerGauges()

	assert.Equal(t, float64(2), testutil.ToFloat64(mx.ActivePlayers))
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.BlockedPlayersTotal))
}
