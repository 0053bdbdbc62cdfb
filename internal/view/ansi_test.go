package view

import (
	"bytes"
	"strings"
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
	h.Width, h.Height = uint16(width), uint16(height)
	h.PlayerCount = 1
	h.Players[0].SetName("Player1")
	board := v.Board()
	for i := range board {
		board[i] = state.Cell(1)
	}
	return v
}

func TestANSIRendererDrawClearsScreenAndDrawsBoard(t *testing.T) {
	var buf bytes.Buffer
	r := NewANSIRenderer(&buf)

	v := newTestView(t, 2, 2)
	v.Set(0, 0, state.OwnedBy(0))
	r.Draw(v)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\033[2J\033[H"))
	assert.Contains(t, out, "1") // remaining reward glyph
	assert.Contains(t, out, "Player1")
}

func TestANSIRendererDrawFinalAnnouncesGameOver(t *testing.T) {
	var buf bytes.Buffer
	r := NewANSIRenderer(&buf)

	v := newTestView(t, 2, 2)
	r.DrawFinal(v)

	assert.Contains(t, buf.String(), "game over")
}
