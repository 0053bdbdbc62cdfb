package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/dungeongate/chompchamps/internal/state"
)

// ANSIRenderer draws the board to an io.Writer (normally os.Stdout), starting
// each frame with the ANSI clear-screen/home-cursor sequence.
type ANSIRenderer struct {
	Out io.Writer
}

// NewANSIRenderer returns a renderer writing to w.
func NewANSIRenderer(w io.Writer) *ANSIRenderer {
	return &ANSIRenderer{Out: w}
}

var playerGlyphs = []byte("123456789")

func (r *ANSIRenderer) Draw(v *state.View) {
	r.Out.Write([]byte("\033[2J\033[H"))
	h := v.Header()
	r.writeBoard(v, h)
	r.writeScoreboard(h)
}

func (r *ANSIRenderer) DrawFinal(v *state.View) {
	r.Out.Write([]byte("\033[2J\033[H"))
	h := v.Header()
	r.writeBoard(v, h)
	fmt.Fprintln(r.Out, "\r\n=== game over ===")
	r.writeScoreboard(h)
}

func (r *ANSIRenderer) writeBoard(v *state.View, h *state.Header) {
	var b strings.Builder
	for y := 0; y < int(h.Height); y++ {
		for x := 0; x < int(h.Width); x++ {
			c := v.At(x, y)
			if idx, owned := c.OwnerIndex(); owned {
				if idx >= 0 && idx < len(playerGlyphs) {
					b.WriteByte(playerGlyphs[idx])
				} else {
					b.WriteByte('#')
				}
			} else {
				b.WriteByte(byte('0' + c))
			}
			b.WriteByte(' ')
		}
		b.WriteString("\r\n")
	}
	r.Out.Write([]byte(b.String()))
}

func (r *ANSIRenderer) writeScoreboard(h *state.Header) {
	fmt.Fprintln(r.Out, "\r")
	for i := 0; i < int(h.PlayerCount); i++ {
		p := &h.Players[i]
		status := ""
		if p.IsBlocked() {
			status = " (blocked)"
		}
		fmt.Fprintf(r.Out, "%-16s score=%-4d valid=%-4d invalid=%-4d%s\r\n",
			p.NameString(), p.Score, p.ValidMoves, p.InvalidMoves, status)
	}
}
