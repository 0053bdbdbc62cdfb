package master

import (
	"github.com/dungeongate/chompchamps/internal/state"
)

// isValid reports whether player idx may move in direction dir: the
// target must be in-bounds and still hold a positive (uncaptured) reward
// (spec.md §4.3 "Move validity").
func isValid(view *state.View, idx int, dir state.Direction) bool {
	h := view.Header()
	p := &h.Players[idx]
	dx, dy := dir.Delta()
	tx, ty := int(p.X)+dx, int(p.Y)+dy
	if !state.InBounds(int(h.Width), int(h.Height), tx, ty) {
		return false
	}
	return view.At(tx, ty) > 0
}

// applyMove mutates GameState for an accepted move: awards the target
// cell's value to the player's score, marks the target cell captured,
// advances the player's head, and increments valid_moves. The previously
// occupied cell is left untouched — it remains owned (spec.md §4.3 "Apply
// move").
func applyMove(view *state.View, idx int, dir state.Direction) {
	h := view.Header()
	p := &h.Players[idx]
	dx, dy := dir.Delta()
	tx, ty := int(p.X)+dx, int(p.Y)+dy

	reward := view.At(tx, ty)
	p.Score += uint32(reward)
	view.Set(tx, ty, state.OwnedBy(idx))
	p.X, p.Y = uint16(tx), uint16(ty)
	p.ValidMoves++
}

// hasAnyLegalMove reports whether player idx has at least one of the eight
// directions available.
func hasAnyLegalMove(view *state.View, idx int) bool {
	for d := state.Direction(0); d < state.NumDirections; d++ {
		if isValid(view, idx, d) {
			return true
		}
	}
	return false
}
