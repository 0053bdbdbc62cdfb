package master

import (
	"time"

	"github.com/dungeongate/chompchamps/internal/state"
)

// TerminationReason names which condition of spec.md §4.6 fired.
type TerminationReason int

const (
	NotTerminated TerminationReason = iota
	NoLegalMove
	InactivityTimeout
	AllBlocked
)

func (r TerminationReason) String() string {
	switch r {
	case NoLegalMove:
		return "no_legal_move"
	case InactivityTimeout:
		return "timeout"
	case AllBlocked:
		return "all_blocked"
	default:
		return "not_terminated"
	}
}

// checkTermination evaluates spec.md §4.6's three conditions against the
// current GameState and the time of the last accepted move, checking no
// legal move first, then all blocked, then the inactivity timeout.
func checkTermination(view *state.View, lastValidMove time.Time, timeout time.Duration, now time.Time) TerminationReason {
	h := view.Header()
	n := int(h.PlayerCount)

	allBlocked := true
	anyLegalMove := false
	for i := 0; i < n; i++ {
		p := &h.Players[i]
		if p.IsBlocked() {
			continue
		}
		allBlocked = false
		if hasAnyLegalMove(view, i) {
			anyLegalMove = true
		}
	}

	if !anyLegalMove && !allBlocked {
		// Every non-blocked player was scanned and none has a legal move.
		return NoLegalMove
	}
	if n > 0 && allBlocked {
		return AllBlocked
	}
	if timeout > 0 && now.Sub(lastValidMove) >= timeout {
		return InactivityTimeout
	}
	return NotTerminated
}
