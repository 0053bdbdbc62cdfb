package master

import "github.com/dungeongate/chompchamps/internal/state"

// Ranking is the outcome of Termination & Ranking (spec.md §4.6).
type Ranking struct {
	WinnerIndex int  // valid only if Tie is false
	Tie         bool // true when another player equals the best on score, valid_moves and invalid_moves
}

// rank applies spec.md §4.6's descending priority: higher score, then fewer
// valid_moves, then fewer invalid_moves, then tie.
//
// Open Question (spec.md §9) resolved per DESIGN.md: a zero best score is
// never special-cased, so a lone player wins even at score 0. Blocked status
// plays no part in the ranking. A tie is reported only when another player
// equals the best one on score, valid_moves and invalid_moves alike.
func rank(h *state.Header) Ranking {
	n := int(h.PlayerCount)
	if n == 0 {
		return Ranking{Tie: true}
	}

	best := 0
	for i := 1; i < n; i++ {
		if better(&h.Players[i], &h.Players[best]) {
			best = i
		}
	}

	tied := false
	for i := 0; i < n; i++ {
		if i == best {
			continue
		}
		if equalRank(&h.Players[i], &h.Players[best]) {
			tied = true
			break
		}
	}

	return Ranking{WinnerIndex: best, Tie: tied}
}

// better reports whether a outranks b under spec.md §4.6's priority chain.
func better(a, b *state.PlayerRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.ValidMoves != b.ValidMoves {
		return a.ValidMoves < b.ValidMoves
	}
	return a.InvalidMoves < b.InvalidMoves
}

func equalRank(a, b *state.PlayerRecord) bool {
	return a.Score == b.Score && a.ValidMoves == b.ValidMoves && a.InvalidMoves == b.InvalidMoves
}
