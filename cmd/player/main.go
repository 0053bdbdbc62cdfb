// Command player is a default Player implementation: it locates its own
// slot, waits its turn, and picks a move with a simple random-walk strategy
// (the "specific move-selection intelligence" spec.md §1 places out of
// scope for the core).
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/dungeongate/chompchamps/internal/player"
	"github.com/dungeongate/chompchamps/internal/state"
	"github.com/dungeongate/chompchamps/pkg/logging"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <width> <height>\n", os.Args[0])
		os.Exit(2)
	}
	width, err := strconv.Atoi(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "player: bad width: %v\n", err)
		os.Exit(2)
	}
	height, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "player: bad height: %v\n", err)
		os.Exit(2)
	}

	logger := logging.NewLoggerBasic("player", logging.EnvOr("CHOMPCHAMPS_LOG_LEVEL", "info"), "text", "stderr")

	strategy := &randomWalkStrategy{rng: rand.New(rand.NewSource(int64(os.Getpid())))}
	if err := player.Run(width, height, strategy, logger); err != nil {
		logger.Error("player exited with error", "error", err)
		os.Exit(1)
	}
}

// randomWalkStrategy picks uniformly among the directions that currently
// look legal (in-bounds and onto a still-positive cell) from the player's
// own last-known position, falling back to
// an arbitrary direction when nothing obviously fits — Master is the sole
// arbiter of validity, so a wrong guess just costs an invalid-move count.
type randomWalkStrategy struct {
	rng *rand.Rand
}

func (s *randomWalkStrategy) Choose(view *state.View, self int) state.Direction {
	h := view.Header()
	p := &h.Players[self]
	x, y := int(p.X), int(p.Y)

	var candidates []state.Direction
	for d := state.Direction(0); d < state.NumDirections; d++ {
		dx, dy := d.Delta()
		tx, ty := x+dx, y+dy
		if !state.InBounds(int(h.Width), int(h.Height), tx, ty) {
			continue
		}
		if view.At(tx, ty) > 0 {
			candidates = append(candidates, d)
		}
	}
	if len(candidates) == 0 {
		return state.Direction(s.rng.Intn(state.NumDirections))
	}
	return candidates[s.rng.Intn(len(candidates))]
}
