// Package player implements the generic Player Contract (PC): locating the
// caller's own slot, the wait/check/read/choose/write loop, and the
// Strategy plug point for the out-of-scope move-selection intelligence.
package player

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dungeongate/chompchamps/internal/protocol"
	"github.com/dungeongate/chompchamps/internal/shmem"
	"github.com/dungeongate/chompchamps/internal/state"
)

// Strategy chooses a direction given a read-only snapshot of the board and
// the chooser's own index. This is the "specific move-selection
// intelligence" spec.md §1 places out of scope for the core; the core only
// depends on this interface.
type Strategy interface {
	Choose(view *state.View, self int) state.Direction
}

// ErrSlotNotFound is returned if the caller's PID never appears in the
// GameState's player table within the retry budget.
var ErrSlotNotFound = errors.New("player: could not locate own slot by pid")

// Run opens both shared regions, locates this process's slot, and runs the
// loop of spec.md §4.4 until game over, the player is blocked, or the pipe
// write fails. It returns nil on a clean exit.
func Run(width, height int, strategy Strategy, logger *slog.Logger) error {
	syncRegion, err := shmem.Open(protocol.RegionName, protocol.Size, false)
	if err != nil {
		return fmt.Errorf("player: opening sync region: %w", err)
	}
	defer syncRegion.Close()

	stateRegion, err := shmem.Open(state.RegionName, state.DataSize(width, height), false)
	if err != nil {
		return fmt.Errorf("player: opening state region: %w", err)
	}
	defer stateRegion.Close()

	view, err := state.NewView(stateRegion.Data())
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	sync := protocol.Map(syncRegion.Data())

	self, err := locateSelf(view)
	if err != nil {
		return err
	}
	logger = logger.With("index", self)

	out := bufio.NewWriter(os.Stdout)

	for {
		if err := sync.PlayerReady[self].Wait(); err != nil {
			return fmt.Errorf("player: waiting for ready token: %w", err)
		}

		h := view.Header()
		if h.GameOver != 0 || h.Players[self].IsBlocked() {
			logger.Info("exiting: game over or blocked")
			return nil
		}

		rg, err := protocol.EnterReader(sync)
		if err != nil {
			return fmt.Errorf("player: entering reader region: %w", err)
		}
		// Nothing is retained past Exit: Strategy.Choose must finish using
		// view before we leave the reader region (spec.md §4.4's "must not
		// retain pointers into shared memory across the reader region").
		dir := strategy.Choose(view, self)
		if err := rg.Exit(); err != nil {
			return fmt.Errorf("player: exiting reader region: %w", err)
		}

		if _, err := out.Write([]byte{byte(dir)}); err != nil {
			return fmt.Errorf("player: writing move byte: %w", err)
		}
		if err := out.Flush(); err != nil {
			return fmt.Errorf("player: flushing move byte: %w", err)
		}
	}
}

// locateSelf matches os.Getpid() against the PID Master recorded for each
// player slot, retrying briefly since Master may not have filled the table
// in yet when a fast-starting player looks (spec.md §4.4).
func locateSelf(view *state.View) (int, error) {
	pid := int32(os.Getpid())
	const (
		attempts = 50
		interval = 10 * time.Millisecond
	)
	for i := 0; i < attempts; i++ {
		h := view.Header()
		for idx := 0; idx < int(h.PlayerCount); idx++ {
			if h.Players[idx].PID == pid {
				return idx, nil
			}
		}
		time.Sleep(interval)
	}
	return 0, ErrSlotNotFound
}
