// Package view implements the generic View Contract (VC): the
// wait/check/draw loop that follows Master's notifications one for one. The
// drawing itself is out of scope for the core (spec.md §1), so it is plugged
// in through the Renderer interface; cmd/view wires a concrete ANSI
// renderer.
package view

import (
	"fmt"
	"log/slog"

	"github.com/dungeongate/chompchamps/internal/protocol"
	"github.com/dungeongate/chompchamps/internal/shmem"
	"github.com/dungeongate/chompchamps/internal/state"
)

// Renderer draws one frame of the board. Draw is called once per reader
// region hold, so it must not retain view past the call, and DrawFinal is
// called once, outside any lock, after game_over is observed.
type Renderer interface {
	Draw(view *state.View)
	DrawFinal(view *state.View)
}

// Run opens both shared regions and runs the loop of spec.md §4.5 until
// game_over is observed. It returns nil on a clean exit.
func Run(width, height int, renderer Renderer, logger *slog.Logger) error {
	syncRegion, err := shmem.Open(protocol.RegionName, protocol.Size, false)
	if err != nil {
		return fmt.Errorf("view: opening sync region: %w", err)
	}
	defer syncRegion.Close()

	stateRegion, err := shmem.Open(state.RegionName, state.DataSize(width, height), false)
	if err != nil {
		return fmt.Errorf("view: opening state region: %w", err)
	}
	defer stateRegion.Close()

	v, err := state.NewView(stateRegion.Data())
	if err != nil {
		return fmt.Errorf("view: %w", err)
	}
	sync := protocol.Map(syncRegion.Data())

	for {
		if err := sync.MasterToView.Wait(); err != nil {
			return fmt.Errorf("view: waiting for master notification: %w", err)
		}

		if v.Header().GameOver != 0 {
			renderer.DrawFinal(v)
			if err := sync.ViewToMaster.Post(); err != nil {
				return fmt.Errorf("view: posting final ack: %w", err)
			}
			logger.Info("exiting: game over")
			return nil
		}

		rg, err := protocol.EnterReader(sync)
		if err != nil {
			return fmt.Errorf("view: entering reader region: %w", err)
		}
		renderer.Draw(v)
		if err := rg.Exit(); err != nil {
			return fmt.Errorf("view: exiting reader region: %w", err)
		}

		if err := sync.ViewToMaster.Post(); err != nil {
			return fmt.Errorf("view: posting ack: %w", err)
		}
	}
}
