// Package master implements the Master Dispatcher (MD): region creation,
// process spawning, the event-driven dispatch loop, move validation and
// application, view notification, and termination & ranking.
package master

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/dungeongate/chompchamps/internal/protocol"
	"github.com/dungeongate/chompchamps/internal/shmem"
	"github.com/dungeongate/chompchamps/internal/state"
	"github.com/dungeongate/chompchamps/pkg/metrics"
)

const maxPlayers = state.MaxPlayers

// Result is Start's outcome: what cmd/master reports and exits with.
type Result struct {
	Ranking    Ranking
	Reason     TerminationReason
	ExitStatus []PlayerExitStatus
}

// PlayerExitStatus is the post-game report for one player, per spec.md §4.6.
type PlayerExitStatus struct {
	Index   int
	Name    string
	Score   uint32
	Valid   uint32
	Invalid uint32
	Blocked bool
	WaitErr error
}

// Dispatcher owns every resource Master creates: the two shared regions,
// the spawned child processes, and the per-player pipe-reader goroutines.
// Aggregating them in one struct (rather than package-level globals, the
// pattern spec.md §9 flags in the original) makes shutdown deterministic.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
	mx     *metrics.GameMetrics

	stateRegion *shmem.Region
	syncRegion  *shmem.Region
	view        *state.View
	sync        *protocol.SyncBlock

	players []*playerProc
	viewCmd *exec.Cmd

	rng           *rand.Rand
	lastValidMove time.Time
	startTime     time.Time
	moveCh        chan moveEvent
}

type playerProc struct {
	idx     int
	path    string
	cmd     *exec.Cmd
	readEnd *os.File
	blocked bool // local mirror of header.Players[idx].Blocked, for loop bookkeeping
}

type moveEvent struct {
	idx int
	b   byte
	ok  bool // false means EOF or a read error: treat as ClientDeparture
}

// New builds a Dispatcher. Call Start to run a complete game.
func New(cfg Config, logger *slog.Logger, mx *metrics.GameMetrics) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		logger: logger,
		mx:     mx,
		moveCh: make(chan moveEvent, maxPlayers),
	}
}

// Start runs the startup sequence of spec.md §4.3, then the main loop until
// termination, then shutdown. ctx cancellation (SIGINT/SIGTERM via cmd/master)
// triggers the same cleanup path as a normal termination, per spec.md §4.7.
func (d *Dispatcher) Start(ctx context.Context) (*Result, error) {
	if err := d.cleanupStaleRegions(); err != nil {
		d.logger.Warn("stale region cleanup failed, continuing", "error", err)
	}

	if err := d.createRegions(); err != nil {
		d.cleanup()
		return nil, fmt.Errorf("master: %w", err)
	}

	d.rng = rand.New(rand.NewSource(d.cfg.Seed))
	d.initGameState()

	if d.cfg.ViewPath != "" {
		if err := d.spawnView(); err != nil {
			d.cleanup()
			return nil, fmt.Errorf("master: spawning view: %w", err)
		}
		if err := d.viewHandshake(); err != nil {
			d.cleanup()
			return nil, fmt.Errorf("master: initial view handshake: %w", err)
		}
	}

	if err := d.spawnPlayers(); err != nil {
		d.cleanup()
		return nil, fmt.Errorf("master: spawning players: %w", err)
	}

	d.blockStalePlayers()
	for _, p := range d.players {
		if p.blocked {
			continue
		}
		if err := d.sync.PlayerReady[p.idx].Post(); err != nil {
			d.cleanup()
			return nil, fmt.Errorf("master: seeding player %d: %w", p.idx, err)
		}
	}

	d.updatePlayerGauges()

	if d.mx != nil {
		d.mx.GamesStartedTotal.Inc()
	}
	d.lastValidMove = time.Now()
	d.startTime = time.Now()

	reason := d.runLoop(ctx)
	result := d.finish(reason)
	return result, nil
}

func (d *Dispatcher) cleanupStaleRegions() error {
	if err := shmem.DestroyStale(state.RegionName); err != nil {
		return err
	}
	return shmem.DestroyStale(protocol.RegionName)
}

func (d *Dispatcher) createRegions() error {
	dataSize := state.DataSize(d.cfg.Width, d.cfg.Height)
	sr, err := shmem.Create(state.RegionName, dataSize, 0o600, false, 0)
	if err != nil {
		return fmt.Errorf("creating %s: %w", state.RegionName, err)
	}
	d.stateRegion = sr

	yr, err := shmem.Create(protocol.RegionName, protocol.Size, 0o600, false, 0)
	if err != nil {
		return fmt.Errorf("creating %s: %w", protocol.RegionName, err)
	}
	d.syncRegion = yr

	view, err := state.NewView(sr.Data())
	if err != nil {
		return err
	}
	d.view = view
	d.sync = protocol.Map(yr.Data())
	d.sync.Init()
	return nil
}

// initGameState performs step 2 of spec.md §4.3: random board, player names
// and deterministic starting slots.
func (d *Dispatcher) initGameState() {
	h := d.view.Header()
	h.Width = uint16(d.cfg.Width)
	h.Height = uint16(d.cfg.Height)
	h.PlayerCount = uint32(len(d.cfg.PlayerPaths))
	h.GameOver = 0

	board := d.view.Board()
	for i := range board {
		board[i] = state.Cell(1 + d.rng.Intn(9))
	}

	for i := 0; i < int(h.PlayerCount); i++ {
		p := &h.Players[i]
		*p = state.PlayerRecord{}
		p.SetName(fmt.Sprintf("Player%d", i+1))
	}

	for i, pos := range startingPositions(d.cfg.Width, d.cfg.Height, int(h.PlayerCount)) {
		p := &h.Players[i]
		p.X, p.Y = uint16(pos[0]), uint16(pos[1])
		d.view.Set(pos[0], pos[1], state.OwnedBy(i))
	}
}

func (d *Dispatcher) spawnView() error {
	cmd := exec.Command(d.cfg.ViewPath, strconv.Itoa(d.cfg.Width), strconv.Itoa(d.cfg.Height))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	d.viewCmd = cmd
	return nil
}

func (d *Dispatcher) viewHandshake() error {
	if err := d.sync.MasterToView.Post(); err != nil {
		return err
	}
	if err := d.sync.ViewToMaster.Wait(); err != nil {
		return err
	}
	if d.mx != nil {
		d.mx.ViewHandshakesTotal.Inc()
	}
	return nil
}

// spawnPlayers creates one pipe per player, starts each executable with its
// write end bound to stdout, closes the write end in Master, and records
// the child's PID — spec.md §4.3 step 5.
func (d *Dispatcher) spawnPlayers() error {
	h := d.view.Header()
	for i, path := range d.cfg.PlayerPaths {
		readEnd, writeEnd, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("creating pipe for player %d: %w", i, err)
		}

		cmd := exec.Command(path, strconv.Itoa(d.cfg.Width), strconv.Itoa(d.cfg.Height))
		cmd.Stdout = writeEnd
		cmd.Stderr = os.Stderr
		if err := cmd.Start(); err != nil {
			readEnd.Close()
			writeEnd.Close()
			return fmt.Errorf("starting player %d (%s): %w", i, path, err)
		}
		writeEnd.Close() // Master keeps only the read end open.

		h.Players[i].PID = int32(cmd.Process.Pid)

		pp := &playerProc{idx: i, path: path, cmd: cmd, readEnd: readEnd}
		d.players = append(d.players, pp)
		go d.readPlayerPipe(pp)
	}
	return nil
}

// readPlayerPipe is the goroutine-per-pipe substitute for the C original's
// select()-over-many-fds multiplexing (spec.md §9's native-readiness-
// primitive strategy): it reads through a small bufio.Reader and forwards
// each byte to the dispatcher's fan-in channel, which the main loop selects
// on alongside a pacing timeout. It does not itself limit read-ahead (the
// channel is buffered); one byte in flight per player follows from the
// player's own "one byte per token" contract.
func (d *Dispatcher) readPlayerPipe(p *playerProc) {
	r := bufio.NewReaderSize(p.readEnd, 1)
	for {
		b, err := r.ReadByte()
		if err != nil {
			d.moveCh <- moveEvent{idx: p.idx, ok: false}
			return
		}
		d.moveCh <- moveEvent{idx: p.idx, b: b, ok: true}
	}
}

// runLoop is the event-driven dispatch loop of spec.md §4.3.
func (d *Dispatcher) runLoop(ctx context.Context) TerminationReason {
	delay := time.Duration(d.cfg.DelayMS) * time.Millisecond
	timeout := time.Duration(d.cfg.TimeoutSec) * time.Second

	for {
		if d.noOpenPipes() {
			return d.finalReason()
		}

		select {
		case <-ctx.Done():
			return NotTerminated
		case ev := <-d.moveCh:
			d.handleEvent(ev)
		case <-time.After(delay):
			// Readiness-wait timeout: fall through to the termination check
			// below so inactivity and stalemate are noticed even with no
			// pipe activity (spec.md §4.3).
		}

		if reason := checkTermination(d.view, d.lastValidMove, timeout, time.Now()); reason != NotTerminated {
			return reason
		}
	}
}

// blockStalePlayers marks as blocked every non-blocked player who currently
// has no legal move, without ending the game — spec.md §3's PlayerRecord
// invariant ("blocked becomes true ... once ... no legal move exists for
// it") applies per-player, independently of the whole-game termination
// conditions in spec.md §4.6. A player's own move can remove a neighbor's
// last capturable cell, so this is re-checked after every processed event,
// not just at startup.
func (d *Dispatcher) blockStalePlayers() {
	h := d.view.Header()
	for _, p := range d.players {
		if p.blocked {
			continue
		}
		if !hasAnyLegalMove(d.view, p.idx) {
			h.Players[p.idx].SetBlocked()
			p.blocked = true
			d.updatePlayerGauges()
			d.logger.Info("player has no legal move, blocking", "index", p.idx)
		}
	}
}

// updatePlayerGauges recomputes the active/blocked player gauges from the
// current in-memory player list. Called on every not-blocked→blocked
// transition so the gauges stay live without double-counting a player
// already marked blocked on a prior scan.
func (d *Dispatcher) updatePlayerGauges() {
	if d.mx == nil {
		return
	}
	blocked := 0
	for _, p := range d.players {
		if p.blocked {
			blocked++
		}
	}
	d.mx.ActivePlayers.Set(float64(len(d.players) - blocked))
	d.mx.BlockedPlayersTotal.Set(float64(blocked))
}

func (d *Dispatcher) noOpenPipes() bool {
	for _, p := range d.players {
		if !p.blocked {
			return false
		}
	}
	return true
}

func (d *Dispatcher) finalReason() TerminationReason {
	if reason := checkTermination(d.view, d.lastValidMove, 0, time.Now()); reason != NotTerminated {
		return reason
	}
	return AllBlocked
}

func (d *Dispatcher) handleEvent(ev moveEvent) {
	h := d.view.Header()
	p := &h.Players[ev.idx]

	if !ev.ok {
		p.SetBlocked()
		d.players[ev.idx].blocked = true
		d.updatePlayerGauges()
		if d.mx != nil {
			d.mx.MovesTotal.WithLabelValues(p.NameString(), "eof").Inc()
		}
		d.logger.Info("player departed", "index", ev.idx, "name", p.NameString())
		return
	}

	if d.players[ev.idx].blocked {
		// A byte that arrived after we stopped re-arming this player's
		// token (it ran out of legal moves): not a new outstanding move,
		// drop it rather than letting a misbehaving client re-enter play.
		return
	}

	wg, err := protocol.EnterWriter(d.sync)
	if err != nil {
		d.logger.Error("failed to enter writer region", "error", err)
		return
	}

	result := "invalid"
	dir := state.Direction(ev.b)
	if dir.Valid() && isValid(d.view, ev.idx, dir) {
		applyMove(d.view, ev.idx, dir)
		d.lastValidMove = time.Now()
		result = "valid"
	} else {
		p.InvalidMoves++
	}

	if err := wg.Exit(); err != nil {
		d.logger.Error("failed to exit writer region", "error", err)
	}

	if d.mx != nil {
		d.mx.MovesTotal.WithLabelValues(p.NameString(), result).Inc()
	}
	d.logger.Debug("processed move", "player", ev.idx, "byte", ev.b, "result", result)

	if d.viewCmd != nil {
		if err := d.viewHandshake(); err != nil {
			d.logger.Error("view handshake failed", "error", err)
		}
	}

	d.blockStalePlayers()
	if !d.players[ev.idx].blocked {
		if err := d.sync.PlayerReady[ev.idx].Post(); err != nil {
			d.logger.Error("failed to re-arm player", "index", ev.idx, "error", err)
		}
	}

	time.Sleep(time.Duration(d.cfg.DelayMS) * time.Millisecond)
}

// finish sets game_over, performs the final view handshake, reaps children,
// computes the ranking, and tears down shared resources.
func (d *Dispatcher) finish(reason TerminationReason) *Result {
	if wg, err := protocol.EnterWriter(d.sync); err == nil {
		d.view.Header().GameOver = 1
		wg.Exit()
	}

	d.wakePlayersForShutdown()

	if d.viewCmd != nil {
		if err := d.viewHandshake(); err != nil {
			d.logger.Error("final view handshake failed", "error", err)
		}
	}

	h := d.view.Header()
	ranking := rank(h)

	statuses := make([]PlayerExitStatus, 0, len(d.players))
	for _, p := range d.players {
		p.readEnd.Close()
		err := p.cmd.Wait()
		rec := &h.Players[p.idx]
		statuses = append(statuses, PlayerExitStatus{
			Index:   p.idx,
			Name:    rec.NameString(),
			Score:   rec.Score,
			Valid:   rec.ValidMoves,
			Invalid: rec.InvalidMoves,
			Blocked: rec.IsBlocked(),
			WaitErr: err,
		})
	}
	if d.viewCmd != nil {
		d.viewCmd.Wait()
	}

	if d.mx != nil {
		d.mx.GamesFinishedTotal.WithLabelValues(reason.String()).Inc()
		d.mx.ActivePlayers.Set(0)
		d.mx.BlockedPlayersTotal.Set(float64(len(d.players)))
		d.mx.GameDurationSeconds.Set(time.Since(d.startTime).Seconds())
	}

	d.printSummary(statuses, ranking, reason)
	d.cleanup()

	return &Result{Ranking: ranking, Reason: reason, ExitStatus: statuses}
}

// wakePlayersForShutdown posts every player's ready token once. Every player
// is parked in PlayerReady[i].Wait() whether or not it is currently blocked —
// Master only posts that token to seed play or re-arm an accepted byte, so a
// player never wakes up on its own to notice game_over. Without this, a
// player blocked on the semaphore never re-checks game_over and finish's
// subsequent p.cmd.Wait() hangs forever (spec.md §4.4 step 2).
func (d *Dispatcher) wakePlayersForShutdown() {
	for _, p := range d.players {
		if err := d.sync.PlayerReady[p.idx].Post(); err != nil {
			d.logger.Error("failed to wake player for shutdown", "index", p.idx, "error", err)
		}
	}
}

func (d *Dispatcher) printSummary(statuses []PlayerExitStatus, r Ranking, reason TerminationReason) {
	fmt.Fprintf(os.Stdout, "game over: %s\n", reason)
	for _, s := range statuses {
		fmt.Fprintf(os.Stdout, "  %-16s score=%-4d valid=%-4d invalid=%-4d blocked=%v\n",
			s.Name, s.Score, s.Valid, s.Invalid, s.Blocked)
		d.logger.Info("player exit", "name", s.Name, "score", s.Score,
			"valid_moves", s.Valid, "invalid_moves", s.Invalid, "blocked", s.Blocked, "wait_error", s.WaitErr)
	}
	if r.Tie {
		fmt.Fprintln(os.Stdout, "result: tie")
	} else if len(statuses) > 0 {
		fmt.Fprintf(os.Stdout, "winner: %s\n", statuses[r.WinnerIndex].Name)
	}
}

// cleanup tears down both shared regions. It is safe to call multiple
// times and on partially-initialized Dispatchers (spec.md §4.7: resource
// creation failures and signals both funnel through this single path).
func (d *Dispatcher) cleanup() {
	for _, p := range d.players {
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
	}
	if d.viewCmd != nil && d.viewCmd.Process != nil {
		d.viewCmd.Process.Kill()
	}
	if d.stateRegion != nil {
		if err := d.stateRegion.Destroy(); err != nil {
			d.logger.Warn("destroying state region", "error", err)
		}
	}
	if d.syncRegion != nil {
		if err := d.syncRegion.Destroy(); err != nil {
			d.logger.Warn("destroying sync region", "error", err)
		}
	}
}
