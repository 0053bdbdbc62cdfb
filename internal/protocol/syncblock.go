// Package protocol implements the Synchronization Protocol (SP): the
// SyncBlock layout and the writer-preference readers-writers discipline
// that Master, Player and View all obey when touching GameState.
//
// The discipline is implemented exactly once here as ReaderGuard and
// WriterGuard, so every read/write site shares a single entry/exit
// sequence instead of each file re-deriving the handshake — the "protocol
// open-coded across files" failure mode spec.md §9 calls out.
package protocol

import (
	"sync/atomic"
	"unsafe"

	"github.com/dungeongate/chompchamps/internal/ssem"
	"github.com/dungeongate/chompchamps/internal/state"
)

// RegionName is the anonymous shared memory name /game_sync lives under
// (spec.md §6).
const RegionName = "/game_sync"

// Size is the byte size of one SyncBlock, i.e. the /game_sync region's
// payload size.
var Size = int(unsafe.Sizeof(SyncBlock{}))

// Map overlays data (as returned by shmem.Region.Data()) as a *SyncBlock.
// data must be at least Size bytes.
func Map(data []byte) *SyncBlock {
	return (*SyncBlock)(unsafe.Pointer(&data[0]))
}

// SyncBlock is the authoritative layout of /game_sync, matching spec.md
// §4.2 and §6 exactly: the semaphores and reader_count word, in the order
// listed, followed by one ready-semaphore per player slot.
type SyncBlock struct {
	MasterToView     ssem.Sem
	ViewToMaster     ssem.Sem
	MasterMutex      ssem.Sem
	StateMutex       ssem.Sem
	ReaderCountMutex ssem.Sem
	ReaderCount      uint32
	_                uint32 // padding
	PlayerReady      [state.MaxPlayers]ssem.Sem
}

// Init initializes every semaphore to its documented initial value
// (spec.md §4.2 table) and zeroes reader_count. player_ready[i] starts at
// 0 for every i, including i >= playerCount — Master only ever posts to
// slots belonging to an active player, so the unused tail stays dormant.
func (sb *SyncBlock) Init() {
	sb.MasterToView.Init(0)
	sb.ViewToMaster.Init(0)
	sb.MasterMutex.Init(1)
	sb.StateMutex.Init(1)
	sb.ReaderCountMutex.Init(1)
	atomic.StoreUint32(&sb.ReaderCount, 0)
	for i := range sb.PlayerReady {
		sb.PlayerReady[i].Init(0)
	}
}

// ReaderGuard represents one reader's hold on GameState, acquired via
// EnterReader and released via Exit.
type ReaderGuard struct {
	sb *SyncBlock
}

// EnterReader performs the full reader-entry sequence of spec.md §4.2:
// the master_mutex touch-and-release handshake that queues behind any
// waiting writer, then the reader_count/state_mutex admission.
func EnterReader(sb *SyncBlock) (*ReaderGuard, error) {
	if err := sb.MasterMutex.Wait(); err != nil {
		return nil, err
	}
	if err := sb.MasterMutex.Post(); err != nil {
		return nil, err
	}

	if err := sb.ReaderCountMutex.Wait(); err != nil {
		return nil, err
	}
	n := atomic.AddUint32(&sb.ReaderCount, 1)
	if n == 1 {
		if err := sb.StateMutex.Wait(); err != nil {
			// Back out our reader_count increment before propagating: we
			// never actually got reader access.
			atomic.AddUint32(&sb.ReaderCount, ^uint32(0))
			sb.ReaderCountMutex.Post()
			return nil, err
		}
	}
	if err := sb.ReaderCountMutex.Post(); err != nil {
		return nil, err
	}

	return &ReaderGuard{sb: sb}, nil
}

// Exit performs the full reader-exit sequence: decrement reader_count, and
// if this was the last reader, release state_mutex for a waiting writer.
func (g *ReaderGuard) Exit() error {
	sb := g.sb
	if err := sb.ReaderCountMutex.Wait(); err != nil {
		return err
	}
	n := atomic.AddUint32(&sb.ReaderCount, ^uint32(0))
	if n == 0 {
		if err := sb.StateMutex.Post(); err != nil {
			sb.ReaderCountMutex.Post()
			return err
		}
	}
	return sb.ReaderCountMutex.Post()
}

// WriterGuard represents Master's exclusive hold on GameState.
type WriterGuard struct {
	sb *SyncBlock
}

// EnterWriter acquires state_mutex directly: Master is the only writer, so
// it does not need the reader_count bookkeeping, only the lock itself.
func EnterWriter(sb *SyncBlock) (*WriterGuard, error) {
	if err := sb.StateMutex.Wait(); err != nil {
		return nil, err
	}
	return &WriterGuard{sb: sb}, nil
}

// Exit releases state_mutex.
func (g *WriterGuard) Exit() error {
	return g.sb.StateMutex.Post()
}

// SignalWriterIntent performs the optional master_mutex wait/post Master
// may use to announce writer intent ahead of taking state_mutex, so that
// readers arriving after the signal queue behind it (spec.md §4.2). The
// core Master does not call this — the
// post-then-wait discipline above already gives writer preference with this
// protocol's semantics (see DESIGN.md's Open Question #2) — but it is kept
// available for a Master variant that wants an explicit announcement.
func SignalWriterIntent(sb *SyncBlock) error {
	if err := sb.MasterMutex.Wait(); err != nil {
		return err
	}
	return sb.MasterMutex.Post()
}
