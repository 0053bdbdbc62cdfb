// Package state defines the authoritative game state (the Data Model's
// GameState, PlayerRecord, Board and Cell) and a typed view over the shared
// memory region that carries it.
//
// GameState is a fixed-size header immediately followed by a variable-length
// board tail in the same mapping (spec.md §9's "flexible-array-tail
// struct"). Rather than computing pointer arithmetic at every call site,
// View exposes a typed Header() and a typed Board() slice computed once from
// the stored Width/Height; nothing outside this file ever does pointer
// arithmetic against the mapping.
package state

import (
	"fmt"
	"unsafe"
)

// MaxPlayers bounds the number of players a game can host (spec.md §4.3).
const MaxPlayers = 9

// RegionName is the anonymous shared memory name /game_state lives under
// (spec.md §6).
const RegionName = "/game_state"

// NameLen is the fixed width of a player's name field.
const NameLen = 16

// Cell is one board square. A positive value in [1,9] is a remaining
// reward; a value <= 0 means captured, with magnitude -(i+1) identifying
// the owning player's index i.
type Cell int32

// OwnerIndex reports the owning player index and whether the cell is
// captured at all.
func (c Cell) OwnerIndex() (idx int, owned bool) {
	if c > 0 {
		return 0, false
	}
	return int(-c) - 1, true
}

// OwnedBy returns the Cell value denoting ownership by player index idx.
func OwnedBy(idx int) Cell {
	return Cell(-(idx + 1))
}

// PlayerRecord is one player's slot in GameState.
type PlayerRecord struct {
	Name         [NameLen]byte
	Score        uint32
	InvalidMoves uint32
	ValidMoves   uint32
	X            uint16
	Y            uint16
	PID          int32
	Blocked      uint8
	_            [3]byte // pad to keep the array natural-aligned
}

// SetName copies s into the fixed-width Name field, truncating if needed.
func (p *PlayerRecord) SetName(s string) {
	n := copy(p.Name[:], s)
	for i := n; i < len(p.Name); i++ {
		p.Name[i] = 0
	}
}

// NameString returns the player's name as a Go string.
func (p *PlayerRecord) NameString() string {
	n := 0
	for n < len(p.Name) && p.Name[n] != 0 {
		n++
	}
	return string(p.Name[:n])
}

// IsBlocked reports the record's blocked flag.
func (p *PlayerRecord) IsBlocked() bool { return p.Blocked != 0 }

// SetBlocked sets the record's blocked flag. Per spec.md §3 this is
// monotonic: callers must never clear it once set.
func (p *PlayerRecord) SetBlocked() { p.Blocked = 1 }

// Header is the fixed-size part of GameState, stored at the front of the
// /game_state region.
type Header struct {
	Width       uint16
	Height      uint16
	PlayerCount uint32
	Players     [MaxPlayers]PlayerRecord
	GameOver    uint8
	_           [7]byte // pad so Board() below starts 8-byte aligned
}

// HeaderSize is the fixed byte size of Header.
const HeaderSize = int(unsafe.Sizeof(Header{}))

// CellSize is the byte size of one Cell.
const CellSize = int(unsafe.Sizeof(Cell(0)))

// DataSize returns the total /game_state payload size for a board of the
// given dimensions: sizeof(Header) + W*H*sizeof(Cell).
func DataSize(width, height int) int {
	return HeaderSize + width*height*CellSize
}

// View is a typed overlay over a mapped /game_state payload.
type View struct {
	data []byte
}

// NewView wraps data (as returned by shmem.Region.Data()) as a GameState
// view. data must be at least DataSize(header.Width, header.Height) bytes
// once the header has been initialized; callers that are about to
// initialize a fresh region pass the full pre-sized buffer.
func NewView(data []byte) (*View, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("state: region too small for header: have %d want at least %d", len(data), HeaderSize)
	}
	return &View{data: data}, nil
}

// Header returns a pointer to the fixed-size header living at the front of
// the mapping.
func (v *View) Header() *Header {
	return (*Header)(unsafe.Pointer(&v.data[0]))
}

// Board returns the board tail as a []Cell of length Width*Height, computed
// from the header's stored dimensions. Panics if the mapping is smaller
// than the header claims, which would indicate Create/Open sized the region
// incorrectly — a programmer error, not a runtime condition.
func (v *View) Board() []Cell {
	h := v.Header()
	n := int(h.Width) * int(h.Height)
	need := HeaderSize + n*CellSize
	if len(v.data) < need {
		panic(fmt.Sprintf("state: mapping too small for %dx%d board: have %d want %d", h.Width, h.Height, len(v.data), need))
	}
	if n == 0 {
		return nil
	}
	ptr := (*Cell)(unsafe.Pointer(&v.data[HeaderSize]))
	return unsafe.Slice(ptr, n)
}

// Index converts board coordinates to a flat index, given the header's
// Width. Callers must validate bounds first with InBounds.
func Index(width, x, y int) int {
	return y*width + x
}

// InBounds reports whether (x,y) lies within a width x height board.
func InBounds(width, height, x, y int) bool {
	return x >= 0 && x < width && y >= 0 && y < height
}

// At returns the cell at (x,y).
func (v *View) At(x, y int) Cell {
	h := v.Header()
	return v.Board()[Index(int(h.Width), x, y)]
}

// Set writes the cell at (x,y). Only the writer (Master, under the state
// write lock) may call this.
func (v *View) Set(x, y int, c Cell) {
	h := v.Header()
	v.Board()[Index(int(h.Width), x, y)] = c
}
