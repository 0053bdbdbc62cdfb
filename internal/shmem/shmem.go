// Package shmem implements the Shared-Memory Region Manager (SMRM): the
// creation, opening, mapping and destruction of the two named shared memory
// regions the engine depends on.
//
// A region's layout is `[optional front semaphore][data]`; Data returns a
// slice positioned past the optional front semaphore. The core configuration
// never requests a front semaphore (both /game_state and /game_sync pass
// withFrontSem=false) — every synchronization primitive instead lives inside
// the data payload of /game_sync, see internal/protocol — but Create/Open
// still support one so the manager matches the general SMRM contract.
//
// Regions are backed by plain files under BaseDir ($XDG_RUNTIME_DIR when set,
// otherwise /dev/shm) rather than true POSIX shm_open objects: Go's stdlib
// does not expose shm_open, and a file under a tmpfs mount gives identical
// semantics (anonymous-named, RAM-backed, survives until explicitly
// unlinked) without requiring cgo.
package shmem

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// BaseDir is the directory region names are resolved under. It is a var,
// not a const, so tests can point it at a scratch directory instead of the
// real /dev/shm.
var BaseDir = defaultBaseDir()

func defaultBaseDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir
		}
	}
	return "/dev/shm"
}

var (
	// ErrAlreadyExists is returned by Create when the named region is
	// already present and in use.
	ErrAlreadyExists = errors.New("shmem: region already exists")
	// ErrOutOfSpace is returned by Create when the backing filesystem has
	// no room for the requested size.
	ErrOutOfSpace = errors.New("shmem: out of space")
	// ErrPermission is returned when the process lacks access to create,
	// open, or map the region.
	ErrPermission = errors.New("shmem: permission denied")
	// ErrNotFound is returned by Open when the named region does not exist.
	ErrNotFound = errors.New("shmem: region not found")
	// ErrSizeMismatch is returned by Open when a size hint is given and
	// disagrees with the region's actual size.
	ErrSizeMismatch = errors.New("shmem: size mismatch")
)

// Region is a mapped named shared memory object.
type Region struct {
	name         string
	path         string
	file         *os.File
	mapping      []byte // the full mapping, including the optional front sem
	withFrontSem bool
}

const frontSemSize = 8 // matches the 8-byte ssem.Sem layout

// Create atomically creates and sizes the named shared region, maps it
// read/write, and optionally reserves a leading process-shared semaphore
// slot initialized to semInitValue. It fails with ErrAlreadyExists if the
// name is already in use, ErrOutOfSpace if the region cannot be sized, or
// ErrPermission on an access failure.
func Create(name string, dataSize int, mode os.FileMode, withFrontSem bool, semInitValue uint32) (*Region, error) {
	path := regionPath(name)
	total := dataSize
	if withFrontSem {
		total += frontSemSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		switch {
		case os.IsExist(err):
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		case os.IsPermission(err):
			return nil, fmt.Errorf("%w: %s", ErrPermission, name)
		default:
			return nil, fmt.Errorf("shmem: create %s: %w", name, err)
		}
	}

	if err := f.Truncate(int64(total)); err != nil {
		f.Close()
		os.Remove(path)
		if errors.Is(err, unix.ENOSPC) {
			return nil, fmt.Errorf("%w: %s", ErrOutOfSpace, name)
		}
		return nil, fmt.Errorf("shmem: truncate %s: %w", name, err)
	}

	mapping, err := unix.Mmap(int(f.Fd()), 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shmem: mmap %s: %w", name, err)
	}

	if withFrontSem {
		binary.LittleEndian.PutUint32(mapping[0:4], semInitValue)
	}

	return &Region{name: name, path: path, file: f, mapping: mapping, withFrontSem: withFrontSem}, nil
}

// Open opens an existing region. If dataSizeHint is zero, the mapped size is
// taken from the file's current on-disk size. If the process lacks write
// access and withFrontSem is false, Open falls back to a read-only mapping
// rather than failing outright
// — useful for a caller that only ever reads plain data. Callers that need to
// post/wait a semaphore living inside the region still require read/write
// access; /game_state and /game_sync are always opened read/write in
// practice since every process posts or waits on something inside them.
func Open(name string, dataSizeHint int, withFrontSem bool) (*Region, error) {
	path := regionPath(name)

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("shmem: stat %s: %w", name, err)
	}

	size := dataSizeHint
	if withFrontSem {
		size += frontSemSize
	}
	if dataSizeHint == 0 {
		size = int(st.Size())
	} else if int64(size) != st.Size() {
		return nil, fmt.Errorf("%w: %s wants %d has %d", ErrSizeMismatch, name, size, st.Size())
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	prot := unix.PROT_READ | unix.PROT_WRITE
	if err != nil {
		if !os.IsPermission(err) || withFrontSem {
			if os.IsPermission(err) {
				return nil, fmt.Errorf("%w: %s", ErrPermission, name)
			}
			return nil, fmt.Errorf("shmem: open %s: %w", name, err)
		}
		// Read-only fallback.
		f, err = os.OpenFile(path, os.O_RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrPermission, name)
		}
		prot = unix.PROT_READ
	}

	mapping, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmem: mmap %s: %w", name, err)
	}

	return &Region{name: name, path: path, file: f, mapping: mapping, withFrontSem: withFrontSem}, nil
}

// Data returns the region's payload, i.e. the mapping past any optional
// front semaphore.
func (r *Region) Data() []byte {
	if r.withFrontSem {
		return r.mapping[frontSemSize:]
	}
	return r.mapping
}

// Close unmaps and closes the region's file descriptor without unlinking
// the underlying name. Players and View call this; Destroy calls it before
// unlinking.
func (r *Region) Close() error {
	if r.mapping != nil {
		if err := unix.Munmap(r.mapping); err != nil {
			return fmt.Errorf("shmem: munmap %s: %w", r.name, err)
		}
		r.mapping = nil
	}
	return r.file.Close()
}

// Destroy unmaps, closes and unlinks the region's name. Only Master calls
// this, as the sole owner of region lifecycle.
func (r *Region) Destroy() error {
	if err := r.Close(); err != nil {
		return err
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shmem: unlink %s: %w", r.name, err)
	}
	return nil
}

// DestroyStale attempts to unlink a region name left behind by a crashed
// prior run, without mapping it. It is not an error if the name does not
// exist. Master calls this as part of start-of-day cleanup.
func DestroyStale(name string) error {
	err := os.Remove(regionPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("shmem: unlink stale %s: %w", name, err)
	}
	return nil
}

func regionPath(name string) string {
	return filepath.Join(BaseDir, filepath.Base(name))
}
