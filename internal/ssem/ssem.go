// Package ssem implements a process-shared semaphore on top of a futex word.
//
// Go's standard library has no equivalent of POSIX sem_open/sem_wait for
// process-shared use: sync.Mutex and friends are only valid within a single
// address space. Sem instead stores its count directly in the bytes of a
// shared memory mapping (see internal/shmem), so any process that maps the
// same region sees and operates on the same word. Waiting and waking are
// done with the raw futex(2) syscall via golang.org/x/sys/unix, the same
// primitive the Go runtime's own mutex implementation is built on for
// Linux/{freebsd,dragonfly}.
//
// Sem must never be copied after it starts being shared across processes:
// every method takes a pointer, and that pointer must resolve into the
// shared mapping for the semaphore to mean anything.
package ssem

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Sem is a counting semaphore. Its zero value is a semaphore with count 0;
// use New to build one with an explicit initial count, or Init on an
// already-allocated (e.g. shared-memory-resident) Sem.
type Sem struct {
	value uint32
	_     uint32 // reserved, keeps Sem 8-byte sized/aligned for array packing
}

// New returns a Sem with the given initial count, suitable for embedding by
// value into a struct that will be placed in shared memory.
func New(initial uint32) Sem {
	return Sem{value: initial}
}

// Init (re)initializes s in place to the given count. Used when s already
// lives inside a mapped shared region and a fresh value cannot simply be
// assigned over it from another process's copy.
func (s *Sem) Init(initial uint32) {
	atomic.StoreUint32(&s.value, initial)
}

// Wait blocks until the semaphore's count is greater than zero, then
// atomically decrements it. A spurious futex wakeup or EINTR is retried
// transparently, matching the Interrupt handling spec.md §7 requires of
// every semaphore wait in this system.
func (s *Sem) Wait() error {
	for {
		if s.tryDecrement() {
			return nil
		}
		err := unix.Futex(&s.value, unix.FUTEX_WAIT, 0, nil, nil, 0)
		if err != nil && err != unix.EAGAIN && err != unix.EINTR && err != unix.EWOULDBLOCK {
			return err
		}
		// EAGAIN means the value changed between our load and the futex
		// syscall's own check; EINTR means a signal interrupted us. Both
		// cases just loop back and re-check the count.
	}
}

// TryWait attempts to decrement the semaphore without blocking. It reports
// whether the decrement succeeded.
func (s *Sem) TryWait() bool {
	return s.tryDecrement()
}

func (s *Sem) tryDecrement() bool {
	for {
		v := atomic.LoadUint32(&s.value)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&s.value, v, v-1) {
			return true
		}
	}
}

// Post increments the semaphore's count and wakes at most one waiter.
func (s *Sem) Post() error {
	atomic.AddUint32(&s.value, 1)
	if err := unix.Futex(&s.value, unix.FUTEX_WAKE, 1, nil, nil, 0); err != nil {
		// The count has already been incremented; any wake error other
		// than EAGAIN is still reported to the caller.
		if err != unix.EAGAIN {
			return err
		}
	}
	return nil
}

// Value returns the current count. Intended for diagnostics/tests only;
// the protocol itself never branches on it.
func (s *Sem) Value() uint32 {
	return atomic.LoadUint32(&s.value)
}
