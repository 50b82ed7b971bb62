// Package kmutex implements the non-recursive, thread-context-only,
// cancellable mutex (C2). Grounded on
// original_source/Homework/Kernel/proc/kmutex.c: the holder field is set
// directly by Unlock to the next queue head rather than cleared and
// raced for, and a cancellation that wins the race against a concurrent
// unlock — the acquirer finds itself holding the lock anyway — is handled
// by unlocking before reporting INTERRUPTED (design note (c) in spec.md
// §9).
package kmutex

import (
	"sync"

	"gokernel/errno"
	"gokernel/sched"
)

// Mutex_t is a non-recursive mutex usable only from thread context
// (never from an interrupt handler — sched's wait queues assume a
// thread that can be resumed by a later call, which an ISR cannot do).
type Mutex_t struct {
	mu     sync.Mutex
	holder *sched.Thread_t
	q      *sched.Queue_t
}

// New returns an unlocked mutex.
func New() *Mutex_t {
	return &Mutex_t{q: sched.NewQueue()}
}

// Lock acquires the mutex, sleeping non-cancellably if it is held.
// Recursive locking trips a panic, mirroring the assertion in the
// original.
func (m *Mutex_t) Lock(t *sched.Thread_t) {
	m.mu.Lock()
	if m.holder == t {
		m.mu.Unlock()
		panic("kmutex: recursive lock")
	}
	if m.holder == nil {
		m.holder = t
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	// Unlock sets m.holder = t directly before resuming us; there is no
	// re-acquire step on wake.
	sched.SleepOn(t, m.q)
}

// LockCancellable is Lock's cancellable counterpart. If cancelled before
// acquiring, it returns EINTR. If a concurrent Unlock handed over the
// lock in the same window a Cancel fired, the acquirer finds itself
// holding the mutex despite the cancellation; in that case it unlocks
// before returning EINTR rather than leaking the lock.
func (m *Mutex_t) LockCancellable(t *sched.Thread_t) errno.Err_t {
	m.mu.Lock()
	if m.holder == t {
		m.mu.Unlock()
		panic("kmutex: recursive lock")
	}
	if m.holder == nil {
		m.holder = t
		m.mu.Unlock()
		return 0
	}
	m.mu.Unlock()

	err := sched.CancellableSleepOn(t, m.q)
	if err == 0 {
		return 0
	}

	m.mu.Lock()
	won := m.holder == t
	m.mu.Unlock()
	if won {
		m.Unlock(t)
	}
	return err
}

// Unlock releases the mutex, handing it directly to the queue head (if
// any) rather than clearing the holder and letting waiters race.
func (m *Mutex_t) Unlock(t *sched.Thread_t) {
	m.mu.Lock()
	if m.holder != t {
		m.mu.Unlock()
		panic("kmutex: unlock by non-holder")
	}
	next := sched.PopFront(m.q)
	m.holder = next
	m.mu.Unlock()

	if next != nil {
		sched.Resume(next, 0)
	}
}
