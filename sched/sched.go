// Package sched implements the wait-queue and cancellation half of the
// scheduler (C1): sleep_on, cancellable_sleep_on, wakeup_on, broadcast_on,
// make_runnable and cancel, plus the FIFO wait queue they operate on.
//
// Grounded on original_source/Homework/Kernel/proc/sched.c and
// sched_helper.c's queue/cancellable-sleep shape. The teacher (biscuit)
// runs its own kernel threads as real goroutines scheduled by the host Go
// runtime rather than hand-rolling a context switch — biscuit's
// proc.Thread_t.full_kerntid()/runtime.Setgptr machinery exists only to
// give each goroutine a kernel-thread identity, not to pick which one
// runs next. This package follows that lead: a single-CPU cooperative
// switch() that pops a run queue and restores saved register state has no
// meaning when the Go runtime already preempts and resumes goroutines;
// what the spec actually requires observable is wait-queue FIFO ordering
// and cancellation semantics, which this package provides with a
// sync.Cond-free channel handoff per thread instead. The one package-level
// mutex (ipl) stands in for "raise IPL to HIGH across every run-queue
// touch" — every state transition and every queue mutation takes it,
// exactly mirroring the spec's "no unlocked window" requirement.
package sched

import (
	"sync"

	"gokernel/errno"
)

// State is a thread's scheduling state.
type State int

const (
	NoState State = iota
	Run
	Sleep
	SleepCancellable
	Exited
)

// Thread_t is the scheduling-relevant slice of a kernel thread: the bits
// sched needs to sleep, wake and cancel it. proc.Thread_t embeds one.
type Thread_t struct {
	Id int

	mu        sync.Mutex
	state     State
	cancelled bool
	waitq     *Queue_t
	resume    chan errno.Err_t
}

// NewThread returns a thread in the Run state, ready to be handed to a
// goroutine.
func NewThread(id int) *Thread_t {
	return &Thread_t{Id: id, state: Run, resume: make(chan errno.Err_t, 1)}
}

// NewClonedThread returns a thread freshly copied from a fork, not yet
// in the Run state. fork's child thread is a bookkeeping clone, not a
// dispatched goroutine of its own; MakeRunnable is the step that admits
// it, mirroring proc_t's "attach, then make runnable" ordering.
func NewClonedThread(id int) *Thread_t {
	return &Thread_t{Id: id, state: NoState, resume: make(chan errno.Err_t, 1)}
}

// GetState reports the thread's current scheduling state.
func (t *Thread_t) GetState() State {
	ipl.Lock()
	defer ipl.Unlock()
	return t.state
}

// SetExited marks a thread EXITED; invariant (b) requires it be on
// neither the process list nor a wait queue when this is called, which
// proc.do_exit's caller is responsible for.
func (t *Thread_t) SetExited() {
	ipl.Lock()
	t.state = Exited
	ipl.Unlock()
}

// Queue_t is a FIFO wait queue of sleeping threads.
type Queue_t struct {
	items []*Thread_t
}

// NewQueue returns an empty wait queue.
func NewQueue() *Queue_t { return &Queue_t{} }

// Empty reports whether any thread is waiting.
func (q *Queue_t) Empty() bool {
	ipl.Lock()
	defer ipl.Unlock()
	return len(q.items) == 0
}

// Len reports the number of threads waiting.
func (q *Queue_t) Len() int {
	ipl.Lock()
	defer ipl.Unlock()
	return len(q.items)
}

// ipl is the run-queue lock: every enqueue, dequeue and state transition
// below holds it, standing in for the spec's "raise IPL to HIGH across
// every enqueue/dequeue".
var ipl sync.Mutex

// removeLocked drops t from q if present; ipl must be held by the caller.
func (q *Queue_t) removeLocked(t *Thread_t) bool {
	for i, x := range q.items {
		if x == t {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// SleepOn puts the calling thread to sleep on q, non-cancellably. It
// returns once some other thread calls WakeupOn or BroadcastOn on q.
func SleepOn(t *Thread_t, q *Queue_t) {
	ipl.Lock()
	t.state = Sleep
	t.waitq = q
	q.items = append(q.items, t)
	ipl.Unlock()

	<-t.resume

	ipl.Lock()
	t.state = Run
	t.waitq = nil
	ipl.Unlock()
}

// CancellableSleepOn puts the calling thread to sleep on q, cancellably.
// It checks the cancelled flag before sleeping (failing early with
// EINTR), and again implicitly: a concurrent Cancel lifts the thread out
// of q and resumes it with EINTR.
func CancellableSleepOn(t *Thread_t, q *Queue_t) errno.Err_t {
	ipl.Lock()
	if t.cancelled {
		t.cancelled = false
		ipl.Unlock()
		return errno.EINTR
	}
	t.state = SleepCancellable
	t.waitq = q
	q.items = append(q.items, t)
	ipl.Unlock()

	err := <-t.resume

	ipl.Lock()
	t.state = Run
	t.waitq = nil
	ipl.Unlock()
	return err
}

// PopFront removes and returns the longest-waiting thread on q without
// resuming it, or nil if q is empty. kmutex uses this to hand a lock
// directly to the next holder before waking it, rather than waking it
// and letting it race to re-acquire.
func PopFront(q *Queue_t) *Thread_t {
	ipl.Lock()
	defer ipl.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

// Resume wakes a thread previously removed from a wait queue (via
// PopFront, or WakeupOn/BroadcastOn's internal bookkeeping), delivering
// err as its sleep's return value.
func Resume(t *Thread_t, err errno.Err_t) {
	ipl.Lock()
	t.state = Run
	t.waitq = nil
	ipl.Unlock()
	t.resume <- err
}

// WakeupOn dequeues and resumes the single longest-waiting thread on q.
// It must not be called on an empty queue.
func WakeupOn(q *Queue_t) *Thread_t {
	t := PopFront(q)
	if t == nil {
		panic("sched: wakeup_on on empty queue")
	}
	t.resume <- 0
	return t
}

// BroadcastOn wakes every thread waiting on q, in FIFO order, leaving the
// caller runnable (BroadcastOn never blocks).
func BroadcastOn(q *Queue_t) {
	ipl.Lock()
	items := q.items
	q.items = nil
	ipl.Unlock()

	for _, t := range items {
		t.resume <- 0
	}
}

// MakeRunnable transitions a freshly created thread to Run. It must not
// be called on a thread already runnable.
func MakeRunnable(t *Thread_t) {
	ipl.Lock()
	defer ipl.Unlock()
	if t.state == Run {
		panic("sched: make_runnable on already-runnable thread")
	}
	t.state = Run
}

// Cancel sets t's cancelled flag. If t is sleeping cancellably, it is
// lifted out of its wait queue and resumed with EINTR immediately;
// otherwise the flag is latched for the next cancellable call. Cancelling
// the calling thread itself is the caller's responsibility to detect and
// treat as thread-exit — sched has no notion of "current thread".
func Cancel(t *Thread_t) {
	ipl.Lock()
	t.cancelled = true
	if t.state != SleepCancellable {
		ipl.Unlock()
		return
	}
	wq := t.waitq
	removed := wq.removeLocked(t)
	if removed {
		t.state = Run
		t.waitq = nil
	}
	ipl.Unlock()

	if removed {
		t.resume <- errno.EINTR
	}
}
