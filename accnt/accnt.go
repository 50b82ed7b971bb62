// Package accnt accumulates per-process CPU accounting, exposed as a
// Rusage pair of user and system durations.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

// Accnt_t accumulates per-process runtime. Userns/Sysns are nanoseconds;
// the embedded mutex lets Fetch take a consistent snapshot.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	mu     sync.Mutex
}

// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

// Finish finalizes accounting by adding elapsed system time since start.
func (a *Accnt_t) Finish(start time.Time) {
	a.Systadd(time.Since(start).Nanoseconds())
}

// Add merges another accounting record into this one.
func (a *Accnt_t) Add(n *Accnt_t) {
	a.mu.Lock()
	a.Userns += atomic.LoadInt64(&n.Userns)
	a.Sysns += atomic.LoadInt64(&n.Sysns)
	a.mu.Unlock()
}

// Rusage is the (user, sys) duration pair reported to waitpid/getrusage
// callers.
type Rusage struct {
	User time.Duration
	Sys  time.Duration
}

// Fetch returns a consistent snapshot of accumulated usage.
func (a *Accnt_t) Fetch() Rusage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Rusage{
		User: time.Duration(atomic.LoadInt64(&a.Userns)),
		Sys:  time.Duration(atomic.LoadInt64(&a.Sysns)),
	}
}
