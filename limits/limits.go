// Package limits centralizes the kernel's system-wide resource limits.
package limits

import "sync/atomic"

// NOFILE is the fixed compile-time width of every process's fd table
// (spec.md §6: "File-descriptor table width is a fixed compile-time
// constant").
const NOFILE = 64

// NAME_MAX is the maximum length, in bytes, of a single path component.
const NAME_MAX = 255

// Sysatomic_t is a numeric limit that can be atomically updated.
type Sysatomic_t struct {
	v int64
}

// Given increases the limit by the provided amount.
func (s *Sysatomic_t) Given(n int64) {
	if n < 0 {
		panic("too mighty")
	}
	atomic.AddInt64(&s.v, n)
}

// Taken tries to decrement the limit by the provided amount, reporting
// success.
func (s *Sysatomic_t) Taken(n int64) bool {
	if n < 0 {
		panic("too mighty")
	}
	g := atomic.AddInt64(&s.v, -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64(&s.v, n)
	return false
}

// Take decrements the limit by one and reports success.
func (s *Sysatomic_t) Take() bool { return s.Taken(1) }

// Give increments the limit by one.
func (s *Sysatomic_t) Give() { s.Given(1) }

// Value reports the current value.
func (s *Sysatomic_t) Value() int64 { return atomic.LoadInt64(&s.v) }

// Syslimit_t holds system-wide counters for processes, vnodes and pipes.
// proc, vfs and fd do not take from or give back to them.
type Syslimit_t struct {
	Sysprocs Sysatomic_t
	Vnodes   Sysatomic_t
	Pipes    Sysatomic_t
}

// MkSysLimit returns the default set of limits.
func MkSysLimit() *Syslimit_t {
	s := &Syslimit_t{}
	s.Sysprocs.Given(1 << 14)
	s.Vnodes.Given(1 << 16)
	s.Pipes.Given(1 << 12)
	return s
}

// Syslimit is the configured system-wide limits. No package reads it;
// the fd table width is the NOFILE constant.
var Syslimit = MkSysLimit()
