// Package res enforces a hard step ceiling on a loop, turning a loop
// that would otherwise run on unbounded into a loud, bounded failure
// instead of a silent hang. Its one user is the user-buffer copy loop
// in vm (Userbuf_t); the shadow-object chain walk (C6) and the VFS path
// walk (C11) are iterative but do not consult a Budget.
package res

import "gokernel/bounds"

// MaxSteps is the per-call-site iteration ceiling.
const MaxSteps = 1 << 20

// Budget tracks remaining steps for one bounded loop invocation.
type Budget struct {
	Tag       bounds.Tag
	remaining int
}

// NewBudget returns a fresh budget tagged for diagnostics. Callers
// create one Budget per loop invocation (not per iteration) and call
// Take at the top of every iteration.
func NewBudget(t bounds.Tag) *Budget {
	return &Budget{Tag: t, remaining: MaxSteps}
}

// Take consumes one step of the budget and reports whether the caller
// may proceed with another iteration. It never blocks (there is no
// resource to wait on here, only a step count).
func (b *Budget) Take() bool {
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}
