// Package pagetable simulates the page-table walk / page-insert / TLB
// flush collaborator contract spec.md §6 names for the page-fault
// handler and address-space map. Grounded on
// biscuit/src/vm/as.go's pmap_walk/Page_insert/Page_remove/Tlbshoot
// shape (a PTE_P/PTE_W/PTE_U/PTE_COW/PTE_D/PTE_A permission-bit style
// entry, walked and mutated through an opaque table handle), reworked
// from a real hardware page table into a map keyed by virtual page
// number — there is no MMU to program in a hosted Go process, and
// Tlbshoot's per-CPU IPI shootdown has no meaning without real CPUs
// (Non-goal: SMP), so Flush/FlushAll just record the fact an
// invalidation happened for the debug syscall's profile dump.
package pagetable

import "sync"

// Permission and state bits, named after the teacher's PTE_* constants.
const (
	P    = 1 << iota // present
	W                // writable
	U                // user-accessible
	COW              // copy-on-write: writable only after a fault
	D                // dirty
	A                // accessed
)

// PGSHIFT mirrors mem.PGSHIFT; kept local so this package does not
// import mem at all (Entry stores the physical page number as a plain
// int32).
const PGSHIFT = 12

// Entry is one page-table entry: a physical page number and its
// permission bits.
type Entry struct {
	Pa    int32
	Perms uint32
}

func vpn(va int) int { return va >> PGSHIFT }

// Table is a page table for one address space.
type Table struct {
	mu      sync.Mutex
	entries map[int]*Entry
	flushes int
}

// New returns an empty page table.
func New() *Table {
	return &Table{entries: make(map[int]*Entry)}
}

// Walk returns the entry for va, creating an unmapped placeholder entry
// with the given base permissions if create is true and none exists yet
// (mirroring pmap_walk's allocate-intermediate-levels-on-demand shape,
// collapsed here to a single map insert since there are no intermediate
// directory levels to allocate).
func (t *Table) Walk(va int, create bool, basePerms uint32) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := vpn(va)
	e, ok := t.entries[k]
	if ok {
		return e, true
	}
	if !create {
		return nil, false
	}
	e = &Entry{Pa: -1, Perms: basePerms}
	t.entries[k] = e
	return e, true
}

// Lookup returns the entry for va without creating one.
func (t *Table) Lookup(va int) (*Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[vpn(va)]
	return e, ok
}

// Insert maps pg at va with perms, returning the page that was mapped
// there before (if the entry was already present) so the caller can
// drop its reference. Mirrors Page_insert's overwrite-and-return-old-pa
// shape.
func (t *Table) Insert(va int, pg int32, perms uint32) (old int32, hadOld bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := vpn(va)
	if e, ok := t.entries[k]; ok && e.Perms&P != 0 {
		old, hadOld = e.Pa, true
	}
	t.entries[k] = &Entry{Pa: pg, Perms: perms | P}
	return old, hadOld
}

// Remove unmaps va, returning the page that was mapped there, if any.
func (t *Table) Remove(va int) (int32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := vpn(va)
	e, ok := t.entries[k]
	if !ok || e.Perms&P == 0 {
		return 0, false
	}
	delete(t.entries, k)
	return e.Pa, true
}

// Flush invalidates any cached translation for one page. There is no
// real TLB to shoot down; this only updates the diagnostic counter.
func (t *Table) Flush(va int) {
	t.mu.Lock()
	t.flushes++
	t.mu.Unlock()
}

// FlushAll invalidates the whole address space's translations.
func (t *Table) FlushAll() {
	t.mu.Lock()
	t.flushes += len(t.entries)
	t.mu.Unlock()
}

// Flushes reports the cumulative invalidation count, for the debug
// syscall's profile dump.
func (t *Table) Flushes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushes
}
