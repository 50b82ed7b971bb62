package mmobj

import (
	"gokernel/errno"
	"gokernel/mem"
)

// Anon is a zero-filled anonymous memory object (C5): the bottom of a
// vm-area's COW chain that has no backing file. Grounded on
// original_source/Homework/Kernel/vm/anon.c's anon_ref/anon_put/
// anon_lookuppage/anon_fillpage/anon_dirtypage/anon_cleanpage.
type Anon struct {
	Base
}

// NewAnon creates an anonymous object with refcount 1 and no resident
// pages.
func NewAnon(pm *mem.Physmem_t) *Anon {
	return &Anon{Base: newBase(pm)}
}

// Bottom reports itself: an anonymous object is always a chain's root.
func (a *Anon) Bottom() Obj { return a }

// Put decrements the reference count, freeing every resident page and
// the object itself once refcount has fallen to the resident-page count
// (anon_put's self-collect rule).
func (a *Anon) Put() {
	frames, dead := a.selfCollect()
	if dead {
		a.freeFrames(frames)
	}
}

// Lookup returns the resident frame for pagenum, filling it on first
// access. forwrite is irrelevant here: an anonymous object has no chain
// to copy from, so every access gets the same private page.
func (a *Anon) Lookup(pagenum int, forwrite bool) (*Frame, errno.Err_t) {
	return a.pframeGet(pagenum, a.Fill)
}

// Fill allocates a fresh, zero-filled physical page for f. Mirrors
// anon_fillpage: the frame must be busy and must not already be pinned.
func (a *Anon) Fill(f *Frame) errno.Err_t {
	if f.pinned {
		panic("mmobj: anon fill of pinned frame")
	}
	pg, err := a.phys.Refpg_new()
	if err != 0 {
		return err
	}
	f.Pa = pg
	f.Pin()
	return 0
}

// Dirty marks f modified.
func (a *Anon) Dirty(f *Frame) errno.Err_t {
	f.SetDirty()
	return 0
}

// Clean writes f back to its own backing page. An anonymous object's
// backing store is the page itself, so this is a no-op beyond clearing
// the dirty bit (anon_cleanpage's write-through-to-self).
func (a *Anon) Clean(f *Frame) errno.Err_t {
	f.ClearDirty()
	return 0
}
