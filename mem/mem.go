// Package mem implements the physical page allocator (§6's page_alloc
// contract) and per-frame reference counting that backs the memory
// object protocol in mmobj.
//
// Grounded on the teacher's mem.Physmem_t: a slice of per-page
// bookkeeping records plus a free list, with atomic refcounts. The
// teacher's per-CPU free lists and runtime.Get_phys()/Dmap() direct-map
// access are dropped (spec.md §1 excludes SMP, and this module has no
// real physical address space to map); a single free list over a
// []byte-backed arena replaces them.
package mem

import (
	"sync"
	"sync/atomic"

	"gokernel/errno"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE = 1 << PGSHIFT

// Pa_t is an opaque physical page number (an index into the arena, not
// a real address — there is no hardware to address here).
type Pa_t int32

// NoPage is the "no page" sentinel physical page number. It is -1, not
// the zero value, since page 0 is a valid page.
const NoPage Pa_t = -1

type frame struct {
	refcnt int32
	bytes  [PGSIZE]uint8
}

// Physmem_t is the global physical memory allocator.
type Physmem_t struct {
	mu      sync.Mutex
	frames  []frame
	freelst []Pa_t
}

// NewPhysmem allocates an arena of npages physical pages, all free.
func NewPhysmem(npages int) *Physmem_t {
	p := &Physmem_t{
		frames:  make([]frame, npages),
		freelst: make([]Pa_t, npages),
	}
	for i := range p.freelst {
		p.freelst[i] = Pa_t(npages - 1 - i)
	}
	return p
}

// Refpg_new allocates a zero-filled page with refcount 1. It returns
// ENOMEM if the arena is exhausted.
func (p *Physmem_t) Refpg_new() (Pa_t, errno.Err_t) {
	pg, err := p.refpg_new_nozero()
	if err != 0 {
		return NoPage, err
	}
	f := &p.frames[pg]
	for i := range f.bytes {
		f.bytes[i] = 0
	}
	return pg, 0
}

// Refpg_new_nozero allocates an uninitialized page with refcount 1.
func (p *Physmem_t) Refpg_new_nozero() (Pa_t, errno.Err_t) {
	return p.refpg_new_nozero()
}

func (p *Physmem_t) refpg_new_nozero() (Pa_t, errno.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.freelst) == 0 {
		return NoPage, errno.ENOMEM
	}
	n := len(p.freelst) - 1
	pg := p.freelst[n]
	p.freelst = p.freelst[:n]
	atomic.StoreInt32(&p.frames[pg].refcnt, 1)
	return pg, 0
}

// Refup increments a page's reference count.
func (p *Physmem_t) Refup(pg Pa_t) {
	c := atomic.AddInt32(&p.frames[pg].refcnt, 1)
	if c <= 1 {
		panic("refup on dead page")
	}
}

// Refcnt reports a page's current reference count.
func (p *Physmem_t) Refcnt(pg Pa_t) int {
	return int(atomic.LoadInt32(&p.frames[pg].refcnt))
}

// Refdown decrements a page's reference count, freeing it and
// returning true when it reaches zero.
func (p *Physmem_t) Refdown(pg Pa_t) bool {
	c := atomic.AddInt32(&p.frames[pg].refcnt, -1)
	if c < 0 {
		panic("refdown past zero")
	}
	if c == 0 {
		p.mu.Lock()
		p.freelst = append(p.freelst, pg)
		p.mu.Unlock()
		return true
	}
	return false
}

// Bytes returns the mutable byte contents of a page.
func (p *Physmem_t) Bytes(pg Pa_t) []uint8 {
	return p.frames[pg].bytes[:]
}

// Free reports the number of unallocated pages, for diagnostics (the
// debug syscall's profile dump).
func (p *Physmem_t) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.freelst)
}

// Total reports the arena's total page count.
func (p *Physmem_t) Total() int {
	return len(p.frames)
}
