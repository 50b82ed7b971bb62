// Package vm implements a process's address-space map (C7), its
// page-fault handler (C8), and the brk/mmap/munmap syscalls built on
// top of them (C9).
//
// Grounded on the teacher's vm.Vm_t (as.go): its page table (a single
// Pmap here, no P_pmap) and the Lock_pmap/Unlock_pmap discipline around
// every page-table mutation are kept and adapted. Sys_pgfault's guard
// page and COW single-owner fast path are not: Pgfault checks the area
// and write permission, then leaves filling and copy-on-write to the
// area's memory object. as.go calls
// through to a Vmregion_t/Vminfo_t pair that was pruned from the
// retrieved copy of the teacher repo (only their call sites survive in
// as.go); the area-list type here is authored fresh from spec.md
// §4.7's description of that same role — a sorted, non-overlapping
// list of areas with insert/find_range/lookup/clone/remove — rather
// than reconstructed guesswork of the teacher's internals.
package vm

import (
	"gokernel/mmobj"
)

// Dir selects the search direction for FindRange.
type Dir int

const (
	LOHI Dir = iota
	HILO
)

// Area is one mapped region of a process's address space: a page-number
// range, a page offset into a backing memory object, and the
// protection/sharing flags spec.md §4.7 calls metadata.
type Area struct {
	Start, End int // page numbers; [Start, End)
	Off        int // page offset into Obj
	Writable   bool
	Shared     bool
	Obj        mmobj.Obj
}

func (a *Area) Pages() int { return a.End - a.Start }

// Vmregion_t is the sorted, non-overlapping list of areas making up one
// address space's user mappings.
type Vmregion_t struct {
	areas []*Area
}

// Insert places a into the list in start-order. a must be unattached,
// non-empty, and not overlap an existing area.
func (r *Vmregion_t) Insert(a *Area) {
	if a.End <= a.Start {
		panic("vm: empty area")
	}
	i := 0
	for i < len(r.areas) && r.areas[i].Start < a.Start {
		i++
	}
	r.areas = append(r.areas, nil)
	copy(r.areas[i+1:], r.areas[i:])
	r.areas[i] = a
}

// Lookup returns the area containing page vpn, if any.
func (r *Vmregion_t) Lookup(vpn int) (*Area, bool) {
	for _, a := range r.areas {
		if vpn >= a.Start && vpn < a.End {
			return a, true
		}
	}
	return nil, false
}

// IsRangeEmpty reports whether no area overlaps [start, start+npages).
func (r *Vmregion_t) IsRangeEmpty(start, npages int) bool {
	end := start + npages
	for _, a := range r.areas {
		if a.Start < end && start < a.End {
			return false
		}
	}
	return true
}

// FindRange first-fit scans for a gap of npages pages between umin and
// umax, searching from umax downward when dir is HILO or from umin
// upward when dir is LOHI. It returns the starting page number, or -1
// if no gap of that size exists.
func (r *Vmregion_t) FindRange(umin, umax, npages int, dir Dir) int {
	// boundaries: [umin, areas[0].Start), gaps between consecutive
	// areas, and [areas[last].End, umax).
	type gap struct{ lo, hi int }
	var gaps []gap
	prev := umin
	for _, a := range r.areas {
		if a.Start > prev {
			gaps = append(gaps, gap{prev, a.Start})
		}
		if a.End > prev {
			prev = a.End
		}
	}
	if umax > prev {
		gaps = append(gaps, gap{prev, umax})
	}

	try := func(g gap) (int, bool) {
		if g.hi-g.lo < npages {
			return 0, false
		}
		return g.lo, true
	}

	if dir == LOHI {
		for _, g := range gaps {
			if pn, ok := try(g); ok {
				return pn
			}
		}
		return -1
	}
	for i := len(gaps) - 1; i >= 0; i-- {
		g := gaps[i]
		if g.hi-g.lo < npages {
			continue
		}
		return g.hi - npages
	}
	return -1
}

// Clone returns a new region list with fresh areas copying every
// area's start/end/flags/off but Obj left nil; fork's job is to
// reinstall backing objects per spec.md §4.7.
func (r *Vmregion_t) Clone() *Vmregion_t {
	nr := &Vmregion_t{areas: make([]*Area, len(r.areas))}
	for i, a := range r.areas {
		na := *a
		na.Obj = nil
		nr.areas[i] = &na
	}
	return nr
}

// Areas returns the areas in start order. Callers must not mutate the
// returned slice's backing array.
func (r *Vmregion_t) Areas() []*Area { return r.areas }

// Remove unmaps [lopage, lopage+npages), splitting, shortening, or
// deleting areas as needed, per spec.md §4.7's four overlap cases.
// Callers are responsible for flushing the TLB and unmapping the
// corresponding page-table range afterward.
func (r *Vmregion_t) Remove(lopage, npages int) {
	lo, hi := lopage, lopage+npages
	var kept []*Area
	for _, a := range r.areas {
		switch {
		case a.End <= lo || a.Start >= hi:
			// no overlap
			kept = append(kept, a)
		case a.Start >= lo && a.End <= hi:
			// full cover: drop it
			a.Obj.Put()
		case a.Start < lo && a.End > hi:
			// strict subset of the removed range: split into two
			right := &Area{
				Start: hi, End: a.End,
				Off:      a.Off + (hi - a.Start),
				Writable: a.Writable, Shared: a.Shared, Obj: a.Obj,
			}
			a.Obj.Ref()
			a.End = lo
			kept = append(kept, a, right)
		case a.Start < lo:
			// right-overlap: shorten end
			a.End = lo
			kept = append(kept, a)
		default:
			// left-overlap: advance start, adjust offset
			a.Off += hi - a.Start
			a.Start = hi
			kept = append(kept, a)
		}
	}
	r.areas = kept
}

// Destroy puts every area's backing object and empties the list, for
// address-space teardown at process exit.
func (r *Vmregion_t) Destroy() {
	for _, a := range r.areas {
		a.Obj.Put()
	}
	r.areas = nil
}
