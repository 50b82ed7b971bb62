package mmobj

import (
	"gokernel/errno"
	"gokernel/mem"
)

// Shadow is a copy-on-write interposition object (C6): it shadows
// another object (shadowed, its parent in the fork chain) and caches a
// non-owning-in-spirit-but-ref-counted back-pointer to the chain's
// bottom object. Grounded on
// original_source/Homework/Kernel/vm/shadow.c's shadow_ref/shadow_put/
// shadow_lookuppage/shadow_fillpage/shadow_dirtypage/shadow_cleanpage.
//
// Both chain walks below are iterative, never recursive, per spec.md's
// "must be iterative" invariant — a long fork chain must not overflow
// the call stack.
type Shadow struct {
	Base
	shadowed Obj
	bottom   Obj
}

// NewShadow creates a shadow interposed in front of shadowed, with
// bottom cached as the chain's ultimate (anonymous) object. Both are
// ref'd; Put releases them when this shadow self-collects.
func NewShadow(pm *mem.Physmem_t, shadowed, bottom Obj) *Shadow {
	shadowed.Ref()
	bottom.Ref()
	return &Shadow{Base: newBase(pm), shadowed: shadowed, bottom: bottom}
}

// Shadowed reports the object this shadow interposes in front of.
func (s *Shadow) Shadowed() (Obj, bool) { return s.shadowed, true }

// Bottom reports the chain's cached root object.
func (s *Shadow) Bottom() Obj { return s.bottom }

// Put decrements the reference count. Once it reaches the resident-page
// count, every resident page is unpinned and freed, the object itself
// is retired, and its shadowed and bottom references are released.
func (s *Shadow) Put() {
	frames, dead := s.selfCollect()
	if !dead {
		return
	}
	s.freeFrames(frames)
	s.bottom.Put()
	s.shadowed.Put()
}

// Lookup finds the pagenum-th page. For a write, an existing private
// copy is reused, or pframeGet materializes one via Fill (which performs
// the actual copy-down), and Lookup then dirties it. For a read, the chain — starting
// at this object itself — is walked down through Shadowed() looking for
// whichever ancestor already has the page resident; if none does, the
// read is satisfied from the bottom object.
func (s *Shadow) Lookup(pagenum int, forwrite bool) (*Frame, errno.Err_t) {
	if forwrite {
		if f, ok := s.GetResident(pagenum); ok {
			return f, 0
		}
		f, err := s.pframeGet(pagenum, s.Fill)
		if err != 0 {
			return nil, err
		}
		f.SetDirty()
		return f, 0
	}

	var cur Obj = s
	for {
		next, ok := cur.Shadowed()
		if !ok {
			break
		}
		if f, ok2 := cur.GetResident(pagenum); ok2 {
			return f, 0
		}
		cur = next
	}
	return s.bottom.Lookup(pagenum, false)
}

// Fill materializes a private copy of pf's page: the chain below this
// object (starting at its immediate shadowed parent) is walked for the
// first ancestor with the page resident, and its contents are copied
// in; failing that, the bottom object's copy is used. The new frame is
// pinned once filled — it is the COW destination and must never be
// evicted out from under its owner.
func (s *Shadow) Fill(f *Frame) errno.Err_t {
	pg, err := s.phys.Refpg_new_nozero()
	if err != 0 {
		return err
	}
	f.Pa = pg

	var cur Obj = s
	for {
		next, ok := cur.Shadowed()
		if !ok {
			break
		}
		if src, ok2 := next.GetResident(f.Pagenum); ok2 {
			copy(s.phys.Bytes(f.Pa), s.phys.Bytes(src.Pa))
			f.Pin()
			return 0
		}
		cur = next
	}

	src, err := s.bottom.Lookup(f.Pagenum, false)
	if err != 0 {
		return err
	}
	copy(s.phys.Bytes(f.Pa), s.phys.Bytes(src.Pa))
	f.Pin()
	return 0
}

// Dirty marks f modified.
func (s *Shadow) Dirty(f *Frame) errno.Err_t {
	f.SetDirty()
	return 0
}

// Clean writes f's contents back to this object's own writable copy of
// the page (looking it up for write, creating one if needed) and clears
// the source frame's dirty bit.
func (s *Shadow) Clean(f *Frame) errno.Err_t {
	cf, err := s.Lookup(f.Pagenum, true)
	if err != 0 {
		return err
	}
	copy(s.phys.Bytes(cf.Pa), s.phys.Bytes(f.Pa))
	f.ClearDirty()
	return 0
}
