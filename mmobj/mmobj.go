// Package mmobj implements the memory-object protocol (C4): the common
// reference-counted, page-resident interface shared by anonymous objects
// (anon.go) and copy-on-write shadow objects (shadow.go).
//
// Grounded on original_source/Homework/Kernel/vm/{mmobj,anon,shadow}.c's
// pframe_t/mmobj_t split: a page frame is either absent, "busy" (being
// filled, not yet safe to hand out) or resident; an object's refcount
// dropping to exactly its resident-page count means it will never be
// looked up again and self-collects (unpins and frees every resident
// page, then itself). The teacher's vm package has no equivalent type —
// biscuit backs its COW chains directly with its own vm.Objref_t/pmap
// machinery — so this package is authored fresh from the collaborator
// contract spec.md §4 names, translating the C list-of-pframes shape into
// a Go map keyed by page number.
package mmobj

import (
	"sync"

	"gokernel/errno"
	"gokernel/mem"
)

// Frame is a single resident page of a memory object.
type Frame struct {
	Pagenum int
	Pa      mem.Pa_t

	busy   bool
	pinned bool
	dirty  bool
}

func (f *Frame) Busy() bool   { return f.busy }
func (f *Frame) Pinned() bool { return f.pinned }
func (f *Frame) Dirty() bool  { return f.dirty }

func (f *Frame) Pin() {
	if f.pinned {
		panic("mmobj: double pin")
	}
	f.pinned = true
}

func (f *Frame) Unpin() {
	if !f.pinned {
		panic("mmobj: unpin of unpinned frame")
	}
	f.pinned = false
}

func (f *Frame) SetDirty()   { f.dirty = true }
func (f *Frame) ClearDirty() { f.dirty = false }

// MarkBusy and ClearBusy let an Obj implementation outside this package
// (vfs's file-backed object, notably) drive the same busy-frame
// discipline pframeGet enforces internally for anon and shadow objects.
func (f *Frame) MarkBusy() {
	if f.busy {
		panic("mmobj: double mark-busy")
	}
	f.busy = true
}

func (f *Frame) ClearBusy() {
	if !f.busy {
		panic("mmobj: clear-busy of non-busy frame")
	}
	f.busy = false
}

// Obj is the memory-object protocol: every page-backed object (anonymous
// or shadow) implements it.
type Obj interface {
	// Ref increments the object's reference count.
	Ref()
	// Put decrements the reference count, self-collecting when it falls
	// to exactly the resident-page count.
	Put()
	// Lookup finds or creates the pagenum-th page, materializing a
	// private copy when forwrite is true and one does not yet exist.
	Lookup(pagenum int, forwrite bool) (*Frame, errno.Err_t)
	// Fill populates a freshly allocated, busy frame with this
	// object's data for its page number.
	Fill(f *Frame) errno.Err_t
	// Dirty marks a resident frame as holding modified data.
	Dirty(f *Frame) errno.Err_t
	// Clean writes a resident frame's data back to its object's
	// backing copy and clears its dirty bit.
	Clean(f *Frame) errno.Err_t
	// Nrespages reports the object's current resident-page count.
	Nrespages() int
	// GetResident returns the already-resident frame for pagenum, if
	// any, without creating one.
	GetResident(pagenum int) (*Frame, bool)
	// Shadowed returns the object this one shadows, if it is a shadow
	// object; ok is false for anonymous (chain-bottom) objects.
	Shadowed() (Obj, bool)
	// Bottom returns the chain's ultimate non-shadow object: itself for
	// anon/file-backed objects, or the cached bottom for a shadow — so
	// fork can share a chain's bottom between new shadows without
	// re-walking it (spec.md §4.6's cached-bottom rationale, extended
	// to the one other caller that needs the same pointer).
	Bottom() Obj
}

// Base is the shared bookkeeping embedded by Anon and Shadow: a refcount,
// the set of resident frames, and the physical-page allocator backing
// them.
type Base struct {
	mu       sync.Mutex
	phys     *mem.Physmem_t
	resident map[int]*Frame
	refcount int
}

func newBase(pm *mem.Physmem_t) Base {
	return Base{phys: pm, resident: make(map[int]*Frame), refcount: 1}
}

// Ref increments the reference count. Panics if the object is already
// dead, mirroring the KASSERT in anon_ref/shadow_ref.
func (b *Base) Ref() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refcount <= 0 {
		panic("mmobj: ref on dead object")
	}
	b.refcount++
}

// Nrespages reports the resident-page count.
func (b *Base) Nrespages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.resident)
}

// GetResident returns the frame for pagenum if one is already resident.
func (b *Base) GetResident(pagenum int) (*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, ok := b.resident[pagenum]
	return f, ok
}

// Shadowed is the Base default: not a shadow object.
func (b *Base) Shadowed() (Obj, bool) { return nil, false }

// pframeGet returns the resident frame for pagenum, creating and filling
// one via fill if it is not yet present. Grounded on pframe_get: a new
// frame is inserted in the busy state before fill runs (so a racing
// lookup would see it pending rather than missing), then marked not-busy
// once fill completes.
func (b *Base) pframeGet(pagenum int, fill func(*Frame) errno.Err_t) (*Frame, errno.Err_t) {
	b.mu.Lock()
	if f, ok := b.resident[pagenum]; ok {
		b.mu.Unlock()
		return f, 0
	}
	f := &Frame{Pagenum: pagenum, busy: true}
	b.resident[pagenum] = f
	b.mu.Unlock()

	if err := fill(f); err != 0 {
		b.mu.Lock()
		delete(b.resident, pagenum)
		b.mu.Unlock()
		return nil, err
	}

	b.mu.Lock()
	f.busy = false
	b.mu.Unlock()
	return f, 0
}

// selfCollect reports whether refcount-1 equals the resident-page count
// (the put-time condition under which an object will never be looked up
// again) and, if so, detaches and returns its resident frames while
// decrementing refcount to zero under the lock. The caller unpins and
// frees the returned frames, then puts any objects this one references,
// outside the lock.
func (b *Base) selfCollect() ([]*Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refcount <= 0 {
		panic("mmobj: put on dead object")
	}
	if b.refcount-1 != len(b.resident) {
		b.refcount--
		return nil, false
	}
	frames := make([]*Frame, 0, len(b.resident))
	for _, f := range b.resident {
		frames = append(frames, f)
	}
	b.resident = nil
	b.refcount--
	return frames, true
}

func (b *Base) freeFrames(frames []*Frame) {
	for _, f := range frames {
		if f.pinned {
			f.Unpin()
		}
		b.phys.Refdown(f.Pa)
	}
}
