package vfs

import (
	"sync"

	"gokernel/errno"
	"gokernel/mem"
	"gokernel/mmobj"
)

// FileObj is the memory object a file-backed mapping's pages come from
// (the bottom object of a PRIVATE file mapping's shadow chain, or the
// object a SHARED mapping maps directly). It implements mmobj.Obj
// itself rather than embedding mmobj.Base, since Base's busy-frame
// bookkeeping is package-private; FileObj drives the exported
// MarkBusy/ClearBusy pair instead, demonstrating the same pattern
// anon/shadow use internally, from outside the mmobj package.
type FileObj struct {
	phys *mem.Physmem_t
	file *File

	mu       sync.Mutex
	refcount int
	resident map[int]*mmobj.Frame
}

// NewFileObj returns a file-backed object with refcount 1, taking a
// reference on file.
func NewFileObj(phys *mem.Physmem_t, file *File) *FileObj {
	file.Ref()
	return &FileObj{phys: phys, file: file, refcount: 1, resident: make(map[int]*mmobj.Frame)}
}

func (fo *FileObj) Ref() {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	if fo.refcount <= 0 {
		panic("vfs: ref on dead file object")
	}
	fo.refcount++
}

func (fo *FileObj) Nrespages() int {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	return len(fo.resident)
}

func (fo *FileObj) GetResident(pagenum int) (*mmobj.Frame, bool) {
	fo.mu.Lock()
	defer fo.mu.Unlock()
	f, ok := fo.resident[pagenum]
	return f, ok
}

func (fo *FileObj) Shadowed() (mmobj.Obj, bool) { return nil, false }

// Bottom reports itself: a file-backed object is always a chain's root.
func (fo *FileObj) Bottom() mmobj.Obj { return fo }

// Put applies the self-collect rule (spec.md §4.4): once refcount falls
// to the resident-page count, every resident page is unpinned and
// freed, and the underlying file's reference is released.
func (fo *FileObj) Put() {
	fo.mu.Lock()
	if fo.refcount <= 0 {
		panic("vfs: put on dead file object")
	}
	if fo.refcount-1 != len(fo.resident) {
		fo.refcount--
		fo.mu.Unlock()
		return
	}
	frames := fo.resident
	fo.resident = nil
	fo.refcount--
	fo.mu.Unlock()

	for _, f := range frames {
		if f.Pinned() {
			f.Unpin()
		}
		fo.phys.Refdown(f.Pa)
	}
	fo.file.Put()
}

func (fo *FileObj) Lookup(pagenum int, forwrite bool) (*mmobj.Frame, errno.Err_t) {
	fo.mu.Lock()
	if f, ok := fo.resident[pagenum]; ok {
		fo.mu.Unlock()
		if forwrite {
			f.SetDirty()
		}
		return f, 0
	}
	f := &mmobj.Frame{Pagenum: pagenum}
	f.MarkBusy()
	fo.resident[pagenum] = f
	fo.mu.Unlock()

	if err := fo.Fill(f); err != 0 {
		fo.mu.Lock()
		delete(fo.resident, pagenum)
		fo.mu.Unlock()
		return nil, err
	}
	f.ClearBusy()
	if forwrite {
		f.SetDirty()
	}
	return f, 0
}

// Fill reads one page's worth of the file's content starting at its
// page-aligned offset; bytes past end-of-file stay zero (Refpg_new
// zero-fills the frame before the short read writes over its prefix).
func (fo *FileObj) Fill(f *mmobj.Frame) errno.Err_t {
	pg, err := fo.phys.Refpg_new()
	if err != 0 {
		return err
	}
	f.Pa = pg
	off := int64(f.Pagenum) * mem.PGSIZE
	fo.file.Read(off, fo.phys.Bytes(pg))
	f.Pin()
	return 0
}

func (fo *FileObj) Dirty(f *mmobj.Frame) errno.Err_t {
	f.SetDirty()
	return 0
}

// Clean writes a dirtied frame's bytes back to the file at its
// page-aligned offset and clears the dirty bit.
func (fo *FileObj) Clean(f *mmobj.Frame) errno.Err_t {
	off := int64(f.Pagenum) * mem.PGSIZE
	if _, err := fo.file.Write(off, fo.phys.Bytes(f.Pa)); err != 0 {
		return err
	}
	f.ClearDirty()
	return 0
}
