package vm

import (
	"golang.org/x/sys/unix"

	"gokernel/errno"
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/vfs"
)

// InitBrk installs the data/bss area starting at startva as
// non-empty, per spec.md §4.9's "the data/bss area starting at
// start_brk is guaranteed non-empty".
func (vm *Vm_t) InitBrk(startva, initlen int) {
	vm.Lock()
	defer vm.Unlock()
	npages := (initlen + mem.PGSIZE - 1) >> mem.PGSHIFT
	if npages == 0 {
		npages = 1
	}
	a := &Area{Start: Vpn(startva), End: Vpn(startva) + npages, Writable: true, Obj: mmobj.NewAnon(vm.phys)}
	vm.Areas.Insert(a)
	vm.brkArea = a
	vm.brkMin = startva
}

// Brk implements the brk(2) syscall (C9): addr == 0 reports the
// current break; otherwise the data/bss area's end is adjusted to
// cover addr, bounded below by start_brk (never modified once set by
// InitBrk, and itself always valid: "brk(start_brk) shrinks the heap
// to empty") and above by the next mapping's start (or the user-space
// ceiling). A process with no brk area at all (InitBrk never called)
// has no heap to adjust.
func (vm *Vm_t) Brk(addr int) (int, errno.Err_t) {
	vm.Lock()
	defer vm.Unlock()
	if vm.brkArea == nil {
		return 0, errno.ENOMEM
	}
	a := vm.brkArea
	if addr == 0 {
		return Page(a.End), 0
	}
	if addr < vm.brkMin {
		return 0, errno.ENOMEM
	}

	upper := USERMAX
	for _, other := range vm.Areas.Areas() {
		if other != a && other.Start >= a.End && other.Start < upper {
			upper = other.Start
		}
	}

	newend := Vpn(addr + mem.PGSIZE - 1)
	if newend > upper {
		return 0, errno.ENOMEM
	}

	if newend < a.End {
		for pn := newend; pn < a.End; pn++ {
			if old, had := vm.Pmap.Remove(Page(pn)); had {
				vm.phys.Refdown(mem.Pa_t(old))
			}
		}
		vm.Pmap.FlushAll()
		a.End = newend
		return Page(a.End), 0
	}
	if newend > a.End {
		if !vm.Areas.IsRangeEmpty(a.End, newend-a.End) {
			return 0, errno.ENOMEM
		}
		a.End = newend
	}
	return Page(a.End), 0
}

// Mmap implements mmap(2) (C9). When file is nil the mapping is
// anonymous; otherwise file.Mmap supplies the backing object. addr is
// a page-aligned byte address (0 means "anywhere"). A nonzero addr
// whose range is already mapped fails with EINVAL unless MAP_FIXED is
// set, in which case the mappings there are removed first.
func (vm *Vm_t) Mmap(addr, length, prot, flags int, file vfs.Vnode, off int) (int, errno.Err_t) {
	if length <= 0 {
		return 0, errno.EINVAL
	}
	if off%mem.PGSIZE != 0 {
		return 0, errno.EINVAL
	}
	if addr%mem.PGSIZE != 0 {
		return 0, errno.EINVAL
	}
	shared := flags&unix.MAP_SHARED != 0
	private := flags&unix.MAP_PRIVATE != 0
	if shared == private {
		return 0, errno.EINVAL
	}
	fixed := flags&unix.MAP_FIXED != 0
	if fixed && addr == 0 {
		return 0, errno.EINVAL
	}
	if file == nil && flags&unix.MAP_ANON == 0 {
		return 0, errno.EINVAL
	}
	writable := prot&unix.PROT_WRITE != 0
	if shared && writable && file != nil {
		// a genuine writable-shared file mapping additionally requires
		// the backing fd have been opened for writing; the syscall
		// layer (sysMmap) makes that check, since it holds the
		// OpenFile's mode bits this package does not see.
	}

	npages := (length + mem.PGSIZE - 1) >> mem.PGSHIFT

	vm.Lock()
	defer vm.Unlock()

	lopage := Vpn(addr)
	if lopage == 0 {
		dir := LOHI
		lopage = vm.Areas.FindRange(USERMIN, USERMAX, npages, dir)
		if lopage == -1 {
			return 0, errno.ENOMEM
		}
	} else if !vm.Areas.IsRangeEmpty(lopage, npages) {
		if !fixed {
			return 0, errno.EINVAL
		}
		for pn := lopage; pn < lopage+npages; pn++ {
			if old, had := vm.Pmap.Remove(Page(pn)); had {
				vm.phys.Refdown(mem.Pa_t(old))
			}
		}
		vm.Areas.Remove(lopage, npages)
	}

	var obj mmobj.Obj
	var baseOff int
	if file == nil {
		obj = mmobj.NewAnon(vm.phys)
	} else {
		fo, ferr := file.Mmap(vm.phys)
		if ferr != 0 {
			return 0, ferr
		}
		baseOff = off >> mem.PGSHIFT
		if private {
			shadow := mmobj.NewShadow(vm.phys, fo, fo.Bottom())
			fo.Put()
			obj = shadow
		} else {
			obj = fo
		}
	}

	a := &Area{Start: lopage, End: lopage + npages, Off: baseOff, Writable: writable, Shared: shared, Obj: obj}
	vm.Areas.Insert(a)
	vm.Pmap.FlushAll()
	return Page(lopage), 0
}

// Munmap implements munmap(2) (C9).
func (vm *Vm_t) Munmap(addr, length int) errno.Err_t {
	if length <= 0 || addr%mem.PGSIZE != 0 {
		return errno.EINVAL
	}
	npages := (length + mem.PGSIZE - 1) >> mem.PGSHIFT

	vm.Lock()
	defer vm.Unlock()
	lopage := Vpn(addr)
	for pn := lopage; pn < lopage+npages; pn++ {
		if old, had := vm.Pmap.Remove(Page(pn)); had {
			vm.phys.Refdown(mem.Pa_t(old))
		}
	}
	vm.Areas.Remove(lopage, npages)
	vm.Pmap.FlushAll()
	return 0
}
