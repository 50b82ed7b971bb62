package vm

import (
	"sync"

	"gokernel/errno"
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/pagetable"
)

// USERMIN and USERMAX bound the page numbers a user mapping may
// occupy — a stand-in for the teacher's hardware-defined user/kernel
// split, sized generously for this kernel's test scenarios rather than
// any real address-space layout.
const (
	USERMIN = 1
	USERMAX = 1 << 24
)

// DefaultBrkStart is the data/bss floor InitBrk is given for every
// process this kernel creates. There is no ELF loader (spec's
// Non-goal) to supply a real one from a program's data/bss segment, so
// every process gets the same fixed placeholder floor instead.
const DefaultBrkStart = USERMIN << mem.PGSHIFT

// Vm_t is one process's address space: the area list and the
// page-table simulation backing it, guarded by a single mutex exactly
// like the teacher's Vm_t guards Vmregion/Pmap/P_pmap together.
type Vm_t struct {
	mu      sync.Mutex
	Areas   Vmregion_t
	Pmap    *pagetable.Table
	phys    *mem.Physmem_t
	brkArea *Area
	brkMin  int
}

// NewVm returns an empty address space backed by phys.
func NewVm(phys *mem.Physmem_t) *Vm_t {
	return &Vm_t{Pmap: pagetable.New(), phys: phys}
}

// Lock and Unlock serialize area-list and page-table mutation, mirroring
// the teacher's Lock_pmap/Unlock_pmap pairing around every pmap touch.
func (vm *Vm_t) Lock()   { vm.mu.Lock() }
func (vm *Vm_t) Unlock() { vm.mu.Unlock() }

// AddAnon inserts a fresh anonymous mapping at [start, start+npages).
func (vm *Vm_t) AddAnon(start, npages int, writable bool) *Area {
	a := &Area{Start: start, End: start + npages, Writable: writable, Obj: mmobj.NewAnon(vm.phys)}
	vm.Areas.Insert(a)
	return a
}

// Page returns the byte virtual address of page vpn.
func Page(vpn int) int { return vpn << mem.PGSHIFT }

// Vpn returns the page number containing the byte address va.
func Vpn(va int) int { return va >> mem.PGSHIFT }

// PageOff returns the offset of va within its page.
func PageOff(va int) int { return va & (mem.PGSIZE - 1) }

// Read copies count bytes starting at the user virtual address vaddr
// into dst, per spec.md §4.7's area-by-area, page-by-page walk. No
// permission check is performed (the spec's C7.read/write are raw
// memory-object accessors, distinct from the page-fault path's
// protection enforcement).
func (vm *Vm_t) Read(vaddr int, dst []byte) errno.Err_t {
	return vm.xfer(vaddr, dst, false)
}

// Write copies len(src) bytes from src into the user virtual address
// vaddr, dirtying every touched frame.
func (vm *Vm_t) Write(vaddr int, src []byte) errno.Err_t {
	return vm.xfer(vaddr, src, true)
}

func (vm *Vm_t) xfer(vaddr int, buf []byte, write bool) errno.Err_t {
	vm.Lock()
	defer vm.Unlock()
	off := 0
	for off < len(buf) {
		va := vaddr + off
		vpn := Vpn(va)
		a, ok := vm.Areas.Lookup(vpn)
		if !ok {
			return errno.EFAULT
		}
		pageoff := PageOff(va)
		n := mem.PGSIZE - pageoff
		if rem := len(buf) - off; n > rem {
			n = rem
		}
		objpage := a.Off + (vpn - a.Start)
		f, err := a.Obj.Lookup(objpage, write)
		if err != 0 {
			return err
		}
		bytes := vm.phys.Bytes(f.Pa)
		if write {
			copy(bytes[pageoff:pageoff+n], buf[off:off+n])
			a.Obj.Dirty(f)
		} else {
			copy(buf[off:off+n], bytes[pageoff:pageoff+n])
		}
		off += n
	}
	return 0
}

// Phys returns the physical-page allocator backing this address
// space, for callers (the debug syscall) that report allocator-wide
// diagnostics rather than touch any one mapping.
func (vm *Vm_t) Phys() *mem.Physmem_t { return vm.phys }

// Destroy puts every area's backing object and discards the page
// table, for process-exit teardown.
func (vm *Vm_t) Destroy() {
	vm.Lock()
	defer vm.Unlock()
	vm.Areas.Destroy()
	vm.Pmap.FlushAll()
}
