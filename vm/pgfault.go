package vm

import (
	"gokernel/errno"
	"gokernel/mem"
	"gokernel/pagetable"
)

// Cause identifies why a page fault was raised.
type Cause int

const (
	FaultRead Cause = iota
	FaultWrite
	FaultExec
)

// Pgfault resolves a user-mode page fault at vaddr, per spec.md §4.8's
// five-step procedure. ok is false when the process must be
// terminated (no area at that address, or a missing capability for
// cause); err distinguishes EFAULT (protection/no-area) from ENOMEM
// (allocation failure during fault servicing).
func (vm *Vm_t) Pgfault(vaddr int, cause Cause) (ok bool, err errno.Err_t) {
	vm.Lock()
	defer vm.Unlock()

	vpn := Vpn(vaddr)
	a, found := vm.Areas.Lookup(vpn)
	if !found {
		return false, errno.EFAULT
	}

	switch cause {
	case FaultWrite:
		if !a.Writable {
			return false, errno.EFAULT
		}
	case FaultExec, FaultRead:
		// every area is at least readable/executable in this kernel;
		// spec.md §4.8 excludes NX-style exec enforcement.
	}

	forwrite := cause == FaultWrite
	objpage := a.Off + (vpn - a.Start)
	f, lerr := a.Obj.Lookup(objpage, forwrite)
	if lerr != 0 {
		return false, lerr
	}

	if forwrite {
		a.Obj.Dirty(f)
	}

	perms := uint32(pagetable.P | pagetable.U)
	if a.Writable {
		perms |= pagetable.W
	}
	va := Page(vpn)
	vm.phys.Refup(f.Pa)
	old, had := vm.Pmap.Insert(va, int32(f.Pa), perms)
	if had && mem.Pa_t(old) != f.Pa {
		vm.phys.Refdown(mem.Pa_t(old))
	}
	vm.Pmap.Flush(va)
	return true, 0
}
