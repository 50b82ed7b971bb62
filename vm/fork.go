package vm

import (
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/pagetable"
)

// Fork implements C10 steps 2-4: clone the area-list metadata, install
// shared objects or interpose fresh shadow pairs per area depending on
// each area's Shared flag, then unmap this (the parent's) user
// page-table range and flush so subsequent parent writes re-fault and
// COW-materialize against the new parent-side shadow. It returns the
// new child address space; the caller (proc.Fork) still owns attaching
// it to the child process.
func (vm *Vm_t) Fork() *Vm_t {
	vm.Lock()
	defer vm.Unlock()

	child := &Vm_t{Pmap: pagetable.New(), phys: vm.phys, brkMin: vm.brkMin}
	cloned := vm.Areas.Clone()
	parentAreas := vm.Areas.Areas()
	childAreas := cloned.Areas()

	for i, pa := range parentAreas {
		ca := childAreas[i]
		if pa.Shared {
			pa.Obj.Ref()
			ca.Obj = pa.Obj
			continue
		}
		bottom := pa.Obj.Bottom()
		parentShadow := mmobj.NewShadow(vm.phys, pa.Obj, bottom)
		childShadow := mmobj.NewShadow(vm.phys, pa.Obj, bottom)
		// The area's own reference on pa.Obj is superseded by
		// parentShadow's "shadowed" reference above; release it so the
		// two new shadows' four Refs (shadowed x2, bottom x2) are the
		// only references this fork adds, per spec.md §4.10.
		pa.Obj.Put()
		if pa == vm.brkArea {
			child.brkArea = ca
		}
		pa.Obj = parentShadow
		ca.Obj = childShadow
	}

	child.Areas = *cloned

	for _, pa := range parentAreas {
		for pn := pa.Start; pn < pa.End; pn++ {
			if old, had := vm.Pmap.Remove(Page(pn)); had {
				vm.phys.Refdown(mem.Pa_t(old))
			}
		}
	}
	vm.Pmap.FlushAll()

	return child
}
