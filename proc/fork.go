package proc

import "gokernel/sched"

// Fork implements fork(2) (C10): clones the calling thread's process
// into a new child, returning the child so the caller can install its
// entry point (the trampoline step in spec.md §4.10 step 5 is the
// syscall layer's job — it owns trap-frame shape, which this package
// does not model) and make it runnable via AttachThread.
func Fork(t *Thread_t) *Process_t {
	parent := t.Proc

	tableMu.Lock()
	id := allocID()
	child := &Process_t{
		Id:     id,
		Parent: parent,
		State:  Running,
		WaitQ:  sched.NewQueue(),
	}
	table[id] = child
	parent.mu.Lock()
	parent.Children = append(parent.Children, child)
	parent.mu.Unlock()
	tableMu.Unlock()

	// steps 2-4: clone the address-space map, install shared objects or
	// interpose fresh shadow pairs, unmap and flush the parent.
	child.Vm = parent.Vm.Fork()

	// step 6: duplicate the fd table (ref'ing each file) and take a
	// fresh reference on the parent's cwd.
	child.Fd = parent.Fd.Fork()

	return child
}
