package proc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gokernel/blockdev"
	"gokernel/errno"
	"gokernel/mem"
	"gokernel/proc"
	"gokernel/sched"
	"gokernel/vfs"
)

func newEnv(t *testing.T) (vfs.Vnode, *mem.Physmem_t) {
	t.Helper()
	disk := blockdev.NewMemDisk(64)
	root, _ := vfs.NewRoot(disk)
	return root, mem.NewPhysmem(64)
}

func noop(arg1, arg2 any) {}

// initProc holds the process the very first test below establishes as
// id 1 (init, the global orphan-adoption target). proc's process table
// is package-global, exactly like the teacher's, so every later test in
// this file parents its processes to initProc rather than nil, keeping
// id 0 (idle) and id 1 (init) meaningful for the lifetime of the whole
// test binary.
var initProc *proc.Process_t

func TestProcCreateAssignsSequentialIdsStartingAtIdleAndInit(t *testing.T) {
	root, phys := newEnv(t)

	idle := proc.ProcCreate(root, phys, nil)
	require.Equal(t, 0, idle.Id)

	initProc = proc.ProcCreate(root, phys, idle)
	require.Equal(t, 1, initProc.Id)

	child := proc.ProcCreate(root, phys, initProc)
	require.Equal(t, 2, child.Id)
	require.Same(t, initProc, child.Parent)
	require.Contains(t, initProc.Children, child)
}

func TestDoExitReparentsOrphansToInitAndWakesParent(t *testing.T) {
	root, phys := newEnv(t)
	grandparent := proc.ProcCreate(root, phys, initProc)
	orphan := proc.ProcCreate(root, phys, grandparent)
	th := proc.ThreadCreate(grandparent, noop, nil, nil)

	proc.DoExit(th, 7)

	require.Equal(t, proc.Dead, grandparent.State)
	require.Equal(t, 7, grandparent.ExitStatus)
	require.Empty(t, grandparent.Children)
	require.Same(t, initProc, orphan.Parent)
	require.Contains(t, initProc.Children, orphan)
}

func TestDoWaitpidReapsDeadChildAndRemovesFromTable(t *testing.T) {
	root, phys := newEnv(t)
	parent := proc.ProcCreate(root, phys, initProc)
	child := proc.ProcCreate(root, phys, parent)
	selfThread := proc.ThreadCreate(parent, noop, nil, nil)
	childThread := proc.ThreadCreate(child, noop, nil, nil)

	proc.DoExit(childThread, 3)

	pid, status, err := proc.DoWaitpid(selfThread, -1, 0)
	require.Zero(t, err)
	require.Equal(t, child.Id, pid)
	require.Equal(t, 3, status)
	require.Empty(t, parent.Children)
}

func TestDoWaitpidBlocksUntilMatchingChildExits(t *testing.T) {
	root, phys := newEnv(t)
	parent := proc.ProcCreate(root, phys, initProc)
	child := proc.ProcCreate(root, phys, parent)
	selfThread := proc.ThreadCreate(parent, noop, nil, nil)
	childThread := proc.ThreadCreate(child, noop, nil, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		proc.DoExit(childThread, 9)
	}()

	pid, status, err := proc.DoWaitpid(selfThread, child.Id, 0)
	require.Zero(t, err)
	require.Equal(t, child.Id, pid)
	require.Equal(t, 9, status)
}

func TestDoWaitpidNoMatchingChildIsECHILD(t *testing.T) {
	root, phys := newEnv(t)
	parent := proc.ProcCreate(root, phys, initProc)
	selfThread := proc.ThreadCreate(parent, noop, nil, nil)

	_, _, err := proc.DoWaitpid(selfThread, -1, 0)
	require.Equal(t, errno.ECHILD, err)
}

func TestDoWaitpidRejectsNonzeroOptions(t *testing.T) {
	root, phys := newEnv(t)
	parent := proc.ProcCreate(root, phys, initProc)
	selfThread := proc.ThreadCreate(parent, noop, nil, nil)

	_, _, err := proc.DoWaitpid(selfThread, -1, 1)
	require.Equal(t, errno.EINVAL, err)
}

func TestProcKillOnSelfIsEquivalentToDoExit(t *testing.T) {
	root, phys := newEnv(t)
	p := proc.ProcCreate(root, phys, initProc)
	th := proc.ThreadCreate(p, noop, nil, nil)

	proc.ProcKill(th, p, 5)

	require.Equal(t, proc.Dead, p.State)
	require.Equal(t, 5, p.ExitStatus)
}

func TestProcKillOnOtherProcessLatchesCancelOnItsThreads(t *testing.T) {
	root, phys := newEnv(t)
	target := proc.ProcCreate(root, phys, initProc)
	th := proc.ThreadCreate(target, noop, nil, nil)
	selfProc := proc.ProcCreate(root, phys, initProc)
	selfThread := proc.ThreadCreate(selfProc, noop, nil, nil)

	proc.ProcKill(selfThread, target, 1)

	q := sched.NewQueue()
	require.Equal(t, errno.EINTR, sched.CancellableSleepOn(&th.Thread_t, q),
		"a latched cancel fires on the thread's very next cancellable sleep")
}

func TestProcKillAllKillsProcessesNotParentedToIdle(t *testing.T) {
	root, phys := newEnv(t)
	self := proc.ProcCreate(root, phys, initProc)
	selfThread := proc.ThreadCreate(self, noop, nil, nil)
	victim := proc.ProcCreate(root, phys, initProc)
	vth := proc.ThreadCreate(victim, noop, nil, nil)

	proc.ProcKillAll(selfThread, 99)

	require.Equal(t, errno.EINTR, sched.CancellableSleepOn(&vth.Thread_t, sched.NewQueue()),
		"the victim's thread carries a latched cancel")
	require.Equal(t, proc.Dead, self.State,
		"the caller's own process is killed last since its parent is init, not idle")
}

func TestForkDuplicatesAddressSpaceAndFdTableUnderNewId(t *testing.T) {
	root, phys := newEnv(t)
	parent := proc.ProcCreate(root, phys, initProc)
	th := proc.ThreadCreate(parent, noop, nil, nil)

	child := proc.Fork(th)

	require.NotEqual(t, parent.Id, child.Id)
	require.Same(t, parent, child.Parent)
	require.Contains(t, parent.Children, child)
	require.NotSame(t, parent.Vm, child.Vm)
	require.NotSame(t, parent.Fd, child.Fd)
}

func TestAttachThreadAppendsAndMakesRunnable(t *testing.T) {
	root, phys := newEnv(t)
	p := proc.ProcCreate(root, phys, initProc)
	before := len(p.Threads)

	nt := proc.ThreadClone(proc.ThreadCreate(p, noop, nil, nil))
	proc.AttachThread(p, nt)

	require.Len(t, p.Threads, before+2)
	require.Same(t, p, nt.Proc)
}
