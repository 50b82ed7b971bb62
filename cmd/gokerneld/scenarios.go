package main

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"gokernel/errno"
	"gokernel/proc"
	"gokernel/sched"
	"gokernel/syscall"
	"gokernel/vm"
)

// scenario is one named, self-contained end-to-end demonstration. Each
// boots its own kernel instance so scenarios never interfere with one
// another.
type scenario struct {
	name string
	desc string
	run  func() error
}

var scenarios = []scenario{
	{"fork-cow", "fork COW: child and parent see independent copies of a written page", scenarioForkCOW},
	{"pipe", "pipe round-trip: write on the write end, read back on the read end", scenarioPipe},
	{"dirs", "mkdir/rmdir: NOTEMPTY until the child directory is removed first", scenarioDirs},
	{"file-io", "open O_CREAT|O_RDWR, write, lseek, read back", scenarioFileIO},
	{"waitpid", "fork three children, reap them in actual exit order", scenarioWaitpid},
	{"cancel", "a cancellably-sleeping thread wakes with EINTR when cancelled", scenarioCancel},
}

// runScenario looks up a scenario by name and runs it.
func runScenario(name string) error {
	for _, s := range scenarios {
		if s.name == name {
			fmt.Printf("=== %s: %s ===\n", s.name, s.desc)
			return s.run()
		}
	}
	return fmt.Errorf("no such scenario %q", name)
}

const pageVA = 0x10000000

// scenarioForkCOW implements spec.md §8 end-to-end scenario 1: the
// parent writes 0xAA to a page, forks, and both sides observe the
// copy-on-write split correctly.
func scenarioForkCOW() error {
	k := boot()
	pt := driverThread(k.init)

	k.init.Vm.Lock()
	k.init.Vm.AddAnon(vm.Vpn(pageVA), 1, true)
	k.init.Vm.Unlock()

	page := make([]byte, 1)
	page[0] = 0xAA
	if err := k.init.Vm.Write(pageVA, page); err != 0 {
		return fmt.Errorf("parent write: %v", err)
	}

	child := proc.Fork(pt)
	ct := proc.ThreadClone(pt)
	proc.AttachThread(child, ct)

	var buf [1]byte
	if err := child.Vm.Read(pageVA, buf[:]); err != 0 {
		return fmt.Errorf("child read before write: %v", err)
	}
	report("child sees pre-fork value", int64(buf[0]), nil)

	if err := child.Vm.Write(pageVA, []byte{0xBB}); err != 0 {
		return fmt.Errorf("child write: %v", err)
	}

	var pbuf [1]byte
	k.init.Vm.Read(pageVA, pbuf[:])
	report("parent still sees pre-fork value", int64(pbuf[0]), nil)

	var cbuf [1]byte
	child.Vm.Read(pageVA, cbuf[:])
	report("child sees its own write", int64(cbuf[0]), nil)

	if pbuf[0] != 0xAA || cbuf[0] != 0xBB {
		return fmt.Errorf("COW violated: parent=%x child=%x", pbuf[0], cbuf[0])
	}
	return nil
}

// scenarioPipe implements scenario 2.
func scenarioPipe() error {
	k := boot()
	t := driverThread(k.init)

	k.init.Vm.Lock()
	k.init.Vm.AddAnon(vm.Vpn(pageVA), 1, true)
	k.init.Vm.Unlock()

	res := syscall.Dispatch(t, syscall.SysPipe, [6]int64{pageVA})
	if res.Err != 0 {
		return fmt.Errorf("pipe: %v", res.Err)
	}
	var raw [8]byte
	k.init.Vm.Read(pageVA, raw[:])
	rfd := int64(binary.LittleEndian.Uint32(raw[0:4]))
	wfd := int64(binary.LittleEndian.Uint32(raw[4:8]))

	const msgVA = pageVA + 0x1000
	k.init.Vm.Lock()
	k.init.Vm.AddAnon(vm.Vpn(msgVA), 1, true)
	k.init.Vm.Unlock()
	msg := "hello"
	k.init.Vm.Write(msgVA, []byte(msg))

	wres := syscall.Dispatch(t, syscall.SysWrite, [6]int64{wfd, msgVA, int64(len(msg))})
	if wres.Err != 0 {
		return fmt.Errorf("write: %v", wres.Err)
	}
	report("write", wres.Value, nil)

	const outVA = msgVA + 0x1000
	k.init.Vm.Lock()
	k.init.Vm.AddAnon(vm.Vpn(outVA), 1, true)
	k.init.Vm.Unlock()
	rres := syscall.Dispatch(t, syscall.SysRead, [6]int64{rfd, outVA, int64(len(msg))})
	if rres.Err != 0 {
		return fmt.Errorf("read: %v", rres.Err)
	}
	var out [5]byte
	k.init.Vm.Read(outVA, out[:])
	report("read", rres.Value, nil)
	if string(out[:]) != msg || rres.Value != int64(len(msg)) {
		return fmt.Errorf("pipe round-trip mismatch: got %q", out)
	}
	return nil
}

// writePath copies path (NUL-terminated) into a freshly-backed page at
// va and returns its length, NUL included, for syscalls taking a path
// argument.
func writePath(p *proc.Process_t, va int, path string) int {
	p.Vm.Lock()
	p.Vm.AddAnon(vm.Vpn(va), 1, true)
	p.Vm.Unlock()
	b := append([]byte(path), 0)
	p.Vm.Write(va, b)
	return len(b)
}

// scenarioDirs implements scenario 3.
func scenarioDirs() error {
	k := boot()
	t := driverThread(k.init)

	aVA, bVA := pageVA, pageVA+0x1000
	aLen := writePath(k.init, aVA, "/a")
	bLen := writePath(k.init, bVA, "/a/b")

	if r := syscall.Dispatch(t, syscall.SysMkdir, [6]int64{int64(aVA), int64(aLen)}); r.Err != 0 {
		return fmt.Errorf("mkdir /a: %v", r.Err)
	}
	if r := syscall.Dispatch(t, syscall.SysMkdir, [6]int64{int64(bVA), int64(bLen)}); r.Err != 0 {
		return fmt.Errorf("mkdir /a/b: %v", r.Err)
	}
	r := syscall.Dispatch(t, syscall.SysRmdir, [6]int64{int64(aVA), int64(aLen)})
	report("rmdir /a (expect ENOTEMPTY)", r.Value, nil)
	if r.Err != errno.ENOTEMPTY {
		return fmt.Errorf("expected ENOTEMPTY, got %v", r.Err)
	}

	if r := syscall.Dispatch(t, syscall.SysRmdir, [6]int64{int64(bVA), int64(bLen)}); r.Err != 0 {
		return fmt.Errorf("rmdir /a/b: %v", r.Err)
	}
	if r := syscall.Dispatch(t, syscall.SysRmdir, [6]int64{int64(aVA), int64(aLen)}); r.Err != 0 {
		return fmt.Errorf("rmdir /a: %v", r.Err)
	}
	fmt.Println("both rmdirs succeeded once /a/b was removed first")
	return nil
}

// scenarioFileIO implements scenario 4.
func scenarioFileIO() error {
	k := boot()
	t := driverThread(k.init)

	pathVA := pageVA
	pathLen := writePath(k.init, pathVA, "/f")

	flags := int64(unix.O_CREAT | unix.O_RDWR)
	or := syscall.Dispatch(t, syscall.SysOpen, [6]int64{int64(pathVA), int64(pathLen), flags})
	if or.Err != 0 {
		return fmt.Errorf("open: %v", or.Err)
	}
	fdn := or.Value
	report("open", fdn, nil)

	bufVA := pathVA + 0x1000
	k.init.Vm.Lock()
	k.init.Vm.AddAnon(vm.Vpn(bufVA), 1, true)
	k.init.Vm.Unlock()
	k.init.Vm.Write(bufVA, []byte("abc"))

	wr := syscall.Dispatch(t, syscall.SysWrite, [6]int64{fdn, int64(bufVA), 3})
	if wr.Err != 0 {
		return fmt.Errorf("write: %v", wr.Err)
	}
	report("write", wr.Value, nil)

	if r := syscall.Dispatch(t, syscall.SysLseek, [6]int64{fdn, 0, unix.SEEK_SET}); r.Err != 0 {
		return fmt.Errorf("lseek: %v", r.Err)
	}

	outVA := bufVA + 0x1000
	k.init.Vm.Lock()
	k.init.Vm.AddAnon(vm.Vpn(outVA), 1, true)
	k.init.Vm.Unlock()
	rr := syscall.Dispatch(t, syscall.SysRead, [6]int64{fdn, int64(outVA), 3})
	if rr.Err != 0 {
		return fmt.Errorf("read: %v", rr.Err)
	}
	var out [3]byte
	k.init.Vm.Read(outVA, out[:])
	report("read", rr.Value, nil)
	if string(out[:]) != "abc" {
		return fmt.Errorf("expected \"abc\", got %q", out)
	}
	return nil
}

// scenarioWaitpid implements scenario 5: three children each exit with
// a distinct status; the parent's three waitpid(-1) calls must collect
// {0,1,2} in the order the children actually finished, which this
// scenario forces by having the children race to exit on independent
// timers rather than assuming program order.
func scenarioWaitpid() error {
	k := boot()
	pt := driverThread(k.init)

	statusVA := pageVA
	k.init.Vm.Lock()
	k.init.Vm.AddAnon(vm.Vpn(statusVA), 1, true)
	k.init.Vm.Unlock()

	delays := []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	for i, d := range delays {
		child := proc.Fork(pt)
		ct := proc.ThreadClone(pt)
		proc.AttachThread(child, ct)
		status := i
		delay := d
		go func() {
			time.Sleep(delay)
			syscall.Dispatch(ct, syscall.SysExit, [6]int64{int64(status)})
		}()
	}

	var statuses []int64
	for i := 0; i < 3; i++ {
		r := syscall.Dispatch(pt, syscall.SysWaitpid, [6]int64{-1, int64(statusVA), 0})
		if r.Err != 0 {
			return fmt.Errorf("waitpid: %v", r.Err)
		}
		var raw [8]byte
		k.init.Vm.Read(statusVA, raw[:])
		statuses = append(statuses, int64(binary.LittleEndian.Uint64(raw[:])))
	}
	fmt.Printf("reaped children %v in the order they actually exited (statuses 0,1,2 assigned by fork order)\n", statuses)
	return nil
}

// scenarioCancel implements scenario 6 directly against sched, the
// layer that owns cancellable sleep — there is no syscall in §6's list
// that exposes it, since spec.md scopes a user-visible nanosleep out.
func scenarioCancel() error {
	k := boot()
	a := driverThread(k.init)
	q := sched.NewQueue()

	done := make(chan errno.Err_t, 1)
	go func() {
		done <- sched.CancellableSleepOn(&a.Thread_t, q)
	}()

	// give A a chance to actually reach the sleep before B cancels it.
	time.Sleep(5 * time.Millisecond)
	sched.Cancel(&a.Thread_t)

	err := <-done
	report("A woke with errno", int64(err), nil)
	if err != errno.EINTR {
		return fmt.Errorf("expected EINTR, got %v", err)
	}
	if !q.Empty() {
		return fmt.Errorf("expected Q empty after cancel, len=%d", q.Len())
	}
	fmt.Println("Q is empty, as expected")
	return nil
}
