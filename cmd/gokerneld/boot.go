// Package main is the scenario-runner CLI: it boots a single in-process
// kernel instance (a memory disk, a physical-page allocator, and the
// idle/init process pair), drives it through one of a handful of named
// scenarios via the syscall package's dispatch table, and prints what
// happened.
//
// Grounded on ja7ad-consumption/cmd/consumption/main.go's cobra.Command
// shape: a root command with RunE delegating to a run function, slog
// for top-level error reporting, and signal.NotifyContext for Ctrl-C.
package main

import (
	"fmt"

	"gokernel/blockdev"
	"gokernel/mem"
	"gokernel/proc"
	"gokernel/vfs"
)

// npages is the simulated machine's physical memory size, generous
// enough for every scenario's fork/mmap traffic without tuning.
const npages = 4096

// nblocks is the root filesystem's in-memory disk size.
const nblocks = 1024

// kernel bundles the singletons every scenario needs: the root vnode,
// and the init process scenarios run as.
type kernel struct {
	fs   *vfs.FS_t
	root *vfs.Dir
	init *proc.Process_t
}

// boot constructs a fresh kernel instance: a memory disk and root
// filesystem, a physical-page allocator, and the idle/init process
// pair ProcCreate assigns ids 0 and 1 to, mirroring
// original_source/Homework/Kernel/main.c's startup sequence.
func boot() *kernel {
	disk := blockdev.NewMemDisk(nblocks)
	root, fs := vfs.NewRoot(disk)
	phys := mem.NewPhysmem(npages)

	idle := proc.ProcCreate(root, phys, nil)
	initp := proc.ProcCreate(root, phys, idle)

	return &kernel{fs: fs, root: root, init: initp}
}

// driverThread returns a *proc.Thread_t attached to p, suitable for
// driving syscall.Dispatch synchronously from the caller's own
// goroutine. ThreadCreate's entry runs and returns immediately; the
// returned thread is otherwise exactly what a real thread body would
// have received.
func driverThread(p *proc.Process_t) *proc.Thread_t {
	return proc.ThreadCreate(p, func(arg1, arg2 any) {}, nil, nil)
}

// report is the small uniform printer every scenario uses to announce
// its syscall results.
func report(label string, value int64, err error) {
	if err != nil {
		fmt.Printf("%-28s error: %v\n", label, err)
		return
	}
	fmt.Printf("%-28s = %d\n", label, value)
}
