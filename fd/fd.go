// Package fd implements the per-process file-descriptor table and the
// VFS-facing syscalls built on it (C12): open, close, read, write, dup,
// dup2, getdents, lseek, mkdir, rmdir, unlink, link, rename, mknod,
// stat, chdir, pipe. Grounded on biscuit/src/fd/fd.go's Fd_t/Cwd_t
// shape (kept and adapted: teacher's file wraps an Fops_i vtable,
// generalized here to vfs.Vnode directly since there is no separate
// file-vs-vnode split once the on-disk filesystem is out of scope) and
// original_source/Homework/Kernel/fs/vfs_syscall.c for exact syscall
// semantics (illegal open-flag combinations, EISDIR on write-open of a
// directory, append-before-write seek, rmdir's "." / ".." special
// cases).
package fd

import (
	"sync"

	"gokernel/errno"
	"gokernel/limits"
	"gokernel/vfs"
)

// File mode bits, independent of the open(2) flag encoding: READ is set
// for O_RDONLY/O_RDWR, WRITE for O_WRONLY/O_RDWR, APPEND when O_APPEND
// was given.
const (
	FREAD = 1 << iota
	FWRITE
	FAPPEND
)

// OpenFile is one open-file-description: mode bits, a byte cursor
// shared by every fd that dup'd from the same open, and the vnode it
// reads and writes through. The OpenFile holds exactly one reference on
// Vnode, released when the last slot pointing at it is closed;
// dup/dup2/fork bump OpenFile's own refcount instead of taking a second
// vnode reference.
type OpenFile struct {
	mu       sync.Mutex
	Mode     int
	Cursor   int64
	Vnode    vfs.Vnode
	refcount int
}

func newOpenFile(v vfs.Vnode, mode int) *OpenFile {
	return &OpenFile{Vnode: v, Mode: mode, refcount: 1}
}

func (f *OpenFile) ref() {
	f.mu.Lock()
	f.refcount++
	f.mu.Unlock()
}

func (f *OpenFile) put() {
	f.mu.Lock()
	f.refcount--
	dead := f.refcount == 0
	f.mu.Unlock()
	if dead {
		f.Vnode.Put()
	}
}

// Table_t is a process's fixed-width file-descriptor table.
type Table_t struct {
	mu    sync.Mutex
	slots [limits.NOFILE]*OpenFile
}

// NewTable returns an empty fd table.
func NewTable() *Table_t { return &Table_t{} }

// getEmptyFd returns the lowest-numbered free slot, or EMFILE.
func (t *Table_t) getEmptyFd() (int, errno.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i] == nil {
			return i, 0
		}
	}
	return -1, errno.EMFILE
}

// getTwoEmptyFds atomically reserves two free slots for pipe(2), so a
// concurrent open cannot be handed the second one out from under it.
func (t *Table_t) getTwoEmptyFds() (int, int, errno.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, b := -1, -1
	for i := range t.slots {
		if t.slots[i] == nil {
			if a == -1 {
				a = i
			} else {
				b = i
				break
			}
		}
	}
	if a == -1 || b == -1 {
		return -1, -1, errno.EMFILE
	}
	return a, b, 0
}

// Get returns the OpenFile at fdn, or EBADF.
func (t *Table_t) Get(fdn int) (*OpenFile, errno.Err_t) {
	if fdn < 0 || fdn >= len(t.slots) {
		return nil, errno.EBADF
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.slots[fdn]
	if f == nil {
		return nil, errno.EBADF
	}
	return f, 0
}

// Fork returns a copy of t with every occupied slot's OpenFile ref'd,
// for C10's fd-table duplication step.
func (t *Table_t) Fork() *Table_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	nt := &Table_t{}
	for i, f := range t.slots {
		if f != nil {
			f.ref()
			nt.slots[i] = f
		}
	}
	return nt
}

// CloseAll puts every occupied slot, for process exit's fd teardown.
func (t *Table_t) CloseAll() {
	t.mu.Lock()
	slots := t.slots
	t.slots = [limits.NOFILE]*OpenFile{}
	t.mu.Unlock()
	for _, f := range slots {
		if f != nil {
			f.put()
		}
	}
}
