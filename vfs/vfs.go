// Package vfs implements path resolution (C11): lookup, dir_namev,
// open_namev, and the vnode operation set they walk. Grounded on
// original_source/Homework/Kernel/fs/{namev,open}.c for the exact
// refcounting discipline (every successful lookup/create is either
// returned to the caller or put, with no exceptions on any error path).
//
// The on-disk filesystem format itself is out of scope (spec.md §1
// Non-goal); the concrete vnode types here (dir.go, file.go, device.go)
// are a minimal in-memory filesystem sufficient to exercise path
// resolution, the fd-table syscalls built on it (C12), and file-backed
// demand paging (fileobj.go, consumed by C9's mmap).
package vfs

import (
	"strings"
	"sync"
	"sync/atomic"

	"gokernel/errno"
	"gokernel/limits"
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/stat"
)

// Vnode is the abstract file/directory handle vn_ops dispatches through.
// Not every concrete type gives every operation a meaningful
// implementation — a device vnode's Lookup is as nonsensical as a
// directory's Read — such calls return ENOTDIR/EISDIR/ENOSYS as
// appropriate rather than panicking, since arriving at the wrong vnode
// type for an operation is a user-reachable error (a bad path), not a
// kernel invariant violation.
type Vnode interface {
	Ref()
	Put()
	IsDir() bool
	Size() int64

	Lookup(name string) (Vnode, errno.Err_t)
	Create(name string) (Vnode, errno.Err_t)
	Mkdir(name string) errno.Err_t
	Rmdir(name string) errno.Err_t
	Unlink(name string) errno.Err_t
	Link(name string, target Vnode) errno.Err_t
	Rename(oldname string, newdir Vnode, newname string) errno.Err_t
	Mknod(name string, major, minor int) errno.Err_t
	Readdir(offset int) (name string, next int, eof bool, err errno.Err_t)

	Read(off int64, buf []byte) (int, errno.Err_t)
	Write(off int64, buf []byte) (int, errno.Err_t)
	Mmap(phys *mem.Physmem_t) (mmobj.Obj, errno.Err_t)
	Stat(st *stat.Stat_t) errno.Err_t
}

// refc is the reference-count bookkeeping shared by every concrete
// vnode type: the initial count of 1 represents the entry's place in
// its parent directory (or, for the root, the filesystem itself); every
// further Ref is one more live reference a caller must eventually Put.
type refc struct {
	mu sync.Mutex
	n  int
}

func (r *refc) ref() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.n <= 0 {
		panic("vfs: ref on dead vnode")
	}
	r.n++
}

// put decrements the count and runs destroy exactly once when it
// reaches zero.
func (r *refc) put(destroy func()) {
	r.mu.Lock()
	r.n--
	dead := r.n == 0
	if r.n < 0 {
		panic("vfs: put past zero")
	}
	r.mu.Unlock()
	if dead && destroy != nil {
		destroy()
	}
}

var inoCounter int64

func nextIno() int64 { return atomic.AddInt64(&inoCounter, 1) }

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, c := range parts {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Lookup resolves one path component under dir, delegating to the
// vnode's own Lookup. Returns ENOTDIR if dir is not a directory.
func Lookup(dir Vnode, name string) (Vnode, errno.Err_t) {
	if !dir.IsDir() {
		return nil, errno.ENOTDIR
	}
	return dir.Lookup(name)
}

// DirNamev resolves path's directory prefix, returning the parent
// vnode (with a held reference) and the final path component. If path
// starts with '/', resolution starts at root; otherwise at base (which
// must be non-nil — the caller's cwd). Every intermediate vnode visited
// is put as soon as the next is obtained; only the final parent is
// returned still referenced.
//
// A path that is only slashes resolves to an empty basename and the
// root directory itself as parent, per spec.md §9 design note (b).
// trailingSlash reports whether the path ended in '/', which forces
// open_namev to require the final component be a directory.
func DirNamev(path string, base, root Vnode) (parent Vnode, basename string, trailingSlash bool, err errno.Err_t) {
	if len(path) == 0 {
		return nil, "", false, errno.EINVAL
	}

	var cur Vnode
	rest := path
	if path[0] == '/' {
		root.Ref()
		cur = root
		rest = path[1:]
	} else {
		if base == nil {
			return nil, "", false, errno.EINVAL
		}
		base.Ref()
		cur = base
	}

	trailingSlash = strings.HasSuffix(rest, "/")
	comps := splitPath(rest)
	if len(comps) == 0 {
		return cur, "", trailingSlash, 0
	}

	for i := 0; i < len(comps)-1; i++ {
		c := comps[i]
		if len(c) > limits.NAME_MAX {
			cur.Put()
			return nil, "", false, errno.ENAMETOOLONG
		}
		next, lerr := Lookup(cur, c)
		cur.Put()
		if lerr != 0 {
			return nil, "", false, lerr
		}
		cur = next
	}

	last := comps[len(comps)-1]
	if len(last) > limits.NAME_MAX {
		cur.Put()
		return nil, "", false, errno.ENAMETOOLONG
	}
	return cur, last, trailingSlash, 0
}

// OpenNamev resolves path fully to a vnode. If the final component is
// missing and creat is set, the parent's Create is invoked; otherwise
// ENOENT propagates. A trailing slash requires the result be a
// directory. Every reference taken along the way is either returned to
// the caller (as the sole reference on the result) or put.
func OpenNamev(path string, creat bool, base, root Vnode) (Vnode, errno.Err_t) {
	parent, name, trailingSlash, err := DirNamev(path, base, root)
	if err != 0 {
		return nil, err
	}
	if name == "" {
		return parent, 0
	}

	child, lerr := Lookup(parent, name)
	if lerr == 0 {
		parent.Put()
		if trailingSlash && !child.IsDir() {
			child.Put()
			return nil, errno.ENOTDIR
		}
		return child, 0
	}
	if lerr != errno.ENOENT {
		parent.Put()
		return nil, lerr
	}
	if !creat {
		parent.Put()
		return nil, errno.ENOENT
	}
	created, cerr := parent.Create(name)
	parent.Put()
	if cerr != 0 {
		return nil, cerr
	}
	return created, 0
}
