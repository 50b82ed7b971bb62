package fd

import (
	"golang.org/x/sys/unix"

	"gokernel/errno"
	"gokernel/stat"
	"gokernel/vfs"
)

// Ctx bundles the per-process state the VFS syscalls operate on: the fd
// table, the cwd, and the filesystem root every absolute path resolves
// against.
type Ctx struct {
	Fds  *Table_t
	Cwd  *Cwd_t
	Root vfs.Vnode
}

// NewCtx returns a fresh syscall context rooted at root, with an empty
// fd table and cwd == root.
func NewCtx(root vfs.Vnode) *Ctx {
	return &Ctx{Fds: NewTable(), Cwd: NewCwd(root), Root: root}
}

// Open resolves path and returns a new fd for it. Rejects the illegal
// O_WRONLY|O_RDWR access-mode combination and write-opens of
// directories.
func (c *Ctx) Open(path string, flags int) (int, errno.Err_t) {
	acc := flags & unix.O_ACCMODE
	if acc != unix.O_RDONLY && acc != unix.O_WRONLY && acc != unix.O_RDWR {
		return -1, errno.EINVAL
	}
	mode := 0
	switch acc {
	case unix.O_RDONLY:
		mode = FREAD
	case unix.O_WRONLY:
		mode = FWRITE
	case unix.O_RDWR:
		mode = FREAD | FWRITE
	}
	if flags&unix.O_APPEND != 0 {
		mode |= FAPPEND
	}
	creat := flags&unix.O_CREAT != 0

	fdn, ferr := c.Fds.getEmptyFd()
	if ferr != 0 {
		return -1, ferr
	}
	v, verr := vfs.OpenNamev(path, creat, c.Cwd.Get(), c.Root)
	if verr != 0 {
		return -1, verr
	}
	if mode&FWRITE != 0 && v.IsDir() {
		v.Put()
		return -1, errno.EISDIR
	}

	c.Fds.mu.Lock()
	c.Fds.slots[fdn] = newOpenFile(v, mode)
	c.Fds.mu.Unlock()
	return fdn, 0
}

// Close puts the file at fdn and clears the slot.
func (c *Ctx) Close(fdn int) errno.Err_t {
	c.Fds.mu.Lock()
	if fdn < 0 || fdn >= len(c.Fds.slots) || c.Fds.slots[fdn] == nil {
		c.Fds.mu.Unlock()
		return errno.EBADF
	}
	of := c.Fds.slots[fdn]
	c.Fds.slots[fdn] = nil
	c.Fds.mu.Unlock()
	of.put()
	return 0
}

// Read reads up to len(buf) bytes starting at fdn's cursor, advancing
// it by the amount actually read.
func (c *Ctx) Read(fdn int, buf []byte) (int, errno.Err_t) {
	of, err := c.Fds.Get(fdn)
	if err != 0 {
		return -1, err
	}
	of.mu.Lock()
	if of.Mode&FREAD == 0 {
		of.mu.Unlock()
		return -1, errno.EBADF
	}
	if of.Vnode.IsDir() {
		of.mu.Unlock()
		return -1, errno.EISDIR
	}
	cursor := of.Cursor
	of.mu.Unlock()

	n, rerr := of.Vnode.Read(cursor, buf)
	if rerr != 0 {
		return -1, rerr
	}
	of.mu.Lock()
	of.Cursor += int64(n)
	of.mu.Unlock()
	return n, 0
}

// Write writes len(buf) bytes at fdn's cursor (seeking to end-of-file
// first if APPEND), advancing the cursor by the amount written.
func (c *Ctx) Write(fdn int, buf []byte) (int, errno.Err_t) {
	of, err := c.Fds.Get(fdn)
	if err != 0 {
		return -1, err
	}
	of.mu.Lock()
	if of.Mode&(FWRITE|FAPPEND) == 0 {
		of.mu.Unlock()
		return -1, errno.EBADF
	}
	if of.Mode&FAPPEND != 0 {
		of.Cursor = of.Vnode.Size()
	}
	cursor := of.Cursor
	of.mu.Unlock()

	n, werr := of.Vnode.Write(cursor, buf)
	if werr != 0 {
		return -1, werr
	}
	of.mu.Lock()
	of.Cursor += int64(n)
	newCursor := of.Cursor
	of.mu.Unlock()

	if !of.Vnode.IsDir() && newCursor > of.Vnode.Size() {
		panic("fd: write cursor exceeds vnode length")
	}
	return n, 0
}

// Dup returns a new fd referring to the same open-file-description as
// fdn.
func (c *Ctx) Dup(fdn int) (int, errno.Err_t) {
	of, err := c.Fds.Get(fdn)
	if err != 0 {
		return -1, err
	}
	newfd, ferr := c.Fds.getEmptyFd()
	if ferr != 0 {
		return -1, ferr
	}
	of.ref()
	c.Fds.mu.Lock()
	c.Fds.slots[newfd] = of
	c.Fds.mu.Unlock()
	return newfd, 0
}

// Dup2 makes newfd refer to oldfd's open-file-description, closing
// newfd's previous occupant first (unless it already equals oldfd).
func (c *Ctx) Dup2(oldfd, newfd int) (int, errno.Err_t) {
	of, err := c.Fds.Get(oldfd)
	if err != 0 {
		return -1, err
	}
	if oldfd == newfd {
		return newfd, 0
	}
	if newfd < 0 || newfd >= len(c.Fds.slots) {
		return -1, errno.EBADF
	}
	of.ref()
	c.Fds.mu.Lock()
	old := c.Fds.slots[newfd]
	c.Fds.slots[newfd] = of
	c.Fds.mu.Unlock()
	if old != nil {
		old.put()
	}
	return newfd, 0
}

// Getdents returns up to count directory entry names starting at fdn's
// cursor, advancing it past the entries returned.
func (c *Ctx) Getdents(fdn, count int) ([]string, errno.Err_t) {
	of, err := c.Fds.Get(fdn)
	if err != 0 {
		return nil, err
	}
	of.mu.Lock()
	defer of.mu.Unlock()
	if !of.Vnode.IsDir() {
		return nil, errno.ENOTDIR
	}
	var names []string
	off := int(of.Cursor)
	for len(names) < count {
		name, next, eof, derr := of.Vnode.Readdir(off)
		if derr != 0 {
			return names, derr
		}
		if eof {
			break
		}
		names = append(names, name)
		off = next
	}
	of.Cursor = int64(off)
	return names, 0
}

// Lseek repositions fdn's cursor relative to whence, rejecting a
// negative result.
func (c *Ctx) Lseek(fdn int, offset int64, whence int) (int64, errno.Err_t) {
	of, err := c.Fds.Get(fdn)
	if err != 0 {
		return -1, err
	}
	of.mu.Lock()
	defer of.mu.Unlock()

	var base int64
	switch whence {
	case unix.SEEK_SET:
		base = 0
	case unix.SEEK_CUR:
		base = of.Cursor
	case unix.SEEK_END:
		base = of.Vnode.Size()
	default:
		return -1, errno.EINVAL
	}
	np := base + offset
	if np < 0 {
		return -1, errno.EINVAL
	}
	of.Cursor = np
	return np, 0
}

// Mkdir resolves path's parent and creates the final component as a
// directory.
func (c *Ctx) Mkdir(path string) errno.Err_t {
	parent, name, _, err := vfs.DirNamev(path, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	e := parent.Mkdir(name)
	parent.Put()
	return e
}

// Rmdir resolves path's parent and removes the final component, which
// must name an empty directory.
func (c *Ctx) Rmdir(path string) errno.Err_t {
	parent, name, _, err := vfs.DirNamev(path, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	e := parent.Rmdir(name)
	parent.Put()
	return e
}

// Unlink resolves path's parent and removes the final component, which
// must not be a directory.
func (c *Ctx) Unlink(path string) errno.Err_t {
	parent, name, _, err := vfs.DirNamev(path, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	e := parent.Unlink(name)
	parent.Put()
	return e
}

// Mknod creates a device special file at path.
func (c *Ctx) Mknod(path string, major, minor int) errno.Err_t {
	parent, name, _, err := vfs.DirNamev(path, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	e := parent.Mknod(name, major, minor)
	parent.Put()
	return e
}

// Link creates newpath as another name for oldpath's vnode.
func (c *Ctx) Link(oldpath, newpath string) errno.Err_t {
	target, err := vfs.OpenNamev(oldpath, false, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	defer target.Put()

	parent, name, _, derr := vfs.DirNamev(newpath, c.Cwd.Get(), c.Root)
	if derr != 0 {
		return derr
	}
	e := parent.Link(name, target)
	parent.Put()
	return e
}

// Rename moves oldpath to newpath, implemented as link-then-unlink —
// not atomic, matching spec.md §4.12.
func (c *Ctx) Rename(oldpath, newpath string) errno.Err_t {
	oldparent, oldname, _, err := vfs.DirNamev(oldpath, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	newparent, newname, _, err2 := vfs.DirNamev(newpath, c.Cwd.Get(), c.Root)
	if err2 != 0 {
		oldparent.Put()
		return err2
	}
	e := oldparent.Rename(oldname, newparent, newname)
	oldparent.Put()
	newparent.Put()
	return e
}

// Stat resolves path and fills st from its vnode.
func (c *Ctx) Stat(path string, st *stat.Stat_t) errno.Err_t {
	v, err := vfs.OpenNamev(path, false, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	e := v.Stat(st)
	v.Put()
	return e
}

// Chdir replaces the process cwd with path, which must resolve to a
// directory.
func (c *Ctx) Chdir(path string) errno.Err_t {
	v, err := vfs.OpenNamev(path, false, c.Cwd.Get(), c.Root)
	if err != 0 {
		return err
	}
	if !v.IsDir() {
		v.Put()
		return errno.ENOTDIR
	}
	c.Cwd.Chdir(v)
	v.Put()
	return 0
}

// Fork returns a new Ctx sharing this one's root, with a duplicated fd
// table (every slot ref'd) and a fresh reference on the same cwd.
func (c *Ctx) Fork() *Ctx {
	return &Ctx{Fds: c.Fds.Fork(), Cwd: c.Cwd.Clone(), Root: c.Root}
}
