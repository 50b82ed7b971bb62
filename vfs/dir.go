package vfs

import (
	"gokernel/errno"
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/stat"
)

// Dir is a directory vnode: a name -> Vnode map plus insertion order for
// Readdir, and a back-link to its parent for "..".
type Dir struct {
	refc
	ino     int64
	entries map[string]Vnode
	names   []string
	parent  *Dir
	filesys *FS_t
}

// NewDir creates an empty directory with refcount 1, whose regular-file
// children (created via Create) allocate blocks from fs.
func NewDir(fs *FS_t) *Dir {
	return &Dir{refc: refc{n: 1}, ino: nextIno(), entries: make(map[string]Vnode), filesys: fs}
}

func (d *Dir) IsDir() bool  { return true }
func (d *Dir) Size() int64 { return 0 }

func (d *Dir) Ref() { d.ref() }

func (d *Dir) Put() {
	d.put(nil)
}

func (d *Dir) Lookup(name string) (Vnode, errno.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch name {
	case ".":
		d.n++
		return d, 0
	case "..":
		if d.parent == nil {
			d.n++
			return d, 0
		}
		d.parent.Ref()
		return d.parent, 0
	}
	c, ok := d.entries[name]
	if !ok {
		return nil, errno.ENOENT
	}
	c.Ref()
	return c, 0
}

func (d *Dir) Create(name string) (Vnode, errno.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[name]; ok {
		return nil, errno.EEXIST
	}
	f := NewFile(d.filesys)
	d.entries[name] = f
	d.names = append(d.names, name)
	f.Ref()
	return f, 0
}

func (d *Dir) Mkdir(name string) errno.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[name]; ok {
		return errno.EEXIST
	}
	nd := NewDir(d.filesys)
	nd.parent = d
	d.entries[name] = nd
	d.names = append(d.names, name)
	return 0
}

func (d *Dir) Rmdir(name string) errno.Err_t {
	if name == "." {
		return errno.EINVAL
	}
	if name == ".." {
		return errno.ENOTEMPTY
	}
	d.mu.Lock()
	c, ok := d.entries[name]
	if !ok {
		d.mu.Unlock()
		return errno.ENOENT
	}
	cd, ok := c.(*Dir)
	if !ok {
		d.mu.Unlock()
		return errno.ENOTDIR
	}
	cd.mu.Lock()
	empty := len(cd.entries) == 0
	cd.mu.Unlock()
	if !empty {
		d.mu.Unlock()
		return errno.ENOTEMPTY
	}
	delete(d.entries, name)
	d.removeName(name)
	d.mu.Unlock()
	cd.Put()
	return 0
}

func (d *Dir) Unlink(name string) errno.Err_t {
	d.mu.Lock()
	c, ok := d.entries[name]
	if !ok {
		d.mu.Unlock()
		return errno.ENOENT
	}
	if c.IsDir() {
		d.mu.Unlock()
		return errno.EISDIR
	}
	delete(d.entries, name)
	d.removeName(name)
	d.mu.Unlock()
	c.Put()
	return 0
}

func (d *Dir) Link(name string, target Vnode) errno.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[name]; ok {
		return errno.EEXIST
	}
	target.Ref()
	d.entries[name] = target
	d.names = append(d.names, name)
	return 0
}

// Rename is link-then-unlink, matching spec.md §4.12's documented
// non-atomicity: a crash (or, here, an error) between the two leaves
// the entry present under both names.
func (d *Dir) Rename(oldname string, newdir Vnode, newname string) errno.Err_t {
	d.mu.Lock()
	target, ok := d.entries[oldname]
	d.mu.Unlock()
	if !ok {
		return errno.ENOENT
	}
	nd, ok := newdir.(*Dir)
	if !ok {
		return errno.ENOTDIR
	}
	if err := nd.Link(newname, target); err != 0 {
		return err
	}
	return d.Unlink(oldname)
}

func (d *Dir) Mknod(name string, major, minor int) errno.Err_t {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[name]; ok {
		return errno.EEXIST
	}
	d.entries[name] = NewDevice(major, minor)
	d.names = append(d.names, name)
	return 0
}

func (d *Dir) Readdir(offset int) (string, int, bool, errno.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if offset < 0 {
		return "", 0, false, errno.EINVAL
	}
	if offset >= len(d.names) {
		return "", offset, true, 0
	}
	return d.names[offset], offset + 1, false, 0
}

func (d *Dir) Read(off int64, buf []byte) (int, errno.Err_t)  { return 0, errno.EISDIR }
func (d *Dir) Write(off int64, buf []byte) (int, errno.Err_t) { return 0, errno.EISDIR }
func (d *Dir) Mmap(phys *mem.Physmem_t) (mmobj.Obj, errno.Err_t) {
	return nil, errno.EACCES
}

func (d *Dir) Stat(st *stat.Stat_t) errno.Err_t {
	d.mu.Lock()
	n := len(d.entries)
	d.mu.Unlock()
	st.Wino(uint(d.ino))
	st.Wmode(stat.IFDIR)
	st.Wsize(uint(n))
	st.Wnlink(1)
	return 0
}

func (d *Dir) removeName(name string) {
	for i, n := range d.names {
		if n == name {
			d.names = append(d.names[:i], d.names[i+1:]...)
			return
		}
	}
}
