package vfs

import (
	"sync"

	"gokernel/blockdev"
	"gokernel/errno"
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/stat"
)

// File is a regular file vnode: content lives in fixed-size blocks
// allocated lazily from its owning FS_t, read and written through
// blockdev.Disk_i rather than held as one contiguous in-memory buffer —
// the block-device collaborator contract spec.md §6 names is exercised
// here rather than bypassed.
type File struct {
	refc
	ino    int64
	fs     *FS_t
	mu     sync.Mutex
	blocks []int
	size   int64
}

// NewFile creates an empty regular file with refcount 1.
func NewFile(fs *FS_t) *File {
	return &File{refc: refc{n: 1}, ino: nextIno(), fs: fs}
}

func (f *File) IsDir() bool { return false }

func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

func (f *File) Ref() { f.ref() }

func (f *File) Put() {
	f.put(func() {
		f.mu.Lock()
		blocks := f.blocks
		f.blocks = nil
		f.mu.Unlock()
		for _, b := range blocks {
			f.fs.freeBlock(b)
		}
	})
}

func (f *File) Lookup(name string) (Vnode, errno.Err_t)          { return nil, errno.ENOTDIR }
func (f *File) Create(name string) (Vnode, errno.Err_t)          { return nil, errno.ENOTDIR }
func (f *File) Mkdir(name string) errno.Err_t                    { return errno.ENOTDIR }
func (f *File) Rmdir(name string) errno.Err_t                    { return errno.ENOTDIR }
func (f *File) Unlink(name string) errno.Err_t                   { return errno.ENOTDIR }
func (f *File) Link(name string, target Vnode) errno.Err_t       { return errno.ENOTDIR }
func (f *File) Rename(old string, nd Vnode, nn string) errno.Err_t { return errno.ENOTDIR }
func (f *File) Mknod(name string, major, minor int) errno.Err_t  { return errno.ENOTDIR }
func (f *File) Readdir(offset int) (string, int, bool, errno.Err_t) {
	return "", 0, false, errno.ENOTDIR
}

// Read copies min(len(buf), size-off) bytes starting at off, crossing
// block boundaries as needed.
func (f *File) Read(off int64, buf []byte) (int, errno.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if off < 0 {
		return 0, errno.EINVAL
	}
	n := 0
	for n < len(buf) && off < f.size {
		bi := int(off / blockdev.BlockSize)
		bo := int(off % blockdev.BlockSize)
		if bi >= len(f.blocks) {
			break
		}
		blk := make([]byte, blockdev.BlockSize)
		if err := f.fs.Disk.ReadBlock(f.blocks[bi], blk); err != 0 {
			return n, err
		}
		avail := blockdev.BlockSize - bo
		if remaining := int(f.size - off); avail > remaining {
			avail = remaining
		}
		if want := len(buf) - n; avail > want {
			avail = want
		}
		copy(buf[n:n+avail], blk[bo:bo+avail])
		n += avail
		off += int64(avail)
	}
	return n, 0
}

// Write copies buf in starting at off, allocating new blocks as the
// file grows past its current block count.
func (f *File) Write(off int64, buf []byte) (int, errno.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if off < 0 {
		return 0, errno.EINVAL
	}
	n := 0
	for n < len(buf) {
		bi := int(off / blockdev.BlockSize)
		bo := int(off % blockdev.BlockSize)
		for bi >= len(f.blocks) {
			nb, err := f.fs.allocBlock()
			if err != 0 {
				return n, err
			}
			f.blocks = append(f.blocks, nb)
		}
		blk := make([]byte, blockdev.BlockSize)
		if err := f.fs.Disk.ReadBlock(f.blocks[bi], blk); err != 0 {
			return n, err
		}
		avail := blockdev.BlockSize - bo
		if want := len(buf) - n; avail > want {
			avail = want
		}
		copy(blk[bo:bo+avail], buf[n:n+avail])
		if err := f.fs.Disk.WriteBlock(f.blocks[bi], blk); err != 0 {
			return n, err
		}
		n += avail
		off += int64(avail)
		if off > f.size {
			f.size = off
		}
	}
	return n, 0
}

// Mmap returns this file's demand-paged memory object, the bottom
// object C9's mmap interposes a shadow in front of for PRIVATE mappings.
func (f *File) Mmap(phys *mem.Physmem_t) (mmobj.Obj, errno.Err_t) {
	return NewFileObj(phys, f), 0
}

func (f *File) Stat(st *stat.Stat_t) errno.Err_t {
	st.Wino(uint(f.ino))
	st.Wmode(stat.IFREG)
	st.Wsize(uint(f.Size()))
	st.Wnlink(1)
	return 0
}
