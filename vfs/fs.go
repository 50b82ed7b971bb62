package vfs

import (
	"sync"

	"gokernel/blockdev"
	"gokernel/errno"
)

// FS_t is the minimal block-allocation bookkeeping regular files draw
// on: a free bitmap over a blockdev.Disk_i. Grounded on the teacher's
// fs.Fstats_t / block-bitmap pattern referenced from ufs (out of scope
// per spec.md's on-disk-fs Non-goal), narrowed here to exactly what
// vfs.File needs to grow.
type FS_t struct {
	Disk blockdev.Disk_i

	mu      sync.Mutex
	freemap []bool
}

// NewFS wraps disk with an all-free bitmap.
func NewFS(disk blockdev.Disk_i) *FS_t {
	n := disk.NumBlocks()
	fm := make([]bool, n)
	for i := range fm {
		fm[i] = true
	}
	return &FS_t{Disk: disk, freemap: fm}
}

// NewRoot creates the root directory of a fresh filesystem over disk.
func NewRoot(disk blockdev.Disk_i) (*Dir, *FS_t) {
	fs := NewFS(disk)
	return NewDir(fs), fs
}

func (fs *FS_t) allocBlock() (int, errno.Err_t) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for i, free := range fs.freemap {
		if free {
			fs.freemap[i] = false
			return i, 0
		}
	}
	return -1, errno.ENOMEM
}

func (fs *FS_t) freeBlock(b int) {
	fs.mu.Lock()
	fs.freemap[b] = true
	fs.mu.Unlock()
}
