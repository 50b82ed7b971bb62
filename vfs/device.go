package vfs

import (
	"os"

	"gokernel/errno"
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/stat"
)

// Device major numbers, supplementing the distilled spec from
// original_source's console/null/stat/prof vnode majors (dropped by the
// distillation along with the rest of the device layer, but cheap to
// carry since device vnodes are otherwise unreachable surface).
const (
	DevConsole = 1
	DevNull    = 2
)

// Device is a character-device vnode: /dev/console and /dev/null, not a
// real TTY or block-bytedev framework (both Non-goals).
type Device struct {
	refc
	ino          int64
	major, minor int
}

func NewDevice(major, minor int) *Device {
	return &Device{refc: refc{n: 1}, ino: nextIno(), major: major, minor: minor}
}

func (d *Device) IsDir() bool  { return false }
func (d *Device) Size() int64  { return 0 }
func (d *Device) Ref()         { d.ref() }
func (d *Device) Put()         { d.put(nil) }

func (d *Device) Lookup(name string) (Vnode, errno.Err_t)          { return nil, errno.ENOTDIR }
func (d *Device) Create(name string) (Vnode, errno.Err_t)          { return nil, errno.ENOTDIR }
func (d *Device) Mkdir(name string) errno.Err_t                    { return errno.ENOTDIR }
func (d *Device) Rmdir(name string) errno.Err_t                     { return errno.ENOTDIR }
func (d *Device) Unlink(name string) errno.Err_t                    { return errno.ENOTDIR }
func (d *Device) Link(name string, target Vnode) errno.Err_t        { return errno.ENOTDIR }
func (d *Device) Rename(old string, nd Vnode, nn string) errno.Err_t { return errno.ENOTDIR }
func (d *Device) Mknod(name string, major, minor int) errno.Err_t  { return errno.ENOTDIR }
func (d *Device) Readdir(offset int) (string, int, bool, errno.Err_t) {
	return "", 0, false, errno.ENOTDIR
}

func (d *Device) Read(off int64, buf []byte) (int, errno.Err_t) {
	switch d.major {
	case DevNull:
		return 0, 0
	case DevConsole:
		return 0, 0
	default:
		return 0, errno.ENXIO
	}
}

func (d *Device) Write(off int64, buf []byte) (int, errno.Err_t) {
	switch d.major {
	case DevNull:
		return len(buf), 0
	case DevConsole:
		n, _ := os.Stdout.Write(buf)
		return n, 0
	default:
		return 0, errno.ENXIO
	}
}

func (d *Device) Mmap(phys *mem.Physmem_t) (mmobj.Obj, errno.Err_t) {
	return nil, errno.EACCES
}

func (d *Device) Stat(st *stat.Stat_t) errno.Err_t {
	st.Wino(uint(d.ino))
	st.Wmode(stat.IFCHR)
	st.Wrdev(uint(d.major)<<8 | uint(d.minor))
	st.Wnlink(1)
	return 0
}
