package fd

import (
	"sync"

	"gokernel/circbuf"
	"gokernel/errno"
	"gokernel/mem"
	"gokernel/mmobj"
	"gokernel/stat"
	"gokernel/vfs"
)

// pipeSize is the capacity of a pipe(2) buffer.
const pipeSize = 4096

// pipeVnode backs both ends of a pipe(2): it satisfies vfs.Vnode so the
// ordinary OpenFile/Table_t machinery handles it exactly like a regular
// file, with read and write operating on the shared circbuf instead of
// a vnode's byte range. Grounded on biscuit/src/circbuf/circbuf.go,
// simplified from its page-backed, Userio_i-coupled shape (circbuf.go's
// header) down to the plain []byte ring this package carries.
type pipeVnode struct {
	mu  sync.Mutex
	n   int
	buf circbuf.Circbuf_t
}

func newPipeVnode() *pipeVnode {
	p := &pipeVnode{n: 1}
	p.buf.Init(pipeSize)
	return p
}

func (p *pipeVnode) IsDir() bool  { return false }
func (p *pipeVnode) Size() int64  { return 0 }

func (p *pipeVnode) Ref() {
	p.mu.Lock()
	p.n++
	p.mu.Unlock()
}

func (p *pipeVnode) Put() {
	p.mu.Lock()
	p.n--
	p.mu.Unlock()
}

func (p *pipeVnode) Lookup(name string) (vfs.Vnode, errno.Err_t)         { return nil, errno.ENOTDIR }
func (p *pipeVnode) Create(name string) (vfs.Vnode, errno.Err_t)         { return nil, errno.ENOTDIR }
func (p *pipeVnode) Mkdir(name string) errno.Err_t                       { return errno.ENOTDIR }
func (p *pipeVnode) Rmdir(name string) errno.Err_t                       { return errno.ENOTDIR }
func (p *pipeVnode) Unlink(name string) errno.Err_t                      { return errno.ENOTDIR }
func (p *pipeVnode) Link(name string, target vfs.Vnode) errno.Err_t      { return errno.ENOTDIR }
func (p *pipeVnode) Rename(o string, nd vfs.Vnode, nn string) errno.Err_t { return errno.ENOTDIR }
func (p *pipeVnode) Mknod(name string, major, minor int) errno.Err_t    { return errno.ENOTDIR }
func (p *pipeVnode) Readdir(offset int) (string, int, bool, errno.Err_t) {
	return "", 0, false, errno.ENOTDIR
}
func (p *pipeVnode) Mmap(phys *mem.Physmem_t) (mmobj.Obj, errno.Err_t) {
	return nil, errno.EACCES
}
func (p *pipeVnode) Stat(st *stat.Stat_t) errno.Err_t {
	st.Wmode(stat.IFCHR)
	return 0
}

// Read returns whatever is currently buffered, up to len(buf); 0 if the
// pipe is empty. A blocking pipe (wait for a writer, observe EOF once
// the write end closes) would route through sched/kmutex exactly like
// every other suspension point in this kernel; it is not needed for
// the write-then-read round trip this kernel's pipe(2) is scoped to.
func (p *pipeVnode) Read(off int64, buf []byte) (int, errno.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Read(buf), 0
}

// Write copies as much of buf into the pipe as fits, returning the
// short count rather than blocking if the buffer is full.
func (p *pipeVnode) Write(off int64, buf []byte) (int, errno.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(buf), 0
}

// Pipe creates a connected read/write fd pair.
func (c *Ctx) Pipe() (rfd, wfd int, err errno.Err_t) {
	rfd, wfd, err = c.Fds.getTwoEmptyFds()
	if err != 0 {
		return -1, -1, err
	}
	pv := newPipeVnode()
	rof := newOpenFile(pv, FREAD)
	pv.Ref()
	wof := newOpenFile(pv, FWRITE)

	c.Fds.mu.Lock()
	c.Fds.slots[rfd] = rof
	c.Fds.slots[wfd] = wof
	c.Fds.mu.Unlock()
	return rfd, wfd, 0
}
