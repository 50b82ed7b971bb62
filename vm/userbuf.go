package vm

import (
	"gokernel/bounds"
	"gokernel/errno"
	"gokernel/res"
)

// Userbuf_t assists the syscall dispatcher's copy_from_user/
// copy_to_user steps (spec.md §6). Grounded on the teacher's
// Userbuf_t (vm/userbuf.go): a cursor over a fixed user virtual range,
// transferred through the address space's Read/Write, which walk it
// page by page through each area's memory object rather than through
// the page-fault path. The teacher's Useriovec_t/Fakeubuf_t companions (readv/writev
// and kernel-buffer-as-userbuf shims) have no syscall in spec.md §6
// that needs them and are dropped rather than carried unused.
type Userbuf_t struct {
	as  *Vm_t
	uva int
	len int
	off int
}

// NewUserbuf returns a cursor over [uva, uva+n) in as.
func NewUserbuf(as *Vm_t, uva, n int) *Userbuf_t {
	if n < 0 {
		panic("vm: negative userbuf length")
	}
	return &Userbuf_t{as: as, uva: uva, len: n}
}

// Remain reports the number of bytes not yet transferred.
func (ub *Userbuf_t) Remain() int { return ub.len - ub.off }

// Totalsz reports the buffer's total length.
func (ub *Userbuf_t) Totalsz() int { return ub.len }

// CopyFromUser reads into dst from the user buffer, advancing the
// cursor, and returns the number of bytes copied.
func (ub *Userbuf_t) CopyFromUser(dst []byte) (int, errno.Err_t) {
	return ub.tx(dst, false)
}

// CopyToUser writes src into the user buffer, advancing the cursor.
func (ub *Userbuf_t) CopyToUser(src []byte) (int, errno.Err_t) {
	return ub.tx(src, true)
}

func (ub *Userbuf_t) tx(buf []byte, write bool) (int, errno.Err_t) {
	budget := res.NewBudget(bounds.B_USERBUF_TX)
	did := 0
	for len(buf) > 0 && ub.off < ub.len {
		if !budget.Take() {
			return did, errno.ENOHEAP
		}
		n := len(buf)
		if rem := ub.len - ub.off; n > rem {
			n = rem
		}
		va := ub.uva + ub.off
		var err errno.Err_t
		if write {
			err = ub.as.Write(va, buf[:n])
		} else {
			err = ub.as.Read(va, buf[:n])
		}
		if err != 0 {
			return did, err
		}
		buf = buf[n:]
		ub.off += n
		did += n
	}
	return did, 0
}
