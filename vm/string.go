package vm

import "gokernel/errno"

// ReadCString copies a NUL-terminated string from user memory at uva,
// up to lenmax bytes. Grounded on the teacher's Userstr (as.go):
// read one chunk at a time via the ordinary copy-in path, stopping at
// the first NUL, failing ENAMETOOLONG if lenmax is exhausted first.
func (vm *Vm_t) ReadCString(uva, lenmax int) (string, errno.Err_t) {
	if lenmax < 0 {
		return "", 0
	}
	ub := NewUserbuf(vm, uva, lenmax)
	buf := make([]byte, 0, 64)
	chunk := make([]byte, 64)
	for {
		n, err := ub.CopyFromUser(chunk)
		if err != 0 {
			return "", err
		}
		if n == 0 {
			return "", errno.ENAMETOOLONG
		}
		for i := 0; i < n; i++ {
			if chunk[i] == 0 {
				buf = append(buf, chunk[:i]...)
				return string(buf), 0
			}
		}
		buf = append(buf, chunk[:n]...)
		if len(buf) >= lenmax {
			return "", errno.ENAMETOOLONG
		}
	}
}
