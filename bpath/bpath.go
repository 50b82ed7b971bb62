// Package bpath canonicalizes paths built from ustr.Ustr components.
//
// The teacher's fd.Cwd_t.Canonicalpath calls bpath.Canonicalize but the
// pack's retrieval of biscuit's bpath package contained only a go.mod
// stub; this implementation is authored from that call site's contract:
// collapse repeated slashes and resolve "." and ".." components without
// touching the filesystem (a pure string operation, same as realpath's
// lexical half).
package bpath

import "gokernel/ustr"

// Canonicalize collapses "." and ".." components and repeated slashes in
// an absolute path. Leading slash is always preserved; ".." above root
// is absorbed rather than erroring, matching shell "cd /.." behavior.
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	abs := p.IsAbsolute()
	parts := Split(p)
	var out []ustr.Ustr
	for _, c := range parts {
		switch {
		case len(c) == 0:
			continue
		case c.Isdot():
			continue
		case c.Isdotdot():
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, c)
		}
	}
	ret := ustr.Ustr{}
	if abs {
		ret = append(ret, '/')
	}
	for i, c := range out {
		if i > 0 {
			ret = append(ret, '/')
		}
		ret = append(ret, c...)
	}
	if len(ret) == 0 {
		ret = ustr.MkUstrDot()
	}
	return ret
}

// Split breaks a path into its slash-separated components, dropping
// empty components produced by leading/repeated/trailing slashes.
func Split(p ustr.Ustr) []ustr.Ustr {
	var parts []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				parts = append(parts, p[start:i])
			}
			start = i + 1
		}
	}
	return parts
}
