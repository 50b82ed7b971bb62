package fd

import (
	"sync"

	"gokernel/vfs"
)

// Cwd_t holds a process's current-working-directory vnode with a
// strong reference, per spec.md §3's Process data model.
type Cwd_t struct {
	mu    sync.Mutex
	vnode vfs.Vnode
}

// NewCwd takes a fresh reference on v and returns a Cwd_t wrapping it.
func NewCwd(v vfs.Vnode) *Cwd_t {
	v.Ref()
	return &Cwd_t{vnode: v}
}

// Get returns the current cwd vnode without taking a new reference;
// callers that hand it to something longer-lived must Ref it
// themselves.
func (c *Cwd_t) Get() vfs.Vnode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vnode
}

// Chdir replaces the cwd with nv, putting the old one. Takes its own
// reference on nv first so the old vnode is never put while it might
// still be the last reference keeping it resident.
func (c *Cwd_t) Chdir(nv vfs.Vnode) {
	nv.Ref()
	c.mu.Lock()
	old := c.vnode
	c.vnode = nv
	c.mu.Unlock()
	old.Put()
}

// Clone returns a new Cwd_t taking a fresh reference on the same
// vnode, for fork's "take a fresh reference on the parent's working
// directory" step.
func (c *Cwd_t) Clone() *Cwd_t {
	return NewCwd(c.Get())
}
