package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"gokernel/errno"
	"gokernel/mem"
	"gokernel/vm"
)

func newVm(npages int) (*vm.Vm_t, *mem.Physmem_t) {
	pm := mem.NewPhysmem(npages)
	return vm.NewVm(pm), pm
}

func TestReadWriteRoundTrip(t *testing.T) {
	v, _ := newVm(8)
	v.Lock()
	v.AddAnon(vm.Vpn(0x1000), 1, true)
	v.Unlock()

	require.Zero(t, v.Write(0x1000, []byte("hello")))
	var out [5]byte
	require.Zero(t, v.Read(0x1000, out[:]))
	require.Equal(t, "hello", string(out[:]))
}

func TestWriteToReadOnlyAreaBypassesXferCheck(t *testing.T) {
	// xfer performs no permission check of its own (that is Pgfault's
	// job); this documents that Write against a non-writable area still
	// succeeds at the object layer.
	v, _ := newVm(8)
	v.Lock()
	v.AddAnon(vm.Vpn(0x2000), 1, false)
	v.Unlock()
	require.Zero(t, v.Write(0x2000, []byte("x")))
}

func TestReadWriteAcrossPageBoundary(t *testing.T) {
	v, _ := newVm(8)
	v.Lock()
	v.AddAnon(vm.Vpn(0), 2, true)
	v.Unlock()

	buf := make([]byte, mem.PGSIZE+16)
	for i := range buf {
		buf[i] = byte(i)
	}
	start := mem.PGSIZE - 8
	require.Zero(t, v.Write(start, buf))

	out := make([]byte, len(buf))
	require.Zero(t, v.Read(start, out))
	require.Equal(t, buf, out)
}

func TestReadUnmappedAddressIsEFAULT(t *testing.T) {
	v, _ := newVm(8)
	var out [1]byte
	require.Equal(t, errno.EFAULT, v.Read(0x5000, out[:]))
}

func TestPgfaultPopulatesPageTableAndBumpsRefcount(t *testing.T) {
	v, pm := newVm(8)
	v.Lock()
	v.AddAnon(vm.Vpn(0x1000), 1, true)
	v.Unlock()

	ok, err := v.Pgfault(0x1000, vm.FaultWrite)
	require.True(t, ok)
	require.Zero(t, err)

	e, found := v.Pmap.Lookup(0x1000)
	require.True(t, found)
	require.Equal(t, 1, pm.Refcnt(mem.Pa_t(e.Pa)))
}

func TestPgfaultOnUnmappedAddressFails(t *testing.T) {
	v, _ := newVm(8)
	ok, err := v.Pgfault(0x9000, vm.FaultRead)
	require.False(t, ok)
	require.Equal(t, errno.EFAULT, err)
}

func TestPgfaultWriteToReadOnlyAreaFails(t *testing.T) {
	v, _ := newVm(8)
	v.Lock()
	v.AddAnon(vm.Vpn(0x1000), 1, false)
	v.Unlock()

	ok, err := v.Pgfault(0x1000, vm.FaultWrite)
	require.False(t, ok)
	require.Equal(t, errno.EFAULT, err)
}

func TestForkCOWParentAndChildDivergeOnWrite(t *testing.T) {
	v, _ := newVm(16)
	v.Lock()
	v.AddAnon(vm.Vpn(0x1000), 1, true)
	v.Unlock()
	require.Zero(t, v.Write(0x1000, []byte{0xAA}))

	child := v.Fork()

	var cbuf [1]byte
	require.Zero(t, child.Read(0x1000, cbuf[:]))
	require.Equal(t, byte(0xAA), cbuf[0], "child inherits the parent's pre-fork byte")

	require.Zero(t, child.Write(0x1000, []byte{0xBB}))

	var pbuf [1]byte
	require.Zero(t, v.Read(0x1000, pbuf[:]))
	require.Equal(t, byte(0xAA), pbuf[0], "parent's view is untouched by the child's write")

	require.Zero(t, child.Read(0x1000, cbuf[:]))
	require.Equal(t, byte(0xBB), cbuf[0])
}

func TestForkUnmapsParentPageTableSoItRefaults(t *testing.T) {
	v, _ := newVm(16)
	v.Lock()
	v.AddAnon(vm.Vpn(0x1000), 1, true)
	v.Unlock()
	v.Write(0x1000, []byte{1})
	v.Pgfault(0x1000, vm.FaultWrite)

	_, found := v.Pmap.Lookup(0x1000)
	require.True(t, found)

	v.Fork()

	_, found = v.Pmap.Lookup(0x1000)
	require.False(t, found, "fork must unmap the parent's range so the next touch re-faults against the new shadow")
}

func TestBrkGrowAndShrink(t *testing.T) {
	v, _ := newVm(16)
	v.InitBrk(0x10000, mem.PGSIZE)

	cur, err := v.Brk(0)
	require.Zero(t, err)
	require.Equal(t, 0x10000+mem.PGSIZE, cur)

	grown, err := v.Brk(0x10000 + 3*mem.PGSIZE)
	require.Zero(t, err)
	require.Equal(t, 0x10000+3*mem.PGSIZE, grown)

	shrunk, err := v.Brk(0x10000 + mem.PGSIZE)
	require.Zero(t, err)
	require.Equal(t, 0x10000+mem.PGSIZE, shrunk)
}

func TestBrkBelowStartBrkIsENOMEM(t *testing.T) {
	v, _ := newVm(16)
	v.InitBrk(0x10000, mem.PGSIZE)
	_, err := v.Brk(0x10000 - mem.PGSIZE)
	require.Equal(t, errno.ENOMEM, err)
}

func TestBrkToExactlyStartBrkShrinksHeapToEmpty(t *testing.T) {
	v, _ := newVm(16)
	v.InitBrk(0x10000, mem.PGSIZE)
	v.Brk(0x10000 + 2*mem.PGSIZE)

	cur, err := v.Brk(0x10000)
	require.Zero(t, err)
	require.Equal(t, 0x10000, cur)
}

func TestBrkWithoutInitBrkIsENOMEMNotPanic(t *testing.T) {
	v, _ := newVm(16)
	_, err := v.Brk(0x10000)
	require.Equal(t, errno.ENOMEM, err)
}

func TestMmapAnonThenMunmap(t *testing.T) {
	v, pm := newVm(16)
	addr, err := v.Mmap(0, mem.PGSIZE, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON, nil, 0)
	require.Zero(t, err)
	require.Zero(t, addr%mem.PGSIZE)

	require.Zero(t, v.Write(addr, []byte("mmapped")))
	ok, ferr := v.Pgfault(addr, vm.FaultWrite)
	require.True(t, ok)
	require.Zero(t, ferr)
	free := pm.Free()

	require.Zero(t, v.Munmap(addr, mem.PGSIZE))
	require.Greater(t, pm.Free(), free-1)

	_, found := v.Pmap.Lookup(addr)
	require.False(t, found)
}

func TestMmapRejectsBadSharingFlags(t *testing.T) {
	v, _ := newVm(16)
	_, err := v.Mmap(0, mem.PGSIZE, unix.PROT_READ, unix.MAP_ANON, nil, 0)
	require.Equal(t, errno.EINVAL, err, "neither MAP_SHARED nor MAP_PRIVATE set")
}

func TestMmapRejectsZeroLength(t *testing.T) {
	v, _ := newVm(16)
	_, err := v.Mmap(0, 0, unix.PROT_READ, unix.MAP_PRIVATE|unix.MAP_ANON, nil, 0)
	require.Equal(t, errno.EINVAL, err)
}
