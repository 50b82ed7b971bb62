package vfs_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gokernel/blockdev"
	"gokernel/errno"
	"gokernel/limits"
	"gokernel/vfs"
)

func newRoot(t *testing.T) *vfs.Dir {
	t.Helper()
	disk := blockdev.NewMemDisk(64)
	root, _ := vfs.NewRoot(disk)
	return root
}

func TestOpenNamevCreatesAndResolvesFile(t *testing.T) {
	root := newRoot(t)

	v, err := vfs.OpenNamev("/f", true, nil, root)
	require.Zero(t, err)
	require.False(t, v.IsDir())
	v.Put()

	v2, err := vfs.OpenNamev("/f", false, nil, root)
	require.Zero(t, err)
	require.False(t, v2.IsDir())
	v2.Put()
}

func TestOpenNamevMissingWithoutCreatIsENOENT(t *testing.T) {
	root := newRoot(t)
	_, err := vfs.OpenNamev("/nope", false, nil, root)
	require.Equal(t, errno.ENOENT, err)
}

func TestDirNamevEmptyPathIsParentItself(t *testing.T) {
	root := newRoot(t)
	parent, name, trailing, err := vfs.DirNamev("/", nil, root)
	require.Zero(t, err)
	require.Equal(t, "", name)
	require.False(t, trailing)
	require.Same(t, root, parent)
	parent.Put()
}

func TestDirNamevTrailingSlashRequiresDirectory(t *testing.T) {
	root := newRoot(t)
	f, err := vfs.OpenNamev("/f", true, nil, root)
	require.Zero(t, err)
	f.Put()

	_, err = vfs.OpenNamev("/f/", false, nil, root)
	require.Equal(t, errno.ENOTDIR, err)
}

func TestDirNamevNameTooLongIsENAMETOOLONG(t *testing.T) {
	root := newRoot(t)
	long := strings.Repeat("a", limits.NAME_MAX+1)
	_, _, _, err := vfs.DirNamev("/"+long+"/x", nil, root)
	require.Equal(t, errno.ENAMETOOLONG, err)
}

func TestMkdirRmdirRequiresEmptyChildFirst(t *testing.T) {
	root := newRoot(t)
	require.Zero(t, root.Mkdir("a"))

	aVnode, err := vfs.Lookup(root, "a")
	require.Zero(t, err)
	a := aVnode.(*vfs.Dir)
	require.Zero(t, a.Mkdir("b"))
	a.Put()

	require.Equal(t, errno.ENOTEMPTY, root.Rmdir("a"))

	aVnode2, err := vfs.Lookup(root, "a")
	require.Zero(t, err)
	a2 := aVnode2.(*vfs.Dir)
	require.Zero(t, a2.Rmdir("b"))
	a2.Put()

	require.Zero(t, root.Rmdir("a"))
	_, err = vfs.Lookup(root, "a")
	require.Equal(t, errno.ENOENT, err)
}

func TestRmdirRejectsDotAndDotDot(t *testing.T) {
	root := newRoot(t)
	require.Equal(t, errno.EINVAL, root.Rmdir("."))
	require.Equal(t, errno.ENOTEMPTY, root.Rmdir(".."))
}

func TestLookupDotAndDotDot(t *testing.T) {
	root := newRoot(t)
	require.Zero(t, root.Mkdir("a"))
	aVnode, err := vfs.Lookup(root, "a")
	require.Zero(t, err)
	a := aVnode.(*vfs.Dir)

	self, err := vfs.Lookup(a, ".")
	require.Zero(t, err)
	require.Same(t, a, self)
	self.Put()

	up, err := vfs.Lookup(a, "..")
	require.Zero(t, err)
	require.Same(t, root, up)
	up.Put()

	a.Put()
}

func TestRenameMovesEntryAtomicallyEnough(t *testing.T) {
	root := newRoot(t)
	f, err := vfs.OpenNamev("/f", true, nil, root)
	require.Zero(t, err)
	f.Put()

	require.Zero(t, root.Rename("f", root, "g"))

	_, err = vfs.Lookup(root, "f")
	require.Equal(t, errno.ENOENT, err)

	g, err := vfs.Lookup(root, "g")
	require.Zero(t, err)
	require.False(t, g.IsDir())
	g.Put()
}

func TestUnlinkRejectsDirectories(t *testing.T) {
	root := newRoot(t)
	require.Zero(t, root.Mkdir("a"))
	require.Equal(t, errno.EISDIR, root.Unlink("a"))
}
