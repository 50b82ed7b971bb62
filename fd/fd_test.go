package fd_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"gokernel/blockdev"
	"gokernel/errno"
	"gokernel/fd"
	"gokernel/stat"
	"gokernel/vfs"
)

func newCtx(t *testing.T) *fd.Ctx {
	t.Helper()
	disk := blockdev.NewMemDisk(64)
	root, _ := vfs.NewRoot(disk)
	return fd.NewCtx(root)
}

func TestOpenWriteLseekReadRoundTrip(t *testing.T) {
	c := newCtx(t)
	fdn, err := c.Open("/f", unix.O_CREAT|unix.O_RDWR)
	require.Zero(t, err)

	n, err := c.Write(fdn, []byte("abc"))
	require.Zero(t, err)
	require.Equal(t, 3, n)

	pos, err := c.Lseek(fdn, 0, unix.SEEK_SET)
	require.Zero(t, err)
	require.Equal(t, int64(0), pos)

	buf := make([]byte, 3)
	n, err = c.Read(fdn, buf)
	require.Zero(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(buf))

	require.Zero(t, c.Close(fdn))
	_, err = c.Read(fdn, buf)
	require.Equal(t, errno.EBADF, err)
}

func TestOpenRejectsWriteOnDirectory(t *testing.T) {
	c := newCtx(t)
	require.Zero(t, c.Mkdir("/d"))
	_, err := c.Open("/d", unix.O_RDWR)
	require.Equal(t, errno.EISDIR, err)
}

func TestOpenRejectsBadAccessMode(t *testing.T) {
	c := newCtx(t)
	_, err := c.Open("/f", unix.O_CREAT|unix.O_RDWR|unix.O_WRONLY)
	require.Equal(t, errno.EINVAL, err)
}

func TestAppendAlwaysWritesAtEOF(t *testing.T) {
	c := newCtx(t)
	fdn, err := c.Open("/f", unix.O_CREAT|unix.O_RDWR)
	require.Zero(t, err)
	c.Write(fdn, []byte("hello"))
	c.Close(fdn)

	afdn, err := c.Open("/f", unix.O_WRONLY|unix.O_APPEND)
	require.Zero(t, err)
	n, err := c.Write(afdn, []byte("!"))
	require.Zero(t, err)
	require.Equal(t, 1, n)

	rfdn, err := c.Open("/f", unix.O_RDONLY)
	require.Zero(t, err)
	buf := make([]byte, 6)
	n, err = c.Read(rfdn, buf)
	require.Zero(t, err)
	require.Equal(t, "hello!", string(buf[:n]))
}

func TestDupSharesCursorDup2ClosesOldOccupant(t *testing.T) {
	c := newCtx(t)
	fdn, err := c.Open("/f", unix.O_CREAT|unix.O_RDWR)
	require.Zero(t, err)
	c.Write(fdn, []byte("xyz"))
	c.Lseek(fdn, 0, unix.SEEK_SET)

	dupfd, err := c.Dup(fdn)
	require.Zero(t, err)
	require.NotEqual(t, fdn, dupfd)

	buf := make([]byte, 1)
	c.Read(fdn, buf) // advances the shared cursor
	n, err := c.Read(dupfd, buf)
	require.Zero(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte('y'), buf[0], "dup'd fd shares the same open-file cursor")

	other, err := c.Open("/f", unix.O_RDONLY)
	require.Zero(t, err)
	got, err := c.Dup2(fdn, other)
	require.Zero(t, err)
	require.Equal(t, other, got)
}

func TestPipeWriteThenRead(t *testing.T) {
	c := newCtx(t)
	rfd, wfd, err := c.Pipe()
	require.Zero(t, err)

	n, err := c.Write(wfd, []byte("hi"))
	require.Zero(t, err)
	require.Equal(t, 2, n)

	buf := make([]byte, 2)
	n, err = c.Read(rfd, buf)
	require.Zero(t, err)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestGetdentsListsEntriesAndStopsAtEOF(t *testing.T) {
	c := newCtx(t)
	require.Zero(t, c.Mkdir("/d"))
	f1, _ := c.Open("/d/a", unix.O_CREAT|unix.O_RDWR)
	c.Close(f1)
	f2, _ := c.Open("/d/b", unix.O_CREAT|unix.O_RDWR)
	c.Close(f2)

	dfd, err := c.Open("/d", unix.O_RDONLY)
	require.Zero(t, err)

	names, err := c.Getdents(dfd, 10)
	require.Zero(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, names)

	more, err := c.Getdents(dfd, 10)
	require.Zero(t, err)
	require.Empty(t, more)
}

func TestMkdirRmdirUnlinkStatChdir(t *testing.T) {
	c := newCtx(t)
	require.Zero(t, c.Mkdir("/d"))

	var st stat.Stat_t
	require.Zero(t, c.Stat("/d", &st))
	require.True(t, st.IsDir())

	require.Zero(t, c.Chdir("/d"))
	fdn, err := c.Open("f", unix.O_CREAT|unix.O_RDWR)
	require.Zero(t, err)
	c.Close(fdn)

	require.Zero(t, c.Unlink("f"))
	require.Equal(t, errno.ENOENT, c.Unlink("f"))

	require.Zero(t, c.Chdir("/"))
	require.Zero(t, c.Rmdir("d"))
}

func TestRenameAcrossDirectories(t *testing.T) {
	c := newCtx(t)
	require.Zero(t, c.Mkdir("/src"))
	require.Zero(t, c.Mkdir("/dst"))
	fdn, err := c.Open("/src/f", unix.O_CREAT|unix.O_RDWR)
	require.Zero(t, err)
	c.Close(fdn)

	require.Zero(t, c.Rename("/src/f", "/dst/f"))
	require.Equal(t, errno.ENOENT, c.Stat("/src/f", new(stat.Stat_t)))

	var st stat.Stat_t
	require.Zero(t, c.Stat("/dst/f", &st))
}

func TestForkDuplicatesFdTableWithSharedOpenFile(t *testing.T) {
	c := newCtx(t)
	fdn, err := c.Open("/f", unix.O_CREAT|unix.O_RDWR)
	require.Zero(t, err)
	c.Write(fdn, []byte("hi"))

	child := c.Fork()
	child.Lseek(fdn, 0, unix.SEEK_SET)
	buf := make([]byte, 2)
	n, err := child.Read(fdn, buf)
	require.Zero(t, err)
	require.Equal(t, "hi", string(buf[:n]))
}
