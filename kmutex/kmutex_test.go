package kmutex_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gokernel/errno"
	"gokernel/kmutex"
	"gokernel/sched"
)

func TestLockUnlockUncontended(t *testing.T) {
	m := kmutex.New()
	a := sched.NewThread(1)

	m.Lock(a)
	m.Unlock(a)
}

func TestRecursiveLockPanics(t *testing.T) {
	m := kmutex.New()
	a := sched.NewThread(1)
	m.Lock(a)
	require.Panics(t, func() { m.Lock(a) })
}

func TestUnlockByNonHolderPanics(t *testing.T) {
	m := kmutex.New()
	a := sched.NewThread(1)
	b := sched.NewThread(2)
	m.Lock(a)
	require.Panics(t, func() { m.Unlock(b) })
}

func TestUnlockHandsLockDirectlyToWaiter(t *testing.T) {
	m := kmutex.New()
	a := sched.NewThread(1)
	b := sched.NewThread(2)

	m.Lock(a)

	acquired := make(chan struct{})
	go func() {
		m.Lock(b)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("b acquired the lock while a still held it")
	case <-time.After(10 * time.Millisecond):
	}

	m.Unlock(a)
	<-acquired
	m.Unlock(b)
}

func TestLockCancellableReturnsEINTRWhenCancelledFirst(t *testing.T) {
	m := kmutex.New()
	a := sched.NewThread(1)
	b := sched.NewThread(2)

	m.Lock(a)

	done := make(chan errno.Err_t, 1)
	go func() { done <- m.LockCancellable(b) }()
	time.Sleep(5 * time.Millisecond)
	sched.Cancel(b)

	require.Equal(t, errno.EINTR, <-done)

	m.Unlock(a)
}

func TestLockCancellableAcquiresNormallyWhenNeverCancelled(t *testing.T) {
	m := kmutex.New()
	a := sched.NewThread(1)
	b := sched.NewThread(2)

	m.Lock(a)

	done := make(chan errno.Err_t, 1)
	go func() { done <- m.LockCancellable(b) }()
	time.Sleep(5 * time.Millisecond)

	m.Unlock(a)
	require.Equal(t, errno.Err_t(0), <-done)

	m.Unlock(b)
}

func TestLockCancellableFastPathWhenMutexFree(t *testing.T) {
	m := kmutex.New()
	a := sched.NewThread(1)
	require.Equal(t, errno.Err_t(0), m.LockCancellable(a))
	m.Unlock(a)
}
