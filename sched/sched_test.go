package sched_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gokernel/errno"
	"gokernel/sched"
)

func TestSleepOnWakeupOnFIFO(t *testing.T) {
	q := sched.NewQueue()
	a := sched.NewThread(1)
	b := sched.NewThread(2)

	woke := make(chan int, 2)
	go func() { sched.SleepOn(a, q); woke <- a.Id }()
	go func() { sched.SleepOn(b, q); woke <- b.Id }()

	for q.Len() < 2 {
		time.Sleep(time.Millisecond)
	}

	require.Equal(t, a.Id, sched.WakeupOn(q).Id)
	require.Equal(t, a.Id, <-woke)

	require.Equal(t, b.Id, sched.WakeupOn(q).Id)
	require.Equal(t, b.Id, <-woke)
}

func TestBroadcastOnWakesEveryoneAndEmptiesQueue(t *testing.T) {
	q := sched.NewQueue()
	const n = 4
	woke := make(chan int, n)
	for i := 0; i < n; i++ {
		th := sched.NewThread(i)
		go func() { sched.SleepOn(th, q); woke <- th.Id }()
	}
	for q.Len() < n {
		time.Sleep(time.Millisecond)
	}

	sched.BroadcastOn(q)
	for i := 0; i < n; i++ {
		<-woke
	}
	require.True(t, q.Empty())
}

func TestCancelBeforeSleepReturnsEINTRImmediately(t *testing.T) {
	q := sched.NewQueue()
	a := sched.NewThread(1)
	sched.Cancel(a)

	err := sched.CancellableSleepOn(a, q)
	require.Equal(t, errno.EINTR, err)
	require.True(t, q.Empty())
}

func TestCancelWhileSleepingLiftsOutOfQueue(t *testing.T) {
	q := sched.NewQueue()
	a := sched.NewThread(1)

	done := make(chan errno.Err_t, 1)
	go func() { done <- sched.CancellableSleepOn(a, q) }()

	for q.Empty() {
		time.Sleep(time.Millisecond)
	}
	sched.Cancel(a)

	require.Equal(t, errno.EINTR, <-done)
	require.True(t, q.Empty())
}

func TestMakeRunnablePanicsIfAlreadyRunnable(t *testing.T) {
	a := sched.NewThread(1)
	require.Equal(t, sched.Run, a.GetState())
	require.Panics(t, func() { sched.MakeRunnable(a) })
}

func TestPopFrontFIFOOrderWithoutResuming(t *testing.T) {
	q := sched.NewQueue()
	a := sched.NewThread(1)
	b := sched.NewThread(2)

	go sched.SleepOn(a, q)
	for q.Len() < 1 {
		time.Sleep(time.Millisecond)
	}
	go sched.SleepOn(b, q)
	for q.Len() < 2 {
		time.Sleep(time.Millisecond)
	}

	require.Equal(t, a.Id, sched.PopFront(q).Id)
	require.Equal(t, b.Id, sched.PopFront(q).Id)
	require.Nil(t, sched.PopFront(q))

	sched.Resume(a, 0)
	sched.Resume(b, 0)
}
