package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerManager_ProcessesJobsAndExits(t *testing.T) {
	wm := NewWorkerManager(10, 3, nil)

	var processed int64
	done := make(chan struct{}, 5)
	wm.SetWorker(func(_ int, job interface{}) {
		atomic.AddInt64(&processed, int64(job.(int)))
		done <- struct{}{}
	})

	finished := make(chan error, 1)
	go func() { finished <- wm.Start() }()

	for i := 1; i <= 5; i++ {
		require.True(t, wm.Enqueue(i))
	}
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.EqualValues(t, 15, atomic.LoadInt64(&processed))
	assert.Equal(t, 0, wm.Backlog())

	wm.Exit()
	wm.Exit()

	select {
	case err := <-finished:
		assert.ErrorIs(t, err, ErrWorkersTerminated)
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
	assert.False(t, wm.Enqueue(6))
}

func TestWorkerManager_Backlog(t *testing.T) {
	wm := NewWorkerManager(4, 1, nil)
	require.True(t, wm.Enqueue("a"))
	require.True(t, wm.Enqueue("b"))
	assert.Equal(t, 2, wm.Backlog())
	wm.Exit()
}
