package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoop_RunsInOrder(t *testing.T) {
	l := NewLoop(0)
	defer l.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 1; i <= 3; i++ {
		i := i
		l.Defer(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		})
	}

	waitOrTimeout(t, &wg, time.Second)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestLoop_CloseWaitsForQueuedWork(t *testing.T) {
	l := NewLoop(4)

	var ran bool
	l.Defer(func() {
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	l.Close()

	require.True(t, ran)
}

func TestLoop_CloseIsIdempotent(t *testing.T) {
	l := NewLoop(0)
	l.Close()
	require.NotPanics(t, l.Close)
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for loop")
	}
}
