package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", DefaultPool, &Config{
		Capacity:       4,
		ExpiryDuration: time.Second,
	})
	require.NoError(t, err)
	defer p.Release()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			count.Add(1)
		})
		require.NoError(t, err)
	}
	wg.Wait()

	assert.Equal(t, int64(20), count.Load())

	stats := p.Stats()
	assert.Equal(t, int64(20), stats.SubmittedTasks)
	assert.Equal(t, int64(20), stats.CompletedTasks)
	assert.Equal(t, int64(0), stats.FailedTasks)
}

func TestPoolSubmitAfterRelease(t *testing.T) {
	p, err := NewPool("test", DefaultPool, nil)
	require.NoError(t, err)

	p.Release()

	err = p.Submit(func() {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPoolSubmitWithCanceledContext(t *testing.T) {
	p, err := NewPool("test", DefaultPool, nil)
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = p.SubmitWithContext(ctx, func() {
		t.Fatal("task must not run")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolSubmitWithContextRunsAcceptedTask(t *testing.T) {
	p, err := NewPool("test", DefaultPool, &Config{
		Capacity:       1,
		ExpiryDuration: time.Second,
	})
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	gate := make(chan struct{})
	ran := make(chan struct{})
	require.NoError(t, p.SubmitWithContext(ctx, func() {
		<-gate
		close(ran)
	}))

	// Cancellation after acceptance must not skip the task; callers
	// account for completion outside the pool.
	cancel()
	close(gate)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("accepted task was skipped after cancellation")
	}
}

func TestPoolPanicRecovery(t *testing.T) {
	recovered := make(chan interface{}, 1)
	p, err := NewPool("test", DefaultPool, &Config{
		Capacity:       2,
		ExpiryDuration: time.Second,
		PanicHandler: func(r interface{}) {
			recovered <- r
		},
	})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() {
		panic("boom")
	}))

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not invoked")
	}

	assert.Eventually(t, func() bool {
		return p.Stats().PanicRecovered == 1
	}, time.Second, 10*time.Millisecond)
}
