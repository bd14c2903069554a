package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fxmd-ingestor/internal/logging"
)

func TestPool_RunsJobToCompletion(t *testing.T) {
	p := New(Config{
		Name: "test", Concurrency: 1, RatePerSecond: 1000,
		MaxAttempts: 1, BackoffStart: time.Millisecond, JobTimeout: time.Second, QueueSize: 4,
	}, logging.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var ran int32
	done := make(chan struct{})
	err := p.Enqueue(ctx, Job{ID: "1", Run: func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		close(done)
		return nil
	}})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}
	require.EqualValues(t, 1, atomic.LoadInt32(&ran))
}

func TestPool_RetriesOnFailureThenSucceeds(t *testing.T) {
	p := New(Config{
		Name: "test", Concurrency: 1, RatePerSecond: 1000,
		MaxAttempts: 3, BackoffStart: time.Millisecond, JobTimeout: time.Second, QueueSize: 4,
	}, logging.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var attempts int32
	done := make(chan struct{})
	err := p.Enqueue(ctx, Job{ID: "1", Run: func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded after retries")
	}
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestPool_DropsJobAfterExhaustingRetries(t *testing.T) {
	p := New(Config{
		Name: "test", Concurrency: 1, RatePerSecond: 1000,
		MaxAttempts: 2, BackoffStart: time.Millisecond, JobTimeout: time.Second, QueueSize: 4,
	}, logging.Noop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var attempts int32
	allDone := make(chan struct{})
	err := p.Enqueue(ctx, Job{ID: "1", Run: func(ctx context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n == 2 {
			close(allDone)
		}
		return errors.New("permanent")
	}})
	require.NoError(t, err)

	select {
	case <-allDone:
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached final attempt")
	}
	time.Sleep(20 * time.Millisecond)
	require.EqualValues(t, 2, atomic.LoadInt32(&attempts), "no attempt beyond MaxAttempts")
}
