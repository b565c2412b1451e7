package rpc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_LoginIsStatic(t *testing.T) {
	t.Parallel()

	r := NewRouter(func(context.Context, string) (int, error) {
		t.Fatal("login must not be resolved remotely")
		return 0, nil
	}, time.Second)

	id, err := r.Resolve(context.Background(), LoginNamespace)
	require.NoError(t, err)
	assert.Equal(t, 1, id)
}

func TestRouter_SingleFlight(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	r := NewRouter(func(_ context.Context, name string) (int, error) {
		calls.Add(1)
		<-release
		return 3, nil
	}, time.Second)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.Resolve(context.Background(), "history")
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, id := range results {
		assert.Equal(t, 3, id)
	}

	// Cached now.
	id, err := r.Resolve(context.Background(), "history")
	require.NoError(t, err)
	assert.Equal(t, 3, id)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRouter_InvalidateForcesLookup(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := NewRouter(func(context.Context, string) (int, error) {
		return int(calls.Add(1)) + 1, nil
	}, time.Second)

	id, err := r.Resolve(context.Background(), "database")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	b, ok := r.Lookup("database")
	require.True(t, ok)
	assert.Equal(t, Binding{Name: "database", APIID: 2}, b)

	r.Invalidate()
	_, ok = r.Lookup("database")
	assert.False(t, ok)
	assert.Empty(t, r.Bindings())

	id, err = r.Resolve(context.Background(), "database")
	require.NoError(t, err)
	assert.Equal(t, 3, id)
}

func TestRouter_StaleLookupNotCached(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRouter(func(context.Context, string) (int, error) {
		close(started)
		<-release
		return 7, nil
	}, time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Resolve(context.Background(), "database")
	}()

	<-started
	r.Invalidate()
	close(release)
	<-done

	_, ok := r.Lookup("database")
	assert.False(t, ok, "binding from a previous connection must not survive invalidation")
}

func TestRouter_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := NewRouter(func(context.Context, string) (int, error) {
		if calls.Add(1) == 1 {
			return 0, ErrUnknownNamespace
		}
		return 4, nil
	}, time.Second)

	_, err := r.Resolve(context.Background(), "network_broadcast")
	require.ErrorIs(t, err, ErrUnknownNamespace)

	id, err := r.Resolve(context.Background(), "network_broadcast")
	require.NoError(t, err)
	assert.Equal(t, 4, id)
}

func TestRouter_CallerCancelDoesNotAbortOthers(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	r := NewRouter(func(ctx context.Context, _ string) (int, error) {
		select {
		case <-release:
			return 5, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}, time.Second)

	impatient, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Resolve(impatient, "history")
		errCh <- err
	}()

	patient := make(chan int, 1)
	go func() {
		id, err := r.Resolve(context.Background(), "history")
		assert.NoError(t, err)
		patient <- id
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	assert.True(t, errors.Is(<-errCh, context.Canceled))

	close(release)
	assert.Equal(t, 5, <-patient)
}
