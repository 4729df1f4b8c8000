package dataset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zipcode-cli/internal/model"
)

type countingAccessor struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingAccessor) Name() string { return "counting" }

func (c *countingAccessor) Fetch(context.Context) ([]model.Record, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return []model.Record{{Zip: "80202"}}, nil
}

func TestCache_ServesFromMemory(t *testing.T) {
	t.Parallel()
	inner := &countingAccessor{}
	cache := NewCache(1, 0)
	a := cache.Wrap(inner)

	for range 3 {
		records, err := a.Fetch(context.Background())
		require.NoError(t, err)
		assert.Len(t, records, 1)
	}
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, "counting", a.Name())
}

func TestCache_DoesNotCacheErrors(t *testing.T) {
	t.Parallel()
	inner := &countingAccessor{err: errors.New("boom")}
	a := NewCache(1, 0).Wrap(inner)

	_, err := a.Fetch(context.Background())
	require.Error(t, err)
	_, err = a.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCache_TTLExpiry(t *testing.T) {
	t.Parallel()
	inner := &countingAccessor{}
	a := NewCache(1, 20*time.Millisecond).Wrap(inner)

	_, err := a.Fetch(context.Background())
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()
	inner := &countingAccessor{}
	cache := NewCache(0, 0)
	a := cache.Wrap(inner)

	_, err := a.Fetch(context.Background())
	require.NoError(t, err)
	cache.Invalidate("counting")
	_, err = a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCache_CollapsesConcurrentLoads(t *testing.T) {
	t.Parallel()
	inner := &countingAccessor{delay: 50 * time.Millisecond}
	a := NewCache(1, 0).Wrap(inner)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Fetch(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), inner.calls.Load())
}

type blockingAccessor struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingAccessor) Name() string { return "blocking" }

func (b *blockingAccessor) Fetch(ctx context.Context) ([]model.Record, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return []model.Record{{Zip: "80202"}}, nil
	}
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	t.Parallel()
	inner := &blockingAccessor{started: make(chan struct{}), release: make(chan struct{})}
	a := NewCache(1, 0).Wrap(inner)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := a.Fetch(leaderCtx)
		leaderErr <- err
	}()
	<-inner.started

	type result struct {
		records []model.Record
		err     error
	}
	follower := make(chan result, 1)
	go func() {
		records, err := a.Fetch(context.Background())
		follower <- result{records, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	close(inner.release)
	res := <-follower
	require.NoError(t, res.err)
	assert.Len(t, res.records, 1)
	assert.Equal(t, int32(1), inner.calls.Load())
}
