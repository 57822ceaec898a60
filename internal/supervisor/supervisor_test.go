package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthScope/internal/exception"
)

type tagCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *tagCounter) Restarted(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[tag]++
}

func (c *tagCounter) get(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[tag]
}

func TestSupervisorWaitsMinIntervalAfterTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var starts []time.Time
	unit := UnitFunc(func(ctx context.Context) error {
		mu.Lock()
		starts = append(starts, time.Now())
		n := len(starts)
		mu.Unlock()
		if n >= 3 {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		}
		return exception.ErrReceiveTimeout
	})

	rec := &tagCounter{}
	var failures []error
	sup := New(Config{
		Tag:         "binance",
		MinInterval: 30 * time.Millisecond,
		MaxInterval: time.Second,
		Recorder:    rec,
		OnFailure:   func(_ context.Context, err error) { failures = append(failures, err) },
	}, unit, nil)

	err := sup.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, starts, 3)
	assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), 30*time.Millisecond)
	assert.GreaterOrEqual(t, starts[2].Sub(starts[1]), 60*time.Millisecond, "back-off doubles")
	assert.Equal(t, 2, rec.get("binance"))
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0], exception.ErrReceiveTimeout)
}

func TestSupervisorTreatsCleanExitAsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := 0
	unit := UnitFunc(func(ctx context.Context) error {
		runs++
		if runs == 2 {
			cancel()
		}
		return nil
	})

	rec := &tagCounter{}
	sup := New(Config{Tag: "okx", MinInterval: time.Millisecond, Recorder: rec}, unit, nil)
	assert.ErrorIs(t, sup.Run(ctx), context.Canceled)
	assert.Equal(t, 2, runs)
	assert.Equal(t, 1, rec.get("okx"))
}

func TestSupervisorsAreIsolated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	failing := New(Config{Tag: "bad", MinInterval: 5 * time.Millisecond}, UnitFunc(func(context.Context) error {
		return exception.ErrConnection
	}), nil)

	var healthyRuns int
	healthy := New(Config{Tag: "good", MinInterval: 5 * time.Millisecond}, UnitFunc(func(ctx context.Context) error {
		healthyRuns++
		<-ctx.Done()
		return ctx.Err()
	}), nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = failing.Run(ctx) }()
	go func() { defer wg.Done(); _ = healthy.Run(ctx) }()
	wg.Wait()

	assert.Equal(t, 1, healthyRuns)
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("boom")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 2, time.Millisecond, func(context.Context) error {
			calls++
			return exception.ErrBootstrap
		})
		require.ErrorIs(t, err, exception.ErrBootstrap)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := Retry(ctx, 5, time.Hour, func(context.Context) error { return errors.New("boom") })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
