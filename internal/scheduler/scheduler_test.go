package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mkurimoto/seminar-relay/internal/seminar"
)

func TestNewRejectsBadCronSpec(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Cron: "every day at nine"}, nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse cron spec")
}

func TestRunNowSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	var calls int32
	run := func(context.Context, bool) (seminar.Counters, error) {
		atomic.AddInt32(&calls, 1)
		return seminar.Counters{Collected: 2}, nil
	}
	s, err := New(Config{Cron: "0 9 * * *", RetryAttempts: 2, RetryDelay: time.Millisecond}, run, zap.NewNop())
	require.NoError(t, err)

	s.RunNow(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRunNowRetriesWithinBudget(t *testing.T) {
	t.Parallel()

	var calls int32
	run := func(context.Context, bool) (seminar.Counters, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return seminar.Counters{}, errors.New("store unreachable")
		}
		return seminar.Counters{}, nil
	}
	s, err := New(Config{Cron: "0 9 * * *", RetryAttempts: 1, RetryDelay: time.Millisecond}, run, zap.NewNop())
	require.NoError(t, err)

	s.RunNow(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRunNowStopsAtBudget(t *testing.T) {
	t.Parallel()

	var calls int32
	run := func(context.Context, bool) (seminar.Counters, error) {
		atomic.AddInt32(&calls, 1)
		return seminar.Counters{}, errors.New("store unreachable")
	}
	s, err := New(Config{Cron: "0 9 * * *", RetryAttempts: 2, RetryDelay: time.Millisecond}, run, zap.NewNop())
	require.NoError(t, err)

	s.RunNow(context.Background())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "initial attempt plus two retries")
}

func TestRunNowAbandonsRetryOnShutdown(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	run := func(context.Context, bool) (seminar.Counters, error) {
		atomic.AddInt32(&calls, 1)
		cancel()
		return seminar.Counters{}, errors.New("store unreachable")
	}
	s, err := New(Config{Cron: "0 9 * * *", RetryAttempts: 3, RetryDelay: time.Hour}, run, zap.NewNop())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.RunNow(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunNow did not return after context cancellation")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
