package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeEnqueuer) EnqueueSweep(ctx context.Context) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "task-1", nil
}

func TestValidateCronSchedule(t *testing.T) {
	assert.NoError(t, ValidateCronSchedule("30 * * * *"))
	assert.NoError(t, ValidateCronSchedule("*/15 * * * *"))
	assert.Error(t, ValidateCronSchedule("not a schedule"))
	assert.Error(t, ValidateCronSchedule("0 0 * * * *"), "seconds field is not accepted")
}

func TestSweepScheduler_StartStop(t *testing.T) {
	s := NewSweepScheduler(&fakeEnqueuer{}, "30 * * * *")

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	next := s.NextRunTime()
	require.NotNil(t, next)
	assert.True(t, next.After(time.Now()))
	assert.Equal(t, 30, next.Minute())

	// Starting twice is a no-op
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRunTime())

	// Stopping twice is a no-op
	s.Stop()
}

func TestSweepScheduler_InvalidSchedule(t *testing.T) {
	s := NewSweepScheduler(&fakeEnqueuer{}, "every hour")

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.False(t, s.IsRunning())
}

func TestSweepScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewSweepScheduler(&fakeEnqueuer{}, "30 * * * *")
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, 2*time.Second, 10*time.Millisecond)
}

func TestSweepScheduler_RunNow(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := NewSweepScheduler(enq, "30 * * * *")

	id, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "task-1", id)
	assert.Equal(t, int32(1), enq.calls.Load())
}

func TestSweepScheduler_EnqueueErrorIsLogged(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("queue closed")}
	s := NewSweepScheduler(enq, "30 * * * *")

	assert.NotPanics(t, func() { s.enqueue(context.Background()) })
	assert.Equal(t, int32(1), enq.calls.Load())
}
