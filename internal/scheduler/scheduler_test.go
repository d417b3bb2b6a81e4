package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedule_InvalidSpec(t *testing.T) {
	s := New(zap.NewNop())

	err := s.Schedule("not a cron spec", "recalc", func(context.Context) error {
		return nil
	})
	require.Error(t, err)
}

func TestRun_InvokesJob(t *testing.T) {
	s := New(zap.NewNop())

	var runs atomic.Int64
	err := s.Schedule("@every 1s", "recalc", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(3 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job was not invoked within 3s")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestRun_JobErrorDoesNotStopScheduler(t *testing.T) {
	s := New(zap.NewNop())

	var runs atomic.Int64
	err := s.Schedule("@every 1s", "recalc", func(context.Context) error {
		runs.Add(1)
		return errors.New("store unreachable")
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	// Two ticks fit in the window; the first error must not cancel the second.
	assert.GreaterOrEqual(t, runs.Load(), int64(2))
}
