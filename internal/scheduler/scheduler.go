// Package scheduler runs jobs on a cron cadence with panic recovery and
// overlap protection, so a failing cycle never takes the scheduler down.
package scheduler

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of scheduled work. A returned error is logged; the next
// scheduled run proceeds normally.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron with zap logging. Jobs are chained with
// Recover (a panicking job is contained) and SkipIfStillRunning (a slow cycle
// is never run concurrently with itself).
type Scheduler struct {
	cron *cron.Cron
	lg   *zap.Logger

	// baseCtx is assigned in Run before the cron starts and is the parent
	// context for every job invocation.
	baseCtx context.Context
}

// New creates a stopped Scheduler; register jobs with Schedule, then call Run.
func New(lg *zap.Logger) *Scheduler {
	cl := cronLogger{lg: lg}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(
				cron.Recover(cl),
				cron.SkipIfStillRunning(cl),
			),
		),
		lg:      lg,
		baseCtx: context.Background(),
	}
}

// Schedule registers a job under the given cron expression. Standard 5-field
// specs and descriptors such as "@every 30s" are accepted.
func (s *Scheduler) Schedule(spec, name string, job Job) error {
	lg := s.lg.With(zap.String("job", name))
	_, err := s.cron.AddFunc(spec, func() {
		if err := job(s.baseCtx); err != nil {
			lg.Error("Scheduled job failed", zap.Error(err))
		}
	})
	if err != nil {
		return errors.Wrapf(err, "schedule %q", spec)
	}
	lg.Info("Job scheduled", zap.String("spec", spec))
	return nil
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// any in-flight job to finish. The given context becomes the parent context
// of every job invocation, so it carries the process logger. Cancellation is
// stripped so that a cycle already in flight during shutdown can finish its
// bulk write; Stop waits for it.
func (s *Scheduler) Run(ctx context.Context) {
	s.baseCtx = context.WithoutCancel(ctx)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.lg.Info("Scheduler stopped")
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	lg *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.lg.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.lg.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
