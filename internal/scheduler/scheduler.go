// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron runner whose jobs receive a context that is
// cancelled on Stop. A job still running when its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New creates a stopped Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add schedules job under spec, which accepts standard five-field cron
// expressions and descriptors such as "@every 1h".
func (s *Scheduler) Add(name, spec string, job func(ctx context.Context)) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.logger.Debug("Scheduled job started", "job", name)
		job(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Info("Job scheduled", "job", name, "schedule", spec)
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once Stop has been called.
func (s *Scheduler) Done() <-chan struct{} {
	return s.ctx.Done()
}

// cronLogger adapts slog to cron.Logger. cron reports every wakeup through
// Info, so it goes to debug.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
