// Package jobs runs scheduled maintenance over the booking store.
package jobs

import (
	"agenda/pkg/logger"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Completer moves confirmed bookings whose end has passed to completed.
type Completer interface {
	CompleteDue(ctx context.Context) (int, error)
}

type Sweeper struct {
	cron      *cron.Cron
	completer Completer
	timeout   time.Duration
	log       *logger.Logger
}

// NewSweeper schedules the completion sweep on a standard five-field cron spec.
// Runs never overlap: a tick arriving while one is in progress is skipped.
func NewSweeper(schedule string, completer Completer, timeout time.Duration, log *logger.Logger) (*Sweeper, error) {
	log = log.Component("sweeper")
	s := &Sweeper{
		completer: completer,
		timeout:   timeout,
		log:       log,
	}

	cl := cronLogger{log: log}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("invalid sweeper schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
	s.log.Info("Completion sweeper started", "next_run", s.cron.Entries()[0].Next)
}

// Close stops scheduling and waits for a running sweep to finish.
func (s *Sweeper) Close() error {
	<-s.cron.Stop().Done()
	s.log.Info("Completion sweeper stopped")
	return nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("Completion sweep failed", "error", err)
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := s.completer.CompleteDue(ctx)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.log.Info("Completed past bookings", "count", n, "duration_ms", time.Since(start).Milliseconds())
	}
	return n, nil
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
