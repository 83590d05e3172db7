package report

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/hrygo/pharmacontrol/server/timezone"
)

// Scheduler runs the job once a day.
type Scheduler struct {
	runner *Runner
	clock  timezone.Clock
	spec   string
	loc    *time.Location

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler firing daily at clock in loc.
func NewScheduler(runner *Runner, clock timezone.Clock, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		runner: runner,
		clock:  clock,
		spec:   timezone.DailySpec(clock, loc),
		loc:    loc,
		logger: slog.Default(),
	}
}

// Spec returns the cron expression in use.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Start registers the job. It is a no-op when already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	entry, err := c.AddFunc(s.spec, func() {
		res := s.runner.RunOnce(ctx)
		s.logger.Info("scheduled report run done", "files", len(res.Files), "emailed", res.Emailed)
	})
	if err != nil {
		return errors.Wrapf(err, "invalid report schedule %q", s.spec)
	}
	c.Start()

	s.cron, s.entry, s.running = c, entry, true
	s.logger.Info("report scheduler started", "spec", s.spec, "next", c.Entry(entry).Next)
	return nil
}

// Stop waits for a running job and stops the scheduler. It is a no-op when
// not running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	<-c.Stop().Done()
	s.logger.Info("report scheduler stopped")
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled time, zero when stopped. Until cron has
// computed the entry it is derived from the clock.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
		return next
	}
	return timezone.NextRun(timezone.NowInTimezone(s.loc), s.clock, s.loc)
}
