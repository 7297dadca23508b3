// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionSweeper evicts idle conversation state.
type SessionSweeper interface {
	Sweep(maxAge time.Duration) int
	Len() int
}

// LimiterPruner drops expired rate limit windows.
type LimiterPruner interface {
	Prune() int
}

// Gauge receives the number of tracked users after each sweep.
type Gauge interface {
	SetTrackedUsers(n int)
}

// Config controls the housekeeping job
type Config struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	cfg      Config
	sessions SessionSweeper
	limiter  LimiterPruner
	gauge    Gauge
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler. gauge may be nil.
func NewScheduler(cfg Config, sessions SessionSweeper, limiter LimiterPruner, gauge Gauge, logger *slog.Logger) *Scheduler {
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &Scheduler{
		cron:     c,
		cfg:      cfg,
		sessions: sessions,
		limiter:  limiter,
		gauge:    gauge,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if s.cfg.Interval <= 0 {
		return errors.New("sweep interval must be positive")
	}

	// State sweep: evicts idle sessions and stale rate limit windows
	_, err := s.cron.AddFunc("@every "+s.cfg.Interval.String(), func() { s.Sweep() })
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.Duration("interval", s.cfg.Interval),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// SweepResult reports what one sweep removed
type SweepResult struct {
	Sessions int
	Windows  int
	Tracked  int
}

// Sweep runs one housekeeping pass immediately.
func (s *Scheduler) Sweep() SweepResult {
	res := SweepResult{
		Sessions: s.sessions.Sweep(s.cfg.MaxAge),
		Windows:  s.limiter.Prune(),
		Tracked:  s.sessions.Len(),
	}
	if s.gauge != nil {
		s.gauge.SetTrackedUsers(res.Tracked)
	}

	s.logger.Debug("state sweep completed",
		slog.Int("sessions_evicted", res.Sessions),
		slog.Int("windows_pruned", res.Windows),
		slog.Int("tracked_users", res.Tracked),
	)
	return res
}
