/*
scheduler.go - Automated year-end rollover

PURPOSE:
  Runs leave.Rollover for the year that just ended on a cron schedule
  (default "5 0 1 1 *": five past midnight on January 1st).

DESIGN:
  - robfig/cron with SkipIfStillRunning, so a slow run is never doubled
  - The rollover is idempotent, so a re-run (manual trigger, restart
    around midnight) overwrites with the same figures

USAGE:
  scheduler, err := NewRolloverScheduler(handler.Rollover, "5 0 1 1 *", logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerRollover endpoint (manual run)
  - leave/rollover.go: The carry-over itself
*/
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/leave-engine/leave"
	"go.uber.org/zap"
)

// DefaultRolloverSchedule fires at 00:05 on January 1st.
const DefaultRolloverSchedule = "5 0 1 1 *"

// RolloverRunner is what the scheduler triggers; *leave.Rollover satisfies it.
type RolloverRunner interface {
	Run(ctx context.Context, fromYear int) (leave.RolloverReport, error)
}

// RolloverScheduler handles automated year-end rollover.
type RolloverScheduler struct {
	runner  RolloverRunner
	cron    *cron.Cron
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewRolloverScheduler registers the job; nothing runs until Start.
func NewRolloverScheduler(runner RolloverRunner, schedule string, logger *zap.Logger) (*RolloverScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schedule == "" {
		schedule = DefaultRolloverSchedule
	}
	rs := &RolloverScheduler{
		runner:  runner,
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		logger:  logger.Named("scheduler.rollover"),
		now:     time.Now,
		timeout: 5 * time.Minute,
	}
	if _, err := rs.cron.AddFunc(schedule, rs.RunNow); err != nil {
		return nil, fmt.Errorf("rollover schedule %q: %w", schedule, err)
	}
	return rs, nil
}

// Start begins the scheduler.
func (rs *RolloverScheduler) Start() {
	rs.cron.Start()
	if entries := rs.cron.Entries(); len(entries) > 0 {
		rs.logger.Info("scheduler started", zap.Time("next_run", entries[0].Next))
	}
}

// Stop stops the scheduler and waits for a running job to finish.
func (rs *RolloverScheduler) Stop() {
	<-rs.cron.Stop().Done()
	rs.logger.Info("scheduler stopped")
}

// RunNow rolls the previous calendar year into the current one.
func (rs *RolloverScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), rs.timeout)
	defer cancel()

	fromYear := rs.now().Year() - 1
	report, err := rs.runner.Run(ctx, fromYear)
	if err != nil {
		rs.logger.Error("scheduled rollover failed", zap.Int("from_year", fromYear), zap.Error(err))
		return
	}
	rs.logger.Info("scheduled rollover completed",
		zap.Int("from_year", report.FromYear),
		zap.Int("employees", len(report.Employees)),
	)
}

// NextRun returns when the job fires next (zero before Start).
func (rs *RolloverScheduler) NextRun() time.Time {
	entries := rs.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
