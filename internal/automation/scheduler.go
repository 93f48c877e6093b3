package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/metrics"
)

const (
	defaultSweepInterval = time.Minute
	defaultLockTTL       = 5 * time.Minute
	schedulerLockScope   = "automation-scheduler"
)

// SchedulerParams configure the schedule sweep loop.
type SchedulerParams struct {
	Logger   *logger.Logger
	Metrics  *metrics.SchedulerMetrics
	Registry *Registry
	Executor *Executor
	Lock     Locker
	Interval time.Duration
	LockTTL  time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Scheduler fires schedule-triggered rules. Each sweep walks the active
// schedule rules and runs the ones whose cron expression has come due since
// their last run. Missed windows are not backfilled: however long the process
// was down, a due rule fires at most once per sweep.
type Scheduler struct {
	logg     *logger.Logger
	metrics  *metrics.SchedulerMetrics
	registry *Registry
	executor *Executor
	lock     Locker
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time

	startedAt time.Time
	wg        sync.WaitGroup
}

// NewScheduler builds a scheduler. Call Run to start sweeping.
func NewScheduler(params SchedulerParams) (*Scheduler, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if params.Executor == nil {
		return nil, fmt.Errorf("executor required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	lockTTL := params.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	lock := params.Lock
	if lock == nil {
		lock = NewNoopLock()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		logg:     params.Logger,
		metrics:  params.Metrics,
		registry: params.Registry,
		executor: params.Executor,
		lock:     lock,
		interval: interval,
		lockTTL:  lockTTL,
		now:      now,
	}, nil
}

// Run sweeps on a fixed interval until ctx is canceled, then waits for
// in-flight rule runs launched by the scheduler to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.startedAt = s.now()
	s.logg.Info(ctx, fmt.Sprintf("scheduler started; sweeping every %s", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logg.Info(ctx, "scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the active schedule rules. It is exported so the
// worker entrypoint can force a sweep on demand.
func (s *Scheduler) Sweep(ctx context.Context) {
	started := s.now()

	acquired, err := s.lock.Acquire(ctx, schedulerLockScope, s.lockTTL)
	if err != nil {
		s.metrics.IncFailure()
		s.logg.Error(ctx, "scheduler lock acquisition failed", err)
		return
	}
	if !acquired {
		s.logg.Info(ctx, "scheduler sweep skipped; another instance holds the lock")
		return
	}
	defer func() {
		if err := s.lock.Release(ctx, schedulerLockScope); err != nil {
			s.logg.Error(ctx, "scheduler lock release failed", err)
		}
	}()

	for _, rule := range s.registry.ActiveScheduleRules() {
		if !s.due(ctx, rule, started) {
			continue
		}
		s.metrics.IncDue()
		s.launch(ctx, rule, started)
	}

	s.metrics.ObserveSweep(s.now().Sub(started))
	s.metrics.IncSuccess()
}

// due reports whether the rule's cron expression has a fire time at or before
// now. A rule that has never run is measured from its creation (or from
// scheduler start when creation time is missing) so old rules do not fire a
// backlog on boot.
func (s *Scheduler) due(ctx context.Context, rule models.AutomationRule, now time.Time) bool {
	if rule.TriggerSchedule == nil || *rule.TriggerSchedule == "" {
		return false
	}
	schedule, err := cron.ParseStandard(*rule.TriggerSchedule)
	if err != nil {
		logCtx := s.logg.WithRuleID(ctx, rule.ID.String())
		s.logg.Warn(logCtx, fmt.Sprintf("unparseable schedule %q; rule skipped", *rule.TriggerSchedule))
		return false
	}

	baseline := s.startedAt
	if !rule.CreatedAt.IsZero() {
		baseline = rule.CreatedAt
	}
	if rule.LastRunAt != nil {
		baseline = *rule.LastRunAt
	}
	return !schedule.Next(baseline).After(now)
}

func (s *Scheduler) launch(ctx context.Context, rule models.AutomationRule, firedAt time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executor.Run(ctx, rule, Trigger{FiredAt: firedAt})
	}()
}
