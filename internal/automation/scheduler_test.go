package automation

import (
	"context"
	"testing"
	"time"

	"github.com/brandops/platform-backend/pkg/types"
)

type denyLock struct{ acquires int }

func (d *denyLock) Acquire(context.Context, string, time.Duration) (bool, error) {
	d.acquires++
	return false, nil
}
func (d *denyLock) Release(context.Context, string) error { return nil }

func newTestScheduler(t *testing.T, exec *Executor, reg *Registry, lock Locker, now time.Time) *Scheduler {
	t.Helper()
	sched, err := NewScheduler(SchedulerParams{
		Logger:   testLogger(),
		Registry: reg,
		Executor: exec,
		Lock:     lock,
		Interval: time.Minute,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func waitForCalls(t *testing.T, action *fakeAction, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for action.callCount() < want {
		select {
		case <-deadline:
			t.Fatalf("expected %d calls, got %d", want, action.callCount())
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSweepFiresDueRule(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	action := &fakeAction{name: "digest"}
	exec.RegisterHandler(action)

	now := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)

	rule := scheduleRule("every minute", "* * * * *")
	rule.Actions = types.ActionList{{Type: "digest"}}
	rule.CreatedAt = now.Add(-10 * time.Minute)
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sched := newTestScheduler(t, exec, reg, nil, now)
	sched.Sweep(ctx)
	waitForCalls(t, action, 1)

	// The run recorded its finish time, so an immediate second sweep at the
	// same instant finds nothing due.
	deadline := time.After(time.Second)
	for {
		got, _ := reg.Get(rule.ID)
		if got.LastRunAt != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("run was never recorded")
		case <-time.After(time.Millisecond):
		}
	}
	sched.Sweep(ctx)
	time.Sleep(20 * time.Millisecond)
	if action.callCount() != 1 {
		t.Fatalf("rule must not refire within the same window, got %d calls", action.callCount())
	}
}

func TestSweepSkipsRuleNotYetDue(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	action := &fakeAction{name: "digest"}
	exec.RegisterHandler(action)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rule := scheduleRule("nightly", "0 2 * * *")
	rule.Actions = types.ActionList{{Type: "digest"}}
	rule.CreatedAt = now.Add(-time.Hour)
	lastRun := now.Add(-time.Hour)
	rule.LastRunAt = &lastRun
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sched := newTestScheduler(t, exec, reg, nil, now)
	sched.Sweep(ctx)
	time.Sleep(20 * time.Millisecond)
	if action.callCount() != 0 {
		t.Fatal("rule must not fire before its next cron time")
	}
}

func TestSweepFiresOnceAfterDowntime(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	action := &fakeAction{name: "digest"}
	exec.RegisterHandler(action)

	now := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)

	// Last ran hours ago; dozens of windows were missed while down.
	rule := scheduleRule("every minute", "* * * * *")
	rule.Actions = types.ActionList{{Type: "digest"}}
	rule.CreatedAt = now.Add(-24 * time.Hour)
	lastRun := now.Add(-6 * time.Hour)
	rule.LastRunAt = &lastRun
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sched := newTestScheduler(t, exec, reg, nil, now)
	sched.Sweep(ctx)
	waitForCalls(t, action, 1)
	time.Sleep(20 * time.Millisecond)
	if action.callCount() != 1 {
		t.Fatalf("missed windows must not be backfilled, got %d calls", action.callCount())
	}
}

func TestSweepSkipsWhenLockDenied(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	action := &fakeAction{name: "digest"}
	exec.RegisterHandler(action)

	now := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)
	rule := scheduleRule("every minute", "* * * * *")
	rule.Actions = types.ActionList{{Type: "digest"}}
	rule.CreatedAt = now.Add(-10 * time.Minute)
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	lock := &denyLock{}
	sched := newTestScheduler(t, exec, reg, lock, now)
	sched.Sweep(ctx)
	time.Sleep(20 * time.Millisecond)

	if lock.acquires != 1 {
		t.Fatalf("expected one acquire attempt, got %d", lock.acquires)
	}
	if action.callCount() != 0 {
		t.Fatal("sweep must not fire rules without the lock")
	}
}

func TestSweepIgnoresUnparseableSchedule(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	action := &fakeAction{name: "digest"}
	exec.RegisterHandler(action)

	now := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)
	rule := scheduleRule("broken", "not a cron line")
	rule.Actions = types.ActionList{{Type: "digest"}}
	rule.CreatedAt = now.Add(-10 * time.Minute)
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sched := newTestScheduler(t, exec, reg, nil, now)
	sched.Sweep(ctx)
	time.Sleep(20 * time.Millisecond)
	if action.callCount() != 0 {
		t.Fatal("unparseable schedules must be skipped, not fired")
	}
}

func TestSchedulerRespectsRuleDeactivationBetweenSweeps(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	action := &fakeAction{name: "digest"}
	exec.RegisterHandler(action)

	now := time.Date(2026, 3, 10, 12, 0, 30, 0, time.UTC)
	rule := scheduleRule("every minute", "* * * * *")
	rule.Actions = types.ActionList{{Type: "digest"}}
	rule.CreatedAt = now.Add(-10 * time.Minute)
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := reg.Deactivate(ctx, rule.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	sched := newTestScheduler(t, exec, reg, nil, now)
	sched.Sweep(ctx)
	time.Sleep(20 * time.Millisecond)
	if action.callCount() != 0 {
		t.Fatal("deactivated rules must not fire")
	}
}
