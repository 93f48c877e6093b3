package automation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled, Output: io.Discard})
}

type fakeAction struct {
	name  string
	err   error
	sleep time.Duration

	mu    sync.Mutex
	calls []Invocation
}

func (f *fakeAction) Type() string { return f.name }

func (f *fakeAction) Execute(ctx context.Context, inv Invocation) error {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func (f *fakeAction) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Envelope
}

func (p *capturingPublisher) Publish(_ context.Context, name string, payload map[string]any, evtCtx eventbus.EventContext) (eventbus.Envelope, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	evt := eventbus.Envelope{
		ID:         uuid.New(),
		Name:       name,
		Payload:    payload,
		Context:    evtCtx,
		OccurredAt: time.Now().UTC(),
	}
	p.events = append(p.events, evt)
	return evt, nil
}

func (p *capturingPublisher) published() []eventbus.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]eventbus.Envelope, len(p.events))
	copy(out, p.events)
	return out
}

func newTestExecutor(t *testing.T, bus Publisher, timeout time.Duration) (*Executor, *Registry) {
	t.Helper()
	reg := NewRegistry(nil)
	exec, err := NewExecutor(ExecutorParams{
		Logger:        testLogger(),
		Registry:      reg,
		Bus:           bus,
		ActionTimeout: timeout,
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	return exec, reg
}

func ruleWithActions(actions ...types.ActionConfig) models.AutomationRule {
	trigger := "pricing.changed"
	return models.AutomationRule{
		ID:           uuid.New(),
		Name:         "test rule",
		TriggerType:  enums.TriggerTypeEvent,
		TriggerEvent: &trigger,
		Actions:      actions,
		IsActive:     true,
	}
}

func eventTrigger(name string) Trigger {
	return Trigger{
		Event: &eventbus.Envelope{
			ID:         uuid.New(),
			Name:       name,
			Payload:    map[string]any{"delta": float64(12)},
			OccurredAt: time.Now().UTC(),
		},
		FiredAt: time.Now().UTC(),
	}
}

func TestRunContinuesPastFailingAction(t *testing.T) {
	pub := &capturingPublisher{}
	exec, reg := newTestExecutor(t, pub, time.Second)

	first := &fakeAction{name: "first"}
	second := &fakeAction{name: "second", err: errors.New("boom")}
	third := &fakeAction{name: "third"}
	for _, h := range []*fakeAction{first, second, third} {
		exec.RegisterHandler(h)
	}

	rule := ruleWithActions(
		types.ActionConfig{Type: "first"},
		types.ActionConfig{Type: "second"},
		types.ActionConfig{Type: "third"},
	)
	if err := reg.Upsert(context.Background(), rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	record := exec.Run(context.Background(), rule, eventTrigger("pricing.changed"))

	if record.Status != enums.RunStatusPartial {
		t.Fatalf("expected partial, got %s", record.Status)
	}
	if third.callCount() != 1 {
		t.Fatal("action after the failure must still run")
	}
	if len(record.Actions) != 3 {
		t.Fatalf("expected 3 action results, got %d", len(record.Actions))
	}
	if record.Actions[1].Status != enums.RunStatusFailed || record.Actions[1].Err == nil {
		t.Fatal("failing action must be recorded as failed with its error")
	}

	stored, ok := reg.Get(rule.ID)
	if !ok || stored.LastRunStatus == nil || *stored.LastRunStatus != enums.RunStatusPartial {
		t.Fatal("run status must be written back to the registry")
	}

	events := pub.published()
	if len(events) != 1 || events[0].Name != EventRuleExecuted {
		t.Fatalf("expected one %s event, got %d", EventRuleExecuted, len(events))
	}
	if events[0].Payload["status"] != string(enums.RunStatusPartial) {
		t.Fatal("executed event must carry the run status")
	}
	if events[0].Context.CausationDepth != 1 {
		t.Fatalf("executed event must advance causation depth, got %d", events[0].Context.CausationDepth)
	}
}

func TestRunAllStatuses(t *testing.T) {
	pub := &capturingPublisher{}
	exec, reg := newTestExecutor(t, pub, time.Second)
	exec.RegisterHandler(&fakeAction{name: "ok"})
	exec.RegisterHandler(&fakeAction{name: "bad", err: errors.New("boom")})

	cases := []struct {
		name    string
		actions []types.ActionConfig
		want    enums.RunStatus
	}{
		{"all succeed", []types.ActionConfig{{Type: "ok"}, {Type: "ok"}}, enums.RunStatusSuccess},
		{"all fail", []types.ActionConfig{{Type: "bad"}, {Type: "bad"}}, enums.RunStatusFailed},
		{"no actions", nil, enums.RunStatusSkipped},
	}
	for _, tc := range cases {
		rule := ruleWithActions(tc.actions...)
		if err := reg.Upsert(context.Background(), rule); err != nil {
			t.Fatalf("%s: upsert: %v", tc.name, err)
		}
		record := exec.Run(context.Background(), rule, eventTrigger("pricing.changed"))
		if record.Status != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, record.Status)
		}
	}
}

func TestRunUnknownActionTypeFails(t *testing.T) {
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	exec.RegisterHandler(&fakeAction{name: "ok"})

	rule := ruleWithActions(types.ActionConfig{Type: "nonexistent"}, types.ActionConfig{Type: "ok"})
	if err := reg.Upsert(context.Background(), rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	record := exec.Run(context.Background(), rule, eventTrigger("pricing.changed"))
	if record.Status != enums.RunStatusPartial {
		t.Fatalf("expected partial, got %s", record.Status)
	}
	if record.Actions[0].Status != enums.RunStatusFailed {
		t.Fatal("unknown action type must fail that action")
	}
}

func TestRunActionTimeout(t *testing.T) {
	exec, reg := newTestExecutor(t, &capturingPublisher{}, 20*time.Millisecond)
	exec.RegisterHandler(&fakeAction{name: "slow", sleep: time.Second})
	exec.RegisterHandler(&fakeAction{name: "ok"})

	rule := ruleWithActions(types.ActionConfig{Type: "slow"}, types.ActionConfig{Type: "ok"})
	if err := reg.Upsert(context.Background(), rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	started := time.Now()
	record := exec.Run(context.Background(), rule, eventTrigger("pricing.changed"))
	if elapsed := time.Since(started); elapsed > 500*time.Millisecond {
		t.Fatalf("timed-out action must not block the run, took %s", elapsed)
	}

	if record.Status != enums.RunStatusPartial {
		t.Fatalf("expected partial, got %s", record.Status)
	}
	if record.Actions[0].Status != enums.RunStatusFailed {
		t.Fatal("slow action must be recorded as failed")
	}
	if record.Actions[1].Status != enums.RunStatusSuccess {
		t.Fatal("action after the timeout must still run")
	}
}

func TestRunPanickingActionIsContained(t *testing.T) {
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	exec.RegisterHandler(panicAction{})
	exec.RegisterHandler(&fakeAction{name: "ok"})

	rule := ruleWithActions(types.ActionConfig{Type: "panic"}, types.ActionConfig{Type: "ok"})
	if err := reg.Upsert(context.Background(), rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	record := exec.Run(context.Background(), rule, eventTrigger("pricing.changed"))
	if record.Status != enums.RunStatusPartial {
		t.Fatalf("expected partial, got %s", record.Status)
	}
}

type panicAction struct{}

func (panicAction) Type() string { return "panic" }
func (panicAction) Execute(context.Context, Invocation) error {
	panic("kaboom")
}

func TestRunScheduleOverlapIsSkipped(t *testing.T) {
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	release := make(chan struct{})
	exec.RegisterHandler(&blockingAction{release: release})

	rule := ruleWithActions(types.ActionConfig{Type: "blocking"})
	if err := reg.Upsert(context.Background(), rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		exec.Run(context.Background(), rule, eventTrigger("pricing.changed"))
	}()

	// Wait until the first run is holding the in-flight slot.
	deadline := time.After(time.Second)
	for !exec.Running(rule.ID) {
		select {
		case <-deadline:
			t.Fatal("first run never started")
		case <-time.After(time.Millisecond):
		}
	}

	tick := Trigger{FiredAt: time.Now().UTC()}
	record := exec.Run(context.Background(), rule, tick)
	if record.Status != enums.RunStatusSkipped {
		t.Fatalf("overlapping schedule tick must be skipped, got %s", record.Status)
	}

	close(release)
	wg.Wait()
	if exec.Running(rule.ID) {
		t.Fatal("in-flight slot must be released after the run")
	}
}

// Simultaneous schedule ticks must never execute the same rule concurrently,
// even without the scheduler serializing them: the in-flight claim is atomic.
func TestRunConcurrentScheduleTicksNeverOverlap(t *testing.T) {
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	gauge := &gaugeAction{hold: 50 * time.Millisecond}
	exec.RegisterHandler(gauge)

	rule := ruleWithActions(types.ActionConfig{Type: "gauge"})
	if err := reg.Upsert(context.Background(), rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	const ticks = 8
	records := make([]RunRecord, ticks)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < ticks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			records[i] = exec.Run(context.Background(), rule, Trigger{FiredAt: time.Now().UTC()})
		}(i)
	}
	close(start)
	wg.Wait()

	executed := 0
	for _, record := range records {
		switch record.Status {
		case enums.RunStatusSuccess:
			executed++
		case enums.RunStatusSkipped:
		default:
			t.Fatalf("unexpected run status %s", record.Status)
		}
	}
	if executed == 0 {
		t.Fatal("at least one schedule tick must execute")
	}
	if gauge.peak > 1 {
		t.Fatalf("rule executed %d times concurrently; schedule ticks must not overlap", gauge.peak)
	}
	if gauge.total != executed {
		t.Fatalf("executions (%d) must match successful records (%d)", gauge.total, executed)
	}
	if exec.Running(rule.ID) {
		t.Fatal("in-flight slot must be released after all runs")
	}
}

// gaugeAction measures how many invocations run at once.
type gaugeAction struct {
	hold time.Duration

	mu      sync.Mutex
	current int
	peak    int
	total   int
}

func (g *gaugeAction) Type() string { return "gauge" }
func (g *gaugeAction) Execute(ctx context.Context, _ Invocation) error {
	g.mu.Lock()
	g.current++
	g.total++
	if g.current > g.peak {
		g.peak = g.current
	}
	g.mu.Unlock()

	time.Sleep(g.hold)

	g.mu.Lock()
	g.current--
	g.mu.Unlock()
	return nil
}

type blockingAction struct {
	release chan struct{}
}

func (b *blockingAction) Type() string { return "blocking" }
func (b *blockingAction) Execute(ctx context.Context, _ Invocation) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestConditionScopeExposesEnvelope(t *testing.T) {
	brandID := uuid.New()
	trigger := Trigger{
		Event: &eventbus.Envelope{
			Name:    "pricing.changed",
			Payload: map[string]any{"delta": float64(12)},
			Context: eventbus.EventContext{BrandID: &brandID, Source: "api", CausationDepth: 2},
		},
	}

	scope := trigger.ConditionScope()
	if scope["name"] != "pricing.changed" {
		t.Fatal("scope must expose the event name")
	}
	cfg := &types.ConditionConfig{All: []types.Condition{
		{Path: "payload.delta", Op: enums.OperatorGt, Value: 10},
		{Path: "context.brandId", Op: enums.OperatorEq, Value: brandID.String()},
	}}
	if !Evaluate(cfg, scope) {
		t.Fatal("conditions must resolve against payload and context")
	}
}
