package automation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/types"
)

func newTestDispatcher(t *testing.T, exec *Executor, reg *Registry, maxDepth int) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(DispatcherParams{
		Logger:            testLogger(),
		Registry:          reg,
		Executor:          exec,
		MaxCausationDepth: maxDepth,
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func envelope(name string, payload map[string]any, depth int) eventbus.Envelope {
	return eventbus.Envelope{
		ID:         uuid.New(),
		Name:       name,
		Payload:    payload,
		Context:    eventbus.EventContext{CausationDepth: depth},
		OccurredAt: time.Now().UTC(),
	}
}

func TestDispatcherFiltersByCondition(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	action := &fakeAction{name: "notify"}
	exec.RegisterHandler(action)
	disp := newTestDispatcher(t, exec, reg, 5)

	trigger := "pricing.changed"
	rule := ruleWithActions(types.ActionConfig{Type: "notify"})
	rule.TriggerEvent = &trigger
	rule.ConditionConfig = &types.ConditionConfig{
		All: []types.Condition{{Path: "payload.delta", Op: enums.OperatorGt, Value: 10}},
	}
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := disp.Handle(ctx, envelope("pricing.changed", map[string]any{"delta": float64(5)}, 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if action.callCount() != 0 {
		t.Fatal("rule must not fire when the condition rejects the payload")
	}

	if err := disp.Handle(ctx, envelope("pricing.changed", map[string]any{"delta": float64(12)}, 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if action.callCount() != 1 {
		t.Fatalf("rule must fire once, got %d", action.callCount())
	}
}

func TestDispatcherIsolatesRuleFailures(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	failing := &fakeAction{name: "failing", err: errors.New("boom")}
	healthy := &fakeAction{name: "healthy"}
	exec.RegisterHandler(failing)
	exec.RegisterHandler(healthy)
	disp := newTestDispatcher(t, exec, reg, 5)

	first := ruleWithActions(types.ActionConfig{Type: "failing"})
	second := ruleWithActions(types.ActionConfig{Type: "healthy"})
	if err := reg.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := reg.Upsert(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := disp.Handle(ctx, envelope("pricing.changed", map[string]any{}, 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if healthy.callCount() != 1 {
		t.Fatal("second rule must run even when the first rule's action fails")
	}
}

// loopAction feeds the dispatcher a derived event, one causation step deeper,
// the way an emit-event action would through the bus.
type loopAction struct {
	disp *Dispatcher

	mu   sync.Mutex
	runs int
}

func (l *loopAction) Type() string { return "emit_event" }

func (l *loopAction) Execute(ctx context.Context, inv Invocation) error {
	l.mu.Lock()
	l.runs++
	l.mu.Unlock()
	return l.disp.Handle(ctx, envelope("loop.ping", map[string]any{}, inv.Trigger.Depth+1))
}

func (l *loopAction) runCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runs
}

func TestDispatcherSuppressesCausationCycles(t *testing.T) {
	ctx := context.Background()
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	disp := newTestDispatcher(t, exec, reg, 5)
	loop := &loopAction{disp: disp}
	exec.RegisterHandler(loop)

	trigger := "loop.ping"
	rule := ruleWithActions(types.ActionConfig{Type: "emit_event"})
	rule.TriggerEvent = &trigger
	if err := reg.Upsert(ctx, rule); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := disp.Handle(ctx, envelope("loop.ping", map[string]any{}, 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	// Depths 0..5 dispatch, depth 6 is suppressed.
	if got := loop.runCount(); got != 6 {
		t.Fatalf("expected 6 dispatches before suppression, got %d", got)
	}
}

func TestDispatcherIgnoresEventsWithoutRules(t *testing.T) {
	exec, reg := newTestExecutor(t, &capturingPublisher{}, time.Second)
	disp := newTestDispatcher(t, exec, reg, 5)

	if err := disp.Handle(context.Background(), envelope("unmatched.event", map[string]any{}, 0)); err != nil {
		t.Fatalf("handle: %v", err)
	}
}
