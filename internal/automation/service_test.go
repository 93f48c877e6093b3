package automation

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/errors"
	"github.com/brandops/platform-backend/pkg/types"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu    sync.Mutex
	rules map[uuid.UUID]models.AutomationRule
	order []uuid.UUID
}

func newMemRepo() *memRepo {
	return &memRepo{rules: map[uuid.UUID]models.AutomationRule{}}
}

func (m *memRepo) List(_ context.Context, brandID *uuid.UUID) ([]models.AutomationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, len(m.order))
	copy(ids, m.order)
	sort.SliceStable(ids, func(i, j int) bool {
		return m.rules[ids[i]].CreatedAt.Before(m.rules[ids[j]].CreatedAt)
	})
	var out []models.AutomationRule
	for _, id := range ids {
		rule := m.rules[id]
		if brandID != nil && (rule.BrandID == nil || *rule.BrandID != *brandID) {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, ErrRuleNotFound
	}
	return &rule, nil
}

func (m *memRepo) Save(_ context.Context, rule *models.AutomationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		m.order = append(m.order, rule.ID)
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = time.Now().UTC()
		}
	}
	rule.UpdatedAt = time.Now().UTC()
	m.rules[rule.ID] = *rule
	return nil
}

func (m *memRepo) SetActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	rule.IsActive = active
	m.rules[id] = rule
	return nil
}

func (m *memRepo) UpdateRunStatus(_ context.Context, id uuid.UUID, at time.Time, status enums.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule, ok := m.rules[id]
	if !ok {
		return ErrRuleNotFound
	}
	rule.LastRunAt = &at
	rule.LastRunStatus = &status
	m.rules[id] = rule
	return nil
}

func newTestService(t *testing.T) (Service, *Registry, *capturingPublisher) {
	t.Helper()
	repo := newMemRepo()
	reg := NewRegistry(repo)
	pub := &capturingPublisher{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Repo:     repo,
		Registry: reg,
		Bus:      pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, reg, pub
}

func validCreateInput() CreateRuleInput {
	trigger := "pricing.changed"
	return CreateRuleInput{
		Name:         "alert on price change",
		TriggerType:  enums.TriggerTypeEvent,
		TriggerEvent: &trigger,
		Actions:      types.ActionList{{Type: "create-notification"}},
	}
}

func TestServiceCreateEventRule(t *testing.T) {
	ctx := context.Background()
	svc, reg, pub := newTestService(t)

	created, err := svc.Create(ctx, nil, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.IsActive {
		t.Fatal("new rules default to active")
	}

	if got := reg.ActiveEventRules("pricing.changed"); len(got) != 1 || got[0].ID != created.ID {
		t.Fatal("created rule must be dispatchable immediately")
	}

	events := pub.published()
	if len(events) != 1 || events[0].Name != EventRuleCreated {
		t.Fatalf("expected %s event, got %v", EventRuleCreated, events)
	}
}

func TestServiceCreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	schedule := "0 2 * * *"
	badSchedule := "not cron"
	badTrigger := "UPPERCASE"

	cases := []struct {
		name   string
		mutate func(*CreateRuleInput)
	}{
		{"missing name", func(in *CreateRuleInput) { in.Name = "  " }},
		{"both triggers", func(in *CreateRuleInput) { in.TriggerSchedule = &schedule }},
		{"missing trigger event", func(in *CreateRuleInput) { in.TriggerEvent = nil }},
		{"malformed trigger event", func(in *CreateRuleInput) { in.TriggerEvent = &badTrigger }},
		{"empty actions", func(in *CreateRuleInput) { in.Actions = types.ActionList{} }},
		{"action without type", func(in *CreateRuleInput) { in.Actions = types.ActionList{{Type: " "}} }},
		{"bad operator", func(in *CreateRuleInput) {
			in.ConditionConfig = &types.ConditionConfig{All: []types.Condition{{Path: "payload.x", Op: "regex"}}}
		}},
		{"condition without path", func(in *CreateRuleInput) {
			in.ConditionConfig = &types.ConditionConfig{Any: []types.Condition{{Path: "", Op: enums.OperatorEq}}}
		}},
		{"schedule rule with bad cron", func(in *CreateRuleInput) {
			in.TriggerType = enums.TriggerTypeSchedule
			in.TriggerEvent = nil
			in.TriggerSchedule = &badSchedule
		}},
		{"schedule rule missing schedule", func(in *CreateRuleInput) {
			in.TriggerType = enums.TriggerTypeSchedule
			in.TriggerEvent = nil
		}},
	}
	for _, tc := range cases {
		input := validCreateInput()
		tc.mutate(&input)
		_, err := svc.Create(ctx, nil, input)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		typed := errors.As(err)
		if typed == nil || typed.Code() != errors.CodeValidation {
			t.Fatalf("%s: expected validation code, got %v", tc.name, err)
		}
	}
}

func TestServiceCreateWildcardTrigger(t *testing.T) {
	ctx := context.Background()
	svc, reg, _ := newTestService(t)

	input := validCreateInput()
	wildcard := "pricing.*"
	input.TriggerEvent = &wildcard

	created, err := svc.Create(ctx, nil, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := reg.ActiveEventRules("pricing.threshold.crossed"); len(got) != 1 || got[0].ID != created.ID {
		t.Fatal("wildcard rule must match namespaced events")
	}
}

func TestServiceUpdateRetargetsRule(t *testing.T) {
	ctx := context.Background()
	svc, reg, pub := newTestService(t)

	created, err := svc.Create(ctx, nil, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newTrigger := "inventory.low"
	updated, err := svc.Update(ctx, nil, created.ID, UpdateRuleInput{TriggerEvent: &newTrigger})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TriggerEvent == nil || *updated.TriggerEvent != newTrigger {
		t.Fatal("trigger event not updated")
	}

	if got := reg.ActiveEventRules("pricing.changed"); len(got) != 0 {
		t.Fatal("old trigger must no longer dispatch")
	}
	if got := reg.ActiveEventRules("inventory.low"); len(got) != 1 {
		t.Fatal("new trigger must dispatch")
	}

	events := pub.published()
	if len(events) != 2 || events[1].Name != EventRuleUpdated {
		t.Fatalf("expected %s event, got %v", EventRuleUpdated, events)
	}
}

func TestServiceUpdateSwitchTriggerType(t *testing.T) {
	ctx := context.Background()
	svc, reg, _ := newTestService(t)

	created, err := svc.Create(ctx, nil, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	scheduleType := enums.TriggerTypeSchedule
	schedule := "0 2 * * *"
	updated, err := svc.Update(ctx, nil, created.ID, UpdateRuleInput{
		TriggerType:     &scheduleType,
		TriggerSchedule: &schedule,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TriggerEvent != nil {
		t.Fatal("switching to schedule must clear the trigger event")
	}
	if len(reg.ActiveScheduleRules()) != 1 {
		t.Fatal("rule must appear in the schedule index")
	}
	if got := reg.ActiveEventRules("pricing.changed"); len(got) != 0 {
		t.Fatal("rule must leave the event index")
	}

	// Switching back without supplying an event binding is invalid.
	eventType := enums.TriggerTypeEvent
	if _, err := svc.Update(ctx, nil, created.ID, UpdateRuleInput{TriggerType: &eventType}); err == nil {
		t.Fatal("expected validation error when the new trigger binding is missing")
	}
}

func TestServiceUpdateUnknownRule(t *testing.T) {
	svc, _, _ := newTestService(t)
	name := "renamed"
	_, err := svc.Update(context.Background(), nil, uuid.New(), UpdateRuleInput{Name: &name})
	typed := errors.As(err)
	if typed == nil || typed.Code() != errors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceDeleteDeactivates(t *testing.T) {
	ctx := context.Background()
	svc, reg, pub := newTestService(t)

	created, err := svc.Create(ctx, nil, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, nil, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got := reg.ActiveEventRules("pricing.changed"); len(got) != 0 {
		t.Fatal("deleted rule must not dispatch")
	}
	fetched, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if fetched.IsActive {
		t.Fatal("deleted rule must be inactive, not gone")
	}

	events := pub.published()
	if len(events) != 2 || events[1].Name != EventRuleDeleted {
		t.Fatalf("expected %s event, got %v", EventRuleDeleted, events)
	}
}

func TestServiceListFiltersByBrand(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	brandID := uuid.New()
	scoped := validCreateInput()
	scoped.BrandID = &brandID
	if _, err := svc.Create(ctx, nil, scoped); err != nil {
		t.Fatalf("create scoped: %v", err)
	}
	if _, err := svc.Create(ctx, nil, validCreateInput()); err != nil {
		t.Fatalf("create global: %v", err)
	}

	all, err := svc.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(all))
	}

	filtered, err := svc.List(ctx, &brandID)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].BrandID == nil || *filtered[0].BrandID != brandID {
		t.Fatalf("expected 1 brand-scoped rule, got %d", len(filtered))
	}
}
