package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/metrics"
	"github.com/brandops/platform-backend/pkg/types"
)

const defaultActionTimeout = 10 * time.Second

// Trigger describes what fired a rule: a matched event, or a schedule tick
// (Event is nil). Depth carries the causation chain length for engine-emitted
// events.
type Trigger struct {
	Event   *eventbus.Envelope
	FiredAt time.Time
	Depth   int
}

// ConditionScope builds the document condition paths resolve against. Rule
// authors address the envelope, not just the payload, so "payload.delta" and
// "context.brandId" both work.
func (t Trigger) ConditionScope() map[string]any {
	if t.Event == nil {
		return map[string]any{
			"name":    "",
			"payload": map[string]any{},
			"context": map[string]any{},
		}
	}
	evtCtx := map[string]any{
		"source":         t.Event.Context.Source,
		"severity":       t.Event.Context.Severity,
		"causationDepth": t.Event.Context.CausationDepth,
	}
	// Identifiers are exposed as strings so condition values written by rule
	// authors compare against them directly.
	if t.Event.Context.ActorID != nil {
		evtCtx["actorId"] = t.Event.Context.ActorID.String()
	}
	if t.Event.Context.BrandID != nil {
		evtCtx["brandId"] = t.Event.Context.BrandID.String()
	}
	return map[string]any{
		"name":    t.Event.Name,
		"payload": t.Event.Payload,
		"context": evtCtx,
	}
}

// Invocation is the unit of work handed to an action handler.
type Invocation struct {
	Rule    models.AutomationRule
	Trigger Trigger
	Action  types.ActionConfig
}

// ActionHandler executes one configured action type.
type ActionHandler interface {
	Type() string
	Execute(ctx context.Context, inv Invocation) error
}

// Publisher is the slice of the event bus the executor needs.
type Publisher interface {
	Publish(ctx context.Context, name string, payload map[string]any, evtCtx eventbus.EventContext) (eventbus.Envelope, error)
}

// ActionResult records one action's outcome within a run.
type ActionResult struct {
	Type     string
	Status   enums.RunStatus
	Err      error
	Duration time.Duration
}

// RunRecord summarizes a completed rule execution.
type RunRecord struct {
	RuleID     uuid.UUID
	Status     enums.RunStatus
	StartedAt  time.Time
	FinishedAt time.Time
	Actions    []ActionResult
}

// ExecutorParams configure the rule executor.
type ExecutorParams struct {
	Logger        *logger.Logger
	Metrics       *metrics.AutomationMetrics
	Registry      *Registry
	Bus           Publisher
	ActionTimeout time.Duration
}

// Executor runs a rule's action list. Actions run in order; a failing action
// never stops the ones after it. Each action gets its own deadline so a hung
// handler cannot wedge the run.
type Executor struct {
	logg          *logger.Logger
	metrics       *metrics.AutomationMetrics
	registry      *Registry
	bus           Publisher
	actionTimeout time.Duration

	handlersMu sync.RWMutex
	handlers   map[string]ActionHandler

	inFlightMu sync.Mutex
	inFlight   map[uuid.UUID]int
}

// NewExecutor builds a rule executor. Handlers are registered separately so
// wiring order stays flexible at startup.
func NewExecutor(params ExecutorParams) (*Executor, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	timeout := params.ActionTimeout
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	return &Executor{
		logg:          params.Logger,
		metrics:       params.Metrics,
		registry:      params.Registry,
		bus:           params.Bus,
		actionTimeout: timeout,
		handlers:      map[string]ActionHandler{},
		inFlight:      map[uuid.UUID]int{},
	}, nil
}

// RegisterHandler installs an action handler. Later registrations for the same
// type replace earlier ones.
func (e *Executor) RegisterHandler(handler ActionHandler) {
	if handler == nil || handler.Type() == "" {
		return
	}
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers[handler.Type()] = handler
}

// Running reports whether a run for the rule is currently in flight. The
// scheduler uses this to skip overlapping ticks.
func (e *Executor) Running(ruleID uuid.UUID) bool {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	return e.inFlight[ruleID] > 0
}

func (e *Executor) track(ruleID uuid.UUID) {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	e.inFlight[ruleID]++
}

// tryTrack claims the in-flight slot only when no run holds it. Check and
// increment happen under one lock acquisition so concurrent schedule ticks
// cannot both pass.
func (e *Executor) tryTrack(ruleID uuid.UUID) bool {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	if e.inFlight[ruleID] > 0 {
		return false
	}
	e.inFlight[ruleID]++
	return true
}

func (e *Executor) untrack(ruleID uuid.UUID) {
	e.inFlightMu.Lock()
	defer e.inFlightMu.Unlock()
	if e.inFlight[ruleID] <= 1 {
		delete(e.inFlight, ruleID)
		return
	}
	e.inFlight[ruleID]--
}

// Run executes the rule's actions, records the run on the registry, and
// publishes the execution event. It never returns an error for action
// failures; those are folded into the run status.
func (e *Executor) Run(ctx context.Context, rule models.AutomationRule, trigger Trigger) RunRecord {
	logCtx := e.logg.WithRuleID(ctx, rule.ID.String())
	if trigger.Event != nil {
		logCtx = e.logg.WithEventName(logCtx, trigger.Event.Name)
	}

	record := RunRecord{RuleID: rule.ID, StartedAt: time.Now().UTC()}

	// Schedule ticks never pile up behind a still-running execution. Event
	// triggers are allowed to overlap; every occurrence is its own run.
	if trigger.Event == nil {
		if !e.tryTrack(rule.ID) {
			record.Status = enums.RunStatusSkipped
			record.FinishedAt = record.StartedAt
			e.metrics.IncOverlapSkipped()
			e.logg.Warn(logCtx, "schedule tick skipped; previous run still in flight")
			return record
		}
	} else {
		e.track(rule.ID)
	}
	defer e.untrack(rule.ID)

	for _, action := range rule.Actions {
		record.Actions = append(record.Actions, e.runAction(logCtx, rule, trigger, action))
	}

	record.FinishedAt = time.Now().UTC()
	record.Status = summarize(record.Actions)

	e.metrics.ObserveRun(string(record.Status), record.FinishedAt.Sub(record.StartedAt))
	if err := e.registry.RecordRun(ctx, rule.ID, record.FinishedAt, record.Status); err != nil {
		e.logg.Error(logCtx, "failed to record rule run", err)
	}
	e.publishExecuted(ctx, rule, trigger, record)

	return record
}

func (e *Executor) runAction(ctx context.Context, rule models.AutomationRule, trigger Trigger, action types.ActionConfig) ActionResult {
	started := time.Now()
	result := ActionResult{Type: action.Type, Status: enums.RunStatusSuccess}

	e.handlersMu.RLock()
	handler, ok := e.handlers[action.Type]
	e.handlersMu.RUnlock()
	if !ok {
		result.Status = enums.RunStatusFailed
		result.Err = fmt.Errorf("unknown action type %q", action.Type)
	} else {
		result.Err = e.executeWithTimeout(ctx, handler, Invocation{Rule: rule, Trigger: trigger, Action: action})
		if result.Err != nil {
			result.Status = enums.RunStatusFailed
		}
	}
	result.Duration = time.Since(started)

	e.metrics.IncAction(string(result.Status))
	if result.Err != nil {
		actionCtx := e.logg.WithField(ctx, "action_type", action.Type)
		e.logg.Error(actionCtx, "automation action failed", result.Err)
	}
	return result
}

// executeWithTimeout bounds one action invocation. The handler runs in its own
// goroutine so an ignored context cannot block the rest of the action list; an
// abandoned handler keeps its canceled context and is left to finish alone.
func (e *Executor) executeWithTimeout(ctx context.Context, handler ActionHandler, inv Invocation) error {
	actionCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("action panicked: %v", rec)
			}
		}()
		done <- handler.Execute(actionCtx, inv)
	}()

	select {
	case err := <-done:
		return err
	case <-actionCtx.Done():
		return fmt.Errorf("action %q timed out after %s", inv.Action.Type, e.actionTimeout)
	}
}

// summarize folds action outcomes into the run status. No actions means the
// run is skipped; mixed outcomes mean partial.
func summarize(results []ActionResult) enums.RunStatus {
	if len(results) == 0 {
		return enums.RunStatusSkipped
	}
	failures := 0
	for _, result := range results {
		if result.Status == enums.RunStatusFailed {
			failures++
		}
	}
	switch failures {
	case 0:
		return enums.RunStatusSuccess
	case len(results):
		return enums.RunStatusFailed
	default:
		return enums.RunStatusPartial
	}
}

// publishExecuted emits the post-run event. The causation depth is advanced
// past the triggering event so executed-event listeners stay inside the cycle
// bound.
func (e *Executor) publishExecuted(ctx context.Context, rule models.AutomationRule, trigger Trigger, record RunRecord) {
	if e.bus == nil {
		return
	}

	failures := 0
	for _, result := range record.Actions {
		if result.Status == enums.RunStatusFailed {
			failures++
		}
	}

	payload := map[string]any{
		"ruleId":      rule.ID.String(),
		"ruleName":    rule.Name,
		"status":      string(record.Status),
		"actionCount": len(record.Actions),
		"failedCount": failures,
		"durationMs":  record.FinishedAt.Sub(record.StartedAt).Milliseconds(),
	}
	if trigger.Event != nil {
		payload["triggeredBy"] = trigger.Event.Name
	} else {
		payload["triggeredBy"] = "schedule"
	}

	evtCtx := eventbus.EventContext{
		Source:         "automation-engine",
		CausationDepth: trigger.Depth + 1,
	}
	if rule.BrandID != nil {
		brandID := *rule.BrandID
		evtCtx.BrandID = &brandID
	}

	if _, err := e.bus.Publish(ctx, EventRuleExecuted, payload, evtCtx); err != nil {
		e.logg.Error(ctx, "failed to publish rule execution event", err)
	}
}
