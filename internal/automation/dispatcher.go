package automation

import (
	"context"
	"fmt"

	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/metrics"
)

const defaultMaxCausationDepth = 5

// DispatcherParams configure the event-to-rule dispatcher.
type DispatcherParams struct {
	Logger            *logger.Logger
	Metrics           *metrics.AutomationMetrics
	Registry          *Registry
	Executor          *Executor
	MaxCausationDepth int
}

// Dispatcher is the bus subscriber that turns published events into rule runs.
// It sees every event, filters by trigger and condition, and runs each matching
// rule independently so one rule's failure cannot starve another's.
type Dispatcher struct {
	logg     *logger.Logger
	metrics  *metrics.AutomationMetrics
	registry *Registry
	executor *Executor
	maxDepth int
}

// NewDispatcher builds a dispatcher. Attach it with bus.SubscribeAll(d.Handle).
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	if params.Executor == nil {
		return nil, fmt.Errorf("executor required")
	}
	maxDepth := params.MaxCausationDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxCausationDepth
	}
	return &Dispatcher{
		logg:     params.Logger,
		metrics:  params.Metrics,
		registry: params.Registry,
		executor: params.Executor,
		maxDepth: maxDepth,
	}, nil
}

// Handle processes one envelope. Events beyond the causation depth bound are
// suppressed entirely so emit-event action chains cannot loop forever.
func (d *Dispatcher) Handle(ctx context.Context, evt eventbus.Envelope) error {
	if evt.Context.CausationDepth > d.maxDepth {
		d.metrics.IncCycleSuppressed()
		logCtx := d.logg.WithEventName(ctx, evt.Name)
		logCtx = d.logg.WithField(logCtx, "causation_depth", evt.Context.CausationDepth)
		d.logg.Warn(logCtx, "event suppressed; causation depth bound exceeded")
		return nil
	}

	rules := d.registry.ActiveEventRules(evt.Name)
	if len(rules) == 0 {
		return nil
	}

	trigger := Trigger{
		Event:   &evt,
		FiredAt: evt.OccurredAt,
		Depth:   evt.Context.CausationDepth,
	}
	scope := trigger.ConditionScope()

	for _, rule := range rules {
		if !Evaluate(rule.ConditionConfig, scope) {
			continue
		}
		d.executor.Run(ctx, rule, trigger)
	}
	return nil
}
