package actions

import (
	"context"
	"fmt"

	"github.com/brandops/platform-backend/internal/automation"
	"github.com/brandops/platform-backend/internal/eventbus"
)

// EmitEvent publishes a new event from a rule run. Params:
//
//	name    (string, required) event name to publish
//	payload (object, optional) payload; {{path}} placeholders are
//	        interpolated from the trigger scope
//
// The published event carries the trigger's causation depth plus one, so
// emit-event chains terminate at the dispatcher's depth bound.
type EmitEvent struct {
	bus automation.Publisher
}

// NewEmitEvent builds the emit-event action handler.
func NewEmitEvent(bus automation.Publisher) *EmitEvent {
	return &EmitEvent{bus: bus}
}

func (a *EmitEvent) Type() string { return "emit-event" }

func (a *EmitEvent) Execute(ctx context.Context, inv automation.Invocation) error {
	name, _ := inv.Action.Params["name"].(string)
	if name == "" {
		return fmt.Errorf("emit-event requires a name param")
	}

	scope := inv.Trigger.ConditionScope()
	payload := map[string]any{}
	if raw, ok := inv.Action.Params["payload"].(map[string]any); ok {
		payload, _ = interpolateValue(raw, scope).(map[string]any)
	}

	evtCtx := eventbus.EventContext{
		Source:         "automation-engine",
		CausationDepth: inv.Trigger.Depth + 1,
	}
	if inv.Trigger.Event != nil {
		evtCtx.ActorID = inv.Trigger.Event.Context.ActorID
		evtCtx.BrandID = inv.Trigger.Event.Context.BrandID
	} else {
		evtCtx.BrandID = inv.Rule.BrandID
	}

	if _, err := a.bus.Publish(ctx, name, payload, evtCtx); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}
