package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/errors"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/types"
)

// Service is the rule management surface. It validates rule shape at the
// boundary so the engine never sees a malformed definition, keeps the registry
// in sync, and announces lifecycle changes on the bus.
type Service interface {
	Create(ctx context.Context, actorID *uuid.UUID, input CreateRuleInput) (*RuleResponse, error)
	Update(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, input UpdateRuleInput) (*RuleResponse, error)
	Delete(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*RuleResponse, error)
	List(ctx context.Context, brandID *uuid.UUID) ([]RuleResponse, error)
}

// ServiceParams configure the rule management service.
type ServiceParams struct {
	Logger   *logger.Logger
	Repo     Repository
	Registry *Registry
	Bus      Publisher
}

type serviceImpl struct {
	logg     *logger.Logger
	repo     Repository
	registry *Registry
	bus      Publisher
}

// NewService builds the rule management service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("registry required")
	}
	return &serviceImpl{
		logg:     params.Logger,
		repo:     params.Repo,
		registry: params.Registry,
		bus:      params.Bus,
	}, nil
}

func (s *serviceImpl) Create(ctx context.Context, actorID *uuid.UUID, input CreateRuleInput) (*RuleResponse, error) {
	rule := models.AutomationRule{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		BrandID:         input.BrandID,
		TriggerType:     input.TriggerType,
		TriggerEvent:    input.TriggerEvent,
		TriggerSchedule: input.TriggerSchedule,
		ConditionConfig: input.ConditionConfig,
		Actions:         input.Actions,
		IsActive:        true,
		CreatedByID:     actorID,
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.registry.Upsert(ctx, rule); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to create automation rule")
	}

	stored, ok := s.registry.Get(rule.ID)
	if !ok {
		stored = rule
	}
	s.announce(ctx, EventRuleCreated, stored, actorID)

	response := toRuleResponse(stored)
	return &response, nil
}

func (s *serviceImpl) Update(ctx context.Context, actorID *uuid.UUID, id uuid.UUID, input UpdateRuleInput) (*RuleResponse, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == ErrRuleNotFound {
			return nil, errors.New(errors.CodeNotFound, "automation rule not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to load automation rule")
	}

	rule := *existing
	if input.Name != nil {
		rule.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		rule.Description = input.Description
	}
	if input.TriggerType != nil {
		rule.TriggerType = *input.TriggerType
		// Switching trigger type discards the old trigger binding; the new
		// one must be supplied in the same request.
		if *input.TriggerType == enums.TriggerTypeEvent {
			rule.TriggerSchedule = nil
		} else {
			rule.TriggerEvent = nil
		}
	}
	if input.TriggerEvent != nil {
		rule.TriggerEvent = input.TriggerEvent
	}
	if input.TriggerSchedule != nil {
		rule.TriggerSchedule = input.TriggerSchedule
	}
	if input.ConditionConfig != nil {
		rule.ConditionConfig = input.ConditionConfig
	}
	if input.Actions != nil {
		rule.Actions = *input.Actions
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}

	if err := validateRule(rule); err != nil {
		return nil, err
	}
	if err := s.registry.Upsert(ctx, rule); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to update automation rule")
	}

	stored, ok := s.registry.Get(rule.ID)
	if !ok {
		stored = rule
	}
	s.announce(ctx, EventRuleUpdated, stored, actorID)

	response := toRuleResponse(stored)
	return &response, nil
}

// Delete deactivates the rule. Definitions are kept for audit; nothing is
// physically removed.
func (s *serviceImpl) Delete(ctx context.Context, actorID *uuid.UUID, id uuid.UUID) error {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == ErrRuleNotFound {
			return errors.New(errors.CodeNotFound, "automation rule not found")
		}
		return errors.Wrap(errors.CodeInternal, err, "failed to load automation rule")
	}

	if err := s.registry.Deactivate(ctx, id); err != nil {
		return errors.Wrap(errors.CodeInternal, err, "failed to deactivate automation rule")
	}

	rule.IsActive = false
	s.announce(ctx, EventRuleDeleted, *rule, actorID)
	return nil
}

func (s *serviceImpl) Get(ctx context.Context, id uuid.UUID) (*RuleResponse, error) {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		if err == ErrRuleNotFound {
			return nil, errors.New(errors.CodeNotFound, "automation rule not found")
		}
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to load automation rule")
	}
	response := toRuleResponse(*rule)
	return &response, nil
}

func (s *serviceImpl) List(ctx context.Context, brandID *uuid.UUID) ([]RuleResponse, error) {
	rules, err := s.repo.List(ctx, brandID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to list automation rules")
	}
	out := make([]RuleResponse, len(rules))
	for i, rule := range rules {
		out[i] = toRuleResponse(rule)
	}
	return out, nil
}

func (s *serviceImpl) announce(ctx context.Context, eventName string, rule models.AutomationRule, actorID *uuid.UUID) {
	if s.bus == nil {
		return
	}
	payload := map[string]any{
		"ruleId":      rule.ID.String(),
		"ruleName":    rule.Name,
		"triggerType": string(rule.TriggerType),
		"isActive":    rule.IsActive,
	}
	evtCtx := eventbus.EventContext{ActorID: actorID, BrandID: rule.BrandID, Source: "api"}
	if _, err := s.bus.Publish(ctx, eventName, payload, evtCtx); err != nil {
		s.logg.Error(s.logg.WithRuleID(ctx, rule.ID.String()), "failed to publish rule lifecycle event", err)
	}
}

// validateRule enforces rule shape at the management boundary: exactly one
// trigger binding matching the trigger type, a parseable schedule, a known
// operator in every condition leaf, and a non-empty action list.
func validateRule(rule models.AutomationRule) error {
	if rule.Name == "" {
		return errors.New(errors.CodeValidation, "rule name is required")
	}
	if !rule.TriggerType.IsValid() {
		return errors.New(errors.CodeValidation, fmt.Sprintf("invalid trigger type %q", rule.TriggerType))
	}

	switch rule.TriggerType {
	case enums.TriggerTypeEvent:
		if rule.TriggerSchedule != nil {
			return errors.New(errors.CodeValidation, "event-triggered rules must not set a schedule")
		}
		if rule.TriggerEvent == nil || *rule.TriggerEvent == "" {
			return errors.New(errors.CodeValidation, "event-triggered rules require a trigger event")
		}
		if err := validateTriggerEvent(*rule.TriggerEvent); err != nil {
			return err
		}
	case enums.TriggerTypeSchedule:
		if rule.TriggerEvent != nil {
			return errors.New(errors.CodeValidation, "schedule-triggered rules must not set a trigger event")
		}
		if rule.TriggerSchedule == nil || *rule.TriggerSchedule == "" {
			return errors.New(errors.CodeValidation, "schedule-triggered rules require a schedule")
		}
		if _, err := cron.ParseStandard(*rule.TriggerSchedule); err != nil {
			return errors.Wrap(errors.CodeValidation, err, fmt.Sprintf("invalid schedule %q", *rule.TriggerSchedule))
		}
	}

	if len(rule.Actions) == 0 {
		return errors.New(errors.CodeValidation, "at least one action is required")
	}
	for i, action := range rule.Actions {
		if strings.TrimSpace(action.Type) == "" {
			return errors.New(errors.CodeValidation, fmt.Sprintf("action %d is missing a type", i))
		}
	}

	if rule.ConditionConfig != nil {
		for _, leaf := range append(append([]types.Condition{}, rule.ConditionConfig.All...), rule.ConditionConfig.Any...) {
			if strings.TrimSpace(leaf.Path) == "" {
				return errors.New(errors.CodeValidation, "condition path is required")
			}
			if !leaf.Op.IsValid() {
				return errors.New(errors.CodeValidation, fmt.Sprintf("invalid condition operator %q", leaf.Op))
			}
		}
	}
	return nil
}

// validateTriggerEvent accepts exact event names plus prefix patterns ending
// in ".*".
func validateTriggerEvent(trigger string) error {
	name := trigger
	if prefix, ok := wildcardPrefix(trigger); ok {
		name = strings.TrimSuffix(prefix, ".")
		if name == "" {
			return errors.New(errors.CodeValidation, "wildcard trigger requires a module prefix")
		}
		name += ".x"
	}
	if err := eventbus.ValidateName(name); err != nil {
		return errors.Wrap(errors.CodeValidation, err, fmt.Sprintf("invalid trigger event %q", trigger))
	}
	return nil
}
