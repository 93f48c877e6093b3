package automation

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/types"
)

// CreateRuleInput is the management payload for defining a rule.
type CreateRuleInput struct {
	Name            string                 `json:"name" validate:"required,min=1,max=200"`
	Description     *string                `json:"description,omitempty" validate:"omitempty,max=2000"`
	BrandID         *uuid.UUID             `json:"brandId,omitempty"`
	TriggerType     enums.TriggerType      `json:"triggerType" validate:"required"`
	TriggerEvent    *string                `json:"triggerEvent,omitempty"`
	TriggerSchedule *string                `json:"triggerSchedule,omitempty"`
	ConditionConfig *types.ConditionConfig `json:"conditionConfig,omitempty"`
	Actions         types.ActionList       `json:"actions" validate:"required,min=1,dive"`
	IsActive        *bool                  `json:"isActive,omitempty"`
}

// UpdateRuleInput carries partial rule changes. Nil fields are left untouched;
// trigger fields must stay consistent with the resulting trigger type.
type UpdateRuleInput struct {
	Name            *string                `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description     *string                `json:"description,omitempty" validate:"omitempty,max=2000"`
	TriggerType     *enums.TriggerType     `json:"triggerType,omitempty"`
	TriggerEvent    *string                `json:"triggerEvent,omitempty"`
	TriggerSchedule *string                `json:"triggerSchedule,omitempty"`
	ConditionConfig *types.ConditionConfig `json:"conditionConfig,omitempty"`
	Actions         *types.ActionList      `json:"actions,omitempty" validate:"omitempty,min=1,dive"`
	IsActive        *bool                  `json:"isActive,omitempty"`
}

// RuleResponse is the outward shape of a rule.
type RuleResponse struct {
	ID              uuid.UUID              `json:"id"`
	Name            string                 `json:"name"`
	Description     *string                `json:"description,omitempty"`
	BrandID         *uuid.UUID             `json:"brandId,omitempty"`
	TriggerType     enums.TriggerType      `json:"triggerType"`
	TriggerEvent    *string                `json:"triggerEvent,omitempty"`
	TriggerSchedule *string                `json:"triggerSchedule,omitempty"`
	ConditionConfig *types.ConditionConfig `json:"conditionConfig,omitempty"`
	Actions         types.ActionList       `json:"actions"`
	IsActive        bool                   `json:"isActive"`
	LastRunAt       *time.Time             `json:"lastRunAt,omitempty"`
	LastRunStatus   *enums.RunStatus       `json:"lastRunStatus,omitempty"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func toRuleResponse(rule models.AutomationRule) RuleResponse {
	return RuleResponse{
		ID:              rule.ID,
		Name:            rule.Name,
		Description:     rule.Description,
		BrandID:         rule.BrandID,
		TriggerType:     rule.TriggerType,
		TriggerEvent:    rule.TriggerEvent,
		TriggerSchedule: rule.TriggerSchedule,
		ConditionConfig: rule.ConditionConfig,
		Actions:         rule.Actions,
		IsActive:        rule.IsActive,
		LastRunAt:       rule.LastRunAt,
		LastRunStatus:   rule.LastRunStatus,
		CreatedAt:       rule.CreatedAt,
		UpdatedAt:       rule.UpdatedAt,
	}
}
