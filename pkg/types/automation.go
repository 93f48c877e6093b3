package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/brandops/platform-backend/pkg/enums"
)

// Condition is one leaf test against an event payload.
type Condition struct {
	Path  string                  `json:"path"`
	Op    enums.ConditionOperator `json:"op"`
	Value any                     `json:"value,omitempty"`
}

// ConditionConfig combines leaf conditions. All branches must hold when both
// are present; an absent config means the rule always matches.
type ConditionConfig struct {
	All []Condition `json:"all,omitempty"`
	Any []Condition `json:"any,omitempty"`
}

func (c ConditionConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *ConditionConfig) Scan(value interface{}) error {
	if value == nil {
		*c = ConditionConfig{}
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("condition config: %w", err)
	}
	return json.Unmarshal(raw, c)
}

// ActionConfig names a registered action handler plus its parameters.
type ActionConfig struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ActionList is the ordered action sequence stored on a rule.
type ActionList []ActionConfig

func (a ActionList) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal(ActionList{})
	}
	return json.Marshal(a)
}

func (a *ActionList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	raw, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("action list: %w", err)
	}
	return json.Unmarshal(raw, a)
}
