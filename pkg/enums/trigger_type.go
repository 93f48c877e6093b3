package enums

import "fmt"

// TriggerType maps to the trigger_type enum in Postgres.
type TriggerType string

const (
	TriggerTypeEvent    TriggerType = "event"
	TriggerTypeSchedule TriggerType = "schedule"
)

var validTriggerTypes = []TriggerType{
	TriggerTypeEvent,
	TriggerTypeSchedule,
}

// IsValid reports whether the value matches the canonical trigger_type enum.
func (t TriggerType) IsValid() bool {
	for _, candidate := range validTriggerTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTriggerType converts raw input into TriggerType.
func ParseTriggerType(value string) (TriggerType, error) {
	for _, candidate := range validTriggerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trigger type %q", value)
}
