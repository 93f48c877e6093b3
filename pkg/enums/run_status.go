package enums

import "fmt"

// RunStatus maps to the run_status enum in Postgres and summarizes
// how a rule's most recent execution finished.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
	RunStatusSkipped RunStatus = "skipped"
)

var validRunStatuses = []RunStatus{
	RunStatusSuccess,
	RunStatusPartial,
	RunStatusFailed,
	RunStatusSkipped,
}

// IsValid reports whether the value matches the canonical run_status enum.
func (s RunStatus) IsValid() bool {
	for _, candidate := range validRunStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRunStatus converts raw input into RunStatus.
func ParseRunStatus(value string) (RunStatus, error) {
	for _, candidate := range validRunStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid run status %q", value)
}
