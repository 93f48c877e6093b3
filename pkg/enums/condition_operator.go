package enums

import "fmt"

// ConditionOperator is the comparison applied by a condition leaf.
type ConditionOperator string

const (
	OperatorEq       ConditionOperator = "eq"
	OperatorNeq      ConditionOperator = "neq"
	OperatorGt       ConditionOperator = "gt"
	OperatorLt       ConditionOperator = "lt"
	OperatorIncludes ConditionOperator = "includes"
)

var validConditionOperators = []ConditionOperator{
	OperatorEq,
	OperatorNeq,
	OperatorGt,
	OperatorLt,
	OperatorIncludes,
}

// IsValid reports whether the operator is one the evaluator understands.
func (o ConditionOperator) IsValid() bool {
	for _, candidate := range validConditionOperators {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseConditionOperator converts raw input into ConditionOperator.
func ParseConditionOperator(value string) (ConditionOperator, error) {
	for _, candidate := range validConditionOperators {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid condition operator %q", value)
}
