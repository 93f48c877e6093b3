package automation

// Event names published by the automation module itself. Producers elsewhere
// in the platform publish their own <module>.<verb> names; the engine never
// enumerates them.
const (
	EventRuleCreated  = "automation.rule.created"
	EventRuleUpdated  = "automation.rule.updated"
	EventRuleDeleted  = "automation.rule.deleted"
	EventRuleExecuted = "automation.rule.executed"
)
