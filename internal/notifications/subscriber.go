package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/internal/eventbus"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/types"
)

// Subscriber surfaces user-facing notifications for selected events. It
// registers on specific names rather than the wildcard; the audit trail is the
// activity log's job.
type Subscriber struct {
	logg    *logger.Logger
	service Service
}

// NewSubscriber builds the notification subscriber.
func NewSubscriber(logg *logger.Logger, service Service) (*Subscriber, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if service == nil {
		return nil, fmt.Errorf("service required")
	}
	return &Subscriber{logg: logg, service: service}, nil
}

// Register attaches the subscriber's handlers to the bus.
func (s *Subscriber) Register(bus *eventbus.Bus) {
	bus.Subscribe("automation.rule.executed", s.onRuleExecuted)
	bus.Subscribe("system.alert", s.onSystemAlert)
}

// onRuleExecuted alerts operators when a rule run did not fully succeed.
// Successful and skipped runs stay quiet.
func (s *Subscriber) onRuleExecuted(ctx context.Context, evt eventbus.Envelope) error {
	status, _ := evt.Payload["status"].(string)
	if status != string(enums.RunStatusPartial) && status != string(enums.RunStatusFailed) {
		return nil
	}

	ruleName, _ := evt.Payload["ruleName"].(string)
	if ruleName == "" {
		ruleName = "automation rule"
	}

	input := CreateInput{
		BrandID: brandIDFromContext(evt.Context),
		Type:    enums.NotificationTypeAutomation,
		Title:   fmt.Sprintf("Automation %q finished with status %s", ruleName, status),
		Message: fmt.Sprintf("Rule %q completed with status %s. Check the run details for failing actions.", ruleName, status),
		Data:    types.JSONMap(evt.Payload),
	}
	if _, err := s.service.Create(ctx, input); err != nil {
		return fmt.Errorf("notify on rule execution: %w", err)
	}
	return nil
}

func (s *Subscriber) onSystemAlert(ctx context.Context, evt eventbus.Envelope) error {
	title, _ := evt.Payload["title"].(string)
	message, _ := evt.Payload["message"].(string)
	if title == "" {
		title = "System alert"
	}
	if message == "" {
		message = "A system alert was raised."
	}

	input := CreateInput{
		BrandID: brandIDFromContext(evt.Context),
		Type:    enums.NotificationTypeSystem,
		Title:   title,
		Message: message,
		Data:    types.JSONMap(evt.Payload),
	}
	if _, err := s.service.Create(ctx, input); err != nil {
		return fmt.Errorf("notify on system alert: %w", err)
	}
	return nil
}

func brandIDFromContext(evtCtx eventbus.EventContext) *uuid.UUID {
	if evtCtx.BrandID == nil {
		return nil
	}
	brandID := *evtCtx.BrandID
	return &brandID
}
