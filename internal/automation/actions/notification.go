package actions

import (
	"context"
	"fmt"

	"github.com/brandops/platform-backend/internal/automation"
	"github.com/brandops/platform-backend/internal/notifications"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/types"
)

// CreateNotification writes an in-app notification from a rule run. Params:
//
//	title   (string, required) notification title, {{path}} interpolated
//	message (string, required) notification body, {{path}} interpolated
//	type    (string, optional) notification type, defaults to "automation"
//	link    (string, optional) target link
type CreateNotification struct {
	service notifications.Service
}

// NewCreateNotification builds the create-notification action handler.
func NewCreateNotification(service notifications.Service) *CreateNotification {
	return &CreateNotification{service: service}
}

func (a *CreateNotification) Type() string { return "create-notification" }

func (a *CreateNotification) Execute(ctx context.Context, inv automation.Invocation) error {
	title, _ := inv.Action.Params["title"].(string)
	message, _ := inv.Action.Params["message"].(string)
	if title == "" || message == "" {
		return fmt.Errorf("create-notification requires title and message params")
	}

	notificationType := enums.NotificationTypeAutomation
	if raw, ok := inv.Action.Params["type"].(string); ok && raw != "" {
		parsed, err := enums.ParseNotificationType(raw)
		if err != nil {
			return err
		}
		notificationType = parsed
	}

	scope := inv.Trigger.ConditionScope()
	input := notifications.CreateInput{
		BrandID: inv.Rule.BrandID,
		Type:    notificationType,
		Title:   interpolate(title, scope),
		Message: interpolate(message, scope),
		Data: types.JSONMap{
			"ruleId":   inv.Rule.ID.String(),
			"ruleName": inv.Rule.Name,
		},
	}
	if link, ok := inv.Action.Params["link"].(string); ok && link != "" {
		interpolated := interpolate(link, scope)
		input.Link = &interpolated
	}
	if inv.Trigger.Event != nil {
		input.Data["eventId"] = inv.Trigger.Event.ID.String()
		input.Data["eventName"] = inv.Trigger.Event.Name
		if inv.Rule.BrandID == nil && inv.Trigger.Event.Context.BrandID != nil {
			brandID := *inv.Trigger.Event.Context.BrandID
			input.BrandID = &brandID
		}
	}

	if _, err := a.service.Create(ctx, input); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}
