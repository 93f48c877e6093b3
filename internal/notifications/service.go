package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/errors"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/pagination"
	"github.com/brandops/platform-backend/pkg/types"
)

// CreateInput describes one notification to surface.
type CreateInput struct {
	BrandID *uuid.UUID             `json:"brandId,omitempty"`
	Type    enums.NotificationType `json:"type" validate:"required"`
	Title   string                 `json:"title" validate:"required,min=1,max=200"`
	Message string                 `json:"message" validate:"required,min=1,max=2000"`
	Data    types.JSONMap          `json:"data,omitempty"`
	Link    *string                `json:"link,omitempty" validate:"omitempty,max=2000"`
}

// Page is one cursor page of notifications.
type Page struct {
	Items      []models.Notification `json:"items"`
	NextCursor *string               `json:"nextCursor,omitempty"`
}

// Service manages user-facing notifications.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Notification, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
	MarkRead(ctx context.Context, id uuid.UUID) error
	MarkAllRead(ctx context.Context, brandID *uuid.UUID) (int64, error)
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ServiceParams configure the notification service.
type ServiceParams struct {
	Logger *logger.Logger
	Repo   Repository
}

type serviceImpl struct {
	logg *logger.Logger
	repo Repository
}

// NewService builds the notification service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	return &serviceImpl{logg: params.Logger, repo: params.Repo}, nil
}

func (s *serviceImpl) Create(ctx context.Context, input CreateInput) (*models.Notification, error) {
	if !input.Type.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid notification type %q", input.Type))
	}
	title := strings.TrimSpace(input.Title)
	message := strings.TrimSpace(input.Message)
	if title == "" || message == "" {
		return nil, errors.New(errors.CodeValidation, "notification title and message are required")
	}

	notification := models.Notification{
		ID:      uuid.New(),
		BrandID: input.BrandID,
		Type:    input.Type,
		Title:   title,
		Message: message,
		Data:    input.Data,
		Link:    input.Link,
	}
	if err := s.repo.Create(ctx, &notification); err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to create notification")
	}
	return &notification, nil
}

func (s *serviceImpl) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	notifications, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to list notifications")
	}

	page := &Page{Items: notifications}
	if len(notifications) > limit {
		page.Items = notifications[:limit]
		last := page.Items[len(page.Items)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &cursor
	}
	return page, nil
}

func (s *serviceImpl) MarkRead(ctx context.Context, id uuid.UUID) error {
	err := s.repo.MarkRead(ctx, id, time.Now().UTC())
	if err == ErrNotificationNotFound {
		return errors.New(errors.CodeNotFound, "notification not found")
	}
	if err != nil {
		return errors.Wrap(errors.CodeInternal, err, "failed to mark notification read")
	}
	return nil
}

func (s *serviceImpl) MarkAllRead(ctx context.Context, brandID *uuid.UUID) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, brandID, time.Now().UTC())
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "failed to mark notifications read")
	}
	return count, nil
}

func (s *serviceImpl) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	count, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "failed to prune notifications")
	}
	if count > 0 {
		s.logg.Info(s.logg.WithField(ctx, "pruned", count), "pruned old notifications")
	}
	return count, nil
}
