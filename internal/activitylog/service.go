package activitylog

import (
	"context"
	"fmt"
	"time"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/errors"
	"github.com/brandops/platform-backend/pkg/logger"
	"github.com/brandops/platform-backend/pkg/pagination"
)

// Page is one cursor page of audit entries.
type Page struct {
	Items      []models.ActivityEntry `json:"items"`
	NextCursor *string                `json:"nextCursor,omitempty"`
}

// Service exposes read access to the audit trail plus retention pruning.
type Service interface {
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
	PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

// ServiceParams configure the activity service.
type ServiceParams struct {
	Logger *logger.Logger
	Repo   Repository
}

type serviceImpl struct {
	logg *logger.Logger
	repo Repository
}

// NewService builds the activity service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	return &serviceImpl{logg: params.Logger, repo: params.Repo}, nil
}

func (s *serviceImpl) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "failed to list activity")
	}

	page := &Page{Items: entries}
	if len(entries) > limit {
		page.Items = entries[:limit]
		last := page.Items[len(page.Items)-1]
		cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.OccurredAt, ID: last.ID})
		page.NextCursor = &cursor
	}
	return page, nil
}

func (s *serviceImpl) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	count, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(errors.CodeInternal, err, "failed to prune activity entries")
	}
	if count > 0 {
		s.logg.Info(s.logg.WithField(ctx, "pruned", count), "pruned old activity entries")
	}
	return count, nil
}
