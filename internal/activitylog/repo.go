package activitylog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/pagination"
)

// ListFilter scopes an activity page.
type ListFilter struct {
	BrandID   *uuid.UUID
	EventName *string
}

// Repository persists and queries the audit trail.
type Repository interface {
	Record(ctx context.Context, entry *models.ActivityEntry) error
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.ActivityEntry, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an activity repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// Record inserts one audit row. Re-delivery of an already-recorded event id is
// ignored so the audit trail stays one row per envelope.
func (r *repositoryImpl) Record(ctx context.Context, entry *models.ActivityEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(entry).Error
}

func (r *repositoryImpl) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.ActivityEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.ActivityEntry{})
	if filter.BrandID != nil {
		query = query.Where("brand_id = ?", *filter.BrandID)
	}
	if filter.EventName != nil && *filter.EventName != "" {
		query = query.Where("event_name = ?", *filter.EventName)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(occurred_at < ?) OR (occurred_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var entries []models.ActivityEntry
	err = query.
		Order("occurred_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repositoryImpl) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&models.ActivityEntry{})
	return result.RowsAffected, result.Error
}
