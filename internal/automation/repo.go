package automation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
)

// ErrRuleNotFound is returned when a rule id does not exist in the store.
var ErrRuleNotFound = errors.New("automation rule not found")

// Repository exposes persistence helpers for automation rules.
type Repository interface {
	List(ctx context.Context, brandID *uuid.UUID) ([]models.AutomationRule, error)
	Get(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)
	Save(ctx context.Context, rule *models.AutomationRule) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	UpdateRunStatus(ctx context.Context, id uuid.UUID, at time.Time, status enums.RunStatus) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an automation rule repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) List(ctx context.Context, brandID *uuid.UUID) ([]models.AutomationRule, error) {
	query := r.db.WithContext(ctx).Model(&models.AutomationRule{})
	if brandID != nil {
		query = query.Where("brand_id = ?", *brandID)
	}
	var rules []models.AutomationRule
	if err := query.Order("created_at ASC, id ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repositoryImpl) Get(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	var rule models.AutomationRule
	err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repositoryImpl) Save(ctx context.Context, rule *models.AutomationRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *repositoryImpl) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&models.AutomationRule{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": active, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *repositoryImpl) UpdateRunStatus(ctx context.Context, id uuid.UUID, at time.Time, status enums.RunStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.AutomationRule{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_run_at": at, "last_run_status": status})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRuleNotFound
	}
	return nil
}
