package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/types"
)

// AutomationRule is a user-authored trigger + condition + action binding.
// The engine reads rules; only last_run_at/last_run_status are written back.
type AutomationRule struct {
	ID              uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string                 `gorm:"type:text;not null"`
	Description     *string                `gorm:"type:text"`
	BrandID         *uuid.UUID             `gorm:"type:uuid"`
	TriggerType     enums.TriggerType      `gorm:"type:trigger_type;not null"`
	TriggerEvent    *string                `gorm:"type:text"`
	TriggerSchedule *string                `gorm:"type:text"`
	ConditionConfig *types.ConditionConfig `gorm:"type:jsonb"`
	Actions         types.ActionList       `gorm:"type:jsonb;not null"`
	IsActive        bool                   `gorm:"not null;default:true"`
	LastRunAt       *time.Time             `gorm:"type:timestamptz"`
	LastRunStatus   *enums.RunStatus       `gorm:"type:run_status"`
	CreatedByID     *uuid.UUID             `gorm:"type:uuid"`
	CreatedAt       time.Time              `gorm:"type:timestamptz;default:now()"`
	UpdatedAt       time.Time              `gorm:"type:timestamptz;default:now()"`
}
