package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/brandops/platform-backend/pkg/types"
)

// ActivityEntry is the audit record persisted for every published event.
type ActivityEntry struct {
	ID         uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID    uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex"`
	EventName  string        `gorm:"type:text;not null;index"`
	BrandID    *uuid.UUID    `gorm:"type:uuid"`
	ActorID    *uuid.UUID    `gorm:"type:uuid"`
	Source     *string       `gorm:"type:text"`
	Payload    types.JSONMap `gorm:"type:jsonb"`
	OccurredAt time.Time     `gorm:"type:timestamptz;not null"`
	CreatedAt  time.Time     `gorm:"type:timestamptz;default:now()"`
}
