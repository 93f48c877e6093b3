package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/brandops/platform-backend/pkg/db/models"
	"github.com/brandops/platform-backend/pkg/enums"
	"github.com/brandops/platform-backend/pkg/pagination"
)

func setupNotificationsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	notifications := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  brand_id TEXT,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  data TEXT,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(notifications).Error)
	require.NoError(t, db.Exec("DELETE FROM notifications").Error)
	return db
}

func persistedNotification(t *testing.T, db *gorm.DB, brandID *uuid.UUID, created time.Time) *models.Notification {
	t.Helper()

	notification := &models.Notification{
		ID:        uuid.New(),
		BrandID:   brandID,
		Type:      enums.NotificationTypeAutomation,
		Title:     "rule fired",
		Message:   "an automation rule completed",
		CreatedAt: created,
	}
	require.NoError(t, db.Create(notification).Error)
	return notification
}

func TestRepositoryListScopesBrand(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	brandID := uuid.New()
	otherBrand := uuid.New()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	scoped := persistedNotification(t, db, &brandID, base)
	global := persistedNotification(t, db, nil, base.Add(time.Minute))
	persistedNotification(t, db, &otherBrand, base.Add(2*time.Minute))

	page, err := repo.List(ctx, ListFilter{BrandID: &brandID}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Newest first: platform-wide, then brand-scoped.
	assert.Equal(t, global.ID, page[0].ID)
	assert.Equal(t, scoped.ID, page[1].ID)
}

func TestRepositoryListUnreadOnly(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	unread := persistedNotification(t, db, nil, base)
	read := persistedNotification(t, db, nil, base.Add(time.Minute))
	require.NoError(t, repo.MarkRead(ctx, read.ID, base.Add(2*time.Minute)))

	page, err := repo.List(ctx, ListFilter{UnreadOnly: true}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, unread.ID, page[0].ID)
}

func TestRepositoryListPaginates(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		persistedNotification(t, db, nil, base.Add(time.Duration(i)*time.Minute))
	}

	first, err := repo.List(ctx, ListFilter{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	// Limit plus one buffer row to signal the next page.
	require.Len(t, first, 3)

	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID})
	second, err := repo.List(ctx, ListFilter{}, pagination.Params{Limit: 10, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 3)
	assert.True(t, second[0].CreatedAt.Before(first[1].CreatedAt))
}

func TestRepositoryMarkRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	notification := persistedNotification(t, db, nil, time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC))
	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.MarkRead(ctx, notification.ID, at))
	// Marking an already-read notification is a no-op, not an error.
	require.NoError(t, repo.MarkRead(ctx, notification.ID, at.Add(time.Hour)))

	assert.ErrorIs(t, repo.MarkRead(ctx, uuid.New(), at), ErrNotificationNotFound)
}

func TestRepositoryMarkAllRead(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	brandID := uuid.New()
	otherBrand := uuid.New()
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	persistedNotification(t, db, &brandID, base)
	persistedNotification(t, db, nil, base.Add(time.Minute))
	persistedNotification(t, db, &otherBrand, base.Add(2*time.Minute))

	count, err := repo.MarkAllRead(ctx, &brandID, base.Add(time.Hour))
	require.NoError(t, err)
	// Brand-scoped plus platform-wide rows.
	assert.Equal(t, int64(2), count)

	page, err := repo.List(ctx, ListFilter{BrandID: &brandID, UnreadOnly: true}, pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestRepositoryDeleteOlderThan(t *testing.T) {
	db := setupNotificationsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	persistedNotification(t, db, nil, base.Add(-48*time.Hour))
	kept := persistedNotification(t, db, nil, base)

	count, err := repo.DeleteOlderThan(ctx, base.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	page, err := repo.List(ctx, ListFilter{}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, kept.ID, page[0].ID)
}
