package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/pagination"
)

func setupNotifyTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	notifications := `
CREATE TABLE IF NOT EXISTS notifications (
  id TEXT PRIMARY KEY,
  worker_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  group_key TEXT,
  group_count INTEGER NOT NULL DEFAULT 1,
  read_at DATETIME,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(notifications).Error)
	return db
}

func seedNotification(t *testing.T, db *gorm.DB, workerID uuid.UUID, title string, created time.Time, read bool) *models.Notification {
	t.Helper()

	row := &models.Notification{
		ID:        uuid.New(),
		WorkerID:  workerID,
		Type:      enums.NotificationTypeScheduleChange,
		Title:     title,
		Message:   title,
		CreatedAt: created,
	}
	if read {
		readAt := created.Add(time.Minute)
		row.ReadAt = &readAt
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func TestRepositoryListForWorker_pagination(t *testing.T) {
	db := setupNotifyTestDB(t)
	repo := NewRepository(db)

	workerID := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	seedNotification(t, db, workerID, "oldest", now.Add(-2*time.Hour), false)
	seedNotification(t, db, workerID, "middle", now.Add(-time.Hour), false)
	seedNotification(t, db, workerID, "newest", now, false)
	seedNotification(t, db, uuid.New(), "other worker", now, false)

	first, next, err := repo.ListForWorker(context.Background(), workerID, false, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "newest", first[0].Title)
	assert.Equal(t, "middle", first[1].Title)
	require.NotEmpty(t, next)

	second, last, err := repo.ListForWorker(context.Background(), workerID, false, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "oldest", second[0].Title)
	assert.Empty(t, last)
}

func TestRepositoryListForWorker_unreadOnly(t *testing.T) {
	db := setupNotifyTestDB(t)
	repo := NewRepository(db)

	workerID := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	seedNotification(t, db, workerID, "read", now.Add(-time.Hour), true)
	unread := seedNotification(t, db, workerID, "unread", now, false)

	rows, next, err := repo.ListForWorker(context.Background(), workerID, true, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, unread.ID, rows[0].ID)
	assert.Empty(t, next)
}

func TestRepositoryListForWorker_rejectsBadCursor(t *testing.T) {
	db := setupNotifyTestDB(t)
	repo := NewRepository(db)

	_, _, err := repo.ListForWorker(context.Background(), uuid.New(), false, pagination.Params{Cursor: "not-base64!"})
	require.Error(t, err)
}

func TestRepositoryMarkRead_scopedToWorker(t *testing.T) {
	db := setupNotifyTestDB(t)
	repo := NewRepository(db)

	workerID := uuid.New()
	now := time.Now().UTC()
	row := seedNotification(t, db, workerID, "offer", now, false)

	updated, err := repo.MarkRead(context.Background(), uuid.New(), row.ID)
	require.NoError(t, err)
	assert.Zero(t, updated, "another worker's id must not mark the row")

	updated, err = repo.MarkRead(context.Background(), workerID, row.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	updated, err = repo.MarkRead(context.Background(), workerID, row.ID)
	require.NoError(t, err)
	assert.Zero(t, updated, "already-read rows are not updated again")
}

func TestRepositoryDeleteReadOlderThan(t *testing.T) {
	db := setupNotifyTestDB(t)
	repo := NewRepository(db)

	workerID := uuid.New()
	now := time.Now().UTC()

	stale := seedNotification(t, db, workerID, "stale", now.AddDate(0, 0, -45), false)
	staleRead := stale.CreatedAt.Add(time.Minute)
	require.NoError(t, db.Model(stale).Update("read_at", staleRead).Error)

	seedNotification(t, db, workerID, "recent read", now.Add(-time.Hour), true)
	seedNotification(t, db, workerID, "old but unread", now.AddDate(0, 0, -45), false)

	deleted, err := repo.DeleteReadOlderThan(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, db.Model(&models.Notification{}).Where("worker_id = ?", workerID).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining)
}
