package reconfirm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/confirm"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

func setupReconfirmTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	tasks := `
CREATE TABLE IF NOT EXISTS dispatch_tasks (
  id TEXT PRIMARY KEY,
  appointment_id TEXT NOT NULL,
  external_id TEXT,
  worker_id TEXT,
  container_id TEXT NOT NULL,
  unit_number INTEGER NOT NULL,
  step_number INTEGER NOT NULL,
  arrival_at DATETIME NOT NULL,
  window_start DATETIME NOT NULL,
  window_end DATETIME NOT NULL,
  notes TEXT,
  notification_status TEXT NOT NULL DEFAULT 'none',
  last_notified_worker_id TEXT,
  notified_at DATETIME,
  accepted_at DATETIME,
  declined_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(tasks).Error)
	return db
}

func seedUnitTasks(t *testing.T, db *gorm.DB, appointmentID uuid.UUID, unit int, workerID *uuid.UUID) {
	t.Helper()

	arrival := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for step := 1; step <= 3; step++ {
		row := &models.DispatchTask{
			ID:                 uuid.New(),
			AppointmentID:      appointmentID,
			WorkerID:           workerID,
			ContainerID:        "container-default",
			UnitNumber:         unit,
			StepNumber:         step,
			ArrivalAt:          arrival,
			WindowStart:        arrival.Add(-time.Hour),
			WindowEnd:          arrival.Add(time.Hour),
			NotificationStatus: enums.TaskNotificationNone,
		}
		require.NoError(t, db.Create(row).Error)
	}
}

func unitWorkerIDs(t *testing.T, db *gorm.DB, appointmentID uuid.UUID, unit int) []*uuid.UUID {
	t.Helper()

	var tasks []models.DispatchTask
	require.NoError(t, db.
		Where("appointment_id = ? AND unit_number = ?", appointmentID, unit).
		Order("step_number ASC").
		Find(&tasks).Error)
	ids := make([]*uuid.UUID, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.WorkerID)
	}
	return ids
}

func TestUnitShiftAcceptLinksWorkerToNewUnit(t *testing.T) {
	db := setupReconfirmTestDB(t)
	worker := directWorker()
	appointmentID := uuid.New()

	seedUnitTasks(t, db, appointmentID, 1, &worker.ID)
	seedUnitTasks(t, db, appointmentID, 2, nil)

	svc, err := NewService(NewRepository(db), stubTokens{}, &recordingSender{}, "container-default")
	require.NoError(t, err)

	oldArrival := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Initiate(context.Background(), Request{
		AppointmentID: appointmentID,
		Worker:        worker,
		UnitNumber:    2,
		FromUnit:      1,
		OldArrival:    oldArrival,
		NewArrival:    oldArrival.Add(2 * time.Hour),
	}))

	outcome, err := svc.Resolve(context.Background(), &confirm.Claims{
		AppointmentID: appointmentID,
		WorkerID:      worker.ID,
		UnitNumber:    2,
		Action:        confirm.ActionReconfirm,
	})
	require.NoError(t, err)
	assert.True(t, outcome.Accepted)
	assert.Equal(t, 3, outcome.TasksUpdated)

	for _, id := range unitWorkerIDs(t, db, appointmentID, 1) {
		assert.Nil(t, id, "the old unit must be unassigned after the shift")
	}
	newUnit := unitWorkerIDs(t, db, appointmentID, 2)
	require.Len(t, newUnit, 3)
	for _, id := range newUnit {
		require.NotNil(t, id, "acceptance must link the worker to the new unit")
		assert.Equal(t, worker.ID, *id)
	}
}

func TestResolvePendingDeclineLeavesUnitUnassigned(t *testing.T) {
	db := setupReconfirmTestDB(t)
	worker := directWorker()
	appointmentID := uuid.New()

	seedUnitTasks(t, db, appointmentID, 1, nil)
	repo := NewRepository(db)
	require.NoError(t, repo.MarkPendingReconfirmation(context.Background(), appointmentID, 1, worker.ID, time.Now().UTC()))

	updated, err := repo.ResolvePending(context.Background(), appointmentID, 1, worker.ID, false, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	for _, id := range unitWorkerIDs(t, db, appointmentID, 1) {
		assert.Nil(t, id, "a decline never links the worker")
	}
	var cancelled int64
	require.NoError(t, db.Model(&models.DispatchTask{}).
		Where("appointment_id = ? AND notification_status = ?", appointmentID, enums.TaskNotificationCancelled).
		Count(&cancelled).Error)
	assert.Equal(t, int64(3), cancelled)
}
