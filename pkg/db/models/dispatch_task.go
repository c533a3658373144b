package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// DispatchTask is one step of servicing one storage unit, mirrored to the
// dispatch platform. Each unit carries one row per step (pickup,
// customer stop, return). ExternalID is the platform's task id once synced.
// Unassigning the worker must clear the notification bookkeeping columns in
// the same update.
type DispatchTask struct {
	ID                   uuid.UUID                    `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AppointmentID        uuid.UUID                    `gorm:"column:appointment_id;type:uuid;not null;index"`
	ExternalID           *string                      `gorm:"column:external_id;type:text"`
	WorkerID             *uuid.UUID                   `gorm:"column:worker_id;type:uuid"`
	ContainerID          string                       `gorm:"column:container_id;type:text;not null"`
	UnitNumber           int                          `gorm:"column:unit_number;not null"`
	StepNumber           int                          `gorm:"column:step_number;not null"`
	ArrivalAt            time.Time                    `gorm:"column:arrival_at;type:timestamptz;not null"`
	WindowStart          time.Time                    `gorm:"column:window_start;type:timestamptz;not null"`
	WindowEnd            time.Time                    `gorm:"column:window_end;type:timestamptz;not null"`
	Notes                *string                      `gorm:"column:notes"`
	NotificationStatus   enums.TaskNotificationStatus `gorm:"column:notification_status;type:task_notification_status;not null;default:'none'"`
	LastNotifiedWorkerID *uuid.UUID                   `gorm:"column:last_notified_worker_id;type:uuid"`
	NotifiedAt           *time.Time                   `gorm:"column:notified_at"`
	AcceptedAt           *time.Time                   `gorm:"column:accepted_at"`
	DeclinedAt           *time.Time                   `gorm:"column:declined_at"`
	CreatedAt            time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}
