package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to workers.
// GroupKey collapses repeated unread notifications about the same subject
// into one row with an incremented GroupCount.
type Notification struct {
	ID         uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	WorkerID   uuid.UUID              `gorm:"type:uuid;not null;index"`
	Type       enums.NotificationType `gorm:"type:notification_type;not null"`
	Title      string                 `gorm:"type:text;not null"`
	Message    string                 `gorm:"type:text;not null"`
	Link       *string                `gorm:"type:text"`
	GroupKey   *string                `gorm:"type:text;index"`
	GroupCount int                    `gorm:"not null;default:1"`
	ReadAt     *time.Time             `gorm:"type:timestamptz"`
	CreatedAt  time.Time              `gorm:"type:timestamptz;default:now()"`
}
