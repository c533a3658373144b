package enums

import "fmt"

// TaskNotificationStatus maps to the task_notification_status enum in Postgres.
type TaskNotificationStatus string

const (
	TaskNotificationNone      TaskNotificationStatus = "none"
	TaskNotificationPending   TaskNotificationStatus = "pending_reconfirmation"
	TaskNotificationCancelled TaskNotificationStatus = "cancelled"
)

var validTaskNotificationStatuses = []TaskNotificationStatus{
	TaskNotificationNone,
	TaskNotificationPending,
	TaskNotificationCancelled,
}

// IsValid reports whether the value matches the canonical enum.
func (s TaskNotificationStatus) IsValid() bool {
	for _, candidate := range validTaskNotificationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTaskNotificationStatus converts raw strings into TaskNotificationStatus.
func ParseTaskNotificationStatus(value string) (TaskNotificationStatus, error) {
	for _, candidate := range validTaskNotificationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task notification status %q", value)
}
