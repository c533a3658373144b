package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeAppointmentUpdate  NotificationType = "appointment_update"
	NotificationTypeScheduleChange     NotificationType = "schedule_change"
	NotificationTypeUnitShift          NotificationType = "unit_shift"
	NotificationTypeRouteOffer         NotificationType = "route_offer"
	NotificationTypeManualAssignment   NotificationType = "manual_assignment"
	NotificationTypeSystemAnnouncement NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeAppointmentUpdate,
	NotificationTypeScheduleChange,
	NotificationTypeUnitShift,
	NotificationTypeRouteOffer,
	NotificationTypeManualAssignment,
	NotificationTypeSystemAnnouncement,
}

// groupableNotificationTypes collapse into a single unread row with a
// counter when the same group key repeats.
var groupableNotificationTypes = map[NotificationType]bool{
	NotificationTypeAppointmentUpdate: true,
	NotificationTypeScheduleChange:    true,
}

// SupportsGrouping reports whether repeated unread notifications of this
// type should increment a counter instead of inserting a new row.
func (n NotificationType) SupportsGrouping() bool {
	return groupableNotificationTypes[n]
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
