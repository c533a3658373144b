package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/messaging"
)

const messageTimeFormat = "Mon Jan 2 at 3:04 PM"

// InAppEffect is one pending in-app notification row. Grouping against
// existing unread rows happens at delivery time, not here.
type InAppEffect struct {
	WorkerID uuid.UUID
	Type     enums.NotificationType
	Title    string
	Message  string
	Link     *string
	GroupKey *string
}

// Effects is the full side-effect list one logical event produces. Building
// it is pure; the Dispatcher performs it with per-effect error isolation.
type Effects struct {
	Messages []messaging.Message
	InApp    []InAppEffect
}

// IsEmpty reports whether there is anything to deliver.
func (e Effects) IsEmpty() bool {
	return len(e.Messages) == 0 && len(e.InApp) == 0
}

// TimeChangeInput describes a schedule move for one appointment.
type TimeChangeInput struct {
	AppointmentID uuid.UUID
	OldTime       time.Time
	NewTime       time.Time
	Tasks         []models.DispatchTask
	Workers       map[uuid.UUID]models.Worker
	Partner       *models.Partner
}

// UniqueWorkers collapses a task batch to one worker per id so a worker
// holding several task rows gets at most one message per logical event.
// Order is deterministic for tests and logs.
func UniqueWorkers(tasks []models.DispatchTask, workers map[uuid.UUID]models.Worker) []models.Worker {
	seen := make(map[uuid.UUID]bool, len(tasks))
	var out []models.Worker
	for _, task := range tasks {
		if task.WorkerID == nil || seen[*task.WorkerID] {
			continue
		}
		seen[*task.WorkerID] = true
		if worker, ok := workers[*task.WorkerID]; ok {
			out = append(out, worker)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].ID.String(), out[j].ID.String()) < 0
	})
	return out
}

// Split divides workers by who drives the follow-up: directly-managed
// workers get the reconfirmation handshake, partner-employed workers are
// only informed.
func Split(workers []models.Worker) (direct, partner []models.Worker) {
	for _, worker := range workers {
		if worker.EmploymentType == enums.EmploymentPartner {
			partner = append(partner, worker)
			continue
		}
		direct = append(direct, worker)
	}
	return direct, partner
}

// BuildTimeChange produces the informational messages and in-app rows for a
// schedule move. Directly-managed workers are excluded from the outbound
// messages here because the reconfirmation flow sends them its own link;
// they still get the in-app entry.
func BuildTimeChange(input TimeChangeInput) Effects {
	var effects Effects
	groupKey := groupKeyFor(input.AppointmentID, enums.NotificationTypeScheduleChange)
	body := fmt.Sprintf("BoxValet appointment moved from %s to %s",
		input.OldTime.Format(messageTimeFormat),
		input.NewTime.Format(messageTimeFormat))

	_, partnerWorkers := Split(UniqueWorkers(input.Tasks, input.Workers))
	for _, worker := range partnerWorkers {
		effects.Messages = append(effects.Messages, messaging.Message{
			Channel: messaging.ChannelSMS,
			To:      worker.Phone,
			Body:    body + ". Your employer will coordinate your schedule.",
		})
	}
	if input.Partner != nil && input.Partner.ContactPhone != nil {
		effects.Messages = append(effects.Messages, messaging.Message{
			Channel: messaging.ChannelSMS,
			To:      *input.Partner.ContactPhone,
			Body:    body + ".",
		})
	}

	for _, worker := range UniqueWorkers(input.Tasks, input.Workers) {
		effects.InApp = append(effects.InApp, InAppEffect{
			WorkerID: worker.ID,
			Type:     enums.NotificationTypeScheduleChange,
			Title:    "Schedule change",
			Message:  body,
			GroupKey: &groupKey,
		})
	}
	return effects
}

// RemovalInput describes workers dropped from an appointment by a plan or
// unit-count change.
type RemovalInput struct {
	AppointmentID uuid.UUID
	Workers       []models.Worker
}

// BuildRemoval tells removed workers their job was cancelled.
func BuildRemoval(input RemovalInput) Effects {
	var effects Effects
	groupKey := groupKeyFor(input.AppointmentID, enums.NotificationTypeAppointmentUpdate)
	for _, worker := range input.Workers {
		effects.Messages = append(effects.Messages, messaging.Message{
			Channel: messaging.ChannelSMS,
			To:      worker.Phone,
			Body:    "A BoxValet job on your schedule was cancelled. Check the app for details.",
		})
		effects.InApp = append(effects.InApp, InAppEffect{
			WorkerID: worker.ID,
			Type:     enums.NotificationTypeAppointmentUpdate,
			Title:    "Job cancelled",
			Message:  "An appointment you were assigned to has changed and no longer needs you.",
			GroupKey: &groupKey,
		})
	}
	return effects
}

// Merge concatenates effect lists from several build steps.
func Merge(lists ...Effects) Effects {
	var merged Effects
	for _, list := range lists {
		merged.Messages = append(merged.Messages, list.Messages...)
		merged.InApp = append(merged.InApp, list.InApp...)
	}
	return merged
}

func groupKeyFor(appointmentID uuid.UUID, typ enums.NotificationType) string {
	return fmt.Sprintf("%s:%s", typ, appointmentID)
}
