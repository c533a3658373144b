package dispatchsync

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/jdmarin/boxvalet-backend/internal/schedule"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/dispatch"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
)

// StepsPerUnit is the fixed step count for servicing one storage unit:
// pickup, customer stop, return.
const StepsPerUnit = 3

var unitNotesPattern = regexp.MustCompile(`(?i)unit\s+\d+`)

// Input is the post-mutation appointment state to push to the platform.
type Input struct {
	Appointment models.Appointment
	Customer    models.Customer
	Partner     *models.Partner
	Tasks       []models.DispatchTask
	// PlanChanged and PartnerChanged force container re-resolution.
	// Without them a task with a worker keeps its current container so an
	// edit never pulls someone off a job mid-route.
	PlanChanged    bool
	PartnerChanged bool
}

// TaskOutcome is the per-task sync result.
type TaskOutcome struct {
	TaskID     uuid.UUID
	UnitNumber int
	StepNumber int
	ExternalID string
	Err        error
}

// Result aggregates outcomes across the batch. A failed task never aborts
// its siblings; the combined error is surfaced for logging.
type Result struct {
	Outcomes []TaskOutcome
	Err      error
}

// Failed reports whether any task in the batch failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

func (r *Result) record(outcome TaskOutcome) {
	r.Outcomes = append(r.Outcomes, outcome)
	if outcome.Err != nil {
		r.Err = multierr.Append(r.Err, fmt.Errorf("task %s (unit %d step %d): %w",
			outcome.TaskID, outcome.UnitNumber, outcome.StepNumber, outcome.Err))
	}
}

// Synchronizer mirrors local task rows onto the dispatch platform.
type Synchronizer interface {
	Sync(ctx context.Context, input Input) Result
	CreateUnits(ctx context.Context, input Input, unitNumbers []int) Result
	Delete(ctx context.Context, tasks []models.DispatchTask) Result
}

type synchronizer struct {
	platform           PlatformClient
	repo               Repository
	timing             schedule.Timing
	defaultContainerID string
	log                *logger.Logger
}

// NewSynchronizer builds the platform synchronizer.
func NewSynchronizer(platform PlatformClient, repo Repository, timing schedule.Timing, defaultContainerID string, log *logger.Logger) (Synchronizer, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("task repository required")
	}
	if strings.TrimSpace(defaultContainerID) == "" {
		return nil, fmt.Errorf("default container id required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &synchronizer{
		platform:           platform,
		repo:               repo,
		timing:             timing,
		defaultContainerID: defaultContainerID,
		log:                log,
	}, nil
}

// ResolveContainer picks the platform container for one unit. Unit 1 of a
// full-service appointment goes to the partner's registered container; every
// other case falls back to the default pool.
func ResolveContainer(plan enums.PlanType, partner *models.Partner, unitNumber int, defaultContainerID string) string {
	if plan == enums.PlanFullService && unitNumber == 1 &&
		partner != nil && partner.ContainerID != nil && strings.TrimSpace(*partner.ContainerID) != "" {
		return *partner.ContainerID
	}
	return defaultContainerID
}

// Sync pushes each existing task row to the platform, re-resolving the
// container only when the plan or partner changed or the task has no
// worker. Failures are recorded per task and never stop the batch.
func (s *synchronizer) Sync(ctx context.Context, input Input) Result {
	var result Result
	for _, task := range input.Tasks {
		outcome := TaskOutcome{TaskID: task.ID, UnitNumber: task.UnitNumber, StepNumber: task.StepNumber}
		externalID, err := s.syncTask(ctx, input, task)
		if err != nil {
			s.log.Error(ctx, "dispatch task sync failed", err)
			outcome.Err = err
		}
		outcome.ExternalID = externalID
		result.record(outcome)
	}
	return result
}

func (s *synchronizer) syncTask(ctx context.Context, input Input, task models.DispatchTask) (string, error) {
	reassign := input.PlanChanged || input.PartnerChanged || task.WorkerID == nil
	containerID := task.ContainerID
	var workerID *string
	if reassign {
		containerID = ResolveContainer(input.Appointment.PlanType, input.Partner, task.UnitNumber, s.defaultContainerID)
	} else if task.WorkerID != nil {
		id := task.WorkerID.String()
		workerID = &id
	}

	notes := fmt.Sprintf("Unit %d", task.UnitNumber)
	if task.ExternalID != nil {
		remote, err := s.platform.GetTask(ctx, *task.ExternalID)
		if err != nil {
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
				return "", err
			}
			// Remote task vanished; fall through and recreate it.
			task.ExternalID = nil
		} else {
			notes = rewriteUnitNotes(remote.Notes, task.UnitNumber)
		}
	}

	params := s.buildParams(input, task, containerID, workerID, notes)
	if task.ExternalID == nil {
		created, err := s.platform.CreateTask(ctx, params)
		if err != nil {
			return "", err
		}
		return created.ID, s.repo.SaveExternalRef(ctx, task.ID, created.ID, containerID)
	}

	if _, err := s.platform.UpdateTask(ctx, *task.ExternalID, params); err != nil {
		return "", err
	}
	if containerID != task.ContainerID {
		return *task.ExternalID, s.repo.SaveExternalRef(ctx, task.ID, *task.ExternalID, containerID)
	}
	return *task.ExternalID, nil
}

// CreateUnits creates the full step set for each new unit, on the platform
// and in the datastore, isolating failures per step.
func (s *synchronizer) CreateUnits(ctx context.Context, input Input, unitNumbers []int) Result {
	var result Result
	for _, unit := range unitNumbers {
		containerID := ResolveContainer(input.Appointment.PlanType, input.Partner, unit, s.defaultContainerID)
		for step := 1; step <= StepsPerUnit; step++ {
			outcome := TaskOutcome{UnitNumber: unit, StepNumber: step}
			row, err := s.createTask(ctx, input, unit, step, containerID)
			if err != nil {
				s.log.Error(ctx, "dispatch task create failed", err)
				outcome.Err = err
			} else {
				outcome.TaskID = row.ID
				if row.ExternalID != nil {
					outcome.ExternalID = *row.ExternalID
				}
			}
			result.record(outcome)
		}
	}
	return result
}

func (s *synchronizer) createTask(ctx context.Context, input Input, unit, step int, containerID string) (*models.DispatchTask, error) {
	arrival := s.timing.ArrivalTime(input.Appointment.ScheduledAt, unit)
	windowStart, windowEnd := s.timing.Window(arrival)
	row := &models.DispatchTask{
		AppointmentID:      input.Appointment.ID,
		ContainerID:        containerID,
		UnitNumber:         unit,
		StepNumber:         step,
		ArrivalAt:          arrival,
		WindowStart:        windowStart,
		WindowEnd:          windowEnd,
		NotificationStatus: enums.TaskNotificationNone,
	}
	if err := s.repo.CreateTask(ctx, row); err != nil {
		return nil, err
	}

	params := s.buildParams(input, *row, containerID, nil, fmt.Sprintf("Unit %d", unit))
	created, err := s.platform.CreateTask(ctx, params)
	if err != nil {
		// Row stays without an external id; the next sync recreates it.
		return row, err
	}
	if err := s.repo.SaveExternalRef(ctx, row.ID, created.ID, containerID); err != nil {
		return row, err
	}
	row.ExternalID = &created.ID
	return row, nil
}

// Delete removes tasks from the platform and the datastore. A platform
// not-found is treated as already deleted.
func (s *synchronizer) Delete(ctx context.Context, tasks []models.DispatchTask) Result {
	var result Result
	for _, task := range tasks {
		outcome := TaskOutcome{TaskID: task.ID, UnitNumber: task.UnitNumber, StepNumber: task.StepNumber}
		if err := s.deleteTask(ctx, task); err != nil {
			s.log.Error(ctx, "dispatch task delete failed", err)
			outcome.Err = err
		}
		result.record(outcome)
	}
	return result
}

func (s *synchronizer) deleteTask(ctx context.Context, task models.DispatchTask) error {
	if task.ExternalID != nil {
		if err := s.platform.DeleteTask(ctx, *task.ExternalID); err != nil {
			if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
				return err
			}
		}
	}
	return s.repo.DeleteTask(ctx, task.ID)
}

func (s *synchronizer) buildParams(input Input, task models.DispatchTask, containerID string, workerID *string, notes string) dispatch.TaskParams {
	arrival := s.timing.ArrivalTime(input.Appointment.ScheduledAt, task.UnitNumber)
	windowStart, windowEnd := s.timing.Window(arrival)
	return dispatch.TaskParams{
		ContainerID:    containerID,
		WorkerID:       workerID,
		Notes:          notes,
		CompleteAfter:  windowStart,
		CompleteBefore: windowEnd,
		Destination: dispatch.Destination{
			Address: input.Appointment.Address.SingleLine(),
			Lat:     input.Appointment.Address.Lat,
			Lng:     input.Appointment.Address.Lng,
		},
		Recipient: dispatch.Recipient{
			Name:  input.Customer.Name,
			Phone: input.Customer.Phone,
		},
		Metadata: map[string]string{
			"appointmentId": input.Appointment.ID.String(),
			"unitNumber":    strconv.Itoa(task.UnitNumber),
			"stepNumber":    strconv.Itoa(task.StepNumber),
		},
	}
}

// rewriteUnitNotes replaces only the unit-number segment of remote notes so
// driver-entered text (gate codes, parking hints) survives the edit.
func rewriteUnitNotes(notes string, unitNumber int) string {
	segment := fmt.Sprintf("Unit %d", unitNumber)
	if unitNotesPattern.MatchString(notes) {
		return unitNotesPattern.ReplaceAllString(notes, segment)
	}
	if strings.TrimSpace(notes) == "" {
		return segment
	}
	return segment + " / " + notes
}
