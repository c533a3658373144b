package appointments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/internal/bookings"
	"github.com/jdmarin/boxvalet-backend/internal/dispatchsync"
	"github.com/jdmarin/boxvalet-backend/internal/notify"
	"github.com/jdmarin/boxvalet-backend/internal/reassignment"
	"github.com/jdmarin/boxvalet-backend/internal/reconfirm"
	"github.com/jdmarin/boxvalet-backend/internal/schedule"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/geocode"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/outbox"
	"github.com/jdmarin/boxvalet-backend/pkg/outbox/payloads"
	"github.com/jdmarin/boxvalet-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reconfirmFlow interface {
	Initiate(ctx context.Context, req reconfirm.Request) error
}

type taskSynchronizer interface {
	Sync(ctx context.Context, input dispatchsync.Input) dispatchsync.Result
	CreateUnits(ctx context.Context, input dispatchsync.Input, unitNumbers []int) dispatchsync.Result
	Delete(ctx context.Context, tasks []models.DispatchTask) dispatchsync.Result
}

type bookingManager interface {
	Reconcile(ctx context.Context, input bookings.ReconcileInput) (*bookings.Result, error)
}

type notifier interface {
	Deliver(ctx context.Context, effects notify.Effects) notify.Result
}

type addressGeocoder interface {
	Forward(ctx context.Context, addr types.Address) (*geocode.Result, error)
}

// Service orchestrates appointment edits across the datastore, the dispatch
// platform and the messaging gateway.
type Service interface {
	ProcessUpdate(ctx context.Context, appointmentID uuid.UUID, edit EditRequest) (*UpdateResult, error)
}

type service struct {
	repo               Repository
	tx                 txRunner
	outbox             outboxPublisher
	reconfirm          reconfirmFlow
	sync               taskSynchronizer
	bookings           bookingManager
	notifier           notifier
	geocoder           addressGeocoder
	timing             schedule.Timing
	defaultContainerID string
	log                *logger.Logger
}

// NewService builds the orchestrator with all its collaborators. The
// geocoder may be nil when no geocoding provider is configured.
func NewService(
	repo Repository,
	tx txRunner,
	publisher outboxPublisher,
	reconfirmFlow reconfirmFlow,
	synchronizer taskSynchronizer,
	bookingMgr bookingManager,
	dispatcher notifier,
	geocoder addressGeocoder,
	timing schedule.Timing,
	defaultContainerID string,
	log *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("appointments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if reconfirmFlow == nil {
		return nil, fmt.Errorf("reconfirmation flow required")
	}
	if synchronizer == nil {
		return nil, fmt.Errorf("task synchronizer required")
	}
	if bookingMgr == nil {
		return nil, fmt.Errorf("booking manager required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if strings.TrimSpace(defaultContainerID) == "" {
		return nil, fmt.Errorf("default container id required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:               repo,
		tx:                 tx,
		outbox:             publisher,
		reconfirm:          reconfirmFlow,
		sync:               synchronizer,
		bookings:           bookingMgr,
		notifier:           dispatcher,
		geocoder:           geocoder,
		timing:             timing,
		defaultContainerID: defaultContainerID,
		log:                log,
	}, nil
}

// planOutcome carries the pre-mutation planning results across the later
// steps of an edit.
type planOutcome struct {
	// pending are reconfirmations that target units whose tasks do not
	// exist yet; applied after the synchronizer creates them.
	pending []reconfirm.Request
	// releaseUnits are surviving units whose worker must be unlinked.
	releaseUnits []int
	// removedWorkers get a cancellation notification.
	removedWorkers []models.Worker
	// asked tracks workers who already received a reconfirmation request
	// so the time-change step does not ask twice.
	asked map[uuid.UUID]bool
}

// ProcessUpdate applies one edit end to end. The datastore update runs in a
// single transaction; dispatch-platform and messaging calls around it are
// isolated per call and aggregated into the result, so a provider hiccup
// never fails an otherwise correct edit. The step order makes a repeated
// identical call after a mid-sequence crash converge.
func (s *service) ProcessUpdate(ctx context.Context, appointmentID uuid.UUID, edit EditRequest) (*UpdateResult, error) {
	if appointmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}
	ctx = s.log.WithAppointmentID(ctx, appointmentID.String())

	appointment, err := s.repo.FindAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
	}

	changes := DetectChanges(*appointment, edit)
	if err := s.validate(*appointment, edit, changes); err != nil {
		return nil, err
	}
	if !changes.Any() {
		return &UpdateResult{Appointment: appointment, Changes: changes}, nil
	}

	newPartner, err := s.resolvePartner(ctx, changes.NewPartnerID)
	if err != nil {
		return nil, err
	}
	customer, err := s.repo.FindCustomer(ctx, appointment.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointment customer missing")
	}

	var partial error

	// Coordinates are an enrichment: a geocoder outage must not block the
	// edit, the address still stores without lat/lng.
	if changes.AddressChanged && edit.Address != nil && s.geocoder != nil {
		if located, geoErr := s.geocoder.Forward(ctx, *edit.Address); geoErr != nil {
			s.log.Error(ctx, "address geocoding failed", geoErr)
			partial = multierr.Append(partial, geoErr)
		} else {
			edit.Address.Lat = &located.Lat
			edit.Address.Lng = &located.Lng
		}
	}

	outcome := planOutcome{asked: map[uuid.UUID]bool{}}
	if changes.PlanChanged {
		outcome, err = s.planReassignments(ctx, *appointment, changes, &partial)
		if err != nil {
			return nil, err
		}
	}

	if changes.UnitsRemoved() {
		if err := s.removeUnitTasks(ctx, *appointment, changes, &partial); err != nil {
			return nil, err
		}
	}

	if err := s.applyDatastoreUpdate(ctx, *appointment, edit, changes, outcome); err != nil {
		return nil, err
	}

	updated, err := s.repo.FindAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "appointment vanished mid-edit")
	}

	syncInput := dispatchsync.Input{
		Appointment:    *updated,
		Customer:       *customer,
		Partner:        newPartner,
		Tasks:          updated.Tasks,
		PlanChanged:    changes.PlanChanged,
		PartnerChanged: changes.PartnerChanged,
	}
	if syncInput.Partner == nil && updated.PartnerID != nil {
		if syncInput.Partner, err = s.repo.FindPartner(ctx, *updated.PartnerID); err != nil {
			return nil, err
		}
	}

	if result := s.sync.Sync(ctx, syncInput); result.Failed() {
		partial = multierr.Append(partial, result.Err)
	}

	if changes.UnitsAdded() {
		if result := s.sync.CreateUnits(ctx, syncInput, changes.AddedUnitNumbers); result.Failed() {
			partial = multierr.Append(partial, result.Err)
		}
		for _, req := range outcome.pending {
			if err := s.reconfirm.Initiate(ctx, req); err != nil {
				partial = multierr.Append(partial, err)
				continue
			}
			outcome.asked[req.Worker.ID] = true
		}
	}

	if changes.PartnerChanged || changes.TimeChanged || changes.PlanChanged {
		if _, err := s.bookings.Reconcile(ctx, bookings.ReconcileInput{
			AppointmentID: appointmentID,
			PartnerID:     updated.PartnerID,
			ScheduledAt:   updated.ScheduledAt,
		}); err != nil {
			partial = multierr.Append(partial, err)
		}
	}

	effects := notify.BuildRemoval(notify.RemovalInput{
		AppointmentID: appointmentID,
		Workers:       outcome.removedWorkers,
	})
	if changes.TimeChanged {
		timeEffects, err := s.timeChangeFollowUps(ctx, *updated, changes, syncInput.Partner, outcome.asked, &partial)
		if err != nil {
			return nil, err
		}
		effects = notify.Merge(effects, timeEffects)
	}
	if !effects.IsEmpty() {
		if result := s.notifier.Deliver(ctx, effects); result.Failed() {
			partial = multierr.Append(partial, result.Err)
		}
	}

	if partial != nil {
		s.log.Warn(ctx, "appointment edit completed with downstream failures")
	}
	return &UpdateResult{Appointment: updated, Changes: changes, PartialErr: partial}, nil
}

func (s *service) validate(appointment models.Appointment, edit EditRequest, changes ChangeSet) error {
	if edit.PlanType != nil && !edit.PlanType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid plan type")
	}
	if changes.NewUnitCount < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "appointment needs at least one unit")
	}
	if appointment.Kind.RequiresUnitSelection() && edit.SelectedUnitIDs != nil && len(edit.SelectedUnitIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one unit must be selected")
	}
	return nil
}

func (s *service) resolvePartner(ctx context.Context, partnerID *uuid.UUID) (*models.Partner, error) {
	if partnerID == nil {
		return nil, nil
	}
	partner, err := s.repo.FindPartner(ctx, *partnerID)
	if err != nil {
		return nil, err
	}
	if partner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner not found")
	}
	return partner, nil
}

// planReassignments runs the reassignment planner against the pre-mutation
// task set and starts reconfirmations whose target tasks already exist.
// Requests targeting not-yet-created units are returned as pending.
func (s *service) planReassignments(ctx context.Context, appointment models.Appointment, changes ChangeSet, partial *error) (planOutcome, error) {
	outcome := planOutcome{asked: map[uuid.UUID]bool{}}

	workerIDs := collectWorkerIDs(appointment.Tasks)
	workers, err := s.repo.FindWorkers(ctx, workerIDs)
	if err != nil {
		return outcome, err
	}

	assignments := buildAssignments(appointment.Tasks, workers)
	plan := reassignment.Build(reassignment.PlanInput{
		Assignments:  assignments,
		OldPlan:      changes.OldPlan,
		NewPlan:      changes.NewPlan,
		OldUnitCount: changes.OldUnitCount,
		NewUnitCount: changes.NewUnitCount,
		ScheduledAt:  changes.NewTime,
		PartnerID:    changes.NewPartnerID,
		Timing:       s.timing,
	})

	for _, kept := range plan.Keep {
		if !kept.Shifted {
			continue
		}
		worker, ok := workers[kept.WorkerID]
		if !ok || worker.EmploymentType != enums.EmploymentDirect {
			// Partner crews are informed through their employer; shifting
			// their container happens in the sync step.
			outcome.releaseUnits = append(outcome.releaseUnits, kept.FromUnit)
			continue
		}
		req := reconfirm.Request{
			AppointmentID: appointment.ID,
			Worker:        worker,
			UnitNumber:    kept.ToUnit,
			FromUnit:      kept.FromUnit,
			OldArrival:    s.timing.ArrivalTime(changes.OldTime, kept.FromUnit),
			NewArrival:    kept.ArrivalAt,
		}
		if kept.ToUnit > changes.OldUnitCount {
			// The target unit's tasks are created after the datastore
			// update. Release the old unit inside the transaction so the
			// sync pass owns its container under the new plan.
			req.OldUnitReleased = true
			outcome.releaseUnits = append(outcome.releaseUnits, kept.FromUnit)
			outcome.pending = append(outcome.pending, req)
			continue
		}
		if err := s.reconfirm.Initiate(ctx, req); err != nil {
			*partial = multierr.Append(*partial, err)
			continue
		}
		outcome.asked[worker.ID] = true
	}

	for _, removed := range plan.Remove {
		if worker, ok := workers[removed.WorkerID]; ok {
			outcome.removedWorkers = append(outcome.removedWorkers, worker)
		}
		if removed.Reason == reassignment.RemovalPlanMismatch {
			outcome.releaseUnits = append(outcome.releaseUnits, removed.FromUnit)
		}
	}
	return outcome, nil
}

// removeUnitTasks notifies the affected workers and deletes the dropped
// units' tasks ahead of the datastore update.
func (s *service) removeUnitTasks(ctx context.Context, appointment models.Appointment, changes ChangeSet, partial *error) error {
	tasks, err := s.repo.ListTasksForUnits(ctx, appointment.ID, changes.RemovedUnitNumbers)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	workers, err := s.repo.FindWorkers(ctx, collectWorkerIDs(tasks))
	if err != nil {
		return err
	}
	affected := notify.UniqueWorkers(tasks, workers)
	if len(affected) > 0 {
		effects := notify.BuildRemoval(notify.RemovalInput{AppointmentID: appointment.ID, Workers: affected})
		if result := s.notifier.Deliver(ctx, effects); result.Failed() {
			*partial = multierr.Append(*partial, result.Err)
		}
	}

	if result := s.sync.Delete(ctx, tasks); result.Failed() {
		*partial = multierr.Append(*partial, result.Err)
	}
	return nil
}

// applyDatastoreUpdate is the single transaction of the edit: appointment
// fields, unit topology, task timing, worker releases and the outbox events
// all commit or roll back together.
func (s *service) applyDatastoreUpdate(ctx context.Context, appointment models.Appointment, edit EditRequest, changes ChangeSet, outcome planOutcome) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		fields := map[string]interface{}{}
		if changes.TimeChanged {
			fields["scheduled_at"] = changes.NewTime
		}
		if changes.PlanChanged {
			fields["plan_type"] = changes.NewPlan
		}
		if changes.PartnerChanged {
			fields["partner_id"] = changes.NewPartnerID
		}
		if changes.NotesChanged {
			fields["notes"] = edit.Notes
		}
		if changes.AddressChanged {
			fields["address"] = edit.Address
		}
		if changes.NewUnitCount != changes.OldUnitCount {
			fields["unit_count"] = changes.NewUnitCount
		}
		if err := repo.UpdateAppointmentFields(ctx, appointment.ID, fields); err != nil {
			return err
		}

		if len(changes.RemovedUnitIDs) > 0 {
			if err := repo.DeleteUnitsByID(ctx, appointment.ID, changes.RemovedUnitIDs); err != nil {
				return err
			}
		} else if len(changes.RemovedUnitNumbers) > 0 {
			if err := repo.DeleteUnitsByNumber(ctx, appointment.ID, changes.RemovedUnitNumbers); err != nil {
				return err
			}
		}

		if changes.UnitsAdded() {
			units := make([]models.StorageUnit, 0, len(changes.AddedUnitNumbers))
			for _, number := range changes.AddedUnitNumbers {
				units = append(units, models.StorageUnit{
					AppointmentID: appointment.ID,
					CustomerID:    appointment.CustomerID,
					UnitNumber:    number,
				})
			}
			if err := repo.CreateUnits(ctx, units); err != nil {
				return err
			}
		}

		if changes.TimeChanged {
			for unit := 1; unit <= changes.NewUnitCount; unit++ {
				arrival := s.timing.ArrivalTime(changes.NewTime, unit)
				windowStart, windowEnd := s.timing.Window(arrival)
				if err := repo.RetimeUnitTasks(ctx, appointment.ID, unit, arrival, windowStart, windowEnd); err != nil {
					return err
				}
			}
		}

		for _, unit := range outcome.releaseUnits {
			if err := repo.ReleaseUnitWorker(ctx, appointment.ID, unit, s.defaultContainerID); err != nil {
				return err
			}
		}

		actor := buildActor(edit.Actor)
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAppointmentUpdated,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AppointmentUpdatedEvent{
				AppointmentID: appointment.ID,
				CustomerID:    appointment.CustomerID,
				Kind:          appointment.Kind,
				TimeChanged:   changes.TimeChanged,
				PlanChanged:   changes.PlanChanged,
				UnitsAdded:    len(changes.AddedUnitNumbers),
				UnitsRemoved:  len(changes.RemovedUnitNumbers),
			},
		}); err != nil {
			return err
		}
		if changes.TimeChanged {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventAppointmentTimeChanged,
				AggregateType: enums.AggregateAppointment,
				AggregateID:   appointment.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.AppointmentTimeChangedEvent{
					AppointmentID: appointment.ID,
					CustomerID:    appointment.CustomerID,
					OldTime:       changes.OldTime,
					NewTime:       changes.NewTime,
				},
			})
		}
		return nil
	})
}

// timeChangeFollowUps asks the remaining directly-managed workers to
// reconfirm the new time and builds informational effects for partner
// crews. Workers already asked during plan reassignment are skipped.
func (s *service) timeChangeFollowUps(ctx context.Context, updated models.Appointment, changes ChangeSet, partner *models.Partner, asked map[uuid.UUID]bool, partial *error) (notify.Effects, error) {
	workers, err := s.repo.FindWorkers(ctx, collectWorkerIDs(updated.Tasks))
	if err != nil {
		return notify.Effects{}, err
	}

	direct, _ := notify.Split(notify.UniqueWorkers(updated.Tasks, workers))
	for _, worker := range direct {
		if asked[worker.ID] {
			continue
		}
		unit := firstUnitFor(updated.Tasks, worker.ID)
		if unit == 0 {
			continue
		}
		req := reconfirm.Request{
			AppointmentID: updated.ID,
			Worker:        worker,
			UnitNumber:    unit,
			OldArrival:    s.timing.ArrivalTime(changes.OldTime, unit),
			NewArrival:    s.timing.ArrivalTime(changes.NewTime, unit),
		}
		if err := s.reconfirm.Initiate(ctx, req); err != nil {
			*partial = multierr.Append(*partial, err)
		}
	}

	return notify.BuildTimeChange(notify.TimeChangeInput{
		AppointmentID: updated.ID,
		OldTime:       changes.OldTime,
		NewTime:       changes.NewTime,
		Tasks:         updated.Tasks,
		Workers:       workers,
		Partner:       partner,
	}), nil
}

func buildActor(input *ActorInput) *outbox.ActorRef {
	if input == nil {
		return nil
	}
	return &outbox.ActorRef{ActorID: input.ActorID, Role: input.Role}
}

func collectWorkerIDs(tasks []models.DispatchTask) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, task := range tasks {
		if task.WorkerID == nil || seen[*task.WorkerID] {
			continue
		}
		seen[*task.WorkerID] = true
		out = append(out, *task.WorkerID)
	}
	return out
}

// buildAssignments collapses task rows to one assignment per worker, keyed
// to the lowest unit they hold.
func buildAssignments(tasks []models.DispatchTask, workers map[uuid.UUID]models.Worker) []reassignment.Assignment {
	byWorker := map[uuid.UUID]int{}
	for _, task := range tasks {
		if task.WorkerID == nil {
			continue
		}
		if current, ok := byWorker[*task.WorkerID]; !ok || task.UnitNumber < current {
			byWorker[*task.WorkerID] = task.UnitNumber
		}
	}
	out := make([]reassignment.Assignment, 0, len(byWorker))
	for workerID, unit := range byWorker {
		worker, ok := workers[workerID]
		if !ok {
			continue
		}
		out = append(out, reassignment.Assignment{
			WorkerID:       workerID,
			EmploymentType: worker.EmploymentType,
			UnitNumber:     unit,
		})
	}
	return out
}

func firstUnitFor(tasks []models.DispatchTask, workerID uuid.UUID) int {
	unit := 0
	for _, task := range tasks {
		if task.WorkerID == nil || *task.WorkerID != workerID {
			continue
		}
		if unit == 0 || task.UnitNumber < unit {
			unit = task.UnitNumber
		}
	}
	return unit
}
