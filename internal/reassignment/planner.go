package reassignment

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/internal/schedule"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// RemovalReason explains why a worker could not be kept on the appointment.
type RemovalReason string

const (
	RemovalUnitDropped  RemovalReason = "unit_dropped"
	RemovalPlanMismatch RemovalReason = "plan_mismatch"
)

// Assignment is one worker currently linked to a unit, pre-mutation.
type Assignment struct {
	WorkerID       uuid.UUID
	EmploymentType enums.EmploymentType
	UnitNumber     int
}

// PlanInput carries everything the planner needs; it never touches storage.
type PlanInput struct {
	Assignments  []Assignment
	OldPlan      enums.PlanType
	NewPlan      enums.PlanType
	OldUnitCount int
	NewUnitCount int
	ScheduledAt  time.Time
	PartnerID    *uuid.UUID
	Timing       schedule.Timing
}

// KeptWorker stays on the appointment, possibly on a different unit.
type KeptWorker struct {
	WorkerID  uuid.UUID
	FromUnit  int
	ToUnit    int
	Shifted   bool
	ArrivalAt time.Time
}

// RemovedWorker must be unlinked and notified.
type RemovedWorker struct {
	WorkerID uuid.UUID
	FromUnit int
	Reason   RemovalReason
}

// OpenSlot is a unit that ends the plan without a worker of the type it needs.
type OpenSlot struct {
	UnitNumber     int
	EmploymentType enums.EmploymentType
	ArrivalAt      time.Time
}

// Plan is the planner's ephemeral output.
type Plan struct {
	Keep      []KeptWorker
	Remove    []RemovedWorker
	OpenSlots []OpenSlot
}

// HasChanges reports whether applying the plan would touch any assignment.
func (p Plan) HasChanges() bool {
	if len(p.Remove) > 0 || len(p.OpenSlots) > 0 {
		return true
	}
	for _, kept := range p.Keep {
		if kept.Shifted {
			return true
		}
	}
	return false
}

// RequiredType resolves which kind of worker a unit needs under a plan.
// Unit 1 of a full-service appointment with a partner assigned belongs to
// the partner's crew; every other unit is staffed directly.
func RequiredType(plan enums.PlanType, partnerID *uuid.UUID, unitNumber int) enums.EmploymentType {
	if plan == enums.PlanFullService && unitNumber == 1 && partnerID != nil {
		return enums.EmploymentPartner
	}
	return enums.EmploymentDirect
}

// Build classifies each assigned worker as keep, shift, or remove. Workers
// stay on their current unit when it still needs their employment type;
// otherwise they shift to the lowest-numbered compatible unit, and are
// removed only when none remains. Shifting beats removing because every
// removal costs an unlink, a platform update and a worker notification.
func Build(input PlanInput) Plan {
	plan := Plan{}
	if input.NewUnitCount < 1 {
		input.NewUnitCount = 1
	}

	taken := make(map[int]bool, input.NewUnitCount)

	assignments := make([]Assignment, len(input.Assignments))
	copy(assignments, input.Assignments)
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].UnitNumber < assignments[j].UnitNumber
	})

	// First pass: workers whose unit survives and still matches their type.
	pending := assignments[:0]
	for _, a := range assignments {
		if a.UnitNumber >= 1 && a.UnitNumber <= input.NewUnitCount &&
			!taken[a.UnitNumber] &&
			RequiredType(input.NewPlan, input.PartnerID, a.UnitNumber) == a.EmploymentType {
			taken[a.UnitNumber] = true
			plan.Keep = append(plan.Keep, KeptWorker{
				WorkerID:  a.WorkerID,
				FromUnit:  a.UnitNumber,
				ToUnit:    a.UnitNumber,
				ArrivalAt: input.Timing.ArrivalTime(input.ScheduledAt, a.UnitNumber),
			})
			continue
		}
		pending = append(pending, a)
	}

	// Second pass: shift displaced workers to the lowest compatible unit.
	for _, a := range pending {
		target := 0
		for unit := 1; unit <= input.NewUnitCount; unit++ {
			if taken[unit] {
				continue
			}
			if RequiredType(input.NewPlan, input.PartnerID, unit) == a.EmploymentType {
				target = unit
				break
			}
		}
		if target == 0 {
			reason := RemovalPlanMismatch
			if a.UnitNumber > input.NewUnitCount {
				reason = RemovalUnitDropped
			}
			plan.Remove = append(plan.Remove, RemovedWorker{
				WorkerID: a.WorkerID,
				FromUnit: a.UnitNumber,
				Reason:   reason,
			})
			continue
		}
		taken[target] = true
		plan.Keep = append(plan.Keep, KeptWorker{
			WorkerID:  a.WorkerID,
			FromUnit:  a.UnitNumber,
			ToUnit:    target,
			Shifted:   true,
			ArrivalAt: input.Timing.ArrivalTime(input.ScheduledAt, target),
		})
	}

	for unit := 1; unit <= input.NewUnitCount; unit++ {
		if taken[unit] {
			continue
		}
		plan.OpenSlots = append(plan.OpenSlots, OpenSlot{
			UnitNumber:     unit,
			EmploymentType: RequiredType(input.NewPlan, input.PartnerID, unit),
			ArrivalAt:      input.Timing.ArrivalTime(input.ScheduledAt, unit),
		})
	}

	return plan
}
