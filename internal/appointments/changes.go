package appointments

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/types"
)

// ChangeSet classifies one edit against the stored appointment. It is the
// contract between change detection and every later side-effect step, so it
// carries both the flags and the old/new values those steps need.
type ChangeSet struct {
	TimeChanged bool
	OldTime     time.Time
	NewTime     time.Time

	PlanChanged bool
	OldPlan     enums.PlanType
	NewPlan     enums.PlanType

	PartnerChanged bool
	OldPartnerID   *uuid.UUID
	NewPartnerID   *uuid.UUID

	AddressChanged bool
	NotesChanged   bool

	OldUnitCount int
	NewUnitCount int
	// AddedUnitNumbers are the new 1-based unit positions to create.
	AddedUnitNumbers []int
	// RemovedUnitIDs is filled for id-based removal (unit-selection kinds);
	// RemovedUnitNumbers is filled either way, highest numbers first.
	RemovedUnitIDs     []uuid.UUID
	RemovedUnitNumbers []int
}

// Any reports whether the edit changes anything at all.
func (c ChangeSet) Any() bool {
	return c.TimeChanged || c.PlanChanged || c.PartnerChanged ||
		c.AddressChanged || c.NotesChanged ||
		len(c.AddedUnitNumbers) > 0 || len(c.RemovedUnitNumbers) > 0
}

// UnitsRemoved reports whether the edit drops any units.
func (c ChangeSet) UnitsRemoved() bool {
	return len(c.RemovedUnitNumbers) > 0
}

// UnitsAdded reports whether the edit creates any units.
func (c ChangeSet) UnitsAdded() bool {
	return len(c.AddedUnitNumbers) > 0
}

// DetectChanges compares a stored appointment against a partial edit. A
// field counts as changed only when the edit supplies it and it differs.
// Pure and idempotent: the same two snapshots always yield the same set.
func DetectChanges(appointment models.Appointment, edit EditRequest) ChangeSet {
	changes := ChangeSet{
		OldTime:      appointment.ScheduledAt,
		NewTime:      appointment.ScheduledAt,
		OldPlan:      appointment.PlanType,
		NewPlan:      appointment.PlanType,
		OldPartnerID: appointment.PartnerID,
		NewPartnerID: appointment.PartnerID,
		OldUnitCount: appointment.UnitCount,
		NewUnitCount: appointment.UnitCount,
	}

	if edit.ScheduledAt != nil && !edit.ScheduledAt.Equal(appointment.ScheduledAt) {
		changes.TimeChanged = true
		changes.NewTime = *edit.ScheduledAt
	}
	if edit.PlanType != nil && *edit.PlanType != appointment.PlanType {
		changes.PlanChanged = true
		changes.NewPlan = *edit.PlanType
	}
	switch {
	case edit.ClearPartner:
		if appointment.PartnerID != nil {
			changes.PartnerChanged = true
			changes.NewPartnerID = nil
		}
	case edit.PartnerID != nil:
		if appointment.PartnerID == nil || *appointment.PartnerID != *edit.PartnerID {
			changes.PartnerChanged = true
			changes.NewPartnerID = edit.PartnerID
		}
	}
	if edit.Address != nil && !addressEqual(*edit.Address, appointment.Address) {
		changes.AddressChanged = true
	}
	if edit.Notes != nil && !stringPtrEqual(edit.Notes, appointment.Notes) {
		changes.NotesChanged = true
	}

	detectUnitChanges(&changes, appointment, edit)
	return changes
}

// detectUnitChanges computes removal two ways: by explicit unit-id
// difference for kinds where the customer selects specific stored units, by
// count difference otherwise (anonymous units, highest numbers drop first so
// the remaining numbers stay a contiguous prefix 1..N).
func detectUnitChanges(changes *ChangeSet, appointment models.Appointment, edit EditRequest) {
	if appointment.Kind.RequiresUnitSelection() && edit.SelectedUnitIDs != nil {
		selected := make(map[uuid.UUID]bool, len(edit.SelectedUnitIDs))
		for _, id := range edit.SelectedUnitIDs {
			selected[id] = true
		}
		for _, unit := range appointment.Units {
			if !selected[unit.ID] {
				changes.RemovedUnitIDs = append(changes.RemovedUnitIDs, unit.ID)
				changes.RemovedUnitNumbers = append(changes.RemovedUnitNumbers, unit.UnitNumber)
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(changes.RemovedUnitNumbers)))
		changes.NewUnitCount = appointment.UnitCount - len(changes.RemovedUnitIDs)
		return
	}

	if edit.UnitCount == nil || *edit.UnitCount == appointment.UnitCount {
		return
	}
	changes.NewUnitCount = *edit.UnitCount
	if *edit.UnitCount < appointment.UnitCount {
		for unit := appointment.UnitCount; unit > *edit.UnitCount; unit-- {
			changes.RemovedUnitNumbers = append(changes.RemovedUnitNumbers, unit)
		}
		return
	}
	for unit := appointment.UnitCount + 1; unit <= *edit.UnitCount; unit++ {
		changes.AddedUnitNumbers = append(changes.AddedUnitNumbers, unit)
	}
}

func addressEqual(a, b types.Address) bool {
	return a.Line1 == b.Line1 && a.Line2 == b.Line2 &&
		a.City == b.City && a.Region == b.Region && a.PostalCode == b.PostalCode
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
