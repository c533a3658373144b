package appointments

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/types"
)

// EditRequest is a partial edit: only non-nil fields are considered.
// ClearPartner distinguishes "unassign the partner" from "partner not
// supplied".
type EditRequest struct {
	ScheduledAt     *time.Time
	PlanType        *enums.PlanType
	PartnerID       *uuid.UUID
	ClearPartner    bool
	UnitCount       *int
	SelectedUnitIDs []uuid.UUID
	Address         *types.Address
	Notes           *string
	Actor           *ActorInput
}

// ActorInput identifies who requested the edit, for audit events.
type ActorInput struct {
	ActorID uuid.UUID
	Role    string
}

// UpdateResult reports a completed edit. PartialErr aggregates downstream
// dispatch-platform and messaging failures that did not abort the edit;
// the datastore state is correct even when it is non-nil.
type UpdateResult struct {
	Appointment *models.Appointment
	Changes     ChangeSet
	PartialErr  error
}

// PartiallyFailed reports whether any downstream side effect failed.
func (r UpdateResult) PartiallyFailed() bool {
	return r.PartialErr != nil
}
