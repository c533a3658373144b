package reconfirm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/confirm"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/messaging"
)

const messageTimeFormat = "Mon Jan 2 at 3:04 PM"

type tokenIssuer interface {
	Issue(appointmentID, workerID uuid.UUID, unitNumber int, action confirm.Action) (string, error)
	Link(token string) string
}

// Request asks one directly-managed worker to reconfirm one unit's new
// arrival time. FromUnit is set when the worker is also being shifted off
// another unit in the same edit. OldUnitReleased marks shifts whose old
// unit was already unlinked inside the edit's datastore transaction, so
// Initiate must not release it again and overwrite the container the sync
// pass resolved for it.
type Request struct {
	AppointmentID   uuid.UUID
	Worker          models.Worker
	UnitNumber      int
	FromUnit        int
	OldUnitReleased bool
	OldArrival      time.Time
	NewArrival      time.Time
}

// Outcome reports how a worker's response was applied.
type Outcome struct {
	Accepted     bool
	TasksUpdated int
}

// Service runs the reconfirmation handshake with directly-managed workers.
type Service interface {
	Initiate(ctx context.Context, req Request) error
	Resolve(ctx context.Context, claims *confirm.Claims) (*Outcome, error)
}

type service struct {
	repo               Repository
	tokens             tokenIssuer
	sender             messaging.Sender
	defaultContainerID string
}

// NewService builds the reconfirmation service with the required dependencies.
func NewService(repo Repository, tokens tokenIssuer, sender messaging.Sender, defaultContainerID string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reconfirm repository required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer required")
	}
	if sender == nil {
		return nil, fmt.Errorf("message sender required")
	}
	if strings.TrimSpace(defaultContainerID) == "" {
		return nil, fmt.Errorf("default container id required")
	}
	return &service{
		repo:               repo,
		tokens:             tokens,
		sender:             sender,
		defaultContainerID: defaultContainerID,
	}, nil
}

// Initiate releases the worker's old unit when shifting (unless the caller
// already did), stamps the target unit's tasks pending and sends the
// reconfirmation message. The target
// unit's tasks must already exist; callers that mutate the unit topology in
// the same edit defer the request until after task creation.
func (s *service) Initiate(ctx context.Context, req Request) error {
	if req.AppointmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}
	if req.UnitNumber < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit number must be positive")
	}
	if req.Worker.EmploymentType != enums.EmploymentDirect {
		return pkgerrors.New(pkgerrors.CodeValidation, "only directly-managed workers reconfirm")
	}

	tasks, err := s.repo.ListUnitTasks(ctx, req.AppointmentID, req.UnitNumber)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "unit tasks not created yet")
	}

	if req.FromUnit > 0 && req.FromUnit != req.UnitNumber && !req.OldUnitReleased {
		if err := s.repo.ReleaseUnitWorker(ctx, req.AppointmentID, req.FromUnit, s.defaultContainerID); err != nil {
			return err
		}
	}

	confirmToken, err := s.tokens.Issue(req.AppointmentID, req.Worker.ID, req.UnitNumber, confirm.ActionReconfirm)
	if err != nil {
		return err
	}
	declineToken, err := s.tokens.Issue(req.AppointmentID, req.Worker.ID, req.UnitNumber, confirm.ActionDecline)
	if err != nil {
		return err
	}

	body := buildMessageBody(req, s.tokens.Link(confirmToken), s.tokens.Link(declineToken))
	if err := s.sender.Send(ctx, messaging.Message{
		Channel: messaging.ChannelSMS,
		To:      req.Worker.Phone,
		Body:    body,
	}); err != nil {
		return err
	}

	return s.repo.MarkPendingReconfirmation(ctx, req.AppointmentID, req.UnitNumber, req.Worker.ID, time.Now().UTC())
}

// Resolve applies an inbound accept or decline from a verified link.
func (s *service) Resolve(ctx context.Context, claims *confirm.Claims) (*Outcome, error) {
	if claims == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "confirm claims required")
	}
	accepted := claims.Action == confirm.ActionReconfirm
	updated, err := s.repo.ResolvePending(ctx, claims.AppointmentID, claims.UnitNumber, claims.WorkerID, accepted, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if updated == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending reconfirmation for this link")
	}
	return &Outcome{Accepted: accepted, TasksUpdated: updated}, nil
}

func buildMessageBody(req Request, confirmLink, declineLink string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, your BoxValet job moved from %s to %s",
		firstName(req.Worker.Name),
		req.OldArrival.Format(messageTimeFormat),
		req.NewArrival.Format(messageTimeFormat))
	if req.FromUnit > 0 && req.FromUnit != req.UnitNumber {
		fmt.Fprintf(&b, " (now unit %d)", req.UnitNumber)
	}
	fmt.Fprintf(&b, ". Confirm: %s Can't make it: %s", confirmLink, declineLink)
	return b.String()
}

func firstName(full string) string {
	full = strings.TrimSpace(full)
	if idx := strings.IndexByte(full, ' '); idx > 0 {
		return full[:idx]
	}
	if full == "" {
		return "there"
	}
	return full
}
