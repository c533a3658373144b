package notify

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/messaging"
	"github.com/jdmarin/boxvalet-backend/pkg/pagination"
)

type stubNotifyRepo struct {
	findUnreadGroup func(ctx context.Context, workerID uuid.UUID, typ enums.NotificationType, groupKey string) (*models.Notification, error)
	create          func(ctx context.Context, notification *models.Notification) error
	bumpGroup       func(ctx context.Context, id uuid.UUID, message string) error
}

func (s *stubNotifyRepo) FindUnreadGroup(ctx context.Context, workerID uuid.UUID, typ enums.NotificationType, groupKey string) (*models.Notification, error) {
	if s.findUnreadGroup == nil {
		panic("not implemented")
	}
	return s.findUnreadGroup(ctx, workerID, typ, groupKey)
}

func (s *stubNotifyRepo) Create(ctx context.Context, notification *models.Notification) error {
	if s.create == nil {
		panic("not implemented")
	}
	return s.create(ctx, notification)
}

func (s *stubNotifyRepo) BumpGroup(ctx context.Context, id uuid.UUID, message string) error {
	if s.bumpGroup == nil {
		panic("not implemented")
	}
	return s.bumpGroup(ctx, id, message)
}

func (s *stubNotifyRepo) ListForWorker(_ context.Context, _ uuid.UUID, _ bool, _ pagination.Params) ([]models.Notification, string, error) {
	panic("not implemented")
}

func (s *stubNotifyRepo) MarkRead(_ context.Context, _, _ uuid.UUID) (int, error) {
	panic("not implemented")
}

func (s *stubNotifyRepo) DeleteReadOlderThan(_ context.Context, _ int) (int64, error) {
	panic("not implemented")
}

func (s *stubNotifyRepo) WithTx(_ *gorm.DB) Repository { return s }

type flakySender struct {
	failTo string
	sent   []messaging.Message
}

func (f *flakySender) Send(_ context.Context, msg messaging.Message) error {
	if msg.To == f.failTo {
		return errors.New("provider rejected")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *flakySender) ProviderID() string { return "flaky" }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestDeliverIsolatesMessageFailures(t *testing.T) {
	repo := &stubNotifyRepo{}
	sender := &flakySender{failTo: "+15125550002"}
	d, err := NewDispatcher(repo, sender, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	result := d.Deliver(context.Background(), Effects{
		Messages: []messaging.Message{
			{Channel: messaging.ChannelSMS, To: "+15125550001", Body: "a"},
			{Channel: messaging.ChannelSMS, To: "+15125550002", Body: "b"},
			{Channel: messaging.ChannelSMS, To: "+15125550003", Body: "c"},
		},
	})

	if result.MessagesSent != 2 {
		t.Fatalf("expected 2 sends despite one failure, got %d", result.MessagesSent)
	}
	if !result.Failed() {
		t.Fatal("failure should be surfaced in the result")
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected the batch to continue past the failure, sent %d", len(sender.sent))
	}
}

func TestDeliverGroupsRepeatedUnreadNotifications(t *testing.T) {
	workerID := uuid.New()
	groupKey := "schedule_change:" + uuid.NewString()
	existing := &models.Notification{
		ID:         uuid.New(),
		WorkerID:   workerID,
		Type:       enums.NotificationTypeScheduleChange,
		GroupKey:   &groupKey,
		GroupCount: 1,
	}

	var bumped uuid.UUID
	var bumpedMessage string
	repo := &stubNotifyRepo{
		findUnreadGroup: func(_ context.Context, _ uuid.UUID, _ enums.NotificationType, _ string) (*models.Notification, error) {
			return existing, nil
		},
		bumpGroup: func(_ context.Context, id uuid.UUID, message string) error {
			bumped = id
			bumpedMessage = message
			return nil
		},
	}
	d, err := NewDispatcher(repo, &flakySender{}, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	result := d.Deliver(context.Background(), Effects{
		InApp: []InAppEffect{{
			WorkerID: workerID,
			Type:     enums.NotificationTypeScheduleChange,
			Title:    "Schedule change",
			Message:  "moved again",
			GroupKey: &groupKey,
		}},
	})

	if result.InAppGrouped != 1 || result.InAppWritten != 0 {
		t.Fatalf("repeat unread notification should group, got %+v", result)
	}
	if bumped != existing.ID || bumpedMessage != "moved again" {
		t.Fatalf("existing row should be bumped with the fresh message, got %s %q", bumped, bumpedMessage)
	}
}

func TestDeliverCreatesRowWhenNoUnreadGroupExists(t *testing.T) {
	var created *models.Notification
	repo := &stubNotifyRepo{
		findUnreadGroup: func(_ context.Context, _ uuid.UUID, _ enums.NotificationType, _ string) (*models.Notification, error) {
			return nil, nil
		},
		create: func(_ context.Context, notification *models.Notification) error {
			created = notification
			return nil
		},
	}
	d, err := NewDispatcher(repo, &flakySender{}, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	groupKey := "schedule_change:" + uuid.NewString()
	result := d.Deliver(context.Background(), Effects{
		InApp: []InAppEffect{{
			WorkerID: uuid.New(),
			Type:     enums.NotificationTypeScheduleChange,
			Title:    "Schedule change",
			Message:  "moved",
			GroupKey: &groupKey,
		}},
	})

	if result.InAppWritten != 1 || result.InAppGrouped != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if created == nil || created.GroupKey == nil || *created.GroupKey != groupKey {
		t.Fatalf("row should carry the group key: %+v", created)
	}
}

func TestDeliverSkipsGroupLookupForUngroupableTypes(t *testing.T) {
	var created *models.Notification
	repo := &stubNotifyRepo{
		// findUnreadGroup intentionally nil: calling it would panic.
		create: func(_ context.Context, notification *models.Notification) error {
			created = notification
			return nil
		},
	}
	d, err := NewDispatcher(repo, &flakySender{}, testLogger())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	result := d.Deliver(context.Background(), Effects{
		InApp: []InAppEffect{{
			WorkerID: uuid.New(),
			Type:     enums.NotificationTypeRouteOffer,
			Title:    "New route offer",
			Message:  "A route is available",
		}},
	})
	if result.InAppWritten != 1 || created == nil {
		t.Fatalf("ungroupable types should always insert: %+v", result)
	}
}
