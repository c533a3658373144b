package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

func taskFor(workerID uuid.UUID, unit, step int) models.DispatchTask {
	return models.DispatchTask{
		ID:         uuid.New(),
		WorkerID:   &workerID,
		UnitNumber: unit,
		StepNumber: step,
	}
}

func TestUniqueWorkersDedupesAcrossTaskRows(t *testing.T) {
	t.Parallel()
	w1, w2 := uuid.New(), uuid.New()
	workers := map[uuid.UUID]models.Worker{
		w1: {ID: w1, Name: "Ana", EmploymentType: enums.EmploymentDirect},
		w2: {ID: w2, Name: "Ben", EmploymentType: enums.EmploymentPartner},
	}
	// Worker 1 holds all three steps of unit 1; they must appear once.
	tasks := []models.DispatchTask{
		taskFor(w1, 1, 1),
		taskFor(w1, 1, 2),
		taskFor(w1, 1, 3),
		taskFor(w2, 2, 1),
		{ID: uuid.New(), UnitNumber: 2, StepNumber: 2},
	}

	unique := UniqueWorkers(tasks, workers)
	if len(unique) != 2 {
		t.Fatalf("expected 2 unique workers, got %d", len(unique))
	}
}

func TestSplitByEmploymentType(t *testing.T) {
	t.Parallel()
	workers := []models.Worker{
		{ID: uuid.New(), EmploymentType: enums.EmploymentDirect},
		{ID: uuid.New(), EmploymentType: enums.EmploymentPartner},
		{ID: uuid.New(), EmploymentType: enums.EmploymentDirect},
	}
	direct, partner := Split(workers)
	if len(direct) != 2 || len(partner) != 1 {
		t.Fatalf("unexpected split: %d direct, %d partner", len(direct), len(partner))
	}
}

func TestBuildTimeChangeInformsPartnersOnly(t *testing.T) {
	t.Parallel()
	directID, partnerWorkerID := uuid.New(), uuid.New()
	workers := map[uuid.UUID]models.Worker{
		directID:        {ID: directID, Phone: "+15125550001", EmploymentType: enums.EmploymentDirect},
		partnerWorkerID: {ID: partnerWorkerID, Phone: "+15125550002", EmploymentType: enums.EmploymentPartner},
	}
	contact := "+15125559999"
	partner := &models.Partner{ID: uuid.New(), Name: "Haul Co", ContactPhone: &contact}

	old := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	effects := BuildTimeChange(TimeChangeInput{
		AppointmentID: uuid.New(),
		OldTime:       old,
		NewTime:       old.Add(4 * time.Hour),
		Tasks:         []models.DispatchTask{taskFor(directID, 1, 1), taskFor(partnerWorkerID, 2, 1)},
		Workers:       workers,
		Partner:       partner,
	})

	// The direct worker gets a reconfirmation link elsewhere; only the
	// partner worker and the partner company are messaged here.
	if len(effects.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(effects.Messages))
	}
	recipients := map[string]bool{}
	for _, msg := range effects.Messages {
		recipients[msg.To] = true
	}
	if !recipients["+15125550002"] || !recipients[contact] {
		t.Fatalf("unexpected recipients %v", recipients)
	}
	if recipients["+15125550001"] {
		t.Fatal("direct worker should not get an informational message")
	}

	// Everyone still gets the in-app entry, grouped per appointment.
	if len(effects.InApp) != 2 {
		t.Fatalf("expected 2 in-app effects, got %d", len(effects.InApp))
	}
	for _, effect := range effects.InApp {
		if effect.Type != enums.NotificationTypeScheduleChange {
			t.Fatalf("unexpected type %s", effect.Type)
		}
		if effect.GroupKey == nil {
			t.Fatal("schedule changes must carry a group key")
		}
	}
}

func TestBuildRemovalMessagesEveryRemovedWorker(t *testing.T) {
	t.Parallel()
	effects := BuildRemoval(RemovalInput{
		AppointmentID: uuid.New(),
		Workers: []models.Worker{
			{ID: uuid.New(), Phone: "+15125550001"},
			{ID: uuid.New(), Phone: "+15125550002"},
		},
	})
	if len(effects.Messages) != 2 || len(effects.InApp) != 2 {
		t.Fatalf("unexpected effects %+v", effects)
	}
}

func TestMergeConcatenates(t *testing.T) {
	t.Parallel()
	a := BuildRemoval(RemovalInput{
		AppointmentID: uuid.New(),
		Workers:       []models.Worker{{ID: uuid.New(), Phone: "+15125550001"}},
	})
	merged := Merge(a, Effects{})
	if len(merged.Messages) != 1 || len(merged.InApp) != 1 {
		t.Fatalf("unexpected merge %+v", merged)
	}
	if !Merge().IsEmpty() {
		t.Fatal("empty merge should be empty")
	}
}
