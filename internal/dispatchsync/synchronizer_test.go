package dispatchsync

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/internal/schedule"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/dispatch"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/types"
)

type fakePlatform struct {
	tasks       map[string]dispatch.Task
	nextID      int
	failUpdates map[string]error
	updates     []dispatch.TaskParams
	creates     []dispatch.TaskParams
	deletes     []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{tasks: map[string]dispatch.Task{}, failUpdates: map[string]error{}}
}

func (f *fakePlatform) CreateTask(_ context.Context, params dispatch.TaskParams) (*dispatch.Task, error) {
	f.nextID++
	id := uuid.NewString()
	task := dispatch.Task{ID: id, ContainerID: params.ContainerID, Notes: params.Notes}
	f.tasks[id] = task
	f.creates = append(f.creates, params)
	return &task, nil
}

func (f *fakePlatform) UpdateTask(_ context.Context, taskID string, params dispatch.TaskParams) (*dispatch.Task, error) {
	if err, ok := f.failUpdates[taskID]; ok {
		return nil, err
	}
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispatch task not found")
	}
	task.ContainerID = params.ContainerID
	task.Notes = params.Notes
	f.tasks[taskID] = task
	f.updates = append(f.updates, params)
	return &task, nil
}

func (f *fakePlatform) DeleteTask(_ context.Context, taskID string) error {
	if _, ok := f.tasks[taskID]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "dispatch task not found")
	}
	delete(f.tasks, taskID)
	f.deletes = append(f.deletes, taskID)
	return nil
}

func (f *fakePlatform) GetTask(_ context.Context, taskID string) (*dispatch.Task, error) {
	task, ok := f.tasks[taskID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispatch task not found")
	}
	return &task, nil
}

type memoryTaskRepo struct {
	rows    map[uuid.UUID]*models.DispatchTask
	deleted []uuid.UUID
}

func newMemoryTaskRepo() *memoryTaskRepo {
	return &memoryTaskRepo{rows: map[uuid.UUID]*models.DispatchTask{}}
}

func (m *memoryTaskRepo) CreateTask(_ context.Context, task *models.DispatchTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	m.rows[task.ID] = task
	return nil
}

func (m *memoryTaskRepo) SaveExternalRef(_ context.Context, taskID uuid.UUID, externalID, containerID string) error {
	if row, ok := m.rows[taskID]; ok {
		row.ExternalID = &externalID
		row.ContainerID = containerID
		return nil
	}
	m.rows[taskID] = &models.DispatchTask{ID: taskID, ExternalID: &externalID, ContainerID: containerID}
	return nil
}

func (m *memoryTaskRepo) DeleteTask(_ context.Context, taskID uuid.UUID) error {
	delete(m.rows, taskID)
	m.deleted = append(m.deleted, taskID)
	return nil
}

func (m *memoryTaskRepo) WithTx(_ *gorm.DB) Repository { return m }

var syncTiming = schedule.Timing{UnitServiceDuration: 30 * time.Minute, TaskWindowPadding: 15 * time.Minute}

func newTestSynchronizer(t *testing.T, platform PlatformClient, repo Repository) Synchronizer {
	t.Helper()
	s, err := NewSynchronizer(platform, repo, syncTiming, "container-default", logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("NewSynchronizer: %v", err)
	}
	return s
}

func syncInput(plan enums.PlanType, partner *models.Partner, tasks ...models.DispatchTask) Input {
	return Input{
		Appointment: models.Appointment{
			ID:          uuid.New(),
			PlanType:    plan,
			ScheduledAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
			Address:     types.Address{Line1: "800 Brazos St", City: "Austin", Region: "TX", PostalCode: "78701"},
		},
		Customer: models.Customer{Name: "Pat Doyle", Phone: "+15125550100"},
		Partner:  partner,
		Tasks:    tasks,
	}
}

func TestResolveContainerPrefersPartnerForFullServiceUnitOne(t *testing.T) {
	t.Parallel()
	containerID := "container-partner"
	partner := &models.Partner{ID: uuid.New(), ContainerID: &containerID}

	if got := ResolveContainer(enums.PlanFullService, partner, 1, "container-default"); got != containerID {
		t.Fatalf("unit 1 full-service should use the partner container, got %q", got)
	}
	if got := ResolveContainer(enums.PlanFullService, partner, 2, "container-default"); got != "container-default" {
		t.Fatalf("unit 2 should fall back to the pool, got %q", got)
	}
	if got := ResolveContainer(enums.PlanSelfService, partner, 1, "container-default"); got != "container-default" {
		t.Fatalf("self-service should never use the partner container, got %q", got)
	}
	if got := ResolveContainer(enums.PlanFullService, nil, 1, "container-default"); got != "container-default" {
		t.Fatalf("no partner means pool container, got %q", got)
	}
}

func TestSyncPreservesWorkerWhenPlanUnchanged(t *testing.T) {
	platform := newFakePlatform()
	repo := newMemoryTaskRepo()

	externalID := uuid.NewString()
	platform.tasks[externalID] = dispatch.Task{ID: externalID, Notes: "Unit 1 / gate code 4411"}
	workerID := uuid.New()
	task := models.DispatchTask{
		ID:          uuid.New(),
		ExternalID:  &externalID,
		WorkerID:    &workerID,
		ContainerID: "container-w1",
		UnitNumber:  1,
		StepNumber:  1,
	}
	repo.rows[task.ID] = &task

	s := newTestSynchronizer(t, platform, repo)
	result := s.Sync(context.Background(), syncInput(enums.PlanSelfService, nil, task))
	if result.Failed() {
		t.Fatalf("sync failed: %v", result.Err)
	}
	if len(platform.updates) != 1 {
		t.Fatalf("expected one platform update, got %d", len(platform.updates))
	}
	update := platform.updates[0]
	if update.ContainerID != "container-w1" {
		t.Fatalf("assigned worker's container must be preserved, got %q", update.ContainerID)
	}
	if update.WorkerID == nil || *update.WorkerID != workerID.String() {
		t.Fatalf("worker link should be carried through, got %v", update.WorkerID)
	}
	if update.Notes != "Unit 1 / gate code 4411" {
		t.Fatalf("driver notes must survive, got %q", update.Notes)
	}
}

func TestSyncReassignsContainerOnPlanChange(t *testing.T) {
	platform := newFakePlatform()
	repo := newMemoryTaskRepo()

	partnerContainer := "container-partner"
	partner := &models.Partner{ID: uuid.New(), ContainerID: &partnerContainer}

	ext1, ext2 := uuid.NewString(), uuid.NewString()
	platform.tasks[ext1] = dispatch.Task{ID: ext1, Notes: "Unit 1"}
	platform.tasks[ext2] = dispatch.Task{ID: ext2, Notes: "Unit 2"}
	workerID := uuid.New()
	task1 := models.DispatchTask{ID: uuid.New(), ExternalID: &ext1, WorkerID: &workerID, ContainerID: "container-w1", UnitNumber: 1, StepNumber: 1}
	task2 := models.DispatchTask{ID: uuid.New(), ExternalID: &ext2, ContainerID: "container-default", UnitNumber: 2, StepNumber: 1}
	repo.rows[task1.ID] = &task1
	repo.rows[task2.ID] = &task2

	input := syncInput(enums.PlanFullService, partner, task1, task2)
	input.PlanChanged = true

	s := newTestSynchronizer(t, platform, repo)
	result := s.Sync(context.Background(), input)
	if result.Failed() {
		t.Fatalf("sync failed: %v", result.Err)
	}
	if got := platform.tasks[ext1].ContainerID; got != partnerContainer {
		t.Fatalf("unit 1 should move to the partner container, got %q", got)
	}
	if got := platform.tasks[ext2].ContainerID; got != "container-default" {
		t.Fatalf("unit 2 should stay in the pool, got %q", got)
	}
	if row := repo.rows[task1.ID]; row.ContainerID != partnerContainer {
		t.Fatalf("container change must be persisted locally, got %q", row.ContainerID)
	}
}

func TestSyncIsolatesPerTaskFailures(t *testing.T) {
	platform := newFakePlatform()
	repo := newMemoryTaskRepo()

	ext1, ext2, ext3 := uuid.NewString(), uuid.NewString(), uuid.NewString()
	for _, id := range []string{ext1, ext2, ext3} {
		platform.tasks[id] = dispatch.Task{ID: id, Notes: "Unit 1"}
	}
	platform.failUpdates[ext2] = pkgerrors.New(pkgerrors.CodeDependency, "platform 500")

	workerID := uuid.New()
	var tasks []models.DispatchTask
	for i, ext := range []string{ext1, ext2, ext3} {
		extCopy := ext
		task := models.DispatchTask{ID: uuid.New(), ExternalID: &extCopy, WorkerID: &workerID, ContainerID: "container-w1", UnitNumber: 1, StepNumber: i + 1}
		repo.rows[task.ID] = &task
		tasks = append(tasks, task)
	}

	s := newTestSynchronizer(t, platform, repo)
	result := s.Sync(context.Background(), syncInput(enums.PlanSelfService, nil, tasks...))

	if !result.Failed() {
		t.Fatal("the failed task must surface in the result")
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("every task should produce an outcome, got %d", len(result.Outcomes))
	}
	var failures int
	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("exactly one task should fail, got %d", failures)
	}
	if len(platform.updates) != 2 {
		t.Fatalf("siblings must still be updated, got %d updates", len(platform.updates))
	}
}

func TestSyncRewritesOnlyUnitSegmentOfNotes(t *testing.T) {
	t.Parallel()
	got := rewriteUnitNotes("Unit 3 / gate code 4411, dog in yard", 2)
	if got != "Unit 2 / gate code 4411, dog in yard" {
		t.Fatalf("unexpected rewrite %q", got)
	}
	if got := rewriteUnitNotes("", 5); got != "Unit 5" {
		t.Fatalf("empty notes should become the unit segment, got %q", got)
	}
	if got := rewriteUnitNotes("gate code 4411", 1); got != "Unit 1 / gate code 4411" {
		t.Fatalf("missing segment should be prepended, got %q", got)
	}
}

func TestCreateUnitsBuildsThreeStepsPerUnit(t *testing.T) {
	platform := newFakePlatform()
	repo := newMemoryTaskRepo()
	s := newTestSynchronizer(t, platform, repo)

	input := syncInput(enums.PlanSelfService, nil)
	result := s.CreateUnits(context.Background(), input, []int{2, 3})
	if result.Failed() {
		t.Fatalf("create failed: %v", result.Err)
	}
	if len(result.Outcomes) != 2*StepsPerUnit {
		t.Fatalf("expected %d outcomes, got %d", 2*StepsPerUnit, len(result.Outcomes))
	}
	if len(repo.rows) != 2*StepsPerUnit {
		t.Fatalf("expected %d rows, got %d", 2*StepsPerUnit, len(repo.rows))
	}
	for _, row := range repo.rows {
		if row.ExternalID == nil {
			t.Fatalf("every row should be linked to a platform task: %+v", row)
		}
		wantArrival := input.Appointment.ScheduledAt.Add(time.Duration(row.UnitNumber-1) * 30 * time.Minute)
		if !row.ArrivalAt.Equal(wantArrival) {
			t.Fatalf("unit %d arrival should be staggered, got %v", row.UnitNumber, row.ArrivalAt)
		}
	}
}

func TestDeleteTreatsRemoteMissingAsDeleted(t *testing.T) {
	platform := newFakePlatform()
	repo := newMemoryTaskRepo()
	s := newTestSynchronizer(t, platform, repo)

	gone := uuid.NewString()
	task := models.DispatchTask{ID: uuid.New(), ExternalID: &gone, UnitNumber: 1, StepNumber: 1}
	repo.rows[task.ID] = &task

	result := s.Delete(context.Background(), []models.DispatchTask{task})
	if result.Failed() {
		t.Fatalf("missing remote task should not fail the delete: %v", result.Err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != task.ID {
		t.Fatalf("local row should be deleted: %v", repo.deleted)
	}
}
