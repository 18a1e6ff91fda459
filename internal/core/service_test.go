package core

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"plancore/internal/infra/persistence/memory"
	"plancore/pkg/domain"
	"plancore/pkg/tree"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc      *Service
	factory  Factory
	customer Customer
	manager  User
	project  Project
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine())
	factory, _, err := svc.CreateFactory(ctx, Factory{Name: "Plant A", Type: domain.FactoryManufacturing, Active: true})
	if err != nil {
		t.Fatalf("create factory: %v", err)
	}
	customer, _, err := svc.CreateCustomer(ctx, Customer{Name: "Acme", Active: true})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	manager, _, err := svc.CreateUser(ctx, User{Name: "Manager", Role: "manager", Active: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	project, _, err := svc.CreateProject(ctx, Project{
		Name:           "Launch",
		Type:           domain.ProjectMaster,
		CustomerID:     customer.ID,
		ManagerID:      manager.ID,
		StartDate:      day(2024, time.January, 1),
		EndDate:        day(2024, time.March, 1),
		ManufacturerID: &factory.ID,
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return fixture{svc: svc, factory: factory, customer: customer, manager: manager, project: project}
}

func TestTaskOverlapEndToEnd(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	taskA, _, err := fx.svc.CreateTask(ctx, Task{
		ScheduleID: fx.project.ID,
		FactoryID:  fx.factory.ID,
		Title:      "Task A",
		StartDate:  day(2024, time.January, 10),
		EndDate:    day(2024, time.January, 15),
		Status:     domain.TaskStatusInProgress,
	})
	if err != nil {
		t.Fatalf("create task A: %v", err)
	}

	// Pre-commit validation surfaces the conflict with A's id.
	res, err := fx.svc.ValidateTask(ctx, Task{
		ID:         "candidate",
		ScheduleID: fx.project.ID,
		FactoryID:  fx.factory.ID,
		StartDate:  day(2024, time.January, 14),
		EndDate:    day(2024, time.January, 20),
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(res.Violations) != 1 || res.Violations[0].Code != domain.CodeOverlapConflict || res.Violations[0].ConflictID != string(taskA.ID) {
		t.Fatalf("expected overlap referencing task A, got %v", res.Violations)
	}

	// Committing the overlapping task is blocked by the rules engine.
	_, _, err = fx.svc.CreateTask(ctx, Task{
		ScheduleID: fx.project.ID,
		FactoryID:  fx.factory.ID,
		Title:      "Task B",
		StartDate:  day(2024, time.January, 14),
		EndDate:    day(2024, time.January, 20),
	})
	if err == nil {
		t.Fatalf("expected overlapping create to fail")
	}
	if got := len(fx.svc.Store().ListTasks()); got != 1 {
		t.Fatalf("blocked task leaked into the store: %d tasks", got)
	}

	// Shifted past the conflict it commits cleanly.
	taskB, _, err := fx.svc.CreateTask(ctx, Task{
		ScheduleID: fx.project.ID,
		FactoryID:  fx.factory.ID,
		Title:      "Task B",
		StartDate:  day(2024, time.January, 16),
		EndDate:    day(2024, time.January, 20),
	})
	if err != nil {
		t.Fatalf("create shifted task: %v", err)
	}

	// Moving B back onto A is blocked too; the window stays put.
	if _, _, err := fx.svc.MoveTask(ctx, taskB.ID, day(2024, time.January, 12), day(2024, time.January, 18)); err == nil {
		t.Fatalf("expected overlapping move to fail")
	}
	current, _ := fx.svc.Store().GetTask(taskB.ID)
	if !current.StartDate.Equal(day(2024, time.January, 16)) {
		t.Fatalf("rejected move changed the task: %+v", current)
	}
}

func TestScheduleTasksOrdered(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	windows := [][2]time.Time{
		{day(2024, time.February, 1), day(2024, time.February, 5)},
		{day(2024, time.January, 10), day(2024, time.January, 15)},
		{day(2024, time.January, 20), day(2024, time.January, 25)},
	}
	for _, w := range windows {
		if _, _, err := fx.svc.CreateTask(ctx, Task{ScheduleID: fx.project.ID, FactoryID: fx.factory.ID, Title: "T", StartDate: w[0], EndDate: w[1]}); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
	tasks, err := fx.svc.ScheduleTasks(ctx, fx.project.ID)
	if err != nil {
		t.Fatalf("schedule tasks: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i].StartDate.Before(tasks[i-1].StartDate) {
			t.Fatalf("tasks not ordered by start date: %v then %v", tasks[i-1].StartDate, tasks[i].StartDate)
		}
	}
	if _, err := fx.svc.ScheduleTasks(ctx, "missing"); err == nil {
		t.Fatalf("expected NotFound for unknown schedule")
	}
}

func TestMoveCategoryCycleRejectedSilently(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine())
	ctx := context.Background()

	root, _, err := svc.CreateCategory(ctx, ProductCategory{Name: "Root"})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	skincare, _, err := svc.CreateCategory(ctx, ProductCategory{Name: "Skincare", ParentID: &root.ID})
	if err != nil {
		t.Fatalf("create skincare: %v", err)
	}
	lotion, _, err := svc.CreateCategory(ctx, ProductCategory{Name: "Lotion", ParentID: &skincare.ID})
	if err != nil {
		t.Fatalf("create lotion: %v", err)
	}
	cream, _, err := svc.CreateCategory(ctx, ProductCategory{Name: "Cream", ParentID: &skincare.ID})
	if err != nil {
		t.Fatalf("create cream: %v", err)
	}

	moved, _, err := svc.MoveCategory(ctx, skincare.ID, lotion.ID, tree.Inside)
	if err != nil {
		t.Fatalf("cycle move must not error: %v", err)
	}
	if moved {
		t.Fatalf("cycle move must be rejected")
	}
	forest, err := svc.CategoryForest(ctx)
	if err != nil {
		t.Fatalf("forest: %v", err)
	}
	if len(forest) != 1 || forest[0].ID != string(root.ID) {
		t.Fatalf("tree changed by rejected move: %+v", forest)
	}

	// A legal reorder applies and renumbers sibling positions.
	moved, _, err = svc.MoveCategory(ctx, cream.ID, lotion.ID, tree.Before)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if !moved {
		t.Fatalf("expected reorder to apply")
	}
	forest, _ = svc.CategoryForest(ctx)
	children := forest[0].Children[0].Children
	if len(children) != 2 || children[0].ID != string(cream.ID) || children[1].ID != string(lotion.ID) {
		t.Fatalf("unexpected sibling order: %+v", children)
	}
	if children[0].Value.Position != 0 || children[1].Value.Position != 1 {
		t.Fatalf("positions not renumbered: %+v", children)
	}

	// Promote a nested node to the root level.
	moved, _, err = svc.MoveCategory(ctx, lotion.ID, "", tree.Inside)
	if err != nil || !moved {
		t.Fatalf("promote to root: moved=%v err=%v", moved, err)
	}
	forest, _ = svc.CategoryForest(ctx)
	if len(forest) != 2 || forest[1].ID != string(lotion.ID) {
		t.Fatalf("expected lotion as new last root: %+v", forest)
	}
}

func TestMoveProjectRetypesHierarchy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	other, _, err := fx.svc.CreateProject(ctx, Project{
		Name:       "Secondary",
		Type:       domain.ProjectMaster,
		CustomerID: fx.customer.ID,
		ManagerID:  fx.manager.ID,
		StartDate:  day(2024, time.January, 5),
		EndDate:    day(2024, time.February, 1),
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	moved, _, err := fx.svc.MoveProject(ctx, other.ID, fx.project.ID, tree.Inside)
	if err != nil {
		t.Fatalf("move project: %v", err)
	}
	if !moved {
		t.Fatalf("expected move to apply")
	}
	sub, _ := fx.svc.Store().GetProject(other.ID)
	if sub.Type != domain.ProjectSub || sub.ParentID == nil || *sub.ParentID != fx.project.ID {
		t.Fatalf("expected sub under master, got %+v", sub)
	}

	// Dropping a project into its own subtree is a silent no-op.
	moved, _, err = fx.svc.MoveProject(ctx, fx.project.ID, other.ID, tree.Inside)
	if err != nil {
		t.Fatalf("cycle move must not error: %v", err)
	}
	if moved {
		t.Fatalf("cycle move must be rejected")
	}

	// Back to the root level the project is a master again.
	moved, _, err = fx.svc.MoveProject(ctx, other.ID, "", tree.Inside)
	if err != nil || !moved {
		t.Fatalf("promote: moved=%v err=%v", moved, err)
	}
	master, _ := fx.svc.Store().GetProject(other.ID)
	if master.Type != domain.ProjectMaster || master.ParentID != nil {
		t.Fatalf("expected master at root, got %+v", master)
	}
}

func TestCustomFieldLifecycle(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	def, _, err := fx.svc.CreateCustomField(ctx, CustomFieldDefinition{OwnerKind: EntityProject, Name: "memo"})
	if err != nil {
		t.Fatalf("create field: %v", err)
	}
	if _, _, err := fx.svc.SetCustomFieldValue(ctx, string(fx.project.ID), def.ID, "call the customer"); err != nil {
		t.Fatalf("set value: %v", err)
	}
	if got, ok := fx.svc.CustomFieldValue(string(fx.project.ID), def.ID); !ok || got != "call the customer" {
		t.Fatalf("read back: %q ok=%v", got, ok)
	}
	if _, ok := fx.svc.CustomFieldValue(string(fx.project.ID), "missing"); ok {
		t.Fatalf("expected miss for unknown field")
	}
	fields := fx.svc.ListCustomFields(EntityProject)
	if len(fields) != 1 || fields[0].ID != def.ID {
		t.Fatalf("unexpected field list: %+v", fields)
	}
	if len(fx.svc.ListCustomFields(EntityTask)) != 0 {
		t.Fatalf("owner kind filter leaked definitions")
	}
	if _, err := fx.svc.DeleteCustomField(ctx, def.ID); err != nil {
		t.Fatalf("delete field: %v", err)
	}
	if _, ok := fx.svc.CustomFieldValue(string(fx.project.ID), def.ID); ok {
		t.Fatalf("values must cascade with the definition")
	}
}

func TestEnsureSeedIdempotent(t *testing.T) {
	svc := NewInMemoryService(NewDefaultRulesEngine())
	if err := EnsureSeed(svc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if svc.Store().Empty() {
		t.Fatalf("store empty after seed")
	}
	if _, ok := svc.Store().GetProject(SeedProjectLaunch); !ok {
		t.Fatalf("seed project missing")
	}
	if _, ok := svc.Store().GetSchedule(SeedProjectLaunch); !ok {
		t.Fatalf("seed schedule missing")
	}
	before := len(svc.Store().ListFactories())
	if err := EnsureSeed(svc); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if got := len(svc.Store().ListFactories()); got != before {
		t.Fatalf("seed must not duplicate data: %d != %d", got, before)
	}
}

// failingPersistStore commits in memory but reports every snapshot write as
// failed, the way a durable store with a broken backend would.
type failingPersistStore struct {
	*memory.Store
	hook func(context.Context, error)
}

func (f *failingPersistStore) SetPersistErrorHook(fn func(context.Context, error)) { f.hook = fn }

func (f *failingPersistStore) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := f.Store.RunInTransaction(ctx, fn)
	if err == nil && f.hook != nil {
		f.hook(ctx, errors.New("disk full"))
	}
	return res, err
}

func TestPersistFailureReportedThroughInstrumentation(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewExpvarMetricsRecorder("")
	tracer := NewJSONTracer(&buf)
	store := &failingPersistStore{Store: memory.NewStore(NewDefaultRulesEngine())}
	svc := NewService(store, WithMetrics(metrics), WithTracer(tracer))

	factory, _, err := svc.CreateFactory(context.Background(), Factory{Name: "Plant", Type: domain.FactoryManufacturing})
	if err != nil {
		t.Fatalf("create factory: %v", err)
	}
	if _, ok := svc.Store().GetFactory(factory.ID); !ok {
		t.Fatalf("commit must survive the snapshot failure")
	}

	snap := metrics.Snapshot()
	if snap.Results["persist_snapshot"]["error"] != 1 {
		t.Fatalf("expected a persist_snapshot error observation: %+v", snap.Results)
	}
	var found bool
	for _, entry := range tracer.Entries() {
		if entry.Operation == "persist_snapshot" && entry.Status == "error" && entry.Error == "disk full" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a persist_snapshot error span: %+v", tracer.Entries())
	}
}

func TestServiceInstrumentation(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewExpvarMetricsRecorder("")
	tracer := NewJSONTracer(&buf)
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithMetrics(metrics), WithTracer(tracer))
	ctx := context.Background()

	if _, _, err := svc.CreateFactory(ctx, Factory{Name: "Plant", Type: domain.FactoryManufacturing}); err != nil {
		t.Fatalf("create factory: %v", err)
	}
	if _, _, err := svc.CreateFactory(ctx, Factory{Name: ""}); err == nil {
		t.Fatalf("expected validation failure")
	}

	snap := metrics.Snapshot()
	if snap.Results["create_factory"]["success"] != 1 || snap.Results["create_factory"]["error"] != 1 {
		t.Fatalf("unexpected metrics: %+v", snap.Results)
	}
	entries := tracer.Entries()
	if len(entries) != 2 || entries[0].Operation != "create_factory" {
		t.Fatalf("unexpected trace entries: %+v", entries)
	}
	if entries[1].Status != "error" {
		t.Fatalf("expected second span to record the error: %+v", entries[1])
	}
	if buf.Len() == 0 {
		t.Fatalf("expected spans written to the trace writer")
	}
}
