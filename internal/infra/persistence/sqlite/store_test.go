package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"plancore/pkg/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plancore.db")

	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var factoryID domain.FactoryID
	var projectID domain.ProjectID
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		factory, err := tx.CreateFactory(domain.Factory{Name: "Plant A", Type: domain.FactoryManufacturing, Active: true})
		if err != nil {
			return err
		}
		factoryID = factory.ID
		customer, err := tx.CreateCustomer(domain.Customer{Name: "Acme", Active: true})
		if err != nil {
			return err
		}
		manager, err := tx.CreateUser(domain.User{Name: "Manager", Role: "manager", Active: true})
		if err != nil {
			return err
		}
		project, err := tx.CreateProject(domain.Project{
			Name:           "Launch",
			Type:           domain.ProjectMaster,
			CustomerID:     customer.ID,
			ManagerID:      manager.ID,
			StartDate:      day(2026, time.March, 2),
			EndDate:        day(2026, time.June, 2),
			ManufacturerID: &factory.ID,
		})
		if err != nil {
			return err
		}
		projectID = project.ID
		_, err = tx.CreateTask(domain.Task{
			Title:      "Produce",
			ScheduleID: project.ID,
			FactoryID:  factory.ID,
			Status:     domain.TaskStatusPending,
			StartDate:  day(2026, time.March, 9),
			EndDate:    day(2026, time.March, 23),
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if err := store.LastPersistError(); err != nil {
		t.Fatalf("persist after commit: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if _, ok := reopened.GetFactory(factoryID); !ok {
		t.Fatalf("factory lost across reopen")
	}
	project, ok := reopened.GetProject(projectID)
	if !ok {
		t.Fatalf("project lost across reopen")
	}
	if !project.StartDate.Equal(day(2026, time.March, 2)) {
		t.Fatalf("project window mangled: %+v", project)
	}
	if _, ok := reopened.GetSchedule(projectID); !ok {
		t.Fatalf("schedule lost across reopen")
	}
	if tasks := reopened.ListTasks(); len(tasks) != 1 || tasks[0].ScheduleID != projectID {
		t.Fatalf("tasks lost across reopen: %+v", tasks)
	}
}

func TestRejectedCommitLeavesSnapshotUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plancore.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateTask(domain.Task{
			Title:      "Orphan",
			ScheduleID: domain.ProjectID("missing"),
			Status:     domain.TaskStatusPending,
			StartDate:  day(2026, time.March, 9),
			EndDate:    day(2026, time.March, 23),
		})
		return err
	})
	if err == nil {
		t.Fatalf("expected task without schedule to be rejected")
	}
	if got := len(store.ListTasks()); got != 0 {
		t.Fatalf("rejected commit left %d tasks", got)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	if got := len(reopened.ListTasks()); got != 0 {
		t.Fatalf("rejected commit persisted %d tasks", got)
	}
}

func TestPersistFailureInvokesHookAndKeepsCommit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plancore.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var hookErr error
	store.SetPersistErrorHook(func(_ context.Context, err error) { hookErr = err })

	// Closing the handle makes every snapshot write fail while the in-memory
	// commit still goes through.
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateFactory(domain.Factory{Name: "Plant B", Type: domain.FactoryPackaging, Active: true})
		return err
	})
	if err != nil {
		t.Fatalf("commit must not fail on snapshot errors: %v", err)
	}
	if got := len(store.ListFactories()); got != 1 {
		t.Fatalf("in-memory commit lost: %d factories", got)
	}
	if hookErr == nil {
		t.Fatalf("expected persist error hook to fire")
	}
	if store.LastPersistError() == nil {
		t.Fatalf("expected persist error to be retained")
	}
}

func TestPersistForcesSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plancore.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()

	// ImportState bypasses RunInTransaction, so nothing is on disk yet.
	snapshot := store.ExportState()
	snapshot.Customers = append(snapshot.Customers, domain.Customer{ID: "cust-direct", Name: "Direct", Active: true})
	store.ImportState(snapshot)
	if err := store.Persist(ctx); err != nil {
		t.Fatalf("persist: %v", err)
	}

	reopened, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	found := false
	for _, c := range reopened.ListCustomers() {
		if c.ID == "cust-direct" {
			found = true
		}
	}
	if !found {
		t.Fatalf("forced snapshot not visible after reopen")
	}
}
