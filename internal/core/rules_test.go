package core

import (
	"context"
	"testing"
	"time"

	"plancore/pkg/domain"
)

// ruleState is a minimal RuleView for exercising rules without a store.
type ruleState struct {
	factories []Factory
	projects  []Project
	tasks     []Task
	schedules []Schedule
}

func (s ruleState) ListFactories() []Factory          { return s.factories }
func (s ruleState) ListProjects() []Project           { return s.projects }
func (s ruleState) ListTasks() []Task                 { return s.tasks }
func (s ruleState) ListSchedules() []Schedule         { return s.schedules }
func (s ruleState) ListCategories() []ProductCategory { return nil }

func (s ruleState) FindFactory(id domain.FactoryID) (Factory, bool) {
	for _, f := range s.factories {
		if f.ID == id {
			return f, true
		}
	}
	return Factory{}, false
}

func (s ruleState) FindProject(id domain.ProjectID) (Project, bool) {
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

func (s ruleState) FindTask(id domain.TaskID) (Task, bool) {
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

func (s ruleState) FindSchedule(id domain.ProjectID) (Schedule, bool) {
	for _, sc := range s.schedules {
		if sc.ID == id {
			return sc, true
		}
	}
	return Schedule{}, false
}

func (s ruleState) FindCategory(domain.CategoryID) (ProductCategory, bool) {
	return ProductCategory{}, false
}

func ruleCodes(res Result) map[domain.ViolationCode][]Violation {
	out := map[domain.ViolationCode][]Violation{}
	for _, v := range res.Violations {
		out[v.Code] = append(out[v.Code], v)
	}
	return out
}

func TestTaskScheduleRuleReportsOverlapOnce(t *testing.T) {
	state := ruleState{
		tasks: []Task{
			{ID: "t-a", FactoryID: "f1", StartDate: day(2024, time.January, 10), EndDate: day(2024, time.January, 15), Status: domain.TaskStatusInProgress},
			{ID: "t-b", FactoryID: "f1", StartDate: day(2024, time.January, 14), EndDate: day(2024, time.January, 20), Status: domain.TaskStatusPending},
			{ID: "t-c", FactoryID: "f2", StartDate: day(2024, time.January, 14), EndDate: day(2024, time.January, 20), Status: domain.TaskStatusPending},
		},
	}
	res, err := NewTaskScheduleRule().Evaluate(context.Background(), state, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	overlaps := ruleCodes(res)[domain.CodeOverlapConflict]
	if len(overlaps) != 1 {
		t.Fatalf("expected one overlap for the pair, got %v", overlaps)
	}
	// Attributed to the later id, referencing the earlier one.
	if overlaps[0].EntityID != "t-b" || overlaps[0].ConflictID != "t-a" {
		t.Fatalf("unexpected attribution: %+v", overlaps[0])
	}
}

func TestTaskScheduleRuleIgnoresCancelled(t *testing.T) {
	state := ruleState{
		tasks: []Task{
			{ID: "t-a", FactoryID: "f1", StartDate: day(2024, time.January, 10), EndDate: day(2024, time.January, 15), Status: domain.TaskStatusCancelled},
			{ID: "t-b", FactoryID: "f1", StartDate: day(2024, time.January, 14), EndDate: day(2024, time.January, 20), Status: domain.TaskStatusPending},
		},
	}
	res, err := NewTaskScheduleRule().Evaluate(context.Background(), state, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(ruleCodes(res)[domain.CodeOverlapConflict]) != 0 {
		t.Fatalf("cancelled tasks must not conflict: %v", res.Violations)
	}
}

func TestTaskScheduleRuleChecksProjectContainment(t *testing.T) {
	state := ruleState{
		projects: []Project{{ID: "p1", Type: domain.ProjectMaster, StartDate: day(2024, time.January, 1), EndDate: day(2024, time.February, 1)}},
		tasks: []Task{
			{ID: "t-a", ScheduleID: "p1", FactoryID: "f1", StartDate: day(2024, time.January, 25), EndDate: day(2024, time.February, 10), Status: domain.TaskStatusPending},
		},
	}
	res, err := NewTaskScheduleRule().Evaluate(context.Background(), state, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(ruleCodes(res)[domain.CodeOutOfProjectBounds]) != 1 {
		t.Fatalf("expected containment violation: %v", res.Violations)
	}
}

func TestProjectHierarchyRule(t *testing.T) {
	master := Project{ID: "m", Type: domain.ProjectMaster, StartDate: day(2024, time.January, 1), EndDate: day(2024, time.March, 1)}
	parent := master.ID

	t.Run("well formed", func(t *testing.T) {
		sub := Project{ID: "s", Type: domain.ProjectSub, ParentID: &parent, StartDate: day(2024, time.January, 5), EndDate: day(2024, time.February, 1)}
		res, err := NewProjectHierarchyRule().Evaluate(context.Background(), ruleState{projects: []Project{master, sub}}, nil)
		if err != nil {
			t.Fatalf("evaluate: %v", err)
		}
		if !res.OK() {
			t.Fatalf("expected clean result: %v", res.Violations)
		}
	})

	t.Run("parented master blocked", func(t *testing.T) {
		bad := Project{ID: "s", Type: domain.ProjectMaster, ParentID: &parent}
		res, _ := NewProjectHierarchyRule().Evaluate(context.Background(), ruleState{projects: []Project{master, bad}}, nil)
		vs := ruleCodes(res)[domain.CodeHierarchyType]
		if len(vs) != 1 || vs[0].Severity != SeverityBlock {
			t.Fatalf("expected blocking type violation: %v", res.Violations)
		}
	})

	t.Run("missing parent blocked", func(t *testing.T) {
		ghost := domain.ProjectID("ghost")
		orphan := Project{ID: "s", Type: domain.ProjectSub, ParentID: &ghost}
		res, _ := NewProjectHierarchyRule().Evaluate(context.Background(), ruleState{projects: []Project{orphan}}, nil)
		if len(ruleCodes(res)[domain.CodeHierarchyType]) != 1 {
			t.Fatalf("expected missing-parent violation: %v", res.Violations)
		}
	})

	t.Run("parent must be master", func(t *testing.T) {
		subParent := Project{ID: "sp", Type: domain.ProjectSub}
		spID := subParent.ID
		child := Project{ID: "c", Type: domain.ProjectSub, ParentID: &spID}
		res, _ := NewProjectHierarchyRule().Evaluate(context.Background(), ruleState{projects: []Project{subParent, child}}, nil)
		if len(ruleCodes(res)[domain.CodeHierarchyType]) != 1 {
			t.Fatalf("expected non-master parent violation: %v", res.Violations)
		}
	})

	t.Run("window escape warns only", func(t *testing.T) {
		sub := Project{ID: "s", Type: domain.ProjectSub, ParentID: &parent, StartDate: day(2024, time.February, 15), EndDate: day(2024, time.March, 15)}
		res, _ := NewProjectHierarchyRule().Evaluate(context.Background(), ruleState{projects: []Project{master, sub}}, nil)
		vs := ruleCodes(res)[domain.CodeSubWindowEscape]
		if len(vs) != 1 || vs[0].Severity != SeverityWarn {
			t.Fatalf("expected advisory escape warning: %v", res.Violations)
		}
		if res.HasBlocking() {
			t.Fatalf("window escape must not block: %v", res.Violations)
		}
	})
}
