package core

import (
	"context"
	"fmt"

	"plancore/pkg/domain"
)

// NewTaskScheduleRule returns the in-transaction rule enforcing task window
// structure (date order, duration bounds, project containment) and factory
// overlap across the whole state. Any transaction that would leave two live
// tasks sharing a factory in overlapping windows is blocked.
func NewTaskScheduleRule() domain.Rule {
	return taskScheduleRule{}
}

type taskScheduleRule struct{}

func (taskScheduleRule) Name() string { return "task_schedule" }

func (taskScheduleRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	tasks := view.ListTasks()

	for _, task := range tasks {
		var window *domain.DateRange
		if project, ok := view.FindProject(task.ScheduleID); ok {
			w := project.Window()
			window = &w
		}
		structural := domain.ValidateTask(task, window, nil)
		res.Merge(structural)
	}

	// Pairwise factory overlap; each conflicting pair is reported once,
	// attributed to the later id.
	byFactory := make(map[domain.FactoryID][]domain.Task)
	for _, task := range tasks {
		if !task.BlocksOverlap() {
			continue
		}
		byFactory[task.FactoryID] = append(byFactory[task.FactoryID], task)
	}
	for factoryID, group := range byFactory {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.ID > b.ID {
					a, b = b, a
				}
				if a.Window().Overlaps(b.Window()) {
					res.Violations = append(res.Violations, domain.Violation{
						Rule:       "factory_overlap",
						Code:       domain.CodeOverlapConflict,
						Severity:   domain.SeverityBlock,
						Message:    fmt.Sprintf("factory %s runs tasks %s and %s in overlapping windows", factoryID, a.ID, b.ID),
						Entity:     domain.EntityTask,
						EntityID:   string(b.ID),
						ConflictID: string(a.ID),
					})
				}
			}
		}
	}
	return res, nil
}
