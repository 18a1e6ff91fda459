package core

import (
	"context"
	"fmt"

	"plancore/pkg/domain"
)

// NewProjectHierarchyRule returns the in-transaction rule keeping the project
// master/sub hierarchy consistent: masters never carry a parent, parents are
// masters, and the parent chain never loops. A sub whose date window escapes
// its master's window is reported as a warning only.
func NewProjectHierarchyRule() domain.Rule {
	return projectHierarchyRule{}
}

type projectHierarchyRule struct{}

func (projectHierarchyRule) Name() string { return "project_hierarchy" }

func (projectHierarchyRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, project := range view.ListProjects() {
		if project.ParentID == nil {
			// Detached subs are allowed; they simply have no master yet.
			continue
		}

		if project.Type != domain.ProjectSub {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "project_hierarchy",
				Code:     domain.CodeHierarchyType,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("project %s carries a parent but is typed %s", project.ID, project.Type),
				Entity:   domain.EntityProject,
				EntityID: string(project.ID),
			})
			continue
		}

		parent, ok := view.FindProject(*project.ParentID)
		if !ok {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "project_hierarchy",
				Code:     domain.CodeHierarchyType,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("project %s references missing parent %s", project.ID, *project.ParentID),
				Entity:   domain.EntityProject,
				EntityID: string(project.ID),
			})
			continue
		}
		if parent.Type != domain.ProjectMaster {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "project_hierarchy",
				Code:     domain.CodeHierarchyType,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("project %s is parented to %s, which is not a master", project.ID, parent.ID),
				Entity:   domain.EntityProject,
				EntityID: string(project.ID),
			})
		}
		if parent.ID == project.ID {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "project_hierarchy",
				Code:     domain.CodeHierarchyCycle,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("project %s is its own parent", project.ID),
				Entity:   domain.EntityProject,
				EntityID: string(project.ID),
			})
		}

		// Advisory only: the original behavior never hard-enforced sub
		// windows staying inside the master window.
		if !parent.Window().Contains(project.Window()) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "project_hierarchy",
				Code:     domain.CodeSubWindowEscape,
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("sub project %s window escapes master %s window", project.ID, parent.ID),
				Entity:   domain.EntityProject,
				EntityID: string(project.ID),
			})
		}
	}
	return res, nil
}
