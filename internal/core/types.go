package core

import "plancore/pkg/domain"

type (
	EntityType            = domain.EntityType
	FactoryType           = domain.FactoryType
	ProjectType           = domain.ProjectType
	TaskStatus            = domain.TaskStatus
	Severity              = domain.Severity
	Base                  = domain.Base
	Factory               = domain.Factory
	Project               = domain.Project
	Task                  = domain.Task
	Schedule              = domain.Schedule
	ProductCategory       = domain.ProductCategory
	Customer              = domain.Customer
	User                  = domain.User
	CustomFieldDefinition = domain.CustomFieldDefinition
	CustomFieldValue      = domain.CustomFieldValue
	Change                = domain.Change
	Action                = domain.Action
	Violation             = domain.Violation
	Result                = domain.Result
	RuleViolationError    = domain.RuleViolationError
	RulesEngine           = domain.RulesEngine
	Rule                  = domain.Rule
	RuleView              = domain.RuleView
	Transaction           = domain.Transaction
	TransactionView       = domain.TransactionView
	PersistentStore       = domain.PersistentStore
	DateRange             = domain.DateRange
)

const (
	EntityFactory          = domain.EntityFactory
	EntityProject          = domain.EntityProject
	EntityTask             = domain.EntityTask
	EntitySchedule         = domain.EntitySchedule
	EntityCustomer         = domain.EntityCustomer
	EntityUser             = domain.EntityUser
	EntityCategory         = domain.EntityCategory
	EntityCustomField      = domain.EntityCustomField
	EntityCustomFieldValue = domain.EntityCustomFieldValue
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set:
// task window and factory overlap enforcement plus project hierarchy
// consistency.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NewTaskScheduleRule())
	engine.Register(NewProjectHierarchyRule())
	return engine
}
