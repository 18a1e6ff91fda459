// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by plancore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityFactory identifies a manufacturing partner record.
	EntityFactory EntityType = "factory"
	// EntityProject identifies a client project record.
	EntityProject EntityType = "project"
	// EntityTask identifies a scheduled task record.
	EntityTask EntityType = "task"
	// EntitySchedule identifies a project schedule record.
	EntitySchedule EntityType = "schedule"
	// EntityCustomer identifies a customer record.
	EntityCustomer EntityType = "customer"
	// EntityUser identifies a user record.
	EntityUser EntityType = "user"
	// EntityCategory identifies a product category record.
	EntityCategory EntityType = "product_category"
	// EntityCustomField identifies a custom field definition record.
	EntityCustomField EntityType = "custom_field"
	// EntityCustomFieldValue identifies a custom field value record.
	EntityCustomFieldValue EntityType = "custom_field_value"
)

// Typed identifiers. All are opaque strings; the distinct types keep a value
// of one kind from being substituted for another at compile time.
type (
	// FactoryID identifies a Factory.
	FactoryID string
	// ProjectID identifies a Project. Schedule ids equal their project id.
	ProjectID string
	// TaskID identifies a Task.
	TaskID string
	// UserID identifies a User.
	UserID string
	// CustomerID identifies a Customer.
	CustomerID string
	// CategoryID identifies a ProductCategory.
	CategoryID string
	// CustomFieldID identifies a CustomFieldDefinition.
	CustomFieldID string
)

// FactoryType partitions factories by the production stage they cover.
type FactoryType string

// Canonical factory types; task type vocabularies are keyed by these.
const (
	FactoryManufacturing FactoryType = "manufacturing"
	FactoryContainer     FactoryType = "container"
	FactoryPackaging     FactoryType = "packaging"
)

// ProjectType distinguishes master projects from their sub projects.
type ProjectType string

const (
	// ProjectMaster is a top-level project; it never carries a parent.
	ProjectMaster ProjectType = "master"
	// ProjectSub is a child project; only subs may carry a parent.
	ProjectSub ProjectType = "sub"
)

// ProjectStatus enumerates the project workflow states.
type ProjectStatus string

// Canonical project statuses.
const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// TaskStatus enumerates task workflow states used by scheduling rules.
type TaskStatus string

// Canonical task statuses. Cancelled tasks release their factory slot; every
// other status keeps it occupied.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Priority ranks projects for display ordering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn surfaces a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// ViolationCode names the structural check a violation came from so callers
// can render an actionable message per failure class.
type ViolationCode string

// Violation codes emitted by the scheduling and hierarchy rules.
const (
	// CodeInvalidRange reports end before start.
	CodeInvalidRange ViolationCode = "invalid_range"
	// CodeDurationOutOfBounds reports an inclusive day count outside the allowed window.
	CodeDurationOutOfBounds ViolationCode = "duration_out_of_bounds"
	// CodeOutOfProjectBounds reports a task window escaping its project window.
	CodeOutOfProjectBounds ViolationCode = "out_of_project_bounds"
	// CodeOverlapConflict reports two live tasks sharing a factory and overlapping windows.
	CodeOverlapConflict ViolationCode = "overlap_conflict"
	// CodeHierarchyCycle reports a reparenting that would make a node its own ancestor.
	CodeHierarchyCycle ViolationCode = "hierarchy_cycle"
	// CodeHierarchyType reports a master project carrying a parent or a parented non-sub.
	CodeHierarchyType ViolationCode = "hierarchy_type"
	// CodeSubWindowEscape reports a sub project window outside its master window (advisory).
	CodeSubWindowEscape ViolationCode = "sub_window_escape"
)

// Base contains common fields for all domain records.
type Base struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Factory represents a manufacturing, container, or packaging partner that
// tasks are assigned to.
type Factory struct {
	Base
	ID             FactoryID   `json:"id"`
	Name           string      `json:"name"`
	Type           FactoryType `json:"type"`
	Address        string      `json:"address"`
	Contact        string      `json:"contact"`
	ManagerName    string      `json:"manager_name"`
	Capacity       int         `json:"capacity"`
	Certifications []string    `json:"certifications"`
	Active         bool        `json:"active"`
}

// Project represents a client engagement with a date window, optionally split
// into a master project and its subs.
type Project struct {
	Base
	ID               ProjectID     `json:"id"`
	ParentID         *ProjectID    `json:"parent_id"`
	Type             ProjectType   `json:"type"`
	Name             string        `json:"name"`
	CustomerID       CustomerID    `json:"customer_id"`
	ManagerID        UserID        `json:"manager_id"`
	ProductType      string        `json:"product_type"`
	ServiceType      string        `json:"service_type"`
	Status           ProjectStatus `json:"status"`
	Priority         Priority      `json:"priority"`
	StartDate        time.Time     `json:"start_date"`
	EndDate          time.Time     `json:"end_date"`
	ManufacturerID   *FactoryID    `json:"manufacturer_id"`
	ContainerID      *FactoryID    `json:"container_id"`
	PackagingID      *FactoryID    `json:"packaging_id"`
	QuoteAmount      int64         `json:"quote_amount"`
	SettlementAmount int64         `json:"settlement_amount"`
}

// Window returns the project's inclusive date window.
func (p Project) Window() DateRange {
	return DateRange{Start: p.StartDate, End: p.EndDate}
}

// FactoryRefs returns the factory references the project holds, skipping
// unset slots.
func (p Project) FactoryRefs() []FactoryID {
	refs := make([]FactoryID, 0, 3)
	for _, ref := range []*FactoryID{p.ManufacturerID, p.ContainerID, p.PackagingID} {
		if ref != nil {
			refs = append(refs, *ref)
		}
	}
	return refs
}

// Task type vocabulary keyed by factory type. Every factory type allows its
// own production step plus an inspection pass.
var taskTypesByFactory = map[FactoryType][]string{
	FactoryManufacturing: {"manufacturing", "filling", "inspection"},
	FactoryContainer:     {"container", "molding", "inspection"},
	FactoryPackaging:     {"packaging", "printing", "assembly", "inspection"},
}

// TaskTypesFor returns the allowed task types for a factory type.
func TaskTypesFor(ft FactoryType) []string {
	return append([]string(nil), taskTypesByFactory[ft]...)
}

// ValidTaskType reports whether taskType belongs to the factory type's
// vocabulary. The empty string counts as unspecified and is always valid.
func ValidTaskType(ft FactoryType, taskType string) bool {
	if taskType == "" {
		return true
	}
	for _, v := range taskTypesByFactory[ft] {
		if v == taskType {
			return true
		}
	}
	return false
}

// Task represents a scheduled unit of work against one factory inside a
// project's schedule.
type Task struct {
	Base
	ID           TaskID     `json:"id"`
	ScheduleID   ProjectID  `json:"schedule_id"`
	FactoryID    FactoryID  `json:"factory_id"`
	TaskType     string     `json:"task_type"`
	Title        string     `json:"title"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	Status       TaskStatus `json:"status"`
	DependsOn    []TaskID   `json:"depends_on"`
	BlockedBy    []TaskID   `json:"blocked_by"`
	AssigneeID   *UserID    `json:"assignee_id"`
	Participants []UserID   `json:"participants"`
}

// Window returns the task's inclusive date window.
func (t Task) Window() DateRange {
	return DateRange{Start: t.StartDate, End: t.EndDate}
}

// BlocksOverlap reports whether the task occupies its factory slot for
// conflict detection. Cancelled tasks release the slot; completed tasks keep
// occupying it.
func (t Task) BlocksOverlap() bool {
	return t.Status != TaskStatusCancelled
}

// ScheduleParticipant is a factory reference shown on a schedule with its
// display color.
type ScheduleParticipant struct {
	FactoryID FactoryID `json:"factory_id"`
	Color     string    `json:"color"`
}

// Schedule is the task/participant view of a single project. Its id equals
// the owning project's id and its window mirrors the project window. The task
// list itself is derived (tasks filtered by schedule id), never stored here.
type Schedule struct {
	Base
	ID           ProjectID             `json:"id"`
	Participants []ScheduleParticipant `json:"participants"`
	StartDate    time.Time             `json:"start_date"`
	EndDate      time.Time             `json:"end_date"`
}

// ProductCategory is a node in the product category forest. Position orders
// the node among its siblings.
type ProductCategory struct {
	Base
	ID          CategoryID  `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ParentID    *CategoryID `json:"parent_id"`
	Position    int         `json:"position"`
}

// CustomFieldDefinition declares a sparse attribute attachable to every
// instance of one entity kind without a schema change.
type CustomFieldDefinition struct {
	Base
	ID        CustomFieldID `json:"id"`
	OwnerKind EntityType    `json:"owner_kind"`
	Name      string        `json:"name"`
}

// CustomFieldValue holds one field payload for one entity instance, keyed by
// (entity id, field id).
type CustomFieldValue struct {
	Base
	EntityID string        `json:"entity_id"`
	FieldID  CustomFieldID `json:"field_id"`
	Value    string        `json:"value"`
}

// Customer is a client referenced by projects.
type Customer struct {
	Base
	ID      CustomerID `json:"id"`
	Name    string     `json:"name"`
	Contact string     `json:"contact"`
	Active  bool       `json:"active"`
}

// User is an internal account referenced as manager, assignee, or participant.
type User struct {
	Base
	ID     UserID `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Active bool   `json:"active"`
}

// Action enumerates CRUD operations captured in Change records.
type Action string

// Change actions enumerate supported CRUD operations captured in the audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change records one mutation applied within a transaction for rule
// evaluation and auditing.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule       string        `json:"rule"`
	Code       ViolationCode `json:"code"`
	Severity   Severity      `json:"severity"`
	Message    string        `json:"message"`
	Entity     EntityType    `json:"entity"`
	EntityID   string        `json:"entity_id"`
	ConflictID string        `json:"conflict_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// OK reports whether the result carries no violations at all.
func (r Result) OK() bool {
	return len(r.Violations) == 0
}
