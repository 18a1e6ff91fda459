// Package memory provides the in-memory transactional implementation of the
// plancore persistence store. It is the reference store for tests and
// ephemeral environments; the sqlite and postgres stores layer durable
// snapshots on top of it.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"plancore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Exported aliases to keep method signatures concise while still exposing
// domain types from this infra package.
type (
	// Factory is an alias of domain.Factory.
	Factory = domain.Factory
	// Project is an alias of domain.Project.
	Project = domain.Project
	// Task is an alias of domain.Task.
	Task = domain.Task
	// Schedule is an alias of domain.Schedule.
	Schedule = domain.Schedule
	// ProductCategory is an alias of domain.ProductCategory.
	ProductCategory = domain.ProductCategory
	// Customer is an alias of domain.Customer.
	Customer = domain.Customer
	// User is an alias of domain.User.
	User = domain.User
	// CustomFieldDefinition is an alias of domain.CustomFieldDefinition.
	CustomFieldDefinition = domain.CustomFieldDefinition
	// CustomFieldValue is an alias of domain.CustomFieldValue.
	CustomFieldValue = domain.CustomFieldValue
	// Change is an alias of domain.Change.
	Change = domain.Change
	// Result is an alias of domain.Result.
	Result = domain.Result
	// RulesEngine is an alias of domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction is an alias of domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView is an alias of domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore is an alias of domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// MaxCustomFieldsPerOwner caps custom field definitions per owning entity
// kind. Creation beyond the cap fails with a CapacityError.
const MaxCustomFieldsPerOwner = 10

type memoryState struct {
	factories   map[domain.FactoryID]Factory
	projects    map[domain.ProjectID]Project
	tasks       map[domain.TaskID]Task
	schedules   map[domain.ProjectID]Schedule
	categories  map[domain.CategoryID]ProductCategory
	customers   map[domain.CustomerID]Customer
	users       map[domain.UserID]User
	fields      map[domain.CustomFieldID]CustomFieldDefinition
	fieldValues map[string]CustomFieldValue
}

func newMemoryState() memoryState {
	return memoryState{
		factories:   make(map[domain.FactoryID]Factory),
		projects:    make(map[domain.ProjectID]Project),
		tasks:       make(map[domain.TaskID]Task),
		schedules:   make(map[domain.ProjectID]Schedule),
		categories:  make(map[domain.CategoryID]ProductCategory),
		customers:   make(map[domain.CustomerID]Customer),
		users:       make(map[domain.UserID]User),
		fields:      make(map[domain.CustomFieldID]CustomFieldDefinition),
		fieldValues: make(map[string]CustomFieldValue),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.factories {
		cloned.factories[k] = cloneFactory(v)
	}
	for k, v := range s.projects {
		cloned.projects[k] = cloneProject(v)
	}
	for k, v := range s.tasks {
		cloned.tasks[k] = cloneTask(v)
	}
	for k, v := range s.schedules {
		cloned.schedules[k] = cloneSchedule(v)
	}
	for k, v := range s.categories {
		cloned.categories[k] = cloneCategory(v)
	}
	for k, v := range s.customers {
		cloned.customers[k] = v
	}
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.fields {
		cloned.fields[k] = v
	}
	for k, v := range s.fieldValues {
		cloned.fieldValues[k] = v
	}
	return cloned
}

func cloneFactory(f Factory) Factory {
	cp := f
	cp.Certifications = append([]string(nil), f.Certifications...)
	return cp
}

func cloneProject(p Project) Project {
	cp := p
	cp.ParentID = clonePtr(p.ParentID)
	cp.ManufacturerID = clonePtr(p.ManufacturerID)
	cp.ContainerID = clonePtr(p.ContainerID)
	cp.PackagingID = clonePtr(p.PackagingID)
	return cp
}

func cloneTask(t Task) Task {
	cp := t
	cp.DependsOn = append([]domain.TaskID(nil), t.DependsOn...)
	cp.BlockedBy = append([]domain.TaskID(nil), t.BlockedBy...)
	cp.AssigneeID = clonePtr(t.AssigneeID)
	cp.Participants = append([]domain.UserID(nil), t.Participants...)
	return cp
}

func cloneSchedule(s Schedule) Schedule {
	cp := s
	cp.Participants = append([]domain.ScheduleParticipant(nil), s.Participants...)
	return cp
}

func cloneCategory(c ProductCategory) ProductCategory {
	cp := c
	cp.ParentID = clonePtr(c.ParentID)
	return cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func fieldValueKey(entityID string, fieldID domain.CustomFieldID) string {
	return entityID + "\x00" + string(fieldID)
}

// Store is the in-memory transactional store for the plancore domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// tx implements domain.Transaction over a cloned state.
type tx struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

var _ Transaction = (*tx)(nil)

// view exposes a read-only snapshot of the transactional state to rules.
type view struct {
	state *memoryState
}

var _ TransactionView = view{}

// RunInTransaction executes fn within a transactional copy of the store
// state. The commit happens only after every registered rule passed without
// blocking violations, so no reader ever observes a half-applied mutation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(t); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &t.state}, t.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = t.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// Engine returns the rules engine evaluated on commit.
func (s *Store) Engine() *RulesEngine {
	return s.engine
}

func (t *tx) recordChange(change Change) {
	t.changes = append(t.changes, change)
}

// --- factories ---

func validateFactory(f Factory) error {
	if f.Name == "" {
		return domain.ValidationError{Entity: domain.EntityFactory, Field: "name", Reason: "required"}
	}
	switch f.Type {
	case domain.FactoryManufacturing, domain.FactoryContainer, domain.FactoryPackaging:
	default:
		return domain.ValidationError{Entity: domain.EntityFactory, Field: "type", Reason: fmt.Sprintf("unknown factory type %q", f.Type)}
	}
	if f.Capacity < 0 {
		return domain.ValidationError{Entity: domain.EntityFactory, Field: "capacity", Reason: "must not be negative"}
	}
	return nil
}

// CreateFactory stores a new factory within the transaction.
func (t *tx) CreateFactory(f Factory) (Factory, error) {
	if f.ID == "" {
		f.ID = domain.FactoryID(t.store.newID())
	}
	if _, exists := t.state.factories[f.ID]; exists {
		return Factory{}, fmt.Errorf("factory %q already exists", f.ID)
	}
	if err := validateFactory(f); err != nil {
		return Factory{}, err
	}
	f.CreatedAt = t.now
	f.UpdatedAt = t.now
	t.state.factories[f.ID] = cloneFactory(f)
	t.recordChange(Change{Entity: domain.EntityFactory, Action: domain.ActionCreate, After: cloneFactory(f)})
	return cloneFactory(f), nil
}

// UpdateFactory mutates a factory using the provided mutator function.
func (t *tx) UpdateFactory(id domain.FactoryID, mutator func(*Factory) error) (Factory, error) {
	current, ok := t.state.factories[id]
	if !ok {
		return Factory{}, domain.NotFoundError{Entity: domain.EntityFactory, ID: string(id)}
	}
	before := cloneFactory(current)
	if err := mutator(&current); err != nil {
		return Factory{}, err
	}
	current.ID = id
	if err := validateFactory(current); err != nil {
		return Factory{}, err
	}
	current.UpdatedAt = t.now
	t.state.factories[id] = cloneFactory(current)
	t.recordChange(Change{Entity: domain.EntityFactory, Action: domain.ActionUpdate, Before: before, After: cloneFactory(current)})
	return cloneFactory(current), nil
}

// DeleteFactory removes a factory once nothing references it.
func (t *tx) DeleteFactory(id domain.FactoryID) error {
	current, ok := t.state.factories[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityFactory, ID: string(id)}
	}
	var dependents []string
	for _, task := range t.state.tasks {
		if task.FactoryID == id {
			dependents = append(dependents, fmt.Sprintf("task %s", task.ID))
		}
	}
	for _, project := range t.state.projects {
		for _, ref := range project.FactoryRefs() {
			if ref == id {
				dependents = append(dependents, fmt.Sprintf("project %s", project.ID))
				break
			}
		}
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		return domain.ReferentialError{Entity: domain.EntityFactory, ID: string(id), Dependents: dependents}
	}
	delete(t.state.factories, id)
	t.deleteFieldValuesFor(string(id))
	t.recordChange(Change{Entity: domain.EntityFactory, Action: domain.ActionDelete, Before: cloneFactory(current)})
	return nil
}

// --- projects and schedules ---

// normalizeProjectHierarchy applies the master/sub consistency rule: a master
// never retains a parent (the inconsistent field is cleared, not kept), a
// parented project is a sub, and an untyped project defaults by parentage.
func normalizeProjectHierarchy(p *Project) {
	if p.Type == "" {
		if p.ParentID != nil {
			p.Type = domain.ProjectSub
		} else {
			p.Type = domain.ProjectMaster
		}
	}
	if p.Type == domain.ProjectMaster {
		p.ParentID = nil
	}
}

func (t *tx) validateProjectRefs(p Project) error {
	if !p.Window().Valid() {
		return domain.ValidationError{Entity: domain.EntityProject, Field: "end_date", Reason: "precedes start_date"}
	}
	if p.Name == "" {
		return domain.ValidationError{Entity: domain.EntityProject, Field: "name", Reason: "required"}
	}
	if p.ParentID != nil {
		parent, ok := t.state.projects[*p.ParentID]
		if !ok {
			return domain.ValidationError{Entity: domain.EntityProject, Field: "parent_id", Reason: fmt.Sprintf("unknown project %q", *p.ParentID)}
		}
		if parent.ID == p.ID {
			return domain.ValidationError{Entity: domain.EntityProject, Field: "parent_id", Reason: "project cannot parent itself"}
		}
	}
	if p.CustomerID != "" {
		if _, ok := t.state.customers[p.CustomerID]; !ok {
			return domain.ValidationError{Entity: domain.EntityProject, Field: "customer_id", Reason: fmt.Sprintf("unknown customer %q", p.CustomerID)}
		}
	}
	if p.ManagerID != "" {
		if _, ok := t.state.users[p.ManagerID]; !ok {
			return domain.ValidationError{Entity: domain.EntityProject, Field: "manager_id", Reason: fmt.Sprintf("unknown user %q", p.ManagerID)}
		}
	}
	for _, ref := range p.FactoryRefs() {
		if _, ok := t.state.factories[ref]; !ok {
			return domain.ValidationError{Entity: domain.EntityProject, Field: "factories", Reason: fmt.Sprintf("unknown factory %q", ref)}
		}
	}
	return nil
}

var participantPalette = []string{"#4e79a7", "#f28e2b", "#59a14f", "#e15759", "#76b7b2", "#edc948"}

// syncScheduleParticipants reconciles a schedule's participant list with the
// owning project's factory refs, keeping colors already assigned to factories
// that stay on the schedule.
func syncScheduleParticipants(sched *Schedule, p Project) {
	keep := make(map[domain.FactoryID]string, len(sched.Participants))
	for _, part := range sched.Participants {
		keep[part.FactoryID] = part.Color
	}
	refs := p.FactoryRefs()
	next := make([]domain.ScheduleParticipant, 0, len(refs))
	for i, ref := range refs {
		color, ok := keep[ref]
		if !ok {
			color = participantPalette[i%len(participantPalette)]
		}
		next = append(next, domain.ScheduleParticipant{FactoryID: ref, Color: color})
	}
	sched.Participants = next
}

// CreateProject stores a new project and its 1:1 schedule.
func (t *tx) CreateProject(p Project) (Project, error) {
	if p.ID == "" {
		p.ID = domain.ProjectID(t.store.newID())
	}
	if _, exists := t.state.projects[p.ID]; exists {
		return Project{}, fmt.Errorf("project %q already exists", p.ID)
	}
	normalizeProjectHierarchy(&p)
	if p.Status == "" {
		p.Status = domain.ProjectStatusPlanning
	}
	if p.Priority == "" {
		p.Priority = domain.PriorityMedium
	}
	if err := t.validateProjectRefs(p); err != nil {
		return Project{}, err
	}
	p.CreatedAt = t.now
	p.UpdatedAt = t.now
	t.state.projects[p.ID] = cloneProject(p)

	sched := Schedule{ID: p.ID, StartDate: p.StartDate, EndDate: p.EndDate}
	syncScheduleParticipants(&sched, p)
	sched.CreatedAt = t.now
	sched.UpdatedAt = t.now
	t.state.schedules[p.ID] = cloneSchedule(sched)

	t.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: cloneProject(p)})
	t.recordChange(Change{Entity: domain.EntitySchedule, Action: domain.ActionCreate, After: cloneSchedule(sched)})
	return cloneProject(p), nil
}

// UpdateProject mutates a project, re-normalizes the master/sub rule, and
// keeps the schedule window and participants mirroring the project.
func (t *tx) UpdateProject(id domain.ProjectID, mutator func(*Project) error) (Project, error) {
	current, ok := t.state.projects[id]
	if !ok {
		return Project{}, domain.NotFoundError{Entity: domain.EntityProject, ID: string(id)}
	}
	before := cloneProject(current)
	if err := mutator(&current); err != nil {
		return Project{}, err
	}
	current.ID = id
	normalizeProjectHierarchy(&current)
	if err := t.validateProjectRefs(current); err != nil {
		return Project{}, err
	}
	current.UpdatedAt = t.now
	t.state.projects[id] = cloneProject(current)

	if sched, ok := t.state.schedules[id]; ok {
		sched.StartDate = current.StartDate
		sched.EndDate = current.EndDate
		syncScheduleParticipants(&sched, current)
		sched.UpdatedAt = t.now
		t.state.schedules[id] = cloneSchedule(sched)
	}

	t.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Before: before, After: cloneProject(current)})
	return cloneProject(current), nil
}

// DeleteProject removes a project, cascading its schedule and tasks. Deletion
// is blocked while sub projects still reference it.
func (t *tx) DeleteProject(id domain.ProjectID) error {
	current, ok := t.state.projects[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityProject, ID: string(id)}
	}
	var dependents []string
	for _, p := range t.state.projects {
		if p.ParentID != nil && *p.ParentID == id {
			dependents = append(dependents, fmt.Sprintf("project %s", p.ID))
		}
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		return domain.ReferentialError{Entity: domain.EntityProject, ID: string(id), Dependents: dependents}
	}
	for taskID, task := range t.state.tasks {
		if task.ScheduleID == id {
			delete(t.state.tasks, taskID)
			t.deleteFieldValuesFor(string(taskID))
			t.recordChange(Change{Entity: domain.EntityTask, Action: domain.ActionDelete, Before: cloneTask(task)})
		}
	}
	delete(t.state.schedules, id)
	delete(t.state.projects, id)
	t.deleteFieldValuesFor(string(id))
	t.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionDelete, Before: cloneProject(current)})
	return nil
}

// UpdateSchedule mutates a schedule's participant list. Identity and the date
// window stay mirrored from the owning project regardless of the mutator.
func (t *tx) UpdateSchedule(id domain.ProjectID, mutator func(*Schedule) error) (Schedule, error) {
	current, ok := t.state.schedules[id]
	if !ok {
		return Schedule{}, domain.NotFoundError{Entity: domain.EntitySchedule, ID: string(id)}
	}
	before := cloneSchedule(current)
	if err := mutator(&current); err != nil {
		return Schedule{}, err
	}
	current.ID = id
	if project, ok := t.state.projects[id]; ok {
		current.StartDate = project.StartDate
		current.EndDate = project.EndDate
	}
	for _, part := range current.Participants {
		if _, ok := t.state.factories[part.FactoryID]; !ok {
			return Schedule{}, domain.ValidationError{Entity: domain.EntitySchedule, Field: "participants", Reason: fmt.Sprintf("unknown factory %q", part.FactoryID)}
		}
	}
	current.UpdatedAt = t.now
	t.state.schedules[id] = cloneSchedule(current)
	t.recordChange(Change{Entity: domain.EntitySchedule, Action: domain.ActionUpdate, Before: before, After: cloneSchedule(current)})
	return cloneSchedule(current), nil
}

// --- tasks ---

func (t *tx) validateTaskRefs(task Task) error {
	if _, ok := t.state.schedules[task.ScheduleID]; !ok {
		return domain.ValidationError{Entity: domain.EntityTask, Field: "schedule_id", Reason: fmt.Sprintf("unknown schedule %q", task.ScheduleID)}
	}
	factory, ok := t.state.factories[task.FactoryID]
	if !ok {
		return domain.ValidationError{Entity: domain.EntityTask, Field: "factory_id", Reason: fmt.Sprintf("unknown factory %q", task.FactoryID)}
	}
	if !domain.ValidTaskType(factory.Type, task.TaskType) {
		return domain.ValidationError{Entity: domain.EntityTask, Field: "task_type", Reason: fmt.Sprintf("task type %q not allowed for %s factories", task.TaskType, factory.Type)}
	}
	if task.AssigneeID != nil {
		if _, ok := t.state.users[*task.AssigneeID]; !ok {
			return domain.ValidationError{Entity: domain.EntityTask, Field: "assignee_id", Reason: fmt.Sprintf("unknown user %q", *task.AssigneeID)}
		}
	}
	for _, uid := range task.Participants {
		if _, ok := t.state.users[uid]; !ok {
			return domain.ValidationError{Entity: domain.EntityTask, Field: "participants", Reason: fmt.Sprintf("unknown user %q", uid)}
		}
	}
	for _, dep := range append(append([]domain.TaskID(nil), task.DependsOn...), task.BlockedBy...) {
		if dep == task.ID {
			return domain.ValidationError{Entity: domain.EntityTask, Field: "depends_on", Reason: "task cannot depend on itself"}
		}
		if _, ok := t.state.tasks[dep]; !ok {
			return domain.ValidationError{Entity: domain.EntityTask, Field: "depends_on", Reason: fmt.Sprintf("unknown task %q", dep)}
		}
	}
	return nil
}

// CreateTask stores a new task. Date-window and overlap constraints are
// enforced by the scheduling rules at commit.
func (t *tx) CreateTask(task Task) (Task, error) {
	if task.ID == "" {
		task.ID = domain.TaskID(t.store.newID())
	}
	if _, exists := t.state.tasks[task.ID]; exists {
		return Task{}, fmt.Errorf("task %q already exists", task.ID)
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if err := t.validateTaskRefs(task); err != nil {
		return Task{}, err
	}
	task.CreatedAt = t.now
	task.UpdatedAt = t.now
	t.state.tasks[task.ID] = cloneTask(task)
	t.recordChange(Change{Entity: domain.EntityTask, Action: domain.ActionCreate, After: cloneTask(task)})
	return cloneTask(task), nil
}

// UpdateTask mutates a task using the provided mutator function.
func (t *tx) UpdateTask(id domain.TaskID, mutator func(*Task) error) (Task, error) {
	current, ok := t.state.tasks[id]
	if !ok {
		return Task{}, domain.NotFoundError{Entity: domain.EntityTask, ID: string(id)}
	}
	before := cloneTask(current)
	if err := mutator(&current); err != nil {
		return Task{}, err
	}
	current.ID = id
	if err := t.validateTaskRefs(current); err != nil {
		return Task{}, err
	}
	current.UpdatedAt = t.now
	t.state.tasks[id] = cloneTask(current)
	t.recordChange(Change{Entity: domain.EntityTask, Action: domain.ActionUpdate, Before: before, After: cloneTask(current)})
	return cloneTask(current), nil
}

// DeleteTask removes a task and scrubs it from other tasks' dependency lists.
func (t *tx) DeleteTask(id domain.TaskID) error {
	current, ok := t.state.tasks[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTask, ID: string(id)}
	}
	delete(t.state.tasks, id)
	for otherID, other := range t.state.tasks {
		depends := removeTaskID(other.DependsOn, id)
		blocked := removeTaskID(other.BlockedBy, id)
		if len(depends) != len(other.DependsOn) || len(blocked) != len(other.BlockedBy) {
			other.DependsOn = depends
			other.BlockedBy = blocked
			other.UpdatedAt = t.now
			t.state.tasks[otherID] = cloneTask(other)
		}
	}
	t.deleteFieldValuesFor(string(id))
	t.recordChange(Change{Entity: domain.EntityTask, Action: domain.ActionDelete, Before: cloneTask(current)})
	return nil
}

func removeTaskID(ids []domain.TaskID, id domain.TaskID) []domain.TaskID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// --- categories ---

// ancestorCycle walks the parent chain from parent and reports whether id
// appears in it.
func (t *tx) ancestorCycle(id domain.CategoryID, parent *domain.CategoryID) bool {
	seen := make(map[domain.CategoryID]struct{})
	for parent != nil {
		if *parent == id {
			return true
		}
		if _, dup := seen[*parent]; dup {
			return true
		}
		seen[*parent] = struct{}{}
		node, ok := t.state.categories[*parent]
		if !ok {
			return false
		}
		parent = node.ParentID
	}
	return false
}

func (t *tx) validateCategory(c ProductCategory) error {
	if c.Name == "" {
		return domain.ValidationError{Entity: domain.EntityCategory, Field: "name", Reason: "required"}
	}
	if c.ParentID != nil {
		if _, ok := t.state.categories[*c.ParentID]; !ok {
			return domain.ValidationError{Entity: domain.EntityCategory, Field: "parent_id", Reason: fmt.Sprintf("unknown category %q", *c.ParentID)}
		}
		if t.ancestorCycle(c.ID, c.ParentID) {
			return domain.RuleViolationError{Result: Result{Violations: []domain.Violation{{
				Rule:     "category_hierarchy",
				Code:     domain.CodeHierarchyCycle,
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("category %s cannot become its own ancestor", c.ID),
				Entity:   domain.EntityCategory,
				EntityID: string(c.ID),
			}}}}
		}
	}
	return nil
}

func (t *tx) siblingCount(parent *domain.CategoryID) int {
	count := 0
	for _, c := range t.state.categories {
		if equalParent(c.ParentID, parent) {
			count++
		}
	}
	return count
}

func equalParent(a, b *domain.CategoryID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// CreateCategory appends a new category at the end of its sibling list.
func (t *tx) CreateCategory(c ProductCategory) (ProductCategory, error) {
	if c.ID == "" {
		c.ID = domain.CategoryID(t.store.newID())
	}
	if _, exists := t.state.categories[c.ID]; exists {
		return ProductCategory{}, fmt.Errorf("category %q already exists", c.ID)
	}
	if err := t.validateCategory(c); err != nil {
		return ProductCategory{}, err
	}
	c.Position = t.siblingCount(c.ParentID)
	c.CreatedAt = t.now
	c.UpdatedAt = t.now
	t.state.categories[c.ID] = cloneCategory(c)
	t.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionCreate, After: cloneCategory(c)})
	return cloneCategory(c), nil
}

// UpdateCategory mutates a category, guarding against ancestor cycles.
func (t *tx) UpdateCategory(id domain.CategoryID, mutator func(*ProductCategory) error) (ProductCategory, error) {
	current, ok := t.state.categories[id]
	if !ok {
		return ProductCategory{}, domain.NotFoundError{Entity: domain.EntityCategory, ID: string(id)}
	}
	before := cloneCategory(current)
	if err := mutator(&current); err != nil {
		return ProductCategory{}, err
	}
	current.ID = id
	if err := t.validateCategory(current); err != nil {
		return ProductCategory{}, err
	}
	current.UpdatedAt = t.now
	t.state.categories[id] = cloneCategory(current)
	t.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionUpdate, Before: before, After: cloneCategory(current)})
	return cloneCategory(current), nil
}

// DeleteCategory removes a category once it has no children.
func (t *tx) DeleteCategory(id domain.CategoryID) error {
	current, ok := t.state.categories[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCategory, ID: string(id)}
	}
	var dependents []string
	for _, c := range t.state.categories {
		if c.ParentID != nil && *c.ParentID == id {
			dependents = append(dependents, fmt.Sprintf("category %s", c.ID))
		}
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		return domain.ReferentialError{Entity: domain.EntityCategory, ID: string(id), Dependents: dependents}
	}
	delete(t.state.categories, id)
	t.deleteFieldValuesFor(string(id))
	t.recordChange(Change{Entity: domain.EntityCategory, Action: domain.ActionDelete, Before: cloneCategory(current)})
	return nil
}

// --- customers and users ---

// CreateCustomer stores a new customer.
func (t *tx) CreateCustomer(c Customer) (Customer, error) {
	if c.ID == "" {
		c.ID = domain.CustomerID(t.store.newID())
	}
	if _, exists := t.state.customers[c.ID]; exists {
		return Customer{}, fmt.Errorf("customer %q already exists", c.ID)
	}
	if c.Name == "" {
		return Customer{}, domain.ValidationError{Entity: domain.EntityCustomer, Field: "name", Reason: "required"}
	}
	c.CreatedAt = t.now
	c.UpdatedAt = t.now
	t.state.customers[c.ID] = c
	t.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionCreate, After: c})
	return c, nil
}

// UpdateCustomer mutates a customer.
func (t *tx) UpdateCustomer(id domain.CustomerID, mutator func(*Customer) error) (Customer, error) {
	current, ok := t.state.customers[id]
	if !ok {
		return Customer{}, domain.NotFoundError{Entity: domain.EntityCustomer, ID: string(id)}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Customer{}, err
	}
	current.ID = id
	if current.Name == "" {
		return Customer{}, domain.ValidationError{Entity: domain.EntityCustomer, Field: "name", Reason: "required"}
	}
	current.UpdatedAt = t.now
	t.state.customers[id] = current
	t.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteCustomer removes a customer once no project references it.
func (t *tx) DeleteCustomer(id domain.CustomerID) error {
	current, ok := t.state.customers[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCustomer, ID: string(id)}
	}
	var dependents []string
	for _, p := range t.state.projects {
		if p.CustomerID == id {
			dependents = append(dependents, fmt.Sprintf("project %s", p.ID))
		}
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		return domain.ReferentialError{Entity: domain.EntityCustomer, ID: string(id), Dependents: dependents}
	}
	delete(t.state.customers, id)
	t.deleteFieldValuesFor(string(id))
	t.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateUser stores a new user.
func (t *tx) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = domain.UserID(t.store.newID())
	}
	if _, exists := t.state.users[u.ID]; exists {
		return User{}, fmt.Errorf("user %q already exists", u.ID)
	}
	if u.Name == "" {
		return User{}, domain.ValidationError{Entity: domain.EntityUser, Field: "name", Reason: "required"}
	}
	u.CreatedAt = t.now
	u.UpdatedAt = t.now
	t.state.users[u.ID] = u
	t.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

// UpdateUser mutates a user.
func (t *tx) UpdateUser(id domain.UserID, mutator func(*User) error) (User, error) {
	current, ok := t.state.users[id]
	if !ok {
		return User{}, domain.NotFoundError{Entity: domain.EntityUser, ID: string(id)}
	}
	before := current
	if err := mutator(&current); err != nil {
		return User{}, err
	}
	current.ID = id
	if current.Name == "" {
		return User{}, domain.ValidationError{Entity: domain.EntityUser, Field: "name", Reason: "required"}
	}
	current.UpdatedAt = t.now
	t.state.users[id] = current
	t.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteUser removes a user once no project or task references it.
func (t *tx) DeleteUser(id domain.UserID) error {
	current, ok := t.state.users[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityUser, ID: string(id)}
	}
	var dependents []string
	for _, p := range t.state.projects {
		if p.ManagerID == id {
			dependents = append(dependents, fmt.Sprintf("project %s", p.ID))
		}
	}
	for _, task := range t.state.tasks {
		if task.AssigneeID != nil && *task.AssigneeID == id {
			dependents = append(dependents, fmt.Sprintf("task %s", task.ID))
			continue
		}
		for _, uid := range task.Participants {
			if uid == id {
				dependents = append(dependents, fmt.Sprintf("task %s", task.ID))
				break
			}
		}
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		return domain.ReferentialError{Entity: domain.EntityUser, ID: string(id), Dependents: dependents}
	}
	delete(t.state.users, id)
	t.deleteFieldValuesFor(string(id))
	t.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionDelete, Before: current})
	return nil
}

// --- custom fields ---

// CreateCustomField declares a new sparse field for one owner kind, capped at
// MaxCustomFieldsPerOwner definitions per kind.
func (t *tx) CreateCustomField(def CustomFieldDefinition) (CustomFieldDefinition, error) {
	if def.ID == "" {
		def.ID = domain.CustomFieldID(t.store.newID())
	}
	if _, exists := t.state.fields[def.ID]; exists {
		return CustomFieldDefinition{}, fmt.Errorf("custom field %q already exists", def.ID)
	}
	if def.Name == "" {
		return CustomFieldDefinition{}, domain.ValidationError{Entity: domain.EntityCustomField, Field: "name", Reason: "required"}
	}
	if def.OwnerKind == "" {
		return CustomFieldDefinition{}, domain.ValidationError{Entity: domain.EntityCustomField, Field: "owner_kind", Reason: "required"}
	}
	count := 0
	for _, existing := range t.state.fields {
		if existing.OwnerKind == def.OwnerKind {
			count++
		}
	}
	if count >= MaxCustomFieldsPerOwner {
		return CustomFieldDefinition{}, domain.CapacityError{Entity: domain.EntityCustomField, Limit: MaxCustomFieldsPerOwner}
	}
	def.CreatedAt = t.now
	def.UpdatedAt = t.now
	t.state.fields[def.ID] = def
	t.recordChange(Change{Entity: domain.EntityCustomField, Action: domain.ActionCreate, After: def})
	return def, nil
}

// DeleteCustomField removes a definition and cascades all of its values.
func (t *tx) DeleteCustomField(id domain.CustomFieldID) error {
	current, ok := t.state.fields[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCustomField, ID: string(id)}
	}
	delete(t.state.fields, id)
	for key, value := range t.state.fieldValues {
		if value.FieldID == id {
			delete(t.state.fieldValues, key)
		}
	}
	t.recordChange(Change{Entity: domain.EntityCustomField, Action: domain.ActionDelete, Before: current})
	return nil
}

// entityExists resolves an opaque entity id against the owner kind's
// collection.
func (t *tx) entityExists(kind domain.EntityType, entityID string) bool {
	switch kind {
	case domain.EntityFactory:
		_, ok := t.state.factories[domain.FactoryID(entityID)]
		return ok
	case domain.EntityProject:
		_, ok := t.state.projects[domain.ProjectID(entityID)]
		return ok
	case domain.EntityTask:
		_, ok := t.state.tasks[domain.TaskID(entityID)]
		return ok
	case domain.EntitySchedule:
		_, ok := t.state.schedules[domain.ProjectID(entityID)]
		return ok
	case domain.EntityCategory:
		_, ok := t.state.categories[domain.CategoryID(entityID)]
		return ok
	case domain.EntityCustomer:
		_, ok := t.state.customers[domain.CustomerID(entityID)]
		return ok
	case domain.EntityUser:
		_, ok := t.state.users[domain.UserID(entityID)]
		return ok
	default:
		return false
	}
}

// SetCustomFieldValue upserts the (entity, field) payload after checking both
// the field definition and the owning entity exist.
func (t *tx) SetCustomFieldValue(entityID string, fieldID domain.CustomFieldID, value string) (CustomFieldValue, error) {
	def, ok := t.state.fields[fieldID]
	if !ok {
		return CustomFieldValue{}, domain.NotFoundError{Entity: domain.EntityCustomField, ID: string(fieldID)}
	}
	if !t.entityExists(def.OwnerKind, entityID) {
		return CustomFieldValue{}, domain.NotFoundError{Entity: def.OwnerKind, ID: entityID}
	}
	key := fieldValueKey(entityID, fieldID)
	row, exists := t.state.fieldValues[key]
	action := domain.ActionUpdate
	if !exists {
		row = CustomFieldValue{EntityID: entityID, FieldID: fieldID}
		row.CreatedAt = t.now
		action = domain.ActionCreate
	}
	row.Value = value
	row.UpdatedAt = t.now
	t.state.fieldValues[key] = row
	t.recordChange(Change{Entity: domain.EntityCustomFieldValue, Action: action, After: row})
	return row, nil
}

func (t *tx) deleteFieldValuesFor(entityID string) {
	for key, value := range t.state.fieldValues {
		if value.EntityID == entityID {
			delete(t.state.fieldValues, key)
		}
	}
}

// --- transaction reads ---

// FindFactory retrieves a factory from the transaction state.
func (t *tx) FindFactory(id domain.FactoryID) (Factory, bool) {
	f, ok := t.state.factories[id]
	if !ok {
		return Factory{}, false
	}
	return cloneFactory(f), true
}

// FindProject retrieves a project from the transaction state.
func (t *tx) FindProject(id domain.ProjectID) (Project, bool) {
	p, ok := t.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindTask retrieves a task from the transaction state.
func (t *tx) FindTask(id domain.TaskID) (Task, bool) {
	task, ok := t.state.tasks[id]
	if !ok {
		return Task{}, false
	}
	return cloneTask(task), true
}

// FindSchedule retrieves a schedule from the transaction state.
func (t *tx) FindSchedule(id domain.ProjectID) (Schedule, bool) {
	s, ok := t.state.schedules[id]
	if !ok {
		return Schedule{}, false
	}
	return cloneSchedule(s), true
}

// FindCategory retrieves a category from the transaction state.
func (t *tx) FindCategory(id domain.CategoryID) (ProductCategory, bool) {
	c, ok := t.state.categories[id]
	if !ok {
		return ProductCategory{}, false
	}
	return cloneCategory(c), true
}

// ListProjects returns all projects within the transaction, ordered by id.
func (t *tx) ListProjects() []Project {
	return listProjects(&t.state)
}

// ListTasks returns all tasks within the transaction, ordered by id.
func (t *tx) ListTasks() []Task {
	return listTasks(&t.state)
}

// ListCategories returns all categories ordered by parent then position.
func (t *tx) ListCategories() []ProductCategory {
	return listCategories(&t.state)
}

// ListCustomFields returns the definitions for one owner kind, ordered by id.
func (t *tx) ListCustomFields(owner domain.EntityType) []CustomFieldDefinition {
	out := make([]CustomFieldDefinition, 0)
	for _, def := range t.state.fields {
		if def.OwnerKind == owner {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- rule view ---

// ListFactories returns all factories within the snapshot.
func (v view) ListFactories() []Factory {
	out := make([]Factory, 0, len(v.state.factories))
	for _, f := range v.state.factories {
		out = append(out, cloneFactory(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListProjects returns all projects within the snapshot.
func (v view) ListProjects() []Project {
	return listProjects(v.state)
}

// ListTasks returns all tasks within the snapshot.
func (v view) ListTasks() []Task {
	return listTasks(v.state)
}

// ListSchedules returns all schedules within the snapshot.
func (v view) ListSchedules() []Schedule {
	out := make([]Schedule, 0, len(v.state.schedules))
	for _, s := range v.state.schedules {
		out = append(out, cloneSchedule(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListCategories returns all categories within the snapshot.
func (v view) ListCategories() []ProductCategory {
	return listCategories(v.state)
}

// FindFactory retrieves a factory by id from the snapshot.
func (v view) FindFactory(id domain.FactoryID) (Factory, bool) {
	f, ok := v.state.factories[id]
	if !ok {
		return Factory{}, false
	}
	return cloneFactory(f), true
}

// FindProject retrieves a project by id from the snapshot.
func (v view) FindProject(id domain.ProjectID) (Project, bool) {
	p, ok := v.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// FindTask retrieves a task by id from the snapshot.
func (v view) FindTask(id domain.TaskID) (Task, bool) {
	t, ok := v.state.tasks[id]
	if !ok {
		return Task{}, false
	}
	return cloneTask(t), true
}

// FindSchedule retrieves a schedule by id from the snapshot.
func (v view) FindSchedule(id domain.ProjectID) (Schedule, bool) {
	s, ok := v.state.schedules[id]
	if !ok {
		return Schedule{}, false
	}
	return cloneSchedule(s), true
}

// FindCategory retrieves a category by id from the snapshot.
func (v view) FindCategory(id domain.CategoryID) (ProductCategory, bool) {
	c, ok := v.state.categories[id]
	if !ok {
		return ProductCategory{}, false
	}
	return cloneCategory(c), true
}

func listProjects(state *memoryState) []Project {
	out := make([]Project, 0, len(state.projects))
	for _, p := range state.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listTasks(state *memoryState) []Task {
	out := make([]Task, 0, len(state.tasks))
	for _, t := range state.tasks {
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func listCategories(state *memoryState) []ProductCategory {
	out := make([]ProductCategory, 0, len(state.categories))
	for _, c := range state.categories {
		out = append(out, cloneCategory(c))
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := "", ""
		if out[i].ParentID != nil {
			pi = string(*out[i].ParentID)
		}
		if out[j].ParentID != nil {
			pj = string(*out[j].ParentID)
		}
		if pi != pj {
			return pi < pj
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// --- store reads ---

// GetFactory retrieves a factory by id.
func (s *Store) GetFactory(id domain.FactoryID) (Factory, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.factories[id]
	if !ok {
		return Factory{}, false
	}
	return cloneFactory(f), true
}

// ListFactories returns all factories ordered by id.
func (s *Store) ListFactories() []Factory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Factory, 0, len(s.state.factories))
	for _, f := range s.state.factories {
		out = append(out, cloneFactory(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(id domain.ProjectID) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

// ListProjects returns all projects ordered by id.
func (s *Store) ListProjects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listProjects(&s.state)
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(id domain.TaskID) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.tasks[id]
	if !ok {
		return Task{}, false
	}
	return cloneTask(t), true
}

// ListTasks returns all tasks ordered by id.
func (s *Store) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTasks(&s.state)
}

// GetSchedule retrieves a schedule by its project id.
func (s *Store) GetSchedule(id domain.ProjectID) (Schedule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sched, ok := s.state.schedules[id]
	if !ok {
		return Schedule{}, false
	}
	return cloneSchedule(sched), true
}

// ListSchedules returns all schedules ordered by id.
func (s *Store) ListSchedules() []Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Schedule, 0, len(s.state.schedules))
	for _, sched := range s.state.schedules {
		out = append(out, cloneSchedule(sched))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListCategories returns all categories ordered by parent then position.
func (s *Store) ListCategories() []ProductCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listCategories(&s.state)
}

// ListCustomers returns all customers ordered by id.
func (s *Store) ListCustomers() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Customer, 0, len(s.state.customers))
	for _, c := range s.state.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.state.users))
	for _, u := range s.state.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListCustomFields returns all field definitions ordered by id.
func (s *Store) ListCustomFields() []CustomFieldDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CustomFieldDefinition, 0, len(s.state.fields))
	for _, def := range s.state.fields {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListCustomFieldValues returns all field values ordered by entity then field.
func (s *Store) ListCustomFieldValues() []CustomFieldValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CustomFieldValue, 0, len(s.state.fieldValues))
	for _, v := range s.state.fieldValues {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityID != out[j].EntityID {
			return out[i].EntityID < out[j].EntityID
		}
		return out[i].FieldID < out[j].FieldID
	})
	return out
}

// GetCustomFieldValue retrieves one (entity, field) payload.
func (s *Store) GetCustomFieldValue(entityID string, fieldID domain.CustomFieldID) (CustomFieldValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.fieldValues[fieldValueKey(entityID, fieldID)]
	return v, ok
}

// Snapshot is the serialisable representation of the in-memory state.
type Snapshot struct {
	Factories   []Factory               `json:"factories"`
	Projects    []Project               `json:"projects"`
	Tasks       []Task                  `json:"tasks"`
	Schedules   []Schedule              `json:"schedules"`
	Categories  []ProductCategory       `json:"categories"`
	Customers   []Customer              `json:"customers"`
	Users       []User                  `json:"users"`
	Fields      []CustomFieldDefinition `json:"fields"`
	FieldValues []CustomFieldValue      `json:"field_values"`
}

// ExportState captures the full store state for snapshot persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Factories:  make([]Factory, 0, len(s.state.factories)),
		Projects:   listProjects(&s.state),
		Tasks:      listTasks(&s.state),
		Schedules:  make([]Schedule, 0, len(s.state.schedules)),
		Categories: listCategories(&s.state),
	}
	for _, f := range s.state.factories {
		snap.Factories = append(snap.Factories, cloneFactory(f))
	}
	sort.Slice(snap.Factories, func(i, j int) bool { return snap.Factories[i].ID < snap.Factories[j].ID })
	for _, sched := range s.state.schedules {
		snap.Schedules = append(snap.Schedules, cloneSchedule(sched))
	}
	sort.Slice(snap.Schedules, func(i, j int) bool { return snap.Schedules[i].ID < snap.Schedules[j].ID })
	for _, c := range s.state.customers {
		snap.Customers = append(snap.Customers, c)
	}
	sort.Slice(snap.Customers, func(i, j int) bool { return snap.Customers[i].ID < snap.Customers[j].ID })
	for _, u := range s.state.users {
		snap.Users = append(snap.Users, u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	for _, def := range s.state.fields {
		snap.Fields = append(snap.Fields, def)
	}
	sort.Slice(snap.Fields, func(i, j int) bool { return snap.Fields[i].ID < snap.Fields[j].ID })
	for _, v := range s.state.fieldValues {
		snap.FieldValues = append(snap.FieldValues, v)
	}
	sort.Slice(snap.FieldValues, func(i, j int) bool {
		if snap.FieldValues[i].EntityID != snap.FieldValues[j].EntityID {
			return snap.FieldValues[i].EntityID < snap.FieldValues[j].EntityID
		}
		return snap.FieldValues[i].FieldID < snap.FieldValues[j].FieldID
	})
	return snap
}

// ImportState replaces the store state with the snapshot contents. Used when
// hydrating from a durable backend; invariants are assumed to hold in the
// persisted data.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for _, f := range snap.Factories {
		state.factories[f.ID] = cloneFactory(f)
	}
	for _, p := range snap.Projects {
		state.projects[p.ID] = cloneProject(p)
	}
	for _, t := range snap.Tasks {
		state.tasks[t.ID] = cloneTask(t)
	}
	for _, sched := range snap.Schedules {
		state.schedules[sched.ID] = cloneSchedule(sched)
	}
	for _, c := range snap.Categories {
		state.categories[c.ID] = cloneCategory(c)
	}
	for _, c := range snap.Customers {
		state.customers[c.ID] = c
	}
	for _, u := range snap.Users {
		state.users[u.ID] = u
	}
	for _, def := range snap.Fields {
		state.fields[def.ID] = def
	}
	for _, v := range snap.FieldValues {
		state.fieldValues[fieldValueKey(v.EntityID, v.FieldID)] = v
	}
	s.state = state
}

// Empty reports whether the store holds no records at all.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state.factories) == 0 && len(s.state.projects) == 0 &&
		len(s.state.tasks) == 0 && len(s.state.schedules) == 0 &&
		len(s.state.categories) == 0 && len(s.state.customers) == 0 &&
		len(s.state.users) == 0 && len(s.state.fields) == 0 &&
		len(s.state.fieldValues) == 0
}
