package core

import (
	"context"
	"errors"
	"sort"
	"time"

	"plancore/internal/infra/persistence/memory"
	"plancore/pkg/domain"
	"plancore/pkg/tree"
)

// Service exposes higher-level transactional CRUD operations for the core
// schema. Every operation runs inside one store transaction, so multi-entity
// mutations (hierarchy moves, cascades) are atomic: readers never observe a
// half-applied state.
type Service struct {
	store   PersistentStore
	metrics MetricsRecorder
	tracer  Tracer
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithMetrics wires an operation metrics recorder.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer wires an operation tracer.
func WithTracer(tr Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tr }
}

// persistErrorNotifier is satisfied by durable stores that swallow snapshot
// write failures and hand them to a hook instead.
type persistErrorNotifier interface {
	SetPersistErrorHook(func(context.Context, error))
}

// NewService constructs a service backed by the supplied store. Durable
// stores report their swallowed snapshot-write failures through the
// service's metrics and tracer.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if n, ok := store.(persistErrorNotifier); ok {
		n.SetPersistErrorHook(s.reportPersistError)
	}
	return s
}

// reportPersistError surfaces a swallowed snapshot-write failure. The
// in-memory commit already succeeded, so this only records the outcome.
func (s *Service) reportPersistError(ctx context.Context, err error) {
	if s.tracer != nil {
		_, span := s.tracer.Start(ctx, "persist_snapshot")
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, "persist_snapshot", false, 0)
	}
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) instrument(ctx context.Context, operation string) (context.Context, func(error)) {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	start := time.Now()
	return ctx, func(err error) {
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, operation, err == nil, time.Since(start))
		}
	}
}

// --- factories ---

// CreateFactory persists a new factory.
func (s *Service) CreateFactory(ctx context.Context, factory Factory) (Factory, Result, error) {
	ctx, done := s.instrument(ctx, "create_factory")
	var created Factory
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateFactory(factory)
		return err
	})
	done(err)
	return created, res, err
}

// UpdateFactory mutates a factory using the provided mutator.
func (s *Service) UpdateFactory(ctx context.Context, id domain.FactoryID, mutator func(*Factory) error) (Factory, Result, error) {
	ctx, done := s.instrument(ctx, "update_factory")
	var updated Factory
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateFactory(id, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// DeleteFactory removes a factory record. The delete is rejected with a
// ReferentialError while tasks or projects still reference the factory.
func (s *Service) DeleteFactory(ctx context.Context, id domain.FactoryID) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_factory")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteFactory(id)
	})
	done(err)
	return res, err
}

// --- projects ---

// CreateProject persists a new project together with its 1:1 schedule.
func (s *Service) CreateProject(ctx context.Context, project Project) (Project, Result, error) {
	ctx, done := s.instrument(ctx, "create_project")
	var created Project
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateProject(project)
		return err
	})
	done(err)
	return created, res, err
}

// UpdateProject mutates a project using the provided mutator.
func (s *Service) UpdateProject(ctx context.Context, id domain.ProjectID, mutator func(*Project) error) (Project, Result, error) {
	ctx, done := s.instrument(ctx, "update_project")
	var updated Project
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateProject(id, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// DeleteProject removes a project, cascading its schedule and tasks.
func (s *Service) DeleteProject(ctx context.Context, id domain.ProjectID) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_project")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteProject(id)
	})
	done(err)
	return res, err
}

// --- tasks ---

// CreateTask persists a new task after the scheduling rules accept it.
func (s *Service) CreateTask(ctx context.Context, task Task) (Task, Result, error) {
	ctx, done := s.instrument(ctx, "create_task")
	var created Task
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateTask(task)
		return err
	})
	done(err)
	return created, res, err
}

// UpdateTask mutates a task using the provided mutator.
func (s *Service) UpdateTask(ctx context.Context, id domain.TaskID, mutator func(*Task) error) (Task, Result, error) {
	ctx, done := s.instrument(ctx, "update_task")
	var updated Task
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateTask(id, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// MoveTask shifts a task to a new date window, re-running the scheduling
// rules within the same transaction.
func (s *Service) MoveTask(ctx context.Context, id domain.TaskID, start, end time.Time) (Task, Result, error) {
	return s.UpdateTask(ctx, id, func(t *Task) error {
		t.StartDate = start
		t.EndDate = end
		return nil
	})
}

// DeleteTask removes a task record.
func (s *Service) DeleteTask(ctx context.Context, id domain.TaskID) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_task")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteTask(id)
	})
	done(err)
	return res, err
}

// ValidateTask checks a candidate task against the current store state
// without mutating anything: structural window checks plus overlap against
// the live tasks on the same factory. UI callers run this before committing a
// create or move so every violation can be surfaced at once.
func (s *Service) ValidateTask(ctx context.Context, candidate Task) (Result, error) {
	ctx, done := s.instrument(ctx, "validate_task")
	var res Result
	err := s.store.View(ctx, func(v TransactionView) error {
		var window *DateRange
		if project, ok := v.FindProject(candidate.ScheduleID); ok {
			w := project.Window()
			window = &w
		}
		res = domain.ValidateTask(candidate, window, v.ListTasks())
		return nil
	})
	done(err)
	return res, err
}

// --- schedules ---

// UpdateSchedule mutates a schedule's participants. The window stays mirrored
// from the owning project.
func (s *Service) UpdateSchedule(ctx context.Context, id domain.ProjectID, mutator func(*Schedule) error) (Schedule, Result, error) {
	ctx, done := s.instrument(ctx, "update_schedule")
	var updated Schedule
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateSchedule(id, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// ScheduleTasks returns the derived task view of one schedule, ordered by
// start date.
func (s *Service) ScheduleTasks(ctx context.Context, id domain.ProjectID) ([]Task, error) {
	var out []Task
	err := s.store.View(ctx, func(v TransactionView) error {
		if _, ok := v.FindSchedule(id); !ok {
			return domain.NotFoundError{Entity: EntitySchedule, ID: string(id)}
		}
		for _, t := range v.ListTasks() {
			if t.ScheduleID == id {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

// --- customers and users ---

// CreateCustomer persists a new customer.
func (s *Service) CreateCustomer(ctx context.Context, customer Customer) (Customer, Result, error) {
	ctx, done := s.instrument(ctx, "create_customer")
	var created Customer
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateCustomer(customer)
		return err
	})
	done(err)
	return created, res, err
}

// UpdateCustomer mutates a customer.
func (s *Service) UpdateCustomer(ctx context.Context, id domain.CustomerID, mutator func(*Customer) error) (Customer, Result, error) {
	ctx, done := s.instrument(ctx, "update_customer")
	var updated Customer
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCustomer(id, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// DeleteCustomer removes a customer record.
func (s *Service) DeleteCustomer(ctx context.Context, id domain.CustomerID) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_customer")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteCustomer(id)
	})
	done(err)
	return res, err
}

// CreateUser persists a new user.
func (s *Service) CreateUser(ctx context.Context, user User) (User, Result, error) {
	ctx, done := s.instrument(ctx, "create_user")
	var created User
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateUser(user)
		return err
	})
	done(err)
	return created, res, err
}

// UpdateUser mutates a user.
func (s *Service) UpdateUser(ctx context.Context, id domain.UserID, mutator func(*User) error) (User, Result, error) {
	ctx, done := s.instrument(ctx, "update_user")
	var updated User
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateUser(id, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// DeleteUser removes a user record.
func (s *Service) DeleteUser(ctx context.Context, id domain.UserID) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_user")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteUser(id)
	})
	done(err)
	return res, err
}

// --- categories ---

// CreateCategory persists a new product category at the end of its sibling
// list.
func (s *Service) CreateCategory(ctx context.Context, category ProductCategory) (ProductCategory, Result, error) {
	ctx, done := s.instrument(ctx, "create_category")
	var created ProductCategory
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateCategory(category)
		return err
	})
	done(err)
	return created, res, err
}

// UpdateCategory mutates a category.
func (s *Service) UpdateCategory(ctx context.Context, id domain.CategoryID, mutator func(*ProductCategory) error) (ProductCategory, Result, error) {
	ctx, done := s.instrument(ctx, "update_category")
	var updated ProductCategory
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateCategory(id, mutator)
		return err
	})
	done(err)
	return updated, res, err
}

// DeleteCategory removes a category record.
func (s *Service) DeleteCategory(ctx context.Context, id domain.CategoryID) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_category")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteCategory(id)
	})
	done(err)
	return res, err
}

// errMoveRejected aborts a move transaction without applying anything; the
// caller maps it to the rejected-drop outcome.
var errMoveRejected = errors.New("move rejected")

// CategoryForest assembles the category rows into their forest shape,
// children ordered by position.
func (s *Service) CategoryForest(ctx context.Context) ([]tree.Node[ProductCategory], error) {
	var rows []ProductCategory
	err := s.store.View(ctx, func(v TransactionView) error {
		rows = v.ListCategories()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildCategoryForest(rows), nil
}

func buildCategoryForest(rows []ProductCategory) []tree.Node[ProductCategory] {
	children := make(map[string][]ProductCategory)
	var roots []ProductCategory
	for _, row := range rows {
		if row.ParentID == nil {
			roots = append(roots, row)
			continue
		}
		key := string(*row.ParentID)
		children[key] = append(children[key], row)
	}
	var build func(rows []ProductCategory) []tree.Node[ProductCategory]
	build = func(rows []ProductCategory) []tree.Node[ProductCategory] {
		nodes := make([]tree.Node[ProductCategory], 0, len(rows))
		for _, row := range rows {
			nodes = append(nodes, tree.Node[ProductCategory]{
				ID:       string(row.ID),
				Value:    row,
				Children: build(children[string(row.ID)]),
			})
		}
		return nodes
	}
	return build(roots)
}

// MoveCategory reparents a category via the forest move algorithm. An invalid
// drop (unknown node, cycle, sibling position at the root) is a normal
// rejected outcome: moved=false with no error and no state change. targetID
// may be empty to promote the node to a root with tree.Inside.
func (s *Service) MoveCategory(ctx context.Context, draggedID, targetID domain.CategoryID, pos tree.Position) (bool, Result, error) {
	ctx, done := s.instrument(ctx, "move_category")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		forest := buildCategoryForest(tx.ListCategories())
		next, ok := tree.Move(forest, string(draggedID), string(targetID), pos)
		if !ok {
			return errMoveRejected
		}
		return applyCategoryForest(tx, next, nil)
	})
	if errors.Is(err, errMoveRejected) {
		done(nil)
		return false, Result{}, nil
	}
	done(err)
	return err == nil, res, err
}

// applyCategoryForest writes back every (parent, position) pair that the move
// changed, depth-first.
func applyCategoryForest(tx Transaction, nodes []tree.Node[ProductCategory], parent *domain.CategoryID) error {
	for i, node := range nodes {
		row := node.Value
		samePos := row.Position == i
		sameParent := (row.ParentID == nil && parent == nil) ||
			(row.ParentID != nil && parent != nil && *row.ParentID == *parent)
		if !samePos || !sameParent {
			wantParent := parent
			if _, err := tx.UpdateCategory(row.ID, func(c *ProductCategory) error {
				if wantParent == nil {
					c.ParentID = nil
				} else {
					p := *wantParent
					c.ParentID = &p
				}
				c.Position = i
				return nil
			}); err != nil {
				return err
			}
		}
		id := row.ID
		if err := applyCategoryForest(tx, node.Children, &id); err != nil {
			return err
		}
	}
	return nil
}

// ProjectForest assembles the master/sub hierarchy, children ordered by id.
func (s *Service) ProjectForest(ctx context.Context) ([]tree.Node[Project], error) {
	var rows []Project
	err := s.store.View(ctx, func(v TransactionView) error {
		rows = v.ListProjects()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buildProjectForest(rows), nil
}

func buildProjectForest(rows []Project) []tree.Node[Project] {
	children := make(map[string][]Project)
	var roots []Project
	for _, row := range rows {
		if row.ParentID == nil {
			roots = append(roots, row)
			continue
		}
		key := string(*row.ParentID)
		children[key] = append(children[key], row)
	}
	var build func(rows []Project) []tree.Node[Project]
	build = func(rows []Project) []tree.Node[Project] {
		nodes := make([]tree.Node[Project], 0, len(rows))
		for _, row := range rows {
			nodes = append(nodes, tree.Node[Project]{
				ID:       string(row.ID),
				Value:    row,
				Children: build(children[string(row.ID)]),
			})
		}
		return nodes
	}
	return build(roots)
}

// MoveProject reparents a project inside the master/sub hierarchy with the
// same cycle semantics as MoveCategory. Landing under a parent retypes the
// project sub; landing at the root retypes it master. The hierarchy rule
// still blocks moves that would leave a non-master parenting subs.
func (s *Service) MoveProject(ctx context.Context, draggedID, targetID domain.ProjectID, pos tree.Position) (bool, Result, error) {
	ctx, done := s.instrument(ctx, "move_project")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		forest := buildProjectForest(tx.ListProjects())
		next, ok := tree.Move(forest, string(draggedID), string(targetID), pos)
		if !ok {
			return errMoveRejected
		}
		parent := forestParentOf(next, string(draggedID))
		_, err := tx.UpdateProject(draggedID, func(p *Project) error {
			if parent == "" {
				p.ParentID = nil
				p.Type = domain.ProjectMaster
			} else {
				pid := domain.ProjectID(parent)
				p.ParentID = &pid
				p.Type = domain.ProjectSub
			}
			return nil
		})
		return err
	})
	if errors.Is(err, errMoveRejected) {
		done(nil)
		return false, Result{}, nil
	}
	done(err)
	return err == nil, res, err
}

func forestParentOf[T any](forest []tree.Node[T], id string) string {
	parent := ""
	tree.Walk(forest, func(node tree.Node[T], p *tree.Node[T], _ int) {
		if node.ID == id && p != nil {
			parent = p.ID
		}
	})
	return parent
}

// --- custom fields ---

// CreateCustomField declares a new sparse field for one owner kind.
func (s *Service) CreateCustomField(ctx context.Context, def CustomFieldDefinition) (CustomFieldDefinition, Result, error) {
	ctx, done := s.instrument(ctx, "create_custom_field")
	var created CustomFieldDefinition
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateCustomField(def)
		return err
	})
	done(err)
	return created, res, err
}

// DeleteCustomField removes a field definition and all of its values.
func (s *Service) DeleteCustomField(ctx context.Context, id domain.CustomFieldID) (Result, error) {
	ctx, done := s.instrument(ctx, "delete_custom_field")
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		return tx.DeleteCustomField(id)
	})
	done(err)
	return res, err
}

// SetCustomFieldValue upserts one (entity, field) payload.
func (s *Service) SetCustomFieldValue(ctx context.Context, entityID string, fieldID domain.CustomFieldID, value string) (CustomFieldValue, Result, error) {
	ctx, done := s.instrument(ctx, "set_custom_field_value")
	var row CustomFieldValue
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var err error
		row, err = tx.SetCustomFieldValue(entityID, fieldID, value)
		return err
	})
	done(err)
	return row, res, err
}

// CustomFieldValue returns the stored payload for one (entity, field) pair;
// ok is false when no value was ever set.
func (s *Service) CustomFieldValue(entityID string, fieldID domain.CustomFieldID) (string, bool) {
	row, ok := s.store.GetCustomFieldValue(entityID, fieldID)
	if !ok {
		return "", false
	}
	return row.Value, true
}

// ListCustomFields returns the definitions declared for one owner kind.
func (s *Service) ListCustomFields(owner EntityType) []CustomFieldDefinition {
	all := s.store.ListCustomFields()
	out := make([]CustomFieldDefinition, 0, len(all))
	for _, def := range all {
		if def.OwnerKind == owner {
			out = append(out, def)
		}
	}
	return out
}
