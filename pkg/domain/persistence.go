package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	CreateFactory(Factory) (Factory, error)
	UpdateFactory(id FactoryID, mutator func(*Factory) error) (Factory, error)
	DeleteFactory(id FactoryID) error
	CreateProject(Project) (Project, error)
	UpdateProject(id ProjectID, mutator func(*Project) error) (Project, error)
	DeleteProject(id ProjectID) error
	CreateTask(Task) (Task, error)
	UpdateTask(id TaskID, mutator func(*Task) error) (Task, error)
	DeleteTask(id TaskID) error
	UpdateSchedule(id ProjectID, mutator func(*Schedule) error) (Schedule, error)
	CreateCategory(ProductCategory) (ProductCategory, error)
	UpdateCategory(id CategoryID, mutator func(*ProductCategory) error) (ProductCategory, error)
	DeleteCategory(id CategoryID) error
	CreateCustomer(Customer) (Customer, error)
	UpdateCustomer(id CustomerID, mutator func(*Customer) error) (Customer, error)
	DeleteCustomer(id CustomerID) error
	CreateUser(User) (User, error)
	UpdateUser(id UserID, mutator func(*User) error) (User, error)
	DeleteUser(id UserID) error
	CreateCustomField(CustomFieldDefinition) (CustomFieldDefinition, error)
	DeleteCustomField(id CustomFieldID) error
	SetCustomFieldValue(entityID string, fieldID CustomFieldID, value string) (CustomFieldValue, error)
	FindFactory(id FactoryID) (Factory, bool)
	FindProject(id ProjectID) (Project, bool)
	FindTask(id TaskID) (Task, bool)
	FindSchedule(id ProjectID) (Schedule, bool)
	FindCategory(id CategoryID) (ProductCategory, bool)
	ListProjects() []Project
	ListTasks() []Task
	ListCategories() []ProductCategory
	ListCustomFields(owner EntityType) []CustomFieldDefinition
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView = RuleView

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetFactory(id FactoryID) (Factory, bool)
	ListFactories() []Factory
	GetProject(id ProjectID) (Project, bool)
	ListProjects() []Project
	GetTask(id TaskID) (Task, bool)
	ListTasks() []Task
	GetSchedule(id ProjectID) (Schedule, bool)
	ListSchedules() []Schedule
	ListCategories() []ProductCategory
	ListCustomers() []Customer
	ListUsers() []User
	ListCustomFields() []CustomFieldDefinition
	ListCustomFieldValues() []CustomFieldValue
	GetCustomFieldValue(entityID string, fieldID CustomFieldID) (CustomFieldValue, bool)
	Empty() bool
}
