package core

import (
	"context"
	"time"

	"plancore/pkg/domain"
)

// Seed fixture identifiers. Stable so repeated boots against the same
// database recognise their own data.
const (
	SeedFactoryManufacturing = domain.FactoryID("seed-factory-manufacturing")
	SeedFactoryContainer     = domain.FactoryID("seed-factory-container")
	SeedFactoryPackaging     = domain.FactoryID("seed-factory-packaging")
	SeedCustomerAurora       = domain.CustomerID("seed-customer-aurora")
	SeedUserManager          = domain.UserID("seed-user-manager")
	SeedUserPlanner          = domain.UserID("seed-user-planner")
	SeedProjectLaunch        = domain.ProjectID("seed-project-launch")
	SeedTaskManufacture      = domain.TaskID("seed-task-manufacture")
	SeedCategoryRoot         = domain.CategoryID("seed-category-skincare")
	SeedCategoryChild        = domain.CategoryID("seed-category-lotion")
)

// EnsureSeed populates an empty store with a minimal working data set: three
// factories covering each role, a customer, two users, one project with its
// schedule and a first manufacturing task, and a small category tree. A store
// that already holds data is left untouched.
func EnsureSeed(svc *Service) error {
	if !svc.Store().Empty() {
		return nil
	}
	ctx := context.Background()
	start := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	_, err := svc.Store().RunInTransaction(ctx, func(tx Transaction) error {
		factories := []Factory{
			{ID: SeedFactoryManufacturing, Name: "Hanbit Manufacturing", Type: domain.FactoryManufacturing, ManagerName: "Kim Soyeon", Capacity: 120, Active: true},
			{ID: SeedFactoryContainer, Name: "Daehan Containers", Type: domain.FactoryContainer, ManagerName: "Park Jinho", Capacity: 80, Active: true},
			{ID: SeedFactoryPackaging, Name: "Seoul Packaging Works", Type: domain.FactoryPackaging, ManagerName: "Lee Hana", Capacity: 60, Active: true},
		}
		for _, f := range factories {
			if _, err := tx.CreateFactory(f); err != nil {
				return err
			}
		}
		if _, err := tx.CreateCustomer(Customer{ID: SeedCustomerAurora, Name: "Aurora Cosmetics", Contact: "orders@aurora.example", Active: true}); err != nil {
			return err
		}
		users := []User{
			{ID: SeedUserManager, Name: "Choi Minji", Email: "minji@plancore.example", Role: "manager", Active: true},
			{ID: SeedUserPlanner, Name: "Jung Woo", Email: "woo@plancore.example", Role: "planner", Active: true},
		}
		for _, u := range users {
			if _, err := tx.CreateUser(u); err != nil {
				return err
			}
		}
		manufacturer := SeedFactoryManufacturing
		project := Project{
			ID:             SeedProjectLaunch,
			Type:           domain.ProjectMaster,
			Name:           "Aurora Spring Launch",
			CustomerID:     SeedCustomerAurora,
			ManagerID:      SeedUserManager,
			ProductType:    "lotion",
			Status:         domain.ProjectStatusActive,
			Priority:       domain.PriorityHigh,
			StartDate:      start,
			EndDate:        start.AddDate(0, 3, 0),
			ManufacturerID: &manufacturer,
			QuoteAmount:    48_000_000,
		}
		if _, err := tx.CreateProject(project); err != nil {
			return err
		}
		if _, err := tx.CreateTask(Task{
			ID:         SeedTaskManufacture,
			ScheduleID: SeedProjectLaunch,
			FactoryID:  SeedFactoryManufacturing,
			TaskType:   "manufacturing",
			Title:      "First production run",
			StartDate:  start.AddDate(0, 0, 7),
			EndDate:    start.AddDate(0, 0, 21),
			Status:     domain.TaskStatusPending,
		}); err != nil {
			return err
		}
		root := ProductCategory{ID: SeedCategoryRoot, Name: "Skincare"}
		if _, err := tx.CreateCategory(root); err != nil {
			return err
		}
		parent := SeedCategoryRoot
		if _, err := tx.CreateCategory(ProductCategory{ID: SeedCategoryChild, Name: "Lotion", ParentID: &parent}); err != nil {
			return err
		}
		return nil
	})
	return err
}
