package core

import (
	"fmt"
	"os"

	"plancore/internal/infra/persistence/memory"
	"plancore/internal/infra/persistence/postgres"
	"plancore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	PLANCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	PLANCORE_SQLITE_PATH: path to sqlite file (default ./plancore.db)
//	PLANCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("PLANCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("PLANCORE_SQLITE_PATH"), engine)
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("PLANCORE_POSTGRES_DSN"), engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// BootResult reports how the store came up.
type BootResult struct {
	Service *Service
	Driver  StorageDriver
	// Fallback is non-nil when the configured backend failed to open (bad
	// DSN, corrupted snapshot) and a fresh in-memory store was substituted.
	Fallback error
}

// Boot opens the configured persistent store and seeds it when empty. A
// backend that cannot be opened is replaced with a seeded in-memory store so
// the process still starts; the open error is surfaced via BootResult.
func Boot(engine *RulesEngine) (BootResult, error) {
	driver := StorageDriver(os.Getenv("PLANCORE_STORAGE_DRIVER"))
	if driver == "" {
		driver = StorageSQLite
	}
	result := BootResult{Driver: driver}
	store, err := OpenPersistentStore(engine)
	if err != nil {
		result.Fallback = err
		result.Driver = StorageMemory
		store = memory.NewStore(engine)
	}
	result.Service = NewService(store)
	if err := EnsureSeed(result.Service); err != nil {
		return result, err
	}
	return result, nil
}
