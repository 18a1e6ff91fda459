// Package sqlite provides a SQLite-backed persistent store. Transactions run
// against the embedded in-memory store; the full state is snapshotted to a
// single table after every successful commit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"plancore/internal/infra/persistence/memory"
	"plancore/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string

	lastPersistErr error
	persistHook    func(context.Context, error)
}

// NewStore opens (or creates) the database at path and hydrates the embedded
// in-memory store from any existing snapshot.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "plancore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	snapshot, err := loadSnapshot(db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db, path: path}, nil
}

func snapshotBuckets(snapshot *memory.Snapshot) []struct {
	name   string
	target any
} {
	return []struct {
		name   string
		target any
	}{
		{"factories", &snapshot.Factories},
		{"projects", &snapshot.Projects},
		{"tasks", &snapshot.Tasks},
		{"schedules", &snapshot.Schedules},
		{"categories", &snapshot.Categories},
		{"customers", &snapshot.Customers},
		{"users", &snapshot.Users},
		{"fields", &snapshot.Fields},
		{"field_values", &snapshot.FieldValues},
	}
}

func loadSnapshot(db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	targets := map[string]any{}
	for _, b := range snapshotBuckets(&snapshot) {
		targets[b.name] = b.target
	}
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		if target, ok := targets[bucket]; ok {
			if err := json.Unmarshal(payload, target); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate state: %w", err)
	}
	return snapshot, nil
}

// RunInTransaction applies fn in-memory, then snapshots to SQLite. A failed
// snapshot does not roll the commit back: the in-memory state stays
// authoritative and the error is retained for LastPersistError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	s.mu.Lock()
	s.lastPersistErr = s.persist(ctx)
	persistErr, hook := s.lastPersistErr, s.persistHook
	s.mu.Unlock()
	if persistErr != nil && hook != nil {
		hook(ctx, persistErr)
	}
	return res, nil
}

// SetPersistErrorHook registers a callback invoked whenever a post-commit
// snapshot write fails. The failure is still retrievable via
// LastPersistError.
func (s *Store) SetPersistErrorHook(fn func(context.Context, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistHook = fn
}

// Persist forces a full snapshot write, returning the write error directly.
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPersistErr = s.persist(ctx)
	return s.lastPersistErr
}

// LastPersistError reports the outcome of the most recent snapshot write.
func (s *Store) LastPersistError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPersistErr
}

func (s *Store) persist(ctx context.Context) (retErr error) {
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, b := range snapshotBuckets(&snapshot) {
		data, err := json.Marshal(b.target)
		if err != nil {
			return fmt.Errorf("encode %s: %w", b.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, b.name, data); err != nil {
			return fmt.Errorf("upsert %s: %w", b.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
