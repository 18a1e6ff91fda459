// Package postgres provides a Postgres-backed persistent store mirroring the
// in-memory semantics, snapshotting the full state into a JSONB table.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"plancore/internal/infra/persistence/memory"
	"plancore/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/plancore?sslmode=disable"
)

// Store persists state to Postgres while reusing the in-memory implementation
// for transactions.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex

	lastPersistErr error
	persistHook    func(context.Context, error)
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to a localhost default). It ensures the snapshot table exists and hydrates
// the in-memory store from any existing snapshot.
func NewStore(dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		return nil, err
	}
	mem := memory.NewStore(engine)
	mem.ImportState(snapshot)
	return &Store{Store: mem, db: db}, nil
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

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
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

// RunInTransaction applies fn in-memory, then snapshots to Postgres. Snapshot
// failures do not roll the commit back; see LastPersistError.
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

func (s *Store) persist(ctx context.Context) error {
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, b := range snapshotBuckets(&snapshot) {
		data, err := json.Marshal(b.target)
		if err != nil {
			return fmt.Errorf("encode %s: %w", b.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, b.name, data); err != nil {
			return fmt.Errorf("upsert %s: %w", b.name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	committed = true
	return nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
