package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"plancore/internal/blob"
	"plancore/internal/infra/persistence/memory"
)

// StateExporter is satisfied by stores that can dump and restore their whole
// state as a snapshot. The in-memory store and the durable stores embedding
// it all qualify.
type StateExporter interface {
	ExportState() memory.Snapshot
	ImportState(memory.Snapshot)
}

// Persister is optionally satisfied by durable stores that can force a
// snapshot write after a restore.
type Persister interface {
	Persist(ctx context.Context) error
}

const archivePrefix = "snapshots/"

// SnapshotArchiver writes full-state snapshots to a blob store and restores
// them back. Keys are timestamped under snapshots/ so List returns them in
// chronological order.
type SnapshotArchiver struct {
	blobs blob.Store
	nowFn func() time.Time
}

// NewSnapshotArchiver builds an archiver on top of the given blob store.
func NewSnapshotArchiver(store blob.Store) *SnapshotArchiver {
	return &SnapshotArchiver{blobs: store, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Export serialises the store state and writes it as a new blob, returning
// the stored object info.
func (a *SnapshotArchiver) Export(ctx context.Context, store StateExporter) (blob.Info, error) {
	snapshot := store.ExportState()
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode snapshot: %w", err)
	}
	key := fmt.Sprintf("%s%s.json", archivePrefix, a.nowFn().Format("20060102T150405.000000000Z"))
	info, err := a.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store snapshot: %w", err)
	}
	return info, nil
}

// List returns the archived snapshots, oldest first.
func (a *SnapshotArchiver) List(ctx context.Context) ([]blob.Info, error) {
	infos, err := a.blobs.List(ctx, archivePrefix)
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Restore loads the snapshot stored at key into the store, replacing its
// current state. When the store is durable the restored state is persisted
// immediately.
func (a *SnapshotArchiver) Restore(ctx context.Context, key string, store StateExporter) error {
	_, rc, err := a.blobs.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}
	defer func() { _ = rc.Close() }()
	payload, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot memory.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	store.ImportState(snapshot)
	if p, ok := store.(Persister); ok {
		if err := p.Persist(ctx); err != nil {
			return fmt.Errorf("persist restored state: %w", err)
		}
	}
	return nil
}
