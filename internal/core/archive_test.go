package core

import (
	"context"
	"testing"
	"time"

	"plancore/internal/blob"
	"plancore/internal/infra/persistence/memory"
	"plancore/pkg/domain"
)

func TestSnapshotArchiverRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine())
	if err := EnsureSeed(svc); err != nil {
		t.Fatalf("seed: %v", err)
	}
	source := svc.Store().(*memory.Store)

	archiver := NewSnapshotArchiver(blob.NewMemory())
	info, err := archiver.Export(ctx, source)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if info.Size == 0 {
		t.Fatalf("expected non-empty snapshot blob")
	}

	infos, err := archiver.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != info.Key {
		t.Fatalf("unexpected archive listing: %+v", infos)
	}

	restored := memory.NewStore(nil)
	if err := archiver.Restore(ctx, info.Key, restored); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored.ListFactories()) != len(source.ListFactories()) {
		t.Fatalf("factories lost in restore")
	}
	if _, ok := restored.GetProject(SeedProjectLaunch); !ok {
		t.Fatalf("seed project missing after restore")
	}
}

func TestSnapshotArchiverOrdersExports(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(nil)
	archiver := NewSnapshotArchiver(blob.NewMemory())
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		archiver.nowFn = func() time.Time { return stamp }
		if _, err := archiver.Export(ctx, store); err != nil {
			t.Fatalf("export %d: %v", i, err)
		}
	}
	infos, err := archiver.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i].Key <= infos[i-1].Key {
			t.Fatalf("snapshots not in chronological key order: %v", infos)
		}
	}
}

func TestSnapshotArchiverRestoreMissingKey(t *testing.T) {
	archiver := NewSnapshotArchiver(blob.NewMemory())
	err := archiver.Restore(context.Background(), "snapshots/nope.json", memory.NewStore(domain.NewRulesEngine()))
	if err == nil {
		t.Fatalf("expected error for unknown snapshot key")
	}
}
