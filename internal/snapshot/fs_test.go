package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFSSnapshotManagerGetLatestEmptyReturnsZeroValue(t *testing.T) {
	m, err := NewFSSnapshotManager(t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	got, err := m.GetLatest(context.Background())
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got != (Snapshot{}) {
		t.Errorf("got %+v, want zero value", got)
	}
}

func TestFSSnapshotManagerSetLatestRepointsAndRemovesPrevious(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	m, err := NewFSSnapshotManager(base)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	first, err := m.GetStorageDirectory(ctx, 0, 10)
	if err != nil {
		t.Fatalf("storage dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(first.Path, "state"), []byte("v1"), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if err := m.SetLatest(ctx, first); err != nil {
		t.Fatalf("set latest: %v", err)
	}

	got, err := m.GetLatest(ctx)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got.Epoch != 0 || got.ProcessedInputCount != 10 {
		t.Errorf("got %+v, want epoch 0 / 10 inputs", got)
	}

	second, err := m.GetStorageDirectory(ctx, 1, 25)
	if err != nil {
		t.Fatalf("storage dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(second.Path, "state"), []byte("v2"), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}
	if err := m.SetLatest(ctx, second); err != nil {
		t.Fatalf("set latest: %v", err)
	}

	if _, err := os.Stat(first.Path); !os.IsNotExist(err) {
		t.Errorf("expected superseded snapshot directory to be removed, stat err = %v", err)
	}

	got, err = m.GetLatest(ctx)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got.Epoch != 1 || got.ProcessedInputCount != 25 {
		t.Errorf("got %+v, want epoch 1 / 25 inputs", got)
	}
}

func TestDisabledManagerIsNoOp(t *testing.T) {
	m := NewDisabledManager()
	ctx := context.Background()

	if _, err := m.GetLatest(ctx); err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if _, err := m.GetStorageDirectory(ctx, 3, 7); err != nil {
		t.Fatalf("storage dir: %v", err)
	}
	if err := m.SetLatest(ctx, Snapshot{Epoch: 3}); err != nil {
		t.Fatalf("set latest: %v", err)
	}
}
