package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const latestLinkName = "latest"

// FSSnapshotManager stores snapshots as directories under baseDir, with a
// symlink named "latest" pointing at the currently committed one. SetLatest
// repoints the symlink atomically (build a new symlink under a temp name,
// os.Rename it over the old one) and only removes the previously committed
// directory once the repoint has succeeded — mirroring the teacher's
// "exclusive owner, scoped acquisition" resource discipline: never observe
// a half-swapped pointer, never delete before the new one is live.
type FSSnapshotManager struct {
	baseDir string
}

// NewFSSnapshotManager builds an FSSnapshotManager rooted at baseDir,
// creating it if necessary.
func NewFSSnapshotManager(baseDir string) (*FSSnapshotManager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create base dir: %w", err)
	}
	return &FSSnapshotManager{baseDir: baseDir}, nil
}

func (m *FSSnapshotManager) linkPath() string { return filepath.Join(m.baseDir, latestLinkName) }

func (m *FSSnapshotManager) GetLatest(ctx context.Context) (Snapshot, error) {
	target, err := os.Readlink(m.linkPath())
	if os.IsNotExist(err) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: read latest link: %w", err)
	}
	epoch, processed, err := parseSnapshotDirName(filepath.Base(target))
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: parse latest target %q: %w", target, err)
	}
	return Snapshot{Path: target, Epoch: epoch, ProcessedInputCount: processed}, nil
}

func (m *FSSnapshotManager) GetStorageDirectory(ctx context.Context, epoch, processedInputCount uint64) (Snapshot, error) {
	path := filepath.Join(m.baseDir, snapshotDirName(epoch, processedInputCount))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: create storage directory: %w", err)
	}
	return Snapshot{Path: path, Epoch: epoch, ProcessedInputCount: processedInputCount}, nil
}

func (m *FSSnapshotManager) SetLatest(ctx context.Context, snap Snapshot) error {
	previous, err := os.Readlink(m.linkPath())
	hadPrevious := err == nil

	tmpLink := m.linkPath() + ".tmp"
	_ = os.Remove(tmpLink)
	if err := os.Symlink(snap.Path, tmpLink); err != nil {
		return fmt.Errorf("snapshot: create temp link: %w", err)
	}
	if err := os.Rename(tmpLink, m.linkPath()); err != nil {
		return fmt.Errorf("snapshot: repoint latest link: %w", err)
	}

	if hadPrevious && previous != snap.Path {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("snapshot: remove superseded snapshot %q: %w", previous, err)
		}
	}
	return nil
}

// snapshotDirName follows spec.md's "{E}_{K}" naming: E is the next-to-open
// epoch index, K the cumulative inputs processed up to that epoch boundary.
func snapshotDirName(epoch, processedInputCount uint64) string {
	return fmt.Sprintf("%d_%d", epoch, processedInputCount)
}

func parseSnapshotDirName(name string) (epoch, processedInputCount uint64, err error) {
	_, err = fmt.Sscanf(name, "%d_%d", &epoch, &processedInputCount)
	if err != nil {
		return 0, 0, err
	}
	return epoch, processedInputCount, nil
}
