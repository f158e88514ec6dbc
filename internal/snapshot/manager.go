// Package snapshot manages the advance runner's Cartesi machine snapshots
// on disk: the directory holding the last epoch's machine state, used to
// resume after a restart instead of replaying every input from genesis.
// Grounded on original_source/offchain/advance-runner/src/snapshot/
// {mod.rs,disabled.rs}.
package snapshot

import "context"

// Snapshot describes one stored machine state.
type Snapshot struct {
	Path                string
	Epoch               uint64
	ProcessedInputCount uint64
}

// Manager is the storage-backend-agnostic snapshot interface, per mod.rs's
// SnapshotManager trait.
type Manager interface {
	// GetLatest returns the most recently committed snapshot, or the zero
	// Snapshot if none has ever been committed.
	GetLatest(ctx context.Context) (Snapshot, error)

	// GetStorageDirectory reserves (but does not yet commit) a directory
	// the caller should write a new snapshot for epoch/processedInputCount
	// into.
	GetStorageDirectory(ctx context.Context, epoch, processedInputCount uint64) (Snapshot, error)

	// SetLatest commits snapshot as the new latest, atomically repointing
	// any reader of GetLatest.
	SetLatest(ctx context.Context, snapshot Snapshot) error
}
