package snapshot

import "context"

// DisabledManager is a no-op Manager for deployments that never persist
// machine state between restarts, per disabled.rs's SnapshotDisabled.
type DisabledManager struct{}

// NewDisabledManager builds a DisabledManager.
func NewDisabledManager() *DisabledManager { return &DisabledManager{} }

func (DisabledManager) GetLatest(ctx context.Context) (Snapshot, error) {
	return Snapshot{}, nil
}

func (DisabledManager) GetStorageDirectory(ctx context.Context, epoch, processedInputCount uint64) (Snapshot, error) {
	return Snapshot{}, nil
}

func (DisabledManager) SetLatest(ctx context.Context, snapshot Snapshot) error {
	return nil
}
