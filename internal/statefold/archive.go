package statefold

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// cachedState pairs a folded value with the block it was computed at, so
// callers can distinguish "cached at this exact block" from "cached at an
// ancestor, fold forward from there".
type cachedState[State any] struct {
	block rollupstypes.Block
	value State
}

// Archive is the per-foldable, per-initial-state memo from block hash to
// state, with a safety margin bounding how far fold() is allowed to walk
// instead of re-syncing from genesis. Grounded on
// state-fold/src/state_fold/env/archive.rs's Archive<F>/Train<F>, collapsed
// into one type since this repo keys one archive per concrete foldable
// rather than per arbitrary InitialState value (one DApp per process,
// per spec.md §1's non-goals).
type Archive[State any] struct {
	mu           sync.Mutex
	safetyMargin uint64
	byHash       map[common.Hash]cachedState[State]
	tipNumber    uint64
}

// NewArchive creates an archive bounding reorg recovery to safetyMargin
// blocks.
func NewArchive[State any](safetyMargin uint64) *Archive[State] {
	return &Archive[State]{
		safetyMargin: safetyMargin,
		byHash:       make(map[common.Hash]cachedState[State]),
	}
}

// ErrDeepReorg is returned by Subscription when its walk back to a common
// ancestor reaches block 0 without meeting a block in its tree.
// GetStateForBlock does not return it: a block whose parent is not cached
// is synced from genesis instead.
var ErrDeepReorg = fmt.Errorf("statefold: block outside archive's retained depth")

// GetStateForBlock returns the folded state at block, computing it via
// Fold (from a cached parent) or Sync (from genesis) as needed, per
// spec.md §4.1's three-step lookup.
func (a *Archive[State]) GetStateForBlock(
	ctx context.Context,
	block rollupstypes.Block,
	foldable Foldable[State],
	access Access,
) (State, error) {
	a.mu.Lock()
	if cached, ok := a.byHash[block.Hash]; ok {
		a.mu.Unlock()
		return cached.value, nil
	}
	parent, parentCached := a.byHash[block.ParentHash]
	a.mu.Unlock()

	var (
		state State
		err   error
	)
	if parentCached {
		state, err = foldable.Fold(ctx, parent.value, block, access)
		if err != nil {
			var zero State
			return zero, fmt.Errorf("statefold: fold at block %d: %w", block.Number, err)
		}
	} else {
		state, err = foldable.Sync(ctx, block, access)
		if err != nil {
			var zero State
			return zero, fmt.Errorf("statefold: sync at block %d: %w", block.Number, err)
		}
	}

	a.mu.Lock()
	a.byHash[block.Hash] = cachedState[State]{block: block, value: state}
	if block.Number > a.tipNumber {
		a.tipNumber = block.Number
	}
	a.evictBeyondMargin()
	a.mu.Unlock()

	return state, nil
}

// evictBeyondMargin drops cache entries older than the safety margin below
// the current tip; callers must hold a.mu.
func (a *Archive[State]) evictBeyondMargin() {
	if a.tipNumber < a.safetyMargin {
		return
	}
	floor := a.tipNumber - a.safetyMargin
	for hash, cached := range a.byHash {
		if cached.block.Number < floor {
			delete(a.byHash, hash)
		}
	}
}

// Forget drops the cached entry for one reverted block's hash, so the next
// GetStateForBlock for that hash recomputes it. The dispatcher calls it for
// every block listed in a Reorg event.
func (a *Archive[State]) Forget(hash common.Hash) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.byHash, hash)
}
