package statefold

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/cartesi/rollups-sub002/internal/chain"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/pkg/logger"
)

// Event is either a confirmed new block or a reorg (the list of blocks
// reverted off the previously confirmed chain), per spec.md §4.1.
type Event struct {
	NewBlock      *rollupstypes.Block
	RevertedBlock []rollupstypes.Block // non-nil only for a Reorg event
}

// IsReorg reports whether this event is a Reorg rather than a NewBlock.
func (e Event) IsReorg() bool { return e.RevertedBlock != nil }

// blockTree is the short in-memory chain tip, keyed by hash and number,
// grounded on block_history/block_tree.rs's BlockTree.
type blockTree struct {
	byHash   map[common.Hash]rollupstypes.Block
	byNumber map[uint64]common.Hash
	latest   rollupstypes.Block
}

func newBlockTree(start rollupstypes.Block) *blockTree {
	return &blockTree{
		byHash:   map[common.Hash]rollupstypes.Block{start.Hash: start},
		byNumber: map[uint64]common.Hash{start.Number: start.Hash},
		latest:   start,
	}
}

func (t *blockTree) insert(b rollupstypes.Block) {
	t.byNumber[b.Number] = b.Hash
	t.byHash[b.Hash] = b
}

// Subscription drives a stream of confirmed Events from raw L1 block
// headers, applying a confirmation depth and detecting reorgs against its
// in-memory tip.
type Subscription struct {
	client            chain.Client
	confirmationDepth uint64
	log               *logger.Logger
	tree              *blockTree
}

// NewSubscription creates a Subscription. Call Start to begin emitting
// Events derived from new L1 heads at confirmationDepth confirmations.
func NewSubscription(client chain.Client, confirmationDepth uint64, log *logger.Logger) *Subscription {
	return &Subscription{client: client, confirmationDepth: confirmationDepth, log: log}
}

// Start subscribes to new L1 heads and emits confirmed Events on the
// returned channel until ctx is cancelled or a fatal error occurs. Either
// way the channel is closed; a fatal error is then available from the
// returned value's Err().
func (s *Subscription) Start(ctx context.Context) (<-chan Event, *subscriptionErr, error) {
	events := make(chan Event, 64)
	errState := &subscriptionErr{}

	headers := make(chan *gethtypes.Header, 64)
	sub, err := s.client.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, nil, fmt.Errorf("statefold: subscribe: %w", err)
	}

	go func() {
		defer close(events)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					s.log.WithField("error", err).Warn("block subscription error, retrying")
					time.Sleep(time.Second)
				}
			case header := <-headers:
				if err := s.processHeader(ctx, header, events); err != nil {
					errState.set(err)
					return
				}
			}
		}
	}()

	return events, errState, nil
}

// subscriptionErr lets Start's goroutine report a fatal error (e.g. a deep
// reorg) to the caller without a panic or an unbuffered-channel deadlock.
type subscriptionErr struct {
	err error
}

func (e *subscriptionErr) set(err error) { e.err = err }

// Err returns the fatal error that stopped the subscription, if any.
func (e *subscriptionErr) Err() error { return e.err }

func (s *Subscription) processHeader(ctx context.Context, header *gethtypes.Header, events chan<- Event) error {
	candidate, err := s.client.HeaderByHash(ctx, header.Hash())
	if err != nil {
		return fmt.Errorf("fetch candidate header: %w", err)
	}

	if s.tree == nil {
		confirmed, err := s.confirmedBlock(ctx, candidate)
		if err != nil {
			return err
		}
		s.tree = newBlockTree(confirmed)
		events <- Event{NewBlock: &confirmed}
		return nil
	}

	confirmed, err := s.confirmedBlock(ctx, candidate)
	if err != nil {
		return err
	}

	if confirmed.Hash == s.tree.latest.Hash {
		return nil
	}

	if confirmed.ParentHash == s.tree.latest.Hash || confirmed.Number == s.tree.latest.Number+1 {
		s.tree.insert(confirmed)
		s.tree.latest = confirmed
		events <- Event{NewBlock: &confirmed}
		return nil
	}

	// The new confirmed block does not extend our tip: walk back to find
	// the common ancestor, collecting every block we reverted along the way.
	reverted, ancestor, err := s.findCommonAncestor(ctx, confirmed)
	if err != nil {
		return err
	}
	s.tree = newBlockTree(confirmed)
	s.tree.insert(ancestor)
	events <- Event{RevertedBlock: reverted}
	events <- Event{NewBlock: &confirmed}
	return nil
}

// confirmedBlock walks back confirmationDepth blocks from the candidate tip
// to find the block this engine treats as confirmed.
func (s *Subscription) confirmedBlock(ctx context.Context, tip rollupstypes.Block) (rollupstypes.Block, error) {
	if s.confirmationDepth == 0 {
		return tip, nil
	}
	if tip.Number < s.confirmationDepth {
		return tip, nil
	}
	target := tip.Number - s.confirmationDepth
	return s.client.HeaderByNumber(ctx, &target)
}

// findCommonAncestor walks both the cached tree and the live chain back
// from confirmed until it finds a hash already present in the tree,
// returning every reverted block (in the tree but not on the new chain).
func (s *Subscription) findCommonAncestor(ctx context.Context, confirmed rollupstypes.Block) ([]rollupstypes.Block, rollupstypes.Block, error) {
	var reverted []rollupstypes.Block
	cursor := confirmed
	for {
		if cached, ok := s.tree.byHash[cursor.Hash]; ok {
			return reverted, cached, nil
		}
		if old, ok := s.tree.byNumber[cursor.Number]; ok {
			if oldBlock, ok := s.tree.byHash[old]; ok {
				reverted = append(reverted, oldBlock)
			}
		}
		if cursor.Number == 0 {
			return nil, rollupstypes.Block{}, ErrDeepReorg
		}
		parent, err := s.client.HeaderByHash(ctx, cursor.ParentHash)
		if err != nil {
			return nil, rollupstypes.Block{}, fmt.Errorf("walk back to common ancestor: %w", err)
		}
		cursor = parent
	}
}
