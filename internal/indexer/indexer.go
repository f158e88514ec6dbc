package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/internal/workerpool"
	"github.com/cartesi/rollups-sub002/pkg/metrics"
)

// Config carries the per-block-poll timeout used while waiting on the
// broker's inputs/outputs streams, grounded on advance.Config's
// BlockTimeout field, and the size of the blocking-write worker pool.
type Config struct {
	BlockTimeout time.Duration
	WriterCount  int // worker pool size for offloaded database writes; 0 means 1
}

// Indexer drains the broker's rollups-inputs and rollups-outputs streams and
// persists every event, keeping its pair of cursors in an in-memory
// IndexerState; resuming where it left off across restarts is out of scope
// here — per
// spec.md §4.5 the indexer always replays from genesis, relying on the
// stores' ON CONFLICT DO NOTHING idempotence to make replay safe. Writes
// are offloaded from the consume loop onto a bounded workerpool.Pool, per
// spec.md §5's "CPU-bound database writes are explicitly offloaded to a
// blocking worker pool".
type Indexer struct {
	b     *broker.Broker
	meta  broker.DAppMetadata
	store *Store
	cfg   Config
	state *broker.IndexerState
	pool  *workerpool.Pool

	mu      sync.Mutex
	writeErr error
}

// New builds an Indexer starting its cursors at genesis.
func New(b *broker.Broker, meta broker.DAppMetadata, db *sql.DB, cfg Config) *Indexer {
	size := cfg.WriterCount
	if size < 1 {
		size = 1
	}
	return &Indexer{
		b:     b,
		meta:  meta,
		store: NewStore(db),
		cfg:   cfg,
		state: broker.NewIndexerState(meta),
		pool:  workerpool.New(size),
	}
}

// Run consumes events until ctx is cancelled, returning nil on a clean
// cancellation and a non-nil error for any unexpected broker or storage
// failure. Every write is handed to the worker pool so the consume loop
// never blocks on the database; Run drains and checks the pool before
// returning.
func (idx *Indexer) Run(ctx context.Context) (err error) {
	defer func() {
		idx.pool.Stop()
		if err == nil {
			err = idx.firstWriteErr()
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := idx.firstWriteErr(); err != nil {
			return err
		}

		event, err := idx.b.IndexerConsume(ctx, idx.state, idx.cfg.BlockTimeout)
		if errors.Is(err, broker.ErrConsumeTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return idx.firstWriteErr()
			}
			return fmt.Errorf("indexer: consume: %w", err)
		}

		idx.submitEvent(event)
	}
}

func (idx *Indexer) firstWriteErr() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.writeErr
}

func (idx *Indexer) recordWriteErr(err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.writeErr == nil {
		idx.writeErr = err
	}
}

func (idx *Indexer) submitEvent(event broker.IndexerEvent) {
	idx.pool.Submit(func() {
		if err := idx.handleEvent(context.Background(), event); err != nil {
			idx.recordWriteErr(err)
			return
		}
		idx.countWrite(event)
	})
}

func (idx *Indexer) countWrite(event broker.IndexerEvent) {
	switch event.Kind {
	case broker.IndexerEventInput:
		if event.Input.Data.Kind == rollupstypes.RollupsDataAdvanceStateInput {
			metrics.IndexedRowsTotal.WithLabelValues("inputs").Inc()
		}
	case broker.IndexerEventOutput:
		metrics.IndexedRowsTotal.WithLabelValues(string(event.Output.Kind)).Inc()
	}
}

func (idx *Indexer) handleEvent(ctx context.Context, event broker.IndexerEvent) error {
	switch event.Kind {
	case broker.IndexerEventInput:
		if event.Input.Data.Kind != rollupstypes.RollupsDataAdvanceStateInput {
			// FinishEpoch entries carry no row of their own.
			return nil
		}
		return idx.store.InsertInput(ctx, event.Input)

	case broker.IndexerEventOutput:
		return idx.store.InsertOutput(ctx, event.Output)

	default:
		return fmt.Errorf("indexer: unknown event kind %q", event.Kind)
	}
}
