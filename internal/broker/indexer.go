package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// IndexerEventKind discriminates an IndexerEvent's payload, mirroring
// broker/indexer.rs's IndexerEvent enum.
type IndexerEventKind string

const (
	IndexerEventInput  IndexerEventKind = "input"
	IndexerEventOutput IndexerEventKind = "output"
)

// IndexerEvent is either an input or an output consumed off the indexer's
// two watched streams.
type IndexerEvent struct {
	Kind   IndexerEventKind
	Input  rollupstypes.RollupsInput
	Output rollupstypes.RollupsOutput
}

// IndexerState holds the indexer's two independent cursors, one per
// stream, grounded on broker/indexer.rs's IndexerState.
type IndexerState struct {
	meta          DAppMetadata
	inputsLastID  string
	outputsLastID string
}

// NewIndexerState starts both cursors at genesis.
func NewIndexerState(meta DAppMetadata) *IndexerState {
	return &IndexerState{meta: meta, inputsLastID: InitialID, outputsLastID: InitialID}
}

// IndexerConsume consumes the next event off the input stream if present,
// else the output stream, blocking up to blockTimeout. Inputs are
// preferred over outputs so the indexer never records an output before the
// input it belongs to, per spec.md §6's insertion-order invariant.
func (b *Broker) IndexerConsume(ctx context.Context, state *IndexerState, blockTimeout time.Duration) (IndexerEvent, error) {
	inputStream := InputsStream(state.meta)
	outputStream := OutputsStream(state.meta)

	entries, err := b.xread(
		ctx,
		[]string{inputStream.key, outputStream.key},
		[]string{state.inputsLastID, state.outputsLastID},
		blockTimeout,
	)
	if err != nil {
		return IndexerEvent{}, err
	}

	for _, e := range entries {
		if e.streamKey != inputStream.key {
			continue
		}
		var input rollupstypes.RollupsInput
		if err := json.Unmarshal(e.encoded, &input); err != nil {
			return IndexerEvent{}, fmt.Errorf("broker: unmarshal indexed RollupsInput: %w", err)
		}
		state.inputsLastID = e.id
		return IndexerEvent{Kind: IndexerEventInput, Input: input}, nil
	}

	for _, e := range entries {
		if e.streamKey != outputStream.key {
			continue
		}
		var output rollupstypes.RollupsOutput
		if err := json.Unmarshal(e.encoded, &output); err != nil {
			return IndexerEvent{}, fmt.Errorf("broker: unmarshal indexed RollupsOutput: %w", err)
		}
		state.outputsLastID = e.id
		return IndexerEvent{Kind: IndexerEventOutput, Output: output}, nil
	}

	return IndexerEvent{}, ErrConsumeTimeout
}
