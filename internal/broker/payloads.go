package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// Payloads are JSON-encoded rather than the original's Protobuf/CBOR, since
// this repo has no shared schema-compiler step; every producer and
// consumer lives in this one Go module. Grounded on the teacher's own
// preference for `encoding/json` at its service boundaries (pkg/dto).

// ProduceInput appends one RollupsInput to a DApp's inputs stream.
func (b *Broker) ProduceInput(ctx context.Context, meta DAppMetadata, input rollupstypes.RollupsInput) (string, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("broker: marshal RollupsInput: %w", err)
	}
	return b.produce(ctx, InputsStream(meta), encoded)
}

// ProduceOutput appends one RollupsOutput to a DApp's outputs stream.
func (b *Broker) ProduceOutput(ctx context.Context, meta DAppMetadata, output rollupstypes.RollupsOutput) (string, error) {
	encoded, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("broker: marshal RollupsOutput: %w", err)
	}
	return b.produce(ctx, OutputsStream(meta), encoded)
}

// ProduceClaim appends one RollupsClaim to a DApp's claims stream.
func (b *Broker) ProduceClaim(ctx context.Context, meta DAppMetadata, claim rollupstypes.RollupsClaim) (string, error) {
	encoded, err := json.Marshal(claim)
	if err != nil {
		return "", fmt.Errorf("broker: marshal RollupsClaim: %w", err)
	}
	return b.produce(ctx, ClaimsStream(meta), encoded)
}

// PeekLatestClaim returns the most recently produced claim, or ok=false if
// the claims stream is empty. The authority claimer does not call it; it
// reads claims through ConsumeClaim.
func (b *Broker) PeekLatestClaim(ctx context.Context, meta DAppMetadata) (claim rollupstypes.RollupsClaim, ok bool, err error) {
	_, encoded, ok, err := b.peekLatest(ctx, ClaimsStream(meta))
	if err != nil || !ok {
		return rollupstypes.RollupsClaim{}, ok, err
	}
	if err := json.Unmarshal(encoded, &claim); err != nil {
		return rollupstypes.RollupsClaim{}, false, fmt.Errorf("broker: unmarshal RollupsClaim: %w", err)
	}
	return claim, true, nil
}

// PollClaim returns the next RollupsClaim strictly after lastID if one is
// already queued, without blocking, and ok=false otherwise.
func (b *Broker) PollClaim(ctx context.Context, meta DAppMetadata, lastID string) (id string, claim rollupstypes.RollupsClaim, ok bool, err error) {
	id, encoded, ok, err := b.pollOne(ctx, ClaimsStream(meta), lastID)
	if err != nil || !ok {
		return "", rollupstypes.RollupsClaim{}, ok, err
	}
	if err := json.Unmarshal(encoded, &claim); err != nil {
		return "", rollupstypes.RollupsClaim{}, false, fmt.Errorf("broker: unmarshal RollupsClaim: %w", err)
	}
	return id, claim, true, nil
}

// ConsumeInput blocks for the next RollupsInput strictly after lastID.
func (b *Broker) ConsumeInput(ctx context.Context, meta DAppMetadata, lastID string, blockTimeout time.Duration) (id string, input rollupstypes.RollupsInput, err error) {
	id, encoded, err := b.consumeOne(ctx, InputsStream(meta), lastID, blockTimeout)
	if err != nil {
		return "", rollupstypes.RollupsInput{}, err
	}
	if err := json.Unmarshal(encoded, &input); err != nil {
		return "", rollupstypes.RollupsInput{}, fmt.Errorf("broker: unmarshal RollupsInput: %w", err)
	}
	return id, input, nil
}

// ConsumeOutput blocks for the next RollupsOutput strictly after lastID.
func (b *Broker) ConsumeOutput(ctx context.Context, meta DAppMetadata, lastID string, blockTimeout time.Duration) (id string, output rollupstypes.RollupsOutput, err error) {
	id, encoded, err := b.consumeOne(ctx, OutputsStream(meta), lastID, blockTimeout)
	if err != nil {
		return "", rollupstypes.RollupsOutput{}, err
	}
	if err := json.Unmarshal(encoded, &output); err != nil {
		return "", rollupstypes.RollupsOutput{}, fmt.Errorf("broker: unmarshal RollupsOutput: %w", err)
	}
	return id, output, nil
}

// ConsumeClaim blocks for the next RollupsClaim strictly after lastID.
func (b *Broker) ConsumeClaim(ctx context.Context, meta DAppMetadata, lastID string, blockTimeout time.Duration) (id string, claim rollupstypes.RollupsClaim, err error) {
	id, encoded, err := b.consumeOne(ctx, ClaimsStream(meta), lastID, blockTimeout)
	if err != nil {
		return "", rollupstypes.RollupsClaim{}, err
	}
	if err := json.Unmarshal(encoded, &claim); err != nil {
		return "", rollupstypes.RollupsClaim{}, fmt.Errorf("broker: unmarshal RollupsClaim: %w", err)
	}
	return id, claim, nil
}
