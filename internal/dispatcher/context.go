package dispatcher

import (
	"context"
	"fmt"

	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// Context is the dispatcher's own bookkeeping: the broker chain-link
// cursor (`parent_id`), the cumulative inputs-sent count, and the active
// epoch policy. The state-fold engine's archive and the broker's stream
// are the only other state the dispatcher depends on, per spec.md §3's
// ownership note ("the dispatcher owns the epoch policy clock and the
// cumulative inputs_sent_count").
type Context struct {
	broker          *broker.Broker
	meta            broker.DAppMetadata
	parentID        string
	inputsSentCount uint64
	epoch           *EpochPolicy
}

// NewContext starts a fresh dispatcher context with the epoch policy open
// at genesisTimestamp and no inputs sent yet.
func NewContext(b *broker.Broker, meta broker.DAppMetadata, epochDurationSeconds, genesisTimestamp uint64) *Context {
	return &Context{
		broker:   b,
		meta:     meta,
		parentID: rollupstypes.InitialParentID,
		epoch:    NewEpochPolicy(epochDurationSeconds, genesisTimestamp),
	}
}

// InputsSentCount returns how many inputs this dispatcher has ever
// enqueued — the MachineDriver's high-water mark into InputBoxState.
func (c *Context) InputsSentCount() uint64 { return c.inputsSentCount }

// EnqueueInput writes one AdvanceStateInput to the broker for input,
// chaining it off the last entry produced and advancing the high-water
// mark.
func (c *Context) EnqueueInput(ctx context.Context, input rollupstypes.Input) error {
	data := rollupstypes.NewAdvanceStateInput(rollupstypes.RollupsAdvanceStateInput{
		Metadata: rollupstypes.InputMetadata{
			MsgSender:   input.Sender,
			BlockNumber: input.BlockAdded,
			Timestamp:   input.Timestamp,
			EpochIndex:  c.epoch.EpochIndex(),
			InputIndex:  input.Index,
		},
		Payload: input.Payload,
		TxHash:  input.TxHash,
	})

	id, err := c.broker.ProduceInput(ctx, c.meta, rollupstypes.RollupsInput{
		ParentID:        c.parentID,
		EpochIndex:      c.epoch.EpochIndex(),
		InputsSentCount: c.inputsSentCount + 1,
		Data:            data,
	})
	if err != nil {
		return fmt.Errorf("dispatcher: enqueue input %d: %w", input.Index, err)
	}

	c.parentID = id
	c.inputsSentCount++
	return nil
}

// FinishEpochIfNeeded closes and rotates the active epoch when
// blockTimestamp crosses the duration boundary, writing a FinishEpoch
// event to the broker.
func (c *Context) FinishEpochIfNeeded(ctx context.Context, blockTimestamp uint64) error {
	if !c.epoch.ShouldFinish(blockTimestamp) {
		return nil
	}

	id, err := c.broker.ProduceInput(ctx, c.meta, rollupstypes.RollupsInput{
		ParentID:        c.parentID,
		EpochIndex:      c.epoch.EpochIndex(),
		InputsSentCount: c.inputsSentCount,
		Data:            rollupstypes.NewFinishEpoch(),
	})
	if err != nil {
		return fmt.Errorf("dispatcher: finish epoch %d: %w", c.epoch.EpochIndex(), err)
	}

	c.parentID = id
	c.epoch.Rotate(blockTimestamp)
	return nil
}
