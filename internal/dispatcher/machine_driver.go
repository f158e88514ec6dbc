package dispatcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/internal/statefold"
)

// MachineDriver relays confirmed InputBox state into the broker's
// rollups-inputs stream, grounded on
// original_source/offchain/dispatcher/src/drivers/machine.rs's
// `MachineDriver::react`.
type MachineDriver struct {
	dappAddress common.Address
}

// NewMachineDriver builds a MachineDriver for one DApp.
func NewMachineDriver(dappAddress common.Address) *MachineDriver {
	return &MachineDriver{dappAddress: dappAddress}
}

// React checks, before enqueuing each InputBox entry beyond dctx's
// high-water mark, whether that input's own timestamp closes the active
// epoch — matching machine.rs, where every input first tests the epoch
// boundary and only then is appended to the (possibly just-rotated)
// epoch. An input that crosses the boundary is emitted into the newly
// opened epoch, after the FinishEpoch marker for the one it closed. Once
// every pending input has been handled, block.Timestamp is checked once
// more as a safety net so a block containing no inputs can still close an
// epoch whose deadline has passed.
func (d *MachineDriver) React(ctx context.Context, dctx *Context, block rollupstypes.Block, inputBox statefold.InputBoxState) error {
	if inputBox.DAppAddress != d.dappAddress {
		return fmt.Errorf("dispatcher: machine driver: input box dapp mismatch: got %s want %s", inputBox.DAppAddress, d.dappAddress)
	}

	sent := dctx.InputsSentCount()
	for _, input := range inputBox.Inputs {
		if input.Index < sent {
			continue
		}
		if err := dctx.FinishEpochIfNeeded(ctx, input.Timestamp); err != nil {
			return err
		}
		if err := dctx.EnqueueInput(ctx, input); err != nil {
			return err
		}
	}

	return dctx.FinishEpochIfNeeded(ctx, block.Timestamp)
}
