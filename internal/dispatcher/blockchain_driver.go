package dispatcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/claimer"
	"github.com/cartesi/rollups-sub002/internal/statefold"
)

// BlockchainDriver drains every claim the broker's rollups-claims stream
// has queued for this DApp, once per confirmed block, and relays the ones
// not yet recorded on-chain to the authority contract. Grounded on
// original_source/offchain/dispatcher/src/drivers/blockchain.rs's
// `BlockchainDriver::react`.
type BlockchainDriver struct {
	dappAddress common.Address
	b           *broker.Broker
	meta        broker.DAppMetadata
	lastID      string
}

// NewBlockchainDriver builds a BlockchainDriver for one DApp, polling
// claims from b starting at the stream's beginning.
func NewBlockchainDriver(dappAddress common.Address, b *broker.Broker, meta broker.DAppMetadata) *BlockchainDriver {
	return &BlockchainDriver{dappAddress: dappAddress, b: b, meta: meta, lastID: broker.InitialID}
}

// React drains every currently queued claim and, for each one this DApp's
// history contract has not yet recorded (EpochIndex >= number of claims
// already seen on-chain), submits it via sender, returning the
// (possibly-updated) sender for the caller to carry into the next block,
// mirroring the self-consuming ClaimSender idiom.
func (d *BlockchainDriver) React(ctx context.Context, sender claimer.ClaimSender, history statefold.HistoryState) (claimer.ClaimSender, error) {
	if history.DAppAddress != d.dappAddress {
		return sender, fmt.Errorf("dispatcher: blockchain driver: history dapp mismatch: got %s want %s", history.DAppAddress, d.dappAddress)
	}
	claimsSent := uint64(len(history.Claims))

	for {
		id, claim, ok, err := d.b.PollClaim(ctx, d.meta, d.lastID)
		if err != nil {
			return sender, fmt.Errorf("dispatcher: blockchain driver: poll claim: %w", err)
		}
		if !ok {
			return sender, nil
		}
		d.lastID = id

		if claim.EpochIndex < claimsSent {
			continue // already recorded on-chain, superseded by a later Sync
		}

		sender, err = sender.Send(ctx, claim)
		if err != nil {
			return sender, fmt.Errorf("dispatcher: blockchain driver: send claim %d: %w", claim.EpochIndex, err)
		}
	}
}
