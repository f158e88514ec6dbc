package dispatcher

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cartesi/rollups-sub002/internal/broker"
	"github.com/cartesi/rollups-sub002/internal/chain"
	"github.com/cartesi/rollups-sub002/internal/claimer"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
	"github.com/cartesi/rollups-sub002/internal/statefold"
	"github.com/cartesi/rollups-sub002/pkg/logger"
)

// Config carries everything Dispatcher needs to wire the state-fold engine,
// the broker and the authority claimer for one DApp.
type Config struct {
	DAppAddress       common.Address
	InputBoxAddress   common.Address
	HistoryAddress    common.Address
	ConfirmationDepth uint64
	SafetyMargin      uint64
	LogFanout         int
	EpochDuration     uint64
	GenesisTimestamp  uint64
}

// Dispatcher is the main coordination loop: it follows confirmed L1 blocks,
// folds RollupsState, and runs the machine and blockchain drivers against
// it each time. Grounded on
// original_source/offchain/dispatcher/src/dispatcher.rs's `Dispatcher::run`.
type Dispatcher struct {
	cfg        Config
	client     chain.Client
	access     statefold.Access
	sub        *statefold.Subscription
	foldable   statefold.RollupsFoldable
	inputBoxAr *statefold.Archive[statefold.InputBoxState]
	historyAr  *statefold.Archive[statefold.HistoryState]
	dctx       *Context
	machine    *MachineDriver
	blockchain *BlockchainDriver
	sender     claimer.ClaimSender
	log        *logger.Logger
}

// New wires a Dispatcher for one DApp out of its L1 client, broker,
// claim sender and configuration.
func New(
	cfg Config,
	client chain.Client,
	b *broker.Broker,
	meta broker.DAppMetadata,
	sender claimer.ClaimSender,
	log *logger.Logger,
) *Dispatcher {
	access := statefold.NewAccess(client, cfg.LogFanout)
	return &Dispatcher{
		cfg:    cfg,
		client: client,
		access: access,
		sub:    statefold.NewSubscription(client, cfg.ConfirmationDepth, log),
		foldable: statefold.RollupsFoldable{
			InputBox: statefold.InputBoxFoldable{InputBoxAddress: cfg.InputBoxAddress, DAppAddress: cfg.DAppAddress},
			History:  statefold.HistoryFoldable{HistoryAddress: cfg.HistoryAddress, DAppAddress: cfg.DAppAddress},
		},
		inputBoxAr: statefold.NewArchive[statefold.InputBoxState](cfg.SafetyMargin),
		historyAr:  statefold.NewArchive[statefold.HistoryState](cfg.SafetyMargin),
		dctx:       NewContext(b, meta, cfg.EpochDuration, cfg.GenesisTimestamp),
		machine:    NewMachineDriver(cfg.DAppAddress),
		blockchain: NewBlockchainDriver(cfg.DAppAddress, b, meta),
		sender:     sender,
		log:        log,
	}
}

// Run drives the dispatcher until ctx is cancelled or a fatal error occurs
// (a subscription failure, including an unrecoverable deep reorg).
func (d *Dispatcher) Run(ctx context.Context) error {
	events, errState, err := d.sub.Start(ctx)
	if err != nil {
		return fmt.Errorf("dispatcher: start subscription: %w", err)
	}

	for event := range events {
		if event.IsReorg() {
			for _, reverted := range event.RevertedBlock {
				d.inputBoxAr.Forget(reverted.Hash)
				d.historyAr.Forget(reverted.Hash)
			}
			d.log.WithField("reverted_blocks", len(event.RevertedBlock)).Warn("reorg detected, archives pruned")
			continue
		}
		if event.NewBlock == nil {
			continue
		}
		if err := d.reactToBlock(ctx, *event.NewBlock); err != nil {
			return err
		}
	}

	if err := errState.Err(); err != nil {
		return fmt.Errorf("dispatcher: subscription: %w", err)
	}
	return ctx.Err()
}

func (d *Dispatcher) reactToBlock(ctx context.Context, block rollupstypes.Block) error {
	state, err := d.foldable.QueryState(ctx, block, d.inputBoxAr, d.historyAr, d.access)
	if err != nil {
		return fmt.Errorf("dispatcher: query state at block %d: %w", block.Number, err)
	}

	if err := d.machine.React(ctx, d.dctx, block, state.InputBox); err != nil {
		return fmt.Errorf("dispatcher: machine driver: %w", err)
	}

	sender, err := d.blockchain.React(ctx, d.sender, state.History)
	if err != nil {
		return fmt.Errorf("dispatcher: blockchain driver: %w", err)
	}
	d.sender = sender

	return nil
}
