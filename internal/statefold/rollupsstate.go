package statefold

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cartesi/rollups-sub002/internal/chain"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// InputBoxState is the derived view of one DApp's append-only input log,
// grounded on original_source/offchain/offchain/src/fold/input_delegate.rs.
type InputBoxState struct {
	DAppAddress common.Address
	Inputs      []rollupstypes.Input // dense, index-ordered
}

// InputBoxFoldable derives InputBoxState from InputBox logs.
type InputBoxFoldable struct {
	InputBoxAddress common.Address
	DAppAddress     common.Address
}

func (f InputBoxFoldable) Sync(ctx context.Context, block rollupstypes.Block, access Access) (InputBoxState, error) {
	return f.foldRange(ctx, InputBoxState{DAppAddress: f.DAppAddress}, 0, block, access)
}

func (f InputBoxFoldable) Fold(ctx context.Context, previous InputBoxState, block rollupstypes.Block, access Access) (InputBoxState, error) {
	return f.foldRange(ctx, previous, block.Number, block, access)
}

func (f InputBoxFoldable) foldRange(ctx context.Context, previous InputBoxState, fromBlock uint64, block rollupstypes.Block, access Access) (InputBoxState, error) {
	q := chain.InputAddedQuery(f.InputBoxAddress, f.DAppAddress, fromBlock, block.Number)
	logs, err := access.FetchLogs(ctx, q)
	if err != nil {
		return InputBoxState{}, fmt.Errorf("input box: fetch logs: %w", err)
	}

	state := InputBoxState{DAppAddress: f.DAppAddress, Inputs: append([]rollupstypes.Input(nil), previous.Inputs...)}
	seen := make(map[uint64]bool, len(state.Inputs))
	for _, in := range state.Inputs {
		seen[in.Index] = true
	}
	for _, l := range logs {
		input, err := chain.DecodeInputAdded(l)
		if err != nil {
			return InputBoxState{}, fmt.Errorf("input box: decode log: %w", err)
		}
		if seen[input.Index] {
			continue
		}
		input.Timestamp = block.Timestamp
		state.Inputs = append(state.Inputs, input)
		seen[input.Index] = true
	}
	return state, nil
}

// HistoryState is the derived view of all on-chain claims recorded for one
// DApp by the history contract, grounded on
// original_source/offchain/types/src/foldables/authority/rollups.rs and
// types/src/foldables/claims.rs.
type HistoryState struct {
	DAppAddress common.Address
	Claims      []rollupstypes.OnChainClaim // first_index-ordered
}

// HistoryFoldable derives HistoryState from NewClaimToHistory logs.
type HistoryFoldable struct {
	HistoryAddress common.Address
	DAppAddress    common.Address
}

func (f HistoryFoldable) Sync(ctx context.Context, block rollupstypes.Block, access Access) (HistoryState, error) {
	return f.foldRange(ctx, HistoryState{DAppAddress: f.DAppAddress}, 0, block, access)
}

func (f HistoryFoldable) Fold(ctx context.Context, previous HistoryState, block rollupstypes.Block, access Access) (HistoryState, error) {
	return f.foldRange(ctx, previous, block.Number, block, access)
}

func (f HistoryFoldable) foldRange(ctx context.Context, previous HistoryState, fromBlock uint64, block rollupstypes.Block, access Access) (HistoryState, error) {
	q := chain.NewClaimToHistoryQuery(f.HistoryAddress, fromBlock, block.Number)
	logs, err := access.FetchLogs(ctx, q)
	if err != nil {
		return HistoryState{}, fmt.Errorf("history: fetch logs: %w", err)
	}

	state := HistoryState{DAppAddress: f.DAppAddress, Claims: append([]rollupstypes.OnChainClaim(nil), previous.Claims...)}
	for _, l := range logs {
		dapp, claim, err := chain.DecodeNewClaimToHistory(l)
		if err != nil {
			return HistoryState{}, fmt.Errorf("history: decode log: %w", err)
		}
		if dapp != f.DAppAddress {
			continue
		}
		claim.ClaimTimestamp = block.Timestamp
		state.Claims = append(state.Claims, claim)
	}
	return state, nil
}

// RollupsState composes InputBoxState and HistoryState for one DApp at one
// block — the top-level foldable the dispatcher queries, per spec.md §4.2
// step 1 ("Query RollupsState at b, which transitively folds InputBox and
// History").
type RollupsState struct {
	Block     rollupstypes.Block
	InputBox  InputBoxState
	History   HistoryState
}

// RollupsFoldable composes InputBoxFoldable and HistoryFoldable by running
// each independently and pairing their results, per spec.md §9's "cyclic /
// shared references" note: composition by value, no inheritance.
type RollupsFoldable struct {
	InputBox InputBoxFoldable
	History  HistoryFoldable
}

// QueryState resolves RollupsState at block using the two archives backing
// its sub-foldables.
func (f RollupsFoldable) QueryState(
	ctx context.Context,
	block rollupstypes.Block,
	inputBoxArchive *Archive[InputBoxState],
	historyArchive *Archive[HistoryState],
	access Access,
) (RollupsState, error) {
	inputBox, err := inputBoxArchive.GetStateForBlock(ctx, block, f.InputBox, access)
	if err != nil {
		return RollupsState{}, err
	}
	history, err := historyArchive.GetStateForBlock(ctx, block, f.History, access)
	if err != nil {
		return RollupsState{}, err
	}
	return RollupsState{Block: block, InputBox: inputBox, History: history}, nil
}
