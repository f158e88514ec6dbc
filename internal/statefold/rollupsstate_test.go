package statefold

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/cartesi/rollups-sub002/internal/chain"
	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

type fakeAccess struct {
	logs []gethtypes.Log
	err  error
}

func (f *fakeAccess) FetchLogs(ctx context.Context, q chain.LogQuery) ([]gethtypes.Log, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []gethtypes.Log
	for _, l := range f.logs {
		if l.BlockNumber >= q.FromBlock && l.BlockNumber <= q.ToBlock {
			out = append(out, l)
		}
	}
	return out, nil
}

func inputAddedLog(t *testing.T, dapp common.Address, index uint64, sender common.Address, payload []byte, blockNumber uint64) gethtypes.Log {
	t.Helper()
	addrType, _ := abi.NewType("address", "", nil)
	bytesType, _ := abi.NewType("bytes", "", nil)
	args := abi.Arguments{{Type: addrType}, {Type: bytesType}}
	data, err := args.Pack(sender, payload)
	require.NoError(t, err)

	return gethtypes.Log{
		Address: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Topics: []common.Hash{
			chain.InputAddedTopic,
			dapp.Hash(),
			common.BigToHash(new(big.Int).SetUint64(index)),
		},
		Data:        data,
		BlockNumber: blockNumber,
	}
}

func TestInputBoxFoldableSyncAccumulatesDenseInputs(t *testing.T) {
	dapp := common.HexToAddress("0x2222222222222222222222222222222222222222")
	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")

	access := &fakeAccess{logs: []gethtypes.Log{
		inputAddedLog(t, dapp, 0, sender, []byte("first"), 10),
		inputAddedLog(t, dapp, 1, sender, []byte("second"), 12),
	}}

	f := InputBoxFoldable{
		InputBoxAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		DAppAddress:     dapp,
	}
	block := rollupstypes.Block{Number: 12, Timestamp: 1000}

	state, err := f.Sync(context.Background(), block, access)
	require.NoError(t, err)
	require.Len(t, state.Inputs, 2)
	require.Equal(t, uint64(0), state.Inputs[0].Index)
	require.Equal(t, []byte("first"), state.Inputs[0].Payload)
	require.Equal(t, uint64(1), state.Inputs[1].Index)
	require.Equal(t, sender, state.Inputs[1].Sender)
}

func TestInputBoxFoldableFoldIsIdempotentOnDuplicateLog(t *testing.T) {
	dapp := common.HexToAddress("0x2222222222222222222222222222222222222222")
	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")

	f := InputBoxFoldable{DAppAddress: dapp}
	previous := InputBoxState{
		DAppAddress: dapp,
		Inputs:      []rollupstypes.Input{{Index: 0, Sender: sender, Payload: []byte("first")}},
	}

	access := &fakeAccess{logs: []gethtypes.Log{
		inputAddedLog(t, dapp, 0, sender, []byte("first"), 10),
	}}

	block := rollupstypes.Block{Number: 10, Timestamp: 999}
	state, err := f.Fold(context.Background(), previous, block, access)
	require.NoError(t, err)
	require.Len(t, state.Inputs, 1, "duplicate InputAdded log must not double-append")
}

func claimLog(t *testing.T, dapp common.Address, epochHash [32]byte, first, last uint64, blockNumber uint64) gethtypes.Log {
	t.Helper()
	tupleType, _ := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "epochHash", Type: "bytes32"},
		{Name: "firstIndex", Type: "uint128"},
		{Name: "lastIndex", Type: "uint128"},
	})
	args := abi.Arguments{{Type: tupleType}}
	data, err := args.Pack(struct {
		EpochHash  [32]byte
		FirstIndex *big.Int
		LastIndex  *big.Int
	}{epochHash, new(big.Int).SetUint64(first), new(big.Int).SetUint64(last)})
	require.NoError(t, err)

	return gethtypes.Log{
		Topics:      []common.Hash{chain.NewClaimToHistoryTopic, dapp.Hash()},
		Data:        data,
		BlockNumber: blockNumber,
	}
}

func TestHistoryFoldableFiltersByDApp(t *testing.T) {
	dapp := common.HexToAddress("0x2222222222222222222222222222222222222222")
	other := common.HexToAddress("0x4444444444444444444444444444444444444444")
	var epochHash [32]byte
	epochHash[0] = 0xAB

	access := &fakeAccess{logs: []gethtypes.Log{
		claimLog(t, dapp, epochHash, 0, 9, 100),
		claimLog(t, other, epochHash, 0, 9, 100),
	}}

	f := HistoryFoldable{DAppAddress: dapp}
	block := rollupstypes.Block{Number: 100, Timestamp: 500}

	state, err := f.Sync(context.Background(), block, access)
	require.NoError(t, err)
	require.Len(t, state.Claims, 1)
	require.Equal(t, uint64(0), state.Claims[0].FirstIndex)
	require.Equal(t, uint64(9), state.Claims[0].LastIndex)
	require.Equal(t, rollupstypes.Hash32(epochHash), state.Claims[0].EpochHash)
}

func TestRollupsFoldableQueryStateComposesBothArchives(t *testing.T) {
	dapp := common.HexToAddress("0x2222222222222222222222222222222222222222")
	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")
	var epochHash [32]byte
	epochHash[0] = 0xCD

	access := &fakeAccess{logs: []gethtypes.Log{
		inputAddedLog(t, dapp, 0, sender, []byte("payload"), 5),
		claimLog(t, dapp, epochHash, 0, 0, 5),
	}}

	rf := RollupsFoldable{
		InputBox: InputBoxFoldable{DAppAddress: dapp},
		History:  HistoryFoldable{DAppAddress: dapp},
	}
	inputBoxArchive := NewArchive[InputBoxState](10)
	historyArchive := NewArchive[HistoryState](10)

	block := rollupstypes.Block{Hash: common.HexToHash("0xaa"), Number: 5, Timestamp: 123}
	state, err := rf.QueryState(context.Background(), block, inputBoxArchive, historyArchive, access)
	require.NoError(t, err)
	require.Len(t, state.InputBox.Inputs, 1)
	require.Len(t, state.History.Claims, 1)
	require.Equal(t, block, state.Block)

	// A second query at the same block must hit the archive cache, not refetch.
	access.err = require.AnError
	cached, err := rf.QueryState(context.Background(), block, inputBoxArchive, historyArchive, access)
	require.NoError(t, err)
	require.Equal(t, state, cached)
}
