package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cartesi/rollups-sub002/internal/rollupstypes"
)

// NewClaimToHistorySignature is the history contract's event signature, per
// spec.md §6: "NewClaimToHistory(dapp, claim{epoch_hash, first_index,
// last_index})".
const NewClaimToHistorySignature = "NewClaimToHistory(address,(bytes32,uint128,uint128))"

// NewClaimToHistoryTopic is topic[0] of every NewClaimToHistory log.
var NewClaimToHistoryTopic = crypto.Keccak256Hash([]byte(NewClaimToHistorySignature))

var claimDataArgs abi.Arguments

func init() {
	claimTupleType, _ := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "epochHash", Type: "bytes32"},
		{Name: "firstIndex", Type: "uint128"},
		{Name: "lastIndex", Type: "uint128"},
	})
	claimDataArgs = abi.Arguments{{Type: claimTupleType}}
}

// DecodeNewClaimToHistory decodes one NewClaimToHistory log into an
// OnChainClaim. The DApp address is the log's sole indexed topic.
func DecodeNewClaimToHistory(log types.Log) (common.Address, rollupstypes.OnChainClaim, error) {
	if len(log.Topics) < 2 {
		return common.Address{}, rollupstypes.OnChainClaim{}, fmt.Errorf("chain: NewClaimToHistory log missing topics")
	}
	if log.Topics[0] != NewClaimToHistoryTopic {
		return common.Address{}, rollupstypes.OnChainClaim{}, fmt.Errorf("chain: log is not NewClaimToHistory")
	}
	dapp := common.HexToAddress(log.Topics[1].Hex())

	values, err := claimDataArgs.Unpack(log.Data)
	if err != nil {
		return common.Address{}, rollupstypes.OnChainClaim{}, fmt.Errorf("chain: unpack NewClaimToHistory data: %w", err)
	}

	claimStruct, ok := values[0].(struct {
		EpochHash  [32]byte
		FirstIndex *big.Int
		LastIndex  *big.Int
	})
	if !ok {
		return common.Address{}, rollupstypes.OnChainClaim{}, fmt.Errorf("chain: NewClaimToHistory claim decode mismatch")
	}

	return dapp, rollupstypes.OnChainClaim{
		EpochHash:  rollupstypes.Hash32(claimStruct.EpochHash),
		FirstIndex: claimStruct.FirstIndex.Uint64(),
		LastIndex:  claimStruct.LastIndex.Uint64(),
	}, nil
}

// NewClaimToHistoryQuery builds the log filter for a history contract's
// claims over [from, to].
func NewClaimToHistoryQuery(history common.Address, from, to uint64) LogQuery {
	return LogQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{history},
		Topics:    [][]common.Hash{{NewClaimToHistoryTopic}},
	}
}
