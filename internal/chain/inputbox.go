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

// InputAddedSignature is the InputBox contract's event signature, per
// spec.md §6: "InputAdded(dapp, input_index, sender, input_bytes)".
const InputAddedSignature = "InputAdded(address,uint256,address,bytes)"

// InputAddedTopic is the Keccak256 hash of InputAddedSignature, i.e.
// topic[0] of every InputAdded log.
var InputAddedTopic = crypto.Keccak256Hash([]byte(InputAddedSignature))

var inputAddedDataArgs abi.Arguments

func init() {
	senderType, _ := abi.NewType("address", "", nil)
	inputType, _ := abi.NewType("bytes", "", nil)
	inputAddedDataArgs = abi.Arguments{
		{Type: senderType},
		{Type: inputType},
	}
}

// DecodeInputAdded decodes one InputAdded log into an Input, recovering the
// sender and payload from the non-indexed data and the input index from the
// indexed topic, and BlockAdded from the log's block number. The timestamp
// is filled in by the caller, since the log itself does not carry it.
func DecodeInputAdded(log types.Log) (rollupstypes.Input, error) {
	if len(log.Topics) < 3 {
		return rollupstypes.Input{}, fmt.Errorf("chain: InputAdded log missing topics")
	}
	if log.Topics[0] != InputAddedTopic {
		return rollupstypes.Input{}, fmt.Errorf("chain: log is not InputAdded")
	}

	inputIndex := new(big.Int).SetBytes(log.Topics[2].Bytes())

	values, err := inputAddedDataArgs.Unpack(log.Data)
	if err != nil {
		return rollupstypes.Input{}, fmt.Errorf("chain: unpack InputAdded data: %w", err)
	}
	sender, ok := values[0].(common.Address)
	if !ok {
		return rollupstypes.Input{}, fmt.Errorf("chain: InputAdded sender decode mismatch")
	}
	payload, ok := values[1].([]byte)
	if !ok {
		return rollupstypes.Input{}, fmt.Errorf("chain: InputAdded payload decode mismatch")
	}

	return rollupstypes.Input{
		Index:      inputIndex.Uint64(),
		Sender:     sender,
		Payload:    payload,
		BlockAdded: log.BlockNumber,
		TxHash:     log.TxHash,
	}, nil
}

// InputAddedQuery builds the log filter for a single DApp's InputAdded
// events over [from, to].
func InputAddedQuery(inputBox, dapp common.Address, from, to uint64) LogQuery {
	return LogQuery{
		FromBlock: from,
		ToBlock:   to,
		Addresses: []common.Address{inputBox},
		Topics:    [][]common.Hash{{InputAddedTopic}, {dapp.Hash()}},
	}
}
