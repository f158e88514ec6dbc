package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// methodSelector returns the first 4 bytes of Keccak256(signature), the
// standard Solidity ABI function selector.
func methodSelector(signature string) [4]byte {
	hash := crypto.Keccak256([]byte(signature))
	var selector [4]byte
	copy(selector[:], hash[:4])
	return selector
}

// ClaimSignature is the authority contract's claim-submission entry point,
// per spec.md §6 ("submits claims to the authority-configured entry point")
// and grounded on original_source/offchain/dispatcher/src/tx_sender/
// bulletproof_tx_sender.rs's `rollups_facet.claim(claim.to_fixed_bytes())`.
const ClaimSignature = "claim(bytes32)"

var claimArgs abi.Arguments

func init() {
	bytes32Type, _ := abi.NewType("bytes32", "", nil)
	claimArgs = abi.Arguments{{Type: bytes32Type}}
}

// EncodeClaimCallData ABI-encodes a call to claim(bytes32) with epochHash.
func EncodeClaimCallData(epochHash [32]byte) ([]byte, error) {
	packed, err := claimArgs.Pack(epochHash)
	if err != nil {
		return nil, fmt.Errorf("chain: pack claim args: %w", err)
	}
	selector := methodSelector(ClaimSignature)
	return append(selector[:], packed...), nil
}
