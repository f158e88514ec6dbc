// Package signer provides the authority claimer's two interchangeable
// transaction-signing backends, grounded on
// original_source/offchain/dispatcher/src/{auth.rs,signer/aws_signer.rs}.
package signer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer signs L1 transactions on behalf of one account. Exactly one
// implementation is active per process, selected by config.Signer.Kind.
type Signer interface {
	Address() common.Address
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}
