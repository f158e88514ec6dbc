package signer

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// MnemonicSigner derives one secp256k1 keypair from a BIP-39 mnemonic and
// an account index. It deliberately implements a simplified,
// single-level derivation (HMAC-SHA512 over the BIP-39 seed and account
// index, folded onto the curve) rather than full BIP-32/BIP-44 path
// parsing, since the example pack carries go-bip39 (mnemonic -> seed) but
// no BIP-32 child-key-derivation library.
type MnemonicSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewMnemonicSigner reads a BIP-39 mnemonic from mnemonicPath and derives
// the keypair for accountIdx.
func NewMnemonicSigner(mnemonicPath string, accountIdx uint32) (*MnemonicSigner, error) {
	raw, err := os.ReadFile(mnemonicPath)
	if err != nil {
		return nil, fmt.Errorf("signer: read mnemonic file: %w", err)
	}
	mnemonic := strings.TrimSpace(string(raw))
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, fmt.Errorf("signer: invalid mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")
	privateKey, err := derivePrivateKey(seed, accountIdx)
	if err != nil {
		return nil, fmt.Errorf("signer: derive account %d: %w", accountIdx, err)
	}

	return &MnemonicSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// derivePrivateKey folds HMAC-SHA512(seed, "rollups-account" || index) onto
// the secp256k1 curve to get a deterministic, non-zero scalar per account
// index.
func derivePrivateKey(seed []byte, accountIdx uint32) (*ecdsa.PrivateKey, error) {
	mac := hmac.New(sha512.New, seed)
	mac.Write([]byte("rollups-account"))
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], accountIdx)
	mac.Write(idx[:])
	digest := mac.Sum(nil)

	scalar := new(big.Int).SetBytes(digest[:32])
	scalar.Mod(scalar, btcec.S256().N)
	if scalar.Sign() == 0 {
		return nil, fmt.Errorf("derived zero scalar, choose a different account index")
	}

	return crypto.ToECDSA(scalar.FillBytes(make([]byte, 32)))
}

// Address returns the derived account's address.
func (s *MnemonicSigner) Address() common.Address { return s.address }

// SignTx signs tx for chainID using EIP-155 replay protection.
func (s *MnemonicSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.NewLondonSigner(chainID)
	signed, err := types.SignTx(tx, signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("signer: sign tx: %w", err)
	}
	return signed, nil
}
