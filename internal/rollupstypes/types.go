// Package rollupstypes defines the core value types shared across every
// rollups role: blocks, inputs, claims, and the broker's tagged-union
// payloads. None of these types carry behavior beyond basic encoding helpers
// — they are passed by value between the state-fold engine, the dispatcher,
// the advance runner, the claimer, and the indexer.
package rollupstypes

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Hash32 is a 32-byte Keccak/claim/epoch hash.
type Hash32 [32]byte

// String renders the hash as a 0x-prefixed hex string.
func (h Hash32) String() string { return "0x" + hex.EncodeToString(h[:]) }

// BytesToHash32 copies up to 32 bytes of b into a Hash32, left-padding with
// zeroes if shorter.
func BytesToHash32(b []byte) Hash32 {
	var h Hash32
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(h[32-len(b):], b)
	return h
}

// MarshalText renders h as 0x-prefixed hex, so encoding/json (and anything
// else built on TextMarshaler) stores it the same way common.Address and
// common.Hash do.
func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a 0x-prefixed (or bare) hex string into h.
func (h *Hash32) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("rollupstypes: invalid hash %q: %w", string(text), err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("rollupstypes: hash %q has wrong length", string(text))
	}
	copy(h[:], decoded)
	return nil
}

// Address20 is a 20-byte account/contract address.
type Address20 = common.Address

// ParseAddress20 parses a hex address, requiring the standard 20-byte width.
func ParseAddress20(s string) (Address20, error) {
	if !common.IsHexAddress(s) {
		return Address20{}, fmt.Errorf("rollupstypes: invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// Block is the state-fold engine's view of one L1 block.
type Block struct {
	Hash       common.Hash
	Number     uint64
	ParentHash common.Hash
	Timestamp  uint64
	LogsBloom  []byte
}

// Input is one DApp's L1-observed input, as derived from InputBox logs.
type Input struct {
	Index       uint64
	Sender      Address20
	Timestamp   uint64
	Payload     []byte
	BlockAdded  uint64
	TxHash      common.Hash
}

// OnChainClaim is one epoch's claim as recorded by the history contract.
type OnChainClaim struct {
	EpochHash      Hash32
	FirstIndex     uint64
	LastIndex      uint64
	ClaimTimestamp uint64
}
