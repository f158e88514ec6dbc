// Package merkle implements the voucher/notice output hash, the pristine
// Merkle tree, and the output validity proof used to seal each epoch's
// outputs — grounded on original_source/offchain/host-runner/src/{driver.rs,
// merkle_tree/{pristine.rs,proof.rs}}.
package merkle

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// HashSize is the width, in bytes, of every hash in the tree.
const HashSize = 32

// Hash is a 32-byte Keccak256 digest.
type Hash [HashSize]byte

// writePadding left-pads the hash stream with zero bytes so that the n
// bytes about to be written finish aligned on a HashSize boundary — mirrors
// driver.rs's write_padding, called BEFORE the data it aligns, not after.
func writePadding(h *sha3Writer, n int) {
	alignment := n % HashSize
	if alignment != 0 {
		var zero [HashSize]byte
		h.Write(zero[:HashSize-alignment])
	}
}

func writeU64(h *sha3Writer, value uint64) {
	writePadding(h, 8)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], value)
	h.Write(buf[:])
}

func writeData(h *sha3Writer, data []byte) {
	writePadding(h, len(data))
	h.Write(data)
}

func writePayload(h *sha3Writer, payload []byte) {
	writeU64(h, uint64(len(payload)))
	h.Write(payload)
	writePadding(h, len(payload))
}

// sha3Writer is a tiny adapter so the write* helpers above read like the
// original code's hasher.write_u8/update calls.
type sha3Writer struct {
	state sha3hasher
}

// sha3hasher is satisfied by golang.org/x/crypto/sha3's legacy Keccak256
// state, which implements hash.Hash.
type sha3hasher interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

func (w *sha3Writer) Write(p []byte) { w.state.Write(p) }

func newHasher() *sha3Writer {
	return &sha3Writer{state: sha3.NewLegacyKeccak256()}
}

func (w *sha3Writer) finalize() Hash {
	var out Hash
	copy(out[:], w.state.Sum(nil))
	return out
}

// ComputeVoucherHash hashes a voucher's (destination, payload) the same way
// the machine does: destination left-padded to 32 bytes, a fixed 0x40
// offset word, then the length-prefixed, right-padded payload.
func ComputeVoucherHash(destination []byte, payload []byte) Hash {
	h := newHasher()
	writeData(h, destination)
	writeU64(h, 0x40)
	writePayload(h, payload)
	return h.finalize()
}

// ComputeNoticeHash hashes a notice's payload: a fixed 0x20 offset word
// followed by the length-prefixed, right-padded payload.
func ComputeNoticeHash(payload []byte) Hash {
	h := newHasher()
	writeU64(h, 0x20)
	writePayload(h, payload)
	return h.finalize()
}

// Keccak256Concat hashes the concatenation of its operands, used both for
// the pristine Merkle tree's ladder and for the epoch hash formula in
// internal/advance/runner.go.
func Keccak256Concat(parts ...[]byte) Hash {
	h := newHasher()
	for _, p := range parts {
		h.Write(p)
	}
	return h.finalize()
}
