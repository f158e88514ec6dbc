package rollupstypes

import (
	"encoding/binary"
	"math/big"
)

// OutputPosition is the on-chain-packed (output_index, input_index, epoch)
// triple attached to each raw output log.
//
// The packing format documented alongside the original source claims
// output_index*2^128 + input_index*2^64 + epoch, but the actual unpacking
// code reads big-endian bytes [8:16) and [16:24) of the 32-byte position and
// assigns the first to its *input_index* return slot and the second to its
// *output_index* return slot — the reverse of what the local variable names
// in that code suggest. This type matches the values callers actually
// receive, not the variable names.
type OutputPosition struct {
	InputIndex  uint64
	OutputIndex uint64
	Epoch       uint64
}

// DecodeOutputPosition unpacks a 256-bit big-endian output position into its
// three 64-bit fields.
func DecodeOutputPosition(position *big.Int) OutputPosition {
	var posBytes [32]byte
	position.FillBytes(posBytes[:])

	return OutputPosition{
		InputIndex:  binary.BigEndian.Uint64(posBytes[8:16]),
		OutputIndex: binary.BigEndian.Uint64(posBytes[16:24]),
		Epoch:       binary.BigEndian.Uint64(posBytes[24:32]),
	}
}
