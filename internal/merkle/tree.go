package merkle

import "fmt"

// PristineTree is a Merkle tree where every leaf is zero, grounded on
// host-runner/src/merkle_tree/pristine.rs. It precomputes one hash per
// power-of-two subtree size between log2WordSize and log2RootSize.
type PristineTree struct {
	log2RootSize int
	log2WordSize int
	hashes       []Hash
}

// NewPristineTree builds a pristine tree spanning 2^log2RootSize bytes,
// whose individual words are 2^log2WordSize bytes wide.
func NewPristineTree(log2RootSize, log2WordSize int) (*PristineTree, error) {
	if log2WordSize > log2RootSize {
		return nil, fmt.Errorf("merkle: word size greater than root size")
	}

	numHashes := log2RootSize - log2WordSize + 1
	hashes := make([]Hash, 0, numHashes)

	word := make([]byte, 1<<uint(log2WordSize))
	hashes = append(hashes, Keccak256Concat(word))

	for i := 1; i < numHashes; i++ {
		prev := hashes[i-1]
		hashes = append(hashes, Keccak256Concat(prev[:], prev[:]))
	}

	return &PristineTree{
		log2RootSize: log2RootSize,
		log2WordSize: log2WordSize,
		hashes:       hashes,
	}, nil
}

// GetHash returns the hash of the pristine subtree spanning 2^log2Size
// bytes.
func (t *PristineTree) GetHash(log2Size int) (Hash, error) {
	if log2Size < t.log2WordSize || log2Size > t.log2RootSize {
		return Hash{}, fmt.Errorf("merkle: log2 size %d out of range [%d, %d]", log2Size, t.log2WordSize, t.log2RootSize)
	}
	return t.hashes[log2Size-t.log2WordSize], nil
}
