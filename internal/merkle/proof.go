package merkle

import "fmt"

// Proof holds a proof that the node spanning 2^Log2TargetSize bytes at
// TargetAddress in the tree has TargetHash, grounded on
// host-runner/src/merkle_tree/proof.rs.
//
// log2_size_to_index exists in two incompatible variants across the
// original sources (host-runner and host-server-manager); this type follows
// the host-runner variant, which bounds-checks both
// log2_target_size <= log2_size < log2_root_size (see DESIGN.md).
type Proof struct {
	TargetAddress  uint64
	Log2TargetSize int
	TargetHash     Hash
	Log2RootSize   int
	RootHash       Hash
	SiblingHashes  []Hash
}

// NewProof allocates a Proof with room for its sibling hashes.
func NewProof(targetAddress uint64, log2TargetSize int, targetHash Hash, log2RootSize int, rootHash Hash) (*Proof, error) {
	if log2TargetSize > log2RootSize {
		return nil, fmt.Errorf("merkle: target size greater than root size")
	}
	return &Proof{
		TargetAddress:  targetAddress,
		Log2TargetSize: log2TargetSize,
		TargetHash:     targetHash,
		Log2RootSize:   log2RootSize,
		RootHash:       rootHash,
		SiblingHashes:  make([]Hash, log2RootSize-log2TargetSize),
	}, nil
}

// log2SizeToIndex converts a subtree size into an index into SiblingHashes.
func (p *Proof) log2SizeToIndex(log2Size int) (int, error) {
	if log2Size >= p.Log2RootSize {
		return 0, fmt.Errorf("merkle: log2 size out of range")
	}
	if log2Size < p.Log2TargetSize {
		return 0, fmt.Errorf("merkle: log2 size out of range")
	}
	index := log2Size - p.Log2TargetSize
	if index >= len(p.SiblingHashes) {
		return 0, fmt.Errorf("merkle: log2 size out of range")
	}
	return index, nil
}

// SetSiblingHash records the sibling hash for the subtree of the given size.
func (p *Proof) SetSiblingHash(hash Hash, log2Size int) error {
	index, err := p.log2SizeToIndex(log2Size)
	if err != nil {
		return err
	}
	p.SiblingHashes[index] = hash
	return nil
}
