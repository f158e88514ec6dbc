package merkle

import "fmt"

// CompleteTree is a Merkle tree over a caller-supplied, possibly-partial
// list of leaves, with every missing leaf/subtree treated as pristine
// (all-zero). `complete_tree/*.rs` was not present in the retrieved
// original sources, so this type is built directly against the pristine-
// tree/proof contract documented in pristine.rs/proof.rs rather than a
// specific missing file: pad every absent sibling with the precomputed
// PristineTree hash for that subtree's size, same as the real machine's
// epoch output tree does when an epoch's input/output count isn't a power
// of two.
type CompleteTree struct {
	levels       [][]Hash // levels[0] is the caller's leaves; levels[len-1] has one root element
	log2WordSize int
}

// NewCompleteTree folds leaves bottom-up into a tree spanning 2^log2RootSize
// leaf-words of 2^log2WordSize bytes each, using pristine to pad every
// missing sibling.
func NewCompleteTree(leaves []Hash, log2RootSize, log2WordSize int) (*CompleteTree, error) {
	if log2WordSize > log2RootSize {
		return nil, fmt.Errorf("merkle: word size greater than root size")
	}
	maxLeaves := 1 << uint(log2RootSize-log2WordSize)
	if len(leaves) > maxLeaves {
		return nil, fmt.Errorf("merkle: %d leaves exceed capacity %d", len(leaves), maxLeaves)
	}

	pristine, err := NewPristineTree(log2RootSize, log2WordSize)
	if err != nil {
		return nil, err
	}

	levels := make([][]Hash, 0, log2RootSize-log2WordSize+1)
	cur := append([]Hash(nil), leaves...)
	levels = append(levels, cur)

	for log2Size := log2WordSize; log2Size < log2RootSize; log2Size++ {
		padHash, err := pristine.GetHash(log2Size)
		if err != nil {
			return nil, err
		}
		next := make([]Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			left := cur[i]
			right := padHash
			if i+1 < len(cur) {
				right = cur[i+1]
			}
			next = append(next, Keccak256Concat(left[:], right[:]))
		}
		if len(cur) == 0 {
			// Every level above an empty leaf set stays empty until the
			// root, which collapses to the pristine hash at that size.
			next = nil
		}
		levels = append(levels, next)
		cur = next
	}

	return &CompleteTree{levels: levels, log2WordSize: log2WordSize}, nil
}

// Root returns the tree's root hash.
func (t *CompleteTree) Root() (Hash, error) {
	top := t.levels[len(t.levels)-1]
	if len(top) == 1 {
		return top[0], nil
	}
	log2RootSize := t.log2WordSize + len(t.levels) - 1
	pristine, err := NewPristineTree(log2RootSize, t.log2WordSize)
	if err != nil {
		return Hash{}, err
	}
	return pristine.GetHash(log2RootSize)
}

// ProofFor returns the sibling hashes from leafIndex's own level up to (but
// excluding) the root, bottom-to-top — the SiblingHashes a Proof expects.
func (t *CompleteTree) ProofFor(leafIndex uint64) ([]Hash, error) {
	log2RootSize := t.log2WordSize + len(t.levels) - 1
	pristine, err := NewPristineTree(log2RootSize, t.log2WordSize)
	if err != nil {
		return nil, err
	}

	siblings := make([]Hash, 0, len(t.levels)-1)
	idx := leafIndex
	for level := 0; level < len(t.levels)-1; level++ {
		nodes := t.levels[level]
		siblingIdx := idx ^ 1
		if siblingIdx < uint64(len(nodes)) {
			siblings = append(siblings, nodes[siblingIdx])
		} else {
			padHash, err := pristine.GetHash(t.log2WordSize + level)
			if err != nil {
				return nil, err
			}
			siblings = append(siblings, padHash)
		}
		idx /= 2
	}
	return siblings, nil
}
