package merkle

import "testing"

func leafHash(b byte) Hash {
	var h Hash
	h[31] = b
	return h
}

func TestCompleteTreeRootMatchesPristineWhenEmpty(t *testing.T) {
	tree, err := NewCompleteTree(nil, 4, 2)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	got, err := tree.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	pristine, err := NewPristineTree(4, 2)
	if err != nil {
		t.Fatalf("pristine: %v", err)
	}
	want, err := pristine.GetHash(4)
	if err != nil {
		t.Fatalf("pristine hash: %v", err)
	}
	if got != want {
		t.Errorf("root = %x, want pristine %x", got, want)
	}
}

func TestCompleteTreeSingleLeafRootMatchesManualPadding(t *testing.T) {
	leaves := []Hash{leafHash(1)}
	tree, err := NewCompleteTree(leaves, 4, 2)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	root, err := tree.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	pristine, err := NewPristineTree(4, 2)
	if err != nil {
		t.Fatalf("pristine: %v", err)
	}
	pad2, err := pristine.GetHash(2)
	if err != nil {
		t.Fatalf("pad2: %v", err)
	}
	pad3, err := pristine.GetHash(3)
	if err != nil {
		t.Fatalf("pad3: %v", err)
	}
	level1 := Keccak256Concat(leaves[0][:], pad2[:])
	want := Keccak256Concat(level1[:], pad3[:])

	if root != want {
		t.Errorf("root = %x, want %x", root, want)
	}
}

func TestCompleteTreeProofForMatchesRootWhenRecombined(t *testing.T) {
	leaves := []Hash{leafHash(1), leafHash(2), leafHash(3)}
	tree, err := NewCompleteTree(leaves, 4, 2)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	root, err := tree.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}

	for i, leaf := range leaves {
		siblings, err := tree.ProofFor(uint64(i))
		if err != nil {
			t.Fatalf("proof for %d: %v", i, err)
		}
		node := leaf
		idx := uint64(i)
		for _, sibling := range siblings {
			if idx%2 == 0 {
				node = Keccak256Concat(node[:], sibling[:])
			} else {
				node = Keccak256Concat(sibling[:], node[:])
			}
			idx /= 2
		}
		if node != root {
			t.Errorf("leaf %d: recombined root = %x, want %x", i, node, root)
		}
	}
}
