package merkle

import (
	"encoding/hex"
	"testing"
)

func decodeHash(t *testing.T, s string) Hash {
	t.Helper()
	raw, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("decode hash: %v", err)
	}
	var h Hash
	copy(h[:], raw)
	return h
}

func TestComputeVoucherHash(t *testing.T) {
	destination, err := hex.DecodeString("5555555555555555555555555555555555555555")
	if err != nil {
		t.Fatalf("decode destination: %v", err)
	}
	got := ComputeVoucherHash(destination, []byte("hello world"))
	want := decodeHash(t, "61a61380d2a3b5e2b09a5ff259a2e1048da1989bdd6d6ecc69594cfbedc01278")
	if got != want {
		t.Errorf("voucher hash = %x, want %x", got, want)
	}
}

func TestComputeNoticeHash(t *testing.T) {
	got := ComputeNoticeHash([]byte("hello world"))
	want := decodeHash(t, "d9f29a4e347ad89dc70490124ee6975fbc0693c7e72d6bc383673bfd0e8841f2")
	if got != want {
		t.Errorf("notice hash = %x, want %x", got, want)
	}
}

func TestEpochHashFormula(t *testing.T) {
	var h [32]byte
	for i := range h {
		h[i] = 0xff
	}
	got := Keccak256Concat(h[:], h[:], h[:])
	want := decodeHash(t, "8590bbc3ea43e28e8624fb1a2d59aaca701a5517e08511c4a14d9037de6f6086")
	if got != want {
		t.Errorf("epoch hash = %x, want %x", got, want)
	}
}

func TestPristineTreeRootEqualsWord(t *testing.T) {
	tree, err := NewPristineTree(5, 5)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	got, err := tree.GetHash(5)
	if err != nil {
		t.Fatalf("get hash: %v", err)
	}
	want := decodeHash(t, "290decd9548b62a8d60345a988386fc84ba6bc95484008f6362f93160ef3e563")
	if got != want {
		t.Errorf("pristine root = %x, want %x", got, want)
	}
}

func TestPristineTreeRejectsWordLargerThanRoot(t *testing.T) {
	if _, err := NewPristineTree(2, 3); err == nil {
		t.Fatalf("expected error when word size exceeds root size")
	}
}

func TestPristineTreeRejectsOutOfRangeSize(t *testing.T) {
	tree, err := NewPristineTree(5, 3)
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	if _, err := tree.GetHash(6); err == nil {
		t.Fatalf("expected error for size greater than root")
	}
	if _, err := tree.GetHash(2); err == nil {
		t.Fatalf("expected error for size smaller than word")
	}
}
