package signer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tyler-smith/go-bip39"
)

const testMnemonic = "test test test test test test test test test test test junk"

func writeMnemonicFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mnemonic.txt")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write mnemonic file: %v", err)
	}
	return path
}

func TestNewMnemonicSignerIsDeterministic(t *testing.T) {
	path := writeMnemonicFile(t, testMnemonic)

	a, err := NewMnemonicSigner(path, 0)
	if err != nil {
		t.Fatalf("derive signer a: %v", err)
	}
	b, err := NewMnemonicSigner(path, 0)
	if err != nil {
		t.Fatalf("derive signer b: %v", err)
	}

	if a.Address() != b.Address() {
		t.Fatalf("expected deterministic address for the same mnemonic and index, got %s and %s", a.Address(), b.Address())
	}
}

func TestNewMnemonicSignerVariesByAccountIndex(t *testing.T) {
	path := writeMnemonicFile(t, testMnemonic)

	a, err := NewMnemonicSigner(path, 0)
	if err != nil {
		t.Fatalf("derive account 0: %v", err)
	}
	b, err := NewMnemonicSigner(path, 1)
	if err != nil {
		t.Fatalf("derive account 1: %v", err)
	}

	if a.Address() == b.Address() {
		t.Fatalf("expected distinct addresses for distinct account indices")
	}
}

func TestNewMnemonicSignerRejectsInvalidMnemonic(t *testing.T) {
	path := writeMnemonicFile(t, "not a valid bip39 mnemonic at all")
	if _, err := NewMnemonicSigner(path, 0); err == nil {
		t.Fatalf("expected error for an invalid mnemonic")
	}
}

func TestTestMnemonicIsValidBIP39(t *testing.T) {
	if !bip39.IsMnemonicValid(testMnemonic) {
		t.Fatalf("expected the well-known test mnemonic to be valid BIP-39")
	}
}
