package signer

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/crypto"
)

// parseKMSPublicKey decodes the DER SubjectPublicKeyInfo KMS returns from
// GetPublicKey into an ECDSA public key.
func parseKMSPublicKey(der []byte) (*ecdsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse PKIX public key: %w", err)
	}
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("kms key is not an ECDSA public key")
	}
	return ecdsaPub, nil
}

type derSignature struct {
	R *big.Int
	S *big.Int
}

// secp256k1HalfOrder is used to normalize KMS's ECDSA signatures to low-S
// form, which Ethereum's signature validation requires.
var secp256k1HalfOrder = new(big.Int).Rsh(btcec.S256().N, 1)

// recoverableSignature parses KMS's DER-encoded (r, s) signature, forces
// low-S form, and determines the recovery id by trying both candidates and
// checking which recovers expectedPub.
func recoverableSignature(der []byte, expectedPub *ecdsa.PublicKey, hash []byte) ([]byte, error) {
	var sig derSignature
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return nil, fmt.Errorf("parse DER signature: %w", err)
	}

	s := sig.S
	if s.Cmp(secp256k1HalfOrder) > 0 {
		s = new(big.Int).Sub(btcec.S256().N, s)
	}

	rBytes := make([]byte, 32)
	sBytes := make([]byte, 32)
	sig.R.FillBytes(rBytes)
	s.FillBytes(sBytes)

	expectedAddr := crypto.PubkeyToAddress(*expectedPub)
	for recoveryID := byte(0); recoveryID < 2; recoveryID++ {
		candidate := append(append(append([]byte{}, rBytes...), sBytes...), recoveryID)
		recoveredPub, err := crypto.SigToPub(hash, candidate)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*recoveredPub) == expectedAddr {
			return candidate, nil
		}
	}

	return nil, fmt.Errorf("could not determine recovery id for kms signature")
}
