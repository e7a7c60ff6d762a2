package settlement

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is r(32) || s(32) || recovery id(1).
const SignatureLength = crypto.SignatureLength

// Signature is a recoverable secp256k1 signature with a 0/1 recovery id.
type Signature [SignatureLength]byte

var (
	ErrSignatureRecovery = errors.New("unable to recover public key from signature")
	ErrEmptySignature    = errors.New("signature is empty")
)

// IsZero reports whether the signature has never been set.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

func (s Signature) Bytes() []byte {
	return s[:]
}

// Sign signs a 32 byte digest.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	var sig Signature

	raw, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return sig, fmt.Errorf("Sign failed: %w", err)
	}
	copy(sig[:], raw)
	return sig, nil
}

// RecoverAddress recovers the signer address of digest. A 27/28 recovery id is
// accepted and normalised to 0/1.
func RecoverAddress(digest common.Hash, sig Signature) (common.Address, error) {
	if sig.IsZero() {
		return common.Address{}, ErrEmptySignature
	}

	normalised := sig
	if normalised[64] >= 27 {
		normalised[64] -= 27
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalised[:])
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrSignatureRecovery, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// PubkeyToAddress is the last 20 bytes of keccak over the uncompressed public key
// without its prefix byte.
func PubkeyToAddress(pub *ecdsa.PublicKey) common.Address {
	return crypto.PubkeyToAddress(*pub)
}

// KeyAddress returns the address owned by key.
func KeyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
