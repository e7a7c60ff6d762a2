package settlementlog

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/datatrails/go-datatrails-merklelog/mmr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
	"golang.org/x/crypto/sha3"
)

/**
 * Log seals. A seal is a COSE Sign1 message whose payload is the CBOR encoded
 * LogState at the time of sealing.
 */

const LogStateVersion = 1

var (
	ErrIdentityMismatch = errors.New("log state identity does not match the log")
	ErrMissingPeaks     = errors.New("log state carries no peaks")
	ErrStateAhead       = errors.New("log state is ahead of the log")
)

// LogState is the sealed state of one settlement log.
type LogState struct {
	Version     int      `cbor:"1,keyasint"`
	Identity    string   `cbor:"2,keyasint"`
	MMRSize     uint64   `cbor:"3,keyasint"`
	Peaks       [][]byte `cbor:"4,keyasint"`
	HistoryHash []byte   `cbor:"5,keyasint,omitempty"`
}

// State captures the current log state. historyHash is the folded digest of
// the evicted settlement hashes, zero while nothing has been evicted.
func (l *Log) State(historyHash common.Hash) (*LogState, error) {
	peaks, err := l.Peaks()
	if err != nil {
		return nil, fmt.Errorf("State failed: %w", err)
	}

	state := &LogState{
		Version:  LogStateVersion,
		Identity: l.identity,
		MMRSize:  l.store.Size(),
		Peaks:    peaks,
	}
	if historyHash != (common.Hash{}) {
		state.HistoryHash = historyHash.Bytes()
	}
	return state, nil
}

// Seal signs state with an ES256 key.
func Seal(state *LogState, key *ecdsa.PrivateKey) ([]byte, error) {
	payload, err := cbor.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("Seal failed: unable to cbor encode log state: %w", err)
	}

	signer, err := cose.NewSigner(cose.AlgorithmES256, key)
	if err != nil {
		return nil, fmt.Errorf("Seal failed: %w", err)
	}

	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: cose.AlgorithmES256,
			cose.HeaderLabelKeyID:     []byte(state.Identity),
		},
	}

	sealed, err := cose.Sign1(rand.Reader, signer, headers, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("Seal failed: %w", err)
	}
	return sealed, nil
}

// VerifySeal checks the seal signature and returns the sealed state.
func VerifySeal(sealed []byte, pub *ecdsa.PublicKey) (*LogState, error) {
	var msg cose.Sign1Message
	if err := msg.UnmarshalCBOR(sealed); err != nil {
		return nil, fmt.Errorf("VerifySeal failed: %w", err)
	}

	verifier, err := cose.NewVerifier(cose.AlgorithmES256, pub)
	if err != nil {
		return nil, fmt.Errorf("VerifySeal failed: %w", err)
	}
	if err := msg.Verify(nil, verifier); err != nil {
		return nil, fmt.Errorf("VerifySeal failed: %w", err)
	}

	state := &LogState{}
	if err := cbor.Unmarshal(msg.Payload, state); err != nil {
		return nil, fmt.Errorf("VerifySeal failed: unable to cbor decode log state: %w", err)
	}
	return state, nil
}

// VerifyConsistency checks that newer extends older on this log: every node
// committed by older is still in place and newer's peaks match the log.
//
// Seal signatures are not checked here; use VerifySeal first.
func (l *Log) VerifyConsistency(older *LogState, newer *LogState) (bool, error) {
	if older.Identity != l.identity || newer.Identity != l.identity {
		return false, ErrIdentityMismatch
	}
	if len(older.Peaks) == 0 || len(newer.Peaks) == 0 {
		return false, fmt.Errorf("VerifyConsistency failed: %w", ErrMissingPeaks)
	}
	if newer.MMRSize > l.store.Size() {
		return false, fmt.Errorf("VerifyConsistency failed: %w: size %d, log size %d",
			ErrStateAhead, newer.MMRSize, l.store.Size())
	}
	if older.MMRSize > newer.MMRSize {
		return false, nil
	}

	verified, peaks, err := mmr.CheckConsistency(l.store, sha3.NewLegacyKeccak256(), older.MMRSize, newer.MMRSize, older.Peaks)
	if err != nil {
		return false, fmt.Errorf("VerifyConsistency failed: %w", err)
	}
	if !verified || len(peaks) != len(newer.Peaks) {
		return false, nil
	}
	for i := range peaks {
		if !bytes.Equal(peaks[i], newer.Peaks[i]) {
			return false, nil
		}
	}
	return true, nil
}
