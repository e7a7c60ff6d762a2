package settlementlog

import (
	"errors"
	"fmt"

	"github.com/datatrails/go-datatrails-merklelog/mmr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

/**
 * Append-only settlement logs. Each proxy and each receiver owns one MMR of
 * settlement hashes; interior nodes and leaves are keccak256.
 */

// LeafType provides domain separation between the leaves of the two log kinds.
type LeafType uint8

const (
	// LeafTypeProxySettlement commits to a proxy settlement hash.
	LeafTypeProxySettlement LeafType = iota + 1
	// LeafTypeReceiverSettlement commits to a receiver settlement hash.
	LeafTypeReceiverSettlement
)

// logNamespace is the uuid v5 namespace of log identities.
var logNamespace = uuid.MustParse("5d3c51a4-7f1e-4b8e-9a43-1c6f2a0e8b57")

var (
	ErrEmptyLog = errors.New("log is empty")
)

// LeafHash is keccak(leafType || data).
func LeafHash(leafType LeafType, data []byte) common.Hash {
	return crypto.Keccak256Hash([]byte{byte(leafType)}, data)
}

// LogIdentity is `<kind>/<uuid>`, the uuid derived from the address.
func LogIdentity(kind string, addr common.Address) string {
	return fmt.Sprintf("%s/%s", kind, uuid.NewSHA1(logNamespace, addr.Bytes()).String())
}

// Log is the MMR of one address. Proofs, verification and peaks may be read
// concurrently; Append must not run alongside any other call.
type Log struct {
	identity string
	leafType LeafType
	store    *nodeStore
	leaves   uint64
}

// NewProxyLog opens the settlement log of proxy in the configured store.
func NewProxyLog(proxy common.Address, options ...Option) (*Log, error) {
	return openLog(LogIdentity("proxy", proxy), LeafTypeProxySettlement, ParseOptions(options...))
}

// NewReceiverLog opens the settlement log of receiver in the configured store.
func NewReceiverLog(receiver common.Address, options ...Option) (*Log, error) {
	return openLog(LogIdentity("receiver", receiver), LeafTypeReceiverSettlement, ParseOptions(options...))
}

func openLog(identity string, leafType LeafType, opts Options) (*Log, error) {
	store, err := openNodeStore(opts.store, "mmr/"+identity+"/")
	if err != nil {
		return nil, fmt.Errorf("openLog failed: %s: %w", identity, err)
	}

	l := &Log{
		identity: identity,
		leafType: leafType,
		store:    store,
	}

	// count the leaves of a reopened log
	for leafIndex := uint64(0); mmr.MMRIndex(leafIndex) < store.Size(); leafIndex++ {
		l.leaves++
	}
	return l, nil
}

func (l *Log) Identity() string { return l.identity }

// Size is the number of MMR nodes.
func (l *Log) Size() uint64 { return l.store.Size() }

func (l *Log) LeafCount() uint64 { return l.leaves }

// Append adds a settlement hash and returns the mmr index of its leaf.
func (l *Log) Append(settlementHash common.Hash) (uint64, error) {
	mmrIndex := l.store.Size()
	leaf := LeafHash(l.leafType, settlementHash.Bytes())

	if _, err := mmr.AddHashedLeaf(l.store, sha3.NewLegacyKeccak256(), leaf.Bytes()); err != nil {
		return 0, fmt.Errorf("Append failed: %s: %w", l.identity, err)
	}
	l.leaves++
	return mmrIndex, nil
}

// InclusionProof proves the leaf at leafIndex against the current size.
func (l *Log) InclusionProof(leafIndex uint64) ([][]byte, error) {
	if leafIndex >= l.leaves {
		return nil, fmt.Errorf("InclusionProof failed: %w: leaf %d of %d", ErrNodeNotFound, leafIndex, l.leaves)
	}
	proof, err := mmr.InclusionProof(l.store, l.store.Size()-1, mmr.MMRIndex(leafIndex))
	if err != nil {
		return nil, fmt.Errorf("InclusionProof failed: %w", err)
	}
	return proof, nil
}

// VerifyInclusion checks that settlementHash is the leaf at leafIndex.
func (l *Log) VerifyInclusion(leafIndex uint64, settlementHash common.Hash, proof [][]byte) (bool, error) {
	if leafIndex >= l.leaves {
		return false, nil
	}

	leaf := LeafHash(l.leafType, settlementHash.Bytes())
	verified, err := mmr.VerifyInclusion(l.store, sha3.NewLegacyKeccak256(), l.store.Size(), leaf.Bytes(), mmr.MMRIndex(leafIndex), proof)
	if errors.Is(err, mmr.ErrVerifyInclusionFailed) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("VerifyInclusion failed: %w", err)
	}
	return verified, nil
}

// Peaks returns the peak hashes of the current MMR, highest first.
func (l *Log) Peaks() ([][]byte, error) {
	if l.store.Size() == 0 {
		return nil, ErrEmptyLog
	}
	return mmr.PeakHashes(l.store, l.store.Size()-1)
}
