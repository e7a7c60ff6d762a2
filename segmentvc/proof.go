package segmentvc

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/**
 * Inclusion proofs. A MerkleProof is verified without the tree that produced it.
 */

// ValueProof binds the raw leaf value to its chunk hash.
type ValueProof struct {
	Value     common.Hash
	ChunkHash common.Hash
}

// SegmentProof carries the other chunk hashes of the leaf's segment, in slot order.
type SegmentProof struct {
	ChunkIndex uint32
	Siblings   []common.Hash
}

// LevelProof carries the other members of the node's fan in group at one level.
type LevelProof struct {
	Level     uint32
	NodeIndex uint32
	Siblings  []common.Hash
}

type MerkleProof struct {
	ValueProof   ValueProof
	SegmentProof SegmentProof
	LevelProofs  []LevelProof
	RootHash     common.Hash
}

// Verify recomputes the root from the leaf value upward and compares it with
// RootHash. A false result with a nil error means the proof is well formed but
// does not reproduce the root. Malformed index data returns ErrInvalidProof.
func (p *MerkleProof) Verify() (bool, error) {
	chunk := crypto.Keccak256Hash(p.ValueProof.Value.Bytes())
	if chunk != p.ValueProof.ChunkHash {
		return false, nil
	}

	// a lone chunk committed directly as the root
	if len(p.SegmentProof.Siblings) == 0 && p.RootHash == chunk {
		return true, nil
	}

	current, err := foldGroup(chunk, int(p.SegmentProof.ChunkIndex), p.SegmentProof.Siblings)
	if err != nil {
		return false, invalidProof("segment: %v", err)
	}

	for _, level := range p.LevelProofs {
		current, err = foldGroup(current, int(level.NodeIndex), level.Siblings)
		if err != nil {
			return false, invalidProof("level %d: %v", level.Level, err)
		}
	}

	return current == p.RootHash, nil
}

// Leaf returns the proven value. Callers compare it with the value they expect.
func (p *MerkleProof) Leaf() common.Hash {
	return p.ValueProof.Value
}

// foldGroup places node at index among siblings and hashes the group.
func foldGroup(node common.Hash, index int, siblings []common.Hash) (common.Hash, error) {
	size := len(siblings) + 1
	if index < 0 || index >= size {
		return common.Hash{}, ErrIndexOutOfBounds
	}

	group := make([]common.Hash, 0, size)
	group = append(group, siblings[:index]...)
	group = append(group, node)
	group = append(group, siblings[index:]...)

	return hashConcat(group), nil
}
