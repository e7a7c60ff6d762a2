package segmentvc

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provenLeaf(t *testing.T) *MerkleProof {
	leaves := testLeaves(40)
	vc := New()
	_, err := vc.InsertBatch(leaves)
	require.NoError(t, err)

	proof, err := vc.GenerateProof(leaves[20].Key)
	require.NoError(t, err)
	return proof
}

func TestMerkleProof_Verify(t *testing.T) {
	tamper := crypto.Keccak256Hash([]byte("tamper"))

	tests := []struct {
		name        string
		mutate      func(p *MerkleProof)
		expected    bool
		expectedErr error
	}{
		{
			name:     "untouched",
			mutate:   func(p *MerkleProof) {},
			expected: true,
		},
		{
			name:     "value swapped",
			mutate:   func(p *MerkleProof) { p.ValueProof.Value = tamper },
			expected: false,
		},
		{
			name: "value and chunk swapped",
			mutate: func(p *MerkleProof) {
				p.ValueProof.Value = tamper
				p.ValueProof.ChunkHash = crypto.Keccak256Hash(tamper.Bytes())
			},
			expected: false,
		},
		{
			name:     "segment sibling swapped",
			mutate:   func(p *MerkleProof) { p.SegmentProof.Siblings[0] = tamper },
			expected: false,
		},
		{
			name:     "chunk index moved",
			mutate:   func(p *MerkleProof) { p.SegmentProof.ChunkIndex = 0 },
			expected: false,
		},
		{
			name:     "root swapped",
			mutate:   func(p *MerkleProof) { p.RootHash = tamper },
			expected: false,
		},
		{
			name:     "level sibling swapped",
			mutate:   func(p *MerkleProof) { p.LevelProofs[0].Siblings[0] = tamper },
			expected: false,
		},
		{
			name:        "chunk index out of range",
			mutate:      func(p *MerkleProof) { p.SegmentProof.ChunkIndex = 99 },
			expectedErr: ErrInvalidProof,
		},
		{
			name:        "node index out of range",
			mutate:      func(p *MerkleProof) { p.LevelProofs[0].NodeIndex = 99 },
			expectedErr: ErrInvalidProof,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			proof := provenLeaf(t)
			test.mutate(proof)

			verified, err := proof.Verify()
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				assert.False(t, verified)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, verified)
		})
	}
}

func TestMerkleProof_VerifyLoneChunk(t *testing.T) {
	value := common.HexToHash("0x1234")
	chunk := crypto.Keccak256Hash(value.Bytes())

	proof := MerkleProof{
		ValueProof: ValueProof{Value: value, ChunkHash: chunk},
		RootHash:   chunk,
	}

	verified, err := proof.Verify()
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestTreeError_Is(t *testing.T) {
	err := &TreeError{Kind: HistoryStore, Reason: "invalid hash"}

	assert.ErrorIs(t, err, ErrHistoryStore)
	assert.NotErrorIs(t, err, ErrInvalidProof)
	assert.Equal(t, "history store error: invalid hash", err.Error())
	assert.Equal(t, "key not found", ErrKeyNotFound.Error())
}
