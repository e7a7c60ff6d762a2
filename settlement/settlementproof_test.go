package settlement

import (
	"testing"

	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementProof_Verify(t *testing.T) {
	proxy := testAddress(0x11)
	start := common.HexToHash("0x5151")
	ids := []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02"), common.HexToHash("0x03")}

	final := start
	for _, id := range ids {
		final = ChainHash(final, id.Bytes())
	}

	tree := segmentvc.New()
	_, err := tree.Insert(AddressToHash(testAddress(0x22)), common.HexToHash("0x99"))
	require.NoError(t, err)
	_, err = tree.Insert(AddressToHash(proxy), final)
	require.NoError(t, err)

	proof, err := tree.GenerateProof(AddressToHash(proxy))
	require.NoError(t, err)

	tests := []struct {
		name        string
		proof       SettlementProof
		expected    bool
		expectedErr error
	}{
		{
			name:     "positive",
			proof:    SettlementProof{Proxy: proxy, StartHistoryHash: start, SettlementIDs: ids, Proof: proof},
			expected: true,
		},
		{
			name:        "missing id",
			proof:       SettlementProof{Proxy: proxy, StartHistoryHash: start, SettlementIDs: ids[:2], Proof: proof},
			expectedErr: ErrRootMismatch,
		},
		{
			name:        "wrong start",
			proof:       SettlementProof{Proxy: proxy, SettlementIDs: ids, Proof: proof},
			expectedErr: ErrRootMismatch,
		},
		{
			name:        "no proof",
			proof:       SettlementProof{Proxy: proxy, StartHistoryHash: start, SettlementIDs: ids},
			expectedErr: ErrProofMismatch,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			verified, err := test.proof.Verify()
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				assert.False(t, verified)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, verified)
		})
	}

	assert.Equal(t, final, (&SettlementProof{StartHistoryHash: start, SettlementIDs: ids}).FinalHash())
}
