package settlement

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateOverpay(t *testing.T) {
	f := newChannelFixture(t, map[uint64]uint64{1: 1000, 2: 500})
	receiver := testAddress(0xaa)

	tests := []struct {
		name        string
		mutate      func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy)
		expectedErr error
	}{
		{
			name: "positive",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				return infos, receipts
			},
		},
		{
			name: "no receipts",
			mutate: func(infos []PayIdInfo, _ []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				return infos, nil
			},
			expectedErr: ErrEmptyInput,
		},
		{
			name: "no receipts and a pay id of another proxy",
			mutate: func(infos []PayIdInfo, _ []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				infos[0].Proxy = testAddress(0x01)
				return infos, nil
			},
			expectedErr: ErrChannelMismatch,
		},
		{
			name: "pay id of another proxy",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				infos[1].Proxy = testAddress(0x01)
				return infos, receipts
			},
			expectedErr: ErrChannelMismatch,
		},
		{
			name: "channel checked before settlement",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				infos[0].Proxy = testAddress(0x01)
				receipts[0].Settled = false
				return infos, receipts
			},
			expectedErr: ErrChannelMismatch,
		},
		{
			name: "unsettled receipt",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				receipts[2].Settled = false
				return infos, receipts
			},
			expectedErr: ErrUnsettled,
		},
		{
			name: "duplicate receipt",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				return infos, append(receipts, receipts[0])
			},
			expectedErr: ErrDuplicateReceipt,
		},
		{
			name: "duplicate checked before overpayment",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				infos[0].Amount = *uint256.NewInt(1)
				return infos, append(receipts, receipts[1])
			},
			expectedErr: ErrDuplicateReceipt,
		},
		{
			name: "unknown pay id",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				return infos[:1], receipts
			},
			expectedErr: ErrUnknownPayId,
		},
		{
			name: "overpayment",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				infos[1].Amount = *uint256.NewInt(499)
				return infos, receipts
			},
			expectedErr: ErrOverpayment,
		},
		{
			name: "sum overflow",
			mutate: func(infos []PayIdInfo, receipts []PaymentSettledByProxy) ([]PayIdInfo, []PaymentSettledByProxy) {
				allOnes := new(uint256.Int).SetAllOne()
				receipts[0].Amount = *allOnes
				receipts[1].Amount = *allOnes
				return infos, receipts
			},
			expectedErr: ErrOverflow,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			infos := append([]PayIdInfo{}, f.infos...)
			receipts := []PaymentSettledByProxy{
				f.receipt(t, 1, 1, 600, receiver),
				f.receipt(t, 1, 2, 400, receiver),
				f.receipt(t, 2, 1, 500, testAddress(0xbb)),
			}
			infos, receipts = test.mutate(infos, receipts)

			result, err := ValidateOverpay(f.proxy, infos, receipts)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				assert.Nil(t, result)
				return
			}

			require.NoError(t, err)
			assert.Len(t, result.ReceiverProofs, 2)

			expectedPayIds, err := CanonicalizePayIds(infos)
			require.NoError(t, err)
			assert.Equal(t, expectedPayIds, result.PayIdsRoot)

			proof, ok := result.MerkleProof(receiver)
			require.True(t, ok)
			assert.Equal(t, result.PaymentsRoot, proof.RootHash)

			_, ok = result.MerkleProof(testAddress(0xcc))
			assert.False(t, ok)
		})
	}
}

func TestValidateOverpay_Boundary(t *testing.T) {
	f := newChannelFixture(t, map[uint64]uint64{1: 1000})

	tests := []struct {
		name        string
		amounts     []uint64
		expectedErr error
	}{
		{name: "exactly the pay id amount", amounts: []uint64{600, 400}},
		{name: "one unit over", amounts: []uint64{600, 401}, expectedErr: ErrOverpayment},
		{name: "single receipt at the limit", amounts: []uint64{1000}},
		{name: "single receipt over", amounts: []uint64{1001}, expectedErr: ErrOverpayment},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var receipts []PaymentSettledByProxy
			for i, amount := range test.amounts {
				receipts = append(receipts, f.receipt(t, 1, uint32(i+1), amount, testAddress(0xaa)))
			}

			_, err := ValidateOverpay(f.proxy, f.infos, receipts)
			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOverpayCheckResult_Receivers(t *testing.T) {
	f, receipts := groupedFixture(t)

	result, err := ValidateOverpay(f.proxy, f.infos, receipts)
	require.NoError(t, err)

	assert.Equal(t, []common.Address{testAddress(0xaa), testAddress(0xbb), testAddress(0xcc)}, result.Receivers())
}
