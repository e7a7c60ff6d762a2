package settlement

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// proxyFixture runs the overpay and profit stages for every receiver of receipts.
func proxyFixture(t *testing.T) ([]ProfitResult, *OverpayCheckResult) {
	f := newChannelFixture(t, map[uint64]uint64{1: 5000, 2: 5000})
	receipts := []PaymentSettledByProxy{
		f.receipt(t, 1, 1, 1000, testAddress(0xaa)),
		f.receipt(t, 2, 1, 1000, testAddress(0xaa)),
		f.receipt(t, 1, 2, 2000, testAddress(0xbb)),
		f.receipt(t, 2, 2, 400, testAddress(0xcc)),
	}

	overpay, err := ValidateOverpay(f.proxy, f.infos, receipts)
	require.NoError(t, err)

	var profits []ProfitResult
	for _, receiver := range overpay.Receivers() {
		proof, ok := overpay.MerkleProof(receiver)
		require.True(t, ok)

		result, err := CalculateProfit(ProfitInput{
			Receiver:   receiver,
			Proxy:      f.proxy,
			Receipts:   receiverReceipts(receipts, receiver),
			Proof:      proof,
			PayIdInfos: f.infos,
			FeeConfigs: standardFees,
		})
		require.NoError(t, err)
		profits = append(profits, *result)
	}
	return profits, overpay
}

func TestAggregateSettlement(t *testing.T) {
	profits, overpay := proxyFixture(t)

	result, err := AggregateSettlement(profits, overpay)
	require.NoError(t, err)

	// serv 1: 2000 at 5%/10%, serv 2: 2400 at 0%/25%
	assert.Equal(t, uint64(100), result.SystemProfits.Uint64())
	assert.Equal(t, uint64(200+600), result.ProxyProfits.Uint64())
	assert.Equal(t, uint64(4400), result.Amount.Uint64())

	assert.Equal(t, profits[0].Proxy, result.Proxy)
	assert.Equal(t, overpay.PayIdsRoot, result.PayIdsRoot)
	assert.Equal(t, overpay.PaymentsRoot, result.ReceiptsRoot)
	assert.Equal(t, ServIdsDigest(standardFees), result.ServIdsRoot)

	assert.True(t, result.VerifySettlementID(overpay.PaymentsRoot))
	assert.False(t, result.VerifySettlementID(common.HexToHash("0x01")))
}

func TestProxySettlementResult_SettlementID(t *testing.T) {
	base := ProxySettlementResult{
		Proxy:         testAddress(1),
		PayIdsRoot:    common.HexToHash("0x02"),
		ServIdsRoot:   common.HexToHash("0x03"),
		ReceiptsRoot:  common.HexToHash("0x04"),
		SystemProfits: *uint256.NewInt(5),
		ProxyProfits:  *uint256.NewInt(6),
		Amount:        *uint256.NewInt(7),
	}
	base.BuildSettlementID()
	require.True(t, base.VerifySettlementID(base.ReceiptsRoot))

	tests := []struct {
		name   string
		mutate func(r *ProxySettlementResult)
	}{
		{name: "proxy", mutate: func(r *ProxySettlementResult) { r.Proxy = testAddress(9) }},
		{name: "pay ids root", mutate: func(r *ProxySettlementResult) { r.PayIdsRoot = common.HexToHash("0x09") }},
		{name: "serv ids root", mutate: func(r *ProxySettlementResult) { r.ServIdsRoot = common.HexToHash("0x09") }},
		{name: "system profits", mutate: func(r *ProxySettlementResult) { r.SystemProfits = *uint256.NewInt(9) }},
		{name: "proxy profits", mutate: func(r *ProxySettlementResult) { r.ProxyProfits = *uint256.NewInt(9) }},
		{name: "amount", mutate: func(r *ProxySettlementResult) { r.Amount = *uint256.NewInt(9) }},
		{name: "receipts root", mutate: func(r *ProxySettlementResult) { r.ReceiptsRoot = common.HexToHash("0x09") }},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			changed := base
			test.mutate(&changed)

			assert.False(t, changed.VerifySettlementID(changed.ReceiptsRoot))
			changed.BuildSettlementID()
			assert.NotEqual(t, base.SettlementID, changed.SettlementID)
		})
	}
}

func TestAggregateSettlement_Errors(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(profits []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult)
		expectedErr error
	}{
		{
			name: "no profit results",
			mutate: func(_ []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				return nil, overpay
			},
			expectedErr: ErrEmptyInput,
		},
		{
			name: "no overpay result",
			mutate: func(profits []ProfitResult, _ *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				return profits, nil
			},
			expectedErr: ErrEmptyInput,
		},
		{
			name: "mixed proxies",
			mutate: func(profits []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				profits[1].Proxy = testAddress(0x01)
				return profits, overpay
			},
			expectedErr: ErrInconsistent,
		},
		{
			name: "mixed pay ids roots",
			mutate: func(profits []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				profits[2].PayIdsRoot = common.HexToHash("0x01")
				return profits, overpay
			},
			expectedErr: ErrInconsistent,
		},
		{
			name: "mixed receipts roots",
			mutate: func(profits []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				profits[1].ReceiptsRoot = common.HexToHash("0x01")
				return profits, overpay
			},
			expectedErr: ErrInconsistent,
		},
		{
			name: "overpay pay ids root",
			mutate: func(profits []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				changed := *overpay
				changed.PayIdsRoot = common.HexToHash("0x01")
				return profits, &changed
			},
			expectedErr: ErrRootMismatch,
		},
		{
			name: "overpay payments root",
			mutate: func(profits []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				changed := *overpay
				changed.PaymentsRoot = common.HexToHash("0x01")
				return profits, &changed
			},
			expectedErr: ErrRootMismatch,
		},
		{
			name: "profit overflow",
			mutate: func(profits []ProfitResult, overpay *OverpayCheckResult) ([]ProfitResult, *OverpayCheckResult) {
				profits[0].SystemProfit.SetAllOne()
				return profits, overpay
			},
			expectedErr: ErrOverflow,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			profits, overpay := proxyFixture(t)
			require.Len(t, profits, 3)

			profits, overpay = test.mutate(profits, overpay)

			result, err := AggregateSettlement(profits, overpay)
			assert.ErrorIs(t, err, test.expectedErr)
			assert.Nil(t, result)
		})
	}
}
