package integrationsupport

import (
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// StandardFees charges 5% system and 10% proxy on service 1, and 25% proxy
// only on service 2.
func StandardFees() []settlement.ServiceFeeConfig {
	return []settlement.ServiceFeeConfig{
		{ServID: 1, SystemFeeRate: 500, ProxyFeeRate: 1000},
		{ServID: 2, SystemFeeRate: 0, ProxyFeeRate: 2500},
	}
}

// Scenario is one proxy channel with its receipts already validated.
type Scenario struct {
	Channel   *Channel
	Receivers []common.Address
	Receipts  []settlement.PaymentSettledByProxy
	Fees      []settlement.ServiceFeeConfig
	Overpay   *settlement.OverpayCheckResult
}

// SetupScenario creates a channel of three pay ids funded with 1000 each and
// receiptCount unit receipts spread over three receivers and both standard
// services, then runs the overpay check over them.
func SetupScenario(g *TestGenerator, proxyLabel string, receiptCount int) Scenario {
	s := Scenario{
		Channel: g.NewChannel(proxyLabel, 1000, 1000, 1000),
		Receivers: []common.Address{
			g.Address(proxyLabel + "/receiver/a"),
			g.Address(proxyLabel + "/receiver/b"),
			g.Address(proxyLabel + "/receiver/c"),
		},
		Fees: StandardFees(),
	}
	s.Receipts = s.Channel.GenerateReceipts(receiptCount, s.Receivers, []uint32{1, 2})

	overpay, err := settlement.ValidateOverpay(s.Channel.Proxy, s.Channel.PayIdInfos, s.Receipts)
	require.NoError(g.T, err)
	s.Overpay = overpay
	return s
}

// ProfitInputFor assembles the profit stage input of receiver. ok is false
// when the scenario has no receipts for receiver.
func (s *Scenario) ProfitInputFor(receiver common.Address) (settlement.ProfitInput, bool) {
	proof, ok := s.Overpay.MerkleProof(receiver)
	if !ok {
		return settlement.ProfitInput{}, false
	}
	return settlement.ProfitInput{
		Receiver:   receiver,
		Proxy:      s.Channel.Proxy,
		Receipts:   ReceiptsFor(s.Receipts, receiver),
		Proof:      proof,
		PayIdInfos: s.Channel.PayIdInfos,
		FeeConfigs: s.Fees,
	}, true
}
