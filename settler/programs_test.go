package settler

import (
	"bytes"
	"io"
	"testing"

	"github.com/datatrails/go-datatrails-proxysettlement/inputchannel"
	"github.com/datatrails/go-datatrails-proxysettlement/integrationsupport"
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoReceiverChannel pays 1000 on service 1 to receiver a and 2000 on service 2
// to receiver b, from two pay ids of 1500 and 2500.
type twoReceiverChannel struct {
	g        integrationsupport.TestGenerator
	channel  *integrationsupport.Channel
	a, b     common.Address
	receipts []settlement.PaymentSettledByProxy
	fees     []settlement.ServiceFeeConfig
}

func newTwoReceiverChannel(t *testing.T) *twoReceiverChannel {
	f := &twoReceiverChannel{g: integrationsupport.NewTestGenerator(t, 1)}
	f.channel = f.g.NewChannel("proxy", 1500, 2500)
	f.a = f.g.Address("receiver/a")
	f.b = f.g.Address("receiver/b")
	f.receipts = []settlement.PaymentSettledByProxy{
		f.channel.Receipt(1, 1, 1000, f.a),
		f.channel.Receipt(2, 2, 2000, f.b),
	}
	f.fees = integrationsupport.StandardFees()
	return f
}

func (f *twoReceiverChannel) overpayInput() []byte {
	return integrationsupport.OverpayInput(f.channel.Proxy, f.channel.PayIdInfos, f.receipts)
}

func (f *twoReceiverChannel) profitInput(t *testing.T, overpay *settlement.OverpayCheckResult, receiver common.Address) []byte {
	proof, ok := overpay.MerkleProof(receiver)
	require.True(t, ok)
	return integrationsupport.ProfitInput(
		receiver, f.channel.Proxy,
		integrationsupport.ReceiptsFor(f.receipts, receiver),
		proof, f.channel.PayIdInfos, f.fees,
	)
}

func runOK(t *testing.T, program Program, input []byte, options ...ProgramOption) []byte {
	out, err := Run(program, bytes.NewReader(input), options...)
	require.NoError(t, err)
	return out
}

func decodeOverpay(t *testing.T, out []byte) *settlement.OverpayCheckResult {
	record, err := ledger.UnpackOverpayCheckResult(out)
	require.NoError(t, err)
	overpay, err := record.ToOverpayCheckResult()
	require.NoError(t, err)
	return overpay
}

func decodeProfit(t *testing.T, out []byte) *settlement.ProfitResult {
	record, err := ledger.UnpackProfitResult(out)
	require.NoError(t, err)
	profit, err := record.ToProfitResult()
	require.NoError(t, err)
	return profit
}

func TestRunOverpay(t *testing.T) {
	f := newTwoReceiverChannel(t)

	out := runOK(t, ProgramOverpay, f.overpayInput())
	overpay := decodeOverpay(t, out)

	expected, err := settlement.ValidateOverpay(f.channel.Proxy, f.channel.PayIdInfos, f.receipts)
	require.NoError(t, err)

	assert.Equal(t, expected.PaymentsRoot, overpay.PaymentsRoot)
	assert.Equal(t, expected.PayIdsRoot, overpay.PayIdsRoot)
	assert.Equal(t, expected.Receivers(), overpay.Receivers())

	for _, rp := range overpay.ReceiverProofs {
		verified, err := rp.Proof.Verify()
		require.NoError(t, err)
		assert.True(t, verified)
		assert.Equal(t, overpay.PaymentsRoot, rp.Proof.RootHash)
	}
}

func TestRunProfit_Split(t *testing.T) {
	f := newTwoReceiverChannel(t)
	overpay := decodeOverpay(t, runOK(t, ProgramOverpay, f.overpayInput()))

	tests := []struct {
		name     string
		receiver common.Address
		system   uint64
		proxy    uint64
		received uint64
	}{
		{name: "5% system, 10% proxy", receiver: f.a, system: 50, proxy: 100, received: 850},
		{name: "25% proxy only", receiver: f.b, system: 0, proxy: 500, received: 1500},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			profit := decodeProfit(t, runOK(t, ProgramProfit, f.profitInput(t, overpay, test.receiver)))

			assert.Equal(t, test.receiver, profit.Receiver)
			assert.Equal(t, f.channel.Proxy, profit.Proxy)
			assert.Equal(t, overpay.PaymentsRoot, profit.ReceiptsRoot)
			assert.Equal(t, overpay.PayIdsRoot, profit.PayIdsRoot)
			assert.Equal(t, settlement.ServIdsDigest(f.fees), profit.ServIdsRoot)
			assert.Equal(t, test.system, profit.SystemProfit.Uint64())
			assert.Equal(t, test.proxy, profit.ProxyProfit.Uint64())
			assert.Equal(t, test.received, profit.ReceiverProfit.Uint64())
		})
	}
}

func TestRunAggregate(t *testing.T) {
	f := newTwoReceiverChannel(t)
	overpayOut := runOK(t, ProgramOverpay, f.overpayInput())
	overpay := decodeOverpay(t, overpayOut)

	profits := [][]byte{
		runOK(t, ProgramProfit, f.profitInput(t, overpay, f.a)),
		runOK(t, ProgramProfit, f.profitInput(t, overpay, f.b)),
	}

	out := runOK(t, ProgramAggregate, integrationsupport.AggregateInput(profits, overpayOut))
	record, err := ledger.UnpackProxySettlementResult(out)
	require.NoError(t, err)
	result, err := record.ToProxySettlementResult()
	require.NoError(t, err)

	assert.Equal(t, f.channel.Proxy, result.Proxy)
	assert.Equal(t, uint64(50), result.SystemProfits.Uint64())
	assert.Equal(t, uint64(600), result.ProxyProfits.Uint64())
	assert.Equal(t, uint64(3000), result.Amount.Uint64())
	assert.Equal(t, overpay.PaymentsRoot, result.ReceiptsRoot)
	assert.True(t, result.VerifySettlementID(overpay.PaymentsRoot))
}

// chainedProfit is a profit result whose receipts root chains receipts in order,
// the form the receiver program reconciles against.
func chainedProfit(t *testing.T, receiver common.Address, receipts []settlement.PaymentSettledByProxy, received uint64) []byte {
	record := ledger.FromProfitResult(&settlement.ProfitResult{
		Receiver:       receiver,
		Proxy:          common.HexToAddress("0x01"),
		ReceiptsRoot:   settlement.ChainReceiptsRoot(receipts),
		ReceiverProfit: *uint256.NewInt(received),
	})
	out, err := record.Pack()
	require.NoError(t, err)
	return out
}

func TestRunReceiver(t *testing.T) {
	g := integrationsupport.NewTestGenerator(t, 2)
	receiver := g.Address("receiver")

	first := g.NewChannel("proxy/1", 1000)
	second := g.NewChannel("proxy/2", 1000)
	firstReceipts := []settlement.PaymentSettledByProxy{
		first.Receipt(1, 1, 300, receiver),
		first.Receipt(1, 2, 100, receiver),
	}
	secondReceipts := []settlement.PaymentSettledByProxy{
		second.Receipt(1, 1, 500, receiver),
	}

	input := integrationsupport.ReceiverInput(receiver, []integrationsupport.ReceiverProxyInput{
		{Receipts: firstReceipts, Profit: chainedProfit(t, receiver, firstReceipts, 270)},
		{Receipts: secondReceipts, Profit: chainedProfit(t, receiver, secondReceipts, 425)},
	})

	out := runOK(t, ProgramReceiver, input)
	record, err := ledger.UnpackReceiverSettleResult(out)
	require.NoError(t, err)
	result, err := record.ToReceiverSettleResult()
	require.NoError(t, err)

	expectedRoot := settlement.ChainHash(
		settlement.ChainHash(common.Hash{}, settlement.ChainReceiptsRoot(firstReceipts).Bytes()),
		settlement.ChainReceiptsRoot(secondReceipts).Bytes(),
	)
	assert.Equal(t, receiver, result.Receiver)
	assert.Equal(t, uint64(695), result.Profit.Uint64())
	assert.Equal(t, expectedRoot, result.SettlementRoot)
	assert.Equal(t, common.Hash{}, result.VkHash)
}

func TestRun_TreeOptions(t *testing.T) {
	f := newTwoReceiverChannel(t)

	standard := decodeOverpay(t, runOK(t, ProgramOverpay, f.overpayInput()))
	narrow := decodeOverpay(t, runOK(t, ProgramOverpay, f.overpayInput(),
		WithTreeOptions(segmentvc.WithSegmentSize(2), segmentvc.WithNodeWidth(2))))

	assert.Equal(t, standard.Receivers(), narrow.Receivers())
	for _, rp := range narrow.ReceiverProofs {
		verified, err := rp.Proof.Verify()
		require.NoError(t, err)
		assert.True(t, verified)
	}
}

func TestRun_Errors(t *testing.T) {
	f := newTwoReceiverChannel(t)
	overpayOut := runOK(t, ProgramOverpay, f.overpayInput())
	overpay := decodeOverpay(t, overpayOut)
	profitA := runOK(t, ProgramProfit, f.profitInput(t, overpay, f.a))
	proofA, ok := overpay.MerkleProof(f.a)
	require.True(t, ok)

	otherProxy := integrationsupport.OverpayInput(f.g.Address("other"), f.channel.PayIdInfos, f.receipts)
	overpayInput := f.overpayInput()

	tests := []struct {
		name     string
		program  Program
		input    []byte
		expected error
	}{
		{name: "unknown program", program: "settle", input: nil, expected: ErrUnknownProgram},
		{name: "empty input", program: ProgramOverpay, input: nil, expected: io.EOF},
		{name: "truncated input", program: ProgramOverpay, input: overpayInput[:len(overpayInput)-1], expected: io.ErrUnexpectedEOF},
		{name: "trailing input", program: ProgramOverpay, input: append(append([]byte{}, overpayInput...), 0x00), expected: inputchannel.ErrTrailingBytes},
		{name: "channel mismatch", program: ProgramOverpay, input: otherProxy, expected: settlement.ErrChannelMismatch},
		{
			name:    "receipts of another receiver",
			program: ProgramProfit,
			input: integrationsupport.ProfitInput(
				f.b, f.channel.Proxy, integrationsupport.ReceiptsFor(f.receipts, f.a),
				proofA, f.channel.PayIdInfos, f.fees,
			),
			expected: settlement.ErrReceiverMismatch,
		},
		{
			name:     "no profit results",
			program:  ProgramAggregate,
			input:    integrationsupport.AggregateInput(nil, overpayOut),
			expected: settlement.ErrEmptyInput,
		},
		{
			name:     "malformed profit result",
			program:  ProgramAggregate,
			input:    integrationsupport.AggregateInput([][]byte{{0x01, 0x02}}, overpayOut),
			expected: ledger.ErrDecode,
		},
		{
			name:     "grouped root is not a chained root",
			program:  ProgramReceiver,
			input: integrationsupport.ReceiverInput(f.a, []integrationsupport.ReceiverProxyInput{
				{Receipts: integrationsupport.ReceiptsFor(f.receipts, f.a), Profit: profitA},
			}),
			expected: settlement.ErrRootMismatch,
		},
		{
			name:    "profit for another receiver",
			program: ProgramReceiver,
			input: integrationsupport.ReceiverInput(f.b, []integrationsupport.ReceiverProxyInput{
				{Receipts: f.receipts[:1], Profit: chainedProfit(t, f.a, f.receipts[:1], 1)},
			}),
			expected: settlement.ErrReceiverMismatch,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := Run(test.program, bytes.NewReader(test.input))
			assert.ErrorIs(t, err, test.expected)
			assert.Nil(t, out)
		})
	}
}

func TestParseProgram(t *testing.T) {
	for _, p := range Programs() {
		parsed, err := ParseProgram(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := ParseProgram("Overpay")
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestRunProfit_FeeSchedule(t *testing.T) {
	f := newTwoReceiverChannel(t)
	overpay := decodeOverpay(t, runOK(t, ProgramOverpay, f.overpayInput()))
	input := f.profitInput(t, overpay, f.a)

	tests := []struct {
		name     string
		schedule []settlement.ServiceFeeConfig
		expected error
	}{
		{name: "unpinned", schedule: nil},
		{name: "same schedule", schedule: integrationsupport.StandardFees()},
		{
			name:     "other schedule",
			schedule: []settlement.ServiceFeeConfig{{ServID: 1, SystemFeeRate: 100, ProxyFeeRate: 100}},
			expected: settlement.ErrInconsistent,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := RunProfit(bytes.NewReader(input), WithFeeSchedule(test.schedule...))
			if test.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, test.expected)
		})
	}
}
