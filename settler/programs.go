package settler

import (
	"errors"
	"fmt"
	"io"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-proxysettlement/inputchannel"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement/ledger"
)

/**
 * Settler programs. Each program reads its private inputs from an input
 * channel, runs one pipeline stage and returns the ABI encoded ledger record
 * the stage produced. Any failure aborts the run with no output.
 *
 * Input layouts, in read order:
 *
 *   overpay:   proxy, PayIdInfos, receipts
 *   profit:    receiver, proxy, receipts, MerkleProof, PayIdInfos, fee configs
 *   aggregate: n, n x ProfitResult ABI blob, OverpayCheckResult ABI blob
 *   receiver:  receiver, n, n x (receipts, ProfitResult ABI blob)
 *
 * The stream must end after the last value.
 */

type Program string

const (
	ProgramOverpay   Program = "overpay"
	ProgramProfit    Program = "profit"
	ProgramAggregate Program = "aggregate"
	ProgramReceiver  Program = "receiver"
)

var ErrUnknownProgram = errors.New("unknown settler program")

// Programs lists every program Run accepts.
func Programs() []Program {
	return []Program{ProgramOverpay, ProgramProfit, ProgramAggregate, ProgramReceiver}
}

// ParseProgram maps a program name to its Program.
func ParseProgram(name string) (Program, error) {
	for _, p := range Programs() {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProgram, name)
}

// Run dispatches to the named program.
func Run(program Program, in io.Reader, options ...ProgramOption) ([]byte, error) {
	switch program {
	case ProgramOverpay:
		return RunOverpay(in, options...)
	case ProgramProfit:
		return RunProfit(in, options...)
	case ProgramAggregate:
		return RunAggregate(in, options...)
	case ProgramReceiver:
		return RunReceiver(in, options...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProgram, program)
	}
}

// RunOverpay validates one proxy channel and returns its OverpayCheckResult.
func RunOverpay(in io.Reader, options ...ProgramOption) ([]byte, error) {
	opts := ParseProgramOptions(options...)

	out, err := runOverpay(inputchannel.NewReader(in), opts)
	opts.metrics.observe(ProgramOverpay, err)
	return out, err
}

func runOverpay(r *inputchannel.Reader, opts ProgramOptions) ([]byte, error) {
	proxy, _ := r.ReadAddress()
	payIdInfos, _ := r.ReadPayIdInfos()
	receipts, _ := r.ReadReceipts()
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("RunOverpay failed: %w", err)
	}

	result, err := settlement.ValidateOverpay(proxy, payIdInfos, receipts, opts.pipelineOptions()...)
	if err != nil {
		return nil, fmt.Errorf("RunOverpay failed: %w", err)
	}

	record := ledger.FromOverpayCheckResult(result)
	out, err := record.Pack()
	if err != nil {
		return nil, fmt.Errorf("RunOverpay failed: %w", err)
	}

	if logger.Sugar != nil {
		logger.Sugar.Debugf("RunOverpay: proxy %s, %d receipts, %d receivers",
			proxy.Hex(), len(receipts), len(result.ReceiverProofs))
	}
	return out, nil
}

// RunProfit verifies one receiver's receipts and returns its ProfitResult.
func RunProfit(in io.Reader, options ...ProgramOption) ([]byte, error) {
	opts := ParseProgramOptions(options...)

	out, err := runProfit(inputchannel.NewReader(in), opts)
	opts.metrics.observe(ProgramProfit, err)
	return out, err
}

func runProfit(r *inputchannel.Reader, opts ProgramOptions) ([]byte, error) {
	var input settlement.ProfitInput
	input.Receiver, _ = r.ReadAddress()
	input.Proxy, _ = r.ReadAddress()
	input.Receipts, _ = r.ReadReceipts()
	input.Proof, _ = r.ReadMerkleProof()
	input.PayIdInfos, _ = r.ReadPayIdInfos()
	input.FeeConfigs, _ = r.ReadServiceFeeConfigs()
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("RunProfit failed: %w", err)
	}

	if len(opts.feeSchedule) > 0 {
		pinned := settlement.ServIdsDigest(opts.feeSchedule)
		if got := settlement.ServIdsDigest(input.FeeConfigs); got != pinned {
			return nil, fmt.Errorf("RunProfit failed: %w", &settlement.PipelineError{
				Kind:   settlement.Inconsistent,
				Detail: fmt.Sprintf("fee configs commit to %s, schedule is %s", got.Hex(), pinned.Hex()),
			})
		}
	}

	result, err := settlement.CalculateProfit(input, opts.pipelineOptions()...)
	if err != nil {
		return nil, fmt.Errorf("RunProfit failed: %w", err)
	}

	record := ledger.FromProfitResult(result)
	out, err := record.Pack()
	if err != nil {
		return nil, fmt.Errorf("RunProfit failed: %w", err)
	}
	return out, nil
}

// RunAggregate folds the ProfitResults of one proxy into its settlement record.
func RunAggregate(in io.Reader, options ...ProgramOption) ([]byte, error) {
	opts := ParseProgramOptions(options...)

	out, err := runAggregate(inputchannel.NewReader(in))
	opts.metrics.observe(ProgramAggregate, err)
	return out, err
}

func runAggregate(r *inputchannel.Reader) ([]byte, error) {
	n, _ := r.ReadCount()
	blobs := make([][]byte, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		blob, _ := r.ReadBytes()
		blobs = append(blobs, blob)
	}
	overpayBlob, _ := r.ReadBytes()
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("RunAggregate failed: %w", err)
	}

	profits := make([]settlement.ProfitResult, len(blobs))
	for i, blob := range blobs {
		profit, err := decodeProfitResult(blob)
		if err != nil {
			return nil, fmt.Errorf("RunAggregate failed: profit result %d: %w", i, err)
		}
		profits[i] = *profit
	}

	overpayRecord, err := ledger.UnpackOverpayCheckResult(overpayBlob)
	if err != nil {
		return nil, fmt.Errorf("RunAggregate failed: %w", err)
	}
	overpay, err := overpayRecord.ToOverpayCheckResult()
	if err != nil {
		return nil, fmt.Errorf("RunAggregate failed: %w", err)
	}

	result, err := settlement.AggregateSettlement(profits, overpay)
	if err != nil {
		return nil, fmt.Errorf("RunAggregate failed: %w", err)
	}

	record := ledger.FromProxySettlementResult(result)
	out, err := record.Pack()
	if err != nil {
		return nil, fmt.Errorf("RunAggregate failed: %w", err)
	}
	return out, nil
}

// RunReceiver reconciles one receiver across proxies and returns its
// ReceiverSettleResult.
func RunReceiver(in io.Reader, options ...ProgramOption) ([]byte, error) {
	opts := ParseProgramOptions(options...)

	out, err := runReceiver(inputchannel.NewReader(in))
	opts.metrics.observe(ProgramReceiver, err)
	return out, err
}

func runReceiver(r *inputchannel.Reader) ([]byte, error) {
	receiver, _ := r.ReadAddress()
	n, _ := r.ReadCount()

	type proxyInput struct {
		receipts []settlement.PaymentSettledByProxy
		profit   []byte
	}
	inputs := make([]proxyInput, 0, n)
	for i := 0; i < n && r.Err() == nil; i++ {
		var in proxyInput
		in.receipts, _ = r.ReadReceipts()
		in.profit, _ = r.ReadBytes()
		inputs = append(inputs, in)
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("RunReceiver failed: %w", err)
	}

	reconciler := settlement.NewReceiverReconciler(receiver)
	for i := range inputs {
		profit, err := decodeProfitResult(inputs[i].profit)
		if err != nil {
			return nil, fmt.Errorf("RunReceiver failed: profit result %d: %w", i, err)
		}
		if err := reconciler.ProcessProxySettlement(inputs[i].receipts, profit); err != nil {
			return nil, fmt.Errorf("RunReceiver failed: proxy settlement %d: %w", i, err)
		}
	}

	result := reconciler.Result()
	record := ledger.FromReceiverSettleResult(&result)
	out, err := record.Pack()
	if err != nil {
		return nil, fmt.Errorf("RunReceiver failed: %w", err)
	}

	if logger.Sugar != nil {
		logger.Sugar.Debugf("RunReceiver: receiver %s, %d proxies, profit %s",
			receiver.Hex(), reconciler.Proxies(), result.Profit.Dec())
	}
	return out, nil
}

func decodeProfitResult(blob []byte) (*settlement.ProfitResult, error) {
	record, err := ledger.UnpackProfitResult(blob)
	if err != nil {
		return nil, err
	}
	return record.ToProfitResult()
}
