package settlement

import (
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ProfitResult is the verified profit split of one receiver under one proxy.
type ProfitResult struct {
	VksHash        common.Hash
	Receiver       common.Address
	Proxy          common.Address
	ReceiptsRoot   common.Hash
	PayIdsRoot     common.Hash
	ServIdsRoot    common.Hash
	SystemProfit   uint256.Int
	ProxyProfit    uint256.Int
	ReceiverProfit uint256.Int
}

// Total is SystemProfit + ProxyProfit + ReceiverProfit.
func (r *ProfitResult) Total() (*uint256.Int, bool) {
	total, overflow := new(uint256.Int).AddOverflow(&r.SystemProfit, &r.ProxyProfit)
	if overflow {
		return nil, false
	}
	if _, overflow = total.AddOverflow(total, &r.ReceiverProfit); overflow {
		return nil, false
	}
	return total, true
}

// ProfitInput is everything the profit stage needs for one receiver.
type ProfitInput struct {
	Receiver   common.Address
	Proxy      common.Address
	Receipts   []PaymentSettledByProxy
	Proof      *segmentvc.MerkleProof
	PayIdInfos []PayIdInfo
	FeeConfigs []ServiceFeeConfig
}

// CalculateProfit verifies one receiver's receipts against their inclusion proof
// and signatures, then splits every amount by its service's fee schedule.
//
// Checks, first failure wins:
//  1. every PayIdInfo belongs to Proxy
//  2. the receipts, sorted by key and hashed, equal the proven leaf and the proof verifies
//  3. every receipt pays Receiver
//  4. every sender signature recovers to its PayIdInfo sender and every proxy
//     signature recovers to Proxy
func CalculateProfit(input ProfitInput, options ...PipelineOption) (*ProfitResult, error) {
	if err := validateProfitInput(&input); err != nil {
		return nil, err
	}

	fees := make(map[uint32]ServiceFeeConfig, len(input.FeeConfigs))
	for _, c := range input.FeeConfigs {
		fees[c.ServID] = c
	}

	result := &ProfitResult{
		Receiver:     input.Receiver,
		Proxy:        input.Proxy,
		ReceiptsRoot: input.Proof.RootHash,
		ServIdsRoot:  ServIdsDigest(input.FeeConfigs),
	}

	for i := range input.Receipts {
		r := &input.Receipts[i]

		config, ok := fees[r.ServID]
		if !ok {
			return nil, pipelineError(MissingFeeConfig, "serv id %d", r.ServID)
		}
		split, err := config.Split(&r.Amount)
		if err != nil {
			return nil, err
		}

		if err := addChecked(&result.SystemProfit, &split.System); err != nil {
			return nil, err
		}
		if err := addChecked(&result.ProxyProfit, &split.Proxy); err != nil {
			return nil, err
		}
		if err := addChecked(&result.ReceiverProfit, &split.Receiver); err != nil {
			return nil, err
		}
	}

	payIdsRoot, err := CanonicalizePayIds(input.PayIdInfos, options...)
	if err != nil {
		return nil, fmt.Errorf("CalculateProfit failed: %w", err)
	}
	result.PayIdsRoot = payIdsRoot

	if logger.Sugar != nil {
		logger.Sugar.Debugf("CalculateProfit: receiver %s, %d receipts, system %s, proxy %s, receiver %s",
			input.Receiver.Hex(), len(input.Receipts),
			result.SystemProfit.Dec(), result.ProxyProfit.Dec(), result.ReceiverProfit.Dec())
	}
	return result, nil
}

func validateProfitInput(input *ProfitInput) error {
	for i := range input.PayIdInfos {
		if input.PayIdInfos[i].Proxy != input.Proxy {
			return pipelineError(ChannelMismatch, "pay id %s belongs to proxy %s, expected %s",
				input.PayIdInfos[i].ID.Dec(), input.PayIdInfos[i].Proxy.Hex(), input.Proxy.Hex())
		}
	}

	if input.Proof == nil {
		return pipelineError(ProofMismatch, "no proof supplied")
	}
	aggregate := ReceiverAggregate(input.Receipts)
	if aggregate != input.Proof.ValueProof.Value {
		return pipelineError(ProofMismatch, "receipts aggregate %s does not match proven value %s",
			aggregate.Hex(), input.Proof.ValueProof.Value.Hex())
	}
	verified, err := input.Proof.Verify()
	if err != nil {
		return &PipelineError{Kind: ProofMismatch, Detail: err.Error()}
	}
	if !verified {
		return pipelineError(ProofMismatch, "proof does not reproduce root %s", input.Proof.RootHash.Hex())
	}

	for i := range input.Receipts {
		if input.Receipts[i].Receiver != input.Receiver {
			return pipelineError(ReceiverMismatch, "receipt pays %s, expected %s",
				input.Receipts[i].Receiver.Hex(), input.Receiver.Hex())
		}
	}

	infos := payIdIndex(input.PayIdInfos)
	for i := range input.Receipts {
		r := &input.Receipts[i]

		info, ok := infos[r.PayID]
		if !ok {
			return pipelineError(UnknownPayId, "pay id %s", r.PayID.Dec())
		}

		sender, err := r.SenderAddress()
		if err != nil {
			return signatureError("sender", r, err)
		}
		if sender != info.Sender {
			return pipelineError(SignatureMismatch, "pay id %s signed by %s, expected sender %s",
				r.PayID.Dec(), sender.Hex(), info.Sender.Hex())
		}

		proxy, err := r.ProxyAddress()
		if err != nil {
			return signatureError("proxy", r, err)
		}
		if proxy != input.Proxy {
			return pipelineError(SignatureMismatch, "pay id %s settled by %s, expected proxy %s",
				r.PayID.Dec(), proxy.Hex(), input.Proxy.Hex())
		}
	}

	return nil
}

func signatureError(role string, r *PaymentSettledByProxy, err error) error {
	return pipelineError(SignatureMismatch, "%s signature of pay id %s: %v", role, r.PayID.Dec(), err)
}

func addChecked(total *uint256.Int, v *uint256.Int) error {
	if _, overflow := total.AddOverflow(total, v); overflow {
		return pipelineError(Overflow, "profit total")
	}
	return nil
}
