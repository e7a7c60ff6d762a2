package settlement

import (
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

/**
 * Overpayment validation of one proxy channel.
 *
 * Checks run in a fixed order and the first violation is returned:
 *   1. every PayIdInfo belongs to the channel
 *   2. every receipt is settled
 *   3. no two receipts share (pay_id, serv_id, receiver)
 *   4. per pay_id, the receipt amounts stay within the PayIdInfo amount
 *
 * A batch that passes all four but has no receipts fails with EmptyInput.
 */

// OverpayCheckResult carries the two commitments of a validated channel batch.
type OverpayCheckResult struct {
	PaymentsRoot   common.Hash
	ReceiverProofs []ReceiverProof
	PayIdsRoot     common.Hash
}

// MerkleProof returns the proof of receiver's aggregate leaf.
func (r *OverpayCheckResult) MerkleProof(receiver common.Address) (*segmentvc.MerkleProof, bool) {
	for i := range r.ReceiverProofs {
		if r.ReceiverProofs[i].Receiver == receiver {
			return r.ReceiverProofs[i].Proof, true
		}
	}
	return nil, false
}

// Receivers lists the receivers covered by the result, in leaf order.
func (r *OverpayCheckResult) Receivers() []common.Address {
	receivers := make([]common.Address, len(r.ReceiverProofs))
	for i := range r.ReceiverProofs {
		receivers[i] = r.ReceiverProofs[i].Receiver
	}
	return receivers
}

// ValidateOverpay validates the receipts of channel against its PayIdInfos and,
// on success, commits to both sets.
func ValidateOverpay(
	channel common.Address,
	payIdInfos []PayIdInfo,
	receipts []PaymentSettledByProxy,
	options ...PipelineOption,
) (*OverpayCheckResult, error) {

	if err := validateOverpay(channel, payIdInfos, receipts); err != nil {
		return nil, err
	}

	paymentsRoot, receiverProofs, err := GroupReceipts(receipts, options...)
	if err != nil {
		return nil, fmt.Errorf("ValidateOverpay failed: %w", err)
	}

	payIdsRoot, err := CanonicalizePayIds(payIdInfos, options...)
	if err != nil {
		return nil, fmt.Errorf("ValidateOverpay failed: %w", err)
	}

	if logger.Sugar != nil {
		logger.Sugar.Debugf("ValidateOverpay: channel %s, payments root %s, pay ids root %s",
			channel.Hex(), paymentsRoot.Hex(), payIdsRoot.Hex())
	}

	return &OverpayCheckResult{
		PaymentsRoot:   paymentsRoot,
		ReceiverProofs: receiverProofs,
		PayIdsRoot:     payIdsRoot,
	}, nil
}

func validateOverpay(channel common.Address, payIdInfos []PayIdInfo, receipts []PaymentSettledByProxy) error {
	for i := range payIdInfos {
		if payIdInfos[i].Proxy != channel {
			return pipelineError(ChannelMismatch, "pay id %s belongs to proxy %s, expected %s",
				payIdInfos[i].ID.Dec(), payIdInfos[i].Proxy.Hex(), channel.Hex())
		}
	}

	for i := range receipts {
		if !receipts[i].Settled {
			return pipelineError(Unsettled, "receipt for pay id %s", receipts[i].PayID.Dec())
		}
	}

	seen := make(map[ReceiptKey]struct{}, len(receipts))
	for i := range receipts {
		key := receipts[i].UniqueKey()
		if _, ok := seen[key]; ok {
			return pipelineError(DuplicateReceipt, "pay id %s, serv id %d, receiver %s",
				key.PayID.Dec(), key.ServID, key.Receiver.Hex())
		}
		seen[key] = struct{}{}
	}

	// sum per pay id in first seen order so the reported violation is stable
	sums := map[uint256.Int]*uint256.Int{}
	var order []uint256.Int
	for i := range receipts {
		payID := receipts[i].PayID
		sum, ok := sums[payID]
		if !ok {
			sum = new(uint256.Int)
			sums[payID] = sum
			order = append(order, payID)
		}
		if _, overflow := sum.AddOverflow(sum, &receipts[i].Amount); overflow {
			return pipelineError(Overflow, "receipt sum for pay id %s", payID.Dec())
		}
	}

	infos := payIdIndex(payIdInfos)
	for _, payID := range order {
		info, ok := infos[payID]
		if !ok {
			return pipelineError(UnknownPayId, "pay id %s", payID.Dec())
		}
		if sums[payID].Gt(&info.Amount) {
			return pipelineError(Overpayment, "pay id %s: receipts total %s exceeds %s",
				payID.Dec(), sums[payID].Dec(), info.Amount.Dec())
		}
	}

	if len(receipts) == 0 {
		return pipelineError(EmptyInput, "no receipts for channel %s", channel.Hex())
	}
	return nil
}
