package settlement

import (
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ProxySettlementResult is the settlement record of one proxy, aggregated over
// the ProfitResults of all its receivers.
type ProxySettlementResult struct {
	VksHash       common.Hash
	SettlementID  common.Hash
	Proxy         common.Address
	PayIdsRoot    common.Hash
	ServIdsRoot   common.Hash
	ReceiptsRoot  common.Hash
	SystemProfits uint256.Int
	ProxyProfits  uint256.Int
	Amount        uint256.Int
}

// CalculateSettlementID is
// keccak(keccak(proxy20 || pay_ids_root || serv_ids_root || system32 || proxy32 || amount32) || receipts_root).
func (r *ProxySettlementResult) CalculateSettlementID(receiptsRoot common.Hash) common.Hash {
	inner := newPacker(20+32*5).
		bytes(r.Proxy.Bytes()).
		bytes(r.PayIdsRoot.Bytes()).
		bytes(r.ServIdsRoot.Bytes()).
		u256(&r.SystemProfits).
		u256(&r.ProxyProfits).
		u256(&r.Amount).
		hash()
	return ChainHash(inner, receiptsRoot.Bytes())
}

// VerifySettlementID recomputes the settlement id over receiptsRoot.
func (r *ProxySettlementResult) VerifySettlementID(receiptsRoot common.Hash) bool {
	return r.SettlementID == r.CalculateSettlementID(receiptsRoot)
}

// BuildSettlementID sets SettlementID from the record's own ReceiptsRoot.
func (r *ProxySettlementResult) BuildSettlementID() {
	r.SettlementID = r.CalculateSettlementID(r.ReceiptsRoot)
}

// AggregateSettlement folds the ProfitResults of one proxy into its settlement
// record. All results must agree on proxy, pay ids root and receipts root, and
// the overpay result must carry the same pay ids root and receipts root.
func AggregateSettlement(profits []ProfitResult, overpay *OverpayCheckResult) (*ProxySettlementResult, error) {
	if len(profits) == 0 {
		return nil, pipelineError(EmptyInput, "no profit results")
	}
	if overpay == nil {
		return nil, pipelineError(EmptyInput, "no overpay result")
	}

	first := &profits[0]
	for i := range profits {
		p := &profits[i]
		if p.Proxy != first.Proxy {
			return nil, pipelineError(Inconsistent, "proxy %s, expected %s", p.Proxy.Hex(), first.Proxy.Hex())
		}
		if p.PayIdsRoot != first.PayIdsRoot {
			return nil, pipelineError(Inconsistent, "pay ids root %s, expected %s", p.PayIdsRoot.Hex(), first.PayIdsRoot.Hex())
		}
		if p.ReceiptsRoot != first.ReceiptsRoot {
			return nil, pipelineError(Inconsistent, "receipts root %s, expected %s", p.ReceiptsRoot.Hex(), first.ReceiptsRoot.Hex())
		}
	}
	if overpay.PayIdsRoot != first.PayIdsRoot {
		return nil, pipelineError(RootMismatch, "overpay pay ids root %s, expected %s",
			overpay.PayIdsRoot.Hex(), first.PayIdsRoot.Hex())
	}
	if overpay.PaymentsRoot != first.ReceiptsRoot {
		return nil, pipelineError(RootMismatch, "overpay payments root %s, expected %s",
			overpay.PaymentsRoot.Hex(), first.ReceiptsRoot.Hex())
	}

	result := &ProxySettlementResult{
		Proxy:        first.Proxy,
		PayIdsRoot:   first.PayIdsRoot,
		ServIdsRoot:  first.ServIdsRoot,
		ReceiptsRoot: first.ReceiptsRoot,
	}

	var receiverProfits uint256.Int
	for i := range profits {
		if err := addChecked(&result.SystemProfits, &profits[i].SystemProfit); err != nil {
			return nil, err
		}
		if err := addChecked(&result.ProxyProfits, &profits[i].ProxyProfit); err != nil {
			return nil, err
		}
		if err := addChecked(&receiverProfits, &profits[i].ReceiverProfit); err != nil {
			return nil, err
		}
	}

	if err := addChecked(&result.Amount, &result.SystemProfits); err != nil {
		return nil, err
	}
	if err := addChecked(&result.Amount, &result.ProxyProfits); err != nil {
		return nil, err
	}
	if err := addChecked(&result.Amount, &receiverProfits); err != nil {
		return nil, err
	}

	result.BuildSettlementID()

	if logger.Sugar != nil {
		logger.Sugar.Debugf("AggregateSettlement: proxy %s, %d receivers, amount %s, settlement id %s",
			result.Proxy.Hex(), len(profits), result.Amount.Dec(), result.SettlementID.Hex())
	}
	return result, nil
}
