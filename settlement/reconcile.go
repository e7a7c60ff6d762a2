package settlement

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ReceiverSettleResult is the receiver side settlement over any number of proxies.
type ReceiverSettleResult struct {
	VkHash         common.Hash
	SettlementRoot common.Hash
	Receiver       common.Address
	Profit         uint256.Int
}

// ChainReceiptsRoot folds receipts in the given order:
// root = keccak(root || receipt.Hash()), starting from the zero hash.
func ChainReceiptsRoot(receipts []PaymentSettledByProxy) common.Hash {
	var current common.Hash
	for i := range receipts {
		current = ChainHash(current, receipts[i].Hash().Bytes())
	}
	return current
}

// ReceiverReconciler accumulates one receiver's profit across proxies. It does
// not reorder receipts; callers present them in the order the root was built.
type ReceiverReconciler struct {
	receiver       common.Address
	totalProfit    uint256.Int
	settlementRoot common.Hash
	proxies        int
}

func NewReceiverReconciler(receiver common.Address) *ReceiverReconciler {
	return &ReceiverReconciler{receiver: receiver}
}

// ProcessProxySettlement checks one proxy's receipts against its ProfitResult and
// adds the receiver profit. On error the running total is unchanged.
func (rr *ReceiverReconciler) ProcessProxySettlement(receipts []PaymentSettledByProxy, profit *ProfitResult) error {
	if profit == nil {
		return pipelineError(EmptyInput, "no profit result supplied")
	}

	root := ChainReceiptsRoot(receipts)
	if root != profit.ReceiptsRoot {
		return pipelineError(RootMismatch, "receipts root %s, profit result carries %s",
			root.Hex(), profit.ReceiptsRoot.Hex())
	}

	if profit.Receiver != rr.receiver {
		return pipelineError(ReceiverMismatch, "profit result for %s, expected %s",
			profit.Receiver.Hex(), rr.receiver.Hex())
	}

	var total uint256.Int
	if _, overflow := total.AddOverflow(&rr.totalProfit, &profit.ReceiverProfit); overflow {
		return pipelineError(Overflow, "receiver profit total")
	}

	rr.totalProfit = total
	rr.settlementRoot = ChainHash(rr.settlementRoot, root.Bytes())
	rr.proxies++
	return nil
}

func (rr *ReceiverReconciler) Receiver() common.Address { return rr.receiver }

func (rr *ReceiverReconciler) TotalProfit() uint256.Int { return rr.totalProfit }

// SettlementRoot chains the receipts roots of every accepted proxy settlement.
func (rr *ReceiverReconciler) SettlementRoot() common.Hash { return rr.settlementRoot }

// Proxies is the number of accepted proxy settlements.
func (rr *ReceiverReconciler) Proxies() int { return rr.proxies }

func (rr *ReceiverReconciler) Result() ReceiverSettleResult {
	return ReceiverSettleResult{
		SettlementRoot: rr.settlementRoot,
		Receiver:       rr.receiver,
		Profit:         rr.totalProfit,
	}
}
