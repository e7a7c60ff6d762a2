package settlement

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

/**
 * RLP list encoding of receipts for transport and storage.
 *
 * A settled receipt is the 7 item list
 *   [pay_id, serv_id, amount, receiver, sig_sender, settled, sig_proxy]
 * and a payment the first 5 items. Integers are canonical RLP scalars,
 * addresses must be 20 bytes and signatures 65 bytes.
 */

type rlpPayment struct {
	PayID     *uint256.Int
	ServID    uint32
	Amount    *uint256.Int
	Receiver  common.Address
	SigSender [SignatureLength]byte
}

type rlpSettledReceipt struct {
	PayID     *uint256.Int
	ServID    uint32
	Amount    *uint256.Int
	Receiver  common.Address
	SigSender [SignatureLength]byte
	Settled   bool
	SigProxy  [SignatureLength]byte
}

// EncodeRLP returns the RLP list encoding of the payment.
func (p *Payment) EncodeRLP() ([]byte, error) {
	return rlp.EncodeToBytes(&rlpPayment{
		PayID:     new(uint256.Int).Set(&p.PayID),
		ServID:    p.ServID,
		Amount:    new(uint256.Int).Set(&p.Amount),
		Receiver:  p.Receiver,
		SigSender: p.SigSender,
	})
}

// DecodePaymentRLP is the inverse of Payment.EncodeRLP.
func DecodePaymentRLP(data []byte) (*Payment, error) {
	var wire rlpPayment
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, pipelineError(InvalidEncoding, "payment: %v", err)
	}

	p := &Payment{
		ServID:    wire.ServID,
		Receiver:  wire.Receiver,
		SigSender: wire.SigSender,
	}
	p.PayID.Set(wire.PayID)
	p.Amount.Set(wire.Amount)
	return p, nil
}

// EncodeRLP returns the RLP list encoding of the settled receipt.
func (r *PaymentSettledByProxy) EncodeRLP() ([]byte, error) {
	return rlp.EncodeToBytes(&rlpSettledReceipt{
		PayID:     new(uint256.Int).Set(&r.PayID),
		ServID:    r.ServID,
		Amount:    new(uint256.Int).Set(&r.Amount),
		Receiver:  r.Receiver,
		SigSender: r.SigSender,
		Settled:   r.Settled,
		SigProxy:  r.SigProxy,
	})
}

// DecodeReceiptRLP is the inverse of PaymentSettledByProxy.EncodeRLP. Lists
// with the wrong item count or fixed width fields of the wrong length fail.
func DecodeReceiptRLP(data []byte) (*PaymentSettledByProxy, error) {
	var wire rlpSettledReceipt
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, pipelineError(InvalidEncoding, "settled receipt: %v", err)
	}

	r := &PaymentSettledByProxy{
		ServID:    wire.ServID,
		Receiver:  wire.Receiver,
		SigSender: wire.SigSender,
		Settled:   wire.Settled,
		SigProxy:  wire.SigProxy,
	}
	r.PayID.Set(wire.PayID)
	r.Amount.Set(wire.Amount)
	return r, nil
}

// EncodeReceiptsRLP encodes a receipt batch as one RLP list of receipt lists.
func EncodeReceiptsRLP(receipts []PaymentSettledByProxy) ([]byte, error) {
	wire := make([]rlpSettledReceipt, len(receipts))
	for i := range receipts {
		r := &receipts[i]
		wire[i] = rlpSettledReceipt{
			PayID:     new(uint256.Int).Set(&r.PayID),
			ServID:    r.ServID,
			Amount:    new(uint256.Int).Set(&r.Amount),
			Receiver:  r.Receiver,
			SigSender: r.SigSender,
			Settled:   r.Settled,
			SigProxy:  r.SigProxy,
		}
	}
	return rlp.EncodeToBytes(wire)
}

// DecodeReceiptsRLP is the inverse of EncodeReceiptsRLP.
func DecodeReceiptsRLP(data []byte) ([]PaymentSettledByProxy, error) {
	var wire []rlpSettledReceipt
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, pipelineError(InvalidEncoding, "receipt list: %v", err)
	}

	receipts := make([]PaymentSettledByProxy, len(wire))
	for i := range wire {
		receipts[i] = PaymentSettledByProxy{
			ServID:    wire[i].ServID,
			Receiver:  wire[i].Receiver,
			SigSender: wire[i].SigSender,
			Settled:   wire[i].Settled,
			SigProxy:  wire[i].SigProxy,
		}
		receipts[i].PayID.Set(wire[i].PayID)
		receipts[i].Amount.Set(wire[i].Amount)
	}
	return receipts, nil
}
