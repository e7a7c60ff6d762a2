package settlement

import (
	"crypto/ecdsa"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

/**
 * Receipts. A Payment is signed by the sender; once the proxy settles it the
 * receipt becomes a PaymentSettledByProxy carrying the proxy's signature too.
 *
 * Both the sender signature and the sender recovery use SenderDigest, which
 * includes the amount.
 */

// Payment is a sender signed payment promise.
type Payment struct {
	PayID     uint256.Int
	ServID    uint32
	Amount    uint256.Int
	Receiver  common.Address
	SigSender Signature
}

// SenderDigest is keccak(pay_id32 || serv_id4 || amount32 || receiver20).
func (p *Payment) SenderDigest() common.Hash {
	return senderDigest(&p.PayID, p.ServID, &p.Amount, p.Receiver)
}

// Sign sets SigSender.
func (p *Payment) Sign(key *ecdsa.PrivateKey) error {
	sig, err := Sign(p.SenderDigest(), key)
	if err != nil {
		return fmt.Errorf("Payment.Sign failed: %w", err)
	}
	p.SigSender = sig
	return nil
}

// SignerAddress recovers the sender address.
func (p *Payment) SignerAddress() (common.Address, error) {
	return RecoverAddress(p.SenderDigest(), p.SigSender)
}

// Hash is keccak(pay_id32 || serv_id4 || amount32 || receiver20 || sig_sender65).
func (p *Payment) Hash() common.Hash {
	return newPacker(32+4+32+20+65).
		u256(&p.PayID).
		u32(p.ServID).
		u256(&p.Amount).
		bytes(p.Receiver.Bytes()).
		bytes(p.SigSender.Bytes()).
		hash()
}

// Settle converts the payment into an unsigned settled receipt.
func (p *Payment) Settle() PaymentSettledByProxy {
	return PaymentSettledByProxy{
		PayID:     p.PayID,
		ServID:    p.ServID,
		Amount:    p.Amount,
		Receiver:  p.Receiver,
		SigSender: p.SigSender,
		Settled:   true,
	}
}

// PaymentSettledByProxy is a receipt the proxy has settled and countersigned.
type PaymentSettledByProxy struct {
	PayID     uint256.Int
	ServID    uint32
	Amount    uint256.Int
	Receiver  common.Address
	SigSender Signature
	Settled   bool
	SigProxy  Signature
}

// ReceiptKey identifies a receipt within one settlement run.
type ReceiptKey struct {
	PayID    uint256.Int
	ServID   uint32
	Receiver common.Address
}

func (r *PaymentSettledByProxy) UniqueKey() ReceiptKey {
	return ReceiptKey{PayID: r.PayID, ServID: r.ServID, Receiver: r.Receiver}
}

// Key is keccak(pay_id32 || serv_id4 || receiver20).
func (r *PaymentSettledByProxy) Key() common.Hash {
	return newPacker(32+4+20).
		u256(&r.PayID).
		u32(r.ServID).
		bytes(r.Receiver.Bytes()).
		hash()
}

// Hash is keccak over every field:
// pay_id32 || serv_id4 || amount32 || receiver20 || sig_sender65 || settled1 || sig_proxy65.
func (r *PaymentSettledByProxy) Hash() common.Hash {
	return r.packForSigning(65).bytes(r.SigProxy.Bytes()).hash()
}

// HashForSigning is Hash without sig_proxy. It is the digest the proxy signs.
func (r *PaymentSettledByProxy) HashForSigning() common.Hash {
	return r.packForSigning(0).hash()
}

func (r *PaymentSettledByProxy) packForSigning(extra int) *packer {
	return newPacker(32+4+32+20+65+1+extra).
		u256(&r.PayID).
		u32(r.ServID).
		u256(&r.Amount).
		bytes(r.Receiver.Bytes()).
		bytes(r.SigSender.Bytes()).
		boolean(r.Settled)
}

// SenderDigest is the digest the sender signed, see Payment.SenderDigest.
func (r *PaymentSettledByProxy) SenderDigest() common.Hash {
	return senderDigest(&r.PayID, r.ServID, &r.Amount, r.Receiver)
}

// SignAsSender sets SigSender. Mostly useful to build fixtures.
func (r *PaymentSettledByProxy) SignAsSender(key *ecdsa.PrivateKey) error {
	sig, err := Sign(r.SenderDigest(), key)
	if err != nil {
		return fmt.Errorf("SignAsSender failed: %w", err)
	}
	r.SigSender = sig
	return nil
}

// SignByProxy sets SigProxy over HashForSigning.
func (r *PaymentSettledByProxy) SignByProxy(key *ecdsa.PrivateKey) error {
	sig, err := Sign(r.HashForSigning(), key)
	if err != nil {
		return fmt.Errorf("SignByProxy failed: %w", err)
	}
	r.SigProxy = sig
	return nil
}

// SenderAddress recovers the address behind SigSender.
func (r *PaymentSettledByProxy) SenderAddress() (common.Address, error) {
	return RecoverAddress(r.SenderDigest(), r.SigSender)
}

// ProxyAddress recovers the address behind SigProxy.
func (r *PaymentSettledByProxy) ProxyAddress() (common.Address, error) {
	return RecoverAddress(r.HashForSigning(), r.SigProxy)
}

// SetSettlement records the settled amount. Any previous proxy signature no
// longer matches and has to be renewed.
func (r *PaymentSettledByProxy) SetSettlement(amount *uint256.Int, settled bool) {
	r.Amount = *amount
	r.Settled = settled
}

// Payment drops the settlement fields.
func (r *PaymentSettledByProxy) Payment() Payment {
	return Payment{
		PayID:     r.PayID,
		ServID:    r.ServID,
		Amount:    r.Amount,
		Receiver:  r.Receiver,
		SigSender: r.SigSender,
	}
}

func senderDigest(payID *uint256.Int, servID uint32, amount *uint256.Int, receiver common.Address) common.Hash {
	return newPacker(32+4+32+20).
		u256(payID).
		u32(servID).
		u256(amount).
		bytes(receiver.Bytes()).
		hash()
}

// keyedReceipt pairs a receipt with its content key for sorting.
type keyedReceipt struct {
	key     common.Hash
	receipt *PaymentSettledByProxy
}

// sortReceiptsByKey returns receipts ordered by Key. Ties keep input order.
func sortReceiptsByKey(receipts []PaymentSettledByProxy) []keyedReceipt {
	keyed := make([]keyedReceipt, len(receipts))
	for i := range receipts {
		keyed[i] = keyedReceipt{key: receipts[i].Key(), receipt: &receipts[i]}
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].key.Cmp(keyed[j].key) < 0
	})
	return keyed
}
