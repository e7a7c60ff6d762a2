package ledger

import (
	"fmt"
	"math/big"

	"github.com/datatrails/go-datatrails-proxysettlement/inputchannel"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
)

// ProfitResultStruct mirrors settlement.ProfitResult for the ledger contract.
type ProfitResultStruct struct {
	VksHash        [32]byte
	Receiver       common.Address
	Proxy          common.Address
	ReceiptsRoot   [32]byte
	PayIdsRoot     [32]byte
	ServIdsRoot    [32]byte
	SystemProfit   *big.Int
	ProxyProfit    *big.Int
	ReceiverProfit *big.Int
}

var profitResultArgs = arguments(
	bytes32Type, addressType, addressType,
	bytes32Type, bytes32Type, bytes32Type,
	uint256Type, uint256Type, uint256Type,
)

func FromProfitResult(r *settlement.ProfitResult) ProfitResultStruct {
	return ProfitResultStruct{
		VksHash:        r.VksHash,
		Receiver:       r.Receiver,
		Proxy:          r.Proxy,
		ReceiptsRoot:   r.ReceiptsRoot,
		PayIdsRoot:     r.PayIdsRoot,
		ServIdsRoot:    r.ServIdsRoot,
		SystemProfit:   toBig(&r.SystemProfit),
		ProxyProfit:    toBig(&r.ProxyProfit),
		ReceiverProfit: toBig(&r.ReceiverProfit),
	}
}

func (s *ProfitResultStruct) ToProfitResult() (*settlement.ProfitResult, error) {
	r := &settlement.ProfitResult{
		VksHash:      s.VksHash,
		Receiver:     s.Receiver,
		Proxy:        s.Proxy,
		ReceiptsRoot: s.ReceiptsRoot,
		PayIdsRoot:   s.PayIdsRoot,
		ServIdsRoot:  s.ServIdsRoot,
	}
	var err error
	if r.SystemProfit, err = fromBig(s.SystemProfit); err != nil {
		return nil, fmt.Errorf("ToProfitResult failed: system profit: %w", err)
	}
	if r.ProxyProfit, err = fromBig(s.ProxyProfit); err != nil {
		return nil, fmt.Errorf("ToProfitResult failed: proxy profit: %w", err)
	}
	if r.ReceiverProfit, err = fromBig(s.ReceiverProfit); err != nil {
		return nil, fmt.Errorf("ToProfitResult failed: receiver profit: %w", err)
	}
	return r, nil
}

func (s *ProfitResultStruct) Pack() ([]byte, error) {
	return profitResultArgs.Pack(
		s.VksHash, s.Receiver, s.Proxy,
		s.ReceiptsRoot, s.PayIdsRoot, s.ServIdsRoot,
		s.SystemProfit, s.ProxyProfit, s.ReceiverProfit,
	)
}

func UnpackProfitResult(data []byte) (*ProfitResultStruct, error) {
	values, err := unpackStrict(profitResultArgs, data)
	if err != nil {
		return nil, fmt.Errorf("UnpackProfitResult failed: %w", err)
	}

	d := &decoder{values: values}
	s := &ProfitResultStruct{
		VksHash:        d.hash(),
		Receiver:       d.address(),
		Proxy:          d.address(),
		ReceiptsRoot:   d.hash(),
		PayIdsRoot:     d.hash(),
		ServIdsRoot:    d.hash(),
		SystemProfit:   d.u256(),
		ProxyProfit:    d.u256(),
		ReceiverProfit: d.u256(),
	}
	if d.err != nil {
		return nil, fmt.Errorf("UnpackProfitResult failed: %w", d.err)
	}
	return s, nil
}

// ProxySettlementResultStruct mirrors settlement.ProxySettlementResult.
type ProxySettlementResultStruct struct {
	VksHash       [32]byte
	SettlementID  [32]byte
	Proxy         common.Address
	PayIdsRoot    [32]byte
	ServIdsRoot   [32]byte
	ReceiptsRoot  [32]byte
	SystemProfits *big.Int
	ProxyProfits  *big.Int
	Amount        *big.Int
}

var proxySettlementResultArgs = arguments(
	bytes32Type, bytes32Type, addressType,
	bytes32Type, bytes32Type, bytes32Type,
	uint256Type, uint256Type, uint256Type,
)

func FromProxySettlementResult(r *settlement.ProxySettlementResult) ProxySettlementResultStruct {
	return ProxySettlementResultStruct{
		VksHash:       r.VksHash,
		SettlementID:  r.SettlementID,
		Proxy:         r.Proxy,
		PayIdsRoot:    r.PayIdsRoot,
		ServIdsRoot:   r.ServIdsRoot,
		ReceiptsRoot:  r.ReceiptsRoot,
		SystemProfits: toBig(&r.SystemProfits),
		ProxyProfits:  toBig(&r.ProxyProfits),
		Amount:        toBig(&r.Amount),
	}
}

func (s *ProxySettlementResultStruct) ToProxySettlementResult() (*settlement.ProxySettlementResult, error) {
	r := &settlement.ProxySettlementResult{
		VksHash:      s.VksHash,
		SettlementID: s.SettlementID,
		Proxy:        s.Proxy,
		PayIdsRoot:   s.PayIdsRoot,
		ServIdsRoot:  s.ServIdsRoot,
		ReceiptsRoot: s.ReceiptsRoot,
	}
	var err error
	if r.SystemProfits, err = fromBig(s.SystemProfits); err != nil {
		return nil, fmt.Errorf("ToProxySettlementResult failed: system profits: %w", err)
	}
	if r.ProxyProfits, err = fromBig(s.ProxyProfits); err != nil {
		return nil, fmt.Errorf("ToProxySettlementResult failed: proxy profits: %w", err)
	}
	if r.Amount, err = fromBig(s.Amount); err != nil {
		return nil, fmt.Errorf("ToProxySettlementResult failed: amount: %w", err)
	}
	return r, nil
}

func (s *ProxySettlementResultStruct) Pack() ([]byte, error) {
	return proxySettlementResultArgs.Pack(
		s.VksHash, s.SettlementID, s.Proxy,
		s.PayIdsRoot, s.ServIdsRoot, s.ReceiptsRoot,
		s.SystemProfits, s.ProxyProfits, s.Amount,
	)
}

func UnpackProxySettlementResult(data []byte) (*ProxySettlementResultStruct, error) {
	values, err := unpackStrict(proxySettlementResultArgs, data)
	if err != nil {
		return nil, fmt.Errorf("UnpackProxySettlementResult failed: %w", err)
	}

	d := &decoder{values: values}
	s := &ProxySettlementResultStruct{
		VksHash:       d.hash(),
		SettlementID:  d.hash(),
		Proxy:         d.address(),
		PayIdsRoot:    d.hash(),
		ServIdsRoot:   d.hash(),
		ReceiptsRoot:  d.hash(),
		SystemProfits: d.u256(),
		ProxyProfits:  d.u256(),
		Amount:        d.u256(),
	}
	if d.err != nil {
		return nil, fmt.Errorf("UnpackProxySettlementResult failed: %w", d.err)
	}
	return s, nil
}

// ReceiverSettleResultStruct mirrors settlement.ReceiverSettleResult.
type ReceiverSettleResultStruct struct {
	VkHash         [32]byte
	SettlementRoot [32]byte
	Receiver       common.Address
	Profit         *big.Int
}

var receiverSettleResultArgs = arguments(bytes32Type, bytes32Type, addressType, uint256Type)

func FromReceiverSettleResult(r *settlement.ReceiverSettleResult) ReceiverSettleResultStruct {
	return ReceiverSettleResultStruct{
		VkHash:         r.VkHash,
		SettlementRoot: r.SettlementRoot,
		Receiver:       r.Receiver,
		Profit:         toBig(&r.Profit),
	}
}

func (s *ReceiverSettleResultStruct) ToReceiverSettleResult() (*settlement.ReceiverSettleResult, error) {
	profit, err := fromBig(s.Profit)
	if err != nil {
		return nil, fmt.Errorf("ToReceiverSettleResult failed: profit: %w", err)
	}
	return &settlement.ReceiverSettleResult{
		VkHash:         s.VkHash,
		SettlementRoot: s.SettlementRoot,
		Receiver:       s.Receiver,
		Profit:         profit,
	}, nil
}

func (s *ReceiverSettleResultStruct) Pack() ([]byte, error) {
	return receiverSettleResultArgs.Pack(s.VkHash, s.SettlementRoot, s.Receiver, s.Profit)
}

func UnpackReceiverSettleResult(data []byte) (*ReceiverSettleResultStruct, error) {
	values, err := unpackStrict(receiverSettleResultArgs, data)
	if err != nil {
		return nil, fmt.Errorf("UnpackReceiverSettleResult failed: %w", err)
	}

	d := &decoder{values: values}
	s := &ReceiverSettleResultStruct{
		VkHash:         d.hash(),
		SettlementRoot: d.hash(),
		Receiver:       d.address(),
		Profit:         d.u256(),
	}
	if d.err != nil {
		return nil, fmt.Errorf("UnpackReceiverSettleResult failed: %w", d.err)
	}
	return s, nil
}

// ReceiverProofStruct carries one receiver's MerkleProof in the input channel encoding.
type ReceiverProofStruct struct {
	Receiver common.Address
	Proof    []byte
}

func FromReceiverProof(p *settlement.ReceiverProof) ReceiverProofStruct {
	return ReceiverProofStruct{
		Receiver: p.Receiver,
		Proof:    inputchannel.EncodeMerkleProof(p.Proof),
	}
}

func (s *ReceiverProofStruct) ToReceiverProof() (settlement.ReceiverProof, error) {
	proof, err := inputchannel.DecodeMerkleProof(s.Proof)
	if err != nil {
		return settlement.ReceiverProof{}, fmt.Errorf("ToReceiverProof failed: receiver %s: %w: %w", s.Receiver.Hex(), ErrDecodeProof, err)
	}
	return settlement.ReceiverProof{Receiver: s.Receiver, Proof: proof}, nil
}

// OverpayCheckResultStruct mirrors settlement.OverpayCheckResult. The receiver
// proofs travel as two parallel arrays.
type OverpayCheckResultStruct struct {
	PaymentsRoot   [32]byte
	ReceiverProofs []ReceiverProofStruct
	PayIdsRoot     [32]byte
}

var overpayCheckResultArgs = arguments(bytes32Type, addressesType, blobsType, bytes32Type)

func FromOverpayCheckResult(r *settlement.OverpayCheckResult) OverpayCheckResultStruct {
	s := OverpayCheckResultStruct{
		PaymentsRoot:   r.PaymentsRoot,
		ReceiverProofs: make([]ReceiverProofStruct, len(r.ReceiverProofs)),
		PayIdsRoot:     r.PayIdsRoot,
	}
	for i := range r.ReceiverProofs {
		s.ReceiverProofs[i] = FromReceiverProof(&r.ReceiverProofs[i])
	}
	return s
}

func (s *OverpayCheckResultStruct) ToOverpayCheckResult() (*settlement.OverpayCheckResult, error) {
	r := &settlement.OverpayCheckResult{
		PaymentsRoot:   s.PaymentsRoot,
		ReceiverProofs: make([]settlement.ReceiverProof, len(s.ReceiverProofs)),
		PayIdsRoot:     s.PayIdsRoot,
	}
	for i := range s.ReceiverProofs {
		proof, err := s.ReceiverProofs[i].ToReceiverProof()
		if err != nil {
			return nil, fmt.Errorf("ToOverpayCheckResult failed: %w", err)
		}
		r.ReceiverProofs[i] = proof
	}
	return r, nil
}

func (s *OverpayCheckResultStruct) Pack() ([]byte, error) {
	receivers := make([]common.Address, len(s.ReceiverProofs))
	proofs := make([][]byte, len(s.ReceiverProofs))
	for i := range s.ReceiverProofs {
		receivers[i] = s.ReceiverProofs[i].Receiver
		proofs[i] = s.ReceiverProofs[i].Proof
	}
	return overpayCheckResultArgs.Pack(s.PaymentsRoot, receivers, proofs, s.PayIdsRoot)
}

func UnpackOverpayCheckResult(data []byte) (*OverpayCheckResultStruct, error) {
	values, err := unpackStrict(overpayCheckResultArgs, data)
	if err != nil {
		return nil, fmt.Errorf("UnpackOverpayCheckResult failed: %w", err)
	}

	d := &decoder{values: values}
	paymentsRoot := d.hash()
	receivers := d.addresses()
	proofs := d.blobs()
	payIdsRoot := d.hash()
	if d.err != nil {
		return nil, fmt.Errorf("UnpackOverpayCheckResult failed: %w", d.err)
	}
	if len(receivers) != len(proofs) {
		return nil, fmt.Errorf("UnpackOverpayCheckResult failed: %w: %d receivers, %d proofs",
			ErrDecode, len(receivers), len(proofs))
	}

	s := &OverpayCheckResultStruct{
		PaymentsRoot:   paymentsRoot,
		ReceiverProofs: make([]ReceiverProofStruct, len(receivers)),
		PayIdsRoot:     payIdsRoot,
	}
	for i := range receivers {
		s.ReceiverProofs[i] = ReceiverProofStruct{Receiver: receivers[i], Proof: proofs[i]}
	}
	return s, nil
}
