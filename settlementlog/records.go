package settlementlog

import (
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ProxySettlement is one settled period of a proxy as recorded by the manager.
type ProxySettlement struct {
	ID           uint256.Int
	PayIdHash    common.Hash
	ServIdHash   common.Hash
	Proxy        common.Address
	ProxyReward  uint256.Int
	SystemReward uint256.Int
	Timestamp    uint256.Int
}

// Hash is keccak(id32 || pay_id_hash || serv_id_hash || proxy20 || proxy_reward32
// || system_reward32 || timestamp32).
func (s *ProxySettlement) Hash() common.Hash {
	id := s.ID.Bytes32()
	proxyReward := s.ProxyReward.Bytes32()
	systemReward := s.SystemReward.Bytes32()
	timestamp := s.Timestamp.Bytes32()

	return crypto.Keccak256Hash(
		id[:], s.PayIdHash.Bytes(), s.ServIdHash.Bytes(), s.Proxy.Bytes(),
		proxyReward[:], systemReward[:], timestamp[:],
	)
}

// ProxySettlementFromResult records an aggregated settlement under id.
func ProxySettlementFromResult(id uint64, result *settlement.ProxySettlementResult, timestamp uint64) ProxySettlement {
	return ProxySettlement{
		ID:           *uint256.NewInt(id),
		PayIdHash:    result.PayIdsRoot,
		ServIdHash:   result.ServIdsRoot,
		Proxy:        result.Proxy,
		ProxyReward:  result.ProxyProfits,
		SystemReward: result.SystemProfits,
		Timestamp:    *uint256.NewInt(timestamp),
	}
}

// ReceiverSettlement is one settlement of a receiver against a proxy root.
type ReceiverSettlement struct {
	ID             uint256.Int
	ProxyHashRoot  common.Hash
	Receiver       common.Address
	ReceiverReward uint256.Int
	Timestamp      uint256.Int
}

// Hash is keccak(id32 || proxy_hash_root || receiver20 || receiver_reward32 || timestamp32).
func (s *ReceiverSettlement) Hash() common.Hash {
	id := s.ID.Bytes32()
	reward := s.ReceiverReward.Bytes32()
	timestamp := s.Timestamp.Bytes32()

	return crypto.Keccak256Hash(id[:], s.ProxyHashRoot.Bytes(), s.Receiver.Bytes(), reward[:], timestamp[:])
}

// ReceiverSettlementFromResult records a receiver result against proxyHashRoot.
func ReceiverSettlementFromResult(
	id uint64, proxyHashRoot common.Hash, result *settlement.ReceiverSettleResult, timestamp uint64,
) ReceiverSettlement {
	return ReceiverSettlement{
		ID:             *uint256.NewInt(id),
		ProxyHashRoot:  proxyHashRoot,
		Receiver:       result.Receiver,
		ReceiverReward: result.Profit,
		Timestamp:      *uint256.NewInt(timestamp),
	}
}

// ProxyStats summarises the manager's view of one proxy.
type ProxyStats struct {
	TotalSize    int
	CurrentRoot  common.Hash
	HistorySize  int
	TotalHistory uint64
	HasHistory   bool
	LogLeaves    uint64
}

// ReceiverStats summarises one receiver's settlement history.
type ReceiverStats struct {
	CurrentSize int
	TotalAdded  uint64
	HasHistory  bool
}
