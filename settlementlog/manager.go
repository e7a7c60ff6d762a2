package settlementlog

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

var (
	ErrUnknownProxy     = errors.New("no settlements recorded for proxy")
	ErrUnknownProxyRoot = errors.New("proxy root is neither current nor in history")
)

// proxyState is everything the manager tracks per proxy. chainHead folds every
// settlement hash ever added; chainStart folds only those evicted from history,
// so folding the live history onto chainStart gives chainHead.
type proxyState struct {
	history        *segmentvc.CircularHistoryStore
	log            *Log
	chainStart     common.Hash
	chainHead      common.Hash
	lastSettlement uint256.Int
}

// storedHistory is the persisted form of a receiver history store.
type storedHistory struct {
	Capacity    uint64
	Hashes      []common.Hash
	HistoryHash common.Hash
	TotalAdded  uint64
}

// SettlementManager records proxy and receiver settlements.
//
// Every proxy's chain head is upserted into one tree keyed by the padded proxy
// address; a receiver settlement is only accepted against a root of that tree.
type SettlementManager struct {
	mu sync.RWMutex

	options       Options
	settleOfProxy *segmentvc.SegmentVC
	proxies       map[common.Address]*proxyState
	receiverLogs  map[common.Address]*Log
}

func NewSettlementManager(options ...Option) *SettlementManager {
	opts := ParseOptions(options...)

	return &SettlementManager{
		options:       opts,
		settleOfProxy: segmentvc.New(opts.treeOptions...),
		proxies:       map[common.Address]*proxyState{},
		receiverLogs:  map[common.Address]*Log{},
	}
}

// AddProxySettlement records s and returns the new proxy tree root.
func (m *SettlementManager) AddProxySettlement(s ProxySettlement) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, err := m.proxyStateLocked(s.Proxy)
	if err != nil {
		return common.Hash{}, fmt.Errorf("AddProxySettlement failed: %w", err)
	}

	h := s.Hash()

	if state.history.CurrentSize() == state.history.Capacity() {
		oldest, _ := state.history.Oldest()
		state.chainStart = settlement.ChainHash(state.chainStart, oldest.Bytes())
	}
	if _, err := state.history.AddHash(h); err != nil {
		return common.Hash{}, fmt.Errorf("AddProxySettlement failed: %w", err)
	}
	state.chainHead = settlement.ChainHash(state.chainHead, h.Bytes())

	root, err := m.settleOfProxy.Upsert(settlement.AddressToHash(s.Proxy), state.chainHead)
	if err != nil {
		return common.Hash{}, fmt.Errorf("AddProxySettlement failed: %w", err)
	}

	if _, err := state.log.Append(h); err != nil {
		return common.Hash{}, fmt.Errorf("AddProxySettlement failed: %w", err)
	}
	state.lastSettlement = s.ID

	if logger.Sugar != nil {
		logger.Sugar.Debugf("AddProxySettlement: proxy %s, settlement %s, root %s",
			s.Proxy.Hex(), h.Hex(), root.Hex())
	}
	return root, nil
}

func (m *SettlementManager) proxyStateLocked(proxy common.Address) (*proxyState, error) {
	if state, ok := m.proxies[proxy]; ok {
		return state, nil
	}

	log, err := NewProxyLog(proxy, WithStore(m.options.store))
	if err != nil {
		return nil, err
	}
	state := &proxyState{
		history: segmentvc.NewCircularHistoryStore(m.options.historyCapacity),
		log:     log,
	}
	m.proxies[proxy] = state
	return state, nil
}

// AddReceiverSettlement records s. Its ProxyHashRoot must be the current proxy
// tree root or one still held in the tree's history.
func (m *SettlementManager) AddReceiverSettlement(s ReceiverSettlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.settleOfProxy.VerifyHistoricalRoot(s.ProxyHashRoot, nil) {
		return fmt.Errorf("AddReceiverSettlement failed: %w: %s", ErrUnknownProxyRoot, s.ProxyHashRoot.Hex())
	}

	store, err := m.loadReceiverHistory(s.Receiver)
	if err != nil {
		return fmt.Errorf("AddReceiverSettlement failed: %w", err)
	}
	if store == nil {
		store = segmentvc.NewCircularHistoryStore(m.options.historyCapacity)
	}

	h := s.Hash()
	if _, err := store.AddHash(h); err != nil {
		return fmt.Errorf("AddReceiverSettlement failed: %w", err)
	}
	if err := m.saveReceiverHistory(s.Receiver, store); err != nil {
		return fmt.Errorf("AddReceiverSettlement failed: %w", err)
	}

	log, ok := m.receiverLogs[s.Receiver]
	if !ok {
		if log, err = NewReceiverLog(s.Receiver, WithStore(m.options.store)); err != nil {
			return fmt.Errorf("AddReceiverSettlement failed: %w", err)
		}
		m.receiverLogs[s.Receiver] = log
	}
	if _, err := log.Append(h); err != nil {
		return fmt.Errorf("AddReceiverSettlement failed: %w", err)
	}

	if logger.Sugar != nil {
		logger.Sugar.Debugf("AddReceiverSettlement: receiver %s, settlement %s", s.Receiver.Hex(), h.Hex())
	}
	return nil
}

// VerifyProxySettlement checks that proof proves proxy's current chain head
// against the current or a historical proxy tree root.
func (m *SettlementManager) VerifyProxySettlement(proxy common.Address, proof *segmentvc.MerkleProof) (bool, error) {
	if proof == nil {
		return false, fmt.Errorf("VerifyProxySettlement failed: %w",
			&settlement.PipelineError{Kind: settlement.ProofMismatch, Detail: "no proof supplied"})
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.proxies[proxy]
	if !ok {
		return false, nil
	}
	if proof.Leaf() != state.chainHead {
		return false, nil
	}
	if !m.settleOfProxy.VerifyHistoricalRoot(proof.RootHash, nil) {
		return false, nil
	}
	return proof.Verify()
}

// VerifyReceiverSettlement checks h against receiver's history.
func (m *SettlementManager) VerifyReceiverSettlement(receiver common.Address, h common.Hash, historyProof []common.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	store, err := m.loadReceiverHistory(receiver)
	if err != nil {
		return false, fmt.Errorf("VerifyReceiverSettlement failed: %w", err)
	}
	if store == nil {
		return false, nil
	}
	return store.CheckHash(h, historyProof), nil
}

// GenerateProxySettlementProof proves proxy's chain head against the current root.
func (m *SettlementManager) GenerateProxySettlementProof(proxy common.Address) (*segmentvc.MerkleProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	proof, err := m.settleOfProxy.GenerateProof(settlement.AddressToHash(proxy))
	if err != nil {
		return nil, fmt.Errorf("GenerateProxySettlementProof failed: %w", err)
	}
	return proof, nil
}

// SettlementProof proves the retained settlement hashes of proxy: folded onto
// the start hash they reproduce the proven chain head.
func (m *SettlementManager) SettlementProof(proxy common.Address) (*settlement.SettlementProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.proxies[proxy]
	if !ok {
		return nil, fmt.Errorf("SettlementProof failed: %w: %s", ErrUnknownProxy, proxy.Hex())
	}

	proof, err := m.settleOfProxy.GenerateProof(settlement.AddressToHash(proxy))
	if err != nil {
		return nil, fmt.Errorf("SettlementProof failed: %w", err)
	}

	return &settlement.SettlementProof{
		Proxy:            proxy,
		StartHistoryHash: state.chainStart,
		SettlementIDs:    state.history.Hashes(),
		Proof:            proof,
	}, nil
}

// CurrentProxyRoot is the root of the proxy tree.
func (m *SettlementManager) CurrentProxyRoot() common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settleOfProxy.RootHash()
}

// CurrentReceiverHash is the latest settlement hash of receiver.
func (m *SettlementManager) CurrentReceiverHash(receiver common.Address) (common.Hash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	store, err := m.loadReceiverHistory(receiver)
	if err != nil || store == nil {
		return common.Hash{}, false
	}
	return store.Latest()
}

// LastSettlement is the id of proxy's latest settlement.
func (m *SettlementManager) LastSettlement(proxy common.Address) (uint256.Int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.proxies[proxy]
	if !ok {
		return uint256.Int{}, false
	}
	return state.lastSettlement, true
}

// ProxyLog returns the settlement log of proxy.
func (m *SettlementManager) ProxyLog(proxy common.Address) (*Log, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.proxies[proxy]
	if !ok {
		return nil, false
	}
	return state.log, true
}

// ReceiverLog returns the settlement log of receiver.
func (m *SettlementManager) ReceiverLog(receiver common.Address) (*Log, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	log, ok := m.receiverLogs[receiver]
	return log, ok
}

// SealProxyLog seals the current state of proxy's log, binding the history
// digest of its evicted settlements.
func (m *SettlementManager) SealProxyLog(proxy common.Address, key *ecdsa.PrivateKey) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.proxies[proxy]
	if !ok {
		return nil, fmt.Errorf("SealProxyLog failed: %w: %s", ErrUnknownProxy, proxy.Hex())
	}

	logState, err := state.log.State(state.history.HistoryHash())
	if err != nil {
		return nil, fmt.Errorf("SealProxyLog failed: %w", err)
	}
	return Seal(logState, key)
}

func (m *SettlementManager) ProxyStats(proxy common.Address) ProxyStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ProxyStats{
		TotalSize:   m.settleOfProxy.Len(),
		CurrentRoot: m.settleOfProxy.RootHash(),
		HistorySize: m.settleOfProxy.History().CurrentSize(),
	}
	if state, ok := m.proxies[proxy]; ok {
		stats.TotalHistory = state.history.TotalAdded()
		stats.HasHistory = true
		stats.LogLeaves = state.log.LeafCount()
	}
	return stats
}

func (m *SettlementManager) ReceiverStats(receiver common.Address) (ReceiverStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	store, err := m.loadReceiverHistory(receiver)
	if err != nil {
		return ReceiverStats{}, fmt.Errorf("ReceiverStats failed: %w", err)
	}
	if store == nil {
		return ReceiverStats{}, nil
	}
	return ReceiverStats{
		CurrentSize: store.CurrentSize(),
		TotalAdded:  store.TotalAdded(),
		HasHistory:  true,
	}, nil
}

func receiverHistoryKey(receiver common.Address) []byte {
	return append([]byte("history/receiver/"), receiver.Bytes()...)
}

// loadReceiverHistory returns nil, nil when receiver has no history.
func (m *SettlementManager) loadReceiverHistory(receiver common.Address) (*segmentvc.CircularHistoryStore, error) {
	key := receiverHistoryKey(receiver)

	has, err := m.options.store.Has(key)
	if err != nil || !has {
		return nil, err
	}
	raw, err := m.options.store.Get(key)
	if err != nil {
		return nil, err
	}

	var stored storedHistory
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("receiver history %s: %w", receiver.Hex(), err)
	}
	return segmentvc.RestoreCircularHistoryStore(
		int(stored.Capacity), stored.Hashes, stored.HistoryHash, stored.TotalAdded,
	), nil
}

func (m *SettlementManager) saveReceiverHistory(receiver common.Address, store *segmentvc.CircularHistoryStore) error {
	raw, err := rlp.EncodeToBytes(&storedHistory{
		Capacity:    uint64(store.Capacity()),
		Hashes:      store.Hashes(),
		HistoryHash: store.HistoryHash(),
		TotalAdded:  store.TotalAdded(),
	})
	if err != nil {
		return err
	}
	return m.options.store.Put(receiverHistoryKey(receiver), raw)
}
