package segmentvc

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/**
 * Bounded window of recent roots plus a rolling digest of evicted ones.
 */

// StoreStats summarises a CircularHistoryStore for diagnostics.
type StoreStats struct {
	CurrentSize int
	TotalAdded  uint64
	HasHistory  bool
}

// CircularHistoryStore keeps the most recent roots in a FIFO window. Roots that
// fall out of the window are folded into historyHash, so an evicted root is still
// provable given the hashes evicted after it.
type CircularHistoryStore struct {
	hashes      []common.Hash
	historyHash common.Hash
	totalAdded  uint64
	capacity    int
}

// NewCircularHistoryStore creates an empty store. A capacity below one is treated as one.
func NewCircularHistoryStore(capacity int) *CircularHistoryStore {
	if capacity < 1 {
		capacity = 1
	}
	return &CircularHistoryStore{
		hashes:   make([]common.Hash, 0, capacity),
		capacity: capacity,
	}
}

// AddHash appends h to the live window, evicting the oldest entry into the
// history digest when the window is full. It returns h's position in the window.
func (s *CircularHistoryStore) AddHash(h common.Hash) (int, error) {
	if h == (common.Hash{}) {
		return 0, historyStoreError("invalid hash")
	}

	if len(s.hashes) == s.capacity {
		s.evictOldest()
	}

	position := len(s.hashes)
	s.hashes = append(s.hashes, h)
	s.totalAdded++

	return position, nil
}

// evictOldest folds the oldest live entry into the history digest. The first
// eviction seeds the digest with the evicted root itself.
func (s *CircularHistoryStore) evictOldest() {
	evicted := s.hashes[0]
	s.hashes = append(s.hashes[:0], s.hashes[1:]...)

	if s.historyHash == (common.Hash{}) {
		s.historyHash = evicted
		return
	}
	s.historyHash = crypto.Keccak256Hash(s.historyHash.Bytes(), evicted.Bytes())
}

// CheckHash reports whether h is in the live window or, failing that, whether
// folding historyProof onto h reproduces the history digest.
func (s *CircularHistoryStore) CheckHash(h common.Hash, historyProof []common.Hash) bool {
	if s.HashExists(h) {
		return true
	}

	if len(historyProof) == 0 {
		return false
	}

	current := h
	for _, p := range historyProof {
		current = crypto.Keccak256Hash(current.Bytes(), p.Bytes())
	}
	return current == s.historyHash
}

// HashExists reports direct membership in the live window.
func (s *CircularHistoryStore) HashExists(h common.Hash) bool {
	for _, existing := range s.hashes {
		if existing == h {
			return true
		}
	}
	return false
}

func (s *CircularHistoryStore) CurrentSize() int { return len(s.hashes) }

func (s *CircularHistoryStore) TotalAdded() uint64 { return s.totalAdded }

func (s *CircularHistoryStore) Capacity() int { return s.capacity }

func (s *CircularHistoryStore) HistoryHash() common.Hash { return s.historyHash }

func (s *CircularHistoryStore) HasHistory() bool { return s.historyHash != (common.Hash{}) }

// Oldest returns the oldest root still in the live window.
func (s *CircularHistoryStore) Oldest() (common.Hash, bool) {
	if len(s.hashes) == 0 {
		return common.Hash{}, false
	}
	return s.hashes[0], true
}

// Latest returns the most recently added root.
func (s *CircularHistoryStore) Latest() (common.Hash, bool) {
	if len(s.hashes) == 0 {
		return common.Hash{}, false
	}
	return s.hashes[len(s.hashes)-1], true
}

// Hashes returns a copy of the live window, oldest first.
func (s *CircularHistoryStore) Hashes() []common.Hash {
	out := make([]common.Hash, len(s.hashes))
	copy(out, s.hashes)
	return out
}

func (s *CircularHistoryStore) Stats() StoreStats {
	return StoreStats{
		CurrentSize: len(s.hashes),
		TotalAdded:  s.totalAdded,
		HasHistory:  s.HasHistory(),
	}
}

// RestoreCircularHistoryStore rebuilds a store from a previously captured state.
// Hashes beyond capacity are evicted in order, exactly as AddHash would.
func RestoreCircularHistoryStore(
	capacity int, hashes []common.Hash, historyHash common.Hash, totalAdded uint64,
) *CircularHistoryStore {
	s := NewCircularHistoryStore(capacity)
	s.historyHash = historyHash
	s.totalAdded = totalAdded

	for _, h := range hashes {
		if len(s.hashes) == s.capacity {
			s.evictOldest()
		}
		s.hashes = append(s.hashes, h)
	}
	return s
}
