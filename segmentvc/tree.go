package segmentvc

import (
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/**
 * Segmented vector commitment.
 *
 * Leaves occupy sequential slots. Slot s lives in segment s / segmentSize at
 * local index s % segmentSize. Each value hashes to a chunk hash, a segment
 * root is the hash of the segment's concatenated chunk hashes, and the upper
 * tree hashes groups of nodeWidth nodes per level until one node remains.
 */

// BuildMode is the two state build machine of a SegmentVC.
type BuildMode uint8

const (
	// Built recomputes the tree on every mutation. It is the initial state.
	Built BuildMode = iota
	// Building stages inserts without recomputing until FinishBuilding.
	Building
)

func (m BuildMode) String() string {
	if m == Building {
		return "building"
	}
	return "built"
}

// Leaf is a key/value pair held by the tree.
type Leaf struct {
	Key   common.Hash
	Value common.Hash
}

type segment struct {
	values      []common.Hash
	chunkHashes []common.Hash
	root        common.Hash
}

// SegmentVC is an authenticated, append ordered key/value commitment.
// It is not safe for concurrent use.
type SegmentVC struct {
	options TreeOptions

	segments  []segment
	totalSize int
	rootHash  common.Hash

	// levels[0] holds the segment roots, the last level holds the root.
	levels [][]common.Hash

	// indices maps a key to its slot plus one.
	indices map[common.Hash]int

	history *CircularHistoryStore
	mode    BuildMode
}

// New creates an empty tree holding one empty segment and a zero root.
func New(opts ...TreeOption) *SegmentVC {
	options := ParseTreeOptions(opts...)

	return &SegmentVC{
		options:  options,
		segments: []segment{{}},
		indices:  map[common.Hash]int{},
		history:  NewCircularHistoryStore(options.historyCapacity),
		mode:     Built,
	}
}

func (vc *SegmentVC) RootHash() common.Hash { return vc.rootHash }

// Len returns the number of keys in the tree.
func (vc *SegmentVC) Len() int { return vc.totalSize }

func (vc *SegmentVC) Mode() BuildMode { return vc.mode }

func (vc *SegmentVC) Options() TreeOptions { return vc.options }

// History exposes the root history store.
func (vc *SegmentVC) History() *CircularHistoryStore { return vc.history }

// Has reports whether key is present.
func (vc *SegmentVC) Has(key common.Hash) bool {
	_, ok := vc.indices[key]
	return ok
}

// StartBuilding switches to Building mode. Inserts are staged until FinishBuilding.
func (vc *SegmentVC) StartBuilding() {
	vc.mode = Building
}

// FinishBuilding leaves Building mode. Every segment holding a non zero value is
// recomputed, then the whole upper tree, and the new root is recorded in history.
// Outside Building mode it only returns the current root. The tree is back in
// Built mode even when recording the root fails.
func (vc *SegmentVC) FinishBuilding() (common.Hash, error) {
	if vc.mode != Building {
		return vc.rootHash, nil
	}
	vc.mode = Built

	for i := range vc.segments {
		if vc.segments[i].hasValue() {
			vc.recomputeSegment(i)
		}
	}

	return vc.rebuildLevels()
}

// Insert assigns key the next slot. In Built mode it returns the new root, in
// Building mode it returns the unchanged current root.
func (vc *SegmentVC) Insert(key common.Hash, value common.Hash) (common.Hash, error) {
	if _, ok := vc.indices[key]; ok {
		return common.Hash{}, ErrKeyExists
	}

	segmentIndex, localIndex := vc.segmentAndIndex(vc.totalSize)
	for len(vc.segments) <= segmentIndex {
		vc.segments = append(vc.segments, segment{})
	}

	vc.totalSize++
	vc.indices[key] = vc.totalSize

	seg := &vc.segments[segmentIndex]
	seg.setValue(localIndex, value)

	if vc.mode == Building {
		return vc.rootHash, nil
	}

	vc.recomputeSegment(segmentIndex)
	return vc.rebuildLevels()
}

// InsertBatch stages every leaf then rebuilds once. A batch holding a key that
// is already present, or holding a key twice, is rejected before anything is
// staged.
func (vc *SegmentVC) InsertBatch(leaves []Leaf) (common.Hash, error) {
	batch := make(map[common.Hash]struct{}, len(leaves))
	for _, leaf := range leaves {
		if _, ok := batch[leaf.Key]; ok || vc.Has(leaf.Key) {
			return common.Hash{}, ErrKeyExists
		}
		batch[leaf.Key] = struct{}{}
	}

	vc.StartBuilding()

	for _, leaf := range leaves {
		if _, err := vc.Insert(leaf.Key, leaf.Value); err != nil {
			return common.Hash{}, err
		}
	}

	root, err := vc.FinishBuilding()
	if err != nil {
		return common.Hash{}, err
	}

	if logger.Sugar != nil {
		logger.Sugar.Debugf("InsertBatch: %d leaves, root %s", len(leaves), root.Hex())
	}
	return root, nil
}

// Value returns the value stored under key.
func (vc *SegmentVC) Value(key common.Hash) (common.Hash, error) {
	segmentIndex, localIndex, err := vc.locate(key)
	if err != nil {
		return common.Hash{}, err
	}
	return vc.segments[segmentIndex].values[localIndex], nil
}

// Update replaces the value under key and rebuilds the owning segment and the upper tree.
func (vc *SegmentVC) Update(key common.Hash, value common.Hash) (common.Hash, error) {
	segmentIndex, localIndex, err := vc.locate(key)
	if err != nil {
		return common.Hash{}, err
	}

	vc.segments[segmentIndex].setValue(localIndex, value)
	if vc.mode == Building {
		return vc.rootHash, nil
	}

	vc.recomputeSegment(segmentIndex)
	return vc.rebuildLevels()
}

// Upsert inserts key or updates it when already present.
func (vc *SegmentVC) Upsert(key common.Hash, value common.Hash) (common.Hash, error) {
	if vc.Has(key) {
		return vc.Update(key, value)
	}
	return vc.Insert(key, value)
}

// Verify checks the stored value under key and that historyRoot is the current
// root or a root still held by the history store.
func (vc *SegmentVC) Verify(key common.Hash, value common.Hash, historyRoot common.Hash) (bool, error) {
	stored, err := vc.Value(key)
	if err != nil {
		return false, err
	}
	if stored != value {
		return false, nil
	}

	return historyRoot == vc.rootHash || vc.history.CheckHash(historyRoot, nil), nil
}

// VerifyHistoricalRoot reports whether root is current or provable from history.
func (vc *SegmentVC) VerifyHistoricalRoot(root common.Hash, historyProof []common.Hash) bool {
	if root == (common.Hash{}) {
		return false
	}
	return root == vc.rootHash || vc.history.CheckHash(root, historyProof)
}

// GenerateProof builds the inclusion proof of key against the current root.
func (vc *SegmentVC) GenerateProof(key common.Hash) (*MerkleProof, error) {
	segmentIndex, localIndex, err := vc.locate(key)
	if err != nil {
		return nil, err
	}

	seg := &vc.segments[segmentIndex]
	if localIndex >= len(seg.chunkHashes) || len(vc.levels) == 0 {
		// staged but not yet hashed
		return nil, &TreeError{Kind: IndexOutOfBounds, Reason: "chunk hashes not computed"}
	}

	proof := &MerkleProof{
		ValueProof: ValueProof{
			Value:     seg.values[localIndex],
			ChunkHash: seg.chunkHashes[localIndex],
		},
		SegmentProof: SegmentProof{
			ChunkIndex: uint32(localIndex),
			Siblings:   siblingsExcept(seg.chunkHashes, 0, len(seg.chunkHashes), localIndex),
		},
		RootHash: vc.rootHash,
	}

	width := vc.options.nodeWidth
	current := segmentIndex
	for level := 0; level < len(vc.levels)-1; level++ {
		nodes := vc.levels[level]
		groupStart := (current / width) * width
		groupEnd := min(groupStart+width, len(nodes))

		proof.LevelProofs = append(proof.LevelProofs, LevelProof{
			Level:     uint32(level),
			NodeIndex: uint32(current % width),
			Siblings:  siblingsExcept(nodes, groupStart, groupEnd, current),
		})
		current /= width
	}

	return proof, nil
}

func (vc *SegmentVC) locate(key common.Hash) (int, int, error) {
	slot, ok := vc.indices[key]
	if !ok {
		return 0, 0, ErrKeyNotFound
	}
	segmentIndex, localIndex := vc.segmentAndIndex(slot - 1)
	if segmentIndex >= len(vc.segments) || localIndex >= len(vc.segments[segmentIndex].values) {
		return 0, 0, ErrIndexOutOfBounds
	}
	return segmentIndex, localIndex, nil
}

func (vc *SegmentVC) segmentAndIndex(slot int) (int, int) {
	return slot / vc.options.segmentSize, slot % vc.options.segmentSize
}

// recomputeSegment rehashes every value of a segment.
func (vc *SegmentVC) recomputeSegment(segmentIndex int) {
	seg := &vc.segments[segmentIndex]

	seg.chunkHashes = seg.chunkHashes[:0]
	for _, value := range seg.values {
		seg.chunkHashes = append(seg.chunkHashes, crypto.Keccak256Hash(value.Bytes()))
	}
	seg.root = hashConcat(seg.chunkHashes)
}

// rebuildLevels recomputes every level from the segment roots and records the root.
func (vc *SegmentVC) rebuildLevels() (common.Hash, error) {
	current := make([]common.Hash, len(vc.segments))
	for i := range vc.segments {
		current[i] = vc.segments[i].root
	}

	levels := [][]common.Hash{current}
	width := vc.options.nodeWidth
	for len(current) > 1 {
		next := make([]common.Hash, 0, (len(current)+width-1)/width)
		for start := 0; start < len(current); start += width {
			end := min(start+width, len(current))
			next = append(next, hashConcat(current[start:end]))
		}
		levels = append(levels, next)
		current = next
	}

	vc.levels = levels
	vc.rootHash = current[0]

	if _, err := vc.history.AddHash(vc.rootHash); err != nil {
		return common.Hash{}, err
	}
	return vc.rootHash, nil
}

func (s *segment) setValue(localIndex int, value common.Hash) {
	for len(s.values) <= localIndex {
		s.values = append(s.values, common.Hash{})
	}
	s.values[localIndex] = value
}

func (s *segment) hasValue() bool {
	for _, v := range s.values {
		if v != (common.Hash{}) {
			return true
		}
	}
	return false
}

func hashConcat(hashes []common.Hash) common.Hash {
	data := make([][]byte, len(hashes))
	for i := range hashes {
		data[i] = hashes[i].Bytes()
	}
	return crypto.Keccak256Hash(data...)
}

func siblingsExcept(nodes []common.Hash, start, end, skip int) []common.Hash {
	siblings := make([]common.Hash, 0, end-start)
	for i := start; i < end; i++ {
		if i != skip {
			siblings = append(siblings, nodes[i])
		}
	}
	return siblings
}
