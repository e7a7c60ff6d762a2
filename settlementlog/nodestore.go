package settlementlog

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound = errors.New("mmr node not found")
)

// nodeStore keeps the MMR nodes of one log under a key prefix. Node i lives at
// prefix || "n" || i, the node count at prefix || "size".
type nodeStore struct {
	db     KeyValueStore
	prefix []byte
	size   uint64
}

func openNodeStore(db KeyValueStore, prefix string) (*nodeStore, error) {
	s := &nodeStore{db: db, prefix: []byte(prefix)}

	has, err := db.Has(s.sizeKey())
	if err != nil {
		return nil, fmt.Errorf("openNodeStore failed: %w", err)
	}
	if !has {
		return s, nil
	}

	raw, err := db.Get(s.sizeKey())
	if err != nil {
		return nil, fmt.Errorf("openNodeStore failed: %w", err)
	}
	if len(raw) != 8 {
		return nil, fmt.Errorf("openNodeStore failed: size record of %d bytes", len(raw))
	}
	s.size = binary.BigEndian.Uint64(raw)
	return s, nil
}

func (s *nodeStore) sizeKey() []byte {
	return append(append([]byte{}, s.prefix...), "size"...)
}

func (s *nodeStore) nodeKey(i uint64) []byte {
	key := append(append([]byte{}, s.prefix...), 'n')
	return binary.BigEndian.AppendUint64(key, i)
}

// Get returns node i.
func (s *nodeStore) Get(i uint64) ([]byte, error) {
	if i >= s.size {
		return nil, fmt.Errorf("%w: index %d, size %d", ErrNodeNotFound, i, s.size)
	}
	return s.db.Get(s.nodeKey(i))
}

// Append stores value as the next node and returns the new node count, which
// is the index the next node will take.
func (s *nodeStore) Append(value []byte) (uint64, error) {
	if err := s.db.Put(s.nodeKey(s.size), value); err != nil {
		return 0, err
	}
	if err := s.db.Put(s.sizeKey(), binary.BigEndian.AppendUint64(nil, s.size+1)); err != nil {
		return 0, err
	}
	s.size++
	return s.size, nil
}

func (s *nodeStore) Size() uint64 { return s.size }
