package settlement

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PayIdInfo is the on ledger record authorising payments under one pay id.
type PayIdInfo struct {
	ID          uint256.Int
	Amount      uint256.Int
	Sender      common.Address
	Proxy       common.Address
	State       uint8
	CreatedAt   uint64
	ClosingTime uint64
}

// Hash packs id32 || amount32 || sender20 || proxy20 || state1 || created_at8 || closing_time8.
func (p *PayIdInfo) Hash() common.Hash {
	return newPacker(32+32+20+20+1+8+8).
		u256(&p.ID).
		u256(&p.Amount).
		bytes(p.Sender.Bytes()).
		bytes(p.Proxy.Bytes()).
		u8(p.State).
		u64(p.CreatedAt).
		u64(p.ClosingTime).
		hash()
}

// Key is the id as a 32 byte big endian hash.
func (p *PayIdInfo) Key() common.Hash {
	return U256ToHash(&p.ID)
}

// sortedPayIdInfos returns a copy of infos ordered by ascending id.
func sortedPayIdInfos(infos []PayIdInfo) []PayIdInfo {
	sorted := make([]PayIdInfo, len(infos))
	copy(sorted, infos)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID.Lt(&sorted[j].ID)
	})
	return sorted
}

// payIdIndex maps pay id to its record. Later duplicates win.
func payIdIndex(infos []PayIdInfo) map[uint256.Int]*PayIdInfo {
	index := make(map[uint256.Int]*PayIdInfo, len(infos))
	for i := range infos {
		index[infos[i].ID] = &infos[i]
	}
	return index
}
