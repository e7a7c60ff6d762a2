package settlement

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

/**
 * Fixed width packing helpers. Record hashes concatenate big endian fields
 * with no delimiters, so field order and width are part of every hash.
 */

// ChainHash folds data onto prev: keccak(prev || data).
func ChainHash(prev common.Hash, data []byte) common.Hash {
	return crypto.Keccak256Hash(prev.Bytes(), data)
}

// AddressToHash left pads an address to 32 bytes.
func AddressToHash(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// HashToAddress takes the low 20 bytes of a padded address.
func HashToAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes())
}

// U256ToHash returns the 32 byte big endian form of v.
func U256ToHash(v *uint256.Int) common.Hash {
	return common.Hash(v.Bytes32())
}

// hashAll hashes the concatenation of hashes.
func hashAll(hashes []common.Hash) common.Hash {
	data := make([][]byte, len(hashes))
	for i := range hashes {
		data[i] = hashes[i].Bytes()
	}
	return crypto.Keccak256Hash(data...)
}

type packer struct {
	buf []byte
}

func newPacker(size int) *packer {
	return &packer{buf: make([]byte, 0, size)}
}

func (p *packer) u256(v *uint256.Int) *packer {
	b := v.Bytes32()
	p.buf = append(p.buf, b[:]...)
	return p
}

func (p *packer) u64(v uint64) *packer {
	p.buf = binary.BigEndian.AppendUint64(p.buf, v)
	return p
}

func (p *packer) u32(v uint32) *packer {
	p.buf = binary.BigEndian.AppendUint32(p.buf, v)
	return p
}

func (p *packer) u16(v uint16) *packer {
	p.buf = binary.BigEndian.AppendUint16(p.buf, v)
	return p
}

func (p *packer) u8(v uint8) *packer {
	p.buf = append(p.buf, v)
	return p
}

func (p *packer) boolean(v bool) *packer {
	if v {
		return p.u8(1)
	}
	return p.u8(0)
}

func (p *packer) bytes(b []byte) *packer {
	p.buf = append(p.buf, b...)
	return p
}

func (p *packer) hash() common.Hash {
	return crypto.Keccak256Hash(p.buf)
}
