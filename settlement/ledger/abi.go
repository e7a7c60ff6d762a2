package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

/**
 * ABI encoding of the ledger mirror records. Each record is a flat argument
 * list in field order; a decoded blob must re-encode to the same bytes.
 */

var (
	ErrNonCanonical = errors.New("abi encoding is not canonical")
	ErrDecode       = errors.New("abi decode failed")
	ErrDecodeProof  = errors.New("receiver proof decode failed")
	ErrU256Range    = errors.New("integer does not fit 256 bits")
)

var (
	bytes32Type   = mustType("bytes32")
	addressType   = mustType("address")
	uint256Type   = mustType("uint256")
	addressesType = mustType("address[]")
	blobsType     = mustType("bytes[]")
)

func mustType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(fmt.Sprintf("abi type %s: %v", name, err))
	}
	return t
}

func arguments(types ...abi.Type) abi.Arguments {
	args := make(abi.Arguments, len(types))
	for i, t := range types {
		args[i] = abi.Argument{Type: t}
	}
	return args
}

// unpackStrict decodes data and requires that packing the result reproduces it.
func unpackStrict(args abi.Arguments, data []byte) ([]any, error) {
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(values) != len(args) {
		return nil, fmt.Errorf("%w: %d values for %d arguments", ErrDecode, len(values), len(args))
	}

	repacked, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !bytes.Equal(repacked, data) {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrNonCanonical)
	}
	return values, nil
}

// decoder pulls typed values out of an unpacked argument list, recording the
// first type mismatch.
type decoder struct {
	values []any
	next   int
	err    error
}

func (d *decoder) value() any {
	if d.err != nil || d.next >= len(d.values) {
		if d.err == nil {
			d.err = fmt.Errorf("%w: missing value %d", ErrDecode, d.next)
		}
		return nil
	}
	v := d.values[d.next]
	d.next++
	return v
}

func (d *decoder) mismatch(want string, got any) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: value %d is %T, expected %s", ErrDecode, d.next-1, got, want)
	}
}

func (d *decoder) hash() common.Hash {
	v := d.value()
	b, ok := v.([32]byte)
	if !ok {
		d.mismatch("bytes32", v)
		return common.Hash{}
	}
	return common.Hash(b)
}

func (d *decoder) address() common.Address {
	v := d.value()
	a, ok := v.(common.Address)
	if !ok {
		d.mismatch("address", v)
		return common.Address{}
	}
	return a
}

func (d *decoder) u256() *big.Int {
	v := d.value()
	b, ok := v.(*big.Int)
	if !ok {
		d.mismatch("uint256", v)
		return new(big.Int)
	}
	return b
}

func (d *decoder) addresses() []common.Address {
	v := d.value()
	a, ok := v.([]common.Address)
	if !ok {
		d.mismatch("address[]", v)
		return nil
	}
	return a
}

func (d *decoder) blobs() [][]byte {
	v := d.value()
	b, ok := v.([][]byte)
	if !ok {
		d.mismatch("bytes[]", v)
		return nil
	}
	return b
}

func toBig(v *uint256.Int) *big.Int {
	return v.ToBig()
}

func fromBig(b *big.Int) (uint256.Int, error) {
	if b == nil || b.Sign() < 0 {
		return uint256.Int{}, ErrU256Range
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return uint256.Int{}, ErrU256Range
	}
	return *v, nil
}
