package inputchannel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

/**
 * The input channel carries the private inputs of a settler program as a flat
 * byte stream. Values are read in a fixed schema order with no field tags:
 * integers are big endian, a bool is one byte holding 0 or 1, and counts and
 * byte blobs are prefixed with a u32 length.
 */

const (
	// MaxBlobSize bounds a single length prefixed blob.
	MaxBlobSize = 16 << 20

	// MaxCount bounds the element count of a list.
	MaxCount = 1 << 20
)

var (
	ErrInvalidBool = errors.New("bool byte is neither 0 nor 1")
	ErrTooLarge    = errors.New("length prefix exceeds limit")

	ErrTrailingBytes = errors.New("unexpected trailing bytes")
)

// Reader reads schema ordered values. The first error sticks: every later read
// returns it again, so callers may check once after a run of reads.
type Reader struct {
	r   io.Reader
	err error
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Err returns the first read error.
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fill(buf []byte, what string) error {
	if r.err != nil {
		return r.err
	}
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = fmt.Errorf("read %s failed: %w", what, err)
	}
	return r.err
}

func (r *Reader) ReadU8() (uint8, error) {
	var b [1]byte
	if err := r.fill(b[:], "u8"); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	var b [2]byte
	if err := r.fill(b[:], "u16"); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	var b [4]byte
	if err := r.fill(b[:], "u32"); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	var b [8]byte
	if err := r.fill(b[:], "u64"); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	r.err = fmt.Errorf("read bool failed: %w: 0x%02x", ErrInvalidBool, b)
	return false, r.err
}

func (r *Reader) ReadHash() (common.Hash, error) {
	var h common.Hash
	err := r.fill(h[:], "hash")
	return h, err
}

func (r *Reader) ReadAddress() (common.Address, error) {
	var a common.Address
	err := r.fill(a[:], "address")
	return a, err
}

func (r *Reader) ReadSignature() (settlement.Signature, error) {
	var s settlement.Signature
	err := r.fill(s[:], "signature")
	return s, err
}

// ReadU256 reads a 32 byte big endian integer.
func (r *Reader) ReadU256() (uint256.Int, error) {
	var b [32]byte
	if err := r.fill(b[:], "u256"); err != nil {
		return uint256.Int{}, err
	}
	var v uint256.Int
	v.SetBytes32(b[:])
	return v, nil
}

// ReadCount reads a u32 list length, bounded by MaxCount.
func (r *Reader) ReadCount() (int, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if n > MaxCount {
		r.err = fmt.Errorf("read count failed: %w: %d", ErrTooLarge, n)
		return 0, r.err
	}
	return int(n), nil
}

// ReadBytes reads a u32 length prefixed blob, bounded by MaxBlobSize.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if n > MaxBlobSize {
		r.err = fmt.Errorf("read bytes failed: %w: %d", ErrTooLarge, n)
		return nil, r.err
	}
	buf := make([]byte, n)
	if err := r.fill(buf, "bytes"); err != nil {
		return nil, err
	}
	return buf, nil
}

// Finish checks that the stream holds nothing beyond the values already read.
func (r *Reader) Finish() error {
	if r.err != nil {
		return r.err
	}
	var b [1]byte
	n, err := r.r.Read(b[:])
	if n > 0 {
		r.err = ErrTrailingBytes
		return r.err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		r.err = fmt.Errorf("finish failed: %w", err)
		return r.err
	}
	return nil
}

func (r *Reader) readHashes() ([]common.Hash, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	hashes := make([]common.Hash, n)
	for i := range hashes {
		if hashes[i], err = r.ReadHash(); err != nil {
			return nil, err
		}
	}
	return hashes, nil
}
