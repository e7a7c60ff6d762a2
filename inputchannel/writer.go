package inputchannel

import (
	"bytes"
	"encoding/binary"

	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Writer builds an input channel stream. Each method mirrors the Reader method
// of the same name.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the stream written so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) WriteU8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

func (w *Writer) WriteU16(v uint16) *Writer {
	w.buf.Write(binary.BigEndian.AppendUint16(nil, v))
	return w
}

func (w *Writer) WriteU32(v uint32) *Writer {
	w.buf.Write(binary.BigEndian.AppendUint32(nil, v))
	return w
}

func (w *Writer) WriteU64(v uint64) *Writer {
	w.buf.Write(binary.BigEndian.AppendUint64(nil, v))
	return w
}

func (w *Writer) WriteBool(v bool) *Writer {
	if v {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

func (w *Writer) WriteHash(h common.Hash) *Writer {
	w.buf.Write(h[:])
	return w
}

func (w *Writer) WriteAddress(a common.Address) *Writer {
	w.buf.Write(a[:])
	return w
}

func (w *Writer) WriteSignature(s settlement.Signature) *Writer {
	w.buf.Write(s[:])
	return w
}

func (w *Writer) WriteU256(v *uint256.Int) *Writer {
	b := v.Bytes32()
	w.buf.Write(b[:])
	return w
}

func (w *Writer) WriteCount(n int) *Writer {
	return w.WriteU32(uint32(n))
}

func (w *Writer) WriteBytes(b []byte) *Writer {
	w.WriteU32(uint32(len(b)))
	w.buf.Write(b)
	return w
}

func (w *Writer) writeHashes(hashes []common.Hash) *Writer {
	w.WriteCount(len(hashes))
	for _, h := range hashes {
		w.WriteHash(h)
	}
	return w
}
