package inputchannel

import (
	"bytes"
	"fmt"

	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
)

// ReadMerkleProof reads value, chunk_hash, chunk_index, segment siblings, the
// level proofs and finally the root.
func (r *Reader) ReadMerkleProof() (*segmentvc.MerkleProof, error) {
	var (
		proof segmentvc.MerkleProof
		err   error
	)

	if proof.ValueProof.Value, err = r.ReadHash(); err != nil {
		return nil, err
	}
	if proof.ValueProof.ChunkHash, err = r.ReadHash(); err != nil {
		return nil, err
	}
	if proof.SegmentProof.ChunkIndex, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if proof.SegmentProof.Siblings, err = r.readHashes(); err != nil {
		return nil, err
	}

	levels, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	for range levels {
		var level segmentvc.LevelProof
		if level.Level, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if level.NodeIndex, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if level.Siblings, err = r.readHashes(); err != nil {
			return nil, err
		}
		proof.LevelProofs = append(proof.LevelProofs, level)
	}

	if proof.RootHash, err = r.ReadHash(); err != nil {
		return nil, err
	}
	return &proof, nil
}

func (w *Writer) WriteMerkleProof(proof *segmentvc.MerkleProof) *Writer {
	w.WriteHash(proof.ValueProof.Value).
		WriteHash(proof.ValueProof.ChunkHash).
		WriteU32(proof.SegmentProof.ChunkIndex).
		writeHashes(proof.SegmentProof.Siblings)

	w.WriteCount(len(proof.LevelProofs))
	for _, level := range proof.LevelProofs {
		w.WriteU32(level.Level).
			WriteU32(level.NodeIndex).
			writeHashes(level.Siblings)
	}
	return w.WriteHash(proof.RootHash)
}

// ReadReceipt reads pay_id, serv_id, amount, receiver, sig_sender, settled, sig_proxy.
func (r *Reader) ReadReceipt() (settlement.PaymentSettledByProxy, error) {
	var (
		receipt settlement.PaymentSettledByProxy
		err     error
	)

	if receipt.PayID, err = r.ReadU256(); err != nil {
		return receipt, err
	}
	if receipt.ServID, err = r.ReadU32(); err != nil {
		return receipt, err
	}
	if receipt.Amount, err = r.ReadU256(); err != nil {
		return receipt, err
	}
	if receipt.Receiver, err = r.ReadAddress(); err != nil {
		return receipt, err
	}
	if receipt.SigSender, err = r.ReadSignature(); err != nil {
		return receipt, err
	}
	if receipt.Settled, err = r.ReadBool(); err != nil {
		return receipt, err
	}
	receipt.SigProxy, err = r.ReadSignature()
	return receipt, err
}

func (w *Writer) WriteReceipt(receipt *settlement.PaymentSettledByProxy) *Writer {
	return w.WriteU256(&receipt.PayID).
		WriteU32(receipt.ServID).
		WriteU256(&receipt.Amount).
		WriteAddress(receipt.Receiver).
		WriteSignature(receipt.SigSender).
		WriteBool(receipt.Settled).
		WriteSignature(receipt.SigProxy)
}

func (r *Reader) ReadReceipts() ([]settlement.PaymentSettledByProxy, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	receipts := make([]settlement.PaymentSettledByProxy, n)
	for i := range receipts {
		if receipts[i], err = r.ReadReceipt(); err != nil {
			return nil, err
		}
	}
	return receipts, nil
}

func (w *Writer) WriteReceipts(receipts []settlement.PaymentSettledByProxy) *Writer {
	w.WriteCount(len(receipts))
	for i := range receipts {
		w.WriteReceipt(&receipts[i])
	}
	return w
}

// ReadPayIdInfo reads id, amount, sender, proxy, state, created_at, closing_time.
func (r *Reader) ReadPayIdInfo() (settlement.PayIdInfo, error) {
	var (
		info settlement.PayIdInfo
		err  error
	)

	if info.ID, err = r.ReadU256(); err != nil {
		return info, err
	}
	if info.Amount, err = r.ReadU256(); err != nil {
		return info, err
	}
	if info.Sender, err = r.ReadAddress(); err != nil {
		return info, err
	}
	if info.Proxy, err = r.ReadAddress(); err != nil {
		return info, err
	}
	if info.State, err = r.ReadU8(); err != nil {
		return info, err
	}
	if info.CreatedAt, err = r.ReadU64(); err != nil {
		return info, err
	}
	info.ClosingTime, err = r.ReadU64()
	return info, err
}

func (w *Writer) WritePayIdInfo(info *settlement.PayIdInfo) *Writer {
	return w.WriteU256(&info.ID).
		WriteU256(&info.Amount).
		WriteAddress(info.Sender).
		WriteAddress(info.Proxy).
		WriteU8(info.State).
		WriteU64(info.CreatedAt).
		WriteU64(info.ClosingTime)
}

func (r *Reader) ReadPayIdInfos() ([]settlement.PayIdInfo, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	infos := make([]settlement.PayIdInfo, n)
	for i := range infos {
		if infos[i], err = r.ReadPayIdInfo(); err != nil {
			return nil, err
		}
	}
	return infos, nil
}

func (w *Writer) WritePayIdInfos(infos []settlement.PayIdInfo) *Writer {
	w.WriteCount(len(infos))
	for i := range infos {
		w.WritePayIdInfo(&infos[i])
	}
	return w
}

func (r *Reader) ReadServiceFeeConfig() (settlement.ServiceFeeConfig, error) {
	var (
		config settlement.ServiceFeeConfig
		err    error
	)

	if config.ServID, err = r.ReadU32(); err != nil {
		return config, err
	}
	if config.SystemFeeRate, err = r.ReadU16(); err != nil {
		return config, err
	}
	config.ProxyFeeRate, err = r.ReadU16()
	return config, err
}

func (w *Writer) WriteServiceFeeConfig(config settlement.ServiceFeeConfig) *Writer {
	return w.WriteU32(config.ServID).
		WriteU16(config.SystemFeeRate).
		WriteU16(config.ProxyFeeRate)
}

func (r *Reader) ReadServiceFeeConfigs() ([]settlement.ServiceFeeConfig, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	configs := make([]settlement.ServiceFeeConfig, n)
	for i := range configs {
		if configs[i], err = r.ReadServiceFeeConfig(); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

func (w *Writer) WriteServiceFeeConfigs(configs []settlement.ServiceFeeConfig) *Writer {
	w.WriteCount(len(configs))
	for _, c := range configs {
		w.WriteServiceFeeConfig(c)
	}
	return w
}

// EncodeMerkleProof serializes a single proof in the input channel encoding.
func EncodeMerkleProof(proof *segmentvc.MerkleProof) []byte {
	return NewWriter().WriteMerkleProof(proof).Bytes()
}

// DecodeMerkleProof is the inverse of EncodeMerkleProof. Trailing bytes are an error.
func DecodeMerkleProof(data []byte) (*segmentvc.MerkleProof, error) {
	src := bytes.NewReader(data)
	proof, err := NewReader(src).ReadMerkleProof()
	if err != nil {
		return nil, fmt.Errorf("DecodeMerkleProof failed: %w", err)
	}
	if src.Len() != 0 {
		return nil, fmt.Errorf("DecodeMerkleProof failed: %w: %d trailing bytes", ErrTrailingBytes, src.Len())
	}
	return proof, nil
}
