package settlement

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/ethereum/go-ethereum/common"
)

// ReceiverProof proves one receiver's aggregate leaf under the receipts root.
type ReceiverProof struct {
	Receiver common.Address
	Proof    *segmentvc.MerkleProof
}

// ReceiverAggregate is keccak over the receipt hashes of one receiver, taken in
// ascending receipt key order. The result does not depend on input order.
func ReceiverAggregate(receipts []PaymentSettledByProxy) common.Hash {
	keyed := sortReceiptsByKey(receipts)

	hashes := make([]common.Hash, len(keyed))
	for i := range keyed {
		hashes[i] = keyed[i].receipt.Hash()
	}
	return hashAll(hashes)
}

// ReceiverLeafKey is the tree key of a receiver's aggregate leaf.
func ReceiverLeafKey(receiver common.Address) common.Hash {
	return AddressToHash(receiver)
}

// GroupReceipts commits to receipts grouped by receiver. Receivers are loaded in
// ascending address order, one aggregate leaf each, and a proof is returned per
// receiver in the same order.
func GroupReceipts(receipts []PaymentSettledByProxy, options ...PipelineOption) (common.Hash, []ReceiverProof, error) {
	opts := ParsePipelineOptions(options...)

	groups := map[common.Address][]PaymentSettledByProxy{}
	for i := range receipts {
		groups[receipts[i].Receiver] = append(groups[receipts[i].Receiver], receipts[i])
	}

	receivers := make([]common.Address, 0, len(groups))
	for receiver := range groups {
		receivers = append(receivers, receiver)
	}
	sort.Slice(receivers, func(i, j int) bool {
		return bytes.Compare(receivers[i].Bytes(), receivers[j].Bytes()) < 0
	})

	leaves := make([]segmentvc.Leaf, len(receivers))
	for i, receiver := range receivers {
		leaves[i] = segmentvc.Leaf{
			Key:   ReceiverLeafKey(receiver),
			Value: ReceiverAggregate(groups[receiver]),
		}
	}

	tree := opts.newTree(len(leaves))
	root, err := tree.InsertBatch(leaves)
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("GroupReceipts failed: %w", err)
	}

	proofs := make([]ReceiverProof, 0, len(receivers))
	for _, receiver := range receivers {
		proof, err := tree.GenerateProof(ReceiverLeafKey(receiver))
		if err != nil {
			return common.Hash{}, nil, fmt.Errorf("GroupReceipts failed: proof for receiver %s: %w", receiver.Hex(), err)
		}
		proofs = append(proofs, ReceiverProof{Receiver: receiver, Proof: proof})
	}

	if logger.Sugar != nil {
		logger.Sugar.Debugf("GroupReceipts: %d receipts, %d receivers, root %s", len(receipts), len(receivers), root.Hex())
	}
	return root, proofs, nil
}
