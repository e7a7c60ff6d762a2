package settlement

import (
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/ethereum/go-ethereum/common"
)

// CanonicalizePayIds commits to a PayIdInfo set. Records are sorted by id and
// batch inserted as (id, hash) leaves, so the root does not depend on input order.
func CanonicalizePayIds(infos []PayIdInfo, options ...PipelineOption) (common.Hash, error) {
	opts := ParsePipelineOptions(options...)

	sorted := sortedPayIdInfos(infos)
	leaves := make([]segmentvc.Leaf, len(sorted))
	for i := range sorted {
		leaves[i] = segmentvc.Leaf{Key: sorted[i].Key(), Value: sorted[i].Hash()}
	}

	tree := opts.newTree(len(leaves))
	root, err := tree.InsertBatch(leaves)
	if err != nil {
		return common.Hash{}, fmt.Errorf("CanonicalizePayIds failed: %w", err)
	}

	if logger.Sugar != nil {
		logger.Sugar.Debugf("CanonicalizePayIds: %d records, root %s", len(sorted), root.Hex())
	}
	return root, nil
}
