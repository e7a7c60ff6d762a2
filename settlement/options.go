package settlement

import (
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
)

type PipelineOptions struct {

	// treeOptions shape every SegmentVC built by a stage.
	treeOptions []segmentvc.TreeOption

	// historyPerEntry sizes each tree's root history to its entry count,
	// matching the ledger side verifier. Otherwise the tree default applies.
	historyPerEntry bool
}

type PipelineOption func(*PipelineOptions)

// WithTreeOptions sets the shape of the commitment trees built by a stage.
func WithTreeOptions(options ...segmentvc.TreeOption) PipelineOption {
	return func(po *PipelineOptions) { po.treeOptions = append(po.treeOptions, options...) }
}

// WithFixedHistory keeps the tree's configured history capacity instead of
// sizing it to the number of entries.
func WithFixedHistory() PipelineOption {
	return func(po *PipelineOptions) { po.historyPerEntry = false }
}

// ParsePipelineOptions parses the given options into a PipelineOptions struct
func ParsePipelineOptions(options ...PipelineOption) PipelineOptions {
	pipelineOptions := PipelineOptions{
		historyPerEntry: true,
	}

	for _, option := range options {
		option(&pipelineOptions)
	}

	return pipelineOptions
}

// newTree builds a commitment tree sized for entries leaves.
func (po PipelineOptions) newTree(entries int) *segmentvc.SegmentVC {
	options := append([]segmentvc.TreeOption{}, po.treeOptions...)
	if po.historyPerEntry && entries > 0 {
		options = append(options, segmentvc.WithHistoryCapacity(entries))
	}
	return segmentvc.New(options...)
}
