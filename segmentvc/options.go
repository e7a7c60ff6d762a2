package segmentvc

const (
	DefaultSegmentSize     = 16
	DefaultChunkSize       = 16
	DefaultNodeWidth       = 16
	DefaultTreeDepth       = 10
	DefaultHistoryCapacity = 128
)

// TreeOptions describe the shape of a SegmentVC. Producer and verifier must agree on them.
type TreeOptions struct {

	// segmentSize is the number of leaf values held by one segment.
	segmentSize int

	// chunkSize is carried for compatibility with the ledger side tree shape.
	// Each leaf value currently forms its own chunk.
	chunkSize int

	// nodeWidth is the fan in of every level above the segment roots.
	nodeWidth int

	// treeDepth is the nominal maximum depth. It does not bound Insert.
	treeDepth int

	// historyCapacity is the live window size of the root history store.
	historyCapacity int
}

type TreeOption func(*TreeOptions)

// WithSegmentSize sets the number of values per segment.
func WithSegmentSize(size int) TreeOption {
	return func(to *TreeOptions) { to.segmentSize = size }
}

// WithChunkSize sets the chunk size of the tree shape.
func WithChunkSize(size int) TreeOption {
	return func(to *TreeOptions) { to.chunkSize = size }
}

// WithNodeWidth sets the fan in used to hash each upper level.
func WithNodeWidth(width int) TreeOption {
	return func(to *TreeOptions) { to.nodeWidth = width }
}

// WithTreeDepth sets the nominal tree depth.
func WithTreeDepth(depth int) TreeOption {
	return func(to *TreeOptions) { to.treeDepth = depth }
}

// WithHistoryCapacity sets how many recent roots remain directly provable.
func WithHistoryCapacity(capacity int) TreeOption {
	return func(to *TreeOptions) { to.historyCapacity = capacity }
}

// ParseTreeOptions parses the given options into a TreeOptions struct,
// substituting defaults for anything unset or not positive.
func ParseTreeOptions(options ...TreeOption) TreeOptions {
	treeOptions := TreeOptions{}

	for _, option := range options {
		option(&treeOptions)
	}

	if treeOptions.segmentSize <= 0 {
		treeOptions.segmentSize = DefaultSegmentSize
	}
	if treeOptions.chunkSize <= 0 {
		treeOptions.chunkSize = DefaultChunkSize
	}
	if treeOptions.nodeWidth <= 1 {
		treeOptions.nodeWidth = DefaultNodeWidth
	}
	if treeOptions.treeDepth <= 0 {
		treeOptions.treeDepth = DefaultTreeDepth
	}
	if treeOptions.historyCapacity <= 0 {
		treeOptions.historyCapacity = DefaultHistoryCapacity
	}

	return treeOptions
}

func (to TreeOptions) SegmentSize() int     { return to.segmentSize }
func (to TreeOptions) ChunkSize() int       { return to.chunkSize }
func (to TreeOptions) NodeWidth() int       { return to.nodeWidth }
func (to TreeOptions) TreeDepth() int       { return to.treeDepth }
func (to TreeOptions) HistoryCapacity() int { return to.historyCapacity }
