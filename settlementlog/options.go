package settlementlog

import (
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
)

const (
	// DefaultHistoryCapacity is the number of settlement hashes retained per
	// proxy and per receiver.
	DefaultHistoryCapacity = 128
)

// KeyValueStore is the backing store of the logs and receiver histories.
type KeyValueStore interface {
	ethdb.KeyValueReader
	ethdb.KeyValueWriter
}

type Options struct {

	// historyCapacity of each per proxy and per receiver history store
	historyCapacity int

	// treeOptions shape the tree committing to every proxy's chain head
	treeOptions []segmentvc.TreeOption

	// store backs the MMR nodes and the receiver histories
	store KeyValueStore
}

type Option func(*Options)

// WithHistoryCapacity sets the per address history capacity.
func WithHistoryCapacity(capacity int) Option {
	return func(o *Options) { o.historyCapacity = capacity }
}

// WithTreeOptions shapes the proxy commitment tree.
func WithTreeOptions(options ...segmentvc.TreeOption) Option {
	return func(o *Options) { o.treeOptions = append(o.treeOptions, options...) }
}

// WithStore sets the key value store. Defaults to a fresh memorydb.
func WithStore(store KeyValueStore) Option {
	return func(o *Options) { o.store = store }
}

// ParseOptions parses the given options into an Options struct
func ParseOptions(options ...Option) Options {
	opts := Options{
		historyCapacity: DefaultHistoryCapacity,
	}

	for _, option := range options {
		option(&opts)
	}

	if opts.historyCapacity < 1 {
		opts.historyCapacity = DefaultHistoryCapacity
	}
	if opts.store == nil {
		opts.store = memorydb.New()
	}

	return opts
}
