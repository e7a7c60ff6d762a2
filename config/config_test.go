package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty document", doc: ""},
		{name: "empty tree", doc: "tree: {}\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := Parse([]byte(test.doc))
			require.NoError(t, err)
			assert.Equal(t, Default(), cfg)
			assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
			assert.Equal(t, TreeConfig{
				SegmentSize:     DefaultSegmentSize,
				ChunkSize:       DefaultChunkSize,
				NodeWidth:       DefaultNodeWidth,
				TreeDepth:       DefaultTreeDepth,
				HistoryCapacity: DefaultHistoryCapacity,
			}, cfg.Tree)
			assert.Empty(t, cfg.ServiceFeeConfigs())
		})
	}
}

func TestParse(t *testing.T) {
	doc := `
log_level: debug
tree:
  segment_size: 4
  node_width: 2
  history_capacity: 8
fees:
  - serv_id: 1
    system_fee_rate: 500
    proxy_fee_rate: 1000
  - serv_id: 2
    proxy_fee_rate: 2500
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Tree.SegmentSize)
	assert.Equal(t, 2, cfg.Tree.NodeWidth)
	assert.Equal(t, DefaultChunkSize, cfg.Tree.ChunkSize)
	assert.Equal(t, 8, cfg.Tree.HistoryCapacity)
	assert.Equal(t, []settlement.ServiceFeeConfig{
		{ServID: 1, SystemFeeRate: 500, ProxyFeeRate: 1000},
		{ServID: 2, SystemFeeRate: 0, ProxyFeeRate: 2500},
	}, cfg.ServiceFeeConfigs())

	opts := segmentvc.ParseTreeOptions(cfg.TreeOptions()...)
	assert.Equal(t, 4, opts.SegmentSize())
	assert.Equal(t, 2, opts.NodeWidth())
	assert.Equal(t, DefaultChunkSize, opts.ChunkSize())
	assert.Equal(t, DefaultTreeDepth, opts.TreeDepth())
	assert.Equal(t, 8, opts.HistoryCapacity())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		expected error
	}{
		{name: "negative segment size", doc: "tree:\n  segment_size: -1\n", expected: ErrInvalidTree},
		{name: "unary node width", doc: "tree:\n  node_width: 1\n", expected: ErrInvalidTree},
		{name: "negative history", doc: "tree:\n  history_capacity: -4\n", expected: ErrInvalidTree},
		{name: "log level", doc: "log_level: loud\n", expected: ErrInvalidLogLevel},
		{
			name:     "fee rates above base",
			doc:      "fees:\n  - serv_id: 1\n    system_fee_rate: 6000\n    proxy_fee_rate: 4001\n",
			expected: ErrInvalidFee,
		},
		{
			name:     "duplicate serv id",
			doc:      "fees:\n  - serv_id: 1\n  - serv_id: 1\n",
			expected: ErrInvalidFee,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.doc))
			assert.ErrorIs(t, err, test.expected)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown key", doc: "tree:\n  leaves: 3\n"},
		{name: "wrong type", doc: "tree:\n  segment_size: many\n"},
		{name: "not yaml", doc: "tree: [\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Parse([]byte(test.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settler.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", cfg.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
