package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"gopkg.in/yaml.v3"
)

/**
 * Settler configuration. Every field is optional; missing values take the
 * defaults of the packages they configure.
 *
 *   log_level: INFO
 *   tree:
 *     segment_size: 16
 *     chunk_size: 16
 *     node_width: 16
 *     tree_depth: 10
 *     history_capacity: 128
 *   fees:
 *     - serv_id: 1
 *       system_fee_rate: 500
 *       proxy_fee_rate: 1000
 */

const (
	DefaultLogLevel = "INFO"

	DefaultSegmentSize     = segmentvc.DefaultSegmentSize
	DefaultChunkSize       = segmentvc.DefaultChunkSize
	DefaultNodeWidth       = segmentvc.DefaultNodeWidth
	DefaultTreeDepth       = segmentvc.DefaultTreeDepth
	DefaultHistoryCapacity = segmentvc.DefaultHistoryCapacity
)

var (
	ErrInvalidTree     = errors.New("invalid tree configuration")
	ErrInvalidLogLevel = errors.New("invalid log level")
	ErrInvalidFee      = errors.New("invalid fee configuration")
)

var logLevels = []string{"DEBUG", "INFO", "WARN", "ERROR", "NOOP"}

// Config is the settler configuration file.
type Config struct {
	LogLevel string      `yaml:"log_level"`
	Tree     TreeConfig  `yaml:"tree"`
	Fees     []FeeConfig `yaml:"fees"`
}

// TreeConfig shapes every SegmentVC the settler builds.
type TreeConfig struct {
	SegmentSize     int `yaml:"segment_size"`
	ChunkSize       int `yaml:"chunk_size"`
	NodeWidth       int `yaml:"node_width"`
	TreeDepth       int `yaml:"tree_depth"`
	HistoryCapacity int `yaml:"history_capacity"`
}

// FeeConfig is one service fee schedule, rates in basis points.
type FeeConfig struct {
	ServID        uint32 `yaml:"serv_id"`
	SystemFeeRate uint16 `yaml:"system_fee_rate"`
	ProxyFeeRate  uint16 `yaml:"proxy_fee_rate"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{}
	cfg.normalize()
	return cfg
}

// Load reads the YAML configuration at path, fills defaults and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("Load failed: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration document. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("Parse failed: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	defaultInt(&cfg.Tree.SegmentSize, DefaultSegmentSize)
	defaultInt(&cfg.Tree.ChunkSize, DefaultChunkSize)
	defaultInt(&cfg.Tree.NodeWidth, DefaultNodeWidth)
	defaultInt(&cfg.Tree.TreeDepth, DefaultTreeDepth)
	defaultInt(&cfg.Tree.HistoryCapacity, DefaultHistoryCapacity)
}

func defaultInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

// Validate checks a normalized configuration.
func (cfg *Config) Validate() error {
	if !validLogLevel(cfg.LogLevel) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.LogLevel)
	}

	t := cfg.Tree
	switch {
	case t.SegmentSize < 1:
		return fmt.Errorf("%w: segment_size %d", ErrInvalidTree, t.SegmentSize)
	case t.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size %d", ErrInvalidTree, t.ChunkSize)
	case t.NodeWidth < 2:
		return fmt.Errorf("%w: node_width %d", ErrInvalidTree, t.NodeWidth)
	case t.TreeDepth < 1:
		return fmt.Errorf("%w: tree_depth %d", ErrInvalidTree, t.TreeDepth)
	case t.HistoryCapacity < 1:
		return fmt.Errorf("%w: history_capacity %d", ErrInvalidTree, t.HistoryCapacity)
	}

	seen := map[uint32]bool{}
	for _, fee := range cfg.Fees {
		if seen[fee.ServID] {
			return fmt.Errorf("%w: serv_id %d listed twice", ErrInvalidFee, fee.ServID)
		}
		seen[fee.ServID] = true

		if !fee.ServiceFeeConfig().Valid() {
			return fmt.Errorf("%w: serv_id %d rates %d + %d exceed %d",
				ErrInvalidFee, fee.ServID, fee.SystemFeeRate, fee.ProxyFeeRate, settlement.FeeRateBase)
		}
	}
	return nil
}

func validLogLevel(level string) bool {
	for _, l := range logLevels {
		if l == level {
			return true
		}
	}
	return false
}

// TreeOptions converts the tree section into SegmentVC options.
func (cfg *Config) TreeOptions() []segmentvc.TreeOption {
	return []segmentvc.TreeOption{
		segmentvc.WithSegmentSize(cfg.Tree.SegmentSize),
		segmentvc.WithChunkSize(cfg.Tree.ChunkSize),
		segmentvc.WithNodeWidth(cfg.Tree.NodeWidth),
		segmentvc.WithTreeDepth(cfg.Tree.TreeDepth),
		segmentvc.WithHistoryCapacity(cfg.Tree.HistoryCapacity),
	}
}

func (f FeeConfig) ServiceFeeConfig() settlement.ServiceFeeConfig {
	return settlement.ServiceFeeConfig{
		ServID:        f.ServID,
		SystemFeeRate: f.SystemFeeRate,
		ProxyFeeRate:  f.ProxyFeeRate,
	}
}

// ServiceFeeConfigs returns the fee schedules in file order. An empty list
// leaves the profit program's fee schedule unpinned.
func (cfg *Config) ServiceFeeConfigs() []settlement.ServiceFeeConfig {
	configs := make([]settlement.ServiceFeeConfig, len(cfg.Fees))
	for i, f := range cfg.Fees {
		configs[i] = f.ServiceFeeConfig()
	}
	return configs
}
