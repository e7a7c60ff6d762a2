package settlement

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// FeeRateBase is the denominator of fee rates: rates are parts per 10000.
const FeeRateBase = 10000

// ServiceFeeConfig is the fee schedule entry of one service.
type ServiceFeeConfig struct {
	ServID        uint32
	SystemFeeRate uint16
	ProxyFeeRate  uint16
}

// Valid reports whether the combined rate does not exceed FeeRateBase.
func (c ServiceFeeConfig) Valid() bool {
	return uint32(c.SystemFeeRate)+uint32(c.ProxyFeeRate) <= FeeRateBase
}

// FeeSplit is the three way split of one amount.
type FeeSplit struct {
	System   uint256.Int
	Proxy    uint256.Int
	Receiver uint256.Int
}

// Split computes system = amount*system_rate/10000, proxy = amount*proxy_rate/10000
// and gives the remainder to the receiver.
func (c ServiceFeeConfig) Split(amount *uint256.Int) (FeeSplit, error) {
	var split FeeSplit
	base := uint256.NewInt(FeeRateBase)

	if _, overflow := split.System.MulOverflow(amount, uint256.NewInt(uint64(c.SystemFeeRate))); overflow {
		return FeeSplit{}, pipelineError(Overflow, "system fee of serv id %d", c.ServID)
	}
	split.System.Div(&split.System, base)

	if _, overflow := split.Proxy.MulOverflow(amount, uint256.NewInt(uint64(c.ProxyFeeRate))); overflow {
		return FeeSplit{}, pipelineError(Overflow, "proxy fee of serv id %d", c.ServID)
	}
	split.Proxy.Div(&split.Proxy, base)

	if _, underflow := split.Receiver.SubOverflow(amount, &split.System); underflow {
		return FeeSplit{}, pipelineError(Overflow, "receiver share of serv id %d", c.ServID)
	}
	if _, underflow := split.Receiver.SubOverflow(&split.Receiver, &split.Proxy); underflow {
		return FeeSplit{}, pipelineError(Overflow, "receiver share of serv id %d", c.ServID)
	}

	return split, nil
}

// ServIdsDigest is keccak over serv_id4 || system_rate2 || proxy_rate2 for every
// config in ascending serv id order.
func ServIdsDigest(configs []ServiceFeeConfig) common.Hash {
	sorted := make([]ServiceFeeConfig, len(configs))
	copy(sorted, configs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ServID < sorted[j].ServID })

	p := newPacker(len(sorted) * 8)
	for _, c := range sorted {
		p.u32(c.ServID).u16(c.SystemFeeRate).u16(c.ProxyFeeRate)
	}
	return p.hash()
}
