package settlement

import (
	"fmt"

	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/ethereum/go-ethereum/common"
)

// SettlementProof proves a run of settlement ids of one proxy. The ids are
// chained onto StartHistoryHash and the result must be the proven leaf value.
type SettlementProof struct {
	Proxy            common.Address
	StartHistoryHash common.Hash
	SettlementIDs    []common.Hash
	Proof            *segmentvc.MerkleProof
}

// FinalHash folds every settlement id onto StartHistoryHash.
func (p *SettlementProof) FinalHash() common.Hash {
	current := p.StartHistoryHash
	for _, id := range p.SettlementIDs {
		current = ChainHash(current, id.Bytes())
	}
	return current
}

// Verify checks the chained ids against the proven value, then the proof itself.
func (p *SettlementProof) Verify() (bool, error) {
	if p.Proof == nil {
		return false, pipelineError(ProofMismatch, "no proof supplied")
	}

	final := p.FinalHash()
	if final != p.Proof.ValueProof.Value {
		return false, pipelineError(RootMismatch, "final hash %s does not match proven value %s",
			final.Hex(), p.Proof.ValueProof.Value.Hex())
	}

	verified, err := p.Proof.Verify()
	if err != nil {
		return false, fmt.Errorf("SettlementProof.Verify failed: %w", err)
	}
	return verified, nil
}
