package integrationsupport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/datatrails/go-datatrails-proxysettlement/settlementlog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

// NewSealKey generates a P-256 key for sealing settlement logs.
func NewSealKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

// SealProxyLog seals proxy's log on m and returns the verified state the seal
// carries.
func SealProxyLog(t *testing.T, m *settlementlog.SettlementManager, proxy common.Address) *settlementlog.LogState {
	key := NewSealKey(t)

	sealed, err := m.SealProxyLog(proxy, key)
	require.NoError(t, err)

	state, err := settlementlog.VerifySeal(sealed, &key.PublicKey)
	require.NoError(t, err)
	return state
}
