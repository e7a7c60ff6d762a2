package integrationsupport

import (
	"testing"

	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestGenerator_Deterministic(t *testing.T) {
	a := NewTestGenerator(t, 42)
	b := NewTestGenerator(t, 42)
	c := NewTestGenerator(t, 43)

	assert.Equal(t, a.Address("proxy"), b.Address("proxy"))
	assert.NotEqual(t, a.Address("proxy"), c.Address("proxy"))
	assert.NotEqual(t, a.Address("proxy"), a.Address("receiver"))
	assert.Equal(t, a.RandomAddress(), b.RandomAddress())
}

func TestChannel_Receipt(t *testing.T) {
	g := NewTestGenerator(t, 7)
	c := g.NewChannel("proxy", 100, 200)

	require.Len(t, c.PayIdInfos, 2)
	assert.Equal(t, uint64(2), c.PayIdInfos[1].ID.Uint64())
	assert.Equal(t, uint64(200), c.PayIdInfos[1].Amount.Uint64())
	assert.Equal(t, c.Proxy, c.PayIdInfos[0].Proxy)

	r := c.Receipt(2, 1, 50, g.Address("receiver"))
	assert.True(t, r.Settled)

	sender, err := r.SenderAddress()
	require.NoError(t, err)
	assert.Equal(t, c.PayIdInfos[1].Sender, sender)

	proxy, err := r.ProxyAddress()
	require.NoError(t, err)
	assert.Equal(t, c.Proxy, proxy)
}

func TestSetupScenario(t *testing.T) {
	g := NewTestGenerator(t, 11)
	s := SetupScenario(&g, "proxy", 12)

	assert.Len(t, s.Receipts, 12)

	seen := map[settlement.ReceiptKey]bool{}
	for i := range s.Receipts {
		key := s.Receipts[i].UniqueKey()
		assert.False(t, seen[key])
		seen[key] = true
	}

	total := 0
	for _, receiver := range s.Overpay.Receivers() {
		input, ok := s.ProfitInputFor(receiver)
		require.True(t, ok)
		total += len(input.Receipts)
	}
	assert.Equal(t, 12, total)

	_, ok := s.ProfitInputFor(g.Address("nobody"))
	assert.False(t, ok)
}
