package integrationsupport

import (
	"crypto/ecdsa"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

const (
	// DefaultStartTime is the created_at of generated PayIdInfos.
	DefaultStartTime = 1698342521

	// DefaultChannelLifetime is added to the start time to give closing_time.
	DefaultChannelLifetime = 30 * 24 * 3600

	payIdStateOpen = 1
)

// Create deterministic keys, addresses and signed receipts for testing. Seeded
// so that from run to run the values are the same: the same seed and label
// always derive the same secp256k1 key.
type TestGenerator struct {
	T    *testing.T
	seed int64
	rand *rand.Rand
}

func NewTestGenerator(t *testing.T, seed int64) TestGenerator {
	return TestGenerator{
		T:    t,
		seed: seed,
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec
	}
}

// Key derives the secp256k1 key of label.
func (g *TestGenerator) Key(label string) *ecdsa.PrivateKey {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], uint64(g.seed))

	key, err := crypto.ToECDSA(crypto.Keccak256(seed[:], []byte(label)))
	require.NoError(g.T, err)
	return key
}

// Address is the address of Key(label).
func (g *TestGenerator) Address(label string) common.Address {
	return settlement.KeyAddress(g.Key(label))
}

// RandomAddress draws an address from the seeded source.
func (g *TestGenerator) RandomAddress() common.Address {
	var a common.Address
	_, _ = g.rand.Read(a[:])
	return a
}

// Intn draws from the seeded source.
func (g *TestGenerator) Intn(n int) int {
	return g.rand.Intn(n)
}

// Channel is one proxy and the PayIdInfos of its senders. Pay ids are numbered
// from 1 and sender i owns pay id i.
type Channel struct {
	g          *TestGenerator
	ProxyKey   *ecdsa.PrivateKey
	Proxy      common.Address
	SenderKeys map[uint64]*ecdsa.PrivateKey
	PayIdInfos []settlement.PayIdInfo
}

// NewChannel creates a channel for proxyLabel with one pay id per amount.
func (g *TestGenerator) NewChannel(proxyLabel string, amounts ...uint64) *Channel {
	c := &Channel{
		g:          g,
		ProxyKey:   g.Key(proxyLabel),
		SenderKeys: map[uint64]*ecdsa.PrivateKey{},
	}
	c.Proxy = settlement.KeyAddress(c.ProxyKey)

	for i, amount := range amounts {
		id := uint64(i + 1)
		key := g.Key(proxyLabel + "/sender/" + uint256.NewInt(id).Dec())
		c.SenderKeys[id] = key
		c.PayIdInfos = append(c.PayIdInfos, settlement.PayIdInfo{
			ID:          *uint256.NewInt(id),
			Amount:      *uint256.NewInt(amount),
			Sender:      settlement.KeyAddress(key),
			Proxy:       c.Proxy,
			State:       payIdStateOpen,
			CreatedAt:   DefaultStartTime,
			ClosingTime: DefaultStartTime + DefaultChannelLifetime,
		})
	}
	return c
}

// Receipt returns a settled receipt signed by the pay id's sender and the proxy.
func (c *Channel) Receipt(payID uint64, servID uint32, amount uint64, receiver common.Address) settlement.PaymentSettledByProxy {
	senderKey, ok := c.SenderKeys[payID]
	require.True(c.g.T, ok, "pay id %d has no sender", payID)

	payment := settlement.Payment{
		PayID:    *uint256.NewInt(payID),
		ServID:   servID,
		Amount:   *uint256.NewInt(amount),
		Receiver: receiver,
	}
	require.NoError(c.g.T, payment.Sign(senderKey))

	r := payment.Settle()
	require.NoError(c.g.T, r.SignByProxy(c.ProxyKey))
	return r
}

// GenerateReceipts spreads count receipts over the channel's pay ids and the
// given receivers and services. Every amount is 1, so a pay id funded with at
// least count never overpays. No two receipts share (pay id, serv id, receiver).
func (c *Channel) GenerateReceipts(count int, receivers []common.Address, servIDs []uint32) []settlement.PaymentSettledByProxy {
	require.LessOrEqual(c.g.T, count, len(c.PayIdInfos)*len(servIDs)*len(receivers))

	receipts := make([]settlement.PaymentSettledByProxy, 0, count)
	seen := map[settlement.ReceiptKey]bool{}

	for len(receipts) < count {
		key := settlement.ReceiptKey{
			PayID:    *uint256.NewInt(uint64(c.g.Intn(len(c.PayIdInfos)) + 1)),
			ServID:   servIDs[c.g.Intn(len(servIDs))],
			Receiver: receivers[c.g.Intn(len(receivers))],
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		receipts = append(receipts, c.Receipt(key.PayID.Uint64(), key.ServID, 1, key.Receiver))
	}
	return receipts
}

// ReceiptsFor selects the receipts paying receiver, preserving order.
func ReceiptsFor(receipts []settlement.PaymentSettledByProxy, receiver common.Address) []settlement.PaymentSettledByProxy {
	var out []settlement.PaymentSettledByProxy
	for _, r := range receipts {
		if r.Receiver == receiver {
			out = append(out, r)
		}
	}
	return out
}
