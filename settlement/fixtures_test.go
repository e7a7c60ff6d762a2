package settlement

import (
	"crypto/ecdsa"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// testKey derives a deterministic secp256k1 key from a label.
func testKey(t *testing.T, label string) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte(label)))
	require.NoError(t, err)
	return key
}

func testAddress(b byte) common.Address {
	var a common.Address
	for i := range a {
		a[i] = b
	}
	return a
}

// channelFixture is one proxy with a set of senders, each owning one pay id.
type channelFixture struct {
	proxyKey   *ecdsa.PrivateKey
	proxy      common.Address
	senderKeys map[uint64]*ecdsa.PrivateKey
	infos      []PayIdInfo
}

func newChannelFixture(t *testing.T, payIdAmounts map[uint64]uint64) *channelFixture {
	f := &channelFixture{
		proxyKey:   testKey(t, "proxy"),
		senderKeys: map[uint64]*ecdsa.PrivateKey{},
	}
	f.proxy = KeyAddress(f.proxyKey)

	// deterministic order for the info slice
	for id := uint64(1); len(f.infos) < len(payIdAmounts); id++ {
		amount, ok := payIdAmounts[id]
		if !ok {
			continue
		}
		key := testKey(t, fmt.Sprintf("sender-%d", id))
		f.senderKeys[id] = key
		f.infos = append(f.infos, PayIdInfo{
			ID:          *uint256.NewInt(id),
			Amount:      *uint256.NewInt(amount),
			Sender:      KeyAddress(key),
			Proxy:       f.proxy,
			State:       1,
			CreatedAt:   1000,
			ClosingTime: 2000,
		})
	}
	return f
}

// receipt builds a settled receipt signed by the pay id's sender and the proxy.
func (f *channelFixture) receipt(t *testing.T, payID uint64, servID uint32, amount uint64, receiver common.Address) PaymentSettledByProxy {
	senderKey, ok := f.senderKeys[payID]
	if !ok {
		senderKey = testKey(t, fmt.Sprintf("sender-%d", payID))
	}

	payment := Payment{
		PayID:    *uint256.NewInt(payID),
		ServID:   servID,
		Amount:   *uint256.NewInt(amount),
		Receiver: receiver,
	}
	require.NoError(t, payment.Sign(senderKey))

	r := payment.Settle()
	require.NoError(t, r.SignByProxy(f.proxyKey))
	return r
}

// receiverReceipts selects the receipts paying receiver, preserving order.
func receiverReceipts(receipts []PaymentSettledByProxy, receiver common.Address) []PaymentSettledByProxy {
	var out []PaymentSettledByProxy
	for _, r := range receipts {
		if r.Receiver == receiver {
			out = append(out, r)
		}
	}
	return out
}
