package integrationsupport

import (
	"github.com/datatrails/go-datatrails-proxysettlement/inputchannel"
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/ethereum/go-ethereum/common"
)

// Input channel streams for the settler programs, laid out in program read order.

func OverpayInput(proxy common.Address, infos []settlement.PayIdInfo, receipts []settlement.PaymentSettledByProxy) []byte {
	return inputchannel.NewWriter().
		WriteAddress(proxy).
		WritePayIdInfos(infos).
		WriteReceipts(receipts).
		Bytes()
}

func ProfitInput(
	receiver common.Address,
	proxy common.Address,
	receipts []settlement.PaymentSettledByProxy,
	proof *segmentvc.MerkleProof,
	infos []settlement.PayIdInfo,
	fees []settlement.ServiceFeeConfig,
) []byte {
	return inputchannel.NewWriter().
		WriteAddress(receiver).
		WriteAddress(proxy).
		WriteReceipts(receipts).
		WriteMerkleProof(proof).
		WritePayIdInfos(infos).
		WriteServiceFeeConfigs(fees).
		Bytes()
}

func AggregateInput(profits [][]byte, overpay []byte) []byte {
	w := inputchannel.NewWriter().WriteCount(len(profits))
	for _, p := range profits {
		w.WriteBytes(p)
	}
	return w.WriteBytes(overpay).Bytes()
}

// ReceiverProxyInput is one proxy's contribution to a receiver settlement.
type ReceiverProxyInput struct {
	Receipts []settlement.PaymentSettledByProxy
	Profit   []byte
}

func ReceiverInput(receiver common.Address, proxies []ReceiverProxyInput) []byte {
	w := inputchannel.NewWriter().
		WriteAddress(receiver).
		WriteCount(len(proxies))
	for _, p := range proxies {
		w.WriteReceipts(p.Receipts).WriteBytes(p.Profit)
	}
	return w.Bytes()
}
