package domain

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/wire"
)

// TransactionInfo is a transaction fetched from the backend, decoded from
// its raw encoding.
type TransactionInfo struct {
	TxID  string
	RawTx []byte
	MsgTx *wire.MsgTx
	// Testnet is the network flag carried by the backend response for the
	// transaction.
	Testnet bool
}

// NewTransactionInfo decodes the given raw transaction encoding.
func NewTransactionInfo(
	txid string, rawTx []byte, testnet bool,
) (*TransactionInfo, error) {
	if len(rawTx) == 0 {
		return nil, fmt.Errorf("missing raw transaction")
	}

	msgTx := &wire.MsgTx{}
	if err := msgTx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, fmt.Errorf("invalid raw transaction: %s", err)
	}
	if txid == "" {
		txid = msgTx.TxHash().String()
	}
	return &TransactionInfo{
		TxID:    txid,
		RawTx:   rawTx,
		MsgTx:   msgTx,
		Testnet: testnet,
	}, nil
}
