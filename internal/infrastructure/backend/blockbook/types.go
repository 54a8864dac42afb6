package blockbook_backend

import (
	"encoding/json"
	"fmt"
)

type request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type response struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Backend errors are embedded in the data payload.
type errorPayload struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (r response) error() error {
	var payload errorPayload
	if err := json.Unmarshal(r.Data, &payload); err != nil {
		return nil
	}
	if payload.Error.Message == "" {
		return nil
	}
	return fmt.Errorf(payload.Error.Message)
}

type infoPayload struct {
	Name       string `json:"name"`
	Shortcut   string `json:"shortcut"`
	BestHeight uint32 `json:"bestHeight"`
	Testnet    bool   `json:"testnet"`
}

type blockHashParams struct {
	Height uint32 `json:"height"`
}

type blockHashPayload struct {
	Hash string `json:"hash"`
}

type transactionParams struct {
	TxID string `json:"txid"`
}

type transactionPayload struct {
	Hex     string `json:"hex"`
	Testnet bool   `json:"testnet"`
}

type syncStatusPayload struct {
	Height uint32 `json:"height"`
	Synced bool   `json:"synced"`
}

type addressHistoryParams struct {
	Addresses []string `json:"addresses"`
	From      uint32   `json:"from,omitempty"`
}

type historyTxPayload struct {
	TxID        string `json:"txid"`
	BlockHeight uint32 `json:"blockHeight"`
	Amount      int64  `json:"amount"`
}

type addressHistoryPayload struct {
	Address string             `json:"address"`
	TxCount int                `json:"txCount"`
	Txs     []historyTxPayload `json:"txs"`
}

type sendTransactionParams struct {
	Hex string `json:"hex"`
}

type sendTransactionPayload struct {
	TxID string `json:"txid"`
}
