package ports

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/unchained-capital/connect/internal/core/domain"
)

// BackendInfo is the live metadata reported by a connected backend.
type BackendInfo struct {
	Name       string
	Shortcut   string
	BestHeight uint32
	Testnet    bool
}

// SyncStatus is the backend's view of its own sync state.
type SyncStatus struct {
	Height uint32
	Synced bool
}

// RawTransaction is a transaction as returned by the backend: its raw
// encoding plus the network flag the backend serves it with.
type RawTransaction struct {
	Raw     []byte
	Testnet bool
}

// AddressHistory is the transaction history the backend knows for one
// address.
type AddressHistory struct {
	Address string
	TxCount int
	Txs     []domain.HistoryTx
}

// BackendConnection is the abstraction for a connection to a remote
// blockchain-indexing backend. It exposes request/response chain queries
// and a notification channel delivering connection-level errors.
//
// Any error received from Notifications invalidates all further activity
// on the coordinator owning the connection.
type BackendConnection interface {
	// GetInfo returns the backend's live network metadata.
	GetInfo(ctx context.Context) (*BackendInfo, error)
	// GetBlockHash returns the hash of the block at the given height.
	GetBlockHash(ctx context.Context, height uint32) (*chainhash.Hash, error)
	// GetTransaction returns the raw encoding of the tx with the given id.
	GetTransaction(ctx context.Context, txid string) (*RawTransaction, error)
	// GetSyncStatus returns the backend's sync status.
	GetSyncStatus(ctx context.Context) (*SyncStatus, error)
	// GetAddressHistory returns the tx history of the given addresses,
	// limited to txs confirmed at or above the given height when positive.
	GetAddressHistory(
		ctx context.Context, addresses []string, fromHeight uint32,
	) ([]AddressHistory, error)
	// SendTransaction broadcasts the given raw tx in hex format and returns
	// the backend-assigned txid.
	SendTransaction(ctx context.Context, txHex string) (string, error)
	// Notifications returns the channel where connection-level errors are
	// delivered. The channel is closed when the connection is closed.
	Notifications() <-chan error
	// Close closes the connection. Safe to call more than once.
	Close() error
}
