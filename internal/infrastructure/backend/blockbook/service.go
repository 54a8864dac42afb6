package blockbook_backend

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	log "github.com/sirupsen/logrus"
	"github.com/unchained-capital/connect/internal/core/domain"
	"github.com/unchained-capital/connect/internal/core/ports"
	"golang.org/x/time/rate"
)

const (
	defaultRequestTimeout    = 15 * time.Second
	defaultRequestsPerSecond = 10
)

type service struct {
	client  *wsClient
	limiter *rate.Limiter

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

type ServiceArgs struct {
	Endpoints         []string
	RequestsPerSecond int
	RequestTimeout    time.Duration
}

func (a ServiceArgs) validate() error {
	if len(a.Endpoints) == 0 {
		return fmt.Errorf("missing backend endpoints")
	}
	for _, addr := range a.Endpoints {
		if !strings.HasPrefix(addr, "ws://") && !strings.HasPrefix(addr, "wss://") {
			return fmt.Errorf("invalid endpoint %s: unknown protocol", addr)
		}
	}
	return nil
}

func (a ServiceArgs) requestTimeout() time.Duration {
	if a.RequestTimeout <= 0 {
		return defaultRequestTimeout
	}
	return a.RequestTimeout
}

func (a ServiceArgs) requestsPerSecond() int {
	if a.RequestsPerSecond <= 0 {
		return defaultRequestsPerSecond
	}
	return a.RequestsPerSecond
}

// NewService dials the first reachable endpoint of the given ordered set
// and returns a ports.BackendConnection talking the blockbook-style
// websocket protocol over it.
func NewService(args ServiceArgs) (ports.BackendConnection, error) {
	if err := args.validate(); err != nil {
		return nil, fmt.Errorf("invalid args: %s", err)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("backend: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("backend: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	var client *wsClient
	var lastErr error
	for _, addr := range args.Endpoints {
		c, err := newWSClient(addr, args.requestTimeout())
		if err != nil {
			warnFn(err, "failed to dial endpoint %s", addr)
			lastErr = err
			continue
		}
		logFn("connected to endpoint %s", addr)
		client = c
		break
	}
	if client == nil {
		return nil, fmt.Errorf("no reachable backend endpoint: %s", lastErr)
	}

	rps := args.requestsPerSecond()
	return &service{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     logFn,
		warn:    warnFn,
	}, nil
}

func (s *service) GetInfo(ctx context.Context) (*ports.BackendInfo, error) {
	data, err := s.call(ctx, "getInfo", nil)
	if err != nil {
		return nil, err
	}

	var payload infoPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid getInfo response: %s", err)
	}

	return &ports.BackendInfo{
		Name:       payload.Name,
		Shortcut:   payload.Shortcut,
		BestHeight: payload.BestHeight,
		Testnet:    payload.Testnet,
	}, nil
}

func (s *service) GetBlockHash(
	ctx context.Context, height uint32,
) (*chainhash.Hash, error) {
	data, err := s.call(ctx, "getBlockHash", blockHashParams{height})
	if err != nil {
		return nil, err
	}

	var payload blockHashPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid getBlockHash response: %s", err)
	}
	return chainhash.NewHashFromStr(payload.Hash)
}

func (s *service) GetTransaction(
	ctx context.Context, txid string,
) (*ports.RawTransaction, error) {
	data, err := s.call(ctx, "getTransaction", transactionParams{txid})
	if err != nil {
		return nil, err
	}

	var payload transactionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid getTransaction response: %s", err)
	}
	raw, err := hex.DecodeString(payload.Hex)
	if err != nil {
		return nil, fmt.Errorf("invalid raw tx encoding: %s", err)
	}
	return &ports.RawTransaction{Raw: raw, Testnet: payload.Testnet}, nil
}

func (s *service) GetSyncStatus(ctx context.Context) (*ports.SyncStatus, error) {
	data, err := s.call(ctx, "getSyncStatus", nil)
	if err != nil {
		return nil, err
	}

	var payload syncStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid getSyncStatus response: %s", err)
	}
	return &ports.SyncStatus{
		Height: payload.Height,
		Synced: payload.Synced,
	}, nil
}

func (s *service) GetAddressHistory(
	ctx context.Context, addresses []string, fromHeight uint32,
) ([]ports.AddressHistory, error) {
	data, err := s.call(
		ctx, "getAddressHistory", addressHistoryParams{addresses, fromHeight},
	)
	if err != nil {
		return nil, err
	}

	payload := make([]addressHistoryPayload, 0, len(addresses))
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid getAddressHistory response: %s", err)
	}

	history := make([]ports.AddressHistory, 0, len(payload))
	for _, h := range payload {
		txs := make([]domain.HistoryTx, 0, len(h.Txs))
		for _, tx := range h.Txs {
			txs = append(txs, domain.HistoryTx{
				TxID:        tx.TxID,
				BlockHeight: tx.BlockHeight,
				Amount:      tx.Amount,
			})
		}
		history = append(history, ports.AddressHistory{
			Address: h.Address,
			TxCount: h.TxCount,
			Txs:     txs,
		})
	}
	return history, nil
}

func (s *service) SendTransaction(
	ctx context.Context, txHex string,
) (string, error) {
	data, err := s.call(ctx, "sendTransaction", sendTransactionParams{txHex})
	if err != nil {
		return "", err
	}

	var payload sendTransactionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("invalid sendTransaction response: %s", err)
	}
	return payload.TxID, nil
}

func (s *service) Notifications() <-chan error {
	return s.client.notifications()
}

func (s *service) Close() error {
	s.client.close()
	s.log("closed connection with backend")
	return nil
}

func (s *service) call(
	ctx context.Context, method string, params interface{},
) (json.RawMessage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return s.client.call(ctx, method, params)
}
