package hd_discovery

import (
	"context"

	"github.com/unchained-capital/connect/internal/core/domain"
	"github.com/unchained-capital/connect/internal/core/ports"
)

// accountScanner runs the gap-limit history scan for one account against
// the backend connection.
type accountScanner struct {
	conn     ports.BackendConnection
	xpub     string
	gapLimit int
	external *branchDeriver
	internal *branchDeriver
}

func newAccountScanner(
	conn ports.BackendConnection, xpub string,
	network *domain.NetworkDescriptor, segwit domain.SegwitMode,
	useCashAddr bool, gapLimit int,
) (*accountScanner, error) {
	external, internal, err := newBranchDerivers(
		xpub, network, segwit, useCashAddr,
	)
	if err != nil {
		return nil, err
	}
	return &accountScanner{
		conn:     conn,
		xpub:     xpub,
		gapLimit: gapLimit,
		external: external,
		internal: internal,
	}, nil
}

// scan derives addresses of both branches in gap-limit batches and collects
// their histories into a snapshot. A prior snapshot seeds the scanned
// indices and accumulated history so only the frontier is rescanned.
// onBatch, when not nil, is invoked after each scanned batch.
func (s *accountScanner) scan(
	ctx context.Context, prior *domain.AccountSnapshot,
	onBatch func(domain.DiscoveryProgress),
) (*domain.AccountSnapshot, error) {
	snapshot := &domain.AccountSnapshot{Xpub: s.xpub}
	seenTxs := make(map[string]struct{})
	if prior != nil && prior.Xpub == s.xpub {
		snapshot.Addresses = append(snapshot.Addresses, prior.Addresses...)
		snapshot.History = append(snapshot.History, prior.History...)
		snapshot.Balance = prior.Balance
		for _, tx := range prior.History {
			seenTxs[tx.TxID] = struct{}{}
		}
	}

	for _, branch := range []*branchDeriver{s.external, s.internal} {
		if err := s.scanBranch(ctx, branch, snapshot, seenTxs, onBatch); err != nil {
			return nil, err
		}
	}

	status, err := s.conn.GetSyncStatus(ctx)
	if err != nil {
		return nil, err
	}
	tipHash, err := s.conn.GetBlockHash(ctx, status.Height)
	if err != nil {
		return nil, err
	}
	snapshot.Tip = domain.ChainTip{
		Height: status.Height,
		Hash:   tipHash.String(),
	}
	return snapshot, nil
}

func (s *accountScanner) scanBranch(
	ctx context.Context, branch *branchDeriver,
	snapshot *domain.AccountSnapshot, seenTxs map[string]struct{},
	onBatch func(domain.DiscoveryProgress),
) error {
	next := snapshot.NextIndex(branch.isChange())
	gap := 0
	batch := 0

	for gap < s.gapLimit {
		if err := ctx.Err(); err != nil {
			return err
		}

		infoByAddress := make(map[string]*domain.AddressInfo, s.gapLimit)
		addresses := make([]string, 0, s.gapLimit)
		for i := 0; i < s.gapLimit; i++ {
			info, err := branch.addressAt(next + uint32(i))
			if err != nil {
				return err
			}
			addresses = append(addresses, info.Address)
			infoByAddress[info.Address] = info
		}

		histories, err := s.conn.GetAddressHistory(ctx, addresses, 0)
		if err != nil {
			return err
		}
		historyByAddress := make(map[string]ports.AddressHistory, len(histories))
		for _, h := range histories {
			historyByAddress[h.Address] = h
		}

		txsFound := 0
		for _, addr := range addresses {
			info := infoByAddress[addr]
			history := historyByAddress[addr]
			info.TxCount = history.TxCount

			if history.TxCount == 0 {
				gap++
			} else {
				gap = 0
				for _, tx := range history.Txs {
					if _, ok := seenTxs[tx.TxID]; ok {
						continue
					}
					seenTxs[tx.TxID] = struct{}{}
					snapshot.History = append(snapshot.History, tx)
					if tx.BlockHeight > 0 {
						snapshot.Balance.Confirmed += tx.Amount
					} else {
						snapshot.Balance.Unconfirmed += tx.Amount
					}
					txsFound++
				}
			}
			snapshot.Addresses = append(snapshot.Addresses, *info)

			if gap >= s.gapLimit {
				break
			}
		}

		if onBatch != nil {
			onBatch(domain.DiscoveryProgress{
				Change:           branch.isChange(),
				Batch:            batch,
				AddressesScanned: len(addresses),
				TxsFound:         txsFound,
			})
		}

		next += uint32(s.gapLimit)
		batch++
	}
	return nil
}
