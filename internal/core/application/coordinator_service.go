package application

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/unchained-capital/connect/internal/core/domain"
	"github.com/unchained-capital/connect/internal/core/ports"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoEndpoints is returned at construction when the endpoint set is
	// empty.
	ErrNoEndpoints = fmt.Errorf("missing backend endpoints")
	// ErrUnknownNetwork is returned when the backend's genesis block hash
	// matches no known network.
	ErrUnknownNetwork = fmt.Errorf("unknown network")
	// ErrNetworkMismatch is returned when loading coin info resolves to a
	// network different from the one already established.
	ErrNetworkMismatch = fmt.Errorf("network mismatch")
	// ErrNetworkNotSet is returned by operations requiring the network to
	// be resolved first.
	ErrNetworkNotSet = fmt.Errorf("network not resolved, load coin info first")
)

// CoordinatorService composes a backend connection and a discovery engine
// into the operations consumed by the application layer:
// 	* Resolve which coin/network the connected backend serves.
// 	* Run account discovery for an extended public key, relaying progress and supporting cancellation.
// 	* Monitor live activity of an already discovered account.
// 	* Fetch single transactions or batches, get the current chain height, broadcast signed transactions.
//
// The service subscribes exactly once to the connection's error channel.
// The first error received there becomes the sticky fatal error of the
// service: every gated operation invoked afterwards fails immediately with
// it, any open discovery session is cancelled and any open activity stream
// is disposed. The fatal error is never cleared for the service's lifetime.
type CoordinatorService struct {
	conn   ports.BackendConnection
	engine ports.DiscoveryEngine

	lock     *sync.RWMutex
	network  *domain.NetworkDescriptor
	fatalErr error
	// fatalCh is closed when the fatal error is set, open sessions and
	// streams select on it.
	fatalCh chan struct{}

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// ServiceArgs bundles the dependencies of a CoordinatorService. The
// connection is dialed from the ordered endpoint set through ConnectFn,
// the engine is built on top of it through EngineFn. Network is optional
// and can be resolved later with LoadCoinInfo.
type ServiceArgs struct {
	Endpoints []string
	Network   *domain.NetworkDescriptor
	ConnectFn func(endpoints []string) (ports.BackendConnection, error)
	EngineFn  func(conn ports.BackendConnection) ports.DiscoveryEngine
}

func (a ServiceArgs) validate() error {
	if len(a.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	if a.ConnectFn == nil {
		return fmt.Errorf("missing backend connection factory")
	}
	if a.EngineFn == nil {
		return fmt.Errorf("missing discovery engine factory")
	}
	return nil
}

func NewCoordinatorService(args ServiceArgs) (*CoordinatorService, error) {
	if err := args.validate(); err != nil {
		return nil, fmt.Errorf("invalid args: %s", err)
	}

	conn, err := args.ConnectFn(args.Endpoints)
	if err != nil {
		return nil, err
	}
	engine := args.EngineFn(conn)

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("coordinator: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("coordinator: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	svc := &CoordinatorService{
		conn:    conn,
		engine:  engine,
		lock:    &sync.RWMutex{},
		network: args.Network,
		fatalCh: make(chan struct{}),
		log:     logFn,
		warn:    warnFn,
	}
	go svc.listenToBackendErrors()

	return svc, nil
}

// LoadCoinInfo resolves and stores the network served by the connected
// backend. If no descriptor is given, the network is resolved by looking up
// the genesis block hash against the known-network table. The operation is
// not gated by the fatal-error guard since it may be the first call on the
// service, but a later call resolving to a conflicting network fails with
// ErrNetworkMismatch rather than silently switching.
func (s *CoordinatorService) LoadCoinInfo(
	ctx context.Context, network *domain.NetworkDescriptor,
) error {
	info, err := s.conn.GetInfo(ctx)
	if err != nil {
		return err
	}
	s.log("connected to backend %s (%s)", info.Name, info.Shortcut)

	resolved := network
	if resolved == nil {
		genesisHash, err := s.conn.GetBlockHash(ctx, 0)
		if err != nil {
			return err
		}
		resolved = domain.NetworkByGenesisHash(genesisHash)
		if resolved == nil {
			return ErrUnknownNetwork
		}
	}

	return s.setNetwork(resolved)
}

// LoadAccountInfo runs account discovery for the given xpub and returns the
// resulting snapshot. The prior snapshot, if any, is passed through to the
// engine as resume hint. Progress events are relayed to onProgress in
// emission order. A cancel handle is registered with registerCancel before
// any relaying starts, the caller can abort discovery with an explicit
// reason at any time before completion. A backend fatal error received
// while the session is open cancels it with that error as reason, unless
// the session completed first.
func (s *CoordinatorService) LoadAccountInfo(
	ctx context.Context, xpub string, prior *domain.AccountSnapshot,
	onProgress func(domain.DiscoveryProgress),
	registerCancel func(cancel func(reason error)),
) (*domain.AccountSnapshot, error) {
	if err := s.fatalError(); err != nil {
		return nil, err
	}
	network, err := s.getNetwork()
	if err != nil {
		return nil, err
	}

	session, err := s.engine.DiscoverAccount(
		ctx, xpub, prior, network, network.SegwitMode(), network.UsesCashAddr,
	)
	if err != nil {
		return nil, err
	}
	if registerCancel != nil {
		registerCancel(session.Cancel)
	}

	s.log("started discovery for account %s", xpub)

	progress := session.Progress()
	for {
		select {
		case ev, ok := <-progress:
			if !ok {
				progress = nil
				continue
			}
			if onProgress != nil {
				onProgress(ev)
			}
		case res := <-session.Result():
			s.relayPendingProgress(progress, onProgress)
			return s.finalizeDiscovery(xpub, res)
		case <-s.fatalCh:
			// A session completing at the same instant the fatal signal is
			// delivered wins over cancellation.
			select {
			case res := <-session.Result():
				s.relayPendingProgress(progress, onProgress)
				return s.finalizeDiscovery(xpub, res)
			default:
			}
			session.Cancel(s.fatalError())
			res := <-session.Result()
			return s.finalizeDiscovery(xpub, res)
		}
	}
}

// MonitorAccountActivity starts a long-lived activity stream for the given
// account. The caller owns the disposal of the returned stream, but a
// backend fatal error disposes it on the caller's behalf. Disposal is safe
// to call more than once.
func (s *CoordinatorService) MonitorAccountActivity(
	ctx context.Context, xpub string, snapshot *domain.AccountSnapshot,
) (ports.ActivityStream, error) {
	if err := s.fatalError(); err != nil {
		return nil, err
	}
	network, err := s.getNetwork()
	if err != nil {
		return nil, err
	}

	stream, err := s.engine.MonitorAccountActivity(
		ctx, xpub, snapshot, network, network.SegwitMode(), network.UsesCashAddr,
	)
	if err != nil {
		return nil, err
	}

	s.log("started monitoring activity for account %s", xpub)

	go func() {
		select {
		case <-s.fatalCh:
			s.warn(
				s.fatalError(), "disposing activity stream for account %s", xpub,
			)
			stream.Dispose()
		case <-stream.Done():
		}
	}()

	return stream, nil
}

// LoadTransaction fetches the tx with the given id from the backend and
// decodes its raw encoding.
func (s *CoordinatorService) LoadTransaction(
	ctx context.Context, txid string,
) (*domain.TransactionInfo, error) {
	if err := s.fatalError(); err != nil {
		return nil, err
	}

	rawTx, err := s.conn.GetTransaction(ctx, txid)
	if err != nil {
		return nil, err
	}
	return domain.NewTransactionInfo(txid, rawTx.Raw, rawTx.Testnet)
}

// LoadTransactions fetches the txs with the given ids concurrently. Any
// failing fetch fails the whole call, no partial results are returned.
func (s *CoordinatorService) LoadTransactions(
	ctx context.Context, txids []string,
) ([]*domain.TransactionInfo, error) {
	if err := s.fatalError(); err != nil {
		return nil, err
	}

	txs := make([]*domain.TransactionInfo, len(txids))
	eg, ctx := errgroup.WithContext(ctx)
	for i, txid := range txids {
		i, txid := i, txid
		eg.Go(func() error {
			tx, err := s.LoadTransaction(ctx, txid)
			if err != nil {
				return fmt.Errorf("failed to fetch tx %s: %s", txid, err)
			}
			txs[i] = tx
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return txs, nil
}

// LoadCurrentHeight returns the current chain height reported by the
// backend's sync status.
func (s *CoordinatorService) LoadCurrentHeight(
	ctx context.Context,
) (uint32, error) {
	if err := s.fatalError(); err != nil {
		return 0, err
	}

	status, err := s.conn.GetSyncStatus(ctx)
	if err != nil {
		return 0, err
	}
	return status.Height, nil
}

// SendTransaction broadcasts the given raw tx and returns the
// backend-assigned txid.
func (s *CoordinatorService) SendTransaction(
	ctx context.Context, tx []byte,
) (string, error) {
	return s.SendTransactionHex(ctx, hex.EncodeToString(tx))
}

// SendTransactionHex broadcasts the given tx in hex format and returns the
// backend-assigned txid.
func (s *CoordinatorService) SendTransactionHex(
	ctx context.Context, txHex string,
) (string, error) {
	if err := s.fatalError(); err != nil {
		return "", err
	}

	return s.conn.SendTransaction(ctx, txHex)
}

// Close releases the backend connection and the discovery engine. Open
// sessions and streams are not cancelled, their teardown belongs to their
// owners.
func (s *CoordinatorService) Close() error {
	s.engine.Stop()
	return s.conn.Close()
}

func (s *CoordinatorService) listenToBackendErrors() {
	for err := range s.conn.Notifications() {
		if err == nil {
			continue
		}
		if !s.setFatalError(err) {
			s.warn(err, "backend error received after fatal state was set")
			continue
		}
		s.warn(err, "backend reported fatal error")
	}
}

// setFatalError stores the sticky fatal error with first-error-wins
// semantics. It returns whether the given error was stored.
func (s *CoordinatorService) setFatalError(err error) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fatalErr != nil {
		return false
	}
	s.fatalErr = err
	close(s.fatalCh)
	return true
}

func (s *CoordinatorService) fatalError() error {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return s.fatalErr
}

func (s *CoordinatorService) setNetwork(network *domain.NetworkDescriptor) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.network != nil {
		if !s.network.Matches(network) {
			return fmt.Errorf(
				"%w: resolved %s but service is bound to %s",
				ErrNetworkMismatch, network.Name, s.network.Name,
			)
		}
		return nil
	}
	s.network = network
	s.log("resolved network %s", network.Name)
	return nil
}

func (s *CoordinatorService) getNetwork() (*domain.NetworkDescriptor, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.network == nil {
		return nil, ErrNetworkNotSet
	}
	return s.network, nil
}

// relayPendingProgress drains the progress events emitted before the
// terminal result. The engine closes the progress channel before sending
// the result, so the drain never blocks.
func (s *CoordinatorService) relayPendingProgress(
	progress <-chan domain.DiscoveryProgress,
	onProgress func(domain.DiscoveryProgress),
) {
	if progress == nil {
		return
	}
	for ev := range progress {
		if onProgress != nil {
			onProgress(ev)
		}
	}
}

func (s *CoordinatorService) finalizeDiscovery(
	xpub string, res ports.DiscoveryResult,
) (*domain.AccountSnapshot, error) {
	if res.Err != nil {
		s.warn(res.Err, "discovery for account %s ended with error", xpub)
		return nil, res.Err
	}
	s.log("completed discovery for account %s", xpub)
	return res.Snapshot, nil
}
