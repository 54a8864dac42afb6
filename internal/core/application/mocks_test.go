package application_test

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/mock"
	"github.com/unchained-capital/connect/internal/core/domain"
	"github.com/unchained-capital/connect/internal/core/ports"
)

// ports.BackendConnection
type mockBackendConn struct {
	mock.Mock
	chNotifications chan error
	closeOnce       sync.Once
}

func newMockBackendConn() *mockBackendConn {
	return &mockBackendConn{
		chNotifications: make(chan error, 1),
	}
}

func (m *mockBackendConn) GetInfo(
	_ context.Context,
) (*ports.BackendInfo, error) {
	args := m.Called()
	var res *ports.BackendInfo
	if a := args.Get(0); a != nil {
		res = a.(*ports.BackendInfo)
	}
	return res, args.Error(1)
}

func (m *mockBackendConn) GetBlockHash(
	_ context.Context, height uint32,
) (*chainhash.Hash, error) {
	args := m.Called(height)
	var res *chainhash.Hash
	if a := args.Get(0); a != nil {
		res = a.(*chainhash.Hash)
	}
	return res, args.Error(1)
}

func (m *mockBackendConn) GetTransaction(
	_ context.Context, txid string,
) (*ports.RawTransaction, error) {
	args := m.Called(txid)
	var res *ports.RawTransaction
	if a := args.Get(0); a != nil {
		res = a.(*ports.RawTransaction)
	}
	return res, args.Error(1)
}

func (m *mockBackendConn) GetSyncStatus(
	_ context.Context,
) (*ports.SyncStatus, error) {
	args := m.Called()
	var res *ports.SyncStatus
	if a := args.Get(0); a != nil {
		res = a.(*ports.SyncStatus)
	}
	return res, args.Error(1)
}

func (m *mockBackendConn) GetAddressHistory(
	_ context.Context, addresses []string, fromHeight uint32,
) ([]ports.AddressHistory, error) {
	args := m.Called(addresses, fromHeight)
	var res []ports.AddressHistory
	if a := args.Get(0); a != nil {
		res = a.([]ports.AddressHistory)
	}
	return res, args.Error(1)
}

func (m *mockBackendConn) SendTransaction(
	_ context.Context, txHex string,
) (string, error) {
	args := m.Called(txHex)
	var res string
	if a := args.Get(0); a != nil {
		res = a.(string)
	}
	return res, args.Error(1)
}

func (m *mockBackendConn) Notifications() <-chan error {
	return m.chNotifications
}

func (m *mockBackendConn) Close() error {
	m.closeOnce.Do(func() { close(m.chNotifications) })
	return nil
}

func (m *mockBackendConn) notifyError(err error) {
	m.chNotifications <- err
}

// ports.DiscoveryEngine backed by scripted fake sessions and streams.
type fakeEngine struct {
	lock        sync.Mutex
	session     *fakeSession
	stream      *fakeStream
	discoverErr error

	gotXpub     string
	gotSegwit   domain.SegwitMode
	gotCashAddr bool
	gotPrior    *domain.AccountSnapshot
}

func (e *fakeEngine) DiscoverAccount(
	_ context.Context, xpub string, prior *domain.AccountSnapshot,
	_ *domain.NetworkDescriptor, segwit domain.SegwitMode, useCashAddr bool,
) (ports.DiscoverySession, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.discoverErr != nil {
		return nil, e.discoverErr
	}
	e.gotXpub, e.gotSegwit, e.gotCashAddr, e.gotPrior = xpub, segwit, useCashAddr, prior
	return e.session, nil
}

func (e *fakeEngine) MonitorAccountActivity(
	_ context.Context, xpub string, _ *domain.AccountSnapshot,
	_ *domain.NetworkDescriptor, segwit domain.SegwitMode, useCashAddr bool,
) (ports.ActivityStream, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.gotXpub, e.gotSegwit, e.gotCashAddr = xpub, segwit, useCashAddr
	return e.stream, nil
}

func (e *fakeEngine) Stop() {}

func (e *fakeEngine) discoveryArgs() (string, domain.SegwitMode, bool) {
	e.lock.Lock()
	defer e.lock.Unlock()

	return e.gotXpub, e.gotSegwit, e.gotCashAddr
}

// fakeSession mimics the engine contract: the progress channel is closed
// before the terminal result is sent, terminal is emitted at most once.
type fakeSession struct {
	chProgress chan domain.DiscoveryProgress
	chResult   chan ports.DiscoveryResult

	lock         sync.Mutex
	done         bool
	cancelReason error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		chProgress: make(chan domain.DiscoveryProgress),
		chResult:   make(chan ports.DiscoveryResult, 1),
	}
}

func (s *fakeSession) Progress() <-chan domain.DiscoveryProgress {
	return s.chProgress
}

func (s *fakeSession) Result() <-chan ports.DiscoveryResult {
	return s.chResult
}

func (s *fakeSession) Cancel(reason error) {
	s.terminate(ports.DiscoveryResult{Err: reason}, reason)
}

func (s *fakeSession) emitProgress(ev domain.DiscoveryProgress) {
	s.chProgress <- ev
}

func (s *fakeSession) complete(snapshot *domain.AccountSnapshot) {
	s.terminate(ports.DiscoveryResult{Snapshot: snapshot}, nil)
}

func (s *fakeSession) terminate(res ports.DiscoveryResult, reason error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.done {
		return
	}
	s.done = true
	s.cancelReason = reason
	close(s.chProgress)
	s.chResult <- res
}

func (s *fakeSession) cancelledWith() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cancelReason
}

type fakeStream struct {
	chUpdates chan ports.ActivityUpdate
	done      chan struct{}

	lock      sync.Mutex
	disposals int
	teardowns int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		chUpdates: make(chan ports.ActivityUpdate),
		done:      make(chan struct{}),
	}
}

func (s *fakeStream) Updates() <-chan ports.ActivityUpdate {
	return s.chUpdates
}

func (s *fakeStream) Done() <-chan struct{} {
	return s.done
}

func (s *fakeStream) Dispose() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.disposals++
	if s.teardowns > 0 {
		return
	}
	s.teardowns++
	close(s.done)
	close(s.chUpdates)
}

func (s *fakeStream) counters() (disposals, teardowns int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.disposals, s.teardowns
}
