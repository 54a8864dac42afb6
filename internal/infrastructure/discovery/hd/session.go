package hd_discovery

import (
	"context"
	"sync"

	"github.com/unchained-capital/connect/internal/core/domain"
	"github.com/unchained-capital/connect/internal/core/ports"
)

type discoverySession struct {
	scanner *accountScanner
	prior   *domain.AccountSnapshot

	ctx       context.Context
	cancelCtx context.CancelFunc

	chProgress chan domain.DiscoveryProgress
	chResult   chan ports.DiscoveryResult

	lock   *sync.Mutex
	reason error
}

func newDiscoverySession(
	ctx context.Context, scanner *accountScanner,
	prior *domain.AccountSnapshot,
) *discoverySession {
	ctx, cancel := context.WithCancel(ctx)
	return &discoverySession{
		scanner:    scanner,
		prior:      prior,
		ctx:        ctx,
		cancelCtx:  cancel,
		chProgress: make(chan domain.DiscoveryProgress),
		chResult:   make(chan ports.DiscoveryResult, 1),
		lock:       &sync.Mutex{},
	}
}

func (s *discoverySession) Progress() <-chan domain.DiscoveryProgress {
	return s.chProgress
}

func (s *discoverySession) Result() <-chan ports.DiscoveryResult {
	return s.chResult
}

// Cancel aborts the session with the given reason. First reason wins, a
// second call has no effect. Cancelling a completed session is a no-op.
func (s *discoverySession) Cancel(reason error) {
	s.lock.Lock()
	if s.reason == nil {
		if reason == nil {
			reason = ErrDiscoveryCancelled
		}
		s.reason = reason
	}
	s.lock.Unlock()

	s.cancelCtx()
}

func (s *discoverySession) cancelReason() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.reason
}

// run performs the scan and emits the terminal result. The progress channel
// is closed before the result is sent so that progress events always
// precede the terminal one.
func (s *discoverySession) run() {
	defer s.cancelCtx()

	snapshot, err := s.scanner.scan(s.ctx, s.prior, s.emitProgress)
	close(s.chProgress)
	if err != nil {
		if reason := s.cancelReason(); reason != nil {
			err = reason
		}
		s.chResult <- ports.DiscoveryResult{Err: err}
		return
	}
	s.chResult <- ports.DiscoveryResult{Snapshot: snapshot}
}

func (s *discoverySession) emitProgress(ev domain.DiscoveryProgress) {
	select {
	case s.chProgress <- ev:
	case <-s.ctx.Done():
	}
}
