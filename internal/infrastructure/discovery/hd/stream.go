package hd_discovery

import (
	"context"
	"sync"
	"time"

	"github.com/unchained-capital/connect/internal/core/domain"
	"github.com/unchained-capital/connect/internal/core/ports"
)

type activityStream struct {
	scanner  *accountScanner
	snapshot *domain.AccountSnapshot
	interval time.Duration

	ctx       context.Context
	cancelCtx context.CancelFunc

	chUpdates chan ports.ActivityUpdate
	done      chan struct{}

	disposeOnce *sync.Once

	warn func(err error, format string, a ...interface{})
}

func newActivityStream(
	ctx context.Context, scanner *accountScanner,
	snapshot *domain.AccountSnapshot, interval time.Duration,
	warn func(err error, format string, a ...interface{}),
) *activityStream {
	ctx, cancel := context.WithCancel(ctx)
	return &activityStream{
		scanner:     scanner,
		snapshot:    snapshot,
		interval:    interval,
		ctx:         ctx,
		cancelCtx:   cancel,
		chUpdates:   make(chan ports.ActivityUpdate),
		done:        make(chan struct{}),
		disposeOnce: &sync.Once{},
		warn:        warn,
	}
}

func (s *activityStream) Updates() <-chan ports.ActivityUpdate {
	return s.chUpdates
}

func (s *activityStream) Done() <-chan struct{} {
	return s.done
}

// Dispose tears down the stream. Safe to call more than once, also when
// the stream was already disposed on the caller's behalf.
func (s *activityStream) Dispose() {
	s.disposeOnce.Do(func() {
		s.cancelCtx()
		close(s.done)
	})
}

// run polls the backend's sync status and rescans the account whenever the
// chain tip moved, emitting a fresh snapshot per detected change.
func (s *activityStream) run() {
	defer close(s.chUpdates)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := s.snapshot
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			status, err := s.scanner.conn.GetSyncStatus(s.ctx)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.emit(ports.ActivityUpdate{Err: err})
				continue
			}
			if last != nil && status.Height == last.Tip.Height {
				continue
			}

			snapshot, err := s.scanner.scan(s.ctx, last, nil)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.warn(err, "failed to rescan account %s", s.scanner.xpub)
				s.emit(ports.ActivityUpdate{Err: err})
				continue
			}
			last = snapshot
			s.emit(ports.ActivityUpdate{Snapshot: snapshot})
		}
	}
}

func (s *activityStream) emit(update ports.ActivityUpdate) {
	select {
	case s.chUpdates <- update:
	case <-s.ctx.Done():
	}
}
