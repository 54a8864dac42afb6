package hd_discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/unchained-capital/connect/internal/core/domain"
	"github.com/unchained-capital/connect/internal/core/ports"
)

const (
	defaultGapLimit     = 20
	defaultPollInterval = 10 * time.Second
)

// ErrDiscoveryCancelled is the default reason of a cancelled discovery
// session when the canceller gave none.
var ErrDiscoveryCancelled = fmt.Errorf("discovery cancelled")

// engine implements ports.DiscoveryEngine with BIP32 address derivation
// and gap-limit history scanning against a backend connection.
type engine struct {
	conn         ports.BackendConnection
	gapLimit     int
	pollInterval time.Duration

	lock    *sync.RWMutex
	stopped bool

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

type EngineArgs struct {
	Conn ports.BackendConnection
	// GapLimit is the number of consecutive unused addresses ending the
	// scan of a branch. Defaults to 20.
	GapLimit int
	// PollInterval is the chain-tip polling interval of activity streams.
	// Defaults to 10s.
	PollInterval time.Duration
}

func (a EngineArgs) validate() error {
	if a.Conn == nil {
		return fmt.Errorf("missing backend connection")
	}
	return nil
}

func (a EngineArgs) gapLimit() int {
	if a.GapLimit <= 0 {
		return defaultGapLimit
	}
	return a.GapLimit
}

func (a EngineArgs) pollInterval() time.Duration {
	if a.PollInterval <= 0 {
		return defaultPollInterval
	}
	return a.PollInterval
}

func NewDiscoveryEngine(args EngineArgs) (ports.DiscoveryEngine, error) {
	if err := args.validate(); err != nil {
		return nil, fmt.Errorf("invalid args: %s", err)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("discovery: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("discovery: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &engine{
		conn:         args.Conn,
		gapLimit:     args.gapLimit(),
		pollInterval: args.pollInterval(),
		lock:         &sync.RWMutex{},
		log:          logFn,
		warn:         warnFn,
	}, nil
}

func (e *engine) DiscoverAccount(
	ctx context.Context, xpub string, prior *domain.AccountSnapshot,
	network *domain.NetworkDescriptor, segwit domain.SegwitMode,
	useCashAddr bool,
) (ports.DiscoverySession, error) {
	if e.isStopped() {
		return nil, fmt.Errorf("discovery engine is stopped")
	}

	scanner, err := newAccountScanner(
		e.conn, xpub, network, segwit, useCashAddr, e.gapLimit,
	)
	if err != nil {
		return nil, err
	}

	session := newDiscoverySession(ctx, scanner, prior)
	go session.run()

	e.log("started discovery session for account %s", xpub)
	return session, nil
}

func (e *engine) MonitorAccountActivity(
	ctx context.Context, xpub string, snapshot *domain.AccountSnapshot,
	network *domain.NetworkDescriptor, segwit domain.SegwitMode,
	useCashAddr bool,
) (ports.ActivityStream, error) {
	if e.isStopped() {
		return nil, fmt.Errorf("discovery engine is stopped")
	}

	scanner, err := newAccountScanner(
		e.conn, xpub, network, segwit, useCashAddr, e.gapLimit,
	)
	if err != nil {
		return nil, err
	}

	stream := newActivityStream(ctx, scanner, snapshot, e.pollInterval, e.warn)
	go stream.run()

	e.log("started activity stream for account %s", xpub)
	return stream, nil
}

// Stop prevents new sessions and streams from being started. Open ones are
// not affected, their teardown belongs to their owners.
func (e *engine) Stop() {
	e.lock.Lock()
	defer e.lock.Unlock()

	e.stopped = true
}

func (e *engine) isStopped() bool {
	e.lock.RLock()
	defer e.lock.RUnlock()

	return e.stopped
}
