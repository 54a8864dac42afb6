package ports

import (
	"context"

	"github.com/unchained-capital/connect/internal/core/domain"
)

// DiscoveryResult is the terminal outcome of a discovery session, exactly
// one of snapshot or error.
type DiscoveryResult struct {
	Snapshot *domain.AccountSnapshot
	Err      error
}

// ActivityUpdate is one event of an activity stream, either a fresh account
// snapshot or an error.
type ActivityUpdate struct {
	Snapshot *domain.AccountSnapshot
	Err      error
}

// DiscoverySession is one in-flight account discovery. The progress channel
// is closed before the terminal result is sent, so progress events always
// precede the terminal one.
type DiscoverySession interface {
	// Progress returns the channel where progress events are emitted in
	// emission order.
	Progress() <-chan domain.DiscoveryProgress
	// Result returns the channel where the terminal result is sent. The
	// channel is buffered, the session never blocks on it.
	Result() <-chan DiscoveryResult
	// Cancel aborts the session with the given reason. Idempotent, has no
	// effect on an already completed session.
	Cancel(reason error)
}

// ActivityStream is a long-lived subscription producing account updates.
type ActivityStream interface {
	// Updates returns the channel where updates are emitted. The channel is
	// closed on disposal.
	Updates() <-chan ActivityUpdate
	// Dispose tears down the stream. Safe to call more than once.
	Dispose()
	// Done returns a channel closed when the stream is disposed.
	Done() <-chan struct{}
}

// DiscoveryEngine is the abstraction for the deterministic-address
// derivation and gap-limit scanning algorithm.
type DiscoveryEngine interface {
	// DiscoverAccount starts a discovery session for the given account.
	// The prior snapshot, if any, is used as resume hint.
	DiscoverAccount(
		ctx context.Context, xpub string, prior *domain.AccountSnapshot,
		network *domain.NetworkDescriptor, segwit domain.SegwitMode,
		useCashAddr bool,
	) (DiscoverySession, error)
	// MonitorAccountActivity starts a long-lived activity stream for the
	// given account, starting from the given snapshot.
	MonitorAccountActivity(
		ctx context.Context, xpub string, snapshot *domain.AccountSnapshot,
		network *domain.NetworkDescriptor, segwit domain.SegwitMode,
		useCashAddr bool,
	) (ActivityStream, error)
	// Stop stops the engine. Open sessions and streams are not affected,
	// their teardown belongs to their owners.
	Stop()
}
