package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/domain/navigation"
	obserrors "github.com/sidesa/desa-admin/internal/observability/errors"
	"github.com/sidesa/desa-admin/internal/observability/metrics"
	"github.com/sidesa/desa-admin/internal/ports"
)

// TopicSessionStatus is the event bus topic carrying domainauth.Snapshot values.
const TopicSessionStatus = "session:status"

const defaultLookupTimeout = 10 * time.Second

var (
	// ErrEmptyToken is returned by Login when no token is supplied.
	ErrEmptyToken = errors.New("token is required")
	// ErrLoginFailed is returned by Login when the new token does not resolve to an identity.
	ErrLoginFailed = errors.New("login failed")
	// ErrInvalidIdentity is the resolution failure for a lookup result without a user id or username.
	ErrInvalidIdentity = errors.New("identity lookup returned an empty user record")

	errSuperseded    = errors.New("resolution superseded by a newer session operation")
	errStoreReadFail = errors.New("read stored token")
)

// SessionGuardOptions groups dependencies for SessionGuard.
type SessionGuardOptions struct {
	Store     ports.TokenStore
	Lookup    ports.IdentityLookup
	Navigator ports.Navigator
	// Bus receives a domainauth.Snapshot on TopicSessionStatus after every state change.
	Bus           evbus.Bus
	Policy        navigation.Policy
	LookupTimeout time.Duration
	Metrics       metrics.SessionRecorder
	Logger        *slog.Logger
}

// SessionGuard is the single writer of the session state. It resolves the stored token into an
// identity, fails closed on any lookup failure and discards completions of resolutions that were
// overtaken by a newer Resolve, Login or Logout.
type SessionGuard struct {
	store     ports.TokenStore
	lookup    ports.IdentityLookup
	navigator ports.Navigator
	bus       evbus.Bus
	policy    navigation.Policy
	timeout   time.Duration
	metrics   metrics.SessionRecorder
	logger    *slog.Logger

	// mu serializes writers; readers load state without locking.
	mu    sync.Mutex
	seq   uint64
	state atomic.Pointer[domainauth.Snapshot]
	// committed is the seq of the latest operation whose outcome was applied.
	committed uint64
	// settled is closed and replaced whenever an operation commits.
	settled chan struct{}

	ready     chan struct{}
	readyOnce sync.Once

	pubMu     sync.Mutex
	published uint64
}

// NewSessionGuard constructs a SessionGuard in the Unknown state.
func NewSessionGuard(opts SessionGuardOptions) (*SessionGuard, error) {
	if opts.Store == nil {
		return nil, errors.New("token store is required")
	}
	if opts.Lookup == nil {
		return nil, errors.New("identity lookup is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaultLookupTimeout
	}

	g := &SessionGuard{
		store:     opts.Store,
		lookup:    opts.Lookup,
		navigator: opts.Navigator,
		bus:       opts.Bus,
		policy:    opts.Policy.Normalize(),
		timeout:   opts.LookupTimeout,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "session_guard"),
		ready:     make(chan struct{}),
		settled:   make(chan struct{}),
	}
	g.state.Store(&domainauth.Snapshot{Status: domainauth.StatusUnknown})
	return g, nil
}

// Snapshot returns the current session state. It never blocks on a resolution.
func (g *SessionGuard) Snapshot() domainauth.Snapshot {
	return *g.state.Load()
}

// Status returns the current authentication status.
func (g *SessionGuard) Status() domainauth.Status {
	return g.state.Load().Status
}

// Identity returns a copy of the resolved identity when authenticated.
func (g *SessionGuard) Identity() (*domainauth.Identity, bool) {
	snap := g.state.Load()
	if snap.Identity == nil {
		return nil, false
	}
	id := *snap.Identity
	return &id, true
}

// Ready is closed once the status first leaves Unknown.
func (g *SessionGuard) Ready() <-chan struct{} {
	return g.ready
}

// WaitReady blocks until the first resolution completes or ctx is done.
func (g *SessionGuard) WaitReady(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve re-derives the session from the stored token. Failures are absorbed into the
// Unauthenticated state. A token the lookup rejects is cleared; a token that could not be read
// is left in the store. The returned snapshot is the state after this call; if a newer
// operation overtook it, that operation's state is returned instead.
func (g *SessionGuard) Resolve(ctx context.Context) domainauth.Snapshot {
	g.mu.Lock()
	g.seq++
	my := g.seq
	g.mu.Unlock()

	token, err := g.store.Get(context.WithoutCancel(ctx))
	switch {
	case errors.Is(err, ports.ErrNoToken):
		err = nil
	case err != nil:
		g.logger.WarnContext(ctx, "read stored token failed", "error", err)
		err = fmt.Errorf("%w: %w", errStoreReadFail, err)
	}

	snap, _ := g.resolve(ctx, my, token, err)
	return snap
}

// Login stores token, resolves it and navigates to the landing route on success. A token that
// does not resolve is cleared again and reported as ErrLoginFailed.
func (g *SessionGuard) Login(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	g.mu.Lock()
	if err := g.store.Set(ctx, token); err != nil {
		g.mu.Unlock()
		return fmt.Errorf("store token: %w", err)
	}
	g.seq++
	my := g.seq
	g.mu.Unlock()

	snap, err := g.resolve(ctx, my, token, nil)
	if errors.Is(err, errSuperseded) {
		// A newer operation decides the outcome; report what it settled on.
		snap, err = g.awaitSettled(ctx)
		if err == nil && !snap.Authenticated() {
			err = errSuperseded
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	g.logger.InfoContext(ctx, "login succeeded", "user_id", snap.Identity.UserID, "role", snap.Identity.Role)
	g.navigate(g.policy.LandingRoute)
	return nil
}

// Logout clears the stored token and identity and navigates to the login route.
// Storage errors are logged; logout itself always succeeds.
func (g *SessionGuard) Logout(ctx context.Context) {
	g.mu.Lock()
	g.seq++
	if err := g.store.Clear(context.WithoutCancel(ctx)); err != nil {
		g.logger.WarnContext(ctx, "clear stored token failed", "error", err)
	}
	prev := g.state.Load()
	changed := prev.Status != domainauth.StatusUnauthenticated || prev.Identity != nil
	var snap domainauth.Snapshot
	if changed {
		snap = g.setLocked(domainauth.StatusUnauthenticated, nil)
	}
	g.commitLocked(g.seq)
	g.mu.Unlock()

	if changed {
		g.logger.InfoContext(ctx, "logged out")
		g.publish(snap)
	}
	g.navigate(g.policy.LoginRoute)
}

func (g *SessionGuard) resolve(
	ctx context.Context,
	my uint64,
	token string,
	readErr error,
) (domainauth.Snapshot, error) {
	if readErr != nil {
		return g.apply(ctx, my, nil, readErr)
	}
	if token == "" {
		return g.apply(ctx, my, nil, nil)
	}

	// The caller's cancellation does not abort the lookup; the timeout bounds it and a newer
	// operation makes its result stale.
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	identity, err := g.lookup.Lookup(lookupCtx, token)
	cancel()
	if err == nil && identity.UserID == "" && identity.Username == "" {
		err = ErrInvalidIdentity
	}
	if err != nil {
		return g.apply(ctx, my, nil, err)
	}
	return g.apply(ctx, my, &identity, nil)
}

// apply commits the outcome of resolution my if it is still the latest session operation.
// A nil identity means Unauthenticated; cause is non-nil when a stored token failed to resolve.
func (g *SessionGuard) apply(
	ctx context.Context,
	my uint64,
	identity *domainauth.Identity,
	cause error,
) (domainauth.Snapshot, error) {
	g.mu.Lock()
	if my != g.seq {
		current := *g.state.Load()
		g.mu.Unlock()
		g.logger.DebugContext(ctx, "discarding stale resolution", "seq", my)
		g.record(metrics.ResultStale, "")
		return current, errSuperseded
	}

	if identity == nil && cause != nil && !errors.Is(cause, errStoreReadFail) {
		// Fail closed: a token that did not verify never survives a resolution.
		if err := g.store.Clear(context.WithoutCancel(ctx)); err != nil {
			g.logger.WarnContext(ctx, "clear stored token failed", "error", err)
		}
	}

	status := domainauth.StatusUnauthenticated
	if identity != nil {
		status = domainauth.StatusAuthenticated
	}
	snap := g.setLocked(status, identity)
	g.commitLocked(my)
	g.mu.Unlock()

	switch {
	case identity != nil:
		g.record(metrics.ResultAuthenticated, "")
		g.logger.DebugContext(ctx, "session resolved", "user_id", identity.UserID, "version", snap.Version)
	case cause != nil:
		g.record(metrics.ResultUnauthenticated, obserrors.Classify(cause))
		g.logger.InfoContext(ctx, "session resolution failed", "error", cause, "version", snap.Version)
	default:
		g.record(metrics.ResultUnauthenticated, "no_token")
		g.logger.DebugContext(ctx, "no stored token", "version", snap.Version)
	}

	g.publish(snap)

	if identity == nil {
		if cause == nil {
			cause = ports.ErrNoToken
		}
		return snap, cause
	}
	return snap, nil
}

// awaitSettled waits until the latest session operation has committed and returns its state.
// The wait is bounded by the lookup timeout.
func (g *SessionGuard) awaitSettled(ctx context.Context) (domainauth.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()
	for {
		g.mu.Lock()
		if g.committed == g.seq {
			snap := *g.state.Load()
			g.mu.Unlock()
			return snap, nil
		}
		settled := g.settled
		g.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return *g.state.Load(), ctx.Err()
		}
	}
}

// commitLocked records seq as applied and wakes awaitSettled. Callers hold g.mu.
func (g *SessionGuard) commitLocked(seq uint64) {
	g.committed = seq
	close(g.settled)
	g.settled = make(chan struct{})
}

// setLocked replaces the state and returns the new snapshot. Callers hold g.mu.
func (g *SessionGuard) setLocked(status domainauth.Status, identity *domainauth.Identity) domainauth.Snapshot {
	prev := g.state.Load()
	snap := domainauth.Snapshot{
		Status:   status,
		Identity: identity,
		Version:  prev.Version + 1,
	}
	if identity != nil {
		snap.Grant = uuid.NewString()
	}
	g.state.Store(&snap)
	if status != domainauth.StatusUnknown {
		g.readyOnce.Do(func() { close(g.ready) })
	}
	return snap
}

// publish forwards snap to the bus unless a newer snapshot was already published.
func (g *SessionGuard) publish(snap domainauth.Snapshot) {
	g.pubMu.Lock()
	defer g.pubMu.Unlock()
	if snap.Version <= g.published {
		return
	}
	g.published = snap.Version
	if g.bus != nil {
		g.bus.Publish(TopicSessionStatus, snap)
	}
}

func (g *SessionGuard) navigate(route string) {
	if g.navigator != nil {
		g.navigator.Navigate(route)
	}
}

func (g *SessionGuard) record(result, errorClass string) {
	if g.metrics != nil {
		g.metrics.RecordResolution(result, errorClass)
	}
}
