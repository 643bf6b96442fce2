package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
)

const defaultGateRetryInterval = 5 * time.Second

// RelayMount is the part of NotificationRelay the gate drives.
type RelayMount interface {
	Connect(ctx context.Context) error
	Disconnect() error
}

// SnapshotSource provides the current session state.
type SnapshotSource interface {
	Snapshot() domainauth.Snapshot
}

// RelayGateOptions groups dependencies for RelayGate.
type RelayGateOptions struct {
	Relay RelayMount
	// Session seeds the gate with the state at Run time. Optional.
	Session SnapshotSource
	// RequireAuth mounts the relay only while authenticated. When false the relay is mounted for
	// the whole of Run regardless of the session.
	RequireAuth   bool
	RetryInterval time.Duration
	Logger        *slog.Logger
}

// RelayGate ties the relay mount to the session lifecycle.
type RelayGate struct {
	relay       RelayMount
	session     SnapshotSource
	requireAuth bool
	retry       time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	latest domainauth.Snapshot
	wake   chan struct{}
}

// NewRelayGate constructs a RelayGate.
func NewRelayGate(opts RelayGateOptions) (*RelayGate, error) {
	if opts.Relay == nil {
		return nil, errors.New("relay is required")
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultGateRetryInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RelayGate{
		relay:       opts.Relay,
		session:     opts.Session,
		requireAuth: opts.RequireAuth,
		retry:       opts.RetryInterval,
		logger:      opts.Logger.With("component", "relay_gate"),
		wake:        make(chan struct{}, 1),
	}, nil
}

// Attach subscribes the gate to session status changes on bus.
func (g *RelayGate) Attach(bus evbus.Bus) error {
	return bus.Subscribe(TopicSessionStatus, g.Observe)
}

// Observe records snap and wakes Run. It never blocks.
func (g *RelayGate) Observe(snap domainauth.Snapshot) {
	g.mu.Lock()
	if snap.Version < g.latest.Version {
		g.mu.Unlock()
		return
	}
	g.latest = snap
	g.mu.Unlock()
	g.signal()
}

// Run mounts and unmounts the relay until ctx is done, then unmounts it.
func (g *RelayGate) Run(ctx context.Context) error {
	defer g.unmount()

	if !g.requireAuth {
		g.mountUntilDone(ctx)
		return nil
	}

	if g.session != nil {
		g.Observe(g.session.Snapshot())
	}

	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-retry:
			retry = nil
			g.signal()
		case <-g.wake:
			if !g.apply(ctx) {
				retry = time.After(g.retry)
			}
		}
	}
}

// mountUntilDone keeps the relay mounted without regard to the session.
func (g *RelayGate) mountUntilDone(ctx context.Context) {
	for {
		if g.mount(ctx) {
			<-ctx.Done()
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(g.retry):
		}
	}
}

// apply reconciles the mount with the latest snapshot. It returns false when a mount attempt
// failed and should be retried.
func (g *RelayGate) apply(ctx context.Context) bool {
	g.mu.Lock()
	snap := g.latest
	g.mu.Unlock()

	switch snap.Status {
	case domainauth.StatusAuthenticated:
		return g.mount(ctx)
	case domainauth.StatusUnauthenticated:
		g.unmount()
	}
	return true
}

func (g *RelayGate) mount(ctx context.Context) bool {
	err := g.relay.Connect(ctx)
	switch {
	case err == nil, errors.Is(err, ErrAlreadyConnected):
		return true
	case ctx.Err() != nil:
		return true
	default:
		g.logger.ErrorContext(ctx, "mount relay failed", "error", err, "retry_in", g.retry)
		return false
	}
}

func (g *RelayGate) unmount() {
	if err := g.relay.Disconnect(); err != nil && !errors.Is(err, ErrNotConnected) {
		g.logger.Warn("unmount relay failed", "error", err)
	}
}

func (g *RelayGate) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}
