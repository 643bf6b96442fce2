package service

import (
	"log/slog"
	"sync"

	evbus "github.com/asaskevich/EventBus"
	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/domain/navigation"
)

// TrackerOptions groups dependencies for Tracker.
type TrackerOptions struct {
	Policy       navigation.Policy
	InitialRoute string
	Logger       *slog.Logger
}

// Tracker holds the operator's active route and applies the redirection policy whenever the
// route or the observed session status changes. It implements ports.Navigator.
type Tracker struct {
	policy navigation.Policy
	logger *slog.Logger

	mu      sync.Mutex
	route   string
	status  domainauth.Status
	version uint64
}

// NewTracker constructs a Tracker positioned on InitialRoute (default "/").
func NewTracker(opts TrackerOptions) *Tracker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.InitialRoute == "" {
		opts.InitialRoute = navigation.DefaultPublicRoot
	}
	return &Tracker{
		policy: opts.Policy.Normalize(),
		logger: opts.Logger.With("component", "navigation"),
		route:  navigation.CleanRoute(opts.InitialRoute),
		status: domainauth.StatusUnknown,
	}
}

// Attach subscribes the tracker to session status changes on bus.
func (t *Tracker) Attach(bus evbus.Bus) error {
	return bus.Subscribe(TopicSessionStatus, t.Observe)
}

// Policy returns the normalized redirection policy.
func (t *Tracker) Policy() navigation.Policy {
	return t.policy
}

// Visit records a route change and returns the route that is active afterwards,
// which is the login route when the policy forces a redirect.
func (t *Tracker) Visit(route string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = navigation.CleanRoute(route)
	t.enforceLocked("route_change")
	return t.route
}

// Observe records a session status change. Snapshots older than the last observed one are ignored.
func (t *Tracker) Observe(snap domainauth.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if snap.Version <= t.version {
		return
	}
	t.version = snap.Version
	t.status = snap.Status
	t.enforceLocked("status_change")
}

// Navigate force-navigates to route.
func (t *Tracker) Navigate(route string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.route = navigation.CleanRoute(route)
	t.logger.Debug("navigate", "route", t.route)
}

// Current returns the active route.
func (t *Tracker) Current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.route
}

// Status returns the last observed session status.
func (t *Tracker) Status() domainauth.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Tracker) enforceLocked(trigger string) {
	target, redirect := t.policy.Decide(t.status, t.route)
	if !redirect {
		return
	}
	t.logger.Debug("redirect", "from", t.route, "to", target, "trigger", trigger, "status", t.status)
	t.route = target
}
