package httpx

import (
	"context"

	domainauth "github.com/sidesa/desa-admin/internal/domain/auth"
	"github.com/sidesa/desa-admin/internal/domain/navigation"
	"github.com/sidesa/desa-admin/internal/domain/notify"
)

// SessionService is the subset of the session guard used by the gateway.
type SessionService interface {
	Snapshot() domainauth.Snapshot
	WaitReady(ctx context.Context) error
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context)
}

// RouteTracker records the operator's route and applies the redirection policy.
type RouteTracker interface {
	Visit(route string) string
	Observe(snap domainauth.Snapshot)
	Current() string
	Policy() navigation.Policy
}

// NotificationFeed exposes the relay's queue and live subscriptions.
type NotificationFeed interface {
	Snapshot() []notify.Notification
	Subscribe(buffer int) (<-chan notify.Notification, func(), error)
	Connected() bool
}

// NotificationHistory reads journaled notifications.
type NotificationHistory interface {
	Recent(ctx context.Context, limit int) ([]notify.Notification, error)
}
