package ports

import (
	"context"
	"encoding/json"

	"github.com/sidesa/desa-admin/internal/domain/notify"
)

// EventKind names a push-channel event.
type EventKind string

const (
	// EventConnect is emitted by a channel after every successful (re)connection.
	EventConnect EventKind = "connect"
	// EventNotification carries a notification payload.
	EventNotification EventKind = "notification"
)

// ChannelEvent is one event delivered by a push channel.
type ChannelEvent struct {
	Kind    EventKind
	Payload json.RawMessage
}

// Channel is a live push-channel connection.
// Events is closed after Close returns; a closed channel cannot be restarted.
// Reconnecting after network loss is the channel's own responsibility.
type Channel interface {
	Events() <-chan ChannelEvent
	Close() error
}

// ChannelDialer opens a push channel to the configured server endpoint.
type ChannelDialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// NotificationJournal durably records received notifications.
type NotificationJournal interface {
	Append(ctx context.Context, n notify.Notification) error
	Recent(ctx context.Context, limit int) ([]notify.Notification, error)
}
