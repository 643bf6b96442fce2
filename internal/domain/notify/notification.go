// Package notify contains the notification record and the bounded queue
// that holds received notifications in arrival order.
package notify

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a single server-pushed event record.
// Timestamp is the event time reported by the server, or the receipt time
// when the server omitted it.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// New builds a notification with a fresh ID. A zero timestamp defaults to receivedAt.
func New(message string, timestamp, receivedAt time.Time) Notification {
	if timestamp.IsZero() {
		timestamp = receivedAt
	}
	return Notification{
		ID:         uuid.New(),
		Message:    message,
		Timestamp:  timestamp.UTC(),
		ReceivedAt: receivedAt.UTC(),
	}
}
