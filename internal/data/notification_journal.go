package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sidesa/desa-admin/internal/data/pgxutil"
	"github.com/sidesa/desa-admin/internal/domain/notify"
	apperrors "github.com/sidesa/desa-admin/internal/errors"
	"github.com/sidesa/desa-admin/internal/ports"
)

var _ ports.NotificationJournal = (*NotificationJournalRepo)(nil)

// MaxHistoryLimit caps Recent.
const MaxHistoryLimit = 500

// NotificationJournalRepo implements ports.NotificationJournal using PostgreSQL.
type NotificationJournalRepo struct {
	DB *sql.DB
}

// NewNotificationJournalRepo creates a new NotificationJournalRepo instance.
func NewNotificationJournalRepo(db *sql.DB) *NotificationJournalRepo {
	return &NotificationJournalRepo{DB: db}
}

type journalRow struct {
	ID         uuid.UUID `db:"id"`
	Message    string    `db:"message"`
	EventAt    time.Time `db:"event_at"`
	ReceivedAt time.Time `db:"received_at"`
}

// Append records n. Appending the same notification id twice is a conflict.
func (r *NotificationJournalRepo) Append(ctx context.Context, n notify.Notification) error {
	if n.ID == uuid.Nil || n.Message == "" {
		return apperrors.Wrap(ErrNotificationRequired, apperrors.ErrCodeValidation, "invalid notification")
	}
	err := pgxutil.Exec(ctx, r.DB, `
		INSERT INTO notification_journal (id, message, event_at, received_at)
		VALUES ($1, $2, $3, $4)`,
		n.ID, n.Message, n.Timestamp, n.ReceivedAt)
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// Recent returns up to limit journaled notifications, most recently received first.
func (r *NotificationJournalRepo) Recent(ctx context.Context, limit int) ([]notify.Notification, error) {
	if limit <= 0 {
		return nil, &apperrors.AppError{
			Code:    apperrors.ErrCodeValidation,
			Message: "invalid history limit",
			Cause:   ErrLimitOutOfRange,
			Field:   "limit",
		}
	}
	limit = min(limit, MaxHistoryLimit)

	rows, err := pgxutil.CollectRows[journalRow](ctx, r.DB, `
		SELECT id, message, event_at, received_at
		FROM notification_journal
		ORDER BY seq DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}

	out := make([]notify.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, notify.Notification{
			ID:         row.ID,
			Message:    row.Message,
			Timestamp:  row.EventAt.UTC(),
			ReceivedAt: row.ReceivedAt.UTC(),
		})
	}
	return out, nil
}
