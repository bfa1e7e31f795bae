package event

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	ListByBooking(ctx context.Context, bookingID int64) ([]Event, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListByBooking(ctx context.Context, bookingID int64) ([]Event, error) {
	query := `
		SELECT id, booking_id, actor, event_type, metadata, created_at
		FROM booking_events
		WHERE booking_id = $1
		ORDER BY created_at ASC, id ASC
	`

	var events []Event
	err := r.db.SelectContext(ctx, &events, query, bookingID)
	if err != nil {
		return nil, err
	}

	return events, nil
}

// AppendTx writes one lifecycle event inside the caller's transaction
// so the event commits or rolls back with the mutation it describes.
func AppendTx(ctx context.Context, tx *sqlx.Tx, bookingID int64, actor string, eventType EventType, metadata string) (*Event, error) {
	if metadata == "" {
		metadata = "{}"
	}

	query := `
		INSERT INTO booking_events (booking_id, actor, event_type, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, booking_id, actor, event_type, metadata, created_at
	`

	var e Event
	err := tx.GetContext(ctx, &e, query, bookingID, actor, eventType, metadata)
	if err != nil {
		return nil, err
	}

	return &e, nil
}

// DeleteForBookingTx removes a booking's events during compensating
// rollback only.
func DeleteForBookingTx(ctx context.Context, tx *sqlx.Tx, bookingID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM booking_events WHERE booking_id = $1`, bookingID)
	return err
}
