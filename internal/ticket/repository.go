package ticket

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	ErrTicketExpired  = errors.New("ticket expired")
)

type Repository interface {
	GetByToken(ctx context.Context, token string) (*Ticket, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*Ticket, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByToken(ctx context.Context, token string) (*Ticket, error) {
	query := `
		SELECT booking_id, token, expires_at, created_at
		FROM tickets
		WHERE token = $1
	`

	var t Ticket
	err := r.db.GetContext(ctx, &t, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	return &t, nil
}

func (r *repository) GetByBookingID(ctx context.Context, bookingID int64) (*Ticket, error) {
	query := `
		SELECT booking_id, token, expires_at, created_at
		FROM tickets
		WHERE booking_id = $1
	`

	var t Ticket
	err := r.db.GetContext(ctx, &t, query, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}

	return &t, nil
}

// IssueTx creates the booking's ticket inside the caller's transaction.
// The token is a UUID, unguessable and unique across all tickets; the
// unique constraint on tickets.token backs that up.
func IssueTx(ctx context.Context, tx *sqlx.Tx, bookingID int64, sessionStart time.Time, buffer time.Duration) (*Ticket, error) {
	query := `
		INSERT INTO tickets (booking_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING booking_id, token, expires_at, created_at
	`

	var t Ticket
	err := tx.GetContext(ctx, &t, query, bookingID, uuid.NewString(), sessionStart.Add(buffer))
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// DeleteForBookingTx removes a ticket during saga compensation.
func DeleteForBookingTx(ctx context.Context, tx *sqlx.Tx, bookingID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM tickets WHERE booking_id = $1`, bookingID)
	return err
}
