package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"studioslot/internal/db"
	"studioslot/internal/event"
	"studioslot/internal/plan"
	"studioslot/internal/session"
	"studioslot/internal/ticket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrCapacityExceeded  = errors.New("session is at capacity")
	ErrDuplicateBooking  = errors.New("client already has an active booking for this session")
	ErrInvalidTransition = errors.New("booking is not in a state that allows this operation")
)

const uniqueViolation = "23505"

type repository struct {
	db *sqlx.DB
}

func NewRepository(database *sqlx.DB) Repository {
	return &repository{db: database}
}

// Create performs the whole reservation as one transaction: the session
// row lock serializes concurrent callers, occupancy is re-read under
// the lock, and the booking row, ledger entry, ticket and CREATED event
// commit together or not at all.
func (r *repository) Create(ctx context.Context, p CreateParams) (*Result, error) {
	var result Result

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		sess, err := session.LockSessionTx(ctx, tx, p.SessionID)
		if err != nil {
			return err
		}

		occupancy, err := session.OccupancyTx(ctx, tx, p.SessionID)
		if err != nil {
			return err
		}
		if occupancy >= sess.Capacity {
			return ErrCapacityExceeded
		}

		var b Booking
		err = tx.GetContext(ctx, &b, `
			INSERT INTO bookings (session_id, client_id, status, plan_purchase_id)
			VALUES ($1, $2, 'confirmed', $3)
			RETURNING id, session_id, client_id, status, reserved_at, plan_purchase_id
		`, p.SessionID, p.ClientID, p.PlanPurchaseID)
		if err != nil {
			return mapUniqueViolation(err)
		}

		if p.PlanPurchaseID != nil {
			switch p.CreditMode {
			case CreditDebit:
				if err := plan.DebitTx(ctx, tx, *p.PlanPurchaseID, b.ID, b.SessionID, time.Now()); err != nil {
					return err
				}
			case CreditUsageOnly:
				if err := plan.RecordUsageTx(ctx, tx, *p.PlanPurchaseID, b.ID, b.SessionID, -1); err != nil {
					return err
				}
			}
		}

		tkt, err := ticket.IssueTx(ctx, tx, b.ID, sess.StartTime, p.TicketBuffer)
		if err != nil {
			return err
		}

		ev, err := event.AppendTx(ctx, tx, b.ID, p.Actor, event.TypeCreated, p.Metadata)
		if err != nil {
			return err
		}

		result = Result{Booking: &b, Ticket: tkt, events: []*event.Event{ev}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

func (r *repository) GetByID(ctx context.Context, id int64) (*Booking, error) {
	query := `
		SELECT id, session_id, client_id, status, reserved_at, plan_purchase_id
		FROM bookings
		WHERE id = $1
	`

	var b Booking
	err := r.db.GetContext(ctx, &b, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

func (r *repository) ActiveForClientSession(ctx context.Context, sessionID, clientID int64) (*Booking, error) {
	query := `
		SELECT id, session_id, client_id, status, reserved_at, plan_purchase_id
		FROM bookings
		WHERE session_id = $1 AND client_id = $2
		  AND status IN ('confirmed', 'checked_in', 'checked_out')
	`

	var b Booking
	err := r.db.GetContext(ctx, &b, query, sessionID, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	return &b, nil
}

// Cancel flips the row to cancelled and, when the booking debited a
// flexible plan, restores the credit in the same transaction.
func (r *repository) Cancel(ctx context.Context, bookingID int64, actor string, refundPlanID *int64) (*event.Event, error) {
	var ev *event.Event

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var b Booking
		err := tx.GetContext(ctx, &b, `
			UPDATE bookings
			SET status = 'cancelled'
			WHERE id = $1 AND status = 'confirmed'
			RETURNING id, session_id, client_id, status, reserved_at, plan_purchase_id
		`, bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvalidTransition
			}
			return err
		}

		if refundPlanID != nil {
			if err := plan.CreditTx(ctx, tx, *refundPlanID, b.ID, b.SessionID); err != nil {
				return err
			}
		}

		ev, err = event.AppendTx(ctx, tx, b.ID, actor, event.TypeCancelled, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

// Rebook is cancel(old)+create(new) in one transaction spanning both
// sessions' capacity. Sessions are locked in id order so two opposite
// rebooks cannot deadlock. If anything fails the old booking stays
// confirmed.
func (r *repository) Rebook(ctx context.Context, old *Booking, newSess *session.Session, ticketBuffer time.Duration, actor string) (*Booking, *ticket.Ticket, []*event.Event, error) {
	var (
		newBooking Booking
		tkt        *ticket.Ticket
		events     []*event.Event
	)

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		lockOrder := []int64{old.SessionID, newSess.ID}
		if lockOrder[1] < lockOrder[0] {
			lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
		}
		for _, id := range lockOrder {
			if _, err := session.LockSessionTx(ctx, tx, id); err != nil {
				return err
			}
		}

		occupancy, err := session.OccupancyTx(ctx, tx, newSess.ID)
		if err != nil {
			return err
		}
		if occupancy >= newSess.Capacity {
			return ErrCapacityExceeded
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET status = 'rebooked'
			WHERE id = $1 AND status = 'confirmed'
		`, old.ID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvalidTransition
		}

		err = tx.GetContext(ctx, &newBooking, `
			INSERT INTO bookings (session_id, client_id, status, plan_purchase_id)
			VALUES ($1, $2, 'confirmed', $3)
			RETURNING id, session_id, client_id, status, reserved_at, plan_purchase_id
		`, newSess.ID, old.ClientID, old.PlanPurchaseID)
		if err != nil {
			return mapUniqueViolation(err)
		}

		tkt, err = ticket.IssueTx(ctx, tx, newBooking.ID, newSess.StartTime, ticketBuffer)
		if err != nil {
			return err
		}

		oldEv, err := event.AppendTx(ctx, tx, old.ID, actor, event.TypeRebooked,
			fmt.Sprintf(`{"new_booking_id": %d}`, newBooking.ID))
		if err != nil {
			return err
		}

		newEv, err := event.AppendTx(ctx, tx, newBooking.ID, actor, event.TypeCreated,
			fmt.Sprintf(`{"rebooked_from": %d}`, old.ID))
		if err != nil {
			return err
		}

		events = []*event.Event{oldEv, newEv}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return &newBooking, tkt, events, nil
}

// Transition moves a booking along the state machine with a guarded
// update, appending the matching event in the same transaction.
func (r *repository) Transition(ctx context.Context, bookingID int64, from, to Status, actor string, eventType event.EventType) (*event.Event, error) {
	var ev *event.Event

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET status = $1
			WHERE id = $2 AND status = $3
		`, to, bookingID, from)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvalidTransition
		}

		ev, err = event.AppendTx(ctx, tx, bookingID, actor, eventType, "")
		return err
	})
	if err != nil {
		return nil, err
	}

	return ev, nil
}

func (r *repository) ListByClient(ctx context.Context, clientID int64) ([]Booking, error) {
	query := `
		SELECT id, session_id, client_id, status, reserved_at, plan_purchase_id
		FROM bookings
		WHERE client_id = $1
		ORDER BY reserved_at DESC
	`

	var bookings []Booking
	err := r.db.SelectContext(ctx, &bookings, query, clientID)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) ListBySession(ctx context.Context, sessionID int64) ([]BookingWithDetails, error) {
	query := `
		SELECT
			b.id,
			b.session_id,
			b.client_id,
			b.status,
			b.reserved_at,
			b.plan_purchase_id,
			s.start_time AS session_start,
			s.end_time AS session_end,
			c.name AS course_name
		FROM bookings b
		JOIN sessions s ON b.session_id = s.id
		LEFT JOIN courses c ON s.course_id = c.id
		WHERE b.session_id = $1
		ORDER BY b.reserved_at DESC
	`

	var bookings []BookingWithDetails
	err := r.db.SelectContext(ctx, &bookings, query, sessionID)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

// DeleteCreated undoes one freshly created booking during compensating
// rollback: ticket, usage rows, events and the booking row itself are
// removed in one transaction.
func (r *repository) DeleteCreated(ctx context.Context, bookingID int64) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := ticket.DeleteForBookingTx(ctx, tx, bookingID); err != nil {
			return err
		}
		if err := plan.DeleteUsagesForBookingTx(ctx, tx, bookingID); err != nil {
			return err
		}
		if err := event.DeleteForBookingTx(ctx, tx, bookingID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
		return err
	})
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateBooking
	}
	return err
}
