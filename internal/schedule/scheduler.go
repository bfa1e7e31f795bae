package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studioslot/internal/booking"
	"studioslot/internal/logger"
	"studioslot/internal/plan"
	"studioslot/internal/session"
)

var (
	ErrInsufficientSessions = errors.New("not enough future sessions for the fixed plan")
	ErrAlreadyBooked        = errors.New("client already has a booking in one of the selected sessions")
)

// SessionSource feeds the scheduler candidate sessions and their
// current load.
type SessionSource interface {
	GetUpcomingByCourse(ctx context.Context, courseID int64, from time.Time, limit int) ([]session.Session, error)
	Occupancy(ctx context.Context, sessionID int64) (int, error)
}

// BookingStore is the slice of the booking repository the saga needs:
// create (per-row atomic) and the compensating delete.
type BookingStore interface {
	Create(ctx context.Context, p booking.CreateParams) (*booking.Result, error)
	ActiveForClientSession(ctx context.Context, sessionID, clientID int64) (*booking.Booking, error)
	DeleteCreated(ctx context.Context, bookingID int64) error
}

// Scheduler books every class of a fixed plan as one logical unit. It
// holds no lock across the whole run; each booking is its own atomic
// step, and a failure compensates every committed step in reverse
// order so no partial schedule is ever left live.
type Scheduler struct {
	sessions     SessionSource
	bookings     BookingStore
	ticketBuffer time.Duration
}

var _ plan.FixedScheduler = (*Scheduler)(nil)

func New(sessions SessionSource, bookings BookingStore, ticketBuffer time.Duration) *Scheduler {
	return &Scheduler{
		sessions:     sessions,
		bookings:     bookings,
		ticketBuffer: ticketBuffer,
	}
}

func (s *Scheduler) GenerateFixedPlanBookings(ctx context.Context, planPurchaseID, clientID int64, classCount int, courseID int64, fromDate time.Time) ([]plan.ScheduledBooking, error) {
	candidates, err := s.sessions.GetUpcomingByCourse(ctx, courseID, fromDate, classCount)
	if err != nil {
		return nil, err
	}
	if len(candidates) < classCount {
		return nil, ErrInsufficientSessions
	}

	// Precondition sweep before any side effect: every selected session
	// must have a free seat and no existing booking for this client.
	for _, sess := range candidates {
		if _, err := s.bookings.ActiveForClientSession(ctx, sess.ID, clientID); err == nil {
			return nil, fmt.Errorf("%w: session %d", ErrAlreadyBooked, sess.ID)
		} else if !errors.Is(err, booking.ErrBookingNotFound) {
			return nil, err
		}

		occupancy, err := s.sessions.Occupancy(ctx, sess.ID)
		if err != nil {
			return nil, err
		}
		if occupancy >= sess.Capacity {
			return nil, fmt.Errorf("%w: session %d", booking.ErrCapacityExceeded, sess.ID)
		}
	}

	purchaseID := planPurchaseID
	created := make([]*booking.Result, 0, classCount)
	scheduled := make([]plan.ScheduledBooking, 0, classCount)

	for _, sess := range candidates {
		result, err := s.bookings.Create(ctx, booking.CreateParams{
			SessionID:      sess.ID,
			ClientID:       clientID,
			PlanPurchaseID: &purchaseID,
			CreditMode:     booking.CreditUsageOnly,
			TicketBuffer:   s.ticketBuffer,
			Actor:          "system:scheduler",
			Metadata:       fmt.Sprintf(`{"fixed_plan_purchase_id": %d}`, planPurchaseID),
		})
		if err != nil {
			// Another client may have taken the seat between the sweep
			// and this step; undo everything committed so far.
			s.compensate(ctx, created)
			return nil, fmt.Errorf("fixed plan scheduling failed at session %d: %w", sess.ID, err)
		}

		created = append(created, result)
		scheduled = append(scheduled, plan.ScheduledBooking{
			BookingID:   result.Booking.ID,
			SessionID:   sess.ID,
			StartTime:   sess.StartTime,
			TicketToken: result.Ticket.Token,
		})
	}

	return scheduled, nil
}

// compensate deletes committed steps in reverse order: ticket, usage
// rows, events and the booking row of each step go together.
func (s *Scheduler) compensate(ctx context.Context, created []*booking.Result) {
	for i := len(created) - 1; i >= 0; i-- {
		id := created[i].Booking.ID
		if err := s.bookings.DeleteCreated(ctx, id); err != nil {
			logger.Error("saga compensation failed; manual cleanup required",
				"booking_id", id, "error", err)
		}
	}
}
