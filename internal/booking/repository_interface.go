package booking

import (
	"context"
	"time"

	"studioslot/internal/event"
	"studioslot/internal/session"
	"studioslot/internal/ticket"
)

type Repository interface {
	Create(ctx context.Context, p CreateParams) (*Result, error)
	GetByID(ctx context.Context, id int64) (*Booking, error)
	ActiveForClientSession(ctx context.Context, sessionID, clientID int64) (*Booking, error)
	Cancel(ctx context.Context, bookingID int64, actor string, refundPlanID *int64) (*event.Event, error)
	Rebook(ctx context.Context, old *Booking, newSess *session.Session, ticketBuffer time.Duration, actor string) (*Booking, *ticket.Ticket, []*event.Event, error)
	Transition(ctx context.Context, bookingID int64, from, to Status, actor string, eventType event.EventType) (*event.Event, error)
	ListByClient(ctx context.Context, clientID int64) ([]Booking, error)
	ListBySession(ctx context.Context, sessionID int64) ([]BookingWithDetails, error)
	DeleteCreated(ctx context.Context, bookingID int64) error
}
