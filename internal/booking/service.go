package booking

import (
	"context"
	"errors"
	"time"

	"studioslot/internal/auth"
	"studioslot/internal/event"
	"studioslot/internal/logger"
	"studioslot/internal/metrics"
	"studioslot/internal/plan"
	"studioslot/internal/session"
	"studioslot/internal/ticket"
)

var (
	ErrSessionStarted = errors.New("session has already started or starts too soon")
	ErrNotOwner       = errors.New("booking belongs to another client")
	ErrSameSession    = errors.New("cannot rebook onto the same session")
)

// PlanLedger is the slice of the plan service the lifecycle needs.
type PlanLedger interface {
	ResolveActivePlan(ctx context.Context, clientID int64, preferredPlanID *int64, at time.Time) (*plan.PlanPurchase, error)
	GetPurchase(ctx context.Context, id int64) (*plan.PlanPurchase, error)
}

// SessionReader resolves sessions for validation; occupancy itself is
// re-checked inside the repository's transaction.
type SessionReader interface {
	GetSessionByID(ctx context.Context, id int64) (*session.Session, error)
}

type TicketVerifier interface {
	Verify(ctx context.Context, token string) (*ticket.Ticket, error)
}

// Promoter is triggered whenever a cancellation or rebook frees a seat.
// Implemented by the waitlist service; wired after construction because
// promotion books through this same service.
type Promoter interface {
	PromoteNext(ctx context.Context, sessionID int64) error
}

type EventPublisher interface {
	PublishAll(ctx context.Context, events []*event.Event)
}

type Service interface {
	Reserve(ctx context.Context, req ReserveRequest, actor auth.Actor) (*Result, error)
	ReserveForPromotion(ctx context.Context, sessionID, clientID int64) (*Result, error)
	Cancel(ctx context.Context, bookingID int64, actor auth.Actor) error
	Rebook(ctx context.Context, bookingID, newSessionID int64, actor auth.Actor) (*Result, error)
	CheckIn(ctx context.Context, token string, actor auth.Actor) (*Booking, error)
	CheckOut(ctx context.Context, bookingID int64, actor auth.Actor) (*Booking, error)
	GetByID(ctx context.Context, id int64) (*Booking, error)
	ListByClient(ctx context.Context, clientID int64) ([]Booking, error)
	ListBySession(ctx context.Context, sessionID int64) ([]BookingWithDetails, error)
}

// Svc is the concrete lifecycle manager; exported so the server can
// attach the promoter and publisher after wiring the waitlist service.
type Svc struct {
	repo         Repository
	sessions     SessionReader
	plans        PlanLedger
	verifier     TicketVerifier
	promoter     Promoter
	publisher    EventPublisher
	ticketBuffer time.Duration
	leadTime     time.Duration
	now          func() time.Time
}

var _ Service = (*Svc)(nil)

func NewService(repo Repository, sessions SessionReader, plans PlanLedger, verifier TicketVerifier, ticketBuffer, leadTime time.Duration) *Svc {
	return &Svc{
		repo:         repo,
		sessions:     sessions,
		plans:        plans,
		verifier:     verifier,
		ticketBuffer: ticketBuffer,
		leadTime:     leadTime,
		now:          time.Now,
	}
}

func (s *Svc) SetPromoter(p Promoter) {
	s.promoter = p
}

func (s *Svc) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// Reserve books a seat for the client, debiting their plan. A client
// who already holds an active booking for the session gets it back
// unchanged with Duplicated set, not an error.
func (s *Svc) Reserve(ctx context.Context, req ReserveRequest, actor auth.Actor) (*Result, error) {
	now := s.now()

	sess, err := s.sessions.GetSessionByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	if sess.StartTime.Before(now.Add(s.leadTime)) {
		return nil, ErrSessionStarted
	}

	if existing, err := s.repo.ActiveForClientSession(ctx, req.SessionID, req.ClientID); err == nil {
		return &Result{Booking: existing, Duplicated: true}, nil
	} else if !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}

	purchase, err := s.plans.ResolveActivePlan(ctx, req.ClientID, req.PreferredPlanID, now)
	if err != nil {
		return nil, err
	}

	result, err := s.repo.Create(ctx, CreateParams{
		SessionID:      req.SessionID,
		ClientID:       req.ClientID,
		PlanPurchaseID: &purchase.ID,
		CreditMode:     CreditDebit,
		TicketBuffer:   s.ticketBuffer,
		Actor:          actor.String(),
	})
	if err != nil {
		// A racing duplicate insert hit the partial unique index;
		// surface the existing booking as an idempotent outcome.
		if errors.Is(err, ErrDuplicateBooking) {
			if existing, lookupErr := s.repo.ActiveForClientSession(ctx, req.SessionID, req.ClientID); lookupErr == nil {
				return &Result{Booking: existing, Duplicated: true}, nil
			}
		}
		return nil, err
	}

	metrics.RecordBooking("reserve")
	s.publish(ctx, result.events)

	return result, nil
}

// ReserveForPromotion books a freed seat for the promoted waitlist
// client. A client without a usable plan still gets the seat; the
// booking just carries no plan reference.
func (s *Svc) ReserveForPromotion(ctx context.Context, sessionID, clientID int64) (*Result, error) {
	sess, err := s.sessions.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.StartTime.Before(s.now()) {
		return nil, ErrSessionStarted
	}

	params := CreateParams{
		SessionID:    sessionID,
		ClientID:     clientID,
		CreditMode:   CreditNone,
		TicketBuffer: s.ticketBuffer,
		Actor:        "system:waitlist",
		Metadata:     `{"promoted_from_waitlist": true}`,
	}

	if purchase, err := s.plans.ResolveActivePlan(ctx, clientID, nil, s.now()); err == nil {
		params.PlanPurchaseID = &purchase.ID
		params.CreditMode = CreditDebit
	} else if !errors.Is(err, plan.ErrNoActivePlan) {
		return nil, err
	}

	result, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	metrics.RecordBooking("promotion")
	s.publish(ctx, result.events)

	return result, nil
}

// Cancel releases the seat, refunds a flexible credit when one was
// consumed, and offers the freed seat to the waitlist.
func (s *Svc) Cancel(ctx context.Context, bookingID int64, actor auth.Actor) error {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if actor.Role == auth.RoleClient && actor.ID != b.ClientID {
		return ErrNotOwner
	}
	if !b.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}

	refundPlanID, err := s.refundablePlan(ctx, b)
	if err != nil {
		return err
	}

	ev, err := s.repo.Cancel(ctx, b.ID, actor.String(), refundPlanID)
	if err != nil {
		return err
	}

	metrics.RecordBookingCancellation()
	s.publish(ctx, []*event.Event{ev})
	s.promote(ctx, b.SessionID)

	return nil
}

// Rebook atomically moves a booking to another session. The old row is
// not released unless the new booking commits.
func (s *Svc) Rebook(ctx context.Context, bookingID, newSessionID int64, actor auth.Actor) (*Result, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if actor.Role == auth.RoleClient && actor.ID != b.ClientID {
		return nil, ErrNotOwner
	}
	if b.SessionID == newSessionID {
		return nil, ErrSameSession
	}
	if !b.Status.CanTransitionTo(StatusRebooked) {
		return nil, ErrInvalidTransition
	}

	newSess, err := s.sessions.GetSessionByID(ctx, newSessionID)
	if err != nil {
		return nil, err
	}
	if newSess.StartTime.Before(s.now().Add(s.leadTime)) {
		return nil, ErrSessionStarted
	}

	newBooking, tkt, events, err := s.repo.Rebook(ctx, b, newSess, s.ticketBuffer, actor.String())
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingRebook()
	s.publish(ctx, events)
	s.promote(ctx, b.SessionID)

	return &Result{Booking: newBooking, Ticket: tkt}, nil
}

// CheckIn verifies the access ticket and moves the booking to
// checked_in.
func (s *Svc) CheckIn(ctx context.Context, token string, actor auth.Actor) (*Booking, error) {
	tkt, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	ev, err := s.repo.Transition(ctx, tkt.BookingID, StatusConfirmed, StatusCheckedIn, actor.String(), event.TypeCheckedIn)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, []*event.Event{ev})

	return s.repo.GetByID(ctx, tkt.BookingID)
}

func (s *Svc) CheckOut(ctx context.Context, bookingID int64, actor auth.Actor) (*Booking, error) {
	ev, err := s.repo.Transition(ctx, bookingID, StatusCheckedIn, StatusCheckedOut, actor.String(), event.TypeCheckedOut)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, []*event.Event{ev})

	return s.repo.GetByID(ctx, bookingID)
}

func (s *Svc) GetByID(ctx context.Context, id int64) (*Booking, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Svc) ListByClient(ctx context.Context, clientID int64) ([]Booking, error) {
	return s.repo.ListByClient(ctx, clientID)
}

func (s *Svc) ListBySession(ctx context.Context, sessionID int64) ([]BookingWithDetails, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

// refundablePlan reports which plan, if any, should get a credit back
// when this booking is cancelled. Fixed-plan bookings never refund: the
// schedule is the entitlement.
func (s *Svc) refundablePlan(ctx context.Context, b *Booking) (*int64, error) {
	if b.PlanPurchaseID == nil {
		return nil, nil
	}

	purchase, err := s.plans.GetPurchase(ctx, *b.PlanPurchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.Modality != plan.ModalityFlexible {
		return nil, nil
	}

	return b.PlanPurchaseID, nil
}

func (s *Svc) publish(ctx context.Context, events []*event.Event) {
	if s.publisher != nil {
		s.publisher.PublishAll(ctx, events)
	}
}

func (s *Svc) promote(ctx context.Context, sessionID int64) {
	if s.promoter == nil {
		return
	}
	if err := s.promoter.PromoteNext(ctx, sessionID); err != nil {
		logger.Error("waitlist promotion failed", "session_id", sessionID, "error", err)
	}
}
