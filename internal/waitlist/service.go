package waitlist

import (
	"context"
	"errors"

	"studioslot/internal/auth"
	"studioslot/internal/booking"
	"studioslot/internal/logger"
	"studioslot/internal/metrics"
	"studioslot/internal/plan"
	"studioslot/internal/session"
)

// Booker creates the seat booking for a promoted client. Implemented
// by the booking service.
type Booker interface {
	ReserveForPromotion(ctx context.Context, sessionID, clientID int64) (*booking.Result, error)
}

type SessionReader interface {
	GetSessionByID(ctx context.Context, id int64) (*session.Session, error)
	Occupancy(ctx context.Context, sessionID int64) (int, error)
}

type Service interface {
	Join(ctx context.Context, sessionID, clientID int64) (*Entry, int, error)
	Leave(ctx context.Context, req LeaveRequest, actor auth.Actor) (bool, int, error)
	PromoteNext(ctx context.Context, sessionID int64) error
	GetClientEntry(ctx context.Context, sessionID, clientID int64) (*Entry, error)
	ListPending(ctx context.Context, sessionID int64) ([]Entry, error)
}

type service struct {
	repo     Repository
	sessions SessionReader
	booker   Booker
}

func NewService(repo Repository, sessions SessionReader, booker Booker) Service {
	return &service{
		repo:     repo,
		sessions: sessions,
		booker:   booker,
	}
}

func (s *service) Join(ctx context.Context, sessionID, clientID int64) (*Entry, int, error) {
	if _, err := s.sessions.GetSessionByID(ctx, sessionID); err != nil {
		return nil, 0, err
	}

	entry, count, err := s.repo.Join(ctx, sessionID, clientID)
	if err != nil {
		return nil, 0, err
	}

	metrics.RecordWaitlistJoin()
	return entry, count, nil
}

// Leave removes the caller's entry. Clients may only act on their own
// entries; staff may remove anyone's.
func (s *service) Leave(ctx context.Context, req LeaveRequest, actor auth.Actor) (bool, int, error) {
	if req.WaitlistID != nil {
		entry, err := s.repo.GetEntryByID(ctx, *req.WaitlistID)
		if err != nil {
			return false, 0, err
		}
		if actor.Role == auth.RoleClient && entry.ClientID != actor.ID {
			return false, 0, ErrNotOwner
		}
		return s.repo.LeaveByID(ctx, *req.WaitlistID)
	}
	if req.SessionID != nil && req.ClientID != nil {
		if actor.Role == auth.RoleClient && *req.ClientID != actor.ID {
			return false, 0, ErrNotOwner
		}
		return s.repo.Leave(ctx, *req.SessionID, *req.ClientID)
	}
	return false, 0, ErrEntryNotFound
}

// PromoteNext offers a freed seat down the queue. Each promoted entry
// is auto-booked immediately; if the booking fails (the client raced
// into the session on their own, or the seat was retaken) the entry is
// retired and the next pending entry is offered, until a booking sticks
// or the queue is empty.
func (s *service) PromoteNext(ctx context.Context, sessionID int64) error {
	for {
		sess, err := s.sessions.GetSessionByID(ctx, sessionID)
		if err != nil {
			return err
		}

		occupancy, err := s.sessions.Occupancy(ctx, sessionID)
		if err != nil {
			return err
		}
		if occupancy >= sess.Capacity {
			return nil
		}

		entry, err := s.repo.PromoteLowest(ctx, sessionID)
		if err != nil {
			if errors.Is(err, ErrNoEntries) {
				return nil
			}
			return err
		}

		result, err := s.booker.ReserveForPromotion(ctx, sessionID, entry.ClientID)
		if err != nil {
			// Only failures that are final for this client retire the
			// entry. A transient failure puts the entry back so the
			// next promotion attempt can retry it.
			if !isUnbookable(err) {
				metrics.RecordWaitlistPromotion("requeued")
				if requeueErr := s.repo.RequeueEntry(ctx, entry.ID); requeueErr != nil {
					logger.Error("failed to requeue waitlist entry after transient promotion failure",
						"entry_id", entry.ID, "session_id", sessionID, "error", requeueErr)
				}
				return err
			}

			logger.Info("waitlist promotion could not be booked, trying next entry",
				"session_id", sessionID, "client_id", entry.ClientID, "error", err)
			metrics.RecordWaitlistPromotion("failed")

			if cancelErr := s.repo.CancelEntry(ctx, entry.ID); cancelErr != nil {
				return cancelErr
			}
			continue
		}

		// The client already held a seat, so the freed one is still
		// open; retire the entry and keep offering.
		if result.Duplicated {
			metrics.RecordWaitlistPromotion("failed")
			if cancelErr := s.repo.CancelEntry(ctx, entry.ID); cancelErr != nil {
				return cancelErr
			}
			continue
		}

		metrics.RecordWaitlistPromotion("booked")
		return nil
	}
}

// isUnbookable reports whether the booking attempt failed for a reason
// that will not resolve on retry for this client. Plan failures count:
// a promoted client with no usable credits must not block the queue.
func isUnbookable(err error) bool {
	return errors.Is(err, booking.ErrCapacityExceeded) ||
		errors.Is(err, booking.ErrDuplicateBooking) ||
		errors.Is(err, booking.ErrSessionStarted) ||
		errors.Is(err, plan.ErrNoActivePlan) ||
		errors.Is(err, plan.ErrPlanExhausted) ||
		errors.Is(err, plan.ErrPlanExpired)
}

func (s *service) GetClientEntry(ctx context.Context, sessionID, clientID int64) (*Entry, error) {
	return s.repo.GetPendingEntry(ctx, sessionID, clientID)
}

func (s *service) ListPending(ctx context.Context, sessionID int64) ([]Entry, error) {
	return s.repo.ListPending(ctx, sessionID)
}
