package ticket

import (
	"context"
	"time"
)

type Service interface {
	Verify(ctx context.Context, token string) (*Ticket, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

// Verify resolves a token to its booking. Expiry is passive: nothing
// sweeps stale tickets, they just stop verifying.
func (s *service) Verify(ctx context.Context, token string) (*Ticket, error) {
	t, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if t.ExpiresAt.Before(s.now()) {
		return nil, ErrTicketExpired
	}

	return t, nil
}
