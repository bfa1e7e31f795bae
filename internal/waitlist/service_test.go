package waitlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"studioslot/internal/auth"
	"studioslot/internal/booking"
	"studioslot/internal/plan"
	"studioslot/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWaitlistRepo struct{ mock.Mock }
type MockSessionReader struct{ mock.Mock }
type MockBooker struct{ mock.Mock }

func (m *MockWaitlistRepo) Join(ctx context.Context, sessionID, clientID int64) (*Entry, int, error) {
	args := m.Called(ctx, sessionID, clientID)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).(*Entry), args.Int(1), args.Error(2)
}

func (m *MockWaitlistRepo) LeaveByID(ctx context.Context, entryID int64) (bool, int, error) {
	args := m.Called(ctx, entryID)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *MockWaitlistRepo) Leave(ctx context.Context, sessionID, clientID int64) (bool, int, error) {
	args := m.Called(ctx, sessionID, clientID)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func (m *MockWaitlistRepo) PromoteLowest(ctx context.Context, sessionID int64) (*Entry, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockWaitlistRepo) CancelEntry(ctx context.Context, entryID int64) error {
	return m.Called(ctx, entryID).Error(0)
}

func (m *MockWaitlistRepo) GetPendingEntry(ctx context.Context, sessionID, clientID int64) (*Entry, error) {
	args := m.Called(ctx, sessionID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockWaitlistRepo) GetEntryByID(ctx context.Context, entryID int64) (*Entry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Entry), args.Error(1)
}

func (m *MockWaitlistRepo) RequeueEntry(ctx context.Context, entryID int64) error {
	return m.Called(ctx, entryID).Error(0)
}

func (m *MockWaitlistRepo) ListPending(ctx context.Context, sessionID int64) ([]Entry, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Entry), args.Error(1)
}

func (m *MockSessionReader) GetSessionByID(ctx context.Context, id int64) (*session.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*session.Session), args.Error(1)
}

func (m *MockSessionReader) Occupancy(ctx context.Context, sessionID int64) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *MockBooker) ReserveForPromotion(ctx context.Context, sessionID, clientID int64) (*booking.Result, error) {
	args := m.Called(ctx, sessionID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Result), args.Error(1)
}

func fullSession() *session.Session {
	return &session.Session{
		ID:        5,
		StartTime: time.Now().Add(24 * time.Hour),
		Capacity:  10,
	}
}

func TestService_Join(t *testing.T) {
	repo := new(MockWaitlistRepo)
	sessions := new(MockSessionReader)

	sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
	repo.On("Join", mock.Anything, int64(5), int64(7)).Return(&Entry{ID: 1, SessionID: 5, ClientID: 7, Position: 3, Status: StatusPending}, 3, nil)

	svc := NewService(repo, sessions, new(MockBooker))

	entry, count, err := svc.Join(context.Background(), 5, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Position)
	assert.Equal(t, 3, count)
}

func TestService_Join_SessionNotFound(t *testing.T) {
	repo := new(MockWaitlistRepo)
	sessions := new(MockSessionReader)

	sessions.On("GetSessionByID", mock.Anything, int64(99)).Return(nil, session.ErrSessionNotFound)

	svc := NewService(repo, sessions, new(MockBooker))

	_, _, err := svc.Join(context.Background(), 99, 7)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	repo.AssertNotCalled(t, "Join")
}

func TestService_PromoteNext(t *testing.T) {
	t.Run("books the lowest pending entry", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		sessions := new(MockSessionReader)
		booker := new(MockBooker)

		sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
		sessions.On("Occupancy", mock.Anything, int64(5)).Return(9, nil)
		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(&Entry{ID: 1, SessionID: 5, ClientID: 7, Position: 1}, nil)
		booker.On("ReserveForPromotion", mock.Anything, int64(5), int64(7)).Return(&booking.Result{Booking: &booking.Booking{ID: 20}}, nil)

		svc := NewService(repo, sessions, booker)

		require.NoError(t, svc.PromoteNext(context.Background(), 5))
		booker.AssertExpectations(t)
	})

	t.Run("stops when the session is still full", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		sessions := new(MockSessionReader)

		sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
		sessions.On("Occupancy", mock.Anything, int64(5)).Return(10, nil)

		svc := NewService(repo, sessions, new(MockBooker))

		require.NoError(t, svc.PromoteNext(context.Background(), 5))
		repo.AssertNotCalled(t, "PromoteLowest")
	})

	t.Run("empty queue is not an error", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		sessions := new(MockSessionReader)

		sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
		sessions.On("Occupancy", mock.Anything, int64(5)).Return(4, nil)
		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(nil, ErrNoEntries)

		svc := NewService(repo, sessions, new(MockBooker))

		require.NoError(t, svc.PromoteNext(context.Background(), 5))
	})

	t.Run("unbookable client is retired and the next is tried", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		sessions := new(MockSessionReader)
		booker := new(MockBooker)

		sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
		sessions.On("Occupancy", mock.Anything, int64(5)).Return(9, nil)

		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(&Entry{ID: 1, SessionID: 5, ClientID: 7, Position: 1}, nil).Once()
		booker.On("ReserveForPromotion", mock.Anything, int64(5), int64(7)).Return(nil, booking.ErrDuplicateBooking)
		repo.On("CancelEntry", mock.Anything, int64(1)).Return(nil)

		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(&Entry{ID: 2, SessionID: 5, ClientID: 8, Position: 1}, nil).Once()
		booker.On("ReserveForPromotion", mock.Anything, int64(5), int64(8)).Return(&booking.Result{Booking: &booking.Booking{ID: 21}}, nil)

		svc := NewService(repo, sessions, booker)

		require.NoError(t, svc.PromoteNext(context.Background(), 5))
		repo.AssertExpectations(t)
		booker.AssertExpectations(t)
	})

	t.Run("client with no usable plan is retired, not requeued", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		sessions := new(MockSessionReader)
		booker := new(MockBooker)

		sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
		sessions.On("Occupancy", mock.Anything, int64(5)).Return(9, nil)

		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(&Entry{ID: 3, SessionID: 5, ClientID: 9, Position: 1}, nil).Once()
		booker.On("ReserveForPromotion", mock.Anything, int64(5), int64(9)).Return(nil, plan.ErrNoActivePlan)
		repo.On("CancelEntry", mock.Anything, int64(3)).Return(nil)

		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(nil, ErrNoEntries).Once()

		svc := NewService(repo, sessions, booker)

		require.NoError(t, svc.PromoteNext(context.Background(), 5))
		repo.AssertNotCalled(t, "RequeueEntry", mock.Anything, mock.Anything)
		repo.AssertExpectations(t)
	})

	t.Run("transient failure requeues the entry instead of retiring it", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		sessions := new(MockSessionReader)
		booker := new(MockBooker)

		sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
		sessions.On("Occupancy", mock.Anything, int64(5)).Return(9, nil)

		infraErr := errors.New("connection reset by peer")
		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(&Entry{ID: 1, SessionID: 5, ClientID: 7, Position: 1}, nil)
		booker.On("ReserveForPromotion", mock.Anything, int64(5), int64(7)).Return(nil, infraErr)
		repo.On("RequeueEntry", mock.Anything, int64(1)).Return(nil)

		svc := NewService(repo, sessions, booker)

		err := svc.PromoteNext(context.Background(), 5)
		assert.ErrorIs(t, err, infraErr)
		repo.AssertCalled(t, "RequeueEntry", mock.Anything, int64(1))
		repo.AssertNotCalled(t, "CancelEntry")
	})

	t.Run("duplicated booking retires the entry and keeps offering", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		sessions := new(MockSessionReader)
		booker := new(MockBooker)

		sessions.On("GetSessionByID", mock.Anything, int64(5)).Return(fullSession(), nil)
		sessions.On("Occupancy", mock.Anything, int64(5)).Return(9, nil)

		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(&Entry{ID: 1, SessionID: 5, ClientID: 7, Position: 1}, nil).Once()
		booker.On("ReserveForPromotion", mock.Anything, int64(5), int64(7)).
			Return(&booking.Result{Booking: &booking.Booking{ID: 20}, Duplicated: true}, nil)
		repo.On("CancelEntry", mock.Anything, int64(1)).Return(nil)

		repo.On("PromoteLowest", mock.Anything, int64(5)).Return(nil, ErrNoEntries).Once()

		svc := NewService(repo, sessions, booker)

		require.NoError(t, svc.PromoteNext(context.Background(), 5))
		repo.AssertExpectations(t)
	})
}

func TestService_Leave(t *testing.T) {
	entryID := int64(4)
	sessionID := int64(5)
	clientID := int64(7)
	owner := auth.Actor{ID: 7, Role: auth.RoleClient}

	t.Run("by entry id", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		repo.On("GetEntryByID", mock.Anything, int64(4)).Return(&Entry{ID: 4, SessionID: 5, ClientID: 7, Status: StatusPending}, nil)
		repo.On("LeaveByID", mock.Anything, int64(4)).Return(true, 2, nil)

		svc := NewService(repo, new(MockSessionReader), new(MockBooker))

		removed, count, err := svc.Leave(context.Background(), LeaveRequest{WaitlistID: &entryID}, owner)
		require.NoError(t, err)
		assert.True(t, removed)
		assert.Equal(t, 2, count)
	})

	t.Run("client cannot remove another client's entry", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		repo.On("GetEntryByID", mock.Anything, int64(4)).Return(&Entry{ID: 4, SessionID: 5, ClientID: 99, Status: StatusPending}, nil)

		svc := NewService(repo, new(MockSessionReader), new(MockBooker))

		_, _, err := svc.Leave(context.Background(), LeaveRequest{WaitlistID: &entryID}, owner)
		assert.ErrorIs(t, err, ErrNotOwner)
		repo.AssertNotCalled(t, "LeaveByID")
	})

	t.Run("client cannot remove by another client's session pair", func(t *testing.T) {
		otherClient := int64(99)
		repo := new(MockWaitlistRepo)

		svc := NewService(repo, new(MockSessionReader), new(MockBooker))

		_, _, err := svc.Leave(context.Background(), LeaveRequest{SessionID: &sessionID, ClientID: &otherClient}, owner)
		assert.ErrorIs(t, err, ErrNotOwner)
		repo.AssertNotCalled(t, "Leave")
	})

	t.Run("staff may remove any entry", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		repo.On("GetEntryByID", mock.Anything, int64(4)).Return(&Entry{ID: 4, SessionID: 5, ClientID: 7, Status: StatusPending}, nil)
		repo.On("LeaveByID", mock.Anything, int64(4)).Return(true, 1, nil)

		svc := NewService(repo, new(MockSessionReader), new(MockBooker))

		removed, _, err := svc.Leave(context.Background(), LeaveRequest{WaitlistID: &entryID}, auth.Actor{ID: 2, Role: auth.RoleStaff})
		require.NoError(t, err)
		assert.True(t, removed)
	})

	t.Run("leaving twice reports removed false", func(t *testing.T) {
		repo := new(MockWaitlistRepo)
		repo.On("Leave", mock.Anything, int64(5), int64(7)).Return(false, 2, nil)

		svc := NewService(repo, new(MockSessionReader), new(MockBooker))

		removed, _, err := svc.Leave(context.Background(), LeaveRequest{SessionID: &sessionID, ClientID: &clientID}, owner)
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("no identifiers", func(t *testing.T) {
		svc := NewService(new(MockWaitlistRepo), new(MockSessionReader), new(MockBooker))

		_, _, err := svc.Leave(context.Background(), LeaveRequest{}, owner)
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})
}
