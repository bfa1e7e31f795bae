package plan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPlanRepo struct{ mock.Mock }
type MockScheduler struct{ mock.Mock }

func (m *MockPlanRepo) CreatePlanType(ctx context.Context, req CreatePlanTypeRequest) (*PlanType, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PlanType), args.Error(1)
}

func (m *MockPlanRepo) GetPlanTypeByID(ctx context.Context, id int64) (*PlanType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PlanType), args.Error(1)
}

func (m *MockPlanRepo) GetAllPlanTypes(ctx context.Context) ([]PlanType, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PlanType), args.Error(1)
}

func (m *MockPlanRepo) CreatePurchase(ctx context.Context, clientID int64, planType *PlanType, startDate time.Time) (*PlanPurchase, error) {
	args := m.Called(ctx, clientID, planType, startDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PlanPurchase), args.Error(1)
}

func (m *MockPlanRepo) GetPurchaseByID(ctx context.Context, id int64) (*PlanPurchase, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PlanPurchase), args.Error(1)
}

func (m *MockPlanRepo) ListActiveByClient(ctx context.Context, clientID int64) ([]PlanPurchase, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PlanPurchase), args.Error(1)
}

func (m *MockPlanRepo) FindBestActive(ctx context.Context, clientID int64, at time.Time) (*PlanPurchase, error) {
	args := m.Called(ctx, clientID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PlanPurchase), args.Error(1)
}

func (m *MockPlanRepo) DeletePurchase(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPlanRepo) ListUsagesByPurchase(ctx context.Context, purchaseID int64) ([]PlanUsage, error) {
	args := m.Called(ctx, purchaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]PlanUsage), args.Error(1)
}

func (m *MockScheduler) GenerateFixedPlanBookings(ctx context.Context, planPurchaseID, clientID int64, classCount int, courseID int64, fromDate time.Time) ([]ScheduledBooking, error) {
	args := m.Called(ctx, planPurchaseID, clientID, classCount, courseID, fromDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ScheduledBooking), args.Error(1)
}

func TestService_PurchaseFixed(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	classCount := 8
	fixedType := &PlanType{ID: 2, Modality: ModalityFixed, ClassCount: &classCount}

	t.Run("schedules the whole plan", func(t *testing.T) {
		repo := new(MockPlanRepo)
		scheduler := new(MockScheduler)

		repo.On("GetPlanTypeByID", mock.Anything, int64(2)).Return(fixedType, nil)
		repo.On("CreatePurchase", mock.Anything, int64(7), fixedType, start).Return(&PlanPurchase{ID: 30, ClientID: 7, Modality: ModalityFixed}, nil)
		scheduler.On("GenerateFixedPlanBookings", mock.Anything, int64(30), int64(7), 8, int64(4), start).Return([]ScheduledBooking{
			{BookingID: 100, SessionID: 1}, {BookingID: 101, SessionID: 2},
		}, nil)

		svc := NewService(repo)
		svc.SetScheduler(scheduler)

		resp, err := svc.PurchaseFixed(context.Background(), 7, 2, 4, start)
		require.NoError(t, err)
		assert.EqualValues(t, 30, resp.PlanPurchaseID)
		assert.Len(t, resp.Bookings, 2)
	})

	t.Run("scheduling failure deletes the purchase", func(t *testing.T) {
		repo := new(MockPlanRepo)
		scheduler := new(MockScheduler)

		schedErr := errors.New("not enough future sessions for the fixed plan")
		repo.On("GetPlanTypeByID", mock.Anything, int64(2)).Return(fixedType, nil)
		repo.On("CreatePurchase", mock.Anything, int64(7), fixedType, start).Return(&PlanPurchase{ID: 31, ClientID: 7, Modality: ModalityFixed}, nil)
		scheduler.On("GenerateFixedPlanBookings", mock.Anything, int64(31), int64(7), 8, int64(4), start).Return(nil, schedErr)
		repo.On("DeletePurchase", mock.Anything, int64(31)).Return(nil)

		svc := NewService(repo)
		svc.SetScheduler(scheduler)

		_, err := svc.PurchaseFixed(context.Background(), 7, 2, 4, start)
		assert.ErrorIs(t, err, schedErr)
		repo.AssertCalled(t, "DeletePurchase", mock.Anything, int64(31))
	})

	t.Run("flexible plan type is rejected", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("GetPlanTypeByID", mock.Anything, int64(1)).Return(&PlanType{ID: 1, Modality: ModalityFlexible}, nil)

		svc := NewService(repo)

		_, err := svc.PurchaseFixed(context.Background(), 7, 1, 4, start)
		assert.ErrorIs(t, err, ErrNotFixedPlan)
	})
}

func TestService_ResolveActivePlan(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	preferred := int64(3)
	initial := 10

	tests := []struct {
		name     string
		purchase *PlanPurchase
		wantErr  error
	}{
		{
			name:     "usable preferred plan",
			purchase: &PlanPurchase{ID: 3, ClientID: 7, Modality: ModalityFlexible, Status: StatusActive, InitialClasses: &initial, RemainingClasses: 4},
		},
		{
			name:     "preferred plan belongs to another client",
			purchase: &PlanPurchase{ID: 3, ClientID: 8, Modality: ModalityFlexible, Status: StatusActive},
			wantErr:  ErrPlanNotFound,
		},
		{
			name:     "fixed plans cannot back ad-hoc reservations",
			purchase: &PlanPurchase{ID: 3, ClientID: 7, Modality: ModalityFixed, Status: StatusActive},
			wantErr:  ErrFixedPlanDebit,
		},
		{
			name:     "exhausted preferred plan",
			purchase: &PlanPurchase{ID: 3, ClientID: 7, Modality: ModalityFlexible, Status: StatusActive, InitialClasses: &initial, RemainingClasses: 0},
			wantErr:  ErrPlanExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockPlanRepo)
			repo.On("GetPurchaseByID", mock.Anything, int64(3)).Return(tt.purchase, nil)

			svc := NewService(repo)

			p, err := svc.ResolveActivePlan(context.Background(), 7, &preferred, at)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.EqualValues(t, 3, p.ID)
		})
	}

	t.Run("no preference falls back to best active", func(t *testing.T) {
		repo := new(MockPlanRepo)
		repo.On("FindBestActive", mock.Anything, int64(7), at).Return(&PlanPurchase{ID: 5, ClientID: 7, Modality: ModalityFlexible, Status: StatusActive}, nil)

		svc := NewService(repo)

		p, err := svc.ResolveActivePlan(context.Background(), 7, nil, at)
		require.NoError(t, err)
		assert.EqualValues(t, 5, p.ID)
	})
}

func TestPlanPurchase_Usable(t *testing.T) {
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	before := at.AddDate(0, 0, -1)
	after := at.AddDate(0, 0, 30)
	initial := 10

	unlimited := PlanPurchase{Modality: ModalityFlexible, Status: StatusActive, StartDate: before}
	assert.True(t, unlimited.Usable(at))

	expired := PlanPurchase{Modality: ModalityFlexible, Status: StatusActive, StartDate: before, ExpiresAt: &before, InitialClasses: &initial, RemainingClasses: 4}
	assert.False(t, expired.Usable(at))

	healthy := PlanPurchase{Modality: ModalityFlexible, Status: StatusActive, StartDate: before, ExpiresAt: &after, InitialClasses: &initial, RemainingClasses: 1}
	assert.True(t, healthy.Usable(at))

	drained := PlanPurchase{Modality: ModalityFlexible, Status: StatusActive, StartDate: before, ExpiresAt: &after, InitialClasses: &initial, RemainingClasses: 0}
	assert.False(t, drained.Usable(at))
}
