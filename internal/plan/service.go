package plan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studioslot/internal/logger"
	"studioslot/internal/metrics"
)

var (
	ErrNotFixedPlan    = errors.New("plan type is not a fixed plan")
	ErrNotFlexiblePlan = errors.New("plan type is not a flexible plan")
)

// FixedScheduler books the whole schedule of a fixed plan as one
// all-or-nothing unit. Implemented by the schedule package.
type FixedScheduler interface {
	GenerateFixedPlanBookings(ctx context.Context, planPurchaseID, clientID int64, classCount int, courseID int64, fromDate time.Time) ([]ScheduledBooking, error)
}

type Service interface {
	CreatePlanType(ctx context.Context, req CreatePlanTypeRequest) (*PlanType, error)
	GetAllPlanTypes(ctx context.Context) ([]PlanType, error)
	PurchaseFlexible(ctx context.Context, clientID, planTypeID int64) (*PlanPurchase, error)
	PurchaseFixed(ctx context.Context, clientID, planTypeID, courseID int64, startDate time.Time) (*FixedPurchaseResponse, error)
	ResolveActivePlan(ctx context.Context, clientID int64, preferredPlanID *int64, at time.Time) (*PlanPurchase, error)
	ListClientPlans(ctx context.Context, clientID int64) ([]PlanPurchase, error)
	ListUsages(ctx context.Context, purchaseID int64) ([]PlanUsage, error)
}

// Svc is the concrete service; exported so the server can wire the
// scheduler after construction (the scheduler itself needs the booking
// service, which is built later).
type Svc struct {
	repo      Repository
	scheduler FixedScheduler
}

var _ Service = (*Svc)(nil)

func NewService(repo Repository) *Svc {
	return &Svc{repo: repo}
}

func (s *Svc) SetScheduler(scheduler FixedScheduler) {
	s.scheduler = scheduler
}

func (s *Svc) CreatePlanType(ctx context.Context, req CreatePlanTypeRequest) (*PlanType, error) {
	if Modality(req.Modality) == ModalityFixed && req.ClassCount == nil {
		return nil, fmt.Errorf("fixed plan types require a class count")
	}
	return s.repo.CreatePlanType(ctx, req)
}

func (s *Svc) GetAllPlanTypes(ctx context.Context) ([]PlanType, error) {
	return s.repo.GetAllPlanTypes(ctx)
}

// PurchaseFlexible reacts to a confirmed payment fact by activating a
// flexible credit pool for the client.
func (s *Svc) PurchaseFlexible(ctx context.Context, clientID, planTypeID int64) (*PlanPurchase, error) {
	planType, err := s.repo.GetPlanTypeByID(ctx, planTypeID)
	if err != nil {
		return nil, err
	}

	if planType.Modality != ModalityFlexible {
		return nil, ErrNotFlexiblePlan
	}

	return s.repo.CreatePurchase(ctx, clientID, planType, time.Now())
}

// PurchaseFixed creates the purchase row, then hands off to the
// scheduler. If scheduling fails the purchase is deleted so the net
// visible effect is that nothing happened.
func (s *Svc) PurchaseFixed(ctx context.Context, clientID, planTypeID, courseID int64, startDate time.Time) (*FixedPurchaseResponse, error) {
	planType, err := s.repo.GetPlanTypeByID(ctx, planTypeID)
	if err != nil {
		return nil, err
	}

	if planType.Modality != ModalityFixed || planType.ClassCount == nil {
		return nil, ErrNotFixedPlan
	}

	purchase, err := s.repo.CreatePurchase(ctx, clientID, planType, startDate)
	if err != nil {
		return nil, err
	}

	bookings, err := s.scheduler.GenerateFixedPlanBookings(ctx, purchase.ID, clientID, *planType.ClassCount, courseID, startDate)
	if err != nil {
		if delErr := s.repo.DeletePurchase(ctx, purchase.ID); delErr != nil {
			logger.Error("failed to delete purchase after scheduling failure",
				"purchase_id", purchase.ID, "error", delErr)
		}
		metrics.RecordFixedPlanPurchase("rolled_back")
		return nil, err
	}

	metrics.RecordFixedPlanPurchase("success")

	return &FixedPurchaseResponse{
		PlanPurchaseID: purchase.ID,
		Bookings:       bookings,
	}, nil
}

// ResolveActivePlan picks the purchase an ad-hoc reservation debits. A
// preferred plan (staff acting on behalf of a client) is validated to
// belong to the client and to be usable; otherwise the best matching
// active flexible plan wins.
func (s *Svc) ResolveActivePlan(ctx context.Context, clientID int64, preferredPlanID *int64, at time.Time) (*PlanPurchase, error) {
	if preferredPlanID == nil {
		return s.repo.FindBestActive(ctx, clientID, at)
	}

	purchase, err := s.repo.GetPurchaseByID(ctx, *preferredPlanID)
	if err != nil {
		return nil, err
	}

	if purchase.ClientID != clientID {
		return nil, ErrPlanNotFound
	}
	if !purchase.Usable(at) {
		switch {
		case purchase.Modality == ModalityFixed:
			return nil, ErrFixedPlanDebit
		case purchase.Status != StatusActive || (purchase.ExpiresAt != nil && purchase.ExpiresAt.Before(at)):
			return nil, ErrPlanExpired
		default:
			return nil, ErrPlanExhausted
		}
	}

	return purchase, nil
}

func (s *Svc) GetPurchase(ctx context.Context, id int64) (*PlanPurchase, error) {
	return s.repo.GetPurchaseByID(ctx, id)
}

func (s *Svc) ListClientPlans(ctx context.Context, clientID int64) ([]PlanPurchase, error) {
	return s.repo.ListActiveByClient(ctx, clientID)
}

func (s *Svc) ListUsages(ctx context.Context, purchaseID int64) ([]PlanUsage, error) {
	return s.repo.ListUsagesByPurchase(ctx, purchaseID)
}
