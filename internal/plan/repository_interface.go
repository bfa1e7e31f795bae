package plan

import (
	"context"
	"time"
)

type Repository interface {
	CreatePlanType(ctx context.Context, req CreatePlanTypeRequest) (*PlanType, error)
	GetPlanTypeByID(ctx context.Context, id int64) (*PlanType, error)
	GetAllPlanTypes(ctx context.Context) ([]PlanType, error)

	CreatePurchase(ctx context.Context, clientID int64, planType *PlanType, startDate time.Time) (*PlanPurchase, error)
	GetPurchaseByID(ctx context.Context, id int64) (*PlanPurchase, error)
	ListActiveByClient(ctx context.Context, clientID int64) ([]PlanPurchase, error)
	FindBestActive(ctx context.Context, clientID int64, at time.Time) (*PlanPurchase, error)
	DeletePurchase(ctx context.Context, id int64) error

	ListUsagesByPurchase(ctx context.Context, purchaseID int64) ([]PlanUsage, error)
}
