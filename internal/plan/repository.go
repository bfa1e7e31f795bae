package plan

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrPlanTypeNotFound = errors.New("plan type not found")
	ErrPlanNotFound     = errors.New("plan purchase not found")
	ErrPlanExhausted    = errors.New("plan has no remaining classes")
	ErrPlanExpired      = errors.New("plan has expired")
	ErrFixedPlanDebit   = errors.New("fixed plans cannot be debited for ad-hoc bookings")
	ErrNoActivePlan     = errors.New("no active plan for client")
)

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreatePlanType(ctx context.Context, req CreatePlanTypeRequest) (*PlanType, error) {
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}

	query := `
		INSERT INTO plan_types (name, modality, class_count, validity_days, price_cents, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, name, modality, class_count, validity_days, price_cents, currency, created_at
	`

	var pt PlanType
	err := r.db.GetContext(ctx, &pt, query,
		req.Name, req.Modality, req.ClassCount, req.ValidityDays, req.PriceCents, currency)
	if err != nil {
		return nil, err
	}

	return &pt, nil
}

func (r *repository) GetPlanTypeByID(ctx context.Context, id int64) (*PlanType, error) {
	query := `
		SELECT id, name, modality, class_count, validity_days, price_cents, currency, created_at
		FROM plan_types
		WHERE id = $1
	`

	var pt PlanType
	err := r.db.GetContext(ctx, &pt, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanTypeNotFound
		}
		return nil, err
	}

	return &pt, nil
}

func (r *repository) GetAllPlanTypes(ctx context.Context) ([]PlanType, error) {
	query := `
		SELECT id, name, modality, class_count, validity_days, price_cents, currency, created_at
		FROM plan_types
		ORDER BY created_at DESC
	`

	var types []PlanType
	err := r.db.SelectContext(ctx, &types, query)
	if err != nil {
		return nil, err
	}

	return types, nil
}

func (r *repository) CreatePurchase(ctx context.Context, clientID int64, planType *PlanType, startDate time.Time) (*PlanPurchase, error) {
	// Fixed plans pre-consume every credit through the scheduler, so
	// they start with zero remaining classes. Unlimited flexible plans
	// track no counter at all.
	remaining := 0
	if planType.Modality == ModalityFlexible && planType.ClassCount != nil {
		remaining = *planType.ClassCount
	}

	var expiresAt *time.Time
	if planType.Modality == ModalityFlexible && planType.ValidityDays != nil {
		e := startDate.AddDate(0, 0, *planType.ValidityDays)
		expiresAt = &e
	}

	query := `
		INSERT INTO plan_purchases (client_id, plan_type_id, modality, initial_classes, remaining_classes, start_date, expires_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'active')
		RETURNING id, client_id, plan_type_id, modality, initial_classes, remaining_classes, start_date, expires_at, status, created_at, updated_at
	`

	var purchase PlanPurchase
	err := r.db.GetContext(ctx, &purchase, query,
		clientID, planType.ID, planType.Modality, planType.ClassCount, remaining, startDate, expiresAt)
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

func (r *repository) GetPurchaseByID(ctx context.Context, id int64) (*PlanPurchase, error) {
	query := `
		SELECT id, client_id, plan_type_id, modality, initial_classes, remaining_classes, start_date, expires_at, status, created_at, updated_at
		FROM plan_purchases
		WHERE id = $1
	`

	var purchase PlanPurchase
	err := r.db.GetContext(ctx, &purchase, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return &purchase, nil
}

func (r *repository) ListActiveByClient(ctx context.Context, clientID int64) ([]PlanPurchase, error) {
	query := `
		SELECT id, client_id, plan_type_id, modality, initial_classes, remaining_classes, start_date, expires_at, status, created_at, updated_at
		FROM plan_purchases
		WHERE client_id = $1 AND status = 'active'
		ORDER BY created_at DESC
	`

	var purchases []PlanPurchase
	err := r.db.SelectContext(ctx, &purchases, query, clientID)
	if err != nil {
		return nil, err
	}

	return purchases, nil
}

// FindBestActive picks the flexible plan an ad-hoc reservation should
// debit: soonest to expire first so credits are not stranded.
func (r *repository) FindBestActive(ctx context.Context, clientID int64, at time.Time) (*PlanPurchase, error) {
	query := `
		SELECT id, client_id, plan_type_id, modality, initial_classes, remaining_classes, start_date, expires_at, status, created_at, updated_at
		FROM plan_purchases
		WHERE client_id = $1
		  AND status = 'active'
		  AND modality = 'flexible'
		  AND start_date <= $2
		  AND (expires_at IS NULL OR expires_at >= $2)
		  AND (initial_classes IS NULL OR remaining_classes > 0)
		ORDER BY expires_at ASC NULLS LAST, created_at ASC
		LIMIT 1
	`

	var purchase PlanPurchase
	err := r.db.GetContext(ctx, &purchase, query, clientID, at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoActivePlan
		}
		return nil, err
	}

	return &purchase, nil
}

func (r *repository) DeletePurchase(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM plan_purchases WHERE id = $1`, id)
	return err
}

func (r *repository) ListUsagesByPurchase(ctx context.Context, purchaseID int64) ([]PlanUsage, error) {
	query := `
		SELECT id, plan_purchase_id, booking_id, session_id, credit_delta, created_at
		FROM plan_usages
		WHERE plan_purchase_id = $1
		ORDER BY created_at ASC, id ASC
	`

	var usages []PlanUsage
	err := r.db.SelectContext(ctx, &usages, query, purchaseID)
	if err != nil {
		return nil, err
	}

	return usages, nil
}

// lockPurchaseTx takes the row lock that serializes all credit math for
// one purchase.
func lockPurchaseTx(ctx context.Context, tx *sqlx.Tx, purchaseID int64) (*PlanPurchase, error) {
	query := `
		SELECT id, client_id, plan_type_id, modality, initial_classes, remaining_classes, start_date, expires_at, status, created_at, updated_at
		FROM plan_purchases
		WHERE id = $1
		FOR UPDATE
	`

	var purchase PlanPurchase
	err := tx.GetContext(ctx, &purchase, query, purchaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}

	return &purchase, nil
}

// DebitTx consumes one credit from a flexible purchase and records the
// usage row, all inside the caller's transaction.
func DebitTx(ctx context.Context, tx *sqlx.Tx, purchaseID, bookingID, sessionID int64, at time.Time) error {
	purchase, err := lockPurchaseTx(ctx, tx, purchaseID)
	if err != nil {
		return err
	}

	if purchase.Modality == ModalityFixed {
		return ErrFixedPlanDebit
	}
	if purchase.Status != StatusActive {
		return ErrPlanExpired
	}
	if purchase.ExpiresAt != nil && purchase.ExpiresAt.Before(at) {
		return ErrPlanExpired
	}

	if purchase.InitialClasses != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE plan_purchases
			SET remaining_classes = remaining_classes - 1, updated_at = NOW()
			WHERE id = $1 AND remaining_classes > 0
		`, purchaseID)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrPlanExhausted
		}
	}

	return RecordUsageTx(ctx, tx, purchaseID, bookingID, sessionID, -1)
}

// CreditTx restores one credit on cancellation. The counter is clamped
// at initial_classes; the usage row is written regardless so the audit
// trail keeps the full history.
func CreditTx(ctx context.Context, tx *sqlx.Tx, purchaseID, bookingID, sessionID int64) error {
	purchase, err := lockPurchaseTx(ctx, tx, purchaseID)
	if err != nil {
		return err
	}

	if purchase.Modality == ModalityFlexible && purchase.InitialClasses != nil {
		_, err := tx.ExecContext(ctx, `
			UPDATE plan_purchases
			SET remaining_classes = LEAST(remaining_classes + 1, initial_classes), updated_at = NOW()
			WHERE id = $1
		`, purchaseID)
		if err != nil {
			return err
		}
	}

	return RecordUsageTx(ctx, tx, purchaseID, bookingID, sessionID, 1)
}

// RecordUsageTx appends a usage audit row without touching the counter.
// The fixed-plan scheduler uses it directly because fixed credits are
// pre-consumed at purchase time.
func RecordUsageTx(ctx context.Context, tx *sqlx.Tx, purchaseID, bookingID, sessionID int64, creditDelta int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO plan_usages (plan_purchase_id, booking_id, session_id, credit_delta)
		VALUES ($1, $2, $3, $4)
	`, purchaseID, bookingID, sessionID, creditDelta)
	return err
}

// DeleteUsagesForBookingTx removes usage rows during saga compensation.
func DeleteUsagesForBookingTx(ctx context.Context, tx *sqlx.Tx, bookingID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM plan_usages WHERE booking_id = $1`, bookingID)
	return err
}
