package plan

import "time"

type Modality string
type PurchaseStatus string

const (
	ModalityFlexible Modality = "flexible"
	ModalityFixed    Modality = "fixed"

	StatusActive    PurchaseStatus = "active"
	StatusExpired   PurchaseStatus = "expired"
	StatusCancelled PurchaseStatus = "cancelled"
)

type PlanType struct {
	ID       int64    `db:"id" json:"id"`
	Name     string   `db:"name" json:"name"`
	Modality Modality `db:"modality" json:"modality"`
	// ClassCount is nil for unlimited flexible plans. Fixed plans always
	// carry a concrete count.
	ClassCount   *int      `db:"class_count" json:"class_count,omitempty"`
	ValidityDays *int      `db:"validity_days" json:"validity_days,omitempty"`
	PriceCents   int64     `db:"price_cents" json:"price_cents"`
	Currency     string    `db:"currency" json:"currency"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type PlanPurchase struct {
	ID         int64    `db:"id" json:"id"`
	ClientID   int64    `db:"client_id" json:"client_id"`
	PlanTypeID int64    `db:"plan_type_id" json:"plan_type_id"`
	Modality   Modality `db:"modality" json:"modality"`
	// InitialClasses is nil for unlimited flexible plans.
	InitialClasses   *int           `db:"initial_classes" json:"initial_classes,omitempty"`
	RemainingClasses int            `db:"remaining_classes" json:"remaining_classes"`
	StartDate        time.Time      `db:"start_date" json:"start_date"`
	ExpiresAt        *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	Status           PurchaseStatus `db:"status" json:"status"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Usable reports whether the purchase can cover one more ad-hoc booking
// at the given instant.
func (p *PlanPurchase) Usable(at time.Time) bool {
	if p.Status != StatusActive || p.Modality != ModalityFlexible {
		return false
	}
	if p.ExpiresAt != nil && p.ExpiresAt.Before(at) {
		return false
	}
	return p.InitialClasses == nil || p.RemainingClasses > 0
}

type PlanUsage struct {
	ID             int64     `db:"id" json:"id"`
	PlanPurchaseID int64     `db:"plan_purchase_id" json:"plan_purchase_id"`
	BookingID      int64     `db:"booking_id" json:"booking_id"`
	SessionID      int64     `db:"session_id" json:"session_id"`
	CreditDelta    int       `db:"credit_delta" json:"credit_delta"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ScheduledBooking is the scheduler's summary of one booking created for
// a fixed plan purchase.
type ScheduledBooking struct {
	BookingID   int64     `json:"booking_id"`
	SessionID   int64     `json:"session_id"`
	StartTime   time.Time `json:"start_time"`
	TicketToken string    `json:"ticket_token"`
}

type CreatePlanTypeRequest struct {
	Name         string `json:"name" binding:"required"`
	Modality     string `json:"modality" binding:"required,oneof=flexible fixed"`
	ClassCount   *int   `json:"class_count" binding:"omitempty,min=1"`
	ValidityDays *int   `json:"validity_days" binding:"omitempty,min=1"`
	PriceCents   int64  `json:"price_cents" binding:"required,min=0"`
	Currency     string `json:"currency"`
}

type PurchaseRequest struct {
	ClientID   int64 `json:"client_id" binding:"required"`
	PlanTypeID int64 `json:"plan_type_id" binding:"required"`
}

type FixedPurchaseRequest struct {
	ClientID   int64  `json:"client_id" binding:"required"`
	PlanTypeID int64  `json:"plan_type_id" binding:"required"`
	CourseID   int64  `json:"course_id" binding:"required"`
	StartDate  string `json:"start_date" binding:"required"`
}

type FixedPurchaseResponse struct {
	PlanPurchaseID int64              `json:"plan_purchase_id"`
	Bookings       []ScheduledBooking `json:"bookings"`
}
