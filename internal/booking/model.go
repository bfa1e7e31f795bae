package booking

import (
	"time"

	"studioslot/internal/event"
	"studioslot/internal/ticket"
)

type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
	StatusRebooked   Status = "rebooked"
)

// transitions is the booking state machine. Cancelled, checked_out and
// rebooked are terminal for the row; a rebook creates a new row.
var transitions = map[Status][]Status{
	StatusConfirmed: {StatusCancelled, StatusRebooked, StatusCheckedIn},
	StatusCheckedIn: {StatusCheckedOut},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Booking struct {
	ID             int64     `db:"id" json:"id"`
	SessionID      int64     `db:"session_id" json:"session_id"`
	ClientID       int64     `db:"client_id" json:"client_id"`
	Status         Status    `db:"status" json:"status"`
	ReservedAt     time.Time `db:"reserved_at" json:"reserved_at"`
	PlanPurchaseID *int64    `db:"plan_purchase_id" json:"plan_purchase_id,omitempty"`
}

type BookingWithDetails struct {
	Booking
	SessionStart time.Time `db:"session_start" json:"session_start"`
	SessionEnd   time.Time `db:"session_end" json:"session_end"`
	CourseName   *string   `db:"course_name" json:"course_name,omitempty"`
}

// CreditMode selects how a new booking touches the plan ledger.
type CreditMode int

const (
	// CreditNone records nothing; used for promotion bookings without a
	// usable plan.
	CreditNone CreditMode = iota
	// CreditDebit consumes one flexible credit.
	CreditDebit
	// CreditUsageOnly writes the -1 usage row without touching the
	// counter; fixed plans pre-consume their credits at purchase time.
	CreditUsageOnly
)

// CreateParams is the repository's unit of work for one new booking:
// capacity check, row insert, ledger entry, ticket and event commit or
// roll back together.
type CreateParams struct {
	SessionID      int64
	ClientID       int64
	PlanPurchaseID *int64
	CreditMode     CreditMode
	TicketBuffer   time.Duration
	Actor          string
	Metadata       string
}

// Result is what a reservation returns to the caller. Duplicated means
// an active booking already existed and was returned unchanged.
type Result struct {
	Booking    *Booking       `json:"booking"`
	Ticket     *ticket.Ticket `json:"ticket,omitempty"`
	Duplicated bool           `json:"duplicated"`

	events []*event.Event
}

type ReserveRequest struct {
	SessionID       int64  `json:"session_id" binding:"required"`
	ClientID        int64  `json:"client_id"`
	PreferredPlanID *int64 `json:"preferred_plan_id"`
}

type CancelRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
}

type RebookRequest struct {
	BookingID    int64 `json:"booking_id" binding:"required"`
	NewSessionID int64 `json:"new_session_id" binding:"required"`
}

type CheckInRequest struct {
	Token string `json:"token" binding:"required"`
}

type ReserveResponse struct {
	BookingID      int64  `json:"booking_id"`
	Status         Status `json:"status"`
	PlanPurchaseID *int64 `json:"plan_purchase_id,omitempty"`
	Duplicated     bool   `json:"duplicated"`
	TicketToken    string `json:"ticket_token,omitempty"`
}
