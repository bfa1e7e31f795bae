package ticket

import "time"

// Ticket is the single-use access token for one booking. Exactly one
// live ticket exists per booking; a rebooked booking gets a fresh one
// on its new row.
type Ticket struct {
	BookingID int64     `db:"booking_id" json:"booking_id"`
	Token     string    `db:"token" json:"token"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type VerificationResponse struct {
	BookingID int64     `json:"booking_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Valid     bool      `json:"valid"`
}
