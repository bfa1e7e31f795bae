package waitlist

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusPromoted  Status = "promoted"
	StatusCancelled Status = "cancelled"
)

// Entry is one client's place in a full session's queue. Positions of
// pending entries are always a dense 1..N sequence; resequencing is the
// sole writer of the position column.
type Entry struct {
	ID        int64      `db:"id" json:"id"`
	SessionID int64      `db:"session_id" json:"session_id"`
	ClientID  int64      `db:"client_id" json:"client_id"`
	Position  int        `db:"position" json:"position"`
	Status    Status     `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	// ReactivatedAt is set when a cancelled entry rejoins; ordering uses
	// it instead of the original creation time so the client queues at
	// the tail.
	ReactivatedAt *time.Time `db:"reactivated_at" json:"reactivated_at,omitempty"`
}

type JoinRequest struct {
	SessionID int64 `json:"session_id" binding:"required"`
	ClientID  int64 `json:"client_id"`
}

type LeaveRequest struct {
	WaitlistID *int64 `json:"waitlist_id"`
	SessionID  *int64 `json:"session_id"`
	ClientID   *int64 `json:"client_id"`
}

type JoinResponse struct {
	Entry         *Entry `json:"entry"`
	WaitlistCount int    `json:"waitlist_count"`
}

type LeaveResponse struct {
	Removed       bool `json:"removed"`
	WaitlistCount int  `json:"waitlist_count"`
}
