package event

import "time"

type EventType string

const (
	TypeCreated    EventType = "created"
	TypeCancelled  EventType = "cancelled"
	TypeRebooked   EventType = "rebooked"
	TypeCheckedIn  EventType = "checked_in"
	TypeCheckedOut EventType = "checked_out"
)

// Event is one row of the append-only booking audit trail. Rows are
// never mutated; the only deletion path is the compensating rollback of
// a failed fixed-plan schedule.
type Event struct {
	ID        int64     `db:"id" json:"id"`
	BookingID int64     `db:"booking_id" json:"booking_id"`
	Actor     string    `db:"actor" json:"actor"`
	EventType EventType `db:"event_type" json:"event_type"`
	Metadata  string    `db:"metadata" json:"metadata"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
