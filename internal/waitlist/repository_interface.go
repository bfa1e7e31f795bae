package waitlist

import "context"

type Repository interface {
	// Join adds the client to the session's queue inside one
	// transaction holding the session row lock, so concurrent joins
	// serialize and never share a position.
	Join(ctx context.Context, sessionID, clientID int64) (*Entry, int, error)
	// LeaveByID and Leave mark a pending entry cancelled and
	// resequence. They report false when no pending entry existed.
	LeaveByID(ctx context.Context, entryID int64) (bool, int, error)
	Leave(ctx context.Context, sessionID, clientID int64) (bool, int, error)
	// PromoteLowest marks the lowest-position pending entry promoted
	// and resequences the remainder.
	PromoteLowest(ctx context.Context, sessionID int64) (*Entry, error)
	// CancelEntry retires a promoted entry whose claim could not be
	// fulfilled.
	CancelEntry(ctx context.Context, entryID int64) error
	GetPendingEntry(ctx context.Context, sessionID, clientID int64) (*Entry, error)
	// GetEntryByID resolves an entry regardless of status, so callers
	// can check ownership before mutating it.
	GetEntryByID(ctx context.Context, entryID int64) (*Entry, error)
	// RequeueEntry returns a promoted entry to pending after its
	// auto-booking hit a transient failure; the entry keeps its place
	// in the ordering.
	RequeueEntry(ctx context.Context, entryID int64) error
	ListPending(ctx context.Context, sessionID int64) ([]Entry, error)
}
