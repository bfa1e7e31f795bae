package waitlist

import (
	"context"
	"database/sql"
	"errors"

	"studioslot/internal/db"
	"studioslot/internal/session"

	"github.com/jmoiron/sqlx"
)

var (
	ErrEntryNotFound  = errors.New("waitlist entry not found")
	ErrNoEntries      = errors.New("no pending waitlist entries")
	ErrSessionNotFull = errors.New("session still has free seats")
	ErrNotOwner       = errors.New("waitlist entry belongs to another client")
)

const entryColumns = `id, session_id, client_id, position, status, created_at, reactivated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(database *sqlx.DB) Repository {
	return &repository{db: database}
}

func (r *repository) Join(ctx context.Context, sessionID, clientID int64) (*Entry, int, error) {
	var (
		entry Entry
		count int
	)

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		sess, err := session.LockSessionTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}

		occupancy, err := session.OccupancyTx(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if occupancy < sess.Capacity {
			return ErrSessionNotFull
		}

		// Idempotent join: an existing pending entry is returned
		// unchanged, position included.
		err = tx.GetContext(ctx, &entry, `
			SELECT `+entryColumns+`
			FROM waitlist_entries
			WHERE session_id = $1 AND client_id = $2 AND status = 'pending'
		`, sessionID, clientID)
		if err == nil {
			count, err = countPendingTx(ctx, tx, sessionID)
			return err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		// A cancelled entry is reactivated at the tail rather than
		// duplicated; ordering follows reactivated_at from here on.
		res, err := tx.ExecContext(ctx, `
			UPDATE waitlist_entries
			SET status = 'pending', reactivated_at = NOW()
			WHERE id = (
				SELECT id FROM waitlist_entries
				WHERE session_id = $1 AND client_id = $2 AND status = 'cancelled'
				ORDER BY created_at DESC
				LIMIT 1
			)
		`, sessionID, clientID)
		if err != nil {
			return err
		}
		reactivated, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if reactivated == 0 {
			pending, err := countPendingTx(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO waitlist_entries (session_id, client_id, position, status)
				VALUES ($1, $2, $3, 'pending')
			`, sessionID, clientID, pending+1)
			if err != nil {
				return err
			}
		}

		if err := resequenceTx(ctx, tx, sessionID); err != nil {
			return err
		}

		err = tx.GetContext(ctx, &entry, `
			SELECT `+entryColumns+`
			FROM waitlist_entries
			WHERE session_id = $1 AND client_id = $2 AND status = 'pending'
		`, sessionID, clientID)
		if err != nil {
			return err
		}

		count, err = countPendingTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	return &entry, count, nil
}

func (r *repository) LeaveByID(ctx context.Context, entryID int64) (bool, int, error) {
	var sessionID int64
	err := r.db.GetContext(ctx, &sessionID, `
		SELECT session_id FROM waitlist_entries WHERE id = $1
	`, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, ErrEntryNotFound
		}
		return false, 0, err
	}

	return r.leave(ctx, sessionID, `id = $2`, entryID)
}

func (r *repository) Leave(ctx context.Context, sessionID, clientID int64) (bool, int, error) {
	return r.leave(ctx, sessionID, `session_id = $1 AND client_id = $2`, clientID)
}

// leave cancels a pending entry and resequences under the session lock.
// Leaving an already-cancelled entry is a no-op reported as removed =
// false.
func (r *repository) leave(ctx context.Context, sessionID int64, where string, arg interface{}) (bool, int, error) {
	var (
		removed bool
		count   int
	)

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := session.LockSessionTx(ctx, tx, sessionID); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE waitlist_entries
			SET status = 'cancelled'
			WHERE `+where+` AND session_id = $1 AND status = 'pending'
		`, sessionID, arg)
		if err != nil {
			return err
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		removed = affected > 0

		if removed {
			if err := resequenceTx(ctx, tx, sessionID); err != nil {
				return err
			}
		}

		count, err = countPendingTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return false, 0, err
	}

	return removed, count, nil
}

func (r *repository) PromoteLowest(ctx context.Context, sessionID int64) (*Entry, error) {
	var entry Entry

	err := db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := session.LockSessionTx(ctx, tx, sessionID); err != nil {
			return err
		}

		err := tx.GetContext(ctx, &entry, `
			SELECT `+entryColumns+`
			FROM waitlist_entries
			WHERE session_id = $1 AND status = 'pending'
			ORDER BY position ASC
			LIMIT 1
		`, sessionID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNoEntries
			}
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE waitlist_entries
			SET status = 'promoted'
			WHERE id = $1
		`, entry.ID); err != nil {
			return err
		}
		entry.Status = StatusPromoted

		return resequenceTx(ctx, tx, sessionID)
	})
	if err != nil {
		return nil, err
	}

	return &entry, nil
}

func (r *repository) CancelEntry(ctx context.Context, entryID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE waitlist_entries
		SET status = 'cancelled'
		WHERE id = $1
	`, entryID)
	return err
}

func (r *repository) GetPendingEntry(ctx context.Context, sessionID, clientID int64) (*Entry, error) {
	var entry Entry
	err := r.db.GetContext(ctx, &entry, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE session_id = $1 AND client_id = $2 AND status = 'pending'
	`, sessionID, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	return &entry, nil
}

func (r *repository) GetEntryByID(ctx context.Context, entryID int64) (*Entry, error) {
	var entry Entry
	err := r.db.GetContext(ctx, &entry, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE id = $1
	`, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}

	return &entry, nil
}

func (r *repository) RequeueEntry(ctx context.Context, entryID int64) error {
	var sessionID int64
	err := r.db.GetContext(ctx, &sessionID, `
		SELECT session_id FROM waitlist_entries WHERE id = $1
	`, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntryNotFound
		}
		return err
	}

	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := session.LockSessionTx(ctx, tx, sessionID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE waitlist_entries
			SET status = 'pending'
			WHERE id = $1 AND status = 'promoted'
		`, entryID); err != nil {
			return err
		}

		return resequenceTx(ctx, tx, sessionID)
	})
}

func (r *repository) ListPending(ctx context.Context, sessionID int64) ([]Entry, error) {
	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE session_id = $1 AND status = 'pending'
		ORDER BY position ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// resequenceTx rewrites positions as a dense 1..N over pending entries,
// ordered by effective join time. It always runs to completion inside
// the transaction that triggered it, so no partial renumbering is ever
// visible.
func resequenceTx(ctx context.Context, tx *sqlx.Tx, sessionID int64) error {
	_, err := tx.ExecContext(ctx, `
		WITH ranked AS (
			SELECT id, ROW_NUMBER() OVER (
				ORDER BY COALESCE(reactivated_at, created_at) ASC, id ASC
			) AS rn
			FROM waitlist_entries
			WHERE session_id = $1 AND status = 'pending'
		)
		UPDATE waitlist_entries w
		SET position = ranked.rn
		FROM ranked
		WHERE w.id = ranked.id
	`, sessionID)
	return err
}

func countPendingTx(ctx context.Context, tx *sqlx.Tx, sessionID int64) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM waitlist_entries
		WHERE session_id = $1 AND status = 'pending'
	`, sessionID)
	return count, err
}
