package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"studioslot/internal/db"

	"github.com/jmoiron/sqlx"
)

var ErrSessionNotFound = errors.New("session not found")

// activeStatuses is the set of booking statuses that hold a seat.
// Cancelled and rebooked rows do not count towards occupancy.
const activeStatuses = `('confirmed', 'checked_in', 'checked_out')`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateCourse(ctx context.Context, name string) (*Course, error) {
	query := `
		INSERT INTO courses (name)
		VALUES ($1)
		RETURNING id, name, created_at
	`

	var course Course
	err := r.db.GetContext(ctx, &course, query, name)
	if err != nil {
		return nil, err
	}

	return &course, nil
}

func (r *repository) CourseExists(ctx context.Context, id int64) (bool, error) {
	return db.Exists(ctx, r.db, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, id)
}

func (r *repository) GetAllCourses(ctx context.Context) ([]Course, error) {
	query := `
		SELECT id, name, created_at
		FROM courses
		ORDER BY created_at DESC
	`

	var courses []Course
	err := r.db.SelectContext(ctx, &courses, query)
	if err != nil {
		return nil, err
	}

	return courses, nil
}

func (r *repository) CreateSession(ctx context.Context, courseID *int64, startTime, endTime time.Time, capacity int) (*Session, error) {
	query := `
		INSERT INTO sessions (course_id, start_time, end_time, capacity)
		VALUES ($1, $2, $3, $4)
		RETURNING id, course_id, start_time, end_time, capacity, created_at
	`

	var sess Session
	err := r.db.GetContext(ctx, &sess, query, courseID, startTime, endTime, capacity)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

func (r *repository) GetSessionByID(ctx context.Context, id int64) (*Session, error) {
	query := `
		SELECT id, course_id, start_time, end_time, capacity, created_at
		FROM sessions
		WHERE id = $1
	`

	var sess Session
	err := r.db.GetContext(ctx, &sess, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &sess, nil
}

func (r *repository) GetSessions(ctx context.Context, courseID *int64, onlyFuture bool) ([]Session, error) {
	query := `
		SELECT id, course_id, start_time, end_time, capacity, created_at
		FROM sessions
		WHERE 1=1
	`
	args := []interface{}{}

	if courseID != nil {
		query += " AND course_id = $1"
		args = append(args, *courseID)
	}

	if onlyFuture {
		query += " AND start_time > NOW()"
	}

	query += " ORDER BY start_time ASC"

	var sessions []Session
	err := r.db.SelectContext(ctx, &sessions, query, args...)
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

func (r *repository) GetSessionsWithAvailability(ctx context.Context, courseID *int64, onlyFuture bool) ([]SessionWithAvailability, error) {
	sessions, err := r.GetSessions(ctx, courseID, onlyFuture)
	if err != nil {
		return nil, err
	}

	result := make([]SessionWithAvailability, 0, len(sessions))
	for _, sess := range sessions {
		bookedCount, err := r.Occupancy(ctx, sess.ID)
		if err != nil {
			return nil, err
		}

		available := sess.Capacity - bookedCount

		result = append(result, SessionWithAvailability{
			Session:     sess,
			BookedCount: bookedCount,
			Available:   available,
			IsFull:      available <= 0,
		})
	}

	return result, nil
}

func (r *repository) GetUpcomingByCourse(ctx context.Context, courseID int64, from time.Time, limit int) ([]Session, error) {
	query := `
		SELECT id, course_id, start_time, end_time, capacity, created_at
		FROM sessions
		WHERE course_id = $1 AND start_time >= $2
		ORDER BY start_time ASC
		LIMIT $3
	`

	var sessions []Session
	err := r.db.SelectContext(ctx, &sessions, query, courseID, from, limit)
	if err != nil {
		return nil, err
	}

	return sessions, nil
}

// Occupancy is always derived from booking rows so it cannot drift from
// the bookings table.
func (r *repository) Occupancy(ctx context.Context, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE session_id = $1 AND status IN ` + activeStatuses

	var count int
	err := r.db.GetContext(ctx, &count, query, sessionID)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *repository) HasFreeSeat(ctx context.Context, sessionID int64) (bool, error) {
	sess, err := r.GetSessionByID(ctx, sessionID)
	if err != nil {
		return false, err
	}

	occupancy, err := r.Occupancy(ctx, sessionID)
	if err != nil {
		return false, err
	}

	return occupancy < sess.Capacity, nil
}

// LockSessionTx takes a row lock on the session so that concurrent
// capacity checks against it serialize for the duration of tx.
func LockSessionTx(ctx context.Context, tx *sqlx.Tx, sessionID int64) (*Session, error) {
	query := `
		SELECT id, course_id, start_time, end_time, capacity, created_at
		FROM sessions
		WHERE id = $1
		FOR UPDATE
	`

	var sess Session
	err := tx.GetContext(ctx, &sess, query, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	return &sess, nil
}

// OccupancyTx re-reads occupancy inside the caller's transaction, after
// LockSessionTx has been taken.
func OccupancyTx(ctx context.Context, tx *sqlx.Tx, sessionID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE session_id = $1 AND status IN ` + activeStatuses

	var count int
	err := tx.GetContext(ctx, &count, query, sessionID)
	if err != nil {
		return 0, err
	}

	return count, nil
}
