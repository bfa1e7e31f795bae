package session

import (
	"context"
	"time"
)

type Repository interface {
	CreateCourse(ctx context.Context, name string) (*Course, error)
	CourseExists(ctx context.Context, id int64) (bool, error)
	GetAllCourses(ctx context.Context) ([]Course, error)
	CreateSession(ctx context.Context, courseID *int64, startTime, endTime time.Time, capacity int) (*Session, error)
	GetSessionByID(ctx context.Context, id int64) (*Session, error)
	GetSessions(ctx context.Context, courseID *int64, onlyFuture bool) ([]Session, error)
	GetSessionsWithAvailability(ctx context.Context, courseID *int64, onlyFuture bool) ([]SessionWithAvailability, error)
	GetUpcomingByCourse(ctx context.Context, courseID int64, from time.Time, limit int) ([]Session, error)
	Occupancy(ctx context.Context, sessionID int64) (int, error)
	HasFreeSeat(ctx context.Context, sessionID int64) (bool, error)
}
