package session

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrSessionInvalid = errors.New("invalid session")
)

type Service interface {
	CreateCourse(ctx context.Context, req CreateCourseRequest) (*Course, error)
	GetAllCourses(ctx context.Context) ([]Course, error)
	CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error)
	GetSessionByID(ctx context.Context, id int64) (*Session, error)
	GetSessions(ctx context.Context, courseID *int64, onlyFuture bool) ([]SessionWithAvailability, error)
	HasFreeSeat(ctx context.Context, sessionID int64) (bool, error)
	Occupancy(ctx context.Context, sessionID int64) (int, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) CreateCourse(ctx context.Context, req CreateCourseRequest) (*Course, error) {
	return s.repo.CreateCourse(ctx, req.Name)
}

func (s *service) GetAllCourses(ctx context.Context) ([]Course, error) {
	return s.repo.GetAllCourses(ctx)
}

func (s *service) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if req.CourseID != nil {
		exists, err := s.repo.CourseExists(ctx, *req.CourseID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrCourseNotFound
		}
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	endTime, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	if !endTime.After(startTime) {
		return nil, ErrSessionInvalid
	}

	if req.Capacity <= 0 {
		return nil, ErrSessionInvalid
	}

	return s.repo.CreateSession(ctx, req.CourseID, startTime, endTime, req.Capacity)
}

func (s *service) GetSessionByID(ctx context.Context, id int64) (*Session, error) {
	return s.repo.GetSessionByID(ctx, id)
}

func (s *service) GetSessions(ctx context.Context, courseID *int64, onlyFuture bool) ([]SessionWithAvailability, error) {
	return s.repo.GetSessionsWithAvailability(ctx, courseID, onlyFuture)
}

func (s *service) HasFreeSeat(ctx context.Context, sessionID int64) (bool, error) {
	return s.repo.HasFreeSeat(ctx, sessionID)
}

func (s *service) Occupancy(ctx context.Context, sessionID int64) (int, error) {
	return s.repo.Occupancy(ctx, sessionID)
}
