package session

import "time"

type Course struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Session struct {
	ID        int64     `db:"id" json:"id"`
	CourseID  *int64    `db:"course_id" json:"course_id,omitempty"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type SessionWithAvailability struct {
	Session
	BookedCount int  `db:"booked_count" json:"booked_count"`
	Available   int  `db:"available" json:"available"`
	IsFull      bool `db:"-" json:"is_full"`
}

type CreateCourseRequest struct {
	Name string `json:"name" binding:"required"`
}

type CreateSessionRequest struct {
	CourseID  *int64 `json:"course_id"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
	Capacity  int    `json:"capacity" binding:"required,min=1"`
}
