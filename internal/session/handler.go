package session

import (
	"errors"
	"net/http"
	"strconv"

	"studioslot/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreateCourse godoc
// @Summary      Create course
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateCourseRequest  true  "Course"
// @Success      201      {object}  Course
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/courses [post]
func (h *Handler) CreateCourse(c *gin.Context) {
	var req CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	course, err := h.service.CreateCourse(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create course"})
		return
	}

	c.JSON(http.StatusCreated, course)
}

// ListCourses godoc
// @Summary      List courses
// @Tags         catalog
// @Produce      json
// @Success      200  {array}  Course
// @Router       /courses [get]
func (h *Handler) ListCourses(c *gin.Context) {
	courses, err := h.service.GetAllCourses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list courses"})
		return
	}

	c.JSON(http.StatusOK, courses)
}

// CreateSession godoc
// @Summary      Create session
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateSessionRequest  true  "Session"
// @Success      201      {object}  Session
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/sessions [post]
func (h *Handler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if verrs := api.ValidateStruct(req); len(verrs) > 0 {
			api.RespondWithValidationErrors(c, verrs)
			return
		}
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	sess, err := h.service.CreateSession(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrCourseNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Course not found"})
		case errors.Is(err, ErrSessionInvalid):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session times or capacity"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create session"})
		}
		return
	}

	c.JSON(http.StatusCreated, sess)
}

// ListSessions godoc
// @Summary      List sessions with availability
// @Tags         catalog
// @Produce      json
// @Param        course_id    query     int     false  "Filter by course"
// @Param        only_future  query     bool    false  "Only future sessions"
// @Success      200          {array}   SessionWithAvailability
// @Failure      400          {object}  api.ErrorResponse
// @Router       /sessions [get]
func (h *Handler) ListSessions(c *gin.Context) {
	var courseID *int64
	if raw := c.Query("course_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid course ID"})
			return
		}
		courseID = &id
	}

	onlyFuture := c.DefaultQuery("only_future", "true") == "true"

	sessions, err := h.service.GetSessions(c.Request.Context(), courseID, onlyFuture)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list sessions"})
		return
	}

	c.JSON(http.StatusOK, sessions)
}
