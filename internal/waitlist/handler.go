package waitlist

import (
	"errors"
	"net/http"
	"strconv"

	"studioslot/internal/api"
	"studioslot/internal/auth"
	"studioslot/internal/session"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Join godoc
// @Summary      Join a session's waitlist
// @Description  Idempotent: joining twice returns the same entry and
// @Description  position.
// @Tags         waitlist
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      JoinRequest  true  "Join"
// @Success      201      {object}  JoinResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /waitlist/join [post]
func (h *Handler) Join(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.ClientID == 0 {
		req.ClientID = actor.ID
	}
	if actor.Role == auth.RoleClient && req.ClientID != actor.ID {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Cannot join for another client"})
		return
	}

	entry, count, err := h.service.Join(c.Request.Context(), req.SessionID, req.ClientID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Session not found"})
		case errors.Is(err, ErrSessionNotFull):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Session has free seats; reserve instead"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to join waitlist"})
		}
		return
	}

	c.JSON(http.StatusCreated, JoinResponse{Entry: entry, WaitlistCount: count})
}

// Leave godoc
// @Summary      Leave a waitlist
// @Tags         waitlist
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      LeaveRequest  true  "Leave"
// @Success      200      {object}  LeaveResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /waitlist/leave [delete]
func (h *Handler) Leave(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if req.WaitlistID == nil && req.SessionID != nil && req.ClientID == nil {
		req.ClientID = &actor.ID
	}

	removed, count, err := h.service.Leave(c.Request.Context(), req, actor)
	if err != nil {
		switch {
		case errors.Is(err, ErrEntryNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Waitlist entry not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Can only leave own waitlist entries"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to leave waitlist"})
		}
		return
	}

	c.JSON(http.StatusOK, LeaveResponse{Removed: removed, WaitlistCount: count})
}

// GetMyEntry godoc
// @Summary      Get own waitlist position for a session
// @Tags         waitlist
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Session ID"
// @Success      200        {object}  Entry
// @Failure      404        {object}  api.ErrorResponse
// @Router       /waitlist/{sessionID} [get]
func (h *Handler) GetMyEntry(c *gin.Context) {
	clientID, ok := auth.GetClientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("sessionID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	entry, err := h.service.GetClientEntry(c.Request.Context(), sessionID, clientID)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Not on the waitlist"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to fetch waitlist entry"})
		return
	}

	c.JSON(http.StatusOK, entry)
}
