package booking

import (
	"errors"
	"net/http"
	"strconv"

	"studioslot/internal/api"
	"studioslot/internal/auth"
	"studioslot/internal/plan"
	"studioslot/internal/session"
	"studioslot/internal/ticket"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Reserve godoc
// @Summary      Reserve a seat
// @Description  Books one seat in a session, debiting the client's
// @Description  active plan. Returns the existing booking with
// @Description  duplicated=true when one is already held.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      ReserveRequest  true  "Reservation"
// @Success      201      {object}  ReserveResponse
// @Success      200      {object}  ReserveResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      402      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /reserve [post]
func (h *Handler) Reserve(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	// Clients reserve for themselves; staff may act on behalf of any
	// client.
	if req.ClientID == 0 {
		req.ClientID = actor.ID
	}
	if actor.Role == auth.RoleClient && req.ClientID != actor.ID {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Cannot reserve for another client"})
		return
	}

	result, err := h.service.Reserve(c.Request.Context(), req, actor)
	if err != nil {
		respondReserveError(c, err)
		return
	}

	resp := ReserveResponse{
		BookingID:      result.Booking.ID,
		Status:         result.Booking.Status,
		PlanPurchaseID: result.Booking.PlanPurchaseID,
		Duplicated:     result.Duplicated,
	}
	if result.Ticket != nil {
		resp.TicketToken = result.Ticket.Token
	}

	status := http.StatusCreated
	if result.Duplicated {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// Cancel godoc
// @Summary      Cancel booking
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CancelRequest  true  "Cancellation"
// @Success      200      {object}  api.MessageResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), req.BookingID, actor); err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Booking not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Can only cancel own bookings"})
		case errors.Is(err, ErrInvalidTransition):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Booking cannot be cancelled in its current state"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to cancel booking"})
		}
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "Booking cancelled successfully"})
}

// Rebook godoc
// @Summary      Rebook onto another session
// @Description  Atomic across both sessions: the old booking stays
// @Description  confirmed unless the new one commits.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      RebookRequest  true  "Rebooking"
// @Success      201      {object}  ReserveResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /rebook [patch]
func (h *Handler) Rebook(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	var req RebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	result, err := h.service.Rebook(c.Request.Context(), req.BookingID, req.NewSessionID, actor)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound), errors.Is(err, session.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Booking or session not found"})
		case errors.Is(err, ErrNotOwner):
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "Can only rebook own bookings"})
		case errors.Is(err, ErrSameSession), errors.Is(err, ErrSessionStarted):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrDuplicateBooking), errors.Is(err, ErrInvalidTransition):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to rebook"})
		}
		return
	}

	resp := ReserveResponse{
		BookingID:      result.Booking.ID,
		Status:         result.Booking.Status,
		PlanPurchaseID: result.Booking.PlanPurchaseID,
	}
	if result.Ticket != nil {
		resp.TicketToken = result.Ticket.Token
	}

	c.JSON(http.StatusCreated, resp)
}

// CheckIn godoc
// @Summary      Check a client in with their ticket
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CheckInRequest  true  "Check-in"
// @Success      200      {object}  Booking
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Failure      410      {object}  api.ErrorResponse
// @Router       /checkin [post]
func (h *Handler) CheckIn(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	b, err := h.service.CheckIn(c.Request.Context(), req.Token, actor)
	if err != nil {
		switch {
		case errors.Is(err, ticket.ErrTicketNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Ticket not found"})
		case errors.Is(err, ticket.ErrTicketExpired):
			c.JSON(http.StatusGone, api.ErrorResponse{Error: "Ticket expired"})
		case errors.Is(err, ErrInvalidTransition):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Booking is not awaiting check-in"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to check in"})
		}
		return
	}

	c.JSON(http.StatusOK, b)
}

// CheckOut godoc
// @Summary      Check a client out
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        bookingID  path      int  true  "Booking ID"
// @Success      200        {object}  Booking
// @Failure      400        {object}  api.ErrorResponse
// @Failure      409        {object}  api.ErrorResponse
// @Router       /bookings/{bookingID}/checkout [post]
func (h *Handler) CheckOut(c *gin.Context) {
	actor, ok := auth.GetActor(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	bookingID, err := strconv.ParseInt(c.Param("bookingID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid booking ID"})
		return
	}

	b, err := h.service.CheckOut(c.Request.Context(), bookingID, actor)
	if err != nil {
		switch {
		case errors.Is(err, ErrBookingNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Booking not found"})
		case errors.Is(err, ErrInvalidTransition):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Booking is not checked in"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to check out"})
		}
		return
	}

	c.JSON(http.StatusOK, b)
}

// ListMyBookings godoc
// @Summary      List own bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  Booking
// @Router       /bookings [get]
func (h *Handler) ListMyBookings(c *gin.Context) {
	clientID, ok := auth.GetClientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Not authenticated"})
		return
	}

	bookings, err := h.service.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ListBySession godoc
// @Summary      List a session's bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        sessionID  path      int  true  "Session ID"
// @Success      200        {array}   BookingWithDetails
// @Failure      400        {object}  api.ErrorResponse
// @Router       /sessions/{sessionID}/bookings [get]
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("sessionID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid session ID"})
		return
	}

	bookings, err := h.service.ListBySession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

func respondReserveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Session not found"})
	case errors.Is(err, ErrSessionStarted):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Session is no longer open for reservations"})
	case errors.Is(err, ErrCapacityExceeded):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Session is at capacity"})
	case errors.Is(err, ErrDuplicateBooking):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "Client already holds a booking for this session"})
	case errors.Is(err, plan.ErrNoActivePlan), errors.Is(err, plan.ErrPlanExhausted):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: "No usable plan credits"})
	case errors.Is(err, plan.ErrPlanExpired):
		c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: "Plan has expired"})
	case errors.Is(err, plan.ErrPlanNotFound), errors.Is(err, plan.ErrFixedPlanDebit):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Preferred plan cannot be used"})
	default:
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to create booking"})
	}
}
