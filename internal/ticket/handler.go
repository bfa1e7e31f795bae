package ticket

import (
	"errors"
	"net/http"

	"studioslot/internal/api"
	"studioslot/internal/metrics"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Verify godoc
// @Summary      Verify access ticket
// @Tags         tickets
// @Produce      json
// @Param        token  path      string  true  "Ticket token"
// @Success      200    {object}  VerificationResponse
// @Failure      404    {object}  api.ErrorResponse
// @Failure      410    {object}  api.ErrorResponse
// @Router       /ticket/{token} [get]
func (h *Handler) Verify(c *gin.Context) {
	token := c.Param("token")

	t, err := h.service.Verify(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTicketNotFound):
			metrics.RecordTicketVerification("not_found")
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Ticket not found"})
		case errors.Is(err, ErrTicketExpired):
			metrics.RecordTicketVerification("expired")
			c.JSON(http.StatusGone, api.ErrorResponse{Error: "Ticket expired"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to verify ticket"})
		}
		return
	}

	metrics.RecordTicketVerification("valid")

	c.JSON(http.StatusOK, VerificationResponse{
		BookingID: t.BookingID,
		Token:     t.Token,
		ExpiresAt: t.ExpiresAt,
		Valid:     true,
	})
}
