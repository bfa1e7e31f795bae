package plan

import (
	"errors"
	"net/http"
	"time"

	"studioslot/internal/api"
	"studioslot/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreatePlanType godoc
// @Summary      Create plan type
// @Tags         plans
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreatePlanTypeRequest  true  "Plan type"
// @Success      201      {object}  PlanType
// @Failure      400      {object}  api.ErrorResponse
// @Router       /admin/plan-types [post]
func (h *Handler) CreatePlanType(c *gin.Context) {
	var req CreatePlanTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if verrs := api.ValidateStruct(req); len(verrs) > 0 {
			api.RespondWithValidationErrors(c, verrs)
			return
		}
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	planType, err := h.service.CreatePlanType(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, planType)
}

// ListPlanTypes godoc
// @Summary      List plan types
// @Tags         plans
// @Produce      json
// @Success      200  {array}  PlanType
// @Router       /plan-types [get]
func (h *Handler) ListPlanTypes(c *gin.Context) {
	types, err := h.service.GetAllPlanTypes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list plan types"})
		return
	}

	c.JSON(http.StatusOK, types)
}

// Purchase godoc
// @Summary      Purchase flexible plan
// @Description  Activates a flexible credit pool after payment confirmation.
// @Tags         plans
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      PurchaseRequest  true  "Purchase"
// @Success      201      {object}  PlanPurchase
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /plans/purchase [post]
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	purchase, err := h.service.PurchaseFlexible(c.Request.Context(), req.ClientID, req.PlanTypeID)
	if err != nil {
		switch {
		case errors.Is(err, ErrPlanTypeNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Plan type not found"})
		case errors.Is(err, ErrNotFlexiblePlan):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Plan type is not flexible"})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to purchase plan"})
		}
		return
	}

	c.JSON(http.StatusCreated, purchase)
}

// FixedPurchase godoc
// @Summary      Purchase fixed-schedule plan
// @Description  Creates the purchase and books every class of the schedule
// @Description  as one all-or-nothing unit.
// @Tags         plans
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      FixedPurchaseRequest  true  "Fixed purchase"
// @Success      201      {object}  FixedPurchaseResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /plans/fixed-purchase [post]
func (h *Handler) FixedPurchase(c *gin.Context) {
	var req FixedPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid request body"})
		return
	}

	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid start date"})
		return
	}

	resp, err := h.service.PurchaseFixed(c.Request.Context(), req.ClientID, req.PlanTypeID, req.CourseID, startDate)
	if err != nil {
		switch {
		case errors.Is(err, ErrPlanTypeNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "Plan type not found"})
		case errors.Is(err, ErrNotFixedPlan):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Plan type is not a fixed plan"})
		default:
			// Scheduling failures (insufficient sessions, capacity,
			// existing bookings) surface as a single consolidated
			// conflict; nothing was persisted.
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListMyPlans godoc
// @Summary      List own active plans
// @Tags         plans
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  PlanPurchase
// @Router       /plans [get]
func (h *Handler) ListMyPlans(c *gin.Context) {
	clientID, ok := auth.GetClientID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Client not authenticated"})
		return
	}

	plans, err := h.service.ListClientPlans(c.Request.Context(), clientID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Failed to list plans"})
		return
	}

	c.JSON(http.StatusOK, plans)
}
