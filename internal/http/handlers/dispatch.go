package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/service"
)

// @Summary Auto-assign all runs of a date
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} service.OptimizeResult
// @Router /api/dispatch/{date}/optimize [post]
func (h *Handler) Optimize(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	result, err := h.Center.Optimize(c.Request.Context(), date)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, result)
}

type assignRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
	GuideID   string `json:"guide_id" binding:"required"`
}

// @Summary Manually assign a booking to a guide
// @Tags dispatch
// @Accept json
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/assign [post]
func (h *Handler) Assign(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.Center.ManualAssign(c.Request.Context(), date, req.BookingID, req.GuideID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, gin.H{"status": "assigned"})
}

type unassignRequest struct {
	BookingID string `json:"booking_id" binding:"required"`
}

// @Summary Remove a booking's assignment
// @Tags dispatch
// @Accept json
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/unassign [post]
func (h *Handler) Unassign(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var req unassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.Center.UnassignBooking(c.Request.Context(), date, req.BookingID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, gin.H{"status": "unassigned"})
}

type batchRequest struct {
	Changes []models.Change `json:"changes" validate:"required,min=1,dive"`
}

// @Summary Apply a batch of assignment changes atomically
// @Tags dispatch
// @Accept json
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} service.BatchResult
// @Router /api/dispatch/{date}/batch [post]
func (h *Handler) Batch(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	result, err := h.Center.BatchApplyChanges(c.Request.Context(), date, req.Changes)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, result)
}

// @Summary Resolve a warning
// @Tags dispatch
// @Accept json
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/warnings/resolve [post]
func (h *Handler) ResolveWarning(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var req service.ResolveWarningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.Center.ResolveWarning(c.Request.Context(), date, req); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// @Summary Finalize the date
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} models.DispatchStatus
// @Router /api/dispatch/{date}/dispatch [post]
func (h *Handler) Dispatch(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	status, err := h.Center.Dispatch(c.Request.Context(), date)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, status)
}

// @Summary Reopen a dispatched date
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/reopen [post]
func (h *Handler) Reopen(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	if err := h.Center.Reopen(c.Request.Context(), date); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, gin.H{"status": "reopened"})
}

type tempGuideRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Capacity int    `json:"capacity"`
}

// @Summary Create a temp guide for a date
// @Tags guides
// @Accept json
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} models.Guide
// @Router /api/dispatch/{date}/guides/temp [post]
func (h *Handler) CreateTempGuide(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var req tempGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	g, err := h.Center.CreateTempGuideForDate(c.Request.Context(), date, req.Name, req.Phone, req.Capacity)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type outsourcedGuideRequest struct {
	TourID   string `json:"tour_id" binding:"required"`
	Time     string `json:"time" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Capacity int    `json:"capacity"`
}

// @Summary Add an outsourced guide to a run
// @Tags guides
// @Accept json
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} models.Guide
// @Router /api/dispatch/{date}/runs/outsourced [post]
func (h *Handler) AddOutsourcedGuide(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var req outsourcedGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	key := models.RunKey{TourID: req.TourID, Date: date, Time: req.Time}
	g, err := h.Center.AddOutsourcedGuideToRun(c.Request.Context(), key, req.Name, req.Phone, req.Capacity)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.InvalidateDate(c.Request.Context(), date)
	c.JSON(http.StatusOK, g)
}
