package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saimali7/Tour-CRM-sub003/internal/service"
)

// assignmentDate resolves the dispatch date a ledger mutation touches so
// the date's cached projections can be dropped. Unknown ids are left to
// the service to reject.
func (h *Handler) assignmentDate(ctx context.Context, guideAssignmentID string) string {
	ga, err := h.Store.GetGuideAssignment(ctx, guideAssignmentID)
	if err != nil || ga == nil {
		return ""
	}
	return ga.Date
}

// pickupDate resolves the date through the pickup's guide assignment.
// Looked up before the mutation: an unassign deletes the row.
func (h *Handler) pickupDate(ctx context.Context, pickupAssignmentID string) string {
	p, err := h.Store.GetPickupAssignment(ctx, pickupAssignmentID)
	if err != nil || p == nil {
		return ""
	}
	return h.assignmentDate(ctx, p.GuideAssignmentID)
}

func (h *Handler) invalidateDate(c *gin.Context, date string) {
	if date != "" {
		h.Cache.InvalidateDate(c.Request.Context(), date)
	}
}

// @Summary Assign a booking to a guide's pickup list
// @Tags pickups
// @Accept json
// @Produce json
// @Success 200 {object} models.PickupAssignment
// @Router /api/pickups/assign [post]
func (h *Handler) PickupAssign(c *gin.Context) {
	var req service.AssignPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if req.GuideAssignmentID == "" || req.BookingID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "guide_assignment_id and booking_id are required", nil)
		return
	}
	p, err := h.Ledger.Assign(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.invalidateDate(c, h.assignmentDate(c.Request.Context(), req.GuideAssignmentID))
	c.JSON(http.StatusOK, p)
}

// @Summary Remove a pickup assignment
// @Tags pickups
// @Produce json
// @Param id path string true "Pickup assignment ID"
// @Success 200 {object} map[string]any
// @Router /api/pickups/{id}/unassign [post]
func (h *Handler) PickupUnassign(c *gin.Context) {
	date := h.pickupDate(c.Request.Context(), c.Param("id"))
	if err := h.Ledger.Unassign(c.Request.Context(), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.invalidateDate(c, date)
	c.JSON(http.StatusOK, gin.H{"status": "unassigned"})
}

type reorderRequest struct {
	GuideAssignmentID string   `json:"guide_assignment_id" binding:"required"`
	BookingOrder      []string `json:"booking_order" binding:"required"`
}

// @Summary Reorder a guide's pickups
// @Tags pickups
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/pickups/reorder [post]
func (h *Handler) PickupReorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.Ledger.Reorder(c.Request.Context(), req.GuideAssignmentID, req.BookingOrder); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.invalidateDate(c, h.assignmentDate(c.Request.Context(), req.GuideAssignmentID))
	c.JSON(http.StatusOK, gin.H{"status": "reordered"})
}

// @Summary Preview a pickup plan with one extra booking
// @Tags pickups
// @Accept json
// @Produce json
// @Success 200 {object} service.GhostPreview
// @Router /api/pickups/ghost-preview [post]
func (h *Handler) PickupGhostPreview(c *gin.Context) {
	var req service.GhostPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if req.GuideAssignmentID == "" || req.BookingID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "guide_assignment_id and booking_id are required", nil)
		return
	}
	preview, err := h.Ledger.CalculateGhostPreview(c.Request.Context(), req)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

type pickedUpRequest struct {
	At *time.Time `json:"at"`
}

// @Summary Mark a pickup as collected
// @Tags pickups
// @Accept json
// @Produce json
// @Param id path string true "Pickup assignment ID"
// @Success 200 {object} map[string]any
// @Router /api/pickups/{id}/picked-up [post]
func (h *Handler) PickupPickedUp(c *gin.Context) {
	var req pickedUpRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	at := time.Now().UTC()
	if req.At != nil {
		at = *req.At
	}
	if err := h.Ledger.MarkPickedUp(c.Request.Context(), c.Param("id"), at); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.invalidateDate(c, h.pickupDate(c.Request.Context(), c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"status": "picked_up"})
}

// @Summary Mark a pickup as a no-show
// @Tags pickups
// @Produce json
// @Param id path string true "Pickup assignment ID"
// @Success 200 {object} map[string]any
// @Router /api/pickups/{id}/no-show [post]
func (h *Handler) PickupNoShow(c *gin.Context) {
	if err := h.Ledger.MarkNoShow(c.Request.Context(), c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.invalidateDate(c, h.pickupDate(c.Request.Context(), c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"status": "no_show"})
}

type pickupTimeRequest struct {
	CalculatedTime time.Time `json:"calculated_time" binding:"required"`
}

// @Summary Override a pickup's calculated time
// @Tags pickups
// @Accept json
// @Produce json
// @Param id path string true "Pickup assignment ID"
// @Success 200 {object} map[string]any
// @Router /api/pickups/{id}/time [post]
func (h *Handler) PickupTime(c *gin.Context) {
	var req pickupTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err := h.Ledger.UpdatePickupTime(c.Request.Context(), c.Param("id"), req.CalculatedTime); err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.invalidateDate(c, h.pickupDate(c.Request.Context(), c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
