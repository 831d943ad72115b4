package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/saimali7/Tour-CRM-sub003/internal/cache"
	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
	"github.com/saimali7/Tour-CRM-sub003/internal/service"
)

// Projections is the per-date read cache: consulted by the dashboard
// reads, dropped by every mutation touching the date.
type Projections interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any)
	InvalidateDate(ctx context.Context, date string)
}

type Handler struct {
	Store     ports.Store
	Center    *service.CommandCenter
	Ledger    *service.Ledger
	Avail     *service.Availability
	Runs      *service.RunResolver
	Cache     Projections
	Validator *validator.Validate
	Logger    zerolog.Logger
}

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Dispatch status
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} models.DispatchStatus
// @Router /api/dispatch/{date}/status [get]
func (h *Handler) DispatchStatus(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var cached models.DispatchStatus
	if err := h.Cache.GetJSON(c.Request.Context(), cache.Key(date, "status"), &cached); err == nil {
		c.JSON(http.StatusOK, cached)
		return
	}
	status, err := h.Center.GetDispatchStatus(c.Request.Context(), date)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.SetJSON(c.Request.Context(), cache.Key(date, "status"), status)
	c.JSON(http.StatusOK, status)
}

// @Summary Tour runs with assignments
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/tour-runs [get]
func (h *Handler) TourRuns(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var cached []service.RunView
	if err := h.Cache.GetJSON(c.Request.Context(), cache.Key(date, "tour-runs"), &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"date": date, "runs": cached})
		return
	}
	runs, err := h.Center.GetTourRuns(c.Request.Context(), date)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.SetJSON(c.Request.Context(), cache.Key(date, "tour-runs"), runs)
	c.JSON(http.StatusOK, gin.H{"date": date, "runs": runs})
}

// @Summary Per-guide day timelines
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/timelines [get]
func (h *Handler) Timelines(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	var cached []models.GuideTimeline
	if err := h.Cache.GetJSON(c.Request.Context(), cache.Key(date, "timelines"), &cached); err == nil {
		c.JSON(http.StatusOK, gin.H{"date": date, "guides": cached})
		return
	}
	timelines, err := h.Center.GetGuideTimelines(c.Request.Context(), date)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.Cache.SetJSON(c.Request.Context(), cache.Key(date, "timelines"), timelines)
	c.JSON(http.StatusOK, gin.H{"date": date, "guides": timelines})
}

// @Summary Guides available on a date
// @Tags guides
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/available-guides [get]
func (h *Handler) AvailableGuides(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	guides, err := h.Avail.GetAvailableGuides(c.Request.Context(), date)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "guides": guides})
}

// @Summary Run manifest
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param tour_id query string true "Tour ID"
// @Param time query string true "Departure time (HH:MM)"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/manifest [get]
func (h *Handler) Manifest(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	key := models.RunKey{TourID: c.Query("tour_id"), Date: date, Time: c.Query("time")}
	if key.TourID == "" || key.Time == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "tour_id and time are required", nil)
		return
	}
	entries, err := h.Runs.GetManifest(c.Request.Context(), key)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": key, "entries": entries})
}

// @Summary Guide suggestions for a booking
// @Tags dispatch
// @Produce json
// @Param date path string true "Date (YYYY-MM-DD)"
// @Param booking_id query string true "Booking ID"
// @Success 200 {object} map[string]any
// @Router /api/dispatch/{date}/suggestions [get]
func (h *Handler) Suggestions(c *gin.Context) {
	date, ok := h.dateParam(c)
	if !ok {
		return
	}
	bookingID := c.Query("booking_id")
	if bookingID == "" {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "booking_id is required", nil)
		return
	}
	suggestions, err := h.Center.GetSuggestions(c.Request.Context(), date, bookingID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": bookingID, "suggestions": suggestions})
}

func (h *Handler) dateParam(c *gin.Context) (string, bool) {
	date := c.Param("date")
	if !dateRe.MatchString(date) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD", nil)
		return "", false
	}
	return date, true
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	var ve *service.ValidationError
	var nf *service.NotFoundError
	var cf *service.ConflictError
	switch {
	case errors.As(err, &ve):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", ve.Error(), nil)
	case errors.As(err, &nf):
		writeError(c, http.StatusNotFound, "NOT_FOUND", nf.Error(), nil)
	case errors.As(err, &cf):
		writeError(c, http.StatusConflict, "CONFLICT", cf.Error(), nil)
	case errors.Is(err, ports.ErrVersionConflict):
		writeError(c, http.StatusConflict, "VERSION_CONFLICT", "Dispatch state changed concurrently, retry", nil)
	default:
		h.Logger.Error().Err(err).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Internal error", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
