package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

type ImportSummary struct {
	Tours struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"tours"`
	PickupAddresses struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"pickup_addresses"`
	Guides struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"guides"`
	Bookings struct {
		Parsed   int `json:"parsed"`
		Inserted int `json:"inserted"`
		Errors   int `json:"errors"`
	} `json:"bookings"`
	Errors []string `json:"errors"`
}

// @Summary Import CSV data
// @Description Upload tours, pickup addresses, guides, and bookings CSV files; replaces all data
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param tours formData file true "tours.csv"
// @Param pickup_addresses formData file true "pickup_addresses.csv"
// @Param guides formData file true "guides.csv"
// @Param bookings formData file true "bookings.csv"
// @Success 200 {object} ImportSummary
// @Failure 400 {object} map[string]any
// @Router /api/import [post]
func (h *Handler) Import(c *gin.Context) {
	files := map[string]*multipart.FileHeader{}
	for _, name := range []string{"tours", "pickup_addresses", "guides", "bookings"} {
		f, err := c.FormFile(name)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", name+" file required", nil)
			return
		}
		if strings.ToLower(filepath.Ext(f.Filename)) != ".csv" {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "all files must be .csv", nil)
			return
		}
		files[name] = f
	}

	summary := ImportSummary{Errors: []string{}}

	tours, errs := parseToursCSV(files["tours"])
	summary.Tours.Parsed = len(tours)
	summary.Tours.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	addrs, errs := parsePickupAddressesCSV(files["pickup_addresses"])
	summary.PickupAddresses.Parsed = len(addrs)
	summary.PickupAddresses.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	guides, errs := parseGuidesCSV(files["guides"])
	summary.Guides.Parsed = len(guides)
	summary.Guides.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	bookings, errs := parseBookingsCSV(files["bookings"])
	summary.Bookings.Parsed = len(bookings)
	summary.Bookings.Errors = len(errs)
	summary.Errors = append(summary.Errors, errs...)

	if len(summary.Errors) > 0 {
		writeError(c, http.StatusBadRequest, "CSV_PARSE_ERROR", "CSV validation errors", summary.Errors)
		return
	}

	ctx := c.Request.Context()
	err := h.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.TruncateData(ctx); err != nil {
			return err
		}
		n, err := repo.InsertTours(ctx, tours)
		if err != nil {
			return err
		}
		summary.Tours.Inserted = int(n)

		n, err = repo.InsertPickupAddresses(ctx, addrs)
		if err != nil {
			return err
		}
		summary.PickupAddresses.Inserted = int(n)

		n, err = repo.InsertGuides(ctx, guides)
		if err != nil {
			return err
		}
		summary.Guides.Inserted = int(n)

		n, err = repo.InsertBookings(ctx, bookings)
		if err != nil {
			return err
		}
		summary.Bookings.Inserted = int(n)
		return nil
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to import data", err.Error())
		return
	}

	c.JSON(http.StatusOK, summary)
}

func parseToursCSV(file *multipart.FileHeader) ([]models.Tour, []string) {
	var out []models.Tour
	errs := readCSV(file, func(rec []string, idx map[string]int) error {
		t := models.Tour{
			ID:   getFieldAny(rec, idx, "id", "tour_id"),
			Name: getFieldAny(rec, idx, "name", "tour_name", "title"),
		}
		t.DurationMinutes, _ = strconv.Atoi(getFieldAny(rec, idx, "duration_minutes", "duration"))
		t.MeetingLat, _ = strconv.ParseFloat(getFieldAny(rec, idx, "meeting_lat", "lat"), 64)
		t.MeetingLon, _ = strconv.ParseFloat(getFieldAny(rec, idx, "meeting_lon", "lon", "lng"), 64)
		if t.ID == "" || t.Name == "" {
			return fmt.Errorf("tour id and name required")
		}
		out = append(out, t)
		return nil
	})
	return out, errs
}

func parsePickupAddressesCSV(file *multipart.FileHeader) ([]models.PickupAddress, []string) {
	var out []models.PickupAddress
	errs := readCSV(file, func(rec []string, idx map[string]int) error {
		a := models.PickupAddress{
			ID:   getFieldAny(rec, idx, "id", "address_id"),
			Name: getFieldAny(rec, idx, "name", "address"),
			Zone: getFieldAny(rec, idx, "zone", "area"),
		}
		a.Lat, _ = strconv.ParseFloat(getFieldAny(rec, idx, "lat", "latitude"), 64)
		a.Lon, _ = strconv.ParseFloat(getFieldAny(rec, idx, "lon", "lng", "longitude"), 64)
		a.AvgPickupMinutes, _ = strconv.Atoi(getFieldAny(rec, idx, "avg_pickup_minutes", "pickup_minutes"))
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.Name == "" {
			return fmt.Errorf("pickup address name required")
		}
		out = append(out, a)
		return nil
	})
	return out, errs
}

func parseGuidesCSV(file *multipart.FileHeader) ([]models.Guide, []string) {
	var out []models.Guide
	errs := readCSV(file, func(rec []string, idx map[string]int) error {
		g := models.Guide{
			ID:    getFieldAny(rec, idx, "id", "guide_id"),
			Name:  getFieldAny(rec, idx, "name"),
			Phone: getFieldAny(rec, idx, "phone"),
			Kind:  models.GuideKindSystem,
		}
		g.VehicleCapacity, _ = strconv.Atoi(getFieldAny(rec, idx, "vehicle_capacity", "capacity"))
		g.QualifiedTours = splitList(getFieldAny(rec, idx, "qualified_tours", "tours"))
		g.WeeklyDays = parseWeekdays(getFieldAny(rec, idx, "weekly_days", "days"))
		activeRaw := getFieldAny(rec, idx, "active")
		g.Active = activeRaw == "" || strings.EqualFold(activeRaw, "true") || activeRaw == "1"
		g.CreatedAt = time.Now().UTC()
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		if g.Name == "" || g.VehicleCapacity <= 0 {
			return fmt.Errorf("guide name and positive vehicle_capacity required")
		}
		out = append(out, g)
		return nil
	})
	return out, errs
}

func parseBookingsCSV(file *multipart.FileHeader) ([]models.Booking, []string) {
	var out []models.Booking
	errs := readCSV(file, func(rec []string, idx map[string]int) error {
		b := models.Booking{
			ID:              getFieldAny(rec, idx, "id", "booking_id"),
			TourID:          getFieldAny(rec, idx, "tour_id", "tour"),
			Date:            getFieldAny(rec, idx, "date"),
			Time:            getFieldAny(rec, idx, "time", "departure"),
			PickupAddressID: getFieldAny(rec, idx, "pickup_address_id", "pickup"),
			CustomerName:    getFieldAny(rec, idx, "customer_name", "customer"),
		}
		b.Adults, _ = strconv.Atoi(getFieldAny(rec, idx, "adults"))
		b.Children, _ = strconv.Atoi(getFieldAny(rec, idx, "children"))
		b.Infants, _ = strconv.Atoi(getFieldAny(rec, idx, "infants"))
		privRaw := getFieldAny(rec, idx, "is_private", "private")
		b.IsPrivate = strings.EqualFold(privRaw, "true") || privRaw == "1"
		if b.ID == "" {
			b.ID = fmt.Sprintf("BK-%04d", len(out)+1)
		}
		if b.TourID == "" || b.Date == "" || b.Time == "" {
			return fmt.Errorf("booking %s: tour_id, date, and time required", b.ID)
		}
		if !dateRe.MatchString(b.Date) {
			return fmt.Errorf("booking %s: date must be YYYY-MM-DD", b.ID)
		}
		if b.Guests() <= 0 {
			return fmt.Errorf("booking %s: at least one guest required", b.ID)
		}
		out = append(out, b)
		return nil
	})
	return out, errs
}

// readCSV walks a CSV file row by row, collecting per-row errors so one
// bad line does not abort the whole file.
func readCSV(file *multipart.FileHeader, row func(rec []string, idx map[string]int) error) []string {
	f, err := file.Open()
	if err != nil {
		return []string{err.Error()}
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return []string{"failed to read header"}
	}
	idx := headerIndex(headers)

	var errs []string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if err := row(rec, idx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		idx[normalizeHeader(h)] = i
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

func splitList(raw string) []string {
	raw = strings.ReplaceAll(raw, ";", ",")
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseWeekdays accepts 0..6 numbers (Sunday = 0), comma or semicolon
// separated.
func parseWeekdays(raw string) []int16 {
	var out []int16
	for _, p := range splitList(raw) {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 6 {
			continue
		}
		out = append(out, int16(n))
	}
	return out
}
