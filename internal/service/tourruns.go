package service

import (
	"context"
	"sort"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

// RunResolver groups bookings into tour runs. The availability-based
// booking model has no persisted schedule row, so the (tour, date,
// time) grouping is recomputed deterministically from bookings.
type RunResolver struct {
	Store ports.Repo
	Loc   *time.Location
	// MaxVehicleCapacity is the organization-wide ceiling used to derive
	// the minimum guide count for a run.
	MaxVehicleCapacity int
}

func (r *RunResolver) GetForDate(ctx context.Context, date string) ([]models.TourRun, error) {
	bookings, err := r.Store.BookingsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	tours, err := r.Store.ListTours(ctx)
	if err != nil {
		return nil, err
	}
	tourNames := make(map[string]string, len(tours))
	for _, t := range tours {
		tourNames[t.ID] = t.Name
	}

	grouped := map[models.RunKey][]models.Booking{}
	for _, b := range bookings {
		k := models.RunKey{TourID: b.TourID, Date: b.Date, Time: b.Time}
		grouped[k] = append(grouped[k], b)
	}

	runs := make([]models.TourRun, 0, len(grouped))
	for k, bs := range grouped {
		sort.Slice(bs, func(i, j int) bool { return bs[i].ID < bs[j].ID })
		run := models.TourRun{Key: k, TourName: tourNames[k.TourID], Bookings: bs}
		run.Departure, err = r.departure(k)
		if err != nil {
			return nil, err
		}
		for _, b := range bs {
			run.TotalGuests += b.Guests()
		}
		run.GuidesRequired = guidesRequired(bs, r.MaxVehicleCapacity)
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].Key.Time != runs[j].Key.Time {
			return runs[i].Key.Time < runs[j].Key.Time
		}
		return runs[i].Key.TourID < runs[j].Key.TourID
	})
	return runs, nil
}

func (r *RunResolver) Get(ctx context.Context, key models.RunKey) (models.TourRun, error) {
	runs, err := r.GetForDate(ctx, key.Date)
	if err != nil {
		return models.TourRun{}, err
	}
	for _, run := range runs {
		if run.Key == key {
			return run, nil
		}
	}
	return models.TourRun{}, notFound("tour run", key.String())
}

// ManifestEntry is one guest party on a run, with pickup details once
// a guide is assigned.
type ManifestEntry struct {
	BookingID    string     `json:"booking_id"`
	CustomerName string     `json:"customer_name"`
	Adults       int        `json:"adults"`
	Children     int        `json:"children"`
	Infants      int        `json:"infants"`
	IsPrivate    bool       `json:"is_private"`
	PickupName   string     `json:"pickup_name,omitempty"`
	Zone         string     `json:"zone,omitempty"`
	GuideID      string     `json:"guide_id,omitempty"`
	PickupTime   *time.Time `json:"pickup_time,omitempty"`
}

func (r *RunResolver) GetManifest(ctx context.Context, key models.RunKey) ([]ManifestEntry, error) {
	run, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	addrs, err := r.Store.ListPickupAddresses(ctx)
	if err != nil {
		return nil, err
	}
	addrByID := make(map[string]models.PickupAddress, len(addrs))
	for _, a := range addrs {
		addrByID[a.ID] = a
	}

	assignments, err := r.Store.AssignmentsForDate(ctx, key.Date)
	if err != nil {
		return nil, err
	}
	guideByBooking := map[string]string{}
	timeByBooking := map[string]time.Time{}
	for _, a := range assignments {
		if a.RunKey() != key {
			continue
		}
		pickups, err := r.Store.PickupsForAssignment(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range pickups {
			guideByBooking[p.BookingID] = a.GuideID
			timeByBooking[p.BookingID] = p.CalculatedTime
		}
	}

	out := make([]ManifestEntry, 0, len(run.Bookings))
	for _, b := range run.Bookings {
		e := ManifestEntry{
			BookingID:    b.ID,
			CustomerName: b.CustomerName,
			Adults:       b.Adults,
			Children:     b.Children,
			Infants:      b.Infants,
			IsPrivate:    b.IsPrivate,
		}
		if addr, ok := addrByID[b.PickupAddressID]; ok {
			e.PickupName = addr.Name
			e.Zone = addr.Zone
		}
		if gid, ok := guideByBooking[b.ID]; ok {
			e.GuideID = gid
			t := timeByBooking[b.ID]
			e.PickupTime = &t
		}
		out = append(out, e)
	}
	return out, nil
}

// CalculateGuidesRequired derives the minimum guide count for a run.
func (r *RunResolver) CalculateGuidesRequired(ctx context.Context, key models.RunKey) (int, error) {
	run, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return guidesRequired(run.Bookings, r.MaxVehicleCapacity), nil
}

// guidesRequired is ceiling division of total guests by the configured
// max vehicle capacity, bumped by one when any booking demands an
// exclusive vehicle.
func guidesRequired(bookings []models.Booking, maxCapacity int) int {
	if maxCapacity <= 0 || len(bookings) == 0 {
		return 0
	}
	total := 0
	anyPrivate := false
	for _, b := range bookings {
		total += b.Guests()
		if b.IsPrivate {
			anyPrivate = true
		}
	}
	n := (total + maxCapacity - 1) / maxCapacity
	if anyPrivate {
		n++
	}
	return n
}

func (r *RunResolver) departure(key models.RunKey) (time.Time, error) {
	loc := r.Loc
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", key.Date+" "+key.Time, loc)
	if err != nil {
		return time.Time{}, validationf("invalid run time %q %q", key.Date, key.Time)
	}
	return t, nil
}
