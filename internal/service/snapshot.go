package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

// daySnapshot is the in-memory view of one date's dispatch state. All
// validation (capacity, conflicts, warnings) runs against a snapshot
// loaded inside the same transaction that performs the writes.
type daySnapshot struct {
	date        string
	tours       map[string]models.Tour
	addrs       map[string]models.PickupAddress
	guides      map[string]models.Guide
	bookings    map[string]models.Booking
	runs        []models.TourRun
	overrides   []models.AvailabilityOverride
	assignments []models.GuideAssignment
	pickups     map[string][]models.PickupAssignment // by guide assignment id, position order
	acks        map[string]models.WarningAck         // by warning id
	day         *models.DispatchDay
	params      Params
}

// Params are the planning knobs shared across dispatch services.
type Params struct {
	OrgID                string
	Loc                  *time.Location
	MaxVehicleCapacity   int
	DefaultPickupMinutes int
	PickupWindowMinutes  int
	DriveBufferMinutes   int
}

func loadSnapshot(ctx context.Context, repo ports.Repo, date string, params Params) (*daySnapshot, error) {
	s := &daySnapshot{
		date:     date,
		tours:    map[string]models.Tour{},
		addrs:    map[string]models.PickupAddress{},
		guides:   map[string]models.Guide{},
		bookings: map[string]models.Booking{},
		pickups:  map[string][]models.PickupAssignment{},
		acks:     map[string]models.WarningAck{},
		params:   params,
	}

	tours, err := repo.ListTours(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range tours {
		s.tours[t.ID] = t
	}

	addrs, err := repo.ListPickupAddresses(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		s.addrs[a.ID] = a
	}

	guides, err := repo.GuidesForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, g := range guides {
		s.guides[g.ID] = g
	}

	s.overrides, err = repo.OverridesForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	resolver := &RunResolver{Store: repo, Loc: params.Loc, MaxVehicleCapacity: params.MaxVehicleCapacity}
	s.runs, err = resolver.GetForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, run := range s.runs {
		for _, b := range run.Bookings {
			s.bookings[b.ID] = b
		}
	}

	s.assignments, err = repo.AssignmentsForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, a := range s.assignments {
		ps, err := repo.PickupsForAssignment(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		s.pickups[a.ID] = ps
	}

	acks, err := repo.AcksForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, a := range acks {
		s.acks[a.WarningID] = a
	}

	s.day, err = repo.GetDispatchDay(ctx, date)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *daySnapshot) run(key models.RunKey) *models.TourRun {
	for i := range s.runs {
		if s.runs[i].Key == key {
			return &s.runs[i]
		}
	}
	return nil
}

func (s *daySnapshot) assignmentsForRun(key models.RunKey) []models.GuideAssignment {
	var out []models.GuideAssignment
	for _, a := range s.assignments {
		if a.RunKey() == key {
			out = append(out, a)
		}
	}
	return out
}

func (s *daySnapshot) assignment(id string) *models.GuideAssignment {
	for i := range s.assignments {
		if s.assignments[i].ID == id {
			return &s.assignments[i]
		}
	}
	return nil
}

func (s *daySnapshot) assignmentForGuideRun(guideID string, key models.RunKey) *models.GuideAssignment {
	for i := range s.assignments {
		if s.assignments[i].GuideID == guideID && s.assignments[i].RunKey() == key {
			return &s.assignments[i]
		}
	}
	return nil
}

// activePickup finds a booking's current pickup assignment anywhere on
// the date. A booking has at most one.
func (s *daySnapshot) activePickup(bookingID string) (*models.PickupAssignment, *models.GuideAssignment) {
	for i := range s.assignments {
		a := &s.assignments[i]
		for _, p := range s.pickups[a.ID] {
			if p.BookingID == bookingID {
				cp := p
				return &cp, a
			}
		}
	}
	return nil, nil
}

// guestsAboard sums real booking guest counts for a guide assignment.
func (s *daySnapshot) guestsAboard(gaID string) int {
	total := 0
	for _, p := range s.pickups[gaID] {
		if b, ok := s.bookings[p.BookingID]; ok {
			total += b.Guests()
		}
	}
	return total
}

// guideLoad is a guide's total committed guests across the whole date,
// used for load-balancing tie-breaks.
func (s *daySnapshot) guideLoad(guideID string) int {
	total := 0
	for _, a := range s.assignments {
		if a.GuideID == guideID {
			total += s.guestsAboard(a.ID)
		}
	}
	return total
}

// runWindow is the span a run occupies on a guide's day: pickups before
// departure, the tour itself, and a configurable drive buffer after.
func (s *daySnapshot) runWindow(key models.RunKey) (time.Time, time.Time, error) {
	loc := s.params.Loc
	if loc == nil {
		loc = time.UTC
	}
	dep, err := time.ParseInLocation("2006-01-02 15:04", key.Date+" "+key.Time, loc)
	if err != nil {
		return time.Time{}, time.Time{}, validationf("invalid run time %q %q", key.Date, key.Time)
	}
	duration := 0
	if t, ok := s.tours[key.TourID]; ok {
		duration = t.DurationMinutes
	}
	start := dep.Add(-time.Duration(s.params.PickupWindowMinutes) * time.Minute)
	end := dep.Add(time.Duration(duration+s.params.DriveBufferMinutes) * time.Minute)
	return start, end, nil
}

// hasConflict reports whether the guide already holds a run whose
// window overlaps the candidate run's window.
func (s *daySnapshot) hasConflict(guideID string, key models.RunKey) (bool, error) {
	start, end, err := s.runWindow(key)
	if err != nil {
		return false, err
	}
	for _, a := range s.assignments {
		if a.GuideID != guideID || a.RunKey() == key {
			continue
		}
		os, oe, err := s.runWindow(a.RunKey())
		if err != nil {
			return false, err
		}
		if start.Before(oe) && os.Before(end) {
			return true, nil
		}
	}
	return false, nil
}

// checkCanCarry validates guide existence, qualification, day
// availability, overlap conflicts, and vehicle capacity for adding
// extraGuests to the guide on the given run.
func (s *daySnapshot) checkCanCarry(guideID string, key models.RunKey, extraGuests int) error {
	g, ok := s.guides[guideID]
	if !ok {
		return notFound("guide", guideID)
	}
	if !g.QualifiedFor(key.TourID) {
		return conflictf("guide %s is not qualified for tour %s", guideID, key.TourID)
	}
	if !s.guideAvailable(guideID) {
		return conflictf("guide %s is not available on %s", guideID, s.date)
	}
	busy, err := s.hasConflict(guideID, key)
	if err != nil {
		return err
	}
	if busy {
		return conflictf("guide %s has a conflicting run at %s", guideID, key.Time)
	}
	aboard := 0
	if ga := s.assignmentForGuideRun(guideID, key); ga != nil {
		aboard = s.guestsAboard(ga.ID)
	}
	if aboard+extraGuests > g.VehicleCapacity {
		return conflictf("guide %s vehicle capacity %d exceeded: %d aboard + %d requested",
			guideID, g.VehicleCapacity, aboard, extraGuests)
	}
	return nil
}

// runBooking converts a booking into the engine's planning shape.
func (s *daySnapshot) runBooking(b models.Booking) RunBooking {
	rb := RunBooking{
		ID:            b.ID,
		Guests:        b.Guests(),
		Private:       b.IsPrivate,
		PickupMinutes: s.params.DefaultPickupMinutes,
	}
	if addr, ok := s.addrs[b.PickupAddressID]; ok {
		rb.Zone = addr.Zone
		rb.Lat = addr.Lat
		rb.Lon = addr.Lon
		rb.PickupName = addr.Name
		if addr.AvgPickupMinutes > 0 {
			rb.PickupMinutes = addr.AvgPickupMinutes
		}
	}
	return rb
}

// runGuides builds the engine's guide pool for one run.
func (s *daySnapshot) runGuides(key models.RunKey, available []models.Guide) ([]RunGuide, error) {
	out := make([]RunGuide, 0, len(available))
	for _, g := range available {
		busy, err := s.hasConflict(g.ID, key)
		if err != nil {
			return nil, err
		}
		out = append(out, RunGuide{
			ID:        g.ID,
			Name:      g.Name,
			Capacity:  g.VehicleCapacity,
			Load:      s.guideLoad(g.ID),
			Qualified: g.QualifiedFor(key.TourID),
			Busy:      busy,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *daySnapshot) dayStatus() string {
	if s.day == nil {
		return models.DispatchNotStarted
	}
	return s.day.Status
}

func (s *daySnapshot) version() int {
	if s.day == nil {
		return 0
	}
	return s.day.Version
}

// nextDay returns the aggregate advanced to the given status with the
// version token incremented; SaveDispatchDay rejects it if another
// writer got there first.
func (s *daySnapshot) nextDay(status string, dispatchedAt *time.Time) models.DispatchDay {
	return models.DispatchDay{
		Date:         s.date,
		Status:       status,
		Version:      s.version() + 1,
		DispatchedAt: dispatchedAt,
	}
}

func (s *daySnapshot) ensureMutable() error {
	if s.dayStatus() == models.DispatchDispatched {
		return conflictf("date %s is dispatched; reopen it before changing assignments", s.date)
	}
	return nil
}

// dropPickup removes a pickup from the in-memory view after a delete,
// keeping the snapshot usable for follow-up recalculation.
func (s *daySnapshot) dropPickup(gaID, pickupID string) {
	ps := s.pickups[gaID]
	out := ps[:0]
	for _, p := range ps {
		if p.ID != pickupID {
			out = append(out, p)
		}
	}
	s.pickups[gaID] = out
}

// removeAssignment drops an emptied guide assignment from the
// in-memory view after a delete.
func (s *daySnapshot) removeAssignment(gaID string) {
	out := s.assignments[:0]
	for _, a := range s.assignments {
		if a.ID != gaID {
			out = append(out, a)
		}
	}
	s.assignments = out
	delete(s.pickups, gaID)
}

// setOrder mirrors a committed reorder into the in-memory view.
func (s *daySnapshot) setOrder(gaID string, bookingOrder []string) {
	pos := make(map[string]int, len(bookingOrder))
	for i, id := range bookingOrder {
		pos[id] = i
	}
	ps := s.pickups[gaID]
	for i := range ps {
		ps[i].Position = pos[ps[i].BookingID]
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Position < ps[j].Position })
}

// orderedBookings returns a guide assignment's bookings in pickup order,
// converted to the engine's planning shape.
func (s *daySnapshot) orderedBookings(gaID string) []RunBooking {
	ps := append([]models.PickupAssignment(nil), s.pickups[gaID]...)
	sort.Slice(ps, func(i, j int) bool { return ps[i].Position < ps[j].Position })
	out := make([]RunBooking, 0, len(ps))
	for _, p := range ps {
		if b, ok := s.bookings[p.BookingID]; ok {
			out = append(out, s.runBooking(b))
		}
	}
	return out
}

// runGeometry returns the departure instant and meeting point for a run.
func (s *daySnapshot) runGeometry(key models.RunKey) (time.Time, float64, float64, error) {
	loc := s.params.Loc
	if loc == nil {
		loc = time.UTC
	}
	dep, err := time.ParseInLocation("2006-01-02 15:04", key.Date+" "+key.Time, loc)
	if err != nil {
		return time.Time{}, 0, 0, validationf("invalid run time %q %q", key.Date, key.Time)
	}
	t, ok := s.tours[key.TourID]
	if !ok {
		return time.Time{}, 0, 0, notFound("tour", key.TourID)
	}
	return dep, t.MeetingLat, t.MeetingLon, nil
}

func (s *daySnapshot) String() string {
	return fmt.Sprintf("snapshot[%s runs=%d assignments=%d]", s.date, len(s.runs), len(s.assignments))
}
