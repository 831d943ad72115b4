package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

// memStore is an in-memory ports.Store for tests. WithTx works
// copy-on-write: fn runs against a deep copy that replaces the live
// data only when fn succeeds, matching the rollback semantics of the
// real transaction.
type memStore struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	tours       map[string]models.Tour
	addrs       map[string]models.PickupAddress
	guides      map[string]models.Guide
	overrides   []models.AvailabilityOverride
	bookings    map[string]models.Booking
	assignments map[string]models.GuideAssignment
	pickups     map[string]models.PickupAssignment
	days        map[string]models.DispatchDay
	acks        map[string]models.WarningAck
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		tours:       map[string]models.Tour{},
		addrs:       map[string]models.PickupAddress{},
		guides:      map[string]models.Guide{},
		bookings:    map[string]models.Booking{},
		assignments: map[string]models.GuideAssignment{},
		pickups:     map[string]models.PickupAssignment{},
		days:        map[string]models.DispatchDay{},
		acks:        map[string]models.WarningAck{},
	}}
}

func (d *memData) clone() *memData {
	cp := &memData{
		tours:       make(map[string]models.Tour, len(d.tours)),
		addrs:       make(map[string]models.PickupAddress, len(d.addrs)),
		guides:      make(map[string]models.Guide, len(d.guides)),
		overrides:   append([]models.AvailabilityOverride(nil), d.overrides...),
		bookings:    make(map[string]models.Booking, len(d.bookings)),
		assignments: make(map[string]models.GuideAssignment, len(d.assignments)),
		pickups:     make(map[string]models.PickupAssignment, len(d.pickups)),
		days:        make(map[string]models.DispatchDay, len(d.days)),
		acks:        make(map[string]models.WarningAck, len(d.acks)),
	}
	for k, v := range d.tours {
		cp.tours[k] = v
	}
	for k, v := range d.addrs {
		cp.addrs[k] = v
	}
	for k, v := range d.guides {
		cp.guides[k] = v
	}
	for k, v := range d.bookings {
		cp.bookings[k] = v
	}
	for k, v := range d.assignments {
		cp.assignments[k] = v
	}
	for k, v := range d.pickups {
		cp.pickups[k] = v
	}
	for k, v := range d.days {
		cp.days[k] = v
	}
	for k, v := range d.acks {
		cp.acks[k] = v
	}
	return cp
}

func (s *memStore) WithTx(ctx context.Context, fn func(ports.Repo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.data.clone()
	if err := fn(memRepo{d: cp}); err != nil {
		return err
	}
	s.data = cp
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

// Reads and writes outside a transaction go straight to the live data.
func (s *memStore) repo() memRepo { return memRepo{d: s.data} }

func (s *memStore) ListTours(ctx context.Context) ([]models.Tour, error) {
	return s.repo().ListTours(ctx)
}
func (s *memStore) GetTour(ctx context.Context, id string) (*models.Tour, error) {
	return s.repo().GetTour(ctx, id)
}
func (s *memStore) ListPickupAddresses(ctx context.Context) ([]models.PickupAddress, error) {
	return s.repo().ListPickupAddresses(ctx)
}
func (s *memStore) GuidesForDate(ctx context.Context, date string) ([]models.Guide, error) {
	return s.repo().GuidesForDate(ctx, date)
}
func (s *memStore) GetGuide(ctx context.Context, id string) (*models.Guide, error) {
	return s.repo().GetGuide(ctx, id)
}
func (s *memStore) InsertGuide(ctx context.Context, g models.Guide) error {
	return s.repo().InsertGuide(ctx, g)
}
func (s *memStore) OverridesForDate(ctx context.Context, date string) ([]models.AvailabilityOverride, error) {
	return s.repo().OverridesForDate(ctx, date)
}
func (s *memStore) BookingsForDate(ctx context.Context, date string) ([]models.Booking, error) {
	return s.repo().BookingsForDate(ctx, date)
}
func (s *memStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo().GetBooking(ctx, id)
}
func (s *memStore) AssignmentsForDate(ctx context.Context, date string) ([]models.GuideAssignment, error) {
	return s.repo().AssignmentsForDate(ctx, date)
}
func (s *memStore) GetGuideAssignment(ctx context.Context, id string) (*models.GuideAssignment, error) {
	return s.repo().GetGuideAssignment(ctx, id)
}
func (s *memStore) InsertGuideAssignment(ctx context.Context, a models.GuideAssignment) error {
	return s.repo().InsertGuideAssignment(ctx, a)
}
func (s *memStore) DeleteGuideAssignment(ctx context.Context, id string) error {
	return s.repo().DeleteGuideAssignment(ctx, id)
}
func (s *memStore) PickupsForDate(ctx context.Context, date string) ([]models.PickupAssignment, error) {
	return s.repo().PickupsForDate(ctx, date)
}
func (s *memStore) PickupsForAssignment(ctx context.Context, gaID string) ([]models.PickupAssignment, error) {
	return s.repo().PickupsForAssignment(ctx, gaID)
}
func (s *memStore) GetPickupAssignment(ctx context.Context, id string) (*models.PickupAssignment, error) {
	return s.repo().GetPickupAssignment(ctx, id)
}
func (s *memStore) InsertPickupAssignment(ctx context.Context, p models.PickupAssignment) error {
	return s.repo().InsertPickupAssignment(ctx, p)
}
func (s *memStore) DeletePickupAssignment(ctx context.Context, id string) error {
	return s.repo().DeletePickupAssignment(ctx, id)
}
func (s *memStore) UpdatePickupPosition(ctx context.Context, id string, position int) error {
	return s.repo().UpdatePickupPosition(ctx, id, position)
}
func (s *memStore) UpdatePickupStatus(ctx context.Context, id string, status string, actualTime *time.Time) error {
	return s.repo().UpdatePickupStatus(ctx, id, status, actualTime)
}
func (s *memStore) UpdatePickupCalculatedTime(ctx context.Context, id string, calculated time.Time) error {
	return s.repo().UpdatePickupCalculatedTime(ctx, id, calculated)
}
func (s *memStore) GetDispatchDay(ctx context.Context, date string) (*models.DispatchDay, error) {
	return s.repo().GetDispatchDay(ctx, date)
}
func (s *memStore) SaveDispatchDay(ctx context.Context, day models.DispatchDay) error {
	return s.repo().SaveDispatchDay(ctx, day)
}
func (s *memStore) AcksForDate(ctx context.Context, date string) ([]models.WarningAck, error) {
	return s.repo().AcksForDate(ctx, date)
}
func (s *memStore) InsertWarningAck(ctx context.Context, ack models.WarningAck) error {
	return s.repo().InsertWarningAck(ctx, ack)
}
func (s *memStore) LockDate(ctx context.Context, date string) error { return nil }
func (s *memStore) TruncateData(ctx context.Context) error {
	return s.repo().TruncateData(ctx)
}
func (s *memStore) InsertTours(ctx context.Context, tours []models.Tour) (int64, error) {
	return s.repo().InsertTours(ctx, tours)
}
func (s *memStore) InsertPickupAddresses(ctx context.Context, addrs []models.PickupAddress) (int64, error) {
	return s.repo().InsertPickupAddresses(ctx, addrs)
}
func (s *memStore) InsertGuides(ctx context.Context, guides []models.Guide) (int64, error) {
	return s.repo().InsertGuides(ctx, guides)
}
func (s *memStore) InsertBookings(ctx context.Context, bookings []models.Booking) (int64, error) {
	return s.repo().InsertBookings(ctx, bookings)
}

type memRepo struct {
	d *memData
}

func (r memRepo) ListTours(ctx context.Context) ([]models.Tour, error) {
	out := make([]models.Tour, 0, len(r.d.tours))
	for _, t := range r.d.tours {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRepo) GetTour(ctx context.Context, id string) (*models.Tour, error) {
	if t, ok := r.d.tours[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r memRepo) ListPickupAddresses(ctx context.Context) ([]models.PickupAddress, error) {
	out := make([]models.PickupAddress, 0, len(r.d.addrs))
	for _, a := range r.d.addrs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRepo) GuidesForDate(ctx context.Context, date string) ([]models.Guide, error) {
	var out []models.Guide
	for _, g := range r.d.guides {
		if !g.Active {
			continue
		}
		if g.Kind == models.GuideKindSystem || (g.ValidOn != nil && *g.ValidOn == date) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRepo) GetGuide(ctx context.Context, id string) (*models.Guide, error) {
	if g, ok := r.d.guides[id]; ok {
		return &g, nil
	}
	return nil, nil
}

func (r memRepo) InsertGuide(ctx context.Context, g models.Guide) error {
	r.d.guides[g.ID] = g
	return nil
}

func (r memRepo) OverridesForDate(ctx context.Context, date string) ([]models.AvailabilityOverride, error) {
	var out []models.AvailabilityOverride
	for _, o := range r.d.overrides {
		if o.Date == date {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r memRepo) BookingsForDate(ctx context.Context, date string) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range r.d.bookings {
		if b.Date == date {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	if b, ok := r.d.bookings[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r memRepo) AssignmentsForDate(ctx context.Context, date string) ([]models.GuideAssignment, error) {
	var out []models.GuideAssignment
	for _, a := range r.d.assignments {
		if a.Date == date {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRepo) GetGuideAssignment(ctx context.Context, id string) (*models.GuideAssignment, error) {
	if a, ok := r.d.assignments[id]; ok {
		return &a, nil
	}
	return nil, nil
}

func (r memRepo) InsertGuideAssignment(ctx context.Context, a models.GuideAssignment) error {
	r.d.assignments[a.ID] = a
	return nil
}

func (r memRepo) DeleteGuideAssignment(ctx context.Context, id string) error {
	delete(r.d.assignments, id)
	return nil
}

func (r memRepo) PickupsForDate(ctx context.Context, date string) ([]models.PickupAssignment, error) {
	var out []models.PickupAssignment
	for _, p := range r.d.pickups {
		if a, ok := r.d.assignments[p.GuideAssignmentID]; ok && a.Date == date {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GuideAssignmentID != out[j].GuideAssignmentID {
			return out[i].GuideAssignmentID < out[j].GuideAssignmentID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (r memRepo) PickupsForAssignment(ctx context.Context, gaID string) ([]models.PickupAssignment, error) {
	var out []models.PickupAssignment
	for _, p := range r.d.pickups {
		if p.GuideAssignmentID == gaID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r memRepo) GetPickupAssignment(ctx context.Context, id string) (*models.PickupAssignment, error) {
	if p, ok := r.d.pickups[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r memRepo) InsertPickupAssignment(ctx context.Context, p models.PickupAssignment) error {
	r.d.pickups[p.ID] = p
	return nil
}

func (r memRepo) DeletePickupAssignment(ctx context.Context, id string) error {
	delete(r.d.pickups, id)
	return nil
}

func (r memRepo) UpdatePickupPosition(ctx context.Context, id string, position int) error {
	p := r.d.pickups[id]
	p.Position = position
	r.d.pickups[id] = p
	return nil
}

func (r memRepo) UpdatePickupStatus(ctx context.Context, id string, status string, actualTime *time.Time) error {
	p := r.d.pickups[id]
	p.Status = status
	p.ActualTime = actualTime
	r.d.pickups[id] = p
	return nil
}

func (r memRepo) UpdatePickupCalculatedTime(ctx context.Context, id string, calculated time.Time) error {
	p := r.d.pickups[id]
	p.CalculatedTime = calculated
	r.d.pickups[id] = p
	return nil
}

func (r memRepo) GetDispatchDay(ctx context.Context, date string) (*models.DispatchDay, error) {
	if d, ok := r.d.days[date]; ok {
		return &d, nil
	}
	return nil, nil
}

func (r memRepo) SaveDispatchDay(ctx context.Context, day models.DispatchDay) error {
	stored, ok := r.d.days[day.Date]
	if ok {
		if day.Version != stored.Version+1 {
			return ports.ErrVersionConflict
		}
	} else if day.Version != 1 {
		return ports.ErrVersionConflict
	}
	r.d.days[day.Date] = day
	return nil
}

func (r memRepo) AcksForDate(ctx context.Context, date string) ([]models.WarningAck, error) {
	var out []models.WarningAck
	for _, a := range r.d.acks {
		if a.Date == date {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarningID < out[j].WarningID })
	return out, nil
}

func (r memRepo) InsertWarningAck(ctx context.Context, ack models.WarningAck) error {
	r.d.acks[ack.Date+"|"+ack.WarningID] = ack
	return nil
}

func (r memRepo) LockDate(ctx context.Context, date string) error { return nil }

func (r memRepo) TruncateData(ctx context.Context) error {
	*r.d = *newMemStore().data
	return nil
}

func (r memRepo) InsertTours(ctx context.Context, tours []models.Tour) (int64, error) {
	for _, t := range tours {
		r.d.tours[t.ID] = t
	}
	return int64(len(tours)), nil
}

func (r memRepo) InsertPickupAddresses(ctx context.Context, addrs []models.PickupAddress) (int64, error) {
	for _, a := range addrs {
		r.d.addrs[a.ID] = a
	}
	return int64(len(addrs)), nil
}

func (r memRepo) InsertGuides(ctx context.Context, guides []models.Guide) (int64, error) {
	for _, g := range guides {
		r.d.guides[g.ID] = g
	}
	return int64(len(guides)), nil
}

func (r memRepo) InsertBookings(ctx context.Context, bookings []models.Booking) (int64, error) {
	for _, b := range bookings {
		r.d.bookings[b.ID] = b
	}
	return int64(len(bookings)), nil
}
