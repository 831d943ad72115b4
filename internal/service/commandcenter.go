package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

// EventPublisher is the boundary to the external notification pipeline.
// Publishing is best-effort: a failed publish never undoes a dispatch.
type EventPublisher interface {
	PublishDispatchCompleted(ctx context.Context, ev models.DispatchCompletedEvent) error
}

// CommandCenter is the per-day dispatch orchestrator and the sole
// writer of guide/pickup assignment state. Every mutation runs inside
// one transaction holding the per-date advisory lock, so concurrent
// operators cannot interleave partial day states.
type CommandCenter struct {
	Store     ports.Store
	Publisher EventPublisher
	Logger    zerolog.Logger
	Params    Params
}

func (c *CommandCenter) GetDispatchStatus(ctx context.Context, date string) (models.DispatchStatus, error) {
	snap, err := loadSnapshot(ctx, c.Store, date, c.Params)
	if err != nil {
		return models.DispatchStatus{}, err
	}
	return snap.status(), nil
}

func (s *daySnapshot) status() models.DispatchStatus {
	st := models.DispatchStatus{
		Date:     s.date,
		Status:   s.dayStatus(),
		Version:  s.version(),
		Warnings: s.computeWarnings(),
	}
	guides := map[string]bool{}
	for _, run := range s.runs {
		st.TotalRuns++
		st.TotalGuests += run.TotalGuests
		if len(s.assignmentsForRun(run.Key)) > 0 {
			st.AssignedRuns++
		}
	}
	for _, a := range s.assignments {
		guides[a.GuideID] = true
		st.AssignedGuests += s.guestsAboard(a.ID)
	}
	st.TotalGuides = len(guides)
	return st
}

// RunView is the per-run projection the operator dashboard renders.
type RunView struct {
	Run         models.TourRun   `json:"run"`
	Assignments []AssignmentView `json:"assignments"`
}

type AssignmentView struct {
	Assignment models.GuideAssignment    `json:"assignment"`
	GuideName  string                    `json:"guide_name"`
	Capacity   int                       `json:"capacity"`
	Guests     int                       `json:"guests"`
	Pickups    []models.PickupAssignment `json:"pickups"`
}

func (c *CommandCenter) GetTourRuns(ctx context.Context, date string) ([]RunView, error) {
	snap, err := loadSnapshot(ctx, c.Store, date, c.Params)
	if err != nil {
		return nil, err
	}
	out := make([]RunView, 0, len(snap.runs))
	for _, run := range snap.runs {
		view := RunView{Run: run}
		for _, ga := range snap.assignmentsForRun(run.Key) {
			g := snap.guides[ga.GuideID]
			view.Assignments = append(view.Assignments, AssignmentView{
				Assignment: ga,
				GuideName:  g.Name,
				Capacity:   g.VehicleCapacity,
				Guests:     snap.guestsAboard(ga.ID),
				Pickups:    snap.pickups[ga.ID],
			})
		}
		out = append(out, view)
	}
	return out, nil
}

// OptimizeResult reports what the engine proposed and committed per run.
type OptimizeResult struct {
	Date string              `json:"date"`
	Runs []RunOptimizeResult `json:"runs"`
}

type RunOptimizeResult struct {
	Run      models.RunKey    `json:"run"`
	Assigned int              `json:"assigned_bookings"`
	Warnings []models.Warning `json:"warnings"`
}

// Optimize runs the auto-assignment engine for every run of the date
// and commits all proposals in one transaction: if any run's commit
// fails, every run's changes roll back together.
func (c *CommandCenter) Optimize(ctx context.Context, date string) (OptimizeResult, error) {
	result := OptimizeResult{Date: date}
	err := c.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.LockDate(ctx, date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, date, c.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}
		if len(snap.runs) == 0 {
			return nil
		}

		for _, run := range snap.runs {
			var unassigned []RunBooking
			for _, b := range run.Bookings {
				if p, _ := snap.activePickup(b.ID); p == nil {
					unassigned = append(unassigned, snap.runBooking(b))
				}
			}
			runResult := RunOptimizeResult{Run: run.Key}
			if len(unassigned) == 0 {
				result.Runs = append(result.Runs, runResult)
				continue
			}

			guides, err := snap.runGuides(run.Key, snap.availableGuides())
			if err != nil {
				return err
			}
			departure, meetingLat, meetingLon, err := snap.runGeometry(run.Key)
			if err != nil {
				return err
			}
			prop := BuildProposal(run.Key, departure, meetingLat, meetingLon, unassigned, guides)
			runResult.Warnings = prop.Warnings

			for _, pa := range prop.Assignments {
				for _, pickup := range pa.Pickups {
					booking := snap.bookings[pickup.BookingID]
					if err := c.assignBookingTx(ctx, repo, snap, booking, pa.GuideID); err != nil {
						return err
					}
					runResult.Assigned++
				}
			}
			result.Runs = append(result.Runs, runResult)

			// Later runs must see this run's commitments for load and
			// conflict checks.
			snap, err = loadSnapshot(ctx, repo, date, c.Params)
			if err != nil {
				return err
			}
		}
		return markDirty(ctx, repo, snap)
	})
	if err != nil {
		return OptimizeResult{}, err
	}
	c.Logger.Info().Str("date", date).Int("runs", len(result.Runs)).Msg("optimize committed")
	return result, nil
}

// ManualAssign puts one booking on one guide, validated against the
// same capacity/availability rules the engine uses.
func (c *CommandCenter) ManualAssign(ctx context.Context, date, bookingID, guideID string) error {
	err := c.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.LockDate(ctx, date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, date, c.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}
		booking, ok := snap.bookings[bookingID]
		if !ok {
			return notFound("booking", bookingID)
		}
		if p, other := snap.activePickup(bookingID); p != nil {
			return conflictf("booking %s is already assigned to guide %s", bookingID, other.GuideID)
		}
		if err := c.assignBookingTx(ctx, repo, snap, booking, guideID); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
	if err == nil {
		c.Logger.Info().Str("date", date).Str("booking_id", bookingID).
			Str("guide_id", guideID).Msg("manual assign")
	}
	return err
}

// UnassignBooking removes a booking's pickup; an emptied guide
// assignment is removed with it.
func (c *CommandCenter) UnassignBooking(ctx context.Context, date, bookingID string) error {
	return c.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.LockDate(ctx, date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, date, c.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}
		if err := c.unassignBookingTx(ctx, repo, snap, bookingID); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
}

// CreateTempGuideForDate registers an ad-hoc guide usable like a system
// guide for that date only.
func (c *CommandCenter) CreateTempGuideForDate(ctx context.Context, date, name, phone string, capacity int) (models.Guide, error) {
	if name == "" {
		return models.Guide{}, validationf("temp guide name is required")
	}
	if capacity <= 0 {
		capacity = c.Params.MaxVehicleCapacity
	}
	g := models.Guide{
		ID:              uuid.NewString(),
		Name:            name,
		Phone:           phone,
		VehicleCapacity: capacity,
		Kind:            models.GuideKindTemp,
		ValidOn:         &date,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.Store.InsertGuide(ctx, g); err != nil {
		return models.Guide{}, err
	}
	c.Logger.Info().Str("date", date).Str("guide_id", g.ID).Msg("temp guide created")
	return g, nil
}

// AddOutsourcedGuideToRun registers an external (non-system) guide,
// identified by name and contact only, and commits them to a run.
func (c *CommandCenter) AddOutsourcedGuideToRun(ctx context.Context, key models.RunKey, name, phone string, capacity int) (models.Guide, error) {
	if name == "" {
		return models.Guide{}, validationf("outsourced guide name is required")
	}
	if capacity <= 0 {
		capacity = c.Params.MaxVehicleCapacity
	}
	g := models.Guide{
		ID:              uuid.NewString(),
		Name:            name,
		Phone:           phone,
		VehicleCapacity: capacity,
		Kind:            models.GuideKindExternal,
		ValidOn:         &key.Date,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}
	err := c.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.LockDate(ctx, key.Date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, key.Date, c.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}
		if snap.run(key) == nil {
			return notFound("tour run", key.String())
		}
		if err := repo.InsertGuide(ctx, g); err != nil {
			return err
		}
		ga := models.GuideAssignment{
			ID:        uuid.NewString(),
			GuideID:   g.ID,
			TourID:    key.TourID,
			Date:      key.Date,
			Time:      key.Time,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.InsertGuideAssignment(ctx, ga); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
	if err != nil {
		return models.Guide{}, err
	}
	return g, nil
}

// ResolveWarningRequest names the warning and the chosen action plus
// the action's inputs.
type ResolveWarningRequest struct {
	WarningID string `json:"warning_id" binding:"required"`
	Action    string `json:"action" binding:"required"`
	GuideID   string `json:"guide_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Capacity  int    `json:"capacity"`
}

// ResolveWarning applies one of a warning's offered resolution actions
// and records the acknowledgement so the warning stops being reported.
func (c *CommandCenter) ResolveWarning(ctx context.Context, date string, req ResolveWarningRequest) error {
	return c.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.LockDate(ctx, date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, date, c.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}

		var warning *models.Warning
		for _, w := range snap.computeWarnings() {
			if w.ID == req.WarningID {
				cp := w
				warning = &cp
				break
			}
		}
		if warning == nil {
			return notFound("warning", req.WarningID)
		}
		allowed := false
		for _, r := range warning.Resolutions {
			if r == req.Action {
				allowed = true
				break
			}
		}
		if !allowed {
			return validationf("action %q is not a valid resolution for warning type %q", req.Action, warning.Type)
		}

		switch req.Action {
		case models.ResolutionAssignGuide:
			if req.GuideID == "" {
				return validationf("assign_guide requires guide_id")
			}
			if warning.BookingID != "" {
				booking, ok := snap.bookings[warning.BookingID]
				if !ok {
					return notFound("booking", warning.BookingID)
				}
				if err := c.assignBookingTx(ctx, repo, snap, booking, req.GuideID); err != nil {
					return err
				}
			} else {
				run := snap.run(warning.Run)
				if run == nil {
					return notFound("tour run", warning.Run.String())
				}
				for _, b := range run.Bookings {
					if p, _ := snap.activePickup(b.ID); p != nil {
						continue
					}
					if err := c.assignBookingTx(ctx, repo, snap, b, req.GuideID); err != nil {
						return err
					}
				}
			}

		case models.ResolutionAddExternal:
			if req.Name == "" {
				return validationf("add_external requires a guide name")
			}
			capacity := req.Capacity
			if capacity <= 0 {
				capacity = c.Params.MaxVehicleCapacity
			}
			g := models.Guide{
				ID:              uuid.NewString(),
				Name:            req.Name,
				Phone:           req.Phone,
				VehicleCapacity: capacity,
				Kind:            models.GuideKindExternal,
				ValidOn:         &date,
				Active:          true,
				CreatedAt:       time.Now().UTC(),
			}
			if err := repo.InsertGuide(ctx, g); err != nil {
				return err
			}
			snap.guides[g.ID] = g
			ga := models.GuideAssignment{
				ID:        uuid.NewString(),
				GuideID:   g.ID,
				TourID:    warning.Run.TourID,
				Date:      warning.Run.Date,
				Time:      warning.Run.Time,
				CreatedAt: time.Now().UTC(),
			}
			if err := repo.InsertGuideAssignment(ctx, ga); err != nil {
				return err
			}
			snap.assignments = append(snap.assignments, ga)
			if warning.BookingID != "" {
				booking, ok := snap.bookings[warning.BookingID]
				if !ok {
					return notFound("booking", warning.BookingID)
				}
				p := models.PickupAssignment{
					ID:                uuid.NewString(),
					GuideAssignmentID: ga.ID,
					BookingID:         booking.ID,
					Position:          0,
					Status:            models.PickupStatusPending,
				}
				if err := repo.InsertPickupAssignment(ctx, p); err != nil {
					return err
				}
				snap.pickups[ga.ID] = append(snap.pickups[ga.ID], p)
				if err := recalcAssignmentTimes(ctx, repo, snap, ga); err != nil {
					return err
				}
			}

		case models.ResolutionCancelTour:
			// Cancelling a run releases its guides; bookings stay and the
			// ack below suppresses the run's warning.
			for _, ga := range snap.assignmentsForRun(warning.Run) {
				for _, p := range snap.pickups[ga.ID] {
					if err := repo.DeletePickupAssignment(ctx, p.ID); err != nil {
						return err
					}
				}
				if err := repo.DeleteGuideAssignment(ctx, ga.ID); err != nil {
					return err
				}
				snap.removeAssignment(ga.ID)
			}

		case models.ResolutionAcknowledge:
			// Record only.

		default:
			return validationf("unknown resolution action %q", req.Action)
		}

		if err := repo.InsertWarningAck(ctx, models.WarningAck{
			Date:       date,
			WarningID:  warning.ID,
			Resolution: req.Action,
			CreatedAt:  time.Now().UTC(),
		}); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
}

// Dispatch finalizes a date: allowed only when every run either has a
// guide or carries an acknowledged warning. Assignments become
// immutable until an explicit reopen.
func (c *CommandCenter) Dispatch(ctx context.Context, date string) (models.DispatchStatus, error) {
	var status models.DispatchStatus
	var ev models.DispatchCompletedEvent
	err := c.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.LockDate(ctx, date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, date, c.Params)
		if err != nil {
			return err
		}
		if snap.dayStatus() == models.DispatchDispatched {
			return conflictf("date %s is already dispatched", date)
		}
		for _, run := range snap.runs {
			if len(snap.assignmentsForRun(run.Key)) > 0 {
				continue
			}
			w := NewWarning(models.WarningUnassignedRun, run.Key, "", "", "")
			if _, acked := snap.acks[w.ID]; !acked {
				return conflictf("run %s at %s has no guide and no acknowledged warning",
					run.Key.TourID, run.Key.Time)
			}
		}

		now := time.Now().UTC()
		if err := repo.SaveDispatchDay(ctx, snap.nextDay(models.DispatchDispatched, &now)); err != nil {
			return err
		}
		snap.day = &models.DispatchDay{
			Date: date, Status: models.DispatchDispatched,
			Version: snap.version() + 1, DispatchedAt: &now,
		}
		status = snap.status()
		ev = models.DispatchCompletedEvent{
			OrgID:        c.Params.OrgID,
			Date:         date,
			Runs:         status.TotalRuns,
			Guides:       status.TotalGuides,
			DispatchedAt: now,
		}
		return nil
	})
	if err != nil {
		return models.DispatchStatus{}, err
	}

	// Best effort: the dispatch record is the source of truth; a publish
	// failure is logged, never propagated.
	if c.Publisher != nil {
		if perr := c.Publisher.PublishDispatchCompleted(ctx, ev); perr != nil {
			c.Logger.Error().Err(perr).Str("date", date).Msg("dispatch.completed publish failed")
		}
	}
	c.Logger.Info().Str("date", date).Msg("day dispatched")
	return status, nil
}

// Reopen returns a dispatched day to in_progress so assignments can be
// corrected.
func (c *CommandCenter) Reopen(ctx context.Context, date string) error {
	return c.Store.WithTx(ctx, func(repo ports.Repo) error {
		if err := repo.LockDate(ctx, date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, date, c.Params)
		if err != nil {
			return err
		}
		if snap.dayStatus() != models.DispatchDispatched {
			return conflictf("date %s is not dispatched", date)
		}
		return repo.SaveDispatchDay(ctx, snap.nextDay(models.DispatchInProgress, nil))
	})
}

// GetSuggestions ranks guides for one unplaced (or to-be-moved) booking.
func (c *CommandCenter) GetSuggestions(ctx context.Context, date, bookingID string) ([]Suggestion, error) {
	snap, err := loadSnapshot(ctx, c.Store, date, c.Params)
	if err != nil {
		return nil, err
	}
	booking, ok := snap.bookings[bookingID]
	if !ok {
		return nil, notFound("booking", bookingID)
	}
	key := models.RunKey{TourID: booking.TourID, Date: booking.Date, Time: booking.Time}
	rb := snap.runBooking(booking)

	guides, err := snap.runGuides(key, snap.availableGuides())
	if err != nil {
		return nil, err
	}
	candidates := make([]CandidateGuide, 0, len(guides))
	for _, g := range guides {
		cand := CandidateGuide{RunGuide: g, Remaining: g.Capacity}
		if ga := snap.assignmentForGuideRun(g.ID, key); ga != nil {
			cand.Remaining = g.Capacity - snap.guestsAboard(ga.ID)
			for _, ob := range snap.orderedBookings(ga.ID) {
				if ob.Zone == rb.Zone {
					cand.ZoneMatch = true
					break
				}
			}
		}
		candidates = append(candidates, cand)
	}
	return SuggestGuides(rb, candidates), nil
}

// assignBookingTx appends one booking to a guide's pickups for the
// booking's run, creating the guide assignment if needed. Callers hold
// the date lock.
func (c *CommandCenter) assignBookingTx(ctx context.Context, repo ports.Repo, snap *daySnapshot, booking models.Booking, guideID string) error {
	key := models.RunKey{TourID: booking.TourID, Date: booking.Date, Time: booking.Time}
	if err := snap.checkCanCarry(guideID, key, booking.Guests()); err != nil {
		return err
	}

	ga := snap.assignmentForGuideRun(guideID, key)
	if ga == nil {
		created := models.GuideAssignment{
			ID:        uuid.NewString(),
			GuideID:   guideID,
			TourID:    key.TourID,
			Date:      key.Date,
			Time:      key.Time,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.InsertGuideAssignment(ctx, created); err != nil {
			return err
		}
		snap.assignments = append(snap.assignments, created)
		ga = &snap.assignments[len(snap.assignments)-1]
	}

	p := models.PickupAssignment{
		ID:                uuid.NewString(),
		GuideAssignmentID: ga.ID,
		BookingID:         booking.ID,
		Position:          len(snap.pickups[ga.ID]),
		Status:            models.PickupStatusPending,
	}
	if err := repo.InsertPickupAssignment(ctx, p); err != nil {
		return err
	}
	snap.pickups[ga.ID] = append(snap.pickups[ga.ID], p)
	return recalcAssignmentTimes(ctx, repo, snap, *ga)
}

// unassignBookingTx removes a booking's pickup, compacts positions, and
// drops the guide assignment when it empties.
func (c *CommandCenter) unassignBookingTx(ctx context.Context, repo ports.Repo, snap *daySnapshot, bookingID string) error {
	p, ga := snap.activePickup(bookingID)
	if p == nil {
		return notFound("pickup assignment for booking", bookingID)
	}
	if err := repo.DeletePickupAssignment(ctx, p.ID); err != nil {
		return err
	}
	for _, other := range snap.pickups[ga.ID] {
		if other.Position > p.Position {
			if err := repo.UpdatePickupPosition(ctx, other.ID, other.Position-1); err != nil {
				return err
			}
		}
	}
	snap.dropPickup(ga.ID, p.ID)
	for i := range snap.pickups[ga.ID] {
		if snap.pickups[ga.ID][i].Position > p.Position {
			snap.pickups[ga.ID][i].Position--
		}
	}
	if len(snap.pickups[ga.ID]) == 0 {
		if err := repo.DeleteGuideAssignment(ctx, ga.ID); err != nil {
			return err
		}
		snap.removeAssignment(ga.ID)
		return nil
	}
	return recalcAssignmentTimes(ctx, repo, snap, *ga)
}

// guideAvailable reports whether the pattern + override rules schedule
// the guide on the snapshot's date.
func (s *daySnapshot) guideAvailable(guideID string) bool {
	for _, g := range s.availableGuides() {
		if g.ID == guideID {
			return true
		}
	}
	return false
}

// availableGuides applies the weekly pattern + override rules to the
// snapshot's guide roster.
func (s *daySnapshot) availableGuides() []models.Guide {
	day, err := time.Parse("2006-01-02", s.date)
	if err != nil {
		return nil
	}
	guides := make([]models.Guide, 0, len(s.guides))
	for _, g := range s.guides {
		guides = append(guides, g)
	}
	sort.Slice(guides, func(i, j int) bool { return guides[i].ID < guides[j].ID })
	return ComputeAvailable(guides, s.overrides, int16(day.Weekday()))
}
