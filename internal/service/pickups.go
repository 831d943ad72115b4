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

// Ledger owns the persisted pickup records: which guide collects which
// booking, in what order, at what computed time. Positions within a
// guide assignment always form a gapless 0..n-1 sequence.
type Ledger struct {
	Store  ports.Store
	Params Params
	Logger zerolog.Logger
}

type AssignPickupRequest struct {
	GuideAssignmentID string `json:"guide_assignment_id"`
	BookingID         string `json:"booking_id"`
	Position          *int   `json:"position,omitempty"`
}

func (l *Ledger) Assign(ctx context.Context, req AssignPickupRequest) (models.PickupAssignment, error) {
	var out models.PickupAssignment
	err := l.Store.WithTx(ctx, func(repo ports.Repo) error {
		ga, err := repo.GetGuideAssignment(ctx, req.GuideAssignmentID)
		if err != nil {
			return err
		}
		if ga == nil {
			return notFound("guide assignment", req.GuideAssignmentID)
		}
		if err := repo.LockDate(ctx, ga.Date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, ga.Date, l.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}

		booking, ok := snap.bookings[req.BookingID]
		if !ok {
			return notFound("booking", req.BookingID)
		}
		if booking.TourID != ga.TourID || booking.Time != ga.Time {
			return validationf("booking %s does not belong to run %s", req.BookingID, ga.RunKey().String())
		}
		if p, other := snap.activePickup(req.BookingID); p != nil {
			return conflictf("booking %s is already assigned to guide %s; unassign first",
				req.BookingID, other.GuideID)
		}
		if err := snap.checkCanCarry(ga.GuideID, ga.RunKey(), booking.Guests()); err != nil {
			return err
		}

		existing := snap.pickups[ga.ID]
		pos := len(existing)
		if req.Position != nil {
			pos = *req.Position
			if pos < 0 || pos > len(existing) {
				return validationf("position %d out of range 0..%d", pos, len(existing))
			}
		}

		// Shift trailing pickups to keep positions contiguous.
		for i := len(existing) - 1; i >= pos; i-- {
			if err := repo.UpdatePickupPosition(ctx, existing[i].ID, existing[i].Position+1); err != nil {
				return err
			}
		}

		out = models.PickupAssignment{
			ID:                uuid.NewString(),
			GuideAssignmentID: ga.ID,
			BookingID:         req.BookingID,
			Position:          pos,
			Status:            models.PickupStatusPending,
		}
		if err := repo.InsertPickupAssignment(ctx, out); err != nil {
			return err
		}
		if err := recalcAssignmentTimes(ctx, repo, snap, *ga); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
	if err != nil {
		return models.PickupAssignment{}, err
	}
	l.Logger.Info().Str("booking_id", req.BookingID).
		Str("guide_assignment_id", req.GuideAssignmentID).Msg("pickup assigned")
	return out, nil
}

// Unassign removes a pickup record and re-compacts the remaining
// positions for the guide.
func (l *Ledger) Unassign(ctx context.Context, pickupAssignmentID string) error {
	return l.Store.WithTx(ctx, func(repo ports.Repo) error {
		p, err := repo.GetPickupAssignment(ctx, pickupAssignmentID)
		if err != nil {
			return err
		}
		if p == nil {
			return notFound("pickup assignment", pickupAssignmentID)
		}
		ga, err := repo.GetGuideAssignment(ctx, p.GuideAssignmentID)
		if err != nil {
			return err
		}
		if ga == nil {
			return notFound("guide assignment", p.GuideAssignmentID)
		}
		if err := repo.LockDate(ctx, ga.Date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, ga.Date, l.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
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
		if err := recalcAssignmentTimes(ctx, repo, snap, *ga); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
}

// Reorder rewrites a guide's pickup order atomically. The booking id
// list must match the existing assignments exactly.
func (l *Ledger) Reorder(ctx context.Context, guideAssignmentID string, bookingOrder []string) error {
	return l.Store.WithTx(ctx, func(repo ports.Repo) error {
		ga, err := repo.GetGuideAssignment(ctx, guideAssignmentID)
		if err != nil {
			return err
		}
		if ga == nil {
			return notFound("guide assignment", guideAssignmentID)
		}
		if err := repo.LockDate(ctx, ga.Date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, ga.Date, l.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}

		existing := snap.pickups[ga.ID]
		if len(bookingOrder) != len(existing) {
			return validationf("reorder list has %d bookings, assignment has %d",
				len(bookingOrder), len(existing))
		}
		byBooking := make(map[string]models.PickupAssignment, len(existing))
		for _, p := range existing {
			byBooking[p.BookingID] = p
		}
		seen := map[string]bool{}
		for pos, bookingID := range bookingOrder {
			p, ok := byBooking[bookingID]
			if !ok {
				return validationf("booking %s is not assigned to guide assignment %s",
					bookingID, guideAssignmentID)
			}
			if seen[bookingID] {
				return validationf("booking %s appears twice in reorder list", bookingID)
			}
			seen[bookingID] = true
			if p.Position != pos {
				if err := repo.UpdatePickupPosition(ctx, p.ID, pos); err != nil {
					return err
				}
			}
		}
		snap.setOrder(ga.ID, bookingOrder)
		if err := recalcAssignmentTimes(ctx, repo, snap, *ga); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
}

// GhostPreviewRequest asks what a guide's pickup plan would look like
// with one extra booking inserted. Nothing is persisted.
type GhostPreviewRequest struct {
	GuideAssignmentID string `json:"guide_assignment_id"`
	BookingID         string `json:"booking_id"`
	Position          *int   `json:"position,omitempty"`
}

type GhostPreview struct {
	GuideID  string           `json:"guide_id"`
	Capacity int              `json:"capacity"`
	Guests   int              `json:"guests"`
	Fits     bool             `json:"fits"`
	Pickups  []ProposedPickup `json:"pickups"`
}

func (l *Ledger) CalculateGhostPreview(ctx context.Context, req GhostPreviewRequest) (GhostPreview, error) {
	ga, err := l.Store.GetGuideAssignment(ctx, req.GuideAssignmentID)
	if err != nil {
		return GhostPreview{}, err
	}
	if ga == nil {
		return GhostPreview{}, notFound("guide assignment", req.GuideAssignmentID)
	}
	snap, err := loadSnapshot(ctx, l.Store, ga.Date, l.Params)
	if err != nil {
		return GhostPreview{}, err
	}
	booking, ok := snap.bookings[req.BookingID]
	if !ok {
		return GhostPreview{}, notFound("booking", req.BookingID)
	}

	ordered := snap.orderedBookings(ga.ID)
	ghost := snap.runBooking(booking)
	pos := len(ordered)
	if req.Position != nil && *req.Position >= 0 && *req.Position < len(ordered) {
		pos = *req.Position
	}
	ordered = append(ordered[:pos:pos], append([]RunBooking{ghost}, ordered[pos:]...)...)

	departure, meetingLat, meetingLon, err := snap.runGeometry(ga.RunKey())
	if err != nil {
		return GhostPreview{}, err
	}
	times := pickupTimes(ordered, departure, meetingLat, meetingLon)

	guide := snap.guides[ga.GuideID]
	guests := snap.guestsAboard(ga.ID) + booking.Guests()
	preview := GhostPreview{
		GuideID:  ga.GuideID,
		Capacity: guide.VehicleCapacity,
		Guests:   guests,
		Fits:     guests <= guide.VehicleCapacity,
	}
	for i, b := range ordered {
		preview.Pickups = append(preview.Pickups, ProposedPickup{
			BookingID:  b.ID,
			Position:   i,
			PickupTime: times[i],
		})
	}
	return preview, nil
}

// MarkPickedUp transitions a pending pickup to picked_up. Terminal
// states only change via the check-in layer's explicit undo, which is
// outside this core.
func (l *Ledger) MarkPickedUp(ctx context.Context, pickupAssignmentID string, at time.Time) error {
	return l.transition(ctx, pickupAssignmentID, models.PickupStatusPickedUp, &at)
}

func (l *Ledger) MarkNoShow(ctx context.Context, pickupAssignmentID string) error {
	return l.transition(ctx, pickupAssignmentID, models.PickupStatusNoShow, nil)
}

func (l *Ledger) transition(ctx context.Context, id, status string, actual *time.Time) error {
	return l.Store.WithTx(ctx, func(repo ports.Repo) error {
		p, err := repo.GetPickupAssignment(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return notFound("pickup assignment", id)
		}
		if p.Status != models.PickupStatusPending {
			return conflictf("pickup %s is already %s", id, p.Status)
		}
		return repo.UpdatePickupStatus(ctx, id, status, actual)
	})
}

// UpdatePickupTime sets a pickup's calculated time directly (operator
// nudge outside the computed plan).
func (l *Ledger) UpdatePickupTime(ctx context.Context, pickupAssignmentID string, t time.Time) error {
	return l.Store.WithTx(ctx, func(repo ports.Repo) error {
		p, err := repo.GetPickupAssignment(ctx, pickupAssignmentID)
		if err != nil {
			return err
		}
		if p == nil {
			return notFound("pickup assignment", pickupAssignmentID)
		}
		if p.Status != models.PickupStatusPending {
			return conflictf("pickup %s is already %s", pickupAssignmentID, p.Status)
		}
		ga, err := repo.GetGuideAssignment(ctx, p.GuideAssignmentID)
		if err != nil {
			return err
		}
		if ga == nil {
			return notFound("guide assignment", p.GuideAssignmentID)
		}
		if err := repo.LockDate(ctx, ga.Date); err != nil {
			return err
		}
		snap, err := loadSnapshot(ctx, repo, ga.Date, l.Params)
		if err != nil {
			return err
		}
		if err := snap.ensureMutable(); err != nil {
			return err
		}
		if err := repo.UpdatePickupCalculatedTime(ctx, pickupAssignmentID, t); err != nil {
			return err
		}
		return markDirty(ctx, repo, snap)
	})
}

// recalcAssignmentTimes rewrites calculated pickup times for a guide
// assignment from its current position order.
func recalcAssignmentTimes(ctx context.Context, repo ports.Repo, snap *daySnapshot, ga models.GuideAssignment) error {
	ps, err := repo.PickupsForAssignment(ctx, ga.ID)
	if err != nil {
		return err
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Position < ps[j].Position })

	ordered := make([]RunBooking, 0, len(ps))
	for _, p := range ps {
		b, ok := snap.bookings[p.BookingID]
		if !ok {
			return notFound("booking", p.BookingID)
		}
		ordered = append(ordered, snap.runBooking(b))
	}
	departure, meetingLat, meetingLon, err := snap.runGeometry(ga.RunKey())
	if err != nil {
		return err
	}
	times := pickupTimes(ordered, departure, meetingLat, meetingLon)
	for i, p := range ps {
		if !p.CalculatedTime.Equal(times[i]) {
			if err := repo.UpdatePickupCalculatedTime(ctx, p.ID, times[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// markDirty advances not_started days to in_progress and increments the
// concurrency token on every write path.
func markDirty(ctx context.Context, repo ports.Repo, snap *daySnapshot) error {
	status := snap.dayStatus()
	if status == models.DispatchNotStarted {
		status = models.DispatchInProgress
	}
	var dispatchedAt *time.Time
	if snap.day != nil {
		dispatchedAt = snap.day.DispatchedAt
	}
	return repo.SaveDispatchDay(ctx, snap.nextDay(status, dispatchedAt))
}
