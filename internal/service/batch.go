package service

import (
	"context"
	"fmt"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

// BatchResult reports a committed batch. Applied equals the request
// length: a batch is all-or-nothing.
type BatchResult struct {
	Date    string `json:"date"`
	Applied int    `json:"applied"`
	Version int    `json:"version"`
}

// BatchApplyChanges applies a list of changes as one atomic unit inside
// a single transaction. Changes are validated up front, then applied in
// request order; the first failure rolls back the whole batch.
func (c *CommandCenter) BatchApplyChanges(ctx context.Context, date string, changes []models.Change) (BatchResult, error) {
	if len(changes) == 0 {
		return BatchResult{}, validationf("batch contains no changes")
	}
	for i, ch := range changes {
		if err := validateChange(ch); err != nil {
			return BatchResult{}, validationf("change %d: %v", i, err)
		}
	}

	var result BatchResult
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

		for i, ch := range changes {
			if err := c.applyChange(ctx, repo, snap, ch); err != nil {
				c.Logger.Debug().Str("date", date).Int("change", i).
					Str("type", ch.Type).Err(err).Msg("batch rolled back")
				// Keep the inner error's type: a capacity breach must
				// still surface as a conflict, not a validation error.
				return fmt.Errorf("change %d (%s): %w", i, ch.Type, err)
			}
			// Each change must see the previous change's effects.
			snap, err = loadSnapshot(ctx, repo, date, c.Params)
			if err != nil {
				return err
			}
		}

		if err := markDirty(ctx, repo, snap); err != nil {
			return err
		}
		result = BatchResult{Date: date, Applied: len(changes), Version: snap.version() + 1}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	c.Logger.Info().Str("date", date).Int("changes", result.Applied).Msg("batch applied")
	return result, nil
}

func validateChange(ch models.Change) error {
	switch ch.Type {
	case models.ChangeAssign, models.ChangeReassign:
		if ch.BookingID == "" || ch.GuideID == "" {
			return validationf("%s requires booking_id and guide_id", ch.Type)
		}
	case models.ChangeUnassign:
		if ch.BookingID == "" {
			return validationf("unassign requires booking_id")
		}
	case models.ChangeTimeShift:
		if ch.BookingID == "" {
			return validationf("time_shift requires booking_id")
		}
		if ch.MinutesDelta == 0 {
			return validationf("time_shift requires a non-zero minutes_delta")
		}
	default:
		return validationf("unknown change type %q", ch.Type)
	}
	return nil
}

func (c *CommandCenter) applyChange(ctx context.Context, repo ports.Repo, snap *daySnapshot, ch models.Change) error {
	switch ch.Type {
	case models.ChangeAssign:
		booking, ok := snap.bookings[ch.BookingID]
		if !ok {
			return notFound("booking", ch.BookingID)
		}
		if p, other := snap.activePickup(ch.BookingID); p != nil {
			return conflictf("booking %s is already assigned to guide %s", ch.BookingID, other.GuideID)
		}
		return c.assignBookingTx(ctx, repo, snap, booking, ch.GuideID)

	case models.ChangeUnassign:
		return c.unassignBookingTx(ctx, repo, snap, ch.BookingID)

	case models.ChangeReassign:
		booking, ok := snap.bookings[ch.BookingID]
		if !ok {
			return notFound("booking", ch.BookingID)
		}
		if err := c.unassignBookingTx(ctx, repo, snap, ch.BookingID); err != nil {
			return err
		}
		return c.assignBookingTx(ctx, repo, snap, booking, ch.GuideID)

	case models.ChangeTimeShift:
		p, _ := snap.activePickup(ch.BookingID)
		if p == nil {
			return notFound("pickup assignment for booking", ch.BookingID)
		}
		if p.Status != models.PickupStatusPending {
			return conflictf("pickup for booking %s is %s and can no longer be shifted", ch.BookingID, p.Status)
		}
		shifted := p.CalculatedTime.Add(time.Duration(ch.MinutesDelta) * time.Minute)
		return repo.UpdatePickupCalculatedTime(ctx, p.ID, shifted)

	default:
		return validationf("unknown change type %q", ch.Type)
	}
}
