package service

import (
	"fmt"
	"sort"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/utils"
)

// Warnings are never persisted: they are recomputed from committed
// state on every status read. Identity is a deterministic hash of the
// warning's subject, so a recorded resolution keeps matching the same
// warning across recomputations.

var warningResolutions = map[string][]string{
	models.WarningUnassignedRun: {
		models.ResolutionAssignGuide, models.ResolutionAddExternal,
		models.ResolutionCancelTour, models.ResolutionAcknowledge,
	},
	models.WarningUnassignedBooking: {
		models.ResolutionAssignGuide, models.ResolutionAddExternal,
		models.ResolutionAcknowledge,
	},
	models.WarningOverCapacity: {
		models.ResolutionAssignGuide, models.ResolutionAddExternal,
		models.ResolutionAcknowledge,
	},
	models.WarningNoQualifiedGuide: {
		models.ResolutionAssignGuide, models.ResolutionAddExternal,
		models.ResolutionCancelTour, models.ResolutionAcknowledge,
	},
}

func NewWarning(wtype string, run models.RunKey, bookingID, guideID, message string) models.Warning {
	id := utils.HashStringToUint64(wtype + "|" + run.String() + "|" + bookingID + "|" + guideID)
	return models.Warning{
		ID:          fmt.Sprintf("wrn_%016x", id),
		Type:        wtype,
		Run:         run,
		BookingID:   bookingID,
		GuideID:     guideID,
		Message:     message,
		Resolutions: warningResolutions[wtype],
	}
}

// computeWarnings derives the outstanding problems for the snapshot's
// date. Acknowledged or otherwise resolved warnings are filtered out.
func (s *daySnapshot) computeWarnings() []models.Warning {
	var out []models.Warning

	for _, run := range s.runs {
		gas := s.assignmentsForRun(run.Key)
		if len(gas) == 0 {
			out = append(out, NewWarning(models.WarningUnassignedRun, run.Key, "", "",
				fmt.Sprintf("run %s %s has %d guests and no guide", run.TourName, run.Key.Time, run.TotalGuests)))
			continue
		}

		for _, b := range run.Bookings {
			if p, _ := s.activePickup(b.ID); p == nil {
				out = append(out, NewWarning(models.WarningUnassignedBooking, run.Key, b.ID, "",
					fmt.Sprintf("booking %s (%d guests) has no pickup assignment", b.ID, b.Guests())))
			}
		}

		for _, ga := range gas {
			g, ok := s.guides[ga.GuideID]
			if !ok {
				continue
			}
			if aboard := s.guestsAboard(ga.ID); aboard > g.VehicleCapacity {
				out = append(out, NewWarning(models.WarningOverCapacity, run.Key, "", ga.GuideID,
					fmt.Sprintf("guide %s carries %d guests over capacity %d", g.Name, aboard, g.VehicleCapacity)))
			}
			if !g.QualifiedFor(run.Key.TourID) {
				out = append(out, NewWarning(models.WarningNoQualifiedGuide, run.Key, "", ga.GuideID,
					fmt.Sprintf("guide %s is not qualified for tour %s", g.Name, run.TourName)))
			}
		}
	}

	filtered := out[:0]
	for _, w := range out {
		if _, resolved := s.acks[w.ID]; !resolved {
			filtered = append(filtered, w)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].ID < filtered[j].ID })
	return filtered
}
