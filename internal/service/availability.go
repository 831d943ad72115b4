package service

import (
	"context"
	"sort"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

// Availability resolves which guides are schedulable on a date: weekly
// recurring pattern plus date overrides. An is_available=false override
// removes a guide regardless of pattern; is_available=true adds one the
// pattern would skip. Guides committed to other runs that day are NOT
// filtered out here; overlap is enforced per run by the conflict rule.
type Availability struct {
	Store ports.Repo
}

type AvailableGuide struct {
	Guide           models.Guide `json:"guide"`
	VehicleCapacity int          `json:"vehicle_capacity"`
}

func (a *Availability) GetAvailableGuides(ctx context.Context, date string) ([]AvailableGuide, error) {
	guides, err := a.Store.GuidesForDate(ctx, date)
	if err != nil {
		return nil, err
	}
	overrides, err := a.Store.OverridesForDate(ctx, date)
	if err != nil {
		return nil, err
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, validationf("invalid date %q", date)
	}

	avail := ComputeAvailable(guides, overrides, int16(day.Weekday()))
	out := make([]AvailableGuide, 0, len(avail))
	for _, g := range avail {
		out = append(out, AvailableGuide{Guide: g, VehicleCapacity: g.VehicleCapacity})
	}
	return out, nil
}

// ComputeAvailable applies the pattern+override rules. No guides
// configured yields an empty set, not an error.
func ComputeAvailable(guides []models.Guide, overrides []models.AvailabilityOverride, weekday int16) []models.Guide {
	byGuide := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		byGuide[o.GuideID] = o.IsAvailable
	}

	out := make([]models.Guide, 0, len(guides))
	for _, g := range guides {
		if !g.Active {
			continue
		}
		available := false
		switch g.Kind {
		case models.GuideKindTemp, models.GuideKindExternal:
			// Ad-hoc guides exist only for their date and are always on.
			available = true
		default:
			for _, d := range g.WeeklyDays {
				if d == weekday {
					available = true
					break
				}
			}
		}
		if ov, ok := byGuide[g.ID]; ok {
			available = ov
		}
		if available {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
