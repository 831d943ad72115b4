package service

import (
	"context"
	"testing"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
)

func TestComputeAvailableWeeklyPattern(t *testing.T) {
	guides := []models.Guide{
		{ID: "g1", WeeklyDays: []int16{1, 3, 5}, Kind: models.GuideKindSystem, Active: true},
		{ID: "g2", WeeklyDays: []int16{0, 6}, Kind: models.GuideKindSystem, Active: true},
	}
	out := ComputeAvailable(guides, nil, 5)
	if len(out) != 1 || out[0].ID != "g1" {
		t.Fatalf("expected only g1 on weekday 5, got %+v", out)
	}
}

func TestComputeAvailableOverrideWinsBothWays(t *testing.T) {
	guides := []models.Guide{
		{ID: "g1", WeeklyDays: []int16{5}, Kind: models.GuideKindSystem, Active: true},
		{ID: "g2", WeeklyDays: []int16{2}, Kind: models.GuideKindSystem, Active: true},
	}
	overrides := []models.AvailabilityOverride{
		{GuideID: "g1", Date: testDate, IsAvailable: false},
		{GuideID: "g2", Date: testDate, IsAvailable: true},
	}
	out := ComputeAvailable(guides, overrides, 5)
	if len(out) != 1 || out[0].ID != "g2" {
		t.Fatalf("expected override to flip both guides, got %+v", out)
	}
}

func TestComputeAvailableAdHocGuidesAlwaysOn(t *testing.T) {
	date := testDate
	guides := []models.Guide{
		{ID: "g-temp", Kind: models.GuideKindTemp, ValidOn: &date, Active: true},
		{ID: "g-ext", Kind: models.GuideKindExternal, ValidOn: &date, Active: true},
		{ID: "g-off", Kind: models.GuideKindSystem, WeeklyDays: []int16{2}, Active: true},
	}
	out := ComputeAvailable(guides, nil, 5)
	if len(out) != 2 {
		t.Fatalf("expected temp and external guides, got %+v", out)
	}
}

func TestComputeAvailableInactiveSkipped(t *testing.T) {
	guides := []models.Guide{
		{ID: "g1", WeeklyDays: []int16{5}, Kind: models.GuideKindSystem, Active: false},
	}
	if out := ComputeAvailable(guides, nil, 5); len(out) != 0 {
		t.Fatalf("inactive guide should be excluded, got %+v", out)
	}
}

func TestGetAvailableGuides(t *testing.T) {
	s := newFixture()
	s.data.overrides = append(s.data.overrides, models.AvailabilityOverride{
		GuideID: "g-alex", Date: testDate, IsAvailable: false,
	})
	a := &Availability{Store: s}

	out, err := a.GetAvailableGuides(context.Background(), testDate)
	if err != nil {
		t.Fatalf("GetAvailableGuides: %v", err)
	}
	if len(out) != 1 || out[0].Guide.ID != "g-maria" {
		t.Fatalf("expected only g-maria, got %+v", out)
	}
	if out[0].VehicleCapacity != 8 {
		t.Fatalf("expected capacity 8, got %d", out[0].VehicleCapacity)
	}
}
