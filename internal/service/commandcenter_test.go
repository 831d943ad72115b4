package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
)

type capturePublisher struct {
	events []models.DispatchCompletedEvent
	err    error
}

func (p *capturePublisher) PublishDispatchCompleted(ctx context.Context, ev models.DispatchCompletedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func findPickup(t *testing.T, s *memStore, bookingID string) (models.PickupAssignment, models.GuideAssignment) {
	t.Helper()
	for _, p := range s.data.pickups {
		if p.BookingID == bookingID {
			return p, s.data.assignments[p.GuideAssignmentID]
		}
	}
	t.Fatalf("booking %s has no pickup", bookingID)
	return models.PickupAssignment{}, models.GuideAssignment{}
}

func TestOptimizeAssignsWholeDay(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	seedBooking(s, "b2", 3, "addr-b", false)
	seedBooking(s, "b3", 5, "addr-c", false)
	center := testCenter(s)
	ctx := context.Background()

	result, err := center.Optimize(ctx, testDate)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if len(result.Runs) != 1 || result.Runs[0].Assigned != 3 {
		t.Fatalf("unexpected optimize result: %+v", result)
	}

	status, err := center.GetDispatchStatus(ctx, testDate)
	if err != nil {
		t.Fatalf("GetDispatchStatus: %v", err)
	}
	if status.AssignedRuns != 1 || status.AssignedGuests != 10 || status.TotalGuests != 10 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", status.Warnings)
	}

	// Zone clusters stay whole: the two lindos parties share a vehicle.
	_, ga1 := findPickup(t, s, "b1")
	_, ga2 := findPickup(t, s, "b2")
	if ga1.GuideID != ga2.GuideID {
		t.Fatalf("lindos cluster split across %s and %s", ga1.GuideID, ga2.GuideID)
	}
}

func TestOptimizeIsIdempotentForAssignedBookings(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	if _, err := center.Optimize(ctx, testDate); err != nil {
		t.Fatalf("first optimize: %v", err)
	}
	if _, err := center.Optimize(ctx, testDate); err != nil {
		t.Fatalf("second optimize: %v", err)
	}
	count := 0
	for _, p := range s.data.pickups {
		if p.BookingID == "b1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("booking b1 has %d pickups after re-optimize", count)
	}
}

func TestManualAssignAndUnassign(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); err != nil {
		t.Fatalf("ManualAssign: %v", err)
	}
	_, ga := findPickup(t, s, "b1")
	if ga.GuideID != "g-alex" {
		t.Fatalf("assigned to %s, want g-alex", ga.GuideID)
	}

	if err := center.UnassignBooking(ctx, testDate, "b1"); err != nil {
		t.Fatalf("UnassignBooking: %v", err)
	}
	if len(s.data.pickups) != 0 {
		t.Fatalf("pickup not removed: %+v", s.data.pickups)
	}
	if len(s.data.assignments) != 0 {
		t.Fatalf("emptied guide assignment not removed: %+v", s.data.assignments)
	}
}

func TestManualAssignRejectsUnqualifiedGuide(t *testing.T) {
	s := newFixture()
	g := s.data.guides["g-alex"]
	g.QualifiedTours = []string{"other-tour"}
	s.data.guides["g-alex"] = g
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)

	err := center.ManualAssign(context.Background(), testDate, "b1", "g-alex")
	var cf *ConflictError
	if !errors.As(err, &cf) {
		t.Fatalf("expected ConflictError for unqualified guide, got %v", err)
	}
}

func TestBatchApplyIsAtomic(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	seedBooking(s, "b2", 3, "addr-b", false)
	seedBooking(s, "b3", 5, "addr-c", false)
	center := testCenter(s)
	ctx := context.Background()

	// b2 fits g-alex (capacity 6) after b1, but b3 overflows it; the
	// whole batch must roll back, including the valid first changes.
	_, err := center.BatchApplyChanges(ctx, testDate, []models.Change{
		{Type: models.ChangeAssign, BookingID: "b1", GuideID: "g-alex"},
		{Type: models.ChangeAssign, BookingID: "b2", GuideID: "g-alex"},
		{Type: models.ChangeAssign, BookingID: "b3", GuideID: "g-alex"},
	})
	// The capacity breach keeps its conflict type through the wrapper.
	var cf *ConflictError
	if !errors.As(err, &cf) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(s.data.pickups) != 0 || len(s.data.assignments) != 0 {
		t.Fatalf("failed batch left partial state: pickups=%d assignments=%d",
			len(s.data.pickups), len(s.data.assignments))
	}
	if _, ok := s.data.days[testDate]; ok {
		t.Fatalf("failed batch advanced the dispatch day")
	}
}

func TestManualAssignRejectsOverriddenGuide(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	s.data.overrides = append(s.data.overrides, models.AvailabilityOverride{
		GuideID: "g-alex", Date: testDate, IsAvailable: false,
	})
	center := testCenter(s)

	err := center.ManualAssign(context.Background(), testDate, "b1", "g-alex")
	var cf *ConflictError
	if !errors.As(err, &cf) {
		t.Fatalf("expected ConflictError for overridden-off guide, got %v", err)
	}
	if len(s.data.pickups) != 0 {
		t.Fatalf("rejected assign still committed: %+v", s.data.pickups)
	}
}

func TestManualAssignRejectsOffPatternGuide(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	// Mondays only; the fixture date is a Friday.
	g := s.data.guides["g-alex"]
	g.WeeklyDays = []int16{1}
	s.data.guides["g-alex"] = g
	center := testCenter(s)

	err := center.ManualAssign(context.Background(), testDate, "b1", "g-alex")
	var cf *ConflictError
	if !errors.As(err, &cf) {
		t.Fatalf("expected ConflictError for off-pattern guide, got %v", err)
	}
}

func TestBatchApplySequentialVisibility(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 5, "addr-a", false)
	seedBooking(s, "b2", 3, "addr-b", false)
	center := testCenter(s)
	ctx := context.Background()

	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); err != nil {
		t.Fatalf("seed assign: %v", err)
	}

	// b2 only fits g-alex (capacity 6) once b1 has been moved off it.
	result, err := center.BatchApplyChanges(ctx, testDate, []models.Change{
		{Type: models.ChangeReassign, BookingID: "b1", GuideID: "g-maria"},
		{Type: models.ChangeAssign, BookingID: "b2", GuideID: "g-alex"},
	})
	if err != nil {
		t.Fatalf("BatchApplyChanges: %v", err)
	}
	if result.Applied != 2 {
		t.Fatalf("expected 2 applied, got %+v", result)
	}
	_, ga1 := findPickup(t, s, "b1")
	_, ga2 := findPickup(t, s, "b2")
	if ga1.GuideID != "g-maria" || ga2.GuideID != "g-alex" {
		t.Fatalf("batch landed wrong: b1=%s b2=%s", ga1.GuideID, ga2.GuideID)
	}
}

func TestBatchTimeShift(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); err != nil {
		t.Fatalf("seed assign: %v", err)
	}
	before, _ := findPickup(t, s, "b1")

	if _, err := center.BatchApplyChanges(ctx, testDate, []models.Change{
		{Type: models.ChangeTimeShift, BookingID: "b1", MinutesDelta: -10},
	}); err != nil {
		t.Fatalf("time_shift: %v", err)
	}
	after, _ := findPickup(t, s, "b1")
	if want := before.CalculatedTime.Add(-10 * time.Minute); !after.CalculatedTime.Equal(want) {
		t.Fatalf("calculated time = %v, want %v", after.CalculatedTime, want)
	}
}

func TestBatchRejectsUnknownChangeType(t *testing.T) {
	s := newFixture()
	center := testCenter(s)
	_, err := center.BatchApplyChanges(context.Background(), testDate, []models.Change{
		{Type: "teleport", BookingID: "b1"},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown type, got %v", err)
	}
}

func TestResolveWarningAssignGuideRequiresGuideID(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	status, err := center.GetDispatchStatus(ctx, testDate)
	if err != nil {
		t.Fatalf("GetDispatchStatus: %v", err)
	}
	if len(status.Warnings) != 1 || status.Warnings[0].Type != models.WarningUnassignedRun {
		t.Fatalf("expected one unassigned_run warning, got %+v", status.Warnings)
	}
	warningID := status.Warnings[0].ID

	err = center.ResolveWarning(ctx, testDate, ResolveWarningRequest{
		WarningID: warningID, Action: models.ResolutionAssignGuide,
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError without guide_id, got %v", err)
	}

	// The failed resolution must leave the warning outstanding.
	status, _ = center.GetDispatchStatus(ctx, testDate)
	if len(status.Warnings) != 1 || status.Warnings[0].ID != warningID {
		t.Fatalf("warning disappeared after failed resolution: %+v", status.Warnings)
	}
}

func TestResolveWarningAssignGuide(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	status, _ := center.GetDispatchStatus(ctx, testDate)
	warningID := status.Warnings[0].ID

	if err := center.ResolveWarning(ctx, testDate, ResolveWarningRequest{
		WarningID: warningID, Action: models.ResolutionAssignGuide, GuideID: "g-alex",
	}); err != nil {
		t.Fatalf("ResolveWarning: %v", err)
	}
	_, ga := findPickup(t, s, "b1")
	if ga.GuideID != "g-alex" {
		t.Fatalf("booking not assigned via resolution: %+v", ga)
	}
	status, _ = center.GetDispatchStatus(ctx, testDate)
	if len(status.Warnings) != 0 {
		t.Fatalf("warnings remain after resolution: %+v", status.Warnings)
	}
}

func TestResolveWarningRejectsInvalidAction(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 7, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	if err := center.ManualAssign(ctx, testDate, "b1", "g-maria"); err != nil {
		t.Fatalf("seed assign: %v", err)
	}
	// Force an over_capacity warning by shrinking the vehicle afterwards.
	g := s.data.guides["g-maria"]
	g.VehicleCapacity = 4
	s.data.guides["g-maria"] = g

	status, _ := center.GetDispatchStatus(ctx, testDate)
	var over *models.Warning
	for i := range status.Warnings {
		if status.Warnings[i].Type == models.WarningOverCapacity {
			over = &status.Warnings[i]
		}
	}
	if over == nil {
		t.Fatalf("expected over_capacity warning, got %+v", status.Warnings)
	}

	// cancel_tour is not offered for over_capacity.
	err := center.ResolveWarning(ctx, testDate, ResolveWarningRequest{
		WarningID: over.ID, Action: models.ResolutionCancelTour,
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for invalid action, got %v", err)
	}
}

func TestResolveWarningAddExternal(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	status, _ := center.GetDispatchStatus(ctx, testDate)
	warningID := status.Warnings[0].ID

	if err := center.ResolveWarning(ctx, testDate, ResolveWarningRequest{
		WarningID: warningID, Action: models.ResolutionAddExternal,
		Name: "Island Partners", Capacity: 20,
	}); err != nil {
		t.Fatalf("ResolveWarning add_external: %v", err)
	}

	var external *models.Guide
	for _, g := range s.data.guides {
		if g.Kind == models.GuideKindExternal {
			cp := g
			external = &cp
		}
	}
	if external == nil {
		t.Fatal("external guide not created")
	}
	if external.ValidOn == nil || *external.ValidOn != testDate {
		t.Fatalf("external guide not scoped to date: %+v", external)
	}
	if len(s.data.assignments) != 1 {
		t.Fatalf("external guide not committed to the run: %+v", s.data.assignments)
	}
}

func TestResolveWarningCancelTour(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	center := testCenter(s)
	ctx := context.Background()

	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); err != nil {
		t.Fatalf("seed assign: %v", err)
	}
	// Remove the guide's pickup so the run warning reappears, then
	// cancel the run entirely.
	if err := center.UnassignBooking(ctx, testDate, "b1"); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	status, _ := center.GetDispatchStatus(ctx, testDate)
	if len(status.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", status.Warnings)
	}
	if err := center.ResolveWarning(ctx, testDate, ResolveWarningRequest{
		WarningID: status.Warnings[0].ID, Action: models.ResolutionCancelTour,
	}); err != nil {
		t.Fatalf("cancel_tour: %v", err)
	}
	status, _ = center.GetDispatchStatus(ctx, testDate)
	if len(status.Warnings) != 0 {
		t.Fatalf("cancelled run still warns: %+v", status.Warnings)
	}
}

func TestDispatchGatedOnUnassignedRuns(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	pub := &capturePublisher{}
	center := testCenter(s)
	center.Publisher = pub
	ctx := context.Background()

	_, err := center.Dispatch(ctx, testDate)
	var cf *ConflictError
	if !errors.As(err, &cf) {
		t.Fatalf("expected ConflictError for unassigned run, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("gated dispatch still published: %+v", pub.events)
	}

	// Acknowledging the run's warning opens the gate.
	status, _ := center.GetDispatchStatus(ctx, testDate)
	if err := center.ResolveWarning(ctx, testDate, ResolveWarningRequest{
		WarningID: status.Warnings[0].ID, Action: models.ResolutionAcknowledge,
	}); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	status, err = center.Dispatch(ctx, testDate)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if status.Status != models.DispatchDispatched {
		t.Fatalf("status = %q, want dispatched", status.Status)
	}
	if len(pub.events) != 1 || pub.events[0].Date != testDate || pub.events[0].OrgID != "org_test" {
		t.Fatalf("unexpected publish: %+v", pub.events)
	}

	// Assignments freeze until an explicit reopen.
	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); !errors.As(err, &cf) {
		t.Fatalf("expected ConflictError after dispatch, got %v", err)
	}
	if err := center.Reopen(ctx, testDate); err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); err != nil {
		t.Fatalf("assign after reopen: %v", err)
	}
}

func TestDispatchSurvivesPublishFailure(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	pub := &capturePublisher{err: errors.New("broker down")}
	center := testCenter(s)
	center.Publisher = pub
	ctx := context.Background()

	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); err != nil {
		t.Fatalf("seed assign: %v", err)
	}
	status, err := center.Dispatch(ctx, testDate)
	if err != nil {
		t.Fatalf("Dispatch should ignore publish failure, got %v", err)
	}
	if status.Status != models.DispatchDispatched {
		t.Fatalf("status = %q, want dispatched", status.Status)
	}
}

func TestCreateTempGuideForDate(t *testing.T) {
	s := newFixture()
	center := testCenter(s)

	g, err := center.CreateTempGuideForDate(context.Background(), testDate, "Stavros", "+30123", 12)
	if err != nil {
		t.Fatalf("CreateTempGuideForDate: %v", err)
	}
	if g.Kind != models.GuideKindTemp || g.ValidOn == nil || *g.ValidOn != testDate {
		t.Fatalf("unexpected temp guide: %+v", g)
	}

	// Valid on its date, absent on any other.
	today, _ := s.GuidesForDate(context.Background(), testDate)
	other, _ := s.GuidesForDate(context.Background(), "2026-06-06")
	found := func(gs []models.Guide) bool {
		for _, x := range gs {
			if x.ID == g.ID {
				return true
			}
		}
		return false
	}
	if !found(today) || found(other) {
		t.Fatalf("temp guide visibility wrong: today=%v other=%v", found(today), found(other))
	}
}

func TestGetSuggestionsForBooking(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	seedBooking(s, "b2", 3, "addr-b", false)
	center := testCenter(s)
	ctx := context.Background()

	if err := center.ManualAssign(ctx, testDate, "b1", "g-alex"); err != nil {
		t.Fatalf("seed assign: %v", err)
	}

	out, err := center.GetSuggestions(ctx, testDate, "b2")
	if err != nil {
		t.Fatalf("GetSuggestions: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected both guides suggested, got %+v", out)
	}
	// g-alex already picks up in lindos, so it outranks the empty g-maria.
	if out[0].GuideID != "g-alex" {
		t.Fatalf("expected zone match ranked first, got %+v", out)
	}
}

func TestGetGuideTimelines(t *testing.T) {
	s := newFixture()
	seedBooking(s, "b1", 2, "addr-a", false)
	seedBooking(s, "b2", 3, "addr-b", false)
	center := testCenter(s)
	ctx := context.Background()

	if _, err := center.Optimize(ctx, testDate); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	timelines, err := center.GetGuideTimelines(ctx, testDate)
	if err != nil {
		t.Fatalf("GetGuideTimelines: %v", err)
	}
	if len(timelines) != 1 {
		t.Fatalf("expected one guide timeline, got %d", len(timelines))
	}
	tl := timelines[0]
	var pickups, drives, tours int
	for _, seg := range tl.Segments {
		switch seg.Type {
		case models.SegmentPickup:
			pickups++
		case models.SegmentDrive:
			drives++
		case models.SegmentTour:
			tours++
		}
		if seg.End.Before(seg.Start) {
			t.Fatalf("segment ends before it starts: %+v", seg)
		}
	}
	if pickups != 2 || tours != 1 || drives < 1 {
		t.Fatalf("segment mix wrong: pickups=%d drives=%d tours=%d", pickups, drives, tours)
	}
	// Segments are ordered and the tour block ends the day.
	last := tl.Segments[len(tl.Segments)-1]
	if last.Type != models.SegmentTour {
		t.Fatalf("expected tour segment last, got %+v", last)
	}
	for i := 1; i < len(tl.Segments); i++ {
		if tl.Segments[i].Start.Before(tl.Segments[i-1].Start) {
			t.Fatalf("segments out of order at %d: %+v", i, tl.Segments)
		}
	}
}
