package service

import (
	"context"
	"sort"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/utils"
)

// GetGuideTimelines renders each assigned guide's day as an ordered
// sequence of drive, pickup, and tour segments, computed from the
// committed pickup times and the tour durations.
func (c *CommandCenter) GetGuideTimelines(ctx context.Context, date string) ([]models.GuideTimeline, error) {
	snap, err := loadSnapshot(ctx, c.Store, date, c.Params)
	if err != nil {
		return nil, err
	}

	byGuide := map[string][]models.GuideAssignment{}
	for _, ga := range snap.assignments {
		byGuide[ga.GuideID] = append(byGuide[ga.GuideID], ga)
	}

	out := make([]models.GuideTimeline, 0, len(byGuide))
	for guideID, gas := range byGuide {
		g, ok := snap.guides[guideID]
		if !ok {
			continue
		}
		tl := models.GuideTimeline{GuideID: guideID, GuideName: g.Name, Capacity: g.VehicleCapacity}
		for _, ga := range gas {
			segs, err := snap.assignmentSegments(ga)
			if err != nil {
				return nil, err
			}
			tl.Segments = append(tl.Segments, segs...)
		}
		sort.Slice(tl.Segments, func(i, j int) bool {
			if !tl.Segments[i].Start.Equal(tl.Segments[j].Start) {
				return tl.Segments[i].Start.Before(tl.Segments[j].Start)
			}
			return tl.Segments[i].Type < tl.Segments[j].Type
		})
		out = append(out, tl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuideID < out[j].GuideID })
	return out, nil
}

// assignmentSegments expands one guide assignment into its pickup
// stops, the drives between them, and the tour block itself.
func (s *daySnapshot) assignmentSegments(ga models.GuideAssignment) ([]models.TimelineSegment, error) {
	departure, meetingLat, meetingLon, err := s.runGeometry(ga.RunKey())
	if err != nil {
		return nil, err
	}
	tour := s.tours[ga.TourID]

	var segs []models.TimelineSegment
	ordered := append([]models.PickupAssignment(nil), s.pickups[ga.ID]...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	prevLat, prevLon := 0.0, 0.0
	havePrev := false
	var prevEnd time.Time
	for _, p := range ordered {
		b, ok := s.bookings[p.BookingID]
		if !ok {
			continue
		}
		rb := s.runBooking(b)
		start := p.CalculatedTime
		end := start.Add(time.Duration(rb.PickupMinutes) * time.Minute)

		if havePrev {
			drive := utils.DriveMinutes(prevLat, prevLon, rb.Lat, rb.Lon)
			segs = append(segs, models.TimelineSegment{
				Type:  models.SegmentDrive,
				Start: prevEnd,
				End:   prevEnd.Add(time.Duration(drive) * time.Minute),
				Label: "drive to " + rb.PickupName,
			})
		}
		segs = append(segs, models.TimelineSegment{
			Type:      models.SegmentPickup,
			Start:     start,
			End:       end,
			Label:     rb.PickupName,
			BookingID: b.ID,
		})
		prevLat, prevLon = rb.Lat, rb.Lon
		prevEnd = end
		havePrev = true
	}

	if havePrev {
		drive := utils.DriveMinutes(prevLat, prevLon, meetingLat, meetingLon)
		segs = append(segs, models.TimelineSegment{
			Type:  models.SegmentDrive,
			Start: prevEnd,
			End:   prevEnd.Add(time.Duration(drive) * time.Minute),
			Label: "drive to " + tour.Name + " meeting point",
		})
	}
	segs = append(segs, models.TimelineSegment{
		Type:  models.SegmentTour,
		Start: departure,
		End:   departure.Add(time.Duration(tour.DurationMinutes) * time.Minute),
		Label: tour.Name,
	})
	return segs, nil
}
