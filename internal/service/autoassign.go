package service

import (
	"sort"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/utils"
)

// The auto-assignment engine is a pure proposal step: it never touches
// storage. The orchestrator feeds it one run's bookings plus the guides
// available that day and commits (or discards) the result.

type RunGuide struct {
	ID        string
	Name      string
	Capacity  int
	Load      int // guests already committed to this guide elsewhere today
	Qualified bool
	Busy      bool // holds a conflicting run in the overlap window
}

type RunBooking struct {
	ID            string
	Guests        int
	Private       bool
	Zone          string
	Lat           float64
	Lon           float64
	PickupMinutes int
	PickupName    string
}

type ProposedPickup struct {
	BookingID  string
	Position   int
	PickupTime time.Time
}

type ProposedAssignment struct {
	GuideID string
	Guests  int
	Pickups []ProposedPickup
}

type Proposal struct {
	Run         models.RunKey
	Departure   time.Time
	Assignments []ProposedAssignment
	Warnings    []models.Warning
}

// BuildProposal plans one tour run. Private bookings get exclusive
// guides first, shared bookings are clustered by pickup zone and packed
// into the remaining vehicles, and each vehicle's pickups are ordered
// and timed backward from departure.
//
// All tie-breaks are explicit so identical input yields identical
// output.
func BuildProposal(
	run models.RunKey,
	departure time.Time,
	meetingLat, meetingLon float64,
	bookings []RunBooking,
	guides []RunGuide,
) Proposal {
	prop := Proposal{Run: run, Departure: departure}
	if len(bookings) == 0 {
		return prop
	}

	pool := make([]*planGuide, 0, len(guides))
	for _, g := range guides {
		if g.Qualified && !g.Busy {
			pool = append(pool, &planGuide{RunGuide: g})
		}
	}
	if len(pool) == 0 {
		prop.Warnings = append(prop.Warnings,
			NewWarning(models.WarningNoQualifiedGuide, run, "", "",
				"no qualified guide available for this run"))
		return prop
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].Load != pool[j].Load {
			return pool[i].Load < pool[j].Load
		}
		return pool[i].ID < pool[j].ID
	})

	var private, shared []RunBooking
	for _, b := range bookings {
		if b.Private {
			private = append(private, b)
		} else {
			shared = append(shared, b)
		}
	}

	// Private bookings first: each takes the least-loaded guide whose
	// vehicle fits, and that guide is withdrawn from the shared pool.
	sortBookings(private)
	for _, b := range private {
		placed := false
		for i, g := range pool {
			if g.Capacity >= b.Guests {
				g.bookings = append(g.bookings, b)
				g.used = b.Guests
				prop.Assignments = append(prop.Assignments, finishAssignment(g, departure, meetingLat, meetingLon))
				pool = append(pool[:i], pool[i+1:]...)
				placed = true
				break
			}
		}
		if !placed {
			prop.Warnings = append(prop.Warnings,
				NewWarning(models.WarningUnassignedBooking, run, b.ID, "",
					"no guide with capacity for private booking "+b.ID))
		}
	}

	// Cluster shared bookings by pickup zone, largest cluster first.
	clusters := clusterByZone(shared)
	for _, cl := range clusters {
		if g := fitWholeCluster(pool, cl.guests); g != nil {
			g.bookings = append(g.bookings, cl.bookings...)
			g.used += cl.guests
			continue
		}
		// Split: first-fit-decreasing on per-booking guest counts.
		for _, b := range cl.bookings {
			if g := fitBooking(pool, b); g != nil {
				g.bookings = append(g.bookings, b)
				g.used += b.Guests
				continue
			}
			prop.Warnings = append(prop.Warnings,
				NewWarning(models.WarningUnassignedBooking, run, b.ID, "",
					"no guide with remaining capacity for booking "+b.ID))
		}
	}

	for _, g := range pool {
		if len(g.bookings) == 0 {
			continue
		}
		prop.Assignments = append(prop.Assignments, finishAssignment(g, departure, meetingLat, meetingLon))
	}
	sort.Slice(prop.Assignments, func(i, j int) bool {
		return prop.Assignments[i].GuideID < prop.Assignments[j].GuideID
	})
	return prop
}

type planGuide struct {
	RunGuide
	used     int
	bookings []RunBooking
}

func (g *planGuide) remaining() int { return g.Capacity - g.used }

type zoneCluster struct {
	zone     string
	guests   int
	bookings []RunBooking
}

func sortBookings(bs []RunBooking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Guests != bs[j].Guests {
			return bs[i].Guests > bs[j].Guests
		}
		return bs[i].ID < bs[j].ID
	})
}

func clusterByZone(shared []RunBooking) []zoneCluster {
	byZone := map[string]*zoneCluster{}
	for _, b := range shared {
		cl, ok := byZone[b.Zone]
		if !ok {
			cl = &zoneCluster{zone: b.Zone}
			byZone[b.Zone] = cl
		}
		cl.bookings = append(cl.bookings, b)
		cl.guests += b.Guests
	}
	out := make([]zoneCluster, 0, len(byZone))
	for _, cl := range byZone {
		sortBookings(cl.bookings)
		out = append(out, *cl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].guests != out[j].guests {
			return out[i].guests > out[j].guests
		}
		return out[i].zone < out[j].zone
	})
	return out
}

// fitWholeCluster keeps a zone on a single vehicle when any vehicle can
// take it. Preference order: most room, then the smaller vehicle (keep
// big vehicles free), then lighter day load, then id.
func fitWholeCluster(pool []*planGuide, guests int) *planGuide {
	return pickGuide(pool, guests)
}

func fitBooking(pool []*planGuide, b RunBooking) *planGuide {
	return pickGuide(pool, b.Guests)
}

func pickGuide(pool []*planGuide, guests int) *planGuide {
	var best *planGuide
	for _, g := range pool {
		if g.remaining() < guests {
			continue
		}
		if best == nil || betterFit(g, best) {
			best = g
		}
	}
	return best
}

func betterFit(a, b *planGuide) bool {
	if a.remaining() != b.remaining() {
		return a.remaining() > b.remaining()
	}
	if a.Capacity != b.Capacity {
		return a.Capacity < b.Capacity
	}
	if a.Load != b.Load {
		return a.Load < b.Load
	}
	return a.ID < b.ID
}

// finishAssignment orders a vehicle's pickups and computes their times.
//
// Ordering builds the route backward from the meeting point: the stop
// nearest the meeting point is picked up last, then its nearest
// neighbor before it, and so on. Reversing that chain gives a route
// that starts at the farthest stop and works toward departure.
func finishAssignment(g *planGuide, departure time.Time, meetingLat, meetingLon float64) ProposedAssignment {
	ordered := orderPickups(g.bookings, meetingLat, meetingLon)
	times := pickupTimes(ordered, departure, meetingLat, meetingLon)

	pickups := make([]ProposedPickup, len(ordered))
	for i, b := range ordered {
		pickups[i] = ProposedPickup{BookingID: b.ID, Position: i, PickupTime: times[i]}
	}
	return ProposedAssignment{GuideID: g.ID, Guests: g.used, Pickups: pickups}
}

// pickupTimes walks backward from the departure instant, subtracting
// drive time to the next stop plus the stop's own pickup duration.
func pickupTimes(ordered []RunBooking, departure time.Time, meetingLat, meetingLon float64) []time.Time {
	times := make([]time.Time, len(ordered))
	arrive := departure
	curLat, curLon := meetingLat, meetingLon
	for i := len(ordered) - 1; i >= 0; i-- {
		b := ordered[i]
		drive := utils.DriveMinutes(b.Lat, b.Lon, curLat, curLon)
		times[i] = arrive.Add(-time.Duration(drive+b.PickupMinutes) * time.Minute)
		arrive = times[i]
		curLat, curLon = b.Lat, b.Lon
	}
	return times
}

func orderPickups(bookings []RunBooking, meetingLat, meetingLon float64) []RunBooking {
	remaining := make([]RunBooking, len(bookings))
	copy(remaining, bookings)
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].ID < remaining[j].ID })

	reversed := make([]RunBooking, 0, len(remaining))
	curLat, curLon := meetingLat, meetingLon
	for len(remaining) > 0 {
		bestIdx := 0
		bestDist := utils.HaversineKm(remaining[0].Lat, remaining[0].Lon, curLat, curLon)
		for i := 1; i < len(remaining); i++ {
			d := utils.HaversineKm(remaining[i].Lat, remaining[i].Lon, curLat, curLon)
			// Strict less keeps the lowest booking id on ties.
			if d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		b := remaining[bestIdx]
		reversed = append(reversed, b)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		curLat, curLon = b.Lat, b.Lon
	}

	ordered := make([]RunBooking, len(reversed))
	for i, b := range reversed {
		ordered[len(reversed)-1-i] = b
	}
	return ordered
}

// Suggestion is a ranked guide candidate for one booking.
type Suggestion struct {
	GuideID   string   `json:"guide_id"`
	GuideName string   `json:"guide_name"`
	Score     float64  `json:"score"`
	Remaining int      `json:"remaining_capacity"`
	Reasons   []string `json:"reasons"`
}

// CandidateGuide carries the per-run context SuggestGuides scores on.
type CandidateGuide struct {
	RunGuide
	Remaining int  // seats left on this run
	ZoneMatch bool // already picking up in the booking's zone
}

// SuggestGuides ranks guides for a single booking. Guides that are
// unqualified, busy, or out of room are excluded rather than ranked low.
func SuggestGuides(b RunBooking, candidates []CandidateGuide) []Suggestion {
	out := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		if !c.Qualified || c.Busy || c.Remaining < b.Guests {
			continue
		}
		score := 100.0 - float64(c.Load)*5
		reasons := []string{"fits remaining capacity"}
		if c.ZoneMatch {
			score += 25
			reasons = append(reasons, "already picking up in zone "+b.Zone)
		}
		spare := c.Remaining - b.Guests
		if spare > 10 {
			spare = 10
		}
		score += float64(spare) * 2
		out = append(out, Suggestion{
			GuideID:   c.ID,
			GuideName: c.Name,
			Score:     score,
			Remaining: c.Remaining,
			Reasons:   reasons,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].GuideID < out[j].GuideID
	})
	return out
}
