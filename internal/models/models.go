package models

import "time"

// Guide kinds. System guides are the permanent roster; temp and external
// guides are created ad hoc for a single date and never outlive it.
const (
	GuideKindSystem   = "system"
	GuideKindTemp     = "temp"
	GuideKindExternal = "external"
)

// Pickup assignment statuses. picked_up and no_show are terminal.
const (
	PickupStatusPending  = "pending"
	PickupStatusPickedUp = "picked_up"
	PickupStatusNoShow   = "no_show"
)

// Dispatch day states.
const (
	DispatchNotStarted = "not_started"
	DispatchInProgress = "in_progress"
	DispatchDispatched = "dispatched"
)

type Tour struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	DurationMinutes int     `json:"duration_minutes"`
	MeetingLat      float64 `json:"meeting_lat"`
	MeetingLon      float64 `json:"meeting_lon"`
}

// PickupAddress is static reference data: a named location with a zone
// tag used for clustering and coordinates used for drive-time estimates.
type PickupAddress struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Zone             string  `json:"zone"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	AvgPickupMinutes int     `json:"avg_pickup_minutes"`
}

type Guide struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	VehicleCapacity int       `json:"vehicle_capacity"`
	QualifiedTours  []string  `json:"qualified_tours"`
	WeeklyDays      []int16   `json:"weekly_days"`
	Kind            string    `json:"kind"`
	ValidOn         *string   `json:"valid_on,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

// QualifiedFor reports whether the guide may run the given tour.
// An empty qualification set means unrestricted.
func (g Guide) QualifiedFor(tourID string) bool {
	if len(g.QualifiedTours) == 0 {
		return true
	}
	for _, t := range g.QualifiedTours {
		if t == tourID {
			return true
		}
	}
	return false
}

type AvailabilityOverride struct {
	GuideID     string `json:"guide_id"`
	Date        string `json:"date"`
	IsAvailable bool   `json:"is_available"`
}

// Booking is consumed read-only by the dispatch core.
type Booking struct {
	ID              string `json:"id"`
	TourID          string `json:"tour_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Adults          int    `json:"adults"`
	Children        int    `json:"children"`
	Infants         int    `json:"infants"`
	PickupAddressID string `json:"pickup_address_id"`
	IsPrivate       bool   `json:"is_private"`
	CustomerName    string `json:"customer_name"`
}

// Guests is the seat count a booking occupies in a vehicle.
func (b Booking) Guests() int {
	return b.Adults + b.Children + b.Infants
}

// RunKey identifies a tour run: the virtual (tour, date, time) grouping
// of bookings sharing a departure slot. There is no persisted row.
type RunKey struct {
	TourID string `json:"tour_id"`
	Date   string `json:"date"`
	Time   string `json:"time"`
}

func (k RunKey) String() string {
	return k.TourID + "|" + k.Date + "|" + k.Time
}

type TourRun struct {
	Key            RunKey    `json:"key"`
	TourName       string    `json:"tour_name"`
	Departure      time.Time `json:"departure"`
	Bookings       []Booking `json:"bookings"`
	TotalGuests    int       `json:"total_guests"`
	GuidesRequired int       `json:"guides_required"`
}

type GuideAssignment struct {
	ID        string    `json:"id"`
	GuideID   string    `json:"guide_id"`
	TourID    string    `json:"tour_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

func (a GuideAssignment) RunKey() RunKey {
	return RunKey{TourID: a.TourID, Date: a.Date, Time: a.Time}
}

type PickupAssignment struct {
	ID                string     `json:"id"`
	GuideAssignmentID string     `json:"guide_assignment_id"`
	BookingID         string     `json:"booking_id"`
	Position          int        `json:"position"`
	CalculatedTime    time.Time  `json:"calculated_time"`
	ActualTime        *time.Time `json:"actual_time,omitempty"`
	Status            string     `json:"status"`
}

// DispatchDay is the versioned per-date aggregate. Version is the
// optimistic concurrency token; every write path checks and increments it.
type DispatchDay struct {
	Date         string     `json:"date"`
	Status       string     `json:"status"`
	Version      int        `json:"version"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
}

// Warning types.
const (
	WarningUnassignedRun     = "unassigned_run"
	WarningUnassignedBooking = "unassigned_booking"
	WarningOverCapacity      = "over_capacity"
	WarningNoQualifiedGuide  = "no_qualified_guide"
)

// Warning resolution actions.
const (
	ResolutionAssignGuide = "assign_guide"
	ResolutionAddExternal = "add_external"
	ResolutionCancelTour  = "cancel_tour"
	ResolutionAcknowledge = "acknowledge"
)

// Warning is computed fresh on every dispatch-status read and identified
// deterministically so a recorded resolution survives recomputation.
type Warning struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Run         RunKey   `json:"run"`
	BookingID   string   `json:"booking_id,omitempty"`
	GuideID     string   `json:"guide_id,omitempty"`
	Message     string   `json:"message"`
	Resolutions []string `json:"resolutions"`
}

type WarningAck struct {
	Date       string    `json:"date"`
	WarningID  string    `json:"warning_id"`
	Resolution string    `json:"resolution"`
	CreatedAt  time.Time `json:"created_at"`
}

type DispatchStatus struct {
	Date           string    `json:"date"`
	Status         string    `json:"status"`
	Version        int       `json:"version"`
	TotalRuns      int       `json:"total_runs"`
	AssignedRuns   int       `json:"assigned_runs"`
	TotalGuides    int       `json:"total_guides"`
	AssignedGuests int       `json:"assigned_guests"`
	TotalGuests    int       `json:"total_guests"`
	Warnings       []Warning `json:"warnings"`
}

// Batch change types. The union is matched exhaustively in the apply
// step; unknown types are rejected before any processing.
const (
	ChangeAssign    = "assign"
	ChangeUnassign  = "unassign"
	ChangeReassign  = "reassign"
	ChangeTimeShift = "time_shift"
)

// Change is one element of a batchApplyChanges request.
type Change struct {
	Type         string `json:"type"`
	BookingID    string `json:"booking_id"`
	GuideID      string `json:"guide_id,omitempty"`
	Position     *int   `json:"position,omitempty"`
	MinutesDelta int    `json:"minutes_delta,omitempty"`
}

// Timeline segment kinds for the per-guide day view.
const (
	SegmentDrive  = "drive"
	SegmentPickup = "pickup"
	SegmentTour   = "tour"
)

type TimelineSegment struct {
	Type      string    `json:"type"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Label     string    `json:"label"`
	BookingID string    `json:"booking_id,omitempty"`
}

type GuideTimeline struct {
	GuideID   string            `json:"guide_id"`
	GuideName string            `json:"guide_name"`
	Capacity  int               `json:"capacity"`
	Segments  []TimelineSegment `json:"segments"`
}

type DispatchCompletedEvent struct {
	OrgID        string    `json:"org_id"`
	Date         string    `json:"date"`
	Runs         int       `json:"runs"`
	Guides       int       `json:"guides"`
	DispatchedAt time.Time `json:"dispatched_at"`
}
