// Package ports defines the storage contracts the dispatch services
// depend on, keeping the engine and orchestrator independent of the
// concrete Postgres adapter.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
)

// ErrVersionConflict is returned by SaveDispatchDay when the optimistic
// version token does not match the stored row (lost update detected).
var ErrVersionConflict = errors.New("dispatch day version conflict")

// Repo is the set of reads and writes the dispatch core performs.
// Lookups return (nil, nil) when the row does not exist; services turn
// that into their own NotFoundError.
type Repo interface {
	ListTours(ctx context.Context) ([]models.Tour, error)
	GetTour(ctx context.Context, id string) (*models.Tour, error)
	ListPickupAddresses(ctx context.Context) ([]models.PickupAddress, error)

	// GuidesForDate returns active system guides plus temp/external
	// guides valid on the given date.
	GuidesForDate(ctx context.Context, date string) ([]models.Guide, error)
	GetGuide(ctx context.Context, id string) (*models.Guide, error)
	InsertGuide(ctx context.Context, g models.Guide) error
	OverridesForDate(ctx context.Context, date string) ([]models.AvailabilityOverride, error)

	BookingsForDate(ctx context.Context, date string) ([]models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)

	AssignmentsForDate(ctx context.Context, date string) ([]models.GuideAssignment, error)
	GetGuideAssignment(ctx context.Context, id string) (*models.GuideAssignment, error)
	InsertGuideAssignment(ctx context.Context, a models.GuideAssignment) error
	DeleteGuideAssignment(ctx context.Context, id string) error

	PickupsForDate(ctx context.Context, date string) ([]models.PickupAssignment, error)
	PickupsForAssignment(ctx context.Context, guideAssignmentID string) ([]models.PickupAssignment, error)
	GetPickupAssignment(ctx context.Context, id string) (*models.PickupAssignment, error)
	InsertPickupAssignment(ctx context.Context, p models.PickupAssignment) error
	DeletePickupAssignment(ctx context.Context, id string) error
	UpdatePickupPosition(ctx context.Context, id string, position int) error
	UpdatePickupStatus(ctx context.Context, id string, status string, actualTime *time.Time) error
	UpdatePickupCalculatedTime(ctx context.Context, id string, calculated time.Time) error

	GetDispatchDay(ctx context.Context, date string) (*models.DispatchDay, error)
	// SaveDispatchDay upserts the aggregate, requiring day.Version to be
	// exactly one ahead of the stored version (or 1 for a new row).
	SaveDispatchDay(ctx context.Context, day models.DispatchDay) error
	AcksForDate(ctx context.Context, date string) ([]models.WarningAck, error)
	InsertWarningAck(ctx context.Context, ack models.WarningAck) error

	// LockDate serializes concurrent writers touching the same date.
	// Must be called inside a transaction; the lock is held until commit.
	LockDate(ctx context.Context, date string) error

	// Bulk seeding used by the CSV import pipeline.
	TruncateData(ctx context.Context) error
	InsertTours(ctx context.Context, tours []models.Tour) (int64, error)
	InsertPickupAddresses(ctx context.Context, addrs []models.PickupAddress) (int64, error)
	InsertGuides(ctx context.Context, guides []models.Guide) (int64, error)
	InsertBookings(ctx context.Context, bookings []models.Booking) (int64, error)
}

// Store is a Repo that can also scope work to a transaction. The Repo
// passed to fn sees uncommitted writes; they are discarded when fn
// returns an error.
type Store interface {
	Repo
	WithTx(ctx context.Context, fn func(Repo) error) error
	Ping(ctx context.Context) error
}
