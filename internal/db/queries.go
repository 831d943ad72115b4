package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
	"github.com/saimali7/Tour-CRM-sub003/internal/ports"
)

func (r repo) ListTours(ctx context.Context) ([]models.Tour, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, duration_minutes, meeting_lat, meeting_lon FROM tours ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Tour
	for rows.Next() {
		var t models.Tour
		if err := rows.Scan(&t.ID, &t.Name, &t.DurationMinutes, &t.MeetingLat, &t.MeetingLon); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r repo) GetTour(ctx context.Context, id string) (*models.Tour, error) {
	var t models.Tour
	err := r.q.QueryRow(ctx, `SELECT id, name, duration_minutes, meeting_lat, meeting_lon FROM tours WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.DurationMinutes, &t.MeetingLat, &t.MeetingLon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r repo) ListPickupAddresses(ctx context.Context) ([]models.PickupAddress, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, zone, lat, lon, avg_pickup_minutes FROM pickup_addresses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PickupAddress
	for rows.Next() {
		var a models.PickupAddress
		if err := rows.Scan(&a.ID, &a.Name, &a.Zone, &a.Lat, &a.Lon, &a.AvgPickupMinutes); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const guideColumns = `id, name, phone, vehicle_capacity, qualified_tours, weekly_days, kind, valid_on, active, created_at`

func scanGuide(row pgx.Row) (models.Guide, error) {
	var g models.Guide
	err := row.Scan(&g.ID, &g.Name, &g.Phone, &g.VehicleCapacity, &g.QualifiedTours,
		&g.WeeklyDays, &g.Kind, &g.ValidOn, &g.Active, &g.CreatedAt)
	return g, err
}

// GuidesForDate returns active system guides plus temp/external guides
// created for the given date.
func (r repo) GuidesForDate(ctx context.Context, date string) ([]models.Guide, error) {
	rows, err := r.q.Query(ctx, `SELECT `+guideColumns+` FROM guides
		WHERE active AND (kind = $1 OR valid_on = $2) ORDER BY id`,
		models.GuideKindSystem, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r repo) GetGuide(ctx context.Context, id string) (*models.Guide, error) {
	g, err := scanGuide(r.q.QueryRow(ctx, `SELECT `+guideColumns+` FROM guides WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r repo) InsertGuide(ctx context.Context, g models.Guide) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO guides (id, name, phone, vehicle_capacity, qualified_tours, weekly_days, kind, valid_on, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, g.ID, g.Name, g.Phone, g.VehicleCapacity, g.QualifiedTours, g.WeeklyDays, g.Kind, g.ValidOn, g.Active, g.CreatedAt)
	return err
}

func (r repo) OverridesForDate(ctx context.Context, date string) ([]models.AvailabilityOverride, error) {
	rows, err := r.q.Query(ctx, `SELECT guide_id, date, is_available FROM guide_availability_overrides WHERE date = $1 ORDER BY guide_id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AvailabilityOverride
	for rows.Next() {
		var o models.AvailabilityOverride
		if err := rows.Scan(&o.GuideID, &o.Date, &o.IsAvailable); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const bookingColumns = `id, tour_id, date, time, adults, children, infants, pickup_address_id, is_private, customer_name`

func scanBooking(row pgx.Row) (models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.TourID, &b.Date, &b.Time, &b.Adults, &b.Children,
		&b.Infants, &b.PickupAddressID, &b.IsPrivate, &b.CustomerName)
	return b, err
}

func (r repo) BookingsForDate(ctx context.Context, date string) ([]models.Booking, error) {
	rows, err := r.q.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE date = $1 ORDER BY id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r repo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r repo) AssignmentsForDate(ctx context.Context, date string) ([]models.GuideAssignment, error) {
	rows, err := r.q.Query(ctx, `SELECT id, guide_id, tour_id, date, time, created_at
		FROM guide_assignments WHERE date = $1 ORDER BY id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.GuideAssignment
	for rows.Next() {
		var a models.GuideAssignment
		if err := rows.Scan(&a.ID, &a.GuideID, &a.TourID, &a.Date, &a.Time, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r repo) GetGuideAssignment(ctx context.Context, id string) (*models.GuideAssignment, error) {
	var a models.GuideAssignment
	err := r.q.QueryRow(ctx, `SELECT id, guide_id, tour_id, date, time, created_at
		FROM guide_assignments WHERE id = $1`, id).
		Scan(&a.ID, &a.GuideID, &a.TourID, &a.Date, &a.Time, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r repo) InsertGuideAssignment(ctx context.Context, a models.GuideAssignment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO guide_assignments (id, guide_id, tour_id, date, time, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, a.ID, a.GuideID, a.TourID, a.Date, a.Time, a.CreatedAt)
	return err
}

func (r repo) DeleteGuideAssignment(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM guide_assignments WHERE id = $1`, id)
	return err
}

const pickupColumns = `id, guide_assignment_id, booking_id, position, calculated_time, actual_time, status`

func scanPickup(row pgx.Row) (models.PickupAssignment, error) {
	var p models.PickupAssignment
	err := row.Scan(&p.ID, &p.GuideAssignmentID, &p.BookingID, &p.Position,
		&p.CalculatedTime, &p.ActualTime, &p.Status)
	return p, err
}

func (r repo) PickupsForDate(ctx context.Context, date string) ([]models.PickupAssignment, error) {
	rows, err := r.q.Query(ctx, `SELECT p.id, p.guide_assignment_id, p.booking_id, p.position, p.calculated_time, p.actual_time, p.status
		FROM pickup_assignments p
		JOIN guide_assignments a ON a.id = p.guide_assignment_id
		WHERE a.date = $1 ORDER BY p.guide_assignment_id, p.position`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPickups(rows)
}

func (r repo) PickupsForAssignment(ctx context.Context, guideAssignmentID string) ([]models.PickupAssignment, error) {
	rows, err := r.q.Query(ctx, `SELECT `+pickupColumns+` FROM pickup_assignments
		WHERE guide_assignment_id = $1 ORDER BY position`, guideAssignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPickups(rows)
}

func collectPickups(rows pgx.Rows) ([]models.PickupAssignment, error) {
	var out []models.PickupAssignment
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r repo) GetPickupAssignment(ctx context.Context, id string) (*models.PickupAssignment, error) {
	p, err := scanPickup(r.q.QueryRow(ctx, `SELECT `+pickupColumns+` FROM pickup_assignments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r repo) InsertPickupAssignment(ctx context.Context, p models.PickupAssignment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO pickup_assignments (id, guide_assignment_id, booking_id, position, calculated_time, actual_time, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, p.ID, p.GuideAssignmentID, p.BookingID, p.Position, p.CalculatedTime, p.ActualTime, p.Status)
	return err
}

func (r repo) DeletePickupAssignment(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM pickup_assignments WHERE id = $1`, id)
	return err
}

func (r repo) UpdatePickupPosition(ctx context.Context, id string, position int) error {
	_, err := r.q.Exec(ctx, `UPDATE pickup_assignments SET position = $1 WHERE id = $2`, position, id)
	return err
}

func (r repo) UpdatePickupStatus(ctx context.Context, id string, status string, actualTime *time.Time) error {
	_, err := r.q.Exec(ctx, `UPDATE pickup_assignments SET status = $1, actual_time = $2 WHERE id = $3`, status, actualTime, id)
	return err
}

func (r repo) UpdatePickupCalculatedTime(ctx context.Context, id string, calculated time.Time) error {
	_, err := r.q.Exec(ctx, `UPDATE pickup_assignments SET calculated_time = $1 WHERE id = $2`, calculated, id)
	return err
}

func (r repo) GetDispatchDay(ctx context.Context, date string) (*models.DispatchDay, error) {
	var d models.DispatchDay
	err := r.q.QueryRow(ctx, `SELECT date, status, version, dispatched_at FROM dispatch_days WHERE date = $1`, date).
		Scan(&d.Date, &d.Status, &d.Version, &d.DispatchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDispatchDay upserts the per-date aggregate. The version must be
// exactly one ahead of the stored row (or 1 for a new date); anything
// else means a concurrent writer won and the save is rejected.
func (r repo) SaveDispatchDay(ctx context.Context, day models.DispatchDay) error {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO dispatch_days (date, status, version, dispatched_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (date) DO UPDATE SET
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			dispatched_at = EXCLUDED.dispatched_at
		WHERE dispatch_days.version = EXCLUDED.version - 1
	`, day.Date, day.Status, day.Version, day.DispatchedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

func (r repo) AcksForDate(ctx context.Context, date string) ([]models.WarningAck, error) {
	rows, err := r.q.Query(ctx, `SELECT date, warning_id, resolution, created_at
		FROM warning_acks WHERE date = $1 ORDER BY warning_id`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WarningAck
	for rows.Next() {
		var a models.WarningAck
		if err := rows.Scan(&a.Date, &a.WarningID, &a.Resolution, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r repo) InsertWarningAck(ctx context.Context, ack models.WarningAck) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO warning_acks (date, warning_id, resolution, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (date, warning_id) DO UPDATE SET
			resolution = EXCLUDED.resolution,
			created_at = EXCLUDED.created_at
	`, ack.Date, ack.WarningID, ack.Resolution, ack.CreatedAt)
	return err
}

func (r repo) TruncateData(ctx context.Context) error {
	_, err := r.q.Exec(ctx, `TRUNCATE pickup_assignments, guide_assignments, warning_acks, dispatch_days,
		guide_availability_overrides, bookings, guides, pickup_addresses, tours`)
	return err
}

func (r repo) InsertTours(ctx context.Context, tours []models.Tour) (int64, error) {
	rows := make([][]any, 0, len(tours))
	for _, t := range tours {
		rows = append(rows, []any{t.ID, t.Name, t.DurationMinutes, t.MeetingLat, t.MeetingLon})
	}
	return r.q.CopyFrom(ctx, pgx.Identifier{"tours"},
		[]string{"id", "name", "duration_minutes", "meeting_lat", "meeting_lon"}, pgx.CopyFromRows(rows))
}

func (r repo) InsertPickupAddresses(ctx context.Context, addrs []models.PickupAddress) (int64, error) {
	rows := make([][]any, 0, len(addrs))
	for _, a := range addrs {
		rows = append(rows, []any{a.ID, a.Name, a.Zone, a.Lat, a.Lon, a.AvgPickupMinutes})
	}
	return r.q.CopyFrom(ctx, pgx.Identifier{"pickup_addresses"},
		[]string{"id", "name", "zone", "lat", "lon", "avg_pickup_minutes"}, pgx.CopyFromRows(rows))
}

func (r repo) InsertGuides(ctx context.Context, guides []models.Guide) (int64, error) {
	rows := make([][]any, 0, len(guides))
	for _, g := range guides {
		rows = append(rows, []any{g.ID, g.Name, g.Phone, g.VehicleCapacity, g.QualifiedTours,
			g.WeeklyDays, g.Kind, g.ValidOn, g.Active, g.CreatedAt})
	}
	return r.q.CopyFrom(ctx, pgx.Identifier{"guides"},
		[]string{"id", "name", "phone", "vehicle_capacity", "qualified_tours", "weekly_days",
			"kind", "valid_on", "active", "created_at"}, pgx.CopyFromRows(rows))
}

func (r repo) InsertBookings(ctx context.Context, bookings []models.Booking) (int64, error) {
	rows := make([][]any, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, []any{b.ID, b.TourID, b.Date, b.Time, b.Adults, b.Children,
			b.Infants, b.PickupAddressID, b.IsPrivate, b.CustomerName})
	}
	return r.q.CopyFrom(ctx, pgx.Identifier{"bookings"},
		[]string{"id", "tour_id", "date", "time", "adults", "children", "infants",
			"pickup_address_id", "is_private", "customer_name"}, pgx.CopyFromRows(rows))
}
