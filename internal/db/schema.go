package db

import "context"

// InitSchema creates the tables on startup when they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tours (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	duration_minutes INT NOT NULL DEFAULT 0,
	meeting_lat      DOUBLE PRECISION NOT NULL DEFAULT 0,
	meeting_lon      DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pickup_addresses (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	zone               TEXT NOT NULL DEFAULT '',
	lat                DOUBLE PRECISION NOT NULL DEFAULT 0,
	lon                DOUBLE PRECISION NOT NULL DEFAULT 0,
	avg_pickup_minutes INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS guides (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	phone            TEXT NOT NULL DEFAULT '',
	vehicle_capacity INT NOT NULL,
	qualified_tours  TEXT[] NOT NULL DEFAULT '{}',
	weekly_days      SMALLINT[] NOT NULL DEFAULT '{}',
	kind             TEXT NOT NULL DEFAULT 'system',
	valid_on         TEXT,
	active           BOOLEAN NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS guide_availability_overrides (
	guide_id     TEXT NOT NULL REFERENCES guides(id),
	date         TEXT NOT NULL,
	is_available BOOLEAN NOT NULL,
	PRIMARY KEY (guide_id, date)
);

CREATE TABLE IF NOT EXISTS bookings (
	id                TEXT PRIMARY KEY,
	tour_id           TEXT NOT NULL REFERENCES tours(id),
	date              TEXT NOT NULL,
	time              TEXT NOT NULL,
	adults            INT NOT NULL DEFAULT 0,
	children          INT NOT NULL DEFAULT 0,
	infants           INT NOT NULL DEFAULT 0,
	pickup_address_id TEXT NOT NULL DEFAULT '',
	is_private        BOOLEAN NOT NULL DEFAULT FALSE,
	customer_name     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS bookings_date_idx ON bookings (date);

CREATE TABLE IF NOT EXISTS guide_assignments (
	id         TEXT PRIMARY KEY,
	guide_id   TEXT NOT NULL REFERENCES guides(id),
	tour_id    TEXT NOT NULL,
	date       TEXT NOT NULL,
	time       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (guide_id, tour_id, date, time)
);
CREATE INDEX IF NOT EXISTS guide_assignments_date_idx ON guide_assignments (date);

CREATE TABLE IF NOT EXISTS pickup_assignments (
	id                  TEXT PRIMARY KEY,
	guide_assignment_id TEXT NOT NULL REFERENCES guide_assignments(id) ON DELETE CASCADE,
	booking_id          TEXT NOT NULL REFERENCES bookings(id),
	position            INT NOT NULL,
	calculated_time     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	actual_time         TIMESTAMPTZ,
	status              TEXT NOT NULL DEFAULT 'pending'
);
CREATE INDEX IF NOT EXISTS pickup_assignments_ga_idx ON pickup_assignments (guide_assignment_id);

CREATE TABLE IF NOT EXISTS dispatch_days (
	date          TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	version       INT NOT NULL,
	dispatched_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS warning_acks (
	date       TEXT NOT NULL,
	warning_id TEXT NOT NULL,
	resolution TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (date, warning_id)
);
`)
	return err
}
