// Package db persists speed readings, confirmed infraction plates, and
// hourly rollups in sqlite.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/lane.report/internal/enforce"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the sqlite database at path without
// touching the schema. Migration tooling uses this to observe the schema
// as it is.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{sqlDB}, nil
}

// NewDB opens the sqlite database at path and applies any pending schema
// migrations. The embedded migration files under migrations/ define the
// schema; there is no other DDL.
func NewDB(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return db, nil
}

// RecordReading stores one computed speed reading. Implements
// enforce.RecordStore.
func (db *DB) RecordReading(ctx context.Context, r enforce.Reading) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO speed_readings (
			reading_id, lane, start_ms, end_ms, duration_ms,
			axle_count, vehicle_class, speed_kmh, limit_kmh, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID.String(), r.Lane, r.StartMS, r.EndMS, r.DurationMS,
		r.AxleCount, r.Class.String(), r.SpeedKMH, r.LimitKMH, r.Status.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// RecordPlate stores the confirmed plate for an infraction reading.
// Implements enforce.RecordStore.
func (db *DB) RecordPlate(ctx context.Context, readingID uuid.UUID, plate string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO infraction_plates (reading_id, plate)
		VALUES (?, ?)
		ON CONFLICT(reading_id) DO UPDATE SET
			plate = excluded.plate,
			recorded_at = UNIXEPOCH('subsec')
	`, readingID.String(), plate)
	if err != nil {
		return fmt.Errorf("failed to insert plate: %w", err)
	}
	return nil
}

// ReadingRow is one stored reading, with the confirmed plate when one
// exists.
type ReadingRow struct {
	ReadingID    string  `json:"reading_id"`
	Lane         int     `json:"lane"`
	StartMS      int64   `json:"start_ms"`
	EndMS        int64   `json:"end_ms"`
	DurationMS   int64   `json:"duration_ms"`
	AxleCount    int     `json:"axle_count"`
	VehicleClass string  `json:"vehicle_class"`
	SpeedKMH     float64 `json:"speed_kmh"`
	LimitKMH     float64 `json:"limit_kmh"`
	Status       string  `json:"status"`
	Plate        *string `json:"plate,omitempty"`
	RecordedAt   float64 `json:"recorded_at"`
}

// ListReadings returns the most recent readings, newest first.
func (db *DB) ListReadings(ctx context.Context, limit int) ([]ReadingRow, error) {
	return db.queryReadings(ctx, `
		SELECT
			r.reading_id, r.lane, r.start_ms, r.end_ms, r.duration_ms,
			r.axle_count, r.vehicle_class, r.speed_kmh, r.limit_kmh, r.status,
			p.plate, r.recorded_at
		FROM speed_readings r
		LEFT JOIN infraction_plates p ON p.reading_id = r.reading_id
		ORDER BY r.recorded_at DESC
		LIMIT ?
	`, limit)
}

// ListInfractions returns the most recent infraction readings, newest first.
func (db *DB) ListInfractions(ctx context.Context, limit int) ([]ReadingRow, error) {
	return db.queryReadings(ctx, `
		SELECT
			r.reading_id, r.lane, r.start_ms, r.end_ms, r.duration_ms,
			r.axle_count, r.vehicle_class, r.speed_kmh, r.limit_kmh, r.status,
			p.plate, r.recorded_at
		FROM speed_readings r
		LEFT JOIN infraction_plates p ON p.reading_id = r.reading_id
		WHERE r.status = 'infraction'
		ORDER BY r.recorded_at DESC
		LIMIT ?
	`, limit)
}

func (db *DB) queryReadings(ctx context.Context, query string, args ...interface{}) ([]ReadingRow, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var out []ReadingRow
	for rows.Next() {
		var r ReadingRow
		var plate sql.NullString
		if err := rows.Scan(
			&r.ReadingID, &r.Lane, &r.StartMS, &r.EndMS, &r.DurationMS,
			&r.AxleCount, &r.VehicleClass, &r.SpeedKMH, &r.LimitKMH, &r.Status,
			&plate, &r.RecordedAt,
		); err != nil {
			return nil, err
		}
		if plate.Valid {
			r.Plate = &plate.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RollupRow is one hourly aggregate for a vehicle class.
type RollupRow struct {
	RollupHour      int64   `json:"rollup_hour"`
	VehicleClass    string  `json:"vehicle_class"`
	ReadingCount    int64   `json:"reading_count"`
	MaxSpeedKMH     float64 `json:"max_speed_kmh"`
	MinSpeedKMH     float64 `json:"min_speed_kmh"`
	AvgSpeedKMH     float64 `json:"avg_speed_kmh"`
	InfractionCount int64   `json:"infraction_count"`
}

// ListRollups returns the most recent hourly rollups, newest first.
func (db *DB) ListRollups(ctx context.Context, limit int) ([]RollupRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT rollup_hour, vehicle_class, reading_count,
			max_speed_kmh, min_speed_kmh, avg_speed_kmh, infraction_count
		FROM speed_rollups
		ORDER BY rollup_hour DESC, vehicle_class
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer rows.Close()

	var out []RollupRow
	for rows.Next() {
		var r RollupRow
		if err := rows.Scan(
			&r.RollupHour, &r.VehicleClass, &r.ReadingCount,
			&r.MaxSpeedKMH, &r.MinSpeedKMH, &r.AvgSpeedKMH, &r.InfractionCount,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
