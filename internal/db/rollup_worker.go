package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/lane.report/internal/monitoring"
)

// RollupWorker periodically aggregates recent speed_readings into hourly
// per-class rollups in speed_rollups. Designed to run every 15 minutes and
// process the last hour window (with an extra hour of overlap so late
// writes update their bucket).
type RollupWorker struct {
	DB       *DB
	Interval time.Duration // how often to run (e.g., 15m)
	Window   time.Duration // lookback window (e.g., 2h)
	StopChan chan struct{}
}

func NewRollupWorker(db *DB) *RollupWorker {
	return &RollupWorker{
		DB:       db,
		Interval: 15 * time.Minute,
		Window:   2 * time.Hour,
		StopChan: make(chan struct{}),
	}
}

// Start runs the periodic worker loop in a goroutine.
func (w *RollupWorker) Start() {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					monitoring.Logf("rollup worker run error: %v", err)
				}
			case <-w.StopChan:
				return
			}
		}
	}()
}

// Stop requests the worker to stop.
func (w *RollupWorker) Stop() {
	close(w.StopChan)
}

// RunOnce aggregates the last w.Window and upserts rollups.
func (w *RollupWorker) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	end := float64(now.Unix())
	start := float64(now.Add(-w.Window).Unix())

	return w.RunRange(ctx, start, end)
}

// RunFullHistory aggregates the full available readings range.
func (w *RollupWorker) RunFullHistory(ctx context.Context) error {
	var start sql.NullFloat64
	var end sql.NullFloat64
	if err := w.DB.QueryRowContext(ctx,
		`SELECT MIN(recorded_at), MAX(recorded_at) FROM speed_readings`,
	).Scan(&start, &end); err != nil {
		return err
	}
	if !start.Valid || !end.Valid {
		monitoring.Logf("rollup worker full-history run skipped (no readings)")
		return nil
	}
	return w.RunRange(ctx, start.Float64, end.Float64)
}

// RunRange aggregates readings recorded in [start,end] (unix seconds) into
// hourly buckets. Re-running over an overlapping range is safe: buckets are
// recomputed from the readings, not incremented.
func (w *RollupWorker) RunRange(ctx context.Context, start, end float64) error {
	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			monitoring.Logf("warning: failed to rollback rollup transaction: %v", err)
		}
	}()

	// Aggregate in SQL; each (hour, class) bucket within the range is
	// recomputed wholesale.
	rows, err := tx.QueryContext(ctx, `
		SELECT
			CAST(recorded_at / 3600 AS INTEGER) * 3600 AS rollup_hour,
			vehicle_class,
			COUNT(*),
			MAX(speed_kmh),
			MIN(speed_kmh),
			AVG(speed_kmh),
			SUM(CASE WHEN status = 'infraction' THEN 1 ELSE 0 END)
		FROM speed_readings
		WHERE recorded_at BETWEEN ? AND ?
		GROUP BY rollup_hour, vehicle_class
	`, start, end)
	if err != nil {
		return err
	}
	defer rows.Close()

	type bucket struct {
		Hour        int64
		Class       string
		Count       int64
		MaxSpeed    float64
		MinSpeed    float64
		AvgSpeed    float64
		Infractions int64
	}

	var buckets []bucket
	for rows.Next() {
		var b bucket
		if err := rows.Scan(&b.Hour, &b.Class, &b.Count, &b.MaxSpeed, &b.MinSpeed, &b.AvgSpeed, &b.Infractions); err != nil {
			return err
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	upsertStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO speed_rollups (
			rollup_hour,
			vehicle_class,
			reading_count,
			max_speed_kmh,
			min_speed_kmh,
			avg_speed_kmh,
			infraction_count,
			updated_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, UNIXEPOCH('subsec')
		)
		ON CONFLICT(rollup_hour, vehicle_class) DO UPDATE SET
			reading_count = excluded.reading_count,
			max_speed_kmh = excluded.max_speed_kmh,
			min_speed_kmh = excluded.min_speed_kmh,
			avg_speed_kmh = excluded.avg_speed_kmh,
			infraction_count = excluded.infraction_count,
			updated_at = UNIXEPOCH('subsec')
	`)
	if err != nil {
		return err
	}
	defer upsertStmt.Close()

	for _, b := range buckets {
		if _, err := upsertStmt.ExecContext(ctx,
			b.Hour, b.Class, b.Count, b.MaxSpeed, b.MinSpeed, b.AvgSpeed, b.Infractions,
		); err != nil {
			return fmt.Errorf("failed to upsert rollup bucket (%d, %s): %w", b.Hour, b.Class, err)
		}
	}

	return tx.Commit()
}
