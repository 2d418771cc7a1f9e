package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/banshee-data/lane.report/internal/enforce"
	"github.com/banshee-data/lane.report/internal/lane"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "lane_test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func testReading(status enforce.Status, speed int64) enforce.Reading {
	return enforce.Reading{
		ID:         uuid.New(),
		Lane:       1,
		StartMS:    1000,
		EndMS:      1400,
		DurationMS: 400,
		AxleCount:  2,
		Class:      lane.ClassLight,
		SpeedKMH:   speed,
		LimitKMH:   60,
		Status:     status,
	}
}

func TestRecordAndListReadings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := testReading(enforce.StatusWarning, 55)
	if err := db.RecordReading(ctx, r); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}

	rows, err := db.ListReadings(ctx, 10)
	if err != nil {
		t.Fatalf("ListReadings: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ListReadings returned %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.ReadingID != r.ID.String() {
		t.Errorf("ReadingID = %q, want %q", got.ReadingID, r.ID)
	}
	if got.SpeedKMH != 55 || got.Status != "warning" || got.VehicleClass != "light" {
		t.Errorf("row = %+v, want speed 55 / warning / light", got)
	}
	if got.Plate != nil {
		t.Errorf("Plate = %q, want none before a plate is recorded", *got.Plate)
	}
}

func TestRecordPlateJoinsInfraction(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := testReading(enforce.StatusInfraction, 95)
	if err := db.RecordReading(ctx, r); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}
	if err := db.RecordPlate(ctx, r.ID, "ABC1D23"); err != nil {
		t.Fatalf("RecordPlate: %v", err)
	}

	rows, err := db.ListInfractions(ctx, 10)
	if err != nil {
		t.Fatalf("ListInfractions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("ListInfractions returned %d rows, want 1", len(rows))
	}
	if rows[0].Plate == nil || *rows[0].Plate != "ABC1D23" {
		t.Errorf("Plate = %v, want ABC1D23", rows[0].Plate)
	}

	// Re-recording the same reading's plate updates rather than fails.
	if err := db.RecordPlate(ctx, r.ID, "XYZ9A00"); err != nil {
		t.Fatalf("RecordPlate upsert: %v", err)
	}
	rows, err = db.ListInfractions(ctx, 10)
	if err != nil {
		t.Fatalf("ListInfractions: %v", err)
	}
	if *rows[0].Plate != "XYZ9A00" {
		t.Errorf("Plate after upsert = %q, want XYZ9A00", *rows[0].Plate)
	}
}

func TestListInfractionsExcludesOtherStatuses(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, r := range []enforce.Reading{
		testReading(enforce.StatusNormal, 40),
		testReading(enforce.StatusWarning, 55),
		testReading(enforce.StatusInfraction, 80),
	} {
		if err := db.RecordReading(ctx, r); err != nil {
			t.Fatalf("RecordReading: %v", err)
		}
	}

	rows, err := db.ListInfractions(ctx, 10)
	if err != nil {
		t.Fatalf("ListInfractions: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "infraction" {
		t.Errorf("ListInfractions = %+v, want exactly the infraction row", rows)
	}
}

func TestRollupWorkerRunFullHistory(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	heavy := testReading(enforce.StatusInfraction, 70)
	heavy.Class = lane.ClassHeavy
	heavy.LimitKMH = 50

	for _, r := range []enforce.Reading{
		testReading(enforce.StatusNormal, 40),
		testReading(enforce.StatusInfraction, 90),
		heavy,
	} {
		if err := db.RecordReading(ctx, r); err != nil {
			t.Fatalf("RecordReading: %v", err)
		}
	}

	w := NewRollupWorker(db)
	if err := w.RunFullHistory(ctx); err != nil {
		t.Fatalf("RunFullHistory: %v", err)
	}

	rollups, err := db.ListRollups(ctx, 10)
	if err != nil {
		t.Fatalf("ListRollups: %v", err)
	}
	if len(rollups) != 2 {
		t.Fatalf("ListRollups returned %d buckets, want 2 (light and heavy)", len(rollups))
	}

	byClass := make(map[string]RollupRow)
	for _, r := range rollups {
		byClass[r.VehicleClass] = r
	}
	light := byClass["light"]
	if light.ReadingCount != 2 || light.MaxSpeedKMH != 90 || light.MinSpeedKMH != 40 || light.InfractionCount != 1 {
		t.Errorf("light rollup = %+v, want count 2, max 90, min 40, infractions 1", light)
	}
	if light.AvgSpeedKMH != 65 {
		t.Errorf("light AvgSpeedKMH = %v, want 65", light.AvgSpeedKMH)
	}
	heavyRollup := byClass["heavy"]
	if heavyRollup.ReadingCount != 1 || heavyRollup.InfractionCount != 1 {
		t.Errorf("heavy rollup = %+v, want count 1, infractions 1", heavyRollup)
	}
}

func TestRollupWorkerRerunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.RecordReading(ctx, testReading(enforce.StatusNormal, 40)); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}

	w := NewRollupWorker(db)
	if err := w.RunFullHistory(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := w.RunFullHistory(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}

	rollups, err := db.ListRollups(ctx, 10)
	if err != nil {
		t.Fatalf("ListRollups: %v", err)
	}
	if len(rollups) != 1 || rollups[0].ReadingCount != 1 {
		t.Errorf("rollups after rerun = %+v, want a single unchanged bucket", rollups)
	}
}

func TestRollupWorkerNoReadingsIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	w := NewRollupWorker(db)
	if err := w.RunFullHistory(context.Background()); err != nil {
		t.Fatalf("RunFullHistory on empty database: %v", err)
	}
}

func TestRecordReadingDuplicateIDFails(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := testReading(enforce.StatusNormal, 40)
	if err := db.RecordReading(ctx, r); err != nil {
		t.Fatalf("RecordReading: %v", err)
	}
	if err := db.RecordReading(ctx, r); err == nil {
		t.Error("duplicate reading_id accepted, want primary key violation")
	}
}
