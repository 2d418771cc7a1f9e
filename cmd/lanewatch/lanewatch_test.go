package main

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lane.report/internal/bus"
	"github.com/banshee-data/lane.report/internal/camera"
	"github.com/banshee-data/lane.report/internal/db"
	"github.com/banshee-data/lane.report/internal/edgefeed"
	"github.com/banshee-data/lane.report/internal/enforce"
	"github.com/banshee-data/lane.report/internal/lane"
	"github.com/banshee-data/lane.report/internal/testutil"
	"github.com/banshee-data/lane.report/internal/timeutil"
	"github.com/banshee-data/lane.report/internal/units"
)

// TestLanewatchEndToEnd drives the full pipeline from raw sensor lines to a
// plated display frame: two START edges and an END make one light-vehicle
// passage, the quiet window finalizes it, the controller flags the
// infraction, and the camera (forced to always succeed) confirms the plate.
func TestLanewatchEndToEnd(t *testing.T) {
	testutil.MuteDiagnostics(t)
	testingDir := t.TempDir()

	database, err := db.NewDB(filepath.Join(testingDir, "test_lane_data.db"))
	require.NoError(t, err)
	defer func() {
		require.NoError(t, database.Close())
	}()

	passages := bus.NewMailbox[lane.Passage]("passages", 8)
	frames := bus.NewMailbox[enforce.DisplayFrame]("display", 8)
	triggers := bus.NewBroadcast[enforce.CameraTrigger]("camera_triggers")
	results := bus.NewBroadcast[enforce.CameraResult]("camera_results")
	cameraSub := triggers.Subscribe("camera", 8)
	controllerSub := results.Subscribe("controller", 8)

	clock := timeutil.RealClock{}
	quietWindow := 50 * time.Millisecond

	feed := edgefeed.NewFeed(edgefeed.NewMockPort("1,START,0\n1,START,100\n1,END,400\n"))
	feed.Register(1, lane.NewMonitor(1, quietWindow, clock, passages))

	// 5000mm in 400ms is 45 km/h; limit 40 makes the passage an infraction
	limits := enforce.Limits{
		DistanceMM:     5000,
		LightLimitKMH:  40,
		HeavyLimitKMH:  50,
		WarningPercent: 90,
	}
	controller := enforce.NewController(limits, passages, frames, triggers, controllerSub, database)

	cam := camera.NewSimulator(cameraSub, results, time.Millisecond, 0, rand.New(rand.NewSource(1)), clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go controller.Run(ctx)
	go cam.Run(ctx)

	require.NoError(t, feed.Monitor(context.Background()))
	require.Equal(t, uint64(0), feed.Malformed())

	// first frame: the raw infraction reading, known before any plate
	var first enforce.DisplayFrame
	require.Eventually(t, func() bool {
		var ok bool
		first, ok = frames.Poll()
		return ok
	}, 2*time.Second, time.Millisecond, "expected the infraction frame")
	require.Equal(t, 1, first.Lane)
	require.Equal(t, int64(45), first.SpeedKMH)
	require.Equal(t, int64(40), first.LimitKMH)
	require.Equal(t, lane.ClassLight, first.Class)
	require.Equal(t, enforce.StatusInfraction, first.Status)
	require.Empty(t, first.Plate)

	// second frame: the plate-confirmed infraction
	var second enforce.DisplayFrame
	require.Eventually(t, func() bool {
		var ok bool
		second, ok = frames.Poll()
		return ok
	}, 2*time.Second, time.Millisecond, "expected the plated frame")
	require.Equal(t, enforce.StatusInfraction, second.Status)
	require.True(t, enforce.ValidatePlate(second.Plate), "plate %q is malformed", second.Plate)

	// both the reading and its plate reached the database
	require.Eventually(t, func() bool {
		rows, err := database.ListInfractions(ctx, 10)
		return err == nil && len(rows) == 1 && rows[0].Plate != nil
	}, 2*time.Second, 5*time.Millisecond, "expected a plated infraction row")

	rows, err := database.ListInfractions(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, second.Plate, *rows[0].Plate)
	require.Equal(t, float64(45), rows[0].SpeedKMH)
	require.Equal(t, 2, rows[0].AxleCount)
}

func TestFlagDefaults(t *testing.T) {
	if *listen != ":8080" {
		t.Errorf("listen default = %q, want :8080", *listen)
	}
	if *port != "/dev/ttyUSB0" {
		t.Errorf("port default = %q, want /dev/ttyUSB0", *port)
	}
	if *dbFile != "lane_data.db" {
		t.Errorf("db default = %q, want lane_data.db", *dbFile)
	}
	if *unitsFlag != units.KMPH {
		t.Errorf("units default = %q, want %q", *unitsFlag, units.KMPH)
	}
	if *devMode {
		t.Error("dev mode should default to off")
	}
	if *seed != 0 {
		t.Errorf("seed default = %d, want 0", *seed)
	}
}
