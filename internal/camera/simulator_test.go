package camera

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lane.report/internal/bus"
	"github.com/banshee-data/lane.report/internal/enforce"
	"github.com/banshee-data/lane.report/internal/monitoring"
)

type simHarness struct {
	triggers *bus.Broadcast[enforce.CameraTrigger]
	results  *bus.Subscription[enforce.CameraResult]
}

func startSimulator(t *testing.T, failurePercent int, seed int64) *simHarness {
	t.Helper()

	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	triggers := bus.NewBroadcast[enforce.CameraTrigger]("camera-triggers")
	results := bus.NewBroadcast[enforce.CameraResult]("camera-results")
	h := &simHarness{
		triggers: triggers,
		results:  results.Subscribe("test", 8),
	}

	sim := NewSimulator(
		triggers.Subscribe("camera", 8),
		results,
		0, // no processing delay in tests
		failurePercent,
		rand.New(rand.NewSource(seed)),
		nil,
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sim.Run(ctx)
	return h
}

func waitResult(t *testing.T, h *simHarness) enforce.CameraResult {
	t.Helper()
	var res enforce.CameraResult
	require.Eventually(t, func() bool {
		var ok bool
		res, ok = h.results.Poll()
		return ok
	}, time.Second, time.Millisecond, "expected a camera result")
	return res
}

func TestSimulatorSuccessfulRead(t *testing.T) {
	h := startSimulator(t, 0, 1)

	id := uuid.New()
	h.triggers.Publish(enforce.CameraTrigger{ReadingID: id, SpeedKMH: 80})

	res := waitResult(t, h)
	require.True(t, res.ValidRead)
	require.Equal(t, id, res.ReadingID)
	require.True(t, enforce.ValidatePlate(res.Plate), "synthesized plate %q must match the layout", res.Plate)
}

func TestSimulatorFailedRead(t *testing.T) {
	h := startSimulator(t, 100, 1)

	id := uuid.New()
	h.triggers.Publish(enforce.CameraTrigger{ReadingID: id})

	res := waitResult(t, h)
	require.False(t, res.ValidRead)
	require.Equal(t, id, res.ReadingID)
	require.Empty(t, res.Plate)
}

func TestSimulatorExactlyOneResultPerTrigger(t *testing.T) {
	h := startSimulator(t, 0, 42)

	const n = 5
	for i := 0; i < n; i++ {
		h.triggers.Publish(enforce.CameraTrigger{ReadingID: uuid.New()})
	}

	seen := make(map[uuid.UUID]int)
	for i := 0; i < n; i++ {
		res := waitResult(t, h)
		seen[res.ReadingID]++
	}
	require.Len(t, seen, n)
	for id, count := range seen {
		require.Equal(t, 1, count, "reading %s got %d results", id, count)
	}

	time.Sleep(20 * time.Millisecond)
	if res, ok := h.results.Poll(); ok {
		t.Fatalf("extra camera result published: %+v", res)
	}
}

func TestSimulatorSeededDeterminism(t *testing.T) {
	h1 := startSimulator(t, 0, 7)
	h2 := startSimulator(t, 0, 7)

	h1.triggers.Publish(enforce.CameraTrigger{ReadingID: uuid.New()})
	h2.triggers.Publish(enforce.CameraTrigger{ReadingID: uuid.New()})

	r1 := waitResult(t, h1)
	r2 := waitResult(t, h2)
	require.Equal(t, r1.Plate, r2.Plate, "identical seeds must synthesize identical plates")
}
