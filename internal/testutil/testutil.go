// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"testing"
	"time"

	"github.com/banshee-data/lane.report/internal/lane"
	"github.com/banshee-data/lane.report/internal/monitoring"
)

// MuteDiagnostics silences the package diagnostic log for the duration of a
// test and restores it afterwards.
func MuteDiagnostics(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// Passage builds a completed transit for the given lane with a start/end
// edge pair durationMS apart and the given axle count.
func Passage(laneNum int, startMS, durationMS int64, axles int) lane.Passage {
	return lane.Passage{
		Lane:       laneNum,
		StartMS:    startMS,
		EndMS:      startMS + durationMS,
		DurationMS: durationMS,
		AxleCount:  axles,
		Class:      lane.ClassifyAxles(axles),
	}
}

// EdgePair builds the start and end edge events for one transit.
func EdgePair(laneNum int, startMS, durationMS int64) (lane.EdgeEvent, lane.EdgeEvent) {
	return lane.EdgeEvent{Lane: laneNum, Sensor: lane.SensorStart, TimestampMS: startMS},
		lane.EdgeEvent{Lane: laneNum, Sensor: lane.SensorEnd, TimestampMS: startMS + durationMS}
}

// Eventually polls cond every millisecond until it returns true or the
// timeout elapses, failing the test on timeout.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}
