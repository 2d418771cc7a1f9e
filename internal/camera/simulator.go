// Package camera simulates the plate-read camera stage: a delayed,
// failure-prone read for each trigger, with exactly one result published
// per trigger.
package camera

import (
	"context"
	"math/rand"
	"time"

	"github.com/banshee-data/lane.report/internal/bus"
	"github.com/banshee-data/lane.report/internal/enforce"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/timeutil"
)

// DefaultProcessingDelay models sensor-to-result latency of the simulated
// camera hardware.
const DefaultProcessingDelay = 150 * time.Millisecond

// Simulator consumes camera triggers and publishes one result per trigger.
// The random source is injected and seedable so tests can force both
// outcomes deterministically.
type Simulator struct {
	triggers       *bus.Subscription[enforce.CameraTrigger]
	results        *bus.Broadcast[enforce.CameraResult]
	delay          time.Duration
	failurePercent int
	rng            *rand.Rand
	clock          timeutil.Clock
}

// NewSimulator creates a camera simulator. failurePercent is the chance in
// [0,100] that a read fails; delay < 0 selects DefaultProcessingDelay.
func NewSimulator(
	triggers *bus.Subscription[enforce.CameraTrigger],
	results *bus.Broadcast[enforce.CameraResult],
	delay time.Duration,
	failurePercent int,
	rng *rand.Rand,
	clock timeutil.Clock,
) *Simulator {
	if delay < 0 {
		delay = DefaultProcessingDelay
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Simulator{
		triggers:       triggers,
		results:        results,
		delay:          delay,
		failurePercent: failurePercent,
		rng:            rng,
		clock:          clock,
	}
}

// Run services triggers until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trig := <-s.triggers.C():
			s.process(ctx, trig)
		}
	}
}

// process performs one simulated read. No retries and no backpressure
// beyond the bus's drop-on-full policy.
func (s *Simulator) process(ctx context.Context, trig enforce.CameraTrigger) {
	select {
	case <-ctx.Done():
		return
	case <-s.clock.After(s.delay):
	}

	if s.rng.Intn(100) < s.failurePercent {
		monitoring.Logf("camera: plate read failed for reading %s (%d km/h %s)",
			trig.ReadingID, trig.SpeedKMH, trig.Class)
		s.results.Publish(enforce.CameraResult{
			ReadingID: trig.ReadingID,
			ValidRead: false,
		})
		return
	}

	plate := s.synthesizePlate()
	if !enforce.ValidatePlate(plate) {
		// Would indicate a generator bug, not a simulated failure.
		monitoring.Logf("camera: synthesized malformed plate %q", plate)
	}
	s.results.Publish(enforce.CameraResult{
		ReadingID: trig.ReadingID,
		Plate:     plate,
		ValidRead: true,
	})
}

// synthesizePlate builds a plate in the Mercosul layout: three uppercase
// letters, one digit, one uppercase letter, two digits.
func (s *Simulator) synthesizePlate() string {
	b := make([]byte, 7)
	for _, i := range []int{0, 1, 2, 4} {
		b[i] = byte('A' + s.rng.Intn(26))
	}
	for _, i := range []int{3, 5, 6} {
		b[i] = byte('0' + s.rng.Intn(10))
	}
	return string(b)
}
