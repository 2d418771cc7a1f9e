// Package lane turns raw rising-edge events from a lane's two position
// sensors into finalized vehicle passage records. Each monitored lane owns
// one state machine and one quiet-window timer; lanes are fully independent.
package lane

import "fmt"

// VehicleClass is the axle-count-derived classification of a vehicle.
type VehicleClass int

const (
	ClassLight VehicleClass = iota
	ClassHeavy
)

func (c VehicleClass) String() string {
	switch c {
	case ClassLight:
		return "light"
	case ClassHeavy:
		return "heavy"
	default:
		return fmt.Sprintf("VehicleClass(%d)", int(c))
	}
}

// ClassifyAxles classifies a vehicle by its axle count. Two axles or fewer
// is a light vehicle, anything more is heavy.
func ClassifyAxles(axleCount int) VehicleClass {
	if axleCount <= 2 {
		return ClassLight
	}
	return ClassHeavy
}

// Sensor identifies which of the lane's two position sensors fired.
type Sensor int

const (
	SensorStart Sensor = iota
	SensorEnd
)

func (s Sensor) String() string {
	switch s {
	case SensorStart:
		return "start"
	case SensorEnd:
		return "end"
	default:
		return fmt.Sprintf("Sensor(%d)", int(s))
	}
}

// EdgeEvent is one rising edge from a lane position sensor. Timestamps are
// monotonic milliseconds from the sensor source.
type EdgeEvent struct {
	Lane        int
	Sensor      Sensor
	TimestampMS int64
}

// Passage is a finalized vehicle transit through a lane. It is immutable
// once produced; ownership moves into the passage mailbox.
type Passage struct {
	Lane       int
	StartMS    int64
	EndMS      int64
	DurationMS int64
	AxleCount  int
	Class      VehicleClass
}

type phase int

const (
	phaseIdle phase = iota
	phaseActive
)

// fsm is the per-lane sensor state machine. It holds no locks and arms no
// timers; Monitor provides the single-writer discipline around it.
type fsm struct {
	phase     phase
	startMS   int64
	endMS     int64
	axleCount int
	endSeen   bool
}

// handleStart records an axle crossing the entry sensor. The first axle of
// a passage moves the lane to active and stamps the start time; subsequent
// axles of the same vehicle only increment the count.
func (f *fsm) handleStart(timestampMS int64) {
	if f.phase == phaseIdle {
		f.phase = phaseActive
		f.startMS = timestampMS
		f.endMS = 0
		f.axleCount = 1
		f.endSeen = false
		return
	}
	f.axleCount++
}

// handleEnd records the vehicle front clearing the exit sensor. Only the
// first END of an active passage counts; repeats from a dirty signal are
// ignored.
func (f *fsm) handleEnd(timestampMS int64) {
	if f.phase == phaseActive && !f.endSeen {
		f.endMS = timestampMS
		f.endSeen = true
	}
}

// finalize closes the measurement window. It produces a passage record only
// when an END was seen with a time strictly after the start. The lane
// returns to idle regardless of outcome, so a failed measurement never
// wedges the lane.
func (f *fsm) finalize() (Passage, bool) {
	if f.phase != phaseActive {
		return Passage{}, false
	}

	var p Passage
	produced := false
	if f.endSeen && f.endMS > f.startMS {
		p = Passage{
			StartMS:    f.startMS,
			EndMS:      f.endMS,
			DurationMS: f.endMS - f.startMS,
			AxleCount:  f.axleCount,
			Class:      ClassifyAxles(f.axleCount),
		}
		produced = true
	}

	f.phase = phaseIdle
	f.startMS = 0
	f.endMS = 0
	f.axleCount = 0
	f.endSeen = false
	return p, produced
}
