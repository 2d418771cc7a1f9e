package lane

import (
	"sync"
	"time"

	"github.com/banshee-data/lane.report/internal/bus"
	"github.com/banshee-data/lane.report/internal/monitoring"
	"github.com/banshee-data/lane.report/internal/timeutil"
)

// DefaultQuietWindow is how long a lane must stay quiet after the last axle
// before the passage is presumed complete. Longer than inter-axle spacing,
// shorter than inter-vehicle spacing.
const DefaultQuietWindow = 2 * time.Second

// Monitor owns one lane's state machine and its quiet-window supervision.
// Edge events and timer expiries may arrive on different goroutines; the
// mutex serializes handleStart, handleEnd and finalize per lane. Each
// (re)arm bumps a generation counter and expiries carry the generation they
// were armed with, so a rearm before expiry invalidates the pending expiry.
type Monitor struct {
	lane        int
	quietWindow time.Duration
	clock       timeutil.Clock
	out         *bus.Mailbox[Passage]

	mu     sync.Mutex
	fsm    fsm
	armGen uint64
}

// NewMonitor creates a monitor for one lane that pushes finalized passages
// into out. quietWindow <= 0 selects DefaultQuietWindow.
func NewMonitor(laneID int, quietWindow time.Duration, clock timeutil.Clock, out *bus.Mailbox[Passage]) *Monitor {
	if quietWindow <= 0 {
		quietWindow = DefaultQuietWindow
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Monitor{
		lane:        laneID,
		quietWindow: quietWindow,
		clock:       clock,
		out:         out,
	}
}

// Lane returns the monitored lane's identifier.
func (m *Monitor) Lane() int {
	return m.lane
}

// HandleEdge dispatches a raw edge event to the lane's state machine.
func (m *Monitor) HandleEdge(ev EdgeEvent) {
	switch ev.Sensor {
	case SensorStart:
		m.HandleStart(ev.TimestampMS)
	case SensorEnd:
		m.HandleEnd(ev.TimestampMS)
	default:
		monitoring.Logf("lane %d: unknown sensor in edge event: %v", m.lane, ev.Sensor)
	}
}

// HandleStart records an axle crossing the entry sensor and (re)arms the
// quiet-window timer from now.
func (m *Monitor) HandleStart(timestampMS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.handleStart(timestampMS)
	m.rearmLocked()
}

// HandleEnd records the vehicle front clearing the exit sensor.
func (m *Monitor) HandleEnd(timestampMS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.handleEnd(timestampMS)
}

// Finalize forces the current measurement window closed, as the quiet-window
// expiry does. Any pending expiry is invalidated.
func (m *Monitor) Finalize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armGen++ // invalidate pending expiries
	m.finalizeLocked()
}

// rearmLocked schedules a quiet-window expiry and invalidates any pending
// one. Caller holds m.mu.
func (m *Monitor) rearmLocked() {
	m.armGen++
	gen := m.armGen
	expiry := m.clock.After(m.quietWindow)
	go func() {
		<-expiry
		m.expire(gen)
	}()
}

// expire is the timeout path. A generation mismatch means the timer was
// rearmed after this expiry was scheduled; only the most recent arm may
// finalize.
func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.armGen {
		return
	}
	m.finalizeLocked()
}

// finalizeLocked runs the state machine's finalize and routes the outcome:
// a produced passage goes to the mailbox, a failed measurement becomes a
// diagnostic warning. The vehicle is gone either way, so nothing retries.
// Caller holds m.mu.
func (m *Monitor) finalizeLocked() {
	if m.fsm.phase != phaseActive {
		return
	}
	endSeen := m.fsm.endSeen

	p, produced := m.fsm.finalize()
	if !produced {
		if !endSeen {
			monitoring.Logf("lane %d: timeout with no end sensor event, passage discarded", m.lane)
		} else {
			monitoring.Logf("lane %d: invalid timing (end <= start), passage discarded", m.lane)
		}
		return
	}

	p.Lane = m.lane
	monitoring.Logf("lane %d: vehicle detected: axles=%d duration=%dms class=%s",
		m.lane, p.AxleCount, p.DurationMS, p.Class)
	m.out.Put(p)
}
