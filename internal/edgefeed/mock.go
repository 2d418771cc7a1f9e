package edgefeed

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"
)

// MockPort implements Porter for testing. Reads come from a fixed script
// and writes are captured.
type MockPort struct {
	reader io.Reader

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

// NewMockPort returns a port whose reads replay the given script.
func NewMockPort(script string) *MockPort {
	return &MockPort{reader: bytes.NewReader([]byte(script))}
}

func (m *MockPort) Read(p []byte) (int, error) {
	return m.reader.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.ErrClosedPipe
	}
	return m.written.Write(p)
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Written returns everything written to the port so far.
func (m *MockPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// NewSynthPort returns a Porter that generates plausible edge sensor
// traffic for development without hardware. Each transit is one START edge
// per axle followed by a single END edge on a random lane; the seed makes
// the stream reproducible. Pace is the gap between transits and should
// exceed the monitors' quiet window so each transit finalizes before the
// next begins.
func NewSynthPort(lanes int, seed int64, pace time.Duration) Porter {
	r, w := io.Pipe()
	rng := rand.New(rand.NewSource(seed))

	go func() {
		defer w.Close()
		nowMS := int64(0)
		for {
			laneNum := rng.Intn(lanes) + 1
			durationMS := int64(200 + rng.Intn(900))
			axles := 2 + rng.Intn(4)

			for i := 0; i < axles; i++ {
				// axle edges land between the start and end of the transit
				ts := nowMS + int64(i)*durationMS/int64(axles+1)
				line := fmt.Sprintf("%d,START,%d\n", laneNum, ts)
				if _, err := w.Write([]byte(line)); err != nil {
					return
				}
			}
			end := fmt.Sprintf("%d,END,%d\n", laneNum, nowMS+durationMS)
			if _, err := w.Write([]byte(end)); err != nil {
				return
			}

			nowMS += durationMS + int64(pace/time.Millisecond)
			time.Sleep(pace)
		}
	}()

	return &synthPort{PipeReader: r}
}

type synthPort struct {
	*io.PipeReader
}

func (s *synthPort) Write(p []byte) (int, error) { return len(p), nil }
