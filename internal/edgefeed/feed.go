// Package edgefeed reads edge sensor events from a serial-attached lane
// controller and dispatches them to the per-lane monitors.
package edgefeed

import (
	"bufio"
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/lane.report/internal/lane"
	"github.com/banshee-data/lane.report/internal/monitoring"
)

// EdgeHandler receives parsed edge events for a single lane.
type EdgeHandler interface {
	HandleEdge(ev lane.EdgeEvent)
}

// Feed reads newline-delimited edge events from a port and routes each to
// the handler registered for its lane.
type Feed[T Porter] struct {
	port      T
	handlers  map[int]EdgeHandler
	handlerMu sync.Mutex
	malformed atomic.Uint64
	unrouted  atomic.Uint64
}

// NewFeed creates a Feed backed by the given port.
func NewFeed[T Porter](port T) *Feed[T] {
	return &Feed[T]{
		port:     port,
		handlers: make(map[int]EdgeHandler),
	}
}

// Register routes events for the given lane to h. Registering a lane twice
// replaces the previous handler.
func (f *Feed[T]) Register(laneNum int, h EdgeHandler) {
	f.handlerMu.Lock()
	defer f.handlerMu.Unlock()
	f.handlers[laneNum] = h
}

// Malformed returns the number of lines that failed to parse.
func (f *Feed[T]) Malformed() uint64 { return f.malformed.Load() }

// Unrouted returns the number of events for lanes with no registered handler.
func (f *Feed[T]) Unrouted() uint64 { return f.unrouted.Load() }

// Monitor reads lines from the port until the context is cancelled or the
// port reaches EOF, dispatching each parsed event to its lane handler.
// Malformed lines and events for unregistered lanes are counted and skipped.
func (f *Feed[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(f.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// the blocking scan.Scan runs in its own goroutine so it cannot
	// interfere with the outer loop awaiting lines and context cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			f.dispatch(line)
		}
	}
}

func (f *Feed[T]) dispatch(line string) {
	ev, err := ParseEdgeEvent(line)
	if err != nil {
		f.malformed.Add(1)
		monitoring.Logf("edgefeed: dropping line: %v", err)
		return
	}

	f.handlerMu.Lock()
	h, ok := f.handlers[ev.Lane]
	f.handlerMu.Unlock()
	if !ok {
		f.unrouted.Add(1)
		monitoring.Logf("edgefeed: no handler for lane %d, dropping event", ev.Lane)
		return
	}
	h.HandleEdge(ev)
}

// Close closes the underlying port.
func (f *Feed[T]) Close() error {
	return f.port.Close()
}
