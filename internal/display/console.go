// Package display renders enforcement display frames. The console sink
// stands in for the roadside variable-message sign.
package display

import (
	"context"
	"fmt"

	"github.com/banshee-data/lane.report/internal/bus"
	"github.com/banshee-data/lane.report/internal/enforce"
	"github.com/banshee-data/lane.report/internal/monitoring"
)

// ANSI escape codes matching the HTTP access log colours.
const (
	colorReset   = "\033[0m"
	colorBoldRed = "\033[1;31m"
	colorYellow  = "\033[33m"
	colorGreen   = "\033[32m"
)

// Console consumes display frames from a mailbox and writes one line per
// frame to the diagnostic log.
type Console struct {
	frames *bus.Mailbox[enforce.DisplayFrame]
	color  bool
}

func NewConsole(frames *bus.Mailbox[enforce.DisplayFrame], color bool) *Console {
	return &Console{frames: frames, color: color}
}

// Run consumes frames until the context is cancelled. Consuming promptly
// keeps the frame mailbox from dropping under load.
func (c *Console) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.frames.C():
			monitoring.Logf("%s", c.Render(frame))
		}
	}
}

// Render formats one frame as a display line.
func (c *Console) Render(f enforce.DisplayFrame) string {
	status := f.Status.String()
	if c.color {
		switch f.Status {
		case enforce.StatusInfraction:
			status = colorBoldRed + status + colorReset
		case enforce.StatusWarning:
			status = colorYellow + status + colorReset
		default:
			status = colorGreen + status + colorReset
		}
	}

	line := fmt.Sprintf("lane %d | %3d km/h (limit %d) | %-5s | %s",
		f.Lane, f.SpeedKMH, f.LimitKMH, f.Class, status)
	if f.Plate != "" {
		line += " | plate " + f.Plate
	}
	return line
}
