package edgefeed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/lane.report/internal/lane"
)

// ParseEdgeEvent parses one line from the edge sensor controller. Lines have
// the form
//
//	<lane>,<START|END>,<timestamp_ms>
//
// e.g. "1,START,152340". Whitespace around fields is tolerated.
func ParseEdgeEvent(line string) (lane.EdgeEvent, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return lane.EdgeEvent{}, fmt.Errorf("malformed edge line %q: want 3 fields, got %d", line, len(parts))
	}

	laneNum, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return lane.EdgeEvent{}, fmt.Errorf("malformed lane in edge line %q: %w", line, err)
	}
	if laneNum < 1 {
		return lane.EdgeEvent{}, fmt.Errorf("invalid lane %d in edge line %q", laneNum, line)
	}

	var sensor lane.Sensor
	switch strings.TrimSpace(parts[1]) {
	case "START":
		sensor = lane.SensorStart
	case "END":
		sensor = lane.SensorEnd
	default:
		return lane.EdgeEvent{}, fmt.Errorf("unknown sensor %q in edge line %q", strings.TrimSpace(parts[1]), line)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil {
		return lane.EdgeEvent{}, fmt.Errorf("malformed timestamp in edge line %q: %w", line, err)
	}
	if ts < 0 {
		return lane.EdgeEvent{}, fmt.Errorf("negative timestamp in edge line %q", line)
	}

	return lane.EdgeEvent{Lane: laneNum, Sensor: sensor, TimestampMS: ts}, nil
}
