// Package enforce converts finalized lane passages into speed readings,
// escalates enforcement status against configured limits, and coordinates
// the asynchronous plate-read exchange with the camera stage.
package enforce

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/lane.report/internal/lane"
)

// Status is the ordered enforcement severity for a measured speed.
// The order is total: Normal < Warning < Infraction.
type Status int

const (
	StatusNormal Status = iota
	StatusWarning
	StatusInfraction
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusWarning:
		return "warning"
	case StatusInfraction:
		return "infraction"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Reading is one computed speed measurement with its enforcement outcome.
type Reading struct {
	ID         uuid.UUID
	Lane       int
	StartMS    int64
	EndMS      int64
	DurationMS int64
	AxleCount  int
	Class      lane.VehicleClass
	SpeedKMH   int64
	LimitKMH   int64
	Status     Status
}

// CameraTrigger asks the camera stage for a plate read. At most one trigger
// is published per infraction passage. ReadingID links the eventual result
// back to the reading that caused it.
type CameraTrigger struct {
	ReadingID uuid.UUID
	SpeedKMH  int64
	Class     lane.VehicleClass
}

// CameraResult is the camera stage's answer to a trigger. Exactly one
// result is published per trigger. A failed read carries ValidRead false
// and no usable plate.
type CameraResult struct {
	ReadingID uuid.UUID
	Plate     string
	ValidRead bool
}

// DisplayFrame is one update for the display sink. Plate is empty until a
// confirmed plate read arrives for an infraction.
type DisplayFrame struct {
	Lane     int
	SpeedKMH int64
	LimitKMH int64
	Class    lane.VehicleClass
	Status   Status
	Plate    string
}
