package enforce

import "github.com/banshee-data/lane.report/internal/lane"

// Limits is the enforcement configuration the controller measures against.
// Values are read-only to the pipeline; they are supplied externally at
// startup.
type Limits struct {
	// DistanceMM is the gap between the two position sensors.
	DistanceMM int64
	// LightLimitKMH and HeavyLimitKMH are the per-class speed limits.
	LightLimitKMH int64
	HeavyLimitKMH int64
	// WarningPercent is the fraction of the limit (in percent) at which a
	// reading escalates from normal to warning.
	WarningPercent int64
}

// ForClass selects the speed limit for a vehicle class.
func (l Limits) ForClass(c lane.VehicleClass) int64 {
	if c == lane.ClassHeavy {
		return l.HeavyLimitKMH
	}
	return l.LightLimitKMH
}

// StatusFor escalates a measured speed against a limit. Exceeding the limit
// is an infraction; merely reaching it is not. Reaching the warning
// threshold is a warning.
func StatusFor(speedKMH, limitKMH, warningPercent int64) Status {
	if speedKMH > limitKMH {
		return StatusInfraction
	}
	if speedKMH >= limitKMH*warningPercent/100 {
		return StatusWarning
	}
	return StatusNormal
}
