// Package units provides shared constants and conversions for speed values.
package units

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, mph, kmph, kph"
}

// SpeedKMH computes an integer speed in km/h from a sensor gap distance in
// millimetres and a transit duration in milliseconds.
//
//	km/h = (mm / ms) * 3.6 = (mm * 36) / (ms * 10)
//
// The multiplication is done in 64 bits before the division so realistic
// distances cannot overflow. A zero duration yields speed 0; the sensor
// state machine never produces one, but a corrupted record must not divide
// by zero.
func SpeedKMH(distanceMM, durationMS int64) int64 {
	if durationMS <= 0 {
		return 0
	}
	return int64(uint64(distanceMM) * 36 / (uint64(durationMS) * 10))
}

// ConvertSpeed converts a speed from kilometres per hour to the target units.
// Readings are stored in km/h, the unit the enforcement thresholds are
// configured in.
func ConvertSpeed(speedKMH float64, targetUnits string) float64 {
	switch targetUnits {
	case MPS:
		return speedKMH / 3.6
	case MPH:
		return speedKMH * 0.62137119223733
	case KMPH, KPH:
		return speedKMH
	default:
		return speedKMH
	}
}
