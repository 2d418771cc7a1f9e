package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	for _, unit := range ValidUnits {
		if !IsValid(unit) {
			t.Errorf("IsValid(%q) = false, want true", unit)
		}
	}
	for _, unit := range []string{"", "knots", "KPH", "m/s"} {
		if IsValid(unit) {
			t.Errorf("IsValid(%q) = true, want false", unit)
		}
	}
}

func TestSpeedKMH(t *testing.T) {
	tests := []struct {
		name       string
		distanceMM int64
		durationMS int64
		want       int64
	}{
		{"five metres in half a second", 5000, 500, 36},
		{"motorway pace", 5000, 200, 90},
		{"urban pace", 5000, 1200, 15},
		{"zero duration defended", 5000, 0, 0},
		{"negative duration defended", 5000, -10, 0},
		{"wide intermediate does not overflow", 2_000_000_000, 1, 7_200_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SpeedKMH(tt.distanceMM, tt.durationMS); got != tt.want {
				t.Errorf("SpeedKMH(%d, %d) = %d, want %d", tt.distanceMM, tt.durationMS, got, tt.want)
			}
		})
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		units string
		want  float64
	}{
		{KMPH, 90},
		{KPH, 90},
		{MPS, 25},
		{MPH, 55.9234073},
		{"unknown", 90},
	}
	for _, tt := range tests {
		got := ConvertSpeed(90, tt.units)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("ConvertSpeed(90, %q) = %v, want %v", tt.units, got, tt.want)
		}
	}
}
