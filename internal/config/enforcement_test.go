package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enforce.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func int64Ptr(v int64) *int64 { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyEnforcementConfig()

	if got := cfg.GetDistanceMM(); got != 5000 {
		t.Errorf("GetDistanceMM() = %d, want 5000", got)
	}
	if got := cfg.GetLightLimitKMH(); got != 60 {
		t.Errorf("GetLightLimitKMH() = %d, want 60", got)
	}
	if got := cfg.GetHeavyLimitKMH(); got != 50 {
		t.Errorf("GetHeavyLimitKMH() = %d, want 50", got)
	}
	if got := cfg.GetWarningThresholdPercent(); got != 90 {
		t.Errorf("GetWarningThresholdPercent() = %d, want 90", got)
	}
	if got := cfg.GetQuietWindow(); got != 2*time.Second {
		t.Errorf("GetQuietWindow() = %v, want 2s", got)
	}
	if got := cfg.GetCameraProcessingDelay(); got != 150*time.Millisecond {
		t.Errorf("GetCameraProcessingDelay() = %v, want 150ms", got)
	}
	if got := cfg.GetLanes(); got != 2 {
		t.Errorf("GetLanes() = %d, want 2", got)
	}
}

func TestLoadEnforcementConfig(t *testing.T) {
	path := writeConfig(t, `{
		"distance_mm": 4200,
		"light_limit_kmh": 80,
		"quiet_window": "3s"
	}`)

	cfg, err := LoadEnforcementConfig(path)
	if err != nil {
		t.Fatalf("LoadEnforcementConfig: %v", err)
	}

	want := &EnforcementConfig{
		DistanceMM:    int64Ptr(4200),
		LightLimitKMH: int64Ptr(80),
		QuietWindow:   strPtr("3s"),
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	// Omitted fields fall back to defaults.
	if got := cfg.GetHeavyLimitKMH(); got != 50 {
		t.Errorf("GetHeavyLimitKMH() = %d, want default 50", got)
	}
	if got := cfg.GetQuietWindow(); got != 3*time.Second {
		t.Errorf("GetQuietWindow() = %v, want 3s", got)
	}
}

func TestLoadEnforcementConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadEnforcementConfig("enforce.yaml"); err == nil {
		t.Error("expected error for non-JSON extension")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EnforcementConfig
		wantErr bool
	}{
		{"empty is valid", EnforcementConfig{}, false},
		{"negative distance", EnforcementConfig{DistanceMM: int64Ptr(-1)}, true},
		{"zero limit", EnforcementConfig{LightLimitKMH: int64Ptr(0)}, true},
		{"threshold over 100", EnforcementConfig{WarningThresholdPercent: int64Ptr(101)}, true},
		{"failure percent negative", EnforcementConfig{CameraFailurePercent: int64Ptr(-5)}, true},
		{"bad quiet window", EnforcementConfig{QuietWindow: strPtr("soon")}, true},
		{"bad camera delay", EnforcementConfig{CameraProcessingDelay: strPtr("later")}, true},
		{"zero lanes", EnforcementConfig{Lanes: intPtr(0)}, true},
		{"full valid config", EnforcementConfig{
			DistanceMM:              int64Ptr(5000),
			LightLimitKMH:           int64Ptr(60),
			HeavyLimitKMH:           int64Ptr(50),
			WarningThresholdPercent: int64Ptr(90),
			QuietWindow:             strPtr("2s"),
			CameraFailurePercent:    int64Ptr(20),
			CameraProcessingDelay:   strPtr("150ms"),
			Lanes:                   intPtr(2),
			MailboxCapacity:         intPtr(16),
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("canonical defaults do not validate: %v", err)
	}
	if got := cfg.GetDistanceMM(); got != 5000 {
		t.Errorf("defaults distance_mm = %d, want 5000", got)
	}
}
