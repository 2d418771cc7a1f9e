package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical enforcement defaults file.
// This is the single source of truth for all default enforcement values.
const DefaultConfigPath = "config/enforce.defaults.json"

// EnforcementConfig holds the externally supplied, read-only parameters of
// the enforcement pipeline. Fields omitted from the JSON file retain their
// defaults through the Get* accessors, so partial configs are safe.
type EnforcementConfig struct {
	// Sensor geometry
	DistanceMM *int64 `json:"distance_mm,omitempty"`

	// Per-class speed limits in km/h
	LightLimitKMH *int64 `json:"light_limit_kmh,omitempty"`
	HeavyLimitKMH *int64 `json:"heavy_limit_kmh,omitempty"`

	// Escalation
	WarningThresholdPercent *int64 `json:"warning_threshold_percent,omitempty"`

	// Lane timing
	QuietWindow *string `json:"quiet_window,omitempty"` // duration string like "2s"

	// Camera simulation
	CameraFailurePercent  *int64  `json:"camera_failure_percent,omitempty"`
	CameraProcessingDelay *string `json:"camera_processing_delay,omitempty"` // duration string like "150ms"

	// Pipeline sizing
	Lanes           *int `json:"lanes,omitempty"`
	MailboxCapacity *int `json:"mailbox_capacity,omitempty"`
}

// EmptyEnforcementConfig returns an EnforcementConfig with all fields set to nil.
// Use LoadEnforcementConfig to load actual values from the defaults file.
func EmptyEnforcementConfig() *EnforcementConfig {
	return &EnforcementConfig{}
}

// LoadEnforcementConfig loads an EnforcementConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size.
func LoadEnforcementConfig(path string) (*EnforcementConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyEnforcementConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical enforcement defaults from
// DefaultConfigPath. It searches for the file in the current directory and
// common parent directories. Panics if the file cannot be loaded, intended
// for test setup.
func MustLoadDefaultConfig() *EnforcementConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadEnforcementConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *EnforcementConfig) Validate() error {
	if c.DistanceMM != nil && *c.DistanceMM <= 0 {
		return fmt.Errorf("distance_mm must be positive, got %d", *c.DistanceMM)
	}
	if c.LightLimitKMH != nil && *c.LightLimitKMH <= 0 {
		return fmt.Errorf("light_limit_kmh must be positive, got %d", *c.LightLimitKMH)
	}
	if c.HeavyLimitKMH != nil && *c.HeavyLimitKMH <= 0 {
		return fmt.Errorf("heavy_limit_kmh must be positive, got %d", *c.HeavyLimitKMH)
	}
	if c.WarningThresholdPercent != nil {
		if *c.WarningThresholdPercent < 0 || *c.WarningThresholdPercent > 100 {
			return fmt.Errorf("warning_threshold_percent must be between 0 and 100, got %d", *c.WarningThresholdPercent)
		}
	}
	if c.CameraFailurePercent != nil {
		if *c.CameraFailurePercent < 0 || *c.CameraFailurePercent > 100 {
			return fmt.Errorf("camera_failure_percent must be between 0 and 100, got %d", *c.CameraFailurePercent)
		}
	}
	if c.QuietWindow != nil && *c.QuietWindow != "" {
		if _, err := time.ParseDuration(*c.QuietWindow); err != nil {
			return fmt.Errorf("invalid quiet_window '%s': %w", *c.QuietWindow, err)
		}
	}
	if c.CameraProcessingDelay != nil && *c.CameraProcessingDelay != "" {
		if _, err := time.ParseDuration(*c.CameraProcessingDelay); err != nil {
			return fmt.Errorf("invalid camera_processing_delay '%s': %w", *c.CameraProcessingDelay, err)
		}
	}
	if c.Lanes != nil && *c.Lanes <= 0 {
		return fmt.Errorf("lanes must be positive, got %d", *c.Lanes)
	}
	if c.MailboxCapacity != nil && *c.MailboxCapacity <= 0 {
		return fmt.Errorf("mailbox_capacity must be positive, got %d", *c.MailboxCapacity)
	}
	return nil
}

// GetDistanceMM returns the sensor gap distance or the default.
func (c *EnforcementConfig) GetDistanceMM() int64 {
	if c.DistanceMM == nil {
		return 5000 // 5 metres
	}
	return *c.DistanceMM
}

// GetLightLimitKMH returns the light-vehicle speed limit or the default.
func (c *EnforcementConfig) GetLightLimitKMH() int64 {
	if c.LightLimitKMH == nil {
		return 60
	}
	return *c.LightLimitKMH
}

// GetHeavyLimitKMH returns the heavy-vehicle speed limit or the default.
func (c *EnforcementConfig) GetHeavyLimitKMH() int64 {
	if c.HeavyLimitKMH == nil {
		return 50
	}
	return *c.HeavyLimitKMH
}

// GetWarningThresholdPercent returns the warning threshold or the default.
func (c *EnforcementConfig) GetWarningThresholdPercent() int64 {
	if c.WarningThresholdPercent == nil {
		return 90
	}
	return *c.WarningThresholdPercent
}

// GetQuietWindow parses and returns the quiet window as a time.Duration.
func (c *EnforcementConfig) GetQuietWindow() time.Duration {
	if c.QuietWindow == nil || *c.QuietWindow == "" {
		return 2 * time.Second // default
	}
	d, err := time.ParseDuration(*c.QuietWindow)
	if err != nil {
		return 2 * time.Second // default on parse error
	}
	return d
}

// GetCameraFailurePercent returns the simulated read failure chance or the default.
func (c *EnforcementConfig) GetCameraFailurePercent() int64 {
	if c.CameraFailurePercent == nil {
		return 20
	}
	return *c.CameraFailurePercent
}

// GetCameraProcessingDelay parses and returns the camera delay as a time.Duration.
func (c *EnforcementConfig) GetCameraProcessingDelay() time.Duration {
	if c.CameraProcessingDelay == nil || *c.CameraProcessingDelay == "" {
		return 150 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.CameraProcessingDelay)
	if err != nil {
		return 150 * time.Millisecond // default on parse error
	}
	return d
}

// GetLanes returns the number of monitored lanes or the default.
func (c *EnforcementConfig) GetLanes() int {
	if c.Lanes == nil {
		return 2
	}
	return *c.Lanes
}

// GetMailboxCapacity returns the per-stage mailbox capacity or the default.
func (c *EnforcementConfig) GetMailboxCapacity() int {
	if c.MailboxCapacity == nil {
		return 16
	}
	return *c.MailboxCapacity
}
