package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SessionConfig is the root configuration for a simulated tracking session.
// All fields are optional pointers so a partial JSON file only overrides the
// values it names; the Get* methods supply defaults for everything else.
type SessionConfig struct {
	// Polling params
	PollInterval *string `json:"poll_interval,omitempty"` // duration string like "33ms"
	FrameCount   *int    `json:"frame_count,omitempty"`   // 0 means run until interrupted

	// Anchor scenario params
	AnchorCount  *int     `json:"anchor_count,omitempty"`
	AnchorDriftX *float64 `json:"anchor_drift_x,omitempty"` // meters per poll
	AnchorDriftY *float64 `json:"anchor_drift_y,omitempty"`
	AnchorDriftZ *float64 `json:"anchor_drift_z,omitempty"`

	// Recorder params
	DBPath        *string `json:"db_path,omitempty"`
	MigrationsDir *string `json:"migrations_dir,omitempty"`
	RemovedTTL    *string `json:"removed_ttl,omitempty"` // prune horizon for removed rows

	// Diagnostics
	ValidateChangeSets *bool `json:"validate_change_sets,omitempty"`
	Verbose            *bool `json:"verbose,omitempty"`
	Trace              *bool `json:"trace,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptySessionConfig returns a SessionConfig with all fields set to nil.
func EmptySessionConfig() *SessionConfig {
	return &SessionConfig{}
}

// LoadSessionConfig loads a SessionConfig from a JSON file. The file must
// have a .json extension and be under the max file size. Fields omitted from
// the JSON keep their defaults, so partial configs are safe.
func LoadSessionConfig(path string) (*SessionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySessionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *SessionConfig) Validate() error {
	if c.PollInterval != nil && *c.PollInterval != "" {
		if _, err := time.ParseDuration(*c.PollInterval); err != nil {
			return fmt.Errorf("invalid poll_interval '%s': %w", *c.PollInterval, err)
		}
	}

	if c.RemovedTTL != nil && *c.RemovedTTL != "" {
		if _, err := time.ParseDuration(*c.RemovedTTL); err != nil {
			return fmt.Errorf("invalid removed_ttl '%s': %w", *c.RemovedTTL, err)
		}
	}

	if c.FrameCount != nil && *c.FrameCount < 0 {
		return fmt.Errorf("frame_count must be non-negative, got %d", *c.FrameCount)
	}

	if c.AnchorCount != nil && *c.AnchorCount < 0 {
		return fmt.Errorf("anchor_count must be non-negative, got %d", *c.AnchorCount)
	}

	return nil
}

// GetPollInterval parses and returns the PollInterval as a time.Duration.
func (c *SessionConfig) GetPollInterval() time.Duration {
	if c.PollInterval == nil || *c.PollInterval == "" {
		return 33 * time.Millisecond // default, roughly 30Hz
	}
	d, err := time.ParseDuration(*c.PollInterval)
	if err != nil {
		return 33 * time.Millisecond
	}
	return d
}

// GetFrameCount returns the frame_count value or the default.
func (c *SessionConfig) GetFrameCount() int {
	if c.FrameCount == nil {
		return 300 // default
	}
	return *c.FrameCount
}

// GetAnchorCount returns the anchor_count value or the default.
func (c *SessionConfig) GetAnchorCount() int {
	if c.AnchorCount == nil {
		return 4
	}
	return *c.AnchorCount
}

// GetAnchorDrift returns the per-poll drift components.
func (c *SessionConfig) GetAnchorDrift() (x, y, z float64) {
	if c.AnchorDriftX != nil {
		x = *c.AnchorDriftX
	}
	if c.AnchorDriftY != nil {
		y = *c.AnchorDriftY
	}
	if c.AnchorDriftZ != nil {
		z = *c.AnchorDriftZ
	}
	return x, y, z
}

// GetDBPath returns the db_path value or the default.
func (c *SessionConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "tracksync.db"
	}
	return *c.DBPath
}

// GetMigrationsDir returns the migrations_dir value or the default.
func (c *SessionConfig) GetMigrationsDir() string {
	if c.MigrationsDir == nil || *c.MigrationsDir == "" {
		return "migrations"
	}
	return *c.MigrationsDir
}

// GetRemovedTTL parses and returns the RemovedTTL as a time.Duration.
func (c *SessionConfig) GetRemovedTTL() time.Duration {
	if c.RemovedTTL == nil || *c.RemovedTTL == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(*c.RemovedTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// GetValidateChangeSets returns the validate_change_sets value or the default.
func (c *SessionConfig) GetValidateChangeSets() bool {
	if c.ValidateChangeSets == nil {
		return false // default: validation off outside debugging
	}
	return *c.ValidateChangeSets
}

// GetVerbose returns the verbose value or the default.
func (c *SessionConfig) GetVerbose() bool {
	if c.Verbose == nil {
		return false
	}
	return *c.Verbose
}

// GetTrace returns the trace value or the default.
func (c *SessionConfig) GetTrace() bool {
	if c.Trace == nil {
		return false
	}
	return *c.Trace
}
