package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the detection and
// tracking tuning parameters. Every knob the pipeline consumes lives
// here; nothing is hardcoded in the algorithms.
type TuningConfig struct {
	// Detection params
	SeedDBZ       *float64 `json:"seed_dbz,omitempty"`
	ExpandDBZ     *float64 `json:"expand_dbz,omitempty"`
	MinGates      *int     `json:"min_gates,omitempty"`
	MaxIterations *int     `json:"max_iterations,omitempty"`

	// Boundary params
	Alpha *float64 `json:"alpha,omitempty"`

	// Merge params
	SizeRatioThreshold *float64 `json:"size_ratio_threshold,omitempty"`
	BufferKm           *float64 `json:"buffer_km,omitempty"`

	// Termination params
	CoverageThresholdPct *float64 `json:"coverage_threshold_pct,omitempty"`

	// Matching params
	WeightDistance     *float64 `json:"weight_distance,omitempty"`
	WeightNumGates     *float64 `json:"weight_num_gates,omitempty"`
	WeightReflectivity *float64 `json:"weight_reflectivity,omitempty"`
	MaxGateKm          *float64 `json:"max_gate_km,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under
// the max file size. Fields omitted from the JSON file retain their
// default values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
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

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath. It searches for the file in the current directory
// and common parent directories. Panics if the file cannot be loaded,
// intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from deeper packages
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SeedDBZ != nil && c.ExpandDBZ != nil {
		if *c.ExpandDBZ > *c.SeedDBZ {
			return fmt.Errorf("expand_dbz (%.1f) must not exceed seed_dbz (%.1f)", *c.ExpandDBZ, *c.SeedDBZ)
		}
	}
	if c.MinGates != nil && *c.MinGates < 1 {
		return fmt.Errorf("min_gates must be positive, got %d", *c.MinGates)
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations)
	}
	if c.Alpha != nil && *c.Alpha < 0 {
		return fmt.Errorf("alpha must be non-negative, got %f", *c.Alpha)
	}
	if c.SizeRatioThreshold != nil {
		if *c.SizeRatioThreshold <= 0 || *c.SizeRatioThreshold > 1 {
			return fmt.Errorf("size_ratio_threshold must be in (0, 1], got %f", *c.SizeRatioThreshold)
		}
	}
	if c.BufferKm != nil && *c.BufferKm < 0 {
		return fmt.Errorf("buffer_km must be non-negative, got %f", *c.BufferKm)
	}
	if c.CoverageThresholdPct != nil {
		if *c.CoverageThresholdPct <= 0 || *c.CoverageThresholdPct > 100 {
			return fmt.Errorf("coverage_threshold_pct must be in (0, 100], got %f", *c.CoverageThresholdPct)
		}
	}
	for name, w := range map[string]*float64{
		"weight_distance":     c.WeightDistance,
		"weight_num_gates":    c.WeightNumGates,
		"weight_reflectivity": c.WeightReflectivity,
	} {
		if w != nil && (*w < 0 || *w > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *w)
		}
	}
	if c.MaxGateKm != nil && *c.MaxGateKm <= 0 {
		return fmt.Errorf("max_gate_km must be positive, got %f", *c.MaxGateKm)
	}
	return nil
}

// GetSeedDBZ returns the seed_dbz value or the default.
func (c *TuningConfig) GetSeedDBZ() float64 {
	if c.SeedDBZ == nil {
		return 50.0 // default
	}
	return *c.SeedDBZ
}

// GetExpandDBZ returns the expand_dbz value or the default.
func (c *TuningConfig) GetExpandDBZ() float64 {
	if c.ExpandDBZ == nil {
		return 40.0 // default
	}
	return *c.ExpandDBZ
}

// GetMinGates returns the min_gates value or the default.
func (c *TuningConfig) GetMinGates() int {
	if c.MinGates == nil {
		return 25 // default
	}
	return *c.MinGates
}

// GetMaxIterations returns the max_iterations value or the default.
func (c *TuningConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return 100 // default
	}
	return *c.MaxIterations
}

// GetAlpha returns the alpha value or the default.
func (c *TuningConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return 0.1 // default
	}
	return *c.Alpha
}

// GetSizeRatioThreshold returns the size_ratio_threshold value or the default.
func (c *TuningConfig) GetSizeRatioThreshold() float64 {
	if c.SizeRatioThreshold == nil {
		return 0.9 // default
	}
	return *c.SizeRatioThreshold
}

// GetBufferKm returns the buffer_km value or the default.
func (c *TuningConfig) GetBufferKm() float64 {
	if c.BufferKm == nil {
		return 1.0 // default
	}
	return *c.BufferKm
}

// GetCoverageThresholdPct returns the coverage_threshold_pct value or the default.
func (c *TuningConfig) GetCoverageThresholdPct() float64 {
	if c.CoverageThresholdPct == nil {
		return 67.0 // default
	}
	return *c.CoverageThresholdPct
}

// GetWeightDistance returns the weight_distance value or the default.
func (c *TuningConfig) GetWeightDistance() float64 {
	if c.WeightDistance == nil {
		return 0.5 // default
	}
	return *c.WeightDistance
}

// GetWeightNumGates returns the weight_num_gates value or the default.
func (c *TuningConfig) GetWeightNumGates() float64 {
	if c.WeightNumGates == nil {
		return 0.3 // default
	}
	return *c.WeightNumGates
}

// GetWeightReflectivity returns the weight_reflectivity value or the default.
func (c *TuningConfig) GetWeightReflectivity() float64 {
	if c.WeightReflectivity == nil {
		return 0.2 // default
	}
	return *c.WeightReflectivity
}

// GetMaxGateKm returns the max_gate_km value or the default.
func (c *TuningConfig) GetMaxGateKm() float64 {
	if c.MaxGateKm == nil {
		return 10.0 // default
	}
	return *c.MaxGateKm
}
