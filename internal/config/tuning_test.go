package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()
	assert.InDelta(t, 50.0, cfg.GetSeedDBZ(), 1e-9)
	assert.InDelta(t, 40.0, cfg.GetExpandDBZ(), 1e-9)
	assert.Equal(t, 25, cfg.GetMinGates())
	assert.Equal(t, 100, cfg.GetMaxIterations())
	assert.InDelta(t, 0.1, cfg.GetAlpha(), 1e-9)
	assert.InDelta(t, 0.9, cfg.GetSizeRatioThreshold(), 1e-9)
	assert.InDelta(t, 1.0, cfg.GetBufferKm(), 1e-9)
	assert.InDelta(t, 67.0, cfg.GetCoverageThresholdPct(), 1e-9)
	assert.InDelta(t, 0.5, cfg.GetWeightDistance(), 1e-9)
	assert.InDelta(t, 0.3, cfg.GetWeightNumGates(), 1e-9)
	assert.InDelta(t, 0.2, cfg.GetWeightReflectivity(), 1e-9)
	assert.InDelta(t, 10.0, cfg.GetMaxGateKm(), 1e-9)
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"seed_dbz": 45.0, "min_gates": 10}`)
		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.InDelta(t, 45.0, cfg.GetSeedDBZ(), 1e-9)
		assert.Equal(t, 10, cfg.GetMinGates())
		// Unset fields fall back.
		assert.InDelta(t, 40.0, cfg.GetExpandDBZ(), 1e-9)
		assert.InDelta(t, 10.0, cfg.GetMaxGateKm(), 1e-9)
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "tuning.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"seed_dbz": `)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*TuningConfig)
		wantErr bool
	}{
		{"empty is valid", func(c *TuningConfig) {}, false},
		{"expand above seed", func(c *TuningConfig) {
			c.SeedDBZ = ptrFloat64(40)
			c.ExpandDBZ = ptrFloat64(50)
		}, true},
		{"hysteresis band ok", func(c *TuningConfig) {
			c.SeedDBZ = ptrFloat64(50)
			c.ExpandDBZ = ptrFloat64(40)
		}, false},
		{"zero min_gates", func(c *TuningConfig) { c.MinGates = ptrInt(0) }, true},
		{"negative alpha", func(c *TuningConfig) { c.Alpha = ptrFloat64(-0.1) }, true},
		{"size ratio above one", func(c *TuningConfig) { c.SizeRatioThreshold = ptrFloat64(1.5) }, true},
		{"coverage above 100", func(c *TuningConfig) { c.CoverageThresholdPct = ptrFloat64(101) }, true},
		{"negative weight", func(c *TuningConfig) { c.WeightDistance = ptrFloat64(-0.5) }, true},
		{"zero gate", func(c *TuningConfig) { c.MaxGateKm = ptrFloat64(0) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := EmptyTuningConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	// Not parallel: depends on the repository working directory layout.
	cfg := MustLoadDefaultConfig()
	assert.InDelta(t, 50.0, cfg.GetSeedDBZ(), 1e-9)
	assert.InDelta(t, 67.0, cfg.GetCoverageThresholdPct(), 1e-9)
}
