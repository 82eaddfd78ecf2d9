package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0.80, cfg.Thresholds.R2)
	assert.Equal(t, 0.05, cfg.Thresholds.GroupDiff)
	assert.Equal(t, 0.1, cfg.Selector.VelocityLow)
	assert.Equal(t, 1.0, cfg.Selector.VelocityHigh)
	assert.Equal(t, 10.0, cfg.Selector.Cardinality)
	assert.Equal(t, 80.0, cfg.Resource.MaxCPU)
	assert.Equal(t, 75.0, cfg.Resource.MaxRAM)
	assert.Equal(t, 5*time.Second, cfg.Resource.Interval)
	assert.Equal(t, 10*time.Second, cfg.Resource.HighDuration)
	assert.Equal(t, 15*time.Second, cfg.Resource.CriticalDuration)
	assert.Equal(t, 5, cfg.Validation.NumCycles)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.True(t, cfg.Bias.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "athena.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  path: data.csv
  active_columns: [north, south, temp]
  sensitive_columns: [group]
thresholds:
  r2: 0.7
resource:
  interval: 1s
disable: [notify]
`), 0o644))
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("ATHENA_VALIDATION_NUM_CYCLES=3\n"), 0o644))
	t.Setenv("ATHENA_THRESHOLDS_R2", "0.65")
	t.Cleanup(func() { os.Unsetenv("ATHENA_VALIDATION_NUM_CYCLES") })

	cfg, err := Load(path, env)
	require.NoError(t, err)
	assert.Equal(t, "data.csv", cfg.Data.Path)
	assert.Equal(t, []string{"north", "south", "temp"}, cfg.Data.Active)
	assert.Equal(t, []string{"group"}, cfg.Data.Sensitive)
	assert.Equal(t, 0.65, cfg.Thresholds.R2)
	assert.Equal(t, time.Second, cfg.Resource.Interval)
	assert.Equal(t, 3, cfg.Validation.NumCycles)
	assert.True(t, cfg.Disabled(StageNotify))
	assert.False(t, cfg.Disabled(StageTrain))
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 0.80, cfg.Thresholds.R2)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"r2 above one", func(c *Config) { c.Thresholds.R2 = 1.5 }, "thresholds.r2"},
		{"inverted velocity", func(c *Config) { c.Selector.VelocityLow = 2 }, "selector.velocity_low"},
		{"cpu over 100", func(c *Config) { c.Resource.MaxCPU = 120 }, "resource.max_cpu"},
		{"no cycles", func(c *Config) { c.Validation.NumCycles = 0 }, "validation.num_cycles"},
		{"holdout one", func(c *Config) { c.Validation.HoldoutFraction = 1 }, "validation.holdout_fraction"},
		{"shrink one", func(c *Config) { c.Recovery.ShrinkFraction = 1 }, "recovery.shrink_fraction"},
		{"file store without path", func(c *Config) { c.Store.Kind = "file" }, "store.path"},
		{"unknown store", func(c *Config) { c.Store.Kind = "redis" }, "store.kind"},
		{"unknown benchmark", func(c *Config) { c.Benchmark.Kind = "mysql" }, "benchmark.kind"},
		{"unknown format", func(c *Config) { c.Report.Format = "xml" }, "report.format"},
		{"unknown stage", func(c *Config) { c.Disable = []string{"predict"} }, "disable"},
		{"unknown shape", func(c *Config) { c.Data.Shape = "sparse" }, "data.shape"},
		{"unknown level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ve *errors.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.param, ve.ParamName)
		})
	}
}

func TestValidateRejectsUnknownAlgorithm(t *testing.T) {
	cfg := Default()
	cfg.Data.Algorithms = []string{"xgboost", "prophet"}
	assert.Error(t, cfg.Validate())
}
