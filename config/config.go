// Package config loads the run configuration from a YAML file, a .env file
// and ATHENA_* environment variables.
package config

import (
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// EnvPrefix prefixes every environment override, e.g. ATHENA_THRESHOLDS_R2.
const EnvPrefix = "ATHENA"

// Stage names a part of the run that can be switched off.
type Stage string

const (
	StageTrain       Stage = "train"
	StagePostprocess Stage = "postprocess"
	StageNotify      Stage = "notify"
)

// Config is the complete run configuration.
type Config struct {
	Data        DataConfig       `mapstructure:"data"`
	Thresholds  ThresholdConfig  `mapstructure:"thresholds"`
	Selector    SelectorConfig   `mapstructure:"selector"`
	Bias        BiasConfig       `mapstructure:"bias"`
	Resource    ResourceConfig   `mapstructure:"resource"`
	Validation  ValidationConfig `mapstructure:"validation"`
	Recovery    RecoveryConfig   `mapstructure:"recovery"`
	Retry       RetryConfig      `mapstructure:"retry"`
	Store       StoreConfig      `mapstructure:"store"`
	Benchmark   BenchmarkConfig  `mapstructure:"benchmark"`
	Notify      NotifyConfig     `mapstructure:"notify"`
	Report      ReportConfig     `mapstructure:"report"`
	Log         LogConfig        `mapstructure:"log"`
	Disable     []string         `mapstructure:"disable"`
	Interactive bool             `mapstructure:"interactive"`
}

type DataConfig struct {
	Path        string   `mapstructure:"path"`
	TimeLayout  string   `mapstructure:"time_layout"`
	Active      []string `mapstructure:"active_columns"`
	Categorical []string `mapstructure:"categorical_columns"`
	Sensitive   []string `mapstructure:"sensitive_columns"`
	Zones       []string `mapstructure:"zones"`
	// Algorithms, when set, replaces automatic candidate selection.
	Algorithms []string `mapstructure:"algorithms"`
	Shape      string   `mapstructure:"shape"`
}

type ThresholdConfig struct {
	R2           float64 `mapstructure:"r2"`
	UseBenchmark bool    `mapstructure:"use_benchmark"`
	GroupDiff    float64 `mapstructure:"group_diff"`
}

type SelectorConfig struct {
	VelocityLow  float64 `mapstructure:"velocity_low"`
	VelocityHigh float64 `mapstructure:"velocity_high"`
	Cardinality  float64 `mapstructure:"cardinality"`
}

type BiasConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Correlation float64 `mapstructure:"correlation"`
	Attribution float64 `mapstructure:"attribution"`
}

type ResourceConfig struct {
	MaxCPU           float64       `mapstructure:"max_cpu"`
	MaxRAM           float64       `mapstructure:"max_ram"`
	Interval         time.Duration `mapstructure:"interval"`
	HighDuration     time.Duration `mapstructure:"high_duration"`
	CriticalDuration time.Duration `mapstructure:"critical_duration"`
}

type ValidationConfig struct {
	NumCycles       int     `mapstructure:"num_cycles"`
	HoldoutFraction float64 `mapstructure:"holdout_fraction"`
}

type RecoveryConfig struct {
	ShrinkFraction float64 `mapstructure:"shrink_fraction"`
	MaxShrinks     int     `mapstructure:"max_shrinks"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}

type StoreConfig struct {
	// Kind is memory, file or badger.
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
	// Reuse scores a stored model instead of refitting it.
	Reuse bool `mapstructure:"reuse"`
}

type BenchmarkConfig struct {
	// Kind is none, csv, sqlite or postgres.
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
	DSN  string `mapstructure:"dsn"`
	// Record appends each zone's final R² to a SQL history.
	Record bool `mapstructure:"record"`
}

type NotifyConfig struct {
	Stdout      bool     `mapstructure:"stdout"`
	JSON        bool     `mapstructure:"json"`
	File        string   `mapstructure:"file"`
	KafkaBroker []string `mapstructure:"kafka_brokers"`
	KafkaTopic  string   `mapstructure:"kafka_topic"`
}

type ReportConfig struct {
	Path        string `mapstructure:"path"`
	Format      string `mapstructure:"format"`
	Plot        string `mapstructure:"plot"`
	Predictions string `mapstructure:"predictions"`
	// MetricsFile is a node-exporter textfile for run metrics.
	MetricsFile string `mapstructure:"metrics_file"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Backend string `mapstructure:"backend"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("data.path", "")
	v.SetDefault("data.time_layout", time.RFC3339)
	v.SetDefault("data.active_columns", []string{})
	v.SetDefault("data.categorical_columns", []string{})
	v.SetDefault("data.sensitive_columns", []string{})
	v.SetDefault("data.zones", []string{})
	v.SetDefault("data.algorithms", []string{})
	v.SetDefault("data.shape", string(algorithm.ShapeUnsure))

	v.SetDefault("thresholds.r2", 0.80)
	v.SetDefault("thresholds.use_benchmark", false)
	v.SetDefault("thresholds.group_diff", 0.05)

	v.SetDefault("selector.velocity_low", 0.1)
	v.SetDefault("selector.velocity_high", 1.0)
	v.SetDefault("selector.cardinality", 10.0)

	v.SetDefault("bias.enabled", true)
	v.SetDefault("bias.correlation", 0.1)
	v.SetDefault("bias.attribution", 0.05)

	v.SetDefault("resource.max_cpu", 80.0)
	v.SetDefault("resource.max_ram", 75.0)
	v.SetDefault("resource.interval", 5*time.Second)
	v.SetDefault("resource.high_duration", 10*time.Second)
	v.SetDefault("resource.critical_duration", 15*time.Second)

	v.SetDefault("validation.num_cycles", 5)
	v.SetDefault("validation.holdout_fraction", 0.0)

	v.SetDefault("recovery.shrink_fraction", 0.8)
	v.SetDefault("recovery.max_shrinks", 3)

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 5*time.Second)

	v.SetDefault("store.kind", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.reuse", false)
	v.SetDefault("benchmark.kind", "none")
	v.SetDefault("benchmark.path", "")
	v.SetDefault("benchmark.dsn", "")
	v.SetDefault("benchmark.record", false)

	v.SetDefault("notify.stdout", true)
	v.SetDefault("notify.json", false)
	v.SetDefault("notify.file", "")
	v.SetDefault("notify.kafka_brokers", []string{})
	v.SetDefault("notify.kafka_topic", "athena.alerts")

	v.SetDefault("report.path", "")
	v.SetDefault("report.format", "yaml")
	v.SetDefault("report.plot", "")
	v.SetDefault("report.predictions", "")
	v.SetDefault("report.metrics_file", "")

	v.SetDefault("disable", []string{})
	v.SetDefault("interactive", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.backend", "console")
}

// Load reads path (optional) and envFile (optional) and applies ATHENA_*
// overrides. Missing .env files are ignored.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !isNotExist(err) {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Disabled reports whether stage was switched off.
func (c *Config) Disabled(s Stage) bool {
	for _, d := range c.Disable {
		if Stage(strings.ToLower(strings.TrimSpace(d))) == s {
			return true
		}
	}
	return false
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	checks := []struct {
		ok     bool
		param  string
		reason string
		value  interface{}
	}{
		{c.Thresholds.R2 <= 1, "thresholds.r2", "must be at most 1", c.Thresholds.R2},
		{c.Thresholds.GroupDiff >= 0, "thresholds.group_diff", "must be non-negative", c.Thresholds.GroupDiff},
		{c.Selector.VelocityLow <= c.Selector.VelocityHigh, "selector.velocity_low", "must not exceed velocity_high", c.Selector.VelocityLow},
		{c.Bias.Correlation >= 0 && c.Bias.Correlation <= 1, "bias.correlation", "must be in [0, 1]", c.Bias.Correlation},
		{c.Bias.Attribution >= 0, "bias.attribution", "must be non-negative", c.Bias.Attribution},
		{c.Resource.MaxCPU > 0 && c.Resource.MaxCPU <= 100, "resource.max_cpu", "must be in (0, 100]", c.Resource.MaxCPU},
		{c.Resource.MaxRAM > 0 && c.Resource.MaxRAM <= 100, "resource.max_ram", "must be in (0, 100]", c.Resource.MaxRAM},
		{c.Resource.Interval >= 0, "resource.interval", "must be non-negative", c.Resource.Interval},
		{c.Resource.HighDuration > 0, "resource.high_duration", "must be positive", c.Resource.HighDuration},
		{c.Resource.CriticalDuration > 0, "resource.critical_duration", "must be positive", c.Resource.CriticalDuration},
		{c.Validation.NumCycles >= 1, "validation.num_cycles", "must be at least 1", c.Validation.NumCycles},
		{c.Validation.HoldoutFraction >= 0 && c.Validation.HoldoutFraction < 1, "validation.holdout_fraction", "must be in [0, 1)", c.Validation.HoldoutFraction},
		{c.Recovery.ShrinkFraction > 0 && c.Recovery.ShrinkFraction < 1, "recovery.shrink_fraction", "must be in (0, 1)", c.Recovery.ShrinkFraction},
		{c.Recovery.MaxShrinks >= 0, "recovery.max_shrinks", "must be non-negative", c.Recovery.MaxShrinks},
		{c.Retry.Attempts >= 1, "retry.attempts", "must be at least 1", c.Retry.Attempts},
		{oneOf(c.Store.Kind, "memory", "file", "badger"), "store.kind", "must be memory, file or badger", c.Store.Kind},
		{c.Store.Kind == "memory" || c.Store.Path != "", "store.path", "required for file and badger stores", c.Store.Path},
		{oneOf(c.Benchmark.Kind, "none", "csv", "sqlite", "postgres"), "benchmark.kind", "must be none, csv, sqlite or postgres", c.Benchmark.Kind},
		{oneOf(strings.ToLower(c.Report.Format), "yaml", "yml", "json"), "report.format", "must be yaml or json", c.Report.Format},
	}
	for _, ch := range checks {
		if !ch.ok {
			return errors.NewValidationError(ch.param, ch.reason, ch.value)
		}
	}
	for _, d := range c.Disable {
		s := Stage(strings.ToLower(strings.TrimSpace(d)))
		if s != StageTrain && s != StagePostprocess && s != StageNotify {
			return errors.NewValidationError("disable", "unknown stage", d)
		}
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidationError("log.level", "unknown level", c.Log.Level)
	}
	if !oneOf(c.Log.Backend, string(log.BackendZerolog), string(log.BackendConsole), string(log.BackendSlog)) {
		return errors.NewValidationError("log.backend", "must be zerolog, console or slog", c.Log.Backend)
	}
	if _, err := algorithm.ParseList(strings.Join(c.Data.Algorithms, ",")); err != nil {
		return err
	}
	switch algorithm.Shape(c.Data.Shape) {
	case algorithm.ShapeNumeric, algorithm.ShapeBinary, algorithm.ShapeCategorical, algorithm.ShapeMixed, algorithm.ShapeUnsure:
	default:
		return errors.NewValidationError("data.shape", "unknown shape", c.Data.Shape)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
