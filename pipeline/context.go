// Package pipeline wires the run context and drives the per-zone flow:
// bias detection, candidate selection, resource-guarded cross-validation,
// training, fallback resolution and reporting.
package pipeline

import (
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/benchmark"
	"github.com/YuminosukeSato/athena/config"
	"github.com/YuminosukeSato/athena/dataset"
	"github.com/YuminosukeSato/athena/decision"
	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
	"github.com/YuminosukeSato/athena/report"
	"github.com/YuminosukeSato/athena/resource"
	"github.com/YuminosukeSato/athena/store"
)

// RunContext carries everything one run needs. Nil collaborators are filled
// with defaults when the run starts, so tests can set only what they fake.
type RunContext struct {
	RunID  string
	Config *config.Config

	Data      dataset.Provider
	Benchmark benchmark.Provider
	Factory   algorithm.Factory
	Store     store.Store
	Notifier  *notify.Notifier
	Decisions decision.Provider
	Monitor   *resource.Monitor
	Clock     resource.Clock

	Aggregator *report.Aggregator
	Metrics    *Metrics

	// BiasReport receives the bias-monitoring report text; nil delivers it
	// as an alert only.
	BiasReport io.Writer

	// configured and shape are resolved once per run and shared by all
	// zones.
	configured []algorithm.Algorithm
	shape      algorithm.Shape

	closers []io.Closer
	logger  log.Logger
}

// Build creates a RunContext from cfg. decisions may be nil for the
// non-interactive defaults.
func Build(cfg *config.Config, decisions decision.Provider) (*RunContext, error) {
	rc := &RunContext{
		RunID:     uuid.NewString(),
		Config:    cfg,
		Decisions: decisions,
		Clock:     resource.SystemClock{},
	}

	if cfg.Data.Path == "" {
		return nil, errors.NewValidationError("data.path", "required", cfg.Data.Path)
	}
	rc.Data = &dataset.CSVProvider{
		Path:        cfg.Data.Path,
		TimeLayout:  cfg.Data.TimeLayout,
		Categorical: cfg.Data.Categorical,
	}

	switch cfg.Benchmark.Kind {
	case "csv":
		rc.Benchmark = &benchmark.CSVProvider{Path: cfg.Benchmark.Path}
	case "sqlite", "postgres":
		p, err := benchmark.OpenSQL(cfg.Benchmark.Kind, cfg.Benchmark.DSN)
		if err != nil {
			return nil, err
		}
		rc.Benchmark = p
		rc.closers = append(rc.closers, p)
	}

	switch cfg.Store.Kind {
	case "file":
		s, err := store.NewFile(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		rc.Store = s
	case "badger":
		s, err := store.OpenBadger(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		rc.Store = s
		rc.closers = append(rc.closers, s)
	default:
		rc.Store = store.NewMemory()
	}

	var sinks []notify.Sink
	if cfg.Notify.Stdout {
		if cfg.Notify.JSON {
			sinks = append(sinks, notify.NewJSONWriterSink(os.Stdout))
		} else {
			sinks = append(sinks, notify.NewWriterSink(os.Stdout))
		}
	}
	if cfg.Notify.File != "" {
		f, err := os.OpenFile(cfg.Notify.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "open alert file %s", cfg.Notify.File)
		}
		sinks = append(sinks, notify.NewJSONWriterSink(f))
		rc.closers = append(rc.closers, f)
	}
	if len(cfg.Notify.KafkaBroker) > 0 {
		k := notify.NewKafkaSink(cfg.Notify.KafkaBroker, cfg.Notify.KafkaTopic)
		sinks = append(sinks, k)
		rc.closers = append(rc.closers, k)
	}
	rc.Notifier = notify.New(rc.RunID, sinks...)

	rc.Monitor = resource.NewMonitor(resource.SystemSampler{},
		resource.WithMaxCPU(cfg.Resource.MaxCPU),
		resource.WithMaxRAM(cfg.Resource.MaxRAM),
		resource.WithInterval(cfg.Resource.Interval),
		resource.WithHighDuration(cfg.Resource.HighDuration),
		resource.WithCriticalDuration(cfg.Resource.CriticalDuration),
		resource.WithNotifier(rc.Notifier),
	)
	return rc, nil
}

// init fills unset collaborators.
func (rc *RunContext) init() {
	if rc.Config == nil {
		rc.Config = config.Default()
	}
	if rc.RunID == "" {
		rc.RunID = uuid.NewString()
	}
	if rc.Factory == nil {
		rc.Factory = algorithm.NewRegistry()
	}
	if rc.Clock == nil {
		rc.Clock = resource.SystemClock{}
	}
	if rc.Notifier == nil {
		rc.Notifier = notify.New(rc.RunID)
	}
	if rc.Decisions == nil {
		rc.Decisions = decision.Defaults{Shape: algorithm.Shape(rc.Config.Data.Shape)}
	}
	if rc.Aggregator == nil {
		rc.Aggregator = report.NewAggregator(rc.RunID)
	}
	if rc.Metrics == nil {
		rc.Metrics = NewMetrics()
	}
	if rc.Config.Disabled(config.StageNotify) {
		rc.Notifier.Mute()
	}
	rc.logger = log.GetLoggerWithName("pipeline").With(log.RunIDKey, rc.RunID)
}

// Close releases stores and sinks opened by Build.
func (rc *RunContext) Close() error {
	var first error
	for i := len(rc.closers) - 1; i >= 0; i-- {
		if err := rc.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	rc.closers = nil
	return first
}
