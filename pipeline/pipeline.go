package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/benchmark"
	"github.com/YuminosukeSato/athena/config"
	"github.com/YuminosukeSato/athena/dataset"
	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
	"github.com/YuminosukeSato/athena/report"
	"github.com/YuminosukeSato/athena/resource"
)

// Run executes the whole pipeline. Zones run one after another; a zone-fatal
// error is recorded and the next zone starts. Connectivity failures that
// outlive the retry policy, cancellation and unclassified errors end the run.
func (rc *RunContext) Run(ctx context.Context) error {
	rc.init()
	cfg := rc.Config
	start := rc.Clock.Now()
	policy := RetryPolicy{Attempts: cfg.Retry.Attempts, Delay: cfg.Retry.Delay}

	if rc.Data == nil {
		return errors.NewValidationError("data", "no dataset provider configured", nil)
	}
	data, err := retry(ctx, policy, "dataset", rc.Data.Load)
	if err != nil {
		rc.logger.Error("Dataset could not be loaded", err)
		rc.Notifier.Deliver(ctx, notify.Error, "", "", "Run aborted: dataset could not be loaded: "+err.Error())
		return err
	}
	rc.logger.Info("Dataset loaded", log.SamplesKey, data.Len(), "columns", len(data.Columns()))

	history := benchmark.History{}
	if cfg.Thresholds.UseBenchmark && rc.Benchmark != nil {
		history, err = retry(ctx, policy, "benchmark", rc.Benchmark.Load)
		if err != nil {
			rc.logger.Error("Benchmark history could not be loaded", err)
			rc.Notifier.Deliver(ctx, notify.Error, "", "", "Run aborted: benchmark history could not be loaded: "+err.Error())
			return err
		}
	}

	if cfg.Disabled(config.StageTrain) {
		rc.logger.Info("Training disabled")
	} else {
		if err := rc.prepareSelection(ctx); err != nil {
			rc.logger.Error("Run aborted", err)
			return err
		}
		for _, z := range rc.zones(data) {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := rc.runZone(ctx, data, z, history)
			if err == nil {
				continue
			}
			if errors.SeverityOf(err) != errors.ZoneFatal {
				rc.logger.Error("Run aborted", err, log.ZoneKey, z.Name)
				return err
			}
			rc.logger.Warn("Zone skipped", err, log.ZoneKey, z.Name)
		}
	}

	if cfg.Disabled(config.StagePostprocess) {
		rc.logger.Info("Post-processing disabled")
	} else if err := rc.postprocess(ctx, data); err != nil {
		return err
	}

	end := rc.Clock.Now()
	rc.Notifier.Deliver(ctx, notify.Info, "", "", fmt.Sprintf(
		"Run %s finished at %s", rc.RunID, end.UTC().Format("2006-01-02 15:04:05")))
	rc.Metrics.runDuration.Observe(end.Sub(start).Seconds())
	if cfg.Report.MetricsFile != "" {
		if err := rc.Metrics.WriteTextfile(cfg.Report.MetricsFile); err != nil {
			rc.logger.Warn("Metrics could not be written", err)
		}
	}
	return nil
}

// prepareSelection resolves the inputs every zone's selection shares: the
// configured algorithm list and the operator's data-shape answer, which is
// asked once per run.
func (rc *RunContext) prepareSelection(ctx context.Context) error {
	configured, err := algorithm.ParseList(strings.Join(rc.Config.Data.Algorithms, ","))
	if err != nil {
		return err
	}
	shape, err := rc.Decisions.DataShape(ctx)
	if err != nil {
		return err
	}
	rc.configured, rc.shape = algorithm.Dedupe(configured), shape
	rc.logger.Info("Selection inputs resolved", "configured", len(rc.configured), "shape", string(shape))
	return nil
}

// zones derives the zones from the active columns (all non-sensitive columns
// when none are configured) and applies the zone filter.
func (rc *RunContext) zones(data *dataset.Dataset) []dataset.Zone {
	cfg := rc.Config
	active := cfg.Data.Active
	if len(active) == 0 {
		sensitive := toSet(cfg.Data.Sensitive)
		for _, c := range data.Columns() {
			if !sensitive[c] {
				active = append(active, c)
			}
		}
	}
	all := dataset.Zones(active)
	if len(cfg.Data.Zones) == 0 {
		return all
	}
	keep := toSet(cfg.Data.Zones)
	var out []dataset.Zone
	for _, z := range all {
		if keep[z.Name] {
			out = append(out, z)
		}
	}
	return out
}

func (rc *RunContext) postprocess(ctx context.Context, data *dataset.Dataset) error {
	cfg := rc.Config

	if rows, flagged := rc.Aggregator.BiasReport(); flagged {
		text := report.BiasText(rows)
		rc.Notifier.Deliver(ctx, notify.Warning, "", "", text)
		if rc.BiasReport != nil {
			if _, err := io.WriteString(rc.BiasReport, text); err != nil {
				rc.logger.Warn("Bias report could not be written", err)
			}
		}
		if cfg.Report.Plot != "" && len(rows) > 0 {
			if err := report.PlotR2(rows, cfg.Report.Plot); err != nil {
				rc.logger.Warn("Bias report chart could not be drawn", err)
			}
		}
	}

	if cfg.Report.Path != "" {
		f, err := os.Create(cfg.Report.Path)
		if err != nil {
			return errors.Wrapf(err, "create report %s", cfg.Report.Path)
		}
		err = rc.Aggregator.Export(f, report.Format(cfg.Report.Format))
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	if cfg.Report.Predictions != "" {
		pw, err := report.CreatePredictionFile(cfg.Report.Predictions)
		if err != nil {
			return err
		}
		err = pw.Write(rc.Aggregator, data.Last())
		if cerr := pw.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	rc.Aggregator.LogAlerts(rc.logger)
	return nil
}

// alert delivers a message and keeps it on the aggregator under (zone, a).
func (rc *RunContext) alert(ctx context.Context, level notify.Level, zone string, a algorithm.Algorithm, msg string) notify.Alert {
	name := ""
	if a != algorithm.None {
		name = a.String()
	}
	al := rc.Notifier.Deliver(ctx, level, zone, name, msg)
	rc.Aggregator.AddAlert(zone, a, al)
	return al
}

func (rc *RunContext) failZone(ctx context.Context, zone string, err error) error {
	rc.Aggregator.Fail(zone, err)
	rc.alert(ctx, notify.Error, zone, algorithm.None, "Zone skipped: "+err.Error())
	return err
}

func (rc *RunContext) observeAttempt(zone string, r report.TrainingResult) {
	a := r.Algorithm.String()
	rc.Metrics.attempts.WithLabelValues(zone, string(r.Status)).Inc()
	if r.Fitted {
		rc.Metrics.fitDuration.WithLabelValues(zone, a).Observe(r.TrainingTime.Seconds())
		rc.Metrics.r2.WithLabelValues(zone, a).Set(r.R2)
	}
	if r.CV.HasData() {
		rc.Metrics.meanRMSE.WithLabelValues(zone, a).Set(r.CV.MeanRMSE)
	}
	state := resource.Normal
	if rc.Monitor != nil {
		state = rc.Monitor.State()
	}
	rc.Metrics.resourceState.WithLabelValues(zone, a).Set(float64(state))
}

func (rc *RunContext) observeCycle(zone string, a algorithm.Algorithm, _ int, rmse float64) {
	if math.IsNaN(rmse) || math.IsInf(rmse, 0) {
		return
	}
	rc.Metrics.cycleRMSE.WithLabelValues(zone, a.String()).Observe(rmse)
}

func toSet(s []string) map[string]bool {
	out := make(map[string]bool, len(s))
	for _, v := range s {
		out[strings.TrimSpace(v)] = true
	}
	return out
}
