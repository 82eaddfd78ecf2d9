package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/benchmark"
	"github.com/YuminosukeSato/athena/bias"
	"github.com/YuminosukeSato/athena/dataset"
	"github.com/YuminosukeSato/athena/decision"
	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
	"github.com/YuminosukeSato/athena/report"
	"github.com/YuminosukeSato/athena/selection"
	"github.com/YuminosukeSato/athena/selector"
	"github.com/YuminosukeSato/athena/training"
	"github.com/YuminosukeSato/athena/validation"
)

// zoneRun is the mutable state of one zone. The working dataset only ever
// shrinks.
type zoneRun struct {
	rc   *RunContext
	zone dataset.Zone

	data    *dataset.Dataset
	X, y    *mat.Dense
	shrinks int

	bias      bias.Report
	threshold float64
	benchmark float64

	validator *validation.Validator
	trainer   *training.Trainer
	logger    log.Logger
}

func (rc *RunContext) runZone(ctx context.Context, data *dataset.Dataset, z dataset.Zone, history benchmark.History) error {
	cfg := rc.Config
	zr := &zoneRun{rc: rc, zone: z, data: data, logger: rc.logger.With(log.ZoneKey, z.Name)}
	zr.logger.Info("Zone started", log.FeaturesKey, len(z.Features))

	var err error
	if zr.X, zr.y, err = z.Split(data); err != nil {
		return rc.failZone(ctx, z.Name, err)
	}

	zr.bias = zr.detectBias(ctx)

	view, err := data.Select(z.Features)
	if err != nil {
		return rc.failZone(ctx, z.Name, errors.NewDataValidationError(z.Name, err.Error()))
	}
	s := selector.New(selector.Thresholds{
		VelocityLow:          cfg.Selector.VelocityLow,
		VelocityHigh:         cfg.Selector.VelocityHigh,
		CardinalityThreshold: cfg.Selector.Cardinality,
	}, rc.Decisions)
	s.Configured, s.Shape = rc.configured, rc.shape
	sel, err := s.Select(ctx, view, zr.bias.Detected())
	if err != nil {
		return err
	}
	candidates := sel.Candidates

	zr.threshold, zr.benchmark = cfg.Thresholds.R2, math.NaN()
	if cfg.Thresholds.UseBenchmark {
		if b, ok := history.Best(z.Name); ok {
			zr.benchmark = b
			zr.threshold = math.Max(zr.threshold, b)
		}
	}
	rc.Aggregator.SetThreshold(z.Name, zr.threshold, zr.benchmark)

	zr.validator = validation.NewValidator(cfg.Validation.NumCycles, rc.Factory, rc.Monitor, rc.Clock)
	zr.validator.Observe = rc.observeCycle
	zr.trainer = training.NewTrainer(rc.Factory, rc.Store, rc.Monitor, rc.Clock)
	zr.trainer.HoldoutFraction = cfg.Validation.HoldoutFraction
	zr.trainer.Reuse = cfg.Store.Reuse

	var (
		results  []report.TrainingResult
		accepted *report.Resolution
	)
	for _, a := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := zr.candidate(ctx, a)
		if err != nil {
			return err
		}
		if err := rc.Aggregator.Record(r); err != nil {
			zr.logger.Warn("Duplicate result ignored", err, log.AlgorithmKey, a.String())
			continue
		}
		rc.observeAttempt(z.Name, r)
		results = append(results, r)

		if r.Usable() && r.R2 >= zr.threshold {
			ok, err := rc.Decisions.ConfirmAccept(ctx, z.Name, a, r.R2, zr.threshold)
			if err != nil {
				return err
			}
			if ok {
				accepted = &report.Resolution{Algorithm: a, Prediction: r.Prediction, Score: r.R2, Stage: report.StageAccepted}
				zr.logger.Info("Candidate accepted by operator", log.AlgorithmKey, a.String(), log.R2ScoreKey, r.R2)
				break
			}
		}
	}

	var res report.Resolution
	if accepted != nil {
		res = *accepted
	} else {
		if rc.Monitor != nil && len(candidates) > 0 {
			rc.Monitor.Scope(z.Name, candidates[0].String())
		}
		out, err := selection.NewFallback(zr.trainer).Resolve(ctx, z.Name, candidates, results, zr.X, zr.y)
		res = out.Resolution
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Timestamp = zr.data.Last()
			rc.Aggregator.Resolve(z.Name, res)
			rc.Metrics.resolutions.WithLabelValues(string(res.Stage)).Inc()
			return rc.failZone(ctx, z.Name, err)
		}
		if out.Fit != nil {
			zr.recordRefit(ctx, res.Algorithm, out.Fit)
		}
	}
	res.Timestamp = zr.data.Last()
	rc.Aggregator.Resolve(z.Name, res)
	rc.Metrics.resolutions.WithLabelValues(string(res.Stage)).Inc()
	zr.recordBenchmark(ctx, res)
	zr.logger.Info("Zone finished",
		log.AlgorithmKey, res.Algorithm.String(),
		log.StageKey, string(res.Stage),
		log.R2ScoreKey, res.Score,
		"prediction", res.Prediction,
	)
	return nil
}

// recordBenchmark appends the final R² to the history when the benchmark
// provider can store it.
func (zr *zoneRun) recordBenchmark(ctx context.Context, res report.Resolution) {
	rc := zr.rc
	rec, ok := rc.Benchmark.(benchmark.Recorder)
	if !ok || !rc.Config.Benchmark.Record || res.Algorithm == algorithm.None || math.IsNaN(res.Score) {
		return
	}
	err := rec.Save(ctx, benchmark.Record{
		Zone:       zr.zone.Name,
		Algorithm:  res.Algorithm.String(),
		R2:         res.Score,
		RecordedAt: rc.Clock.Now().UTC(),
	})
	if err != nil {
		zr.logger.Warn("Benchmark record not saved", err)
	}
}

// detectBias runs the data-level checks on the zone's features and the
// sensitive columns present in the dataset.
func (zr *zoneRun) detectBias(ctx context.Context) bias.Report {
	rc, cfg := zr.rc, zr.rc.Config
	if !cfg.Bias.Enabled || len(cfg.Data.Sensitive) == 0 {
		return bias.Report{Correlation: bias.Signal{}, Attribution: bias.Signal{}}
	}
	seen := map[string]bool{}
	var cols, sensitive []string
	for _, c := range zr.zone.Features {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, s := range cfg.Data.Sensitive {
		if !zr.data.Has(s) {
			zr.logger.Warn("Sensitive column not in dataset", log.SensitiveKey, s)
			continue
		}
		sensitive = append(sensitive, s)
		if !seen[s] {
			seen[s] = true
			cols = append(cols, s)
		}
	}
	view, err := zr.data.Select(cols)
	if err != nil {
		zr.logger.Warn("Bias analysis skipped", err)
		return bias.Report{Correlation: bias.Signal{}, Attribution: bias.Signal{}}
	}

	r := bias.NewDetector(cfg.Bias.Correlation, cfg.Bias.Attribution, rc.Notifier).
		Analyze(ctx, view, zr.zone.Name, sensitive)
	if r.Detected() {
		rc.Aggregator.MarkBias(zr.zone.Name)
		rc.alert(ctx, notify.Warning, zr.zone.Name, algorithm.None,
			"Bias detected in zone data; paired candidates will be evaluated")
	}
	return r
}

// candidate validates and trains a, running the exhaustion protocol when the
// monitor aborts. The returned error is non-nil only for cancellation and
// decision failures.
func (zr *zoneRun) candidate(ctx context.Context, a algorithm.Algorithm) (report.TrainingResult, error) {
	rc, cfg := zr.rc, zr.rc.Config
	zone := zr.zone.Name
	logger := zr.logger.With(log.AlgorithmKey, a.String())
	if rc.Monitor != nil {
		rc.Monitor.Scope(zone, a.String())
	}

	var alerts []notify.Alert
	var cv validation.Result
	for {
		var err error
		if cv, err = zr.validator.Validate(ctx, zone, a, zr.X, zr.y); err != nil {
			return report.TrainingResult{}, err
		}
		if !cv.ExceededResources {
			break
		}

		s := rc.Monitor.Last()
		exhausted := errors.NewResourceExhaustionError(zone, a.String(), s.CPU, s.RAM, rc.Monitor.ElevatedFor(), cv.CompletedCycles())
		logger.Warn("Resource exhaustion", exhausted)
		canShrink := zr.shrinks < cfg.Recovery.MaxShrinks && zr.data.Len() > 1
		choice, err := rc.Decisions.ResolveExhaustion(ctx, decision.Exhaustion{
			Zone:         zone,
			Algorithm:    a,
			Alternatives: algorithm.LightweightAlternatives(a),
			CanShrink:    canShrink,
		})
		if err != nil {
			return report.TrainingResult{}, err
		}
		if choice == decision.Shrink && !canShrink {
			logger.Warn("Shrink limit reached, skipping candidate", "shrinks", zr.shrinks)
			choice = decision.Skip
		}

		switch choice {
		case decision.Shrink:
			if err := zr.shrink(); err != nil {
				return zr.exhausted(a, cv, report.StatusSkipped, err, alerts), nil
			}
			alerts = append(alerts, rc.alert(ctx, notify.Warning, zone, a, fmt.Sprintf(
				"Resources exhausted; dataset shrunk to %d rows and %s retried", zr.data.Len(), a)))
			rc.Monitor.Reset()
		case decision.Abandon:
			al := rc.alert(ctx, notify.Error, zone, a, fmt.Sprintf("Candidate %s abandoned after resource exhaustion", a))
			return zr.exhausted(a, cv, report.StatusAbandoned, exhausted, append(alerts, al)), nil
		default:
			msg := fmt.Sprintf("Candidate %s skipped after resource exhaustion", a)
			if alt := algorithm.LightweightAlternatives(a); len(alt) > 0 {
				msg += "; lighter alternatives: " + joinAlgorithms(alt)
			}
			al := rc.alert(ctx, notify.Warning, zone, a, msg)
			return zr.exhausted(a, cv, report.StatusSkipped, exhausted, append(alerts, al)), nil
		}
	}

	fit, err := zr.trainer.Train(ctx, zone, a, zr.X, zr.y)
	if err != nil {
		if ctx.Err() != nil {
			return report.TrainingResult{}, ctx.Err()
		}
		al := rc.alert(ctx, notify.Error, zone, a, "Training failed: "+err.Error())
		r := report.Failed(zone, a, err)
		r.CV, r.Rows, r.Shrinks = cv, zr.data.Len(), zr.shrinks
		r.Alerts = append(alerts, al)
		return r, nil
	}

	r := report.TrainingResult{
		Zone:         zone,
		Algorithm:    a,
		Status:       report.StatusTrained,
		CV:           cv,
		Fitted:       true,
		R2:           fit.R2,
		RMSE:         fit.RMSE,
		TrainingTime: fit.Duration,
		Prediction:   fit.Prediction,
		Rows:         zr.data.Len(),
		Shrinks:      zr.shrinks,
		ModelKey:     fit.Key,
	}
	if r.R2 < cfg.Thresholds.R2 {
		alerts = append(alerts, rc.alert(ctx, notify.Warning, zone, a, fmt.Sprintf(
			"R² %.4f is below the threshold %.2f", r.R2, cfg.Thresholds.R2)))
	}
	if !math.IsNaN(zr.benchmark) && r.R2 < zr.benchmark {
		alerts = append(alerts, rc.alert(ctx, notify.Warning, zone, a, fmt.Sprintf(
			"R² %.4f is below the historical benchmark %.4f", r.R2, zr.benchmark)))
	}
	alerts = append(alerts, zr.modelBias(ctx, a, fit)...)
	r.Alerts = alerts
	return r, nil
}

// modelBias analyses the fitted model. When it finds nothing, or cannot run,
// a correlation finding on the data is reported against the algorithm.
func (zr *zoneRun) modelBias(ctx context.Context, a algorithm.Algorithm, fit *training.Fit) []notify.Alert {
	rc, cfg := zr.rc, zr.rc.Config
	if !cfg.Bias.Enabled || len(cfg.Data.Sensitive) == 0 {
		return nil
	}
	zone := zr.zone.Name
	finding, err := bias.AnalyzeModel(fit.Model, zr.X, zr.zone.Features, cfg.Thresholds.GroupDiff)
	if err != nil {
		zr.logger.Warn("Model bias analysis failed", err, log.AlgorithmKey, a.String())
	}
	if err == nil && finding.Detected {
		rc.Aggregator.MarkBias(zone)
		return []notify.Alert{rc.alert(ctx, notify.Warning, zone, a, fmt.Sprintf(
			"Potential model bias: attribution of feature '%s' differs by %.4f between groups", finding.Feature, finding.Difference))}
	}
	if zr.bias.CorrelationDetected() {
		return []notify.Alert{rc.alert(ctx, notify.Warning, zone, a,
			"Correlation bias detected in the training data of "+a.String())}
	}
	return nil
}

// recordRefit stores the hard fallback's fit in place of the candidate's
// failed attempt, so best-so-far and the bias report include it.
func (zr *zoneRun) recordRefit(ctx context.Context, a algorithm.Algorithm, fit *training.Fit) {
	rc := zr.rc
	r := report.TrainingResult{
		Zone:         zr.zone.Name,
		Algorithm:    a,
		Status:       report.StatusTrained,
		CV:           validation.Result{MeanRMSE: math.NaN(), StdRMSE: math.NaN()},
		Fitted:       true,
		R2:           fit.R2,
		RMSE:         fit.RMSE,
		TrainingTime: fit.Duration,
		Prediction:   fit.Prediction,
		Rows:         zr.data.Len(),
		Shrinks:      zr.shrinks,
		ModelKey:     fit.Key,
	}
	r.Alerts = zr.modelBias(ctx, a, fit)
	if err := rc.Aggregator.Supersede(r); err != nil {
		zr.logger.Warn("Fallback fit not recorded", err, log.AlgorithmKey, a.String())
		return
	}
	rc.observeAttempt(zr.zone.Name, r)
}

// shrink keeps the most recent rows of the working dataset and re-splits it.
func (zr *zoneRun) shrink() error {
	shrunk, err := zr.data.Shrink(zr.rc.Config.Recovery.ShrinkFraction)
	if err != nil {
		return err
	}
	X, y, err := zr.zone.Split(shrunk)
	if err != nil {
		return err
	}
	zr.data, zr.X, zr.y = shrunk, X, y
	zr.shrinks++
	zr.logger.Info("Dataset shrunk", log.SamplesKey, shrunk.Len(), "shrinks", zr.shrinks)
	return nil
}

func (zr *zoneRun) exhausted(a algorithm.Algorithm, cv validation.Result, status report.Status, err error, alerts []notify.Alert) report.TrainingResult {
	r := report.Failed(zr.zone.Name, a, err)
	r.Status = status
	r.CV = cv
	r.Rows, r.Shrinks = zr.data.Len(), zr.shrinks
	r.Alerts = alerts
	return r
}

func joinAlgorithms(as []algorithm.Algorithm) string {
	names := make([]string, len(as))
	for i, a := range as {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}
