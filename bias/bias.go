// Package bias looks for features that leak information about sensitive
// columns, first on the raw data (correlation and linear attribution) and
// then on a trained model (mean-replacement attributions across groups).
package bias

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/athena/dataset"
	"github.com/YuminosukeSato/athena/linear"
	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// Signal maps sensitive column -> feature -> evidence strings.
type Signal map[string]map[string][]string

func (s Signal) add(sensitive, feature, evidence string) {
	m, ok := s[sensitive]
	if !ok {
		m = make(map[string][]string)
		s[sensitive] = m
	}
	m[feature] = append(m[feature], evidence)
}

// Flagged reports whether any pair carries evidence.
func (s Signal) Flagged() bool {
	for _, m := range s {
		if len(m) > 0 {
			return true
		}
	}
	return false
}

// Report merges the correlation and attribution signals.
type Report struct {
	Correlation Signal
	Attribution Signal
	// AttributionFailed is set when no attribution pair could be computed and
	// the decision rests on correlation alone.
	AttributionFailed bool
}

// Detected reports whether either signal flagged a pair.
func (r Report) Detected() bool {
	return r.Correlation.Flagged() || r.Attribution.Flagged()
}

// CorrelationDetected reports whether the correlation signal flagged a pair.
func (r Report) CorrelationDetected() bool {
	return r.Correlation.Flagged()
}

// Detector runs the data-level bias checks.
type Detector struct {
	CorrelationThreshold float64
	AttributionThreshold float64
	Notifier             *notify.Notifier
	logger               log.Logger
}

// NewDetector returns a detector with the given thresholds.
func NewDetector(corr, attr float64, n *notify.Notifier) *Detector {
	return &Detector{
		CorrelationThreshold: corr,
		AttributionThreshold: attr,
		Notifier:             n,
		logger:               log.GetLoggerWithName("bias"),
	}
}

// Analyze checks every (sensitive, feature) pair of d. zone scopes the
// alerts; pass "" for a run-wide analysis. An empty dataset or an empty
// sensitive set yields an empty report.
func (d *Detector) Analyze(ctx context.Context, data *dataset.Dataset, zone string, sensitive []string) Report {
	r := Report{Correlation: Signal{}, Attribution: Signal{}}
	if data.Empty() || len(sensitive) == 0 {
		return r
	}

	isSensitive := make(map[string]bool, len(sensitive))
	for _, s := range sensitive {
		isSensitive[s] = true
	}
	var features []string
	for _, c := range data.Columns() {
		if !isSensitive[c] && !data.IsCategorical(c) {
			features = append(features, c)
		}
	}

	attempted, failed := 0, 0
	for _, s := range sensitive {
		sv, ok := data.Column(s)
		if !ok {
			d.logger.Warn("Sensitive column not in dataset", log.SensitiveKey, s, log.ZoneKey, zone)
			continue
		}
		for _, f := range features {
			if ctx.Err() != nil {
				return r
			}
			fv, _ := data.Column(f)

			corr := stat.Correlation(fv, sv, nil)
			if !math.IsNaN(corr) && math.Abs(corr) > d.CorrelationThreshold {
				r.Correlation.add(s, f, fmt.Sprintf("Correlation: %.2f", corr))
				d.alert(ctx, zone, fmt.Sprintf(
					"Potential bias (correlation): feature '%s' correlates with sensitive column '%s' (%.2f)", f, s, corr))
			}

			attempted++
			impact, err := Attribution(fv, sv)
			if err != nil {
				failed++
				d.logger.Warn("Attribution failed", errors.NewBiasAnalysisError(s, f, err),
					log.SensitiveKey, s, log.FeatureKey, f, log.ZoneKey, zone)
				continue
			}
			if impact > d.AttributionThreshold {
				r.Attribution.add(s, f, fmt.Sprintf("Mean attribution: %.4f", impact))
				d.alert(ctx, zone, fmt.Sprintf(
					"Potential bias (attribution): feature '%s' drives sensitive column '%s' (mean impact %.4f)", f, s, impact))
			}
		}
	}

	if attempted > 0 && failed == attempted {
		r.AttributionFailed = true
		r.Attribution = Signal{}
		d.logger.Warn("Attribution analysis failed for every pair, using correlation only", log.ZoneKey, zone)
	}
	return r
}

func (d *Detector) alert(ctx context.Context, zone, msg string) {
	if d.Notifier != nil {
		d.Notifier.Deliver(ctx, notify.Warning, zone, "", msg)
	}
}

// Attribution fits sensitive ~ feature by least squares and returns the mean
// absolute linear attribution |coef * (x - mean(x))|.
func Attribution(feature, sensitive []float64) (float64, error) {
	n := len(feature)
	if n < 2 {
		return 0, errors.NewValueError("bias.Attribution", "need at least two samples")
	}
	if len(sensitive) != n {
		return 0, errors.NewDimensionError("bias.Attribution", n, len(sensitive), 0)
	}
	if stat.Variance(feature, nil) == 0 {
		return 0, errors.NewValueError("bias.Attribution", "feature is constant")
	}

	lr := linear.NewLinearRegression()
	if err := lr.Fit(mat.NewDense(n, 1, feature), mat.NewDense(n, 1, sensitive)); err != nil {
		return 0, err
	}
	coef := lr.GetWeights()[0]
	mean := stat.Mean(feature, nil)
	var sum float64
	for _, x := range feature {
		sum += math.Abs(coef * (x - mean))
	}
	impact := sum / float64(n)
	if err := errors.CheckScalar("bias.Attribution", impact, 0); err != nil {
		return 0, err
	}
	return impact, nil
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lines renders a signal as "sensitive/feature: evidence" lines in stable order.
func (s Signal) Lines() []string {
	var out []string
	for _, sens := range sortedKeys(s) {
		for _, f := range sortedKeys(s[sens]) {
			for _, e := range s[sens][f] {
				out = append(out, fmt.Sprintf("%s/%s: %s", sens, f, e))
			}
		}
	}
	return out
}
