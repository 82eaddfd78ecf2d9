// Package selector turns a dataset's variability profile into an ordered
// list of candidate algorithms.
package selector

import (
	"context"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/dataset"
	"github.com/YuminosukeSato/athena/decision"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// Thresholds drive the suggestion rules.
type Thresholds struct {
	VelocityLow          float64
	VelocityHigh         float64
	CardinalityThreshold float64
}

// Profile summarises the columns the rules look at.
type Profile struct {
	AvgStd         float64
	AvgCardinality float64
	HasCategorical bool
}

// Describe computes the average sample standard deviation of the numeric
// columns and the average number of distinct values of the categorical ones.
func Describe(d *dataset.Dataset) Profile {
	var p Profile
	var stds, cards []float64
	for _, c := range d.Columns() {
		col, _ := d.Column(c)
		if len(col) == 0 {
			continue
		}
		if d.IsCategorical(c) {
			p.HasCategorical = true
			distinct := make(map[float64]struct{}, len(col))
			for _, v := range col {
				distinct[v] = struct{}{}
			}
			cards = append(cards, float64(len(distinct)))
			continue
		}
		if len(col) < 2 {
			stds = append(stds, 0)
			continue
		}
		stds = append(stds, stat.StdDev(col, nil))
	}
	if len(stds) > 0 {
		p.AvgStd = stat.Mean(stds, nil)
	}
	if len(cards) > 0 {
		p.AvgCardinality = stat.Mean(cards, nil)
	}
	return p
}

// Suggest applies the ordered rules: high categorical cardinality, then low
// and high numeric variability.
func Suggest(p Profile, t Thresholds) algorithm.Algorithm {
	switch {
	case p.HasCategorical && p.AvgCardinality > t.CardinalityThreshold:
		return algorithm.RandomForest
	case p.AvgStd < t.VelocityLow:
		return algorithm.LinearRegression
	case p.AvgStd > t.VelocityHigh:
		return algorithm.XGBoost
	default:
		return algorithm.GradientBoosting
	}
}

// Selection is the outcome of candidate selection for a zone.
type Selection struct {
	Suggested  algorithm.Algorithm
	Candidates []algorithm.Algorithm
	Overridden bool
	Shape      algorithm.Shape
	Profile    Profile
}

// Selector combines the suggestion rules, bias pairing, operator overrides
// and the data-shape hint.
type Selector struct {
	Thresholds Thresholds
	Decisions  decision.Provider
	// Configured replaces the automatic list when no operator override
	// applies. Bias pairing and the shape order still apply to it.
	Configured []algorithm.Algorithm
	// Shape is the run-level data-shape answer. When empty the decision
	// provider is asked.
	Shape  algorithm.Shape
	logger log.Logger
}

// New returns a Selector.
func New(t Thresholds, p decision.Provider) *Selector {
	return &Selector{Thresholds: t, Decisions: p, logger: log.GetLoggerWithName("selector")}
}

// Select computes the candidate list for d. An operator override wins over
// the configured list, which wins over the automatic one. With bias present
// the list is then topped up with the suggestion's pair so it always holds
// at least two entries.
func (s *Selector) Select(ctx context.Context, d *dataset.Dataset, biasDetected bool) (Selection, error) {
	prof := Describe(d)
	sel := Selection{Profile: prof, Suggested: Suggest(prof, s.Thresholds)}
	s.logger.Info("Suggested algorithm",
		log.AlgorithmKey, sel.Suggested.String(),
		"avg_std", round(prof.AvgStd),
		"avg_cardinality", round(prof.AvgCardinality),
	)

	override, ok, err := s.Decisions.ChooseAlgorithms(ctx, sel.Suggested, biasDetected)
	if err != nil {
		return sel, err
	}
	switch {
	case ok && len(override) > 0:
		sel.Candidates = algorithm.Dedupe(override)
		sel.Overridden = true
	case len(s.Configured) > 0:
		sel.Candidates = algorithm.Dedupe(s.Configured)
	case biasDetected:
		sel.Candidates = []algorithm.Algorithm{sel.Suggested, algorithm.Pair(sel.Suggested)}
	default:
		sel.Candidates = []algorithm.Algorithm{sel.Suggested}
	}
	if biasDetected {
		sel.Candidates = ensurePair(sel.Candidates, sel.Suggested)
	}

	shape := s.Shape
	if shape == "" {
		if shape, err = s.Decisions.DataShape(ctx); err != nil {
			return sel, err
		}
	}
	sel.Shape = shape
	sel.Candidates = algorithm.Reorder(sel.Candidates, shape)

	s.logger.Info("Candidates selected", "candidates", names(sel.Candidates), "overridden", sel.Overridden, "shape", string(shape))
	return sel, nil
}

// ensurePair makes sure a biased selection holds at least two distinct
// algorithms by appending the suggestion and its pair as needed.
func ensurePair(c []algorithm.Algorithm, suggested algorithm.Algorithm) []algorithm.Algorithm {
	if len(c) >= 2 {
		return c
	}
	out := append([]algorithm.Algorithm(nil), c...)
	for _, a := range []algorithm.Algorithm{suggested, algorithm.Pair(suggested)} {
		if len(out) >= 2 {
			break
		}
		out = algorithm.Dedupe(append(out, a))
	}
	if len(out) < 2 {
		out = append(out, algorithm.Pair(out[0]))
	}
	return out
}

func names(c []algorithm.Algorithm) []string {
	out := make([]string, len(c))
	for i, a := range c {
		out[i] = a.String()
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
