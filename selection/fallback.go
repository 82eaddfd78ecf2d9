// Package selection resolves a zone's final model from the attempted
// candidates through a fixed fallback chain.
package selection

import (
	"context"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
	"github.com/YuminosukeSato/athena/report"
	"github.com/YuminosukeSato/athena/training"
)

// State is a step of the fallback chain.
type State int

const (
	SelectByCV State = iota
	SelectByR2
	HardFallback
	Resolved
)

func (s State) String() string {
	switch s {
	case SelectByCV:
		return "SELECT_BY_CV"
	case SelectByR2:
		return "SELECT_BY_R2"
	case HardFallback:
		return "HARD_FALLBACK"
	case Resolved:
		return "RESOLVED"
	default:
		return "UNKNOWN"
	}
}

// Outcome is the resolution plus the path taken to reach it.
type Outcome struct {
	Resolution report.Resolution
	Path       []State
	// Fit is set when the hard fallback produced the model.
	Fit *training.Fit
}

// Fallback walks SELECT_BY_CV -> SELECT_BY_R2 -> HARD_FALLBACK -> RESOLVED.
type Fallback struct {
	Trainer *training.Trainer
	logger  log.Logger
}

// NewFallback returns a selector that refits through trainer on hard
// fallback.
func NewFallback(trainer *training.Trainer) *Fallback {
	return &Fallback{Trainer: trainer, logger: log.GetLoggerWithName("selection")}
}

// Resolve picks the final model. The lowest mean CV RMSE among fitted
// candidates with CV data wins; otherwise the highest R² among fitted
// candidates; otherwise candidates[0] is refit from scratch on X and y. If
// that also fails a SelectionExhaustionError is returned together with an
// outcome whose algorithm is algorithm.None.
func (f *Fallback) Resolve(ctx context.Context, zone string, candidates []algorithm.Algorithm, results []report.TrainingResult, X, y *mat.Dense) (Outcome, error) {
	logger := f.logger.With(log.ZoneKey, zone)
	out := Outcome{}
	state := SelectByCV

	for state != Resolved {
		out.Path = append(out.Path, state)
		switch state {
		case SelectByCV:
			if r, ok := bestByCV(results); ok {
				out.Resolution = resolution(r, report.StageCV, r.R2)
				state = Resolved
				continue
			}
			logger.Info("No candidate has cross-validation data, selecting by R²")
			state = SelectByR2

		case SelectByR2:
			if r, ok := bestByR2(results); ok {
				out.Resolution = resolution(r, report.StageR2, r.R2)
				state = Resolved
				continue
			}
			logger.Warn("No candidate produced a usable model, falling back")
			state = HardFallback

		case HardFallback:
			if len(candidates) == 0 {
				out.Path = append(out.Path, Resolved)
				out.Resolution = none()
				return out, errors.NewSelectionExhaustionError(zone, algorithm.None.String(), errors.New("no candidates"))
			}
			a := candidates[0]
			fit, err := f.Trainer.Train(ctx, zone, a, X, y)
			if err != nil {
				out.Path = append(out.Path, Resolved)
				out.Resolution = none()
				logger.Error("Hard fallback failed", err, log.AlgorithmKey, a.String())
				return out, errors.NewSelectionExhaustionError(zone, a.String(), err)
			}
			out.Fit = fit
			out.Resolution = report.Resolution{Algorithm: a, Prediction: fit.Prediction, Score: fit.R2, Stage: report.StageHardFallback}
			state = Resolved
		}
	}
	out.Path = append(out.Path, Resolved)

	logger.Info("Final model selected",
		log.AlgorithmKey, out.Resolution.Algorithm.String(),
		log.StageKey, string(out.Resolution.Stage),
		log.R2ScoreKey, out.Resolution.Score,
	)
	return out, nil
}

func resolution(r report.TrainingResult, stage report.Stage, score float64) report.Resolution {
	return report.Resolution{Algorithm: r.Algorithm, Prediction: r.Prediction, Score: score, Stage: stage}
}

func none() report.Resolution {
	return report.Resolution{Algorithm: algorithm.None, Prediction: math.NaN(), Score: math.NaN(), Stage: report.StageNone}
}

// bestByCV returns the fitted result with the lowest finite mean RMSE; ties
// keep the earliest candidate.
func bestByCV(results []report.TrainingResult) (report.TrainingResult, bool) {
	var best report.TrainingResult
	found := false
	for _, r := range results {
		if !r.Usable() || !r.CV.HasData() || math.IsNaN(r.CV.MeanRMSE) {
			continue
		}
		if !found || r.CV.MeanRMSE < best.CV.MeanRMSE {
			best, found = r, true
		}
	}
	return best, found
}

// bestByR2 returns the fitted result with the highest R².
func bestByR2(results []report.TrainingResult) (report.TrainingResult, bool) {
	var best report.TrainingResult
	found := false
	for _, r := range results {
		if !r.Usable() {
			continue
		}
		if !found || r.R2 > best.R2 {
			best, found = r, true
		}
	}
	return best, found
}
