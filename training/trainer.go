// Package training performs the final fit of a candidate, scores it and
// persists the fitted model.
package training

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/metrics"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
	"github.com/YuminosukeSato/athena/resource"
	"github.com/YuminosukeSato/athena/store"
)

// Fit is the outcome of a successful final fit.
type Fit struct {
	Model    model.Regressor
	R2       float64
	RMSE     float64
	Duration time.Duration
	// Prediction is the output for the last row of X.
	Prediction float64
	// Key is empty when the model was not persisted.
	Key string
	// Cached is set when a persisted model was scored instead of refit.
	Cached bool
}

// Trainer fits, scores and persists candidates.
type Trainer struct {
	Factory algorithm.Factory
	// Store may be nil to skip persistence.
	Store store.Store
	// HoldoutFraction > 0 scores on the most recent rows instead of the
	// training rows; the persisted model is then refit on all rows.
	HoldoutFraction float64
	// Reuse scores a persisted model for the key instead of refitting, when
	// one loads and accepts X.
	Reuse   bool
	Monitor *resource.Monitor
	Clock   resource.Clock

	logger log.Logger
}

// NewTrainer returns a trainer without holdout.
func NewTrainer(f algorithm.Factory, s store.Store, monitor *resource.Monitor, clock resource.Clock) *Trainer {
	if clock == nil {
		clock = resource.SystemClock{}
	}
	return &Trainer{
		Factory: f,
		Store:   s,
		Monitor: monitor,
		Clock:   clock,
		logger:  log.GetLoggerWithName("training"),
	}
}

// Train fits a on X and y. Cancellation and an ABORTED monitor are checked
// before fitting. Fit, predict and score failures, including panics, are
// returned as TrainingError.
func (t *Trainer) Train(ctx context.Context, zone string, a algorithm.Algorithm, X, y *mat.Dense) (*Fit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.Monitor != nil && t.Monitor.State() == resource.Aborted {
		s := t.Monitor.Last()
		return nil, errors.NewResourceExhaustionError(zone, a.String(), s.CPU, s.RAM, t.Monitor.ElevatedFor(), 0)
	}

	n, c := X.Dims()
	logger := t.logger.With(log.ZoneKey, zone, log.AlgorithmKey, a.String())
	if t.Reuse && t.Store != nil {
		if fit, ok := t.cached(ctx, zone, a, X, y, logger); ok {
			return fit, nil
		}
	}
	logger.Info("Final fit started", log.SamplesKey, n, log.FeaturesKey, c)

	start := t.Clock.Now()
	fit := &Fit{}
	var err error

	holdout := t.holdoutRows(n)
	if holdout > 0 {
		split := n - holdout
		trainX := X.Slice(0, split, 0, c).(*mat.Dense)
		trainY := y.Slice(0, split, 0, 1).(*mat.Dense)
		testX := X.Slice(split, n, 0, c).(*mat.Dense)
		testY := y.Slice(split, n, 0, 1).(*mat.Dense)
		var scored model.Regressor
		if scored, err = t.fit(zone, a, trainX, trainY); err != nil {
			return nil, err
		}
		if fit.R2, fit.RMSE, err = t.score(zone, a, scored, testX, testY); err != nil {
			return nil, err
		}
		if fit.Model, err = t.fit(zone, a, X, y); err != nil {
			return nil, err
		}
	} else {
		if fit.Model, err = t.fit(zone, a, X, y); err != nil {
			return nil, err
		}
		if fit.R2, fit.RMSE, err = t.score(zone, a, fit.Model, X, y); err != nil {
			return nil, err
		}
	}

	last := X.Slice(n-1, n, 0, c)
	if fit.Prediction, err = t.predictOne(zone, a, fit.Model, last); err != nil {
		return nil, err
	}
	fit.Duration = t.Clock.Now().Sub(start)

	if t.Store != nil {
		k := store.Key{Zone: zone, Algorithm: a}
		if err := store.SaveModel(ctx, t.Store, k, fit.Model); err != nil {
			logger.Warn("Model could not be persisted", err)
		} else {
			fit.Key = k.String()
		}
	}

	logger.Info("Final fit finished",
		log.R2ScoreKey, fit.R2,
		log.RMSEKey, fit.RMSE,
		log.DurationMsKey, fit.Duration.Milliseconds(),
	)
	return fit, nil
}

// cached scores the persisted model for (zone, a). Any failure is a miss.
func (t *Trainer) cached(ctx context.Context, zone string, a algorithm.Algorithm, X, y *mat.Dense, logger log.Logger) (*Fit, bool) {
	k := store.Key{Zone: zone, Algorithm: a}
	m, ok, err := store.LoadModel(ctx, t.Store, k)
	if err != nil {
		logger.Warn("Persisted model could not be read", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	start := t.Clock.Now()
	fit := &Fit{Model: m, Key: k.String(), Cached: true}
	if fit.R2, fit.RMSE, err = t.score(zone, a, m, X, y); err != nil {
		logger.Warn("Persisted model unusable, refitting", err)
		return nil, false
	}
	n, c := X.Dims()
	if fit.Prediction, err = t.predictOne(zone, a, m, X.Slice(n-1, n, 0, c)); err != nil {
		logger.Warn("Persisted model unusable, refitting", err)
		return nil, false
	}
	fit.Duration = t.Clock.Now().Sub(start)
	logger.Info("Persisted model reused", log.R2ScoreKey, fit.R2, log.RMSEKey, fit.RMSE)
	return fit, true
}

func (t *Trainer) holdoutRows(n int) int {
	if t.HoldoutFraction <= 0 || t.HoldoutFraction >= 1 {
		return 0
	}
	h := int(math.Round(float64(n) * t.HoldoutFraction))
	if h < 2 || n-h < 2 {
		return 0
	}
	return h
}

func (t *Trainer) fit(zone string, a algorithm.Algorithm, X, y *mat.Dense) (m model.Regressor, err error) {
	defer errors.RecoverTraining(&err, zone, a.String(), "fit")
	m, err = t.Factory.New(a)
	if err != nil {
		return nil, err
	}
	if err := m.Fit(X, y); err != nil {
		return nil, errors.NewTrainingError(zone, a.String(), "fit", err)
	}
	return m, nil
}

func (t *Trainer) score(zone string, a algorithm.Algorithm, m model.Regressor, X, y *mat.Dense) (r2, rmse float64, err error) {
	defer errors.RecoverTraining(&err, zone, a.String(), "score")
	pred, err := m.Predict(X)
	if err != nil {
		return 0, 0, errors.NewTrainingError(zone, a.String(), "predict", err)
	}
	if r2, err = metrics.R2Matrix(y, pred); err != nil {
		return 0, 0, errors.NewTrainingError(zone, a.String(), "score", err)
	}
	if rmse, err = metrics.RMSEMatrix(y, pred); err != nil {
		return 0, 0, errors.NewTrainingError(zone, a.String(), "score", err)
	}
	return r2, rmse, nil
}

func (t *Trainer) predictOne(zone string, a algorithm.Algorithm, m model.Regressor, row mat.Matrix) (v float64, err error) {
	defer errors.RecoverTraining(&err, zone, a.String(), "predict")
	pred, err := m.Predict(row)
	if err != nil {
		return math.NaN(), errors.NewTrainingError(zone, a.String(), "predict", err)
	}
	return pred.At(0, 0), nil
}
