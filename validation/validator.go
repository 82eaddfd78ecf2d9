package validation

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/metrics"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
	"github.com/YuminosukeSato/athena/resource"
)

// Result holds the outcome of one candidate's cross-validation.
type Result struct {
	// CycleRMSE has one entry per attempted cycle; NaN marks a failed cycle.
	CycleRMSE         []float64
	MeanRMSE          float64
	StdRMSE           float64
	Duration          time.Duration
	ExceededResources bool
}

// HasData reports whether at least one cycle produced a finite RMSE.
func (r Result) HasData() bool {
	return metrics.CountFinite(r.CycleRMSE) > 0
}

// CompletedCycles returns the number of attempted cycles.
func (r Result) CompletedCycles() int { return len(r.CycleRMSE) }

// Validator runs walk-forward validation for one candidate at a time.
type Validator struct {
	Splitter *WalkForward
	Factory  algorithm.Factory
	Monitor  *resource.Monitor
	Clock    resource.Clock

	// Observe, when set, receives every finished cycle.
	Observe func(zone string, a algorithm.Algorithm, cycle int, rmse float64)

	logger log.Logger
}

// NewValidator returns a validator. monitor may be nil to disable resource
// checks.
func NewValidator(numCycles int, f algorithm.Factory, monitor *resource.Monitor, clock resource.Clock) *Validator {
	if clock == nil {
		clock = resource.SystemClock{}
	}
	return &Validator{
		Splitter: NewWalkForward(numCycles),
		Factory:  f,
		Monitor:  monitor,
		Clock:    clock,
		logger:   log.GetLoggerWithName("validation"),
	}
}

// Validate cross-validates a on the ordered rows of X and y. The monitor is
// ticked before every cycle and an ABORTED state stops the loop with
// ExceededResources set. The clock sleeps for the sampling interval after
// each cycle. Cancellation is checked between cycles and returned together
// with the partial result.
func (v *Validator) Validate(ctx context.Context, zone string, a algorithm.Algorithm, X, y *mat.Dense) (Result, error) {
	start := v.Clock.Now()
	n, _ := X.Dims()
	logger := v.logger.With(log.ZoneKey, zone, log.AlgorithmKey, a.String())

	var res Result
	folds := v.Splitter.Folds(n)
	if len(folds) == 0 {
		logger.Warn("Not enough rows for cross-validation",
			log.SamplesKey, n, "cycles", v.Splitter.NumCycles)
	}

	for _, f := range folds {
		if err := ctx.Err(); err != nil {
			res.Duration = v.Clock.Now().Sub(start)
			return v.finish(res), err
		}
		if v.Monitor != nil && v.Monitor.Tick(ctx) == resource.Aborted {
			res.ExceededResources = true
			logger.Warn("Cross-validation stopped by resource monitor",
				"completed_cycles", len(res.CycleRMSE))
			break
		}

		rmse, err := v.cycle(a, X, y, f)
		if err != nil {
			logger.Warn("Cross-validation cycle failed", err, log.CycleKey, f.Cycle)
			rmse = math.NaN()
		} else {
			logger.Debug("Cycle completed", log.CycleKey, f.Cycle, log.RMSEKey, rmse)
		}
		res.CycleRMSE = append(res.CycleRMSE, rmse)
		if v.Observe != nil {
			v.Observe(zone, a, f.Cycle, rmse)
		}

		var interval time.Duration
		if v.Monitor != nil {
			interval = v.Monitor.Interval()
		}
		if err := v.Clock.Sleep(ctx, interval); err != nil {
			res.Duration = v.Clock.Now().Sub(start)
			return v.finish(res), err
		}
	}

	res.Duration = v.Clock.Now().Sub(start)
	res = v.finish(res)
	if res.HasData() {
		logger.Info("Cross-validation finished",
			"mean_rmse", res.MeanRMSE, "std_rmse", res.StdRMSE,
			"cycles", len(res.CycleRMSE), "exceeded_resources", res.ExceededResources)
	} else {
		logger.Warn("Cross-validation produced no data", "exceeded_resources", res.ExceededResources)
	}
	return res, nil
}

func (v *Validator) finish(r Result) Result {
	r.MeanRMSE = metrics.NanMean(r.CycleRMSE)
	r.StdRMSE = metrics.NanStd(r.CycleRMSE)
	return r
}

// cycle fits a fresh estimator on the training window and scores the
// evaluation window.
func (v *Validator) cycle(a algorithm.Algorithm, X, y *mat.Dense, f Fold) (rmse float64, err error) {
	est, err := v.Factory.New(a)
	if err != nil {
		return math.NaN(), err
	}
	trainX, trainY, testX, testY := f.Split(X, y)
	err = errors.SafeExecute(a.String()+".cv", func() error {
		if err := est.Fit(trainX, trainY); err != nil {
			return err
		}
		pred, err := est.Predict(testX)
		if err != nil {
			return err
		}
		rmse, err = metrics.RMSEMatrix(testY, pred)
		return err
	})
	if err != nil {
		return math.NaN(), err
	}
	return rmse, nil
}
