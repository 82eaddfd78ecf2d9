package selection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/report"
	"github.com/YuminosukeSato/athena/training"
	"github.com/YuminosukeSato/athena/validation"
)

func data() (*mat.Dense, *mat.Dense) {
	n := 30
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, 2*float64(i)+1)
	}
	return X, y
}

func result(a algorithm.Algorithm, meanRMSE, r2 float64) report.TrainingResult {
	cv := validation.Result{MeanRMSE: meanRMSE}
	if !math.IsNaN(meanRMSE) {
		cv.CycleRMSE = []float64{meanRMSE}
	}
	return report.TrainingResult{Algorithm: a, Fitted: true, R2: r2, Prediction: r2 * 10, CV: cv, Status: report.StatusTrained}
}

func newFallback(reg *algorithm.Registry) *Fallback {
	return NewFallback(training.NewTrainer(reg, nil, nil, nil))
}

func TestSelectByCV(t *testing.T) {
	f := newFallback(algorithm.NewRegistry())
	results := []report.TrainingResult{
		result(algorithm.XGBoost, 0.4, 0.7),
		result(algorithm.GradientBoosting, 0.3, 0.6),
		report.Failed("z", algorithm.KNN, nil),
	}
	out, err := f.Resolve(context.Background(), "z", nil, results, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, algorithm.GradientBoosting, out.Resolution.Algorithm)
	assert.Equal(t, report.StageCV, out.Resolution.Stage)
	assert.Equal(t, 0.6, out.Resolution.Score)
	assert.Equal(t, []State{SelectByCV, Resolved}, out.Path)
}

func TestSelectByR2WhenNoCVData(t *testing.T) {
	f := newFallback(algorithm.NewRegistry())
	results := []report.TrainingResult{
		result(algorithm.XGBoost, math.NaN(), 0.7),
		result(algorithm.Ridge, math.NaN(), 0.9),
	}
	out, err := f.Resolve(context.Background(), "z", nil, results, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, algorithm.Ridge, out.Resolution.Algorithm)
	assert.Equal(t, report.StageR2, out.Resolution.Stage)
	assert.Equal(t, []State{SelectByCV, SelectByR2, Resolved}, out.Path)
}

func TestHardFallbackRefitsFirstCandidate(t *testing.T) {
	f := newFallback(algorithm.NewRegistry())
	X, y := data()
	results := []report.TrainingResult{
		report.Failed("z", algorithm.LinearRegression, errors.New("resources")),
		report.Failed("z", algorithm.RandomForest, errors.New("resources")),
	}
	out, err := f.Resolve(context.Background(), "z", []algorithm.Algorithm{algorithm.LinearRegression, algorithm.RandomForest}, results, X, y)
	require.NoError(t, err)
	assert.Equal(t, algorithm.LinearRegression, out.Resolution.Algorithm)
	assert.Equal(t, report.StageHardFallback, out.Resolution.Stage)
	assert.InDelta(t, 59, out.Resolution.Prediction, 1e-9)
	assert.NotNil(t, out.Fit)
	assert.Equal(t, []State{SelectByCV, SelectByR2, HardFallback, Resolved}, out.Path)
}

type broken struct{ model.BaseEstimator }

func (broken) Fit(X, y mat.Matrix) error                { return errors.New("cannot fit") }
func (broken) Predict(X mat.Matrix) (mat.Matrix, error) { return nil, errors.New("not fitted") }

func TestSelectionExhaustion(t *testing.T) {
	reg := algorithm.NewRegistry()
	require.NoError(t, reg.Override(algorithm.KNN, func() model.Regressor { return &broken{} }))
	f := newFallback(reg)
	X, y := data()

	out, err := f.Resolve(context.Background(), "z", []algorithm.Algorithm{algorithm.KNN}, nil, X, y)
	var se *errors.SelectionExhaustionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "knn", se.Fallback)
	assert.Equal(t, errors.ZoneFatal, errors.SeverityOf(err))
	assert.Equal(t, algorithm.None, out.Resolution.Algorithm)
	assert.True(t, math.IsNaN(out.Resolution.Prediction))
	assert.Equal(t, Resolved, out.Path[len(out.Path)-1])

	_, err = f.Resolve(context.Background(), "z", nil, nil, X, y)
	assert.True(t, errors.As(err, &se))
}

func TestNeverNullWhenAnyCandidateFitted(t *testing.T) {
	f := newFallback(algorithm.NewRegistry())
	for _, results := range [][]report.TrainingResult{
		{result(algorithm.Ridge, math.NaN(), 0.1)},
		{report.Failed("z", algorithm.KNN, nil), result(algorithm.SVR, 0.5, -3)},
	} {
		out, err := f.Resolve(context.Background(), "z", nil, results, nil, nil)
		require.NoError(t, err)
		assert.NotEqual(t, algorithm.None, out.Resolution.Algorithm)
	}
}
