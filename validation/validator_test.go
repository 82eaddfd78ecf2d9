package validation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/linear"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/resource"
)

func TestFoldBounds(t *testing.T) {
	w := NewWalkForward(5)
	for n := 0; n <= 200; n++ {
		size := w.FoldSize(n)
		folds := w.Folds(n)
		if size == 0 {
			assert.Empty(t, folds, "n=%d", n)
			continue
		}
		assert.LessOrEqual(t, len(folds), 5)
		for i, f := range folds {
			assert.Equal(t, i, f.Cycle)
			assert.Equal(t, (i+1)*size, f.TrainEnd, "n=%d", n)
			assert.Less(t, f.TrainEnd, f.TestEnd, "n=%d", n)
			assert.LessOrEqual(t, f.TestEnd, n, "n=%d", n)
			assert.LessOrEqual(t, f.TestSize(), size)
		}
	}
}

func TestFoldsExamples(t *testing.T) {
	w := NewWalkForward(5)
	folds := w.Folds(600)
	require.Len(t, folds, 5)
	assert.Equal(t, Fold{Cycle: 4, TrainEnd: 500, TestEnd: 600}, folds[4])

	assert.Empty(t, w.Folds(5))
	assert.Len(t, w.Folds(6), 5)
	assert.Equal(t, 5, NewWalkForward(0).NumCycles)
}

func linearData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := float64(i%17) / 17
		b := float64(i%5) / 5
		X.SetRow(i, []float64{a, b})
		y.Set(i, 0, 2*a-b+1)
	}
	return X, y
}

// flaky fails every other fit.
type flaky struct {
	model.BaseEstimator
	inner *linear.LinearRegression
	calls *int
}

func (f *flaky) Fit(X, y mat.Matrix) error {
	*f.calls++
	if *f.calls%2 == 0 {
		return errors.New("flaky fit")
	}
	return f.inner.Fit(X, y)
}

func (f *flaky) Predict(X mat.Matrix) (mat.Matrix, error) { return f.inner.Predict(X) }

type panicky struct{ model.BaseEstimator }

func (panicky) Fit(X, y mat.Matrix) error                { panic("boom") }
func (panicky) Predict(X mat.Matrix) (mat.Matrix, error) { return nil, nil }

func TestValidateLinearData(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := resource.NewFakeClock(start)
	mon := resource.NewMonitor(resource.Constant(resource.Sample{CPU: 5, RAM: 5}))
	v := NewValidator(5, algorithm.NewRegistry(), mon, clock)

	X, y := linearData(120)
	res, err := v.Validate(context.Background(), "z", algorithm.LinearRegression, X, y)
	require.NoError(t, err)
	assert.Len(t, res.CycleRMSE, 5)
	assert.True(t, res.HasData())
	assert.InDelta(t, 0, res.MeanRMSE, 1e-8)
	assert.False(t, res.ExceededResources)
	assert.Equal(t, 5, clock.Sleeps)
	assert.Equal(t, 25*time.Second, res.Duration)
}

func TestValidateBuildsFreshEstimatorPerCycle(t *testing.T) {
	reg := algorithm.NewRegistry()
	built := 0
	calls := 0
	require.NoError(t, reg.Override(algorithm.Ridge, func() model.Regressor {
		built++
		return &flaky{inner: linear.NewLinearRegression(), calls: &calls}
	}))
	v := NewValidator(5, reg, nil, resource.NewFakeClock(time.Time{}))

	var observed []int
	v.Observe = func(zone string, a algorithm.Algorithm, cycle int, rmse float64) {
		observed = append(observed, cycle)
	}

	X, y := linearData(60)
	res, err := v.Validate(context.Background(), "z", algorithm.Ridge, X, y)
	require.NoError(t, err)
	assert.Equal(t, 5, built)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, observed)

	// cycles 1 and 3 fail and are ignored by the mean
	require.Len(t, res.CycleRMSE, 5)
	assert.True(t, math.IsNaN(res.CycleRMSE[1]))
	assert.True(t, math.IsNaN(res.CycleRMSE[3]))
	assert.False(t, math.IsNaN(res.MeanRMSE))
	assert.True(t, res.HasData())
}

func TestValidateNoData(t *testing.T) {
	reg := algorithm.NewRegistry()
	require.NoError(t, reg.Override(algorithm.KNN, func() model.Regressor { return &panicky{} }))
	v := NewValidator(3, reg, nil, resource.NewFakeClock(time.Time{}))

	X, y := linearData(40)
	res, err := v.Validate(context.Background(), "z", algorithm.KNN, X, y)
	require.NoError(t, err)
	assert.Len(t, res.CycleRMSE, 3)
	assert.False(t, res.HasData())
	assert.True(t, math.IsNaN(res.MeanRMSE))

	// too few rows: every cycle is skipped
	X, y = linearData(3)
	res, err = v.Validate(context.Background(), "z", algorithm.LinearRegression, X, y)
	require.NoError(t, err)
	assert.Empty(t, res.CycleRMSE)
	assert.False(t, res.HasData())
	assert.True(t, math.IsNaN(res.MeanRMSE))
}

func TestValidateStopsWhenAborted(t *testing.T) {
	mon := resource.NewMonitor(resource.Constant(resource.Sample{CPU: 99}),
		resource.WithInterval(time.Second),
		resource.WithHighDuration(time.Second),
		resource.WithCriticalDuration(time.Second),
	)
	v := NewValidator(5, algorithm.NewRegistry(), mon, resource.NewFakeClock(time.Time{}))

	X, y := linearData(120)
	res, err := v.Validate(context.Background(), "z", algorithm.LinearRegression, X, y)
	require.NoError(t, err)
	assert.True(t, res.ExceededResources)
	// first tick elevates, second aborts before cycle 1
	assert.Len(t, res.CycleRMSE, 1)
	assert.True(t, res.HasData())
}

func TestValidateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := NewValidator(5, algorithm.NewRegistry(), nil, resource.NewFakeClock(time.Time{}))
	X, y := linearData(60)
	res, err := v.Validate(ctx, "z", algorithm.LinearRegression, X, y)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, res.CycleRMSE)
}
