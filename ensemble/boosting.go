// Package ensemble provides bagged and boosted regression tree ensembles.
//
// All boosting flavours share one additive model: an initial constant plus a
// sequence of shrunken trees fitted to the squared-error gradient
// g = prediction - y with unit hessian. They differ only in how each tree is
// grown (depth-wise exact, regularised second-order, histogram leaf-wise, or
// oblivious).
package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/tree"
)

// Additive is a constant plus a sum of shrunken trees.
type Additive struct {
	Init         float64
	LearningRate float64
	Trees        []*tree.Tree
}

// PredictRow evaluates the additive model on a single row.
func (a *Additive) PredictRow(row []float64) float64 {
	out := a.Init
	for _, t := range a.Trees {
		out += a.LearningRate * t.PredictRow(row)
	}
	return out
}

// rowPredictor is satisfied by anything that scores a single row.
type rowPredictor interface {
	PredictRow(row []float64) float64
}

// boostRound grows the next tree from the current gradients.
type boostRound func(grad, hess []float64, indices []int) func(row []float64) float64

// boost runs rounds iterations of squared-error gradient boosting. Each round
// sees a fresh row subsample when subsample < 1.
func boost(rows [][]float64, y []float64, rounds int, lr, subsample float64, rng *rand.Rand, grow boostRound) float64 {
	n := len(y)
	init := stat.Mean(y, nil)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = init
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	for i := range hess {
		hess[i] = 1
	}

	for r := 0; r < rounds; r++ {
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		indices := sampleRows(n, subsample, rng)
		step := grow(grad, hess, indices)
		for i, row := range rows {
			pred[i] += lr * step(row)
		}
	}
	return init
}

// sampleRows draws a subsample without replacement, always keeping at least one row.
func sampleRows(n int, fraction float64, rng *rand.Rand) []int {
	if fraction <= 0 || fraction >= 1 || rng == nil {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	k := int(float64(n) * fraction)
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(n)[:k]
	return perm
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// prepare validates the training data and returns it in row-major form.
func prepare(name string, X, y mat.Matrix) ([][]float64, []float64, int, error) {
	_, cols, err := model.CheckFit(name, X, y)
	if err != nil {
		return nil, nil, 0, err
	}
	return model.Rows(X), model.Column(y), cols, nil
}

// predictRows applies p to every row of X after the common fitted/shape checks.
func predictRows(name string, base *model.BaseEstimator, p rowPredictor, X mat.Matrix) (mat.Matrix, error) {
	if err := base.CheckPredict(name, X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, p.PredictRow(row))
	}
	return out, nil
}

// GradientBoostingRegressor is first-order gradient boosting with depth-limited
// CART trees and no regularisation beyond shrinkage.
type GradientBoostingRegressor struct {
	model.BaseEstimator
	Additive

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Subsample       float64
	RandomState     uint64
}

// NewGradientBoostingRegressor returns a booster with 100 depth-3 trees.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		Additive:        Additive{LearningRate: 0.1},
		NEstimators:     100,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Subsample:       1.0,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of boosting stages.
func (gb *GradientBoostingRegressor) WithNEstimators(n int) *GradientBoostingRegressor {
	gb.NEstimators = n
	return gb
}

// WithLearningRate sets the shrinkage applied to each tree.
func (gb *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	gb.LearningRate = lr
	return gb
}

// WithMaxDepth sets the depth of each tree.
func (gb *GradientBoostingRegressor) WithMaxDepth(d int) *GradientBoostingRegressor {
	gb.MaxDepth = d
	return gb
}

// WithSubsample sets the fraction of rows used per stage.
func (gb *GradientBoostingRegressor) WithSubsample(f float64) *GradientBoostingRegressor {
	gb.Subsample = f
	return gb
}

// Fit trains the booster.
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	if gb.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", gb.NEstimators)
	}
	rows, target, cols, err := prepare("GradientBoostingRegressor", X, y)
	if err != nil {
		return err
	}

	b := &tree.Builder{
		Params: tree.Params{
			MaxDepth:        gb.MaxDepth,
			MinSamplesSplit: gb.MinSamplesSplit,
			MinSamplesLeaf:  gb.MinSamplesLeaf,
		},
		Rows: rows,
	}
	gb.Trees = gb.Trees[:0]
	gb.Init = boost(rows, target, gb.NEstimators, gb.LearningRate, gb.Subsample, newRand(gb.RandomState),
		func(grad, hess []float64, indices []int) func([]float64) float64 {
			t := b.Build(grad, hess, indices)
			gb.Trees = append(gb.Trees, t)
			return t.PredictRow
		})
	gb.SetFitted(cols)
	return nil
}

// Predict returns one prediction per row of X.
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictRows("GradientBoostingRegressor", &gb.BaseEstimator, &gb.Additive, X)
}

var _ model.Regressor = (*GradientBoostingRegressor)(nil)
