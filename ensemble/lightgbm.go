package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/tree"
)

// LGBMRegressor bins every feature once into at most MaxBin buckets and grows
// each tree leaf-wise, always splitting the leaf with the largest gain until
// NumLeaves is reached.
type LGBMRegressor struct {
	model.BaseEstimator
	Additive

	NumIterations   int
	NumLeaves       int
	MaxDepth        int // <= 0 means no limit
	MinChildSamples int
	MinChildWeight  float64
	MaxBin          int
	RegLambda       float64
	Subsample       float64
	RandomState     uint64
}

// NewLGBMRegressor creates a new LightGBM-style regressor with default parameters.
func NewLGBMRegressor() *LGBMRegressor {
	return &LGBMRegressor{
		Additive:        Additive{LearningRate: 0.1},
		NumIterations:   100,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinChildSamples: 20,
		MinChildWeight:  1e-3,
		MaxBin:          255,
		Subsample:       1.0,
		RandomState:     42,
	}
}

// WithNumLeaves sets the number of leaves
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithMaxDepth sets the maximum depth
func (lgb *LGBMRegressor) WithMaxDepth(d int) *LGBMRegressor {
	lgb.MaxDepth = d
	return lgb
}

// WithLearningRate sets the learning rate
func (lgb *LGBMRegressor) WithLearningRate(lr float64) *LGBMRegressor {
	lgb.LearningRate = lr
	return lgb
}

// WithNumIterations sets the number of iterations
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.NumIterations = n
	return lgb
}

// WithMinChildSamples sets the minimum number of rows per leaf
func (lgb *LGBMRegressor) WithMinChildSamples(n int) *LGBMRegressor {
	lgb.MinChildSamples = n
	return lgb
}

// WithMaxBin sets the histogram resolution
func (lgb *LGBMRegressor) WithMaxBin(n int) *LGBMRegressor {
	lgb.MaxBin = n
	return lgb
}

// Fit trains the LightGBM-style regressor
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	if lgb.NumIterations < 1 {
		return errors.NewValidationError("num_iterations", "must be positive", lgb.NumIterations)
	}
	if lgb.NumLeaves < 2 {
		return errors.NewValidationError("num_leaves", "must be at least 2", lgb.NumLeaves)
	}
	rows, target, cols, err := prepare("LGBMRegressor", X, y)
	if err != nil {
		return err
	}

	maxDepth := lgb.MaxDepth
	if maxDepth < 0 {
		maxDepth = 0
	}
	b := &tree.Builder{
		Params: tree.Params{
			MaxDepth:       maxDepth,
			MaxLeaves:      lgb.NumLeaves,
			MinSamplesLeaf: lgb.MinChildSamples,
			MinChildWeight: lgb.MinChildWeight,
			Lambda:         lgb.RegLambda,
		},
		Rows: rows,
		Hist: tree.NewHistogram(rows, lgb.MaxBin),
	}
	lgb.Trees = lgb.Trees[:0]
	lgb.Init = boost(rows, target, lgb.NumIterations, lgb.LearningRate, lgb.Subsample, newRand(lgb.RandomState),
		func(grad, hess []float64, indices []int) func([]float64) float64 {
			t := b.Build(grad, hess, indices)
			lgb.Trees = append(lgb.Trees, t)
			return t.PredictRow
		})
	lgb.SetFitted(cols)
	return nil
}

// Predict makes predictions for input samples
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictRows("LGBMRegressor", &lgb.BaseEstimator, &lgb.Additive, X)
}

var _ model.Regressor = (*LGBMRegressor)(nil)
