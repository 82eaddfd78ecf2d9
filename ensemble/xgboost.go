package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/tree"
)

// XGBRegressor is regularised second-order boosting: leaf weights are shrunk
// by Lambda, splits must beat Gamma, and each child needs a hessian sum of at
// least MinChildWeight.
type XGBRegressor struct {
	model.BaseEstimator
	Additive

	NEstimators     int
	MaxDepth        int
	MinChildWeight  float64
	RegLambda       float64
	Gamma           float64
	Subsample       float64
	ColsampleByNode float64
	RandomState     uint64
}

// NewXGBRegressor mirrors the usual defaults: eta 0.3, depth 6, lambda 1.
func NewXGBRegressor() *XGBRegressor {
	return &XGBRegressor{
		Additive:        Additive{LearningRate: 0.3},
		NEstimators:     100,
		MaxDepth:        6,
		MinChildWeight:  1,
		RegLambda:       1,
		Gamma:           0,
		Subsample:       1,
		ColsampleByNode: 1,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of boosting rounds.
func (x *XGBRegressor) WithNEstimators(n int) *XGBRegressor {
	x.NEstimators = n
	return x
}

// WithLearningRate sets eta.
func (x *XGBRegressor) WithLearningRate(lr float64) *XGBRegressor {
	x.LearningRate = lr
	return x
}

// WithMaxDepth sets the maximum tree depth.
func (x *XGBRegressor) WithMaxDepth(d int) *XGBRegressor {
	x.MaxDepth = d
	return x
}

// WithRegLambda sets the L2 penalty on leaf weights.
func (x *XGBRegressor) WithRegLambda(l float64) *XGBRegressor {
	x.RegLambda = l
	return x
}

// WithGamma sets the minimum loss reduction for a split.
func (x *XGBRegressor) WithGamma(g float64) *XGBRegressor {
	x.Gamma = g
	return x
}

// WithSubsample sets the row fraction drawn each round.
func (x *XGBRegressor) WithSubsample(f float64) *XGBRegressor {
	x.Subsample = f
	return x
}

// Fit trains the booster.
func (x *XGBRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "XGBRegressor.Fit")

	if x.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", x.NEstimators)
	}
	if x.RegLambda < 0 {
		return errors.NewValidationError("reg_lambda", "must be non-negative", x.RegLambda)
	}
	rows, target, cols, err := prepare("XGBRegressor", X, y)
	if err != nil {
		return err
	}

	rng := newRand(x.RandomState)
	maxFeatures := 0
	if x.ColsampleByNode > 0 && x.ColsampleByNode < 1 {
		maxFeatures = int(float64(cols) * x.ColsampleByNode)
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}
	b := &tree.Builder{
		Params: tree.Params{
			MaxDepth:       x.MaxDepth,
			MinChildWeight: x.MinChildWeight,
			Lambda:         x.RegLambda,
			Gamma:          x.Gamma,
			MaxFeatures:    maxFeatures,
		},
		Rows: rows,
		Rand: rng,
	}
	x.Trees = x.Trees[:0]
	x.Init = boost(rows, target, x.NEstimators, x.LearningRate, x.Subsample, rng,
		func(grad, hess []float64, indices []int) func([]float64) float64 {
			t := b.Build(grad, hess, indices)
			x.Trees = append(x.Trees, t)
			return t.PredictRow
		})
	x.SetFitted(cols)
	return nil
}

// Predict returns one prediction per row of X.
func (x *XGBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictRows("XGBRegressor", &x.BaseEstimator, &x.Additive, X)
}

var _ model.Regressor = (*XGBRegressor)(nil)
