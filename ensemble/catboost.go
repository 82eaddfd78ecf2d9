package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/tree"
)

// CatBoostRegressor boosts oblivious (symmetric) trees: every level of a tree
// applies one shared feature/border test, which keeps trees balanced and
// makes prediction a bit-pattern lookup.
type CatBoostRegressor struct {
	model.BaseEstimator

	Init         float64
	Trees        []*tree.ObliviousTree
	Iterations   int
	LearningRate float64
	Depth        int
	L2LeafReg    float64
	BorderCount  int
}

// NewCatBoostRegressor returns depth-6 symmetric trees with l2_leaf_reg 3.
func NewCatBoostRegressor() *CatBoostRegressor {
	return &CatBoostRegressor{
		Iterations:   500,
		LearningRate: 0.05,
		Depth:        6,
		L2LeafReg:    3,
		BorderCount:  254,
	}
}

// WithIterations sets the number of trees.
func (cb *CatBoostRegressor) WithIterations(n int) *CatBoostRegressor {
	cb.Iterations = n
	return cb
}

// WithLearningRate sets the shrinkage.
func (cb *CatBoostRegressor) WithLearningRate(lr float64) *CatBoostRegressor {
	cb.LearningRate = lr
	return cb
}

// WithDepth sets the depth of every symmetric tree.
func (cb *CatBoostRegressor) WithDepth(d int) *CatBoostRegressor {
	cb.Depth = d
	return cb
}

// PredictRow evaluates the ensemble on a single row.
func (cb *CatBoostRegressor) PredictRow(row []float64) float64 {
	out := cb.Init
	for _, t := range cb.Trees {
		out += cb.LearningRate * t.PredictRow(row)
	}
	return out
}

// Fit trains the booster.
func (cb *CatBoostRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "CatBoostRegressor.Fit")

	if cb.Iterations < 1 {
		return errors.NewValidationError("iterations", "must be positive", cb.Iterations)
	}
	if cb.Depth < 1 || cb.Depth > 16 {
		return errors.NewValidationError("depth", "must be in [1, 16]", cb.Depth)
	}
	rows, target, cols, err := prepare("CatBoostRegressor", X, y)
	if err != nil {
		return err
	}

	hist := tree.NewHistogram(rows, cb.BorderCount+1)
	cb.Trees = cb.Trees[:0]
	cb.Init = boost(rows, target, cb.Iterations, cb.LearningRate, 1, nil,
		func(grad, hess []float64, indices []int) func([]float64) float64 {
			t := tree.BuildOblivious(hist, grad, hess, indices, cb.Depth, cb.L2LeafReg, 0)
			cb.Trees = append(cb.Trees, t)
			return t.PredictRow
		})
	cb.SetFitted(cols)
	return nil
}

// Predict returns one prediction per row of X.
func (cb *CatBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictRows("CatBoostRegressor", &cb.BaseEstimator, cb, X)
}

var _ model.Regressor = (*CatBoostRegressor)(nil)
