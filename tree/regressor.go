package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
)

// DecisionTreeRegressor is a CART regression tree minimising squared error.
type DecisionTreeRegressor struct {
	model.BaseEstimator

	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     uint64

	Tree *Tree
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeRegressor) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}
func WithMaxFeatures(k int) Option { return func(t *DecisionTreeRegressor) { t.MaxFeatures = k } }
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.RandomState = seed }
}

// NewDecisionTreeRegressor returns a fully grown tree by default.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     42,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Fit grows the tree on X and y.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	rows, cols, err := model.CheckFit("DecisionTreeRegressor", X, y)
	if err != nil {
		return err
	}
	data := model.Rows(X)
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	t.Tree = t.FitRows(data, model.Column(y), indices)
	t.SetFitted(cols)
	return nil
}

// FitRows grows a tree on the given subset of rows. Indices may repeat
// (bootstrap samples).
func (t *DecisionTreeRegressor) FitRows(rows [][]float64, y []float64, indices []int) *Tree {
	grad := make([]float64, len(y))
	hess := make([]float64, len(y))
	for i, v := range y {
		grad[i] = -v
		hess[i] = 1
	}
	// repeated indices contribute their gradient once per occurrence
	b := &Builder{
		Params: Params{
			MaxDepth:        t.MaxDepth,
			MinSamplesSplit: t.MinSamplesSplit,
			MinSamplesLeaf:  t.MinSamplesLeaf,
			MaxFeatures:     t.MaxFeatures,
		},
		Rows: rows,
		Rand: rand.New(rand.NewPCG(t.RandomState, t.RandomState+1)),
	}
	return b.Build(grad, hess, indices)
}

// Predict returns one prediction per row of X.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.CheckPredict("DecisionTreeRegressor", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, t.Tree.PredictRow(mat.Row(nil, i, X)))
	}
	return out, nil
}

var _ model.Regressor = (*DecisionTreeRegressor)(nil)
