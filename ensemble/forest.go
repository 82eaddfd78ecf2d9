package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/core/parallel"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/tree"
)

// RandomForestRegressor averages CART trees fitted on bootstrap samples.
// Trees are grown concurrently; tree i is seeded with RandomState+i so the
// result does not depend on scheduling.
type RandomForestRegressor struct {
	model.BaseEstimator

	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 means all features
	Bootstrap       bool
	NJobs           int // <= 0 means all CPUs
	RandomState     uint64

	Trees []*tree.Tree
}

// NewRandomForestRegressor returns a forest of 100 fully grown trees.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		NJobs:           -1,
		RandomState:     42,
	}
}

// WithNEstimators sets the number of trees.
func (rf *RandomForestRegressor) WithNEstimators(n int) *RandomForestRegressor {
	rf.NEstimators = n
	return rf
}

// WithMaxDepth limits the depth of each tree.
func (rf *RandomForestRegressor) WithMaxDepth(d int) *RandomForestRegressor {
	rf.MaxDepth = d
	return rf
}

// WithMaxFeatures sets how many features each split considers.
func (rf *RandomForestRegressor) WithMaxFeatures(k int) *RandomForestRegressor {
	rf.MaxFeatures = k
	return rf
}

// WithNJobs sets the number of worker goroutines.
func (rf *RandomForestRegressor) WithNJobs(n int) *RandomForestRegressor {
	rf.NJobs = n
	return rf
}

// WithRandomState sets the base seed.
func (rf *RandomForestRegressor) WithRandomState(seed uint64) *RandomForestRegressor {
	rf.RandomState = seed
	return rf
}

// Fit grows NEstimators trees in parallel.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be positive", rf.NEstimators)
	}
	rows, target, cols, err := prepare("RandomForestRegressor", X, y)
	if err != nil {
		return err
	}

	n := len(target)
	trees := make([]*tree.Tree, rf.NEstimators)
	err = parallel.ForEach(rf.NEstimators, rf.NJobs, func(i int) error {
		return errors.SafeExecute("RandomForestRegressor.tree", func() error {
			seed := rf.RandomState + uint64(i)
			indices := make([]int, n)
			if rf.Bootstrap {
				rng := newRand(seed)
				for k := range indices {
					indices[k] = rng.IntN(n)
				}
			} else {
				for k := range indices {
					indices[k] = k
				}
			}
			dt := tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(rf.MaxDepth),
				tree.WithMinSamplesSplit(rf.MinSamplesSplit),
				tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
				tree.WithMaxFeatures(rf.MaxFeatures),
				tree.WithRandomState(seed),
			)
			trees[i] = dt.FitRows(rows, target, indices)
			return nil
		})
	})
	if err != nil {
		return err
	}

	rf.Trees = trees
	rf.SetFitted(cols)
	return nil
}

// PredictRow averages the trees' predictions for one row.
func (rf *RandomForestRegressor) PredictRow(row []float64) float64 {
	if len(rf.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range rf.Trees {
		sum += t.PredictRow(row)
	}
	return sum / float64(len(rf.Trees))
}

// Predict returns one prediction per row of X.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	return predictRows("RandomForestRegressor", &rf.BaseEstimator, rf, X)
}

var _ model.Regressor = (*RandomForestRegressor)(nil)
