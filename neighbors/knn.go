// Package neighbors provides k-nearest-neighbour regression.
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/core/parallel"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/preprocessing"
)

// Weighting schemes for neighbour votes.
const (
	Uniform  = "uniform"
	Distance = "distance"
)

// KNeighborsRegressor predicts the (optionally distance-weighted) mean target
// of the K closest training rows. Features are standardised before distances
// are measured so that no single column dominates.
type KNeighborsRegressor struct {
	model.BaseEstimator

	K       int
	Weights string

	Scaler  *preprocessing.StandardScaler
	Train   [][]float64 // standardised training rows
	Targets []float64
}

// NewKNeighborsRegressor returns a 5-neighbour uniform regressor.
func NewKNeighborsRegressor() *KNeighborsRegressor {
	return &KNeighborsRegressor{K: 5, Weights: Uniform}
}

// WithK sets the number of neighbours.
func (kn *KNeighborsRegressor) WithK(k int) *KNeighborsRegressor {
	kn.K = k
	return kn
}

// WithWeights selects Uniform or Distance weighting.
func (kn *KNeighborsRegressor) WithWeights(w string) *KNeighborsRegressor {
	kn.Weights = w
	return kn
}

// Fit memorises the standardised training set.
func (kn *KNeighborsRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KNeighborsRegressor.Fit")

	if kn.K < 1 {
		return errors.NewValidationError("n_neighbors", "must be positive", kn.K)
	}
	if kn.Weights != Uniform && kn.Weights != Distance {
		return errors.NewValidationError("weights", "must be 'uniform' or 'distance'", kn.Weights)
	}
	_, cols, err := model.CheckFit("KNeighborsRegressor", X, y)
	if err != nil {
		return err
	}

	kn.Scaler = preprocessing.NewStandardScalerDefault()
	scaled, err := kn.Scaler.FitTransform(X)
	if err != nil {
		return err
	}
	kn.Train = model.Rows(scaled)
	kn.Targets = model.Column(y)
	kn.SetFitted(cols)
	return nil
}

// Predict returns the neighbour estimate for each row of X. Rows are scored
// concurrently.
func (kn *KNeighborsRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := kn.CheckPredict("KNeighborsRegressor", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, 256, func(start, end int) {
		row := make([]float64, c)
		scaled := make([]float64, c)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			kn.Scaler.TransformRow(scaled, row)
			out.Set(i, 0, kn.estimate(scaled))
		}
	})
	return out, nil
}

type neighbour struct {
	dist   float64
	target float64
}

func (kn *KNeighborsRegressor) estimate(q []float64) float64 {
	nb := make([]neighbour, len(kn.Train))
	for i, row := range kn.Train {
		nb[i] = neighbour{dist: floats.Distance(q, row, 2), target: kn.Targets[i]}
	}
	sort.SliceStable(nb, func(i, j int) bool { return nb[i].dist < nb[j].dist })

	k := kn.K
	if k > len(nb) {
		k = len(nb)
	}
	nb = nb[:k]

	if kn.Weights == Distance {
		// an exact match takes all the weight
		var exact, nExact float64
		for _, n := range nb {
			if n.dist == 0 {
				exact += n.target
				nExact++
			}
		}
		if nExact > 0 {
			return exact / nExact
		}
		var num, den float64
		for _, n := range nb {
			w := 1 / n.dist
			num += w * n.target
			den += w
		}
		return num / den
	}

	var sum float64
	for _, n := range nb {
		sum += n.target
	}
	return sum / float64(len(nb))
}

var _ model.Regressor = (*KNeighborsRegressor)(nil)
