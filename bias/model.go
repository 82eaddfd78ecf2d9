package bias

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
)

// ModelFinding is the outcome of analysing a trained model.
type ModelFinding struct {
	Feature    string
	Difference float64
	Detected   bool
	// Importance is the mean absolute attribution of each feature, by name.
	Importance map[string]float64
}

// Attributions returns, for every row and feature, the change in prediction
// when that feature is replaced by its column mean. The result is rows x
// features.
func Attributions(m model.Predictor, X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.ErrEmptyData
	}
	base, err := m.Predict(X)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(r, c, nil)
	work := mat.DenseCopyOf(X)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean := stat.Mean(col, nil)
		for i := 0; i < r; i++ {
			work.Set(i, j, mean)
		}
		replaced, err := m.Predict(work)
		if err != nil {
			return nil, err
		}
		for i := 0; i < r; i++ {
			out.Set(i, j, base.At(i, 0)-replaced.At(i, 0))
		}
		work.SetCol(j, col)
	}
	return out, nil
}

// AnalyzeModel ranks features by mean absolute attribution and, for the top
// three, splits rows at the feature's median. A mean attribution difference
// between the two groups above threshold flags the first such feature.
func AnalyzeModel(m model.Predictor, X mat.Matrix, features []string, threshold float64) (ModelFinding, error) {
	_, c := X.Dims()
	if len(features) != c {
		return ModelFinding{}, errors.NewDimensionError("bias.AnalyzeModel", c, len(features), 1)
	}
	attr, err := Attributions(m, X)
	if err != nil {
		return ModelFinding{}, errors.NewBiasAnalysisError("", "", err)
	}
	r, _ := attr.Dims()

	finding := ModelFinding{Importance: make(map[string]float64, c)}
	order := make([]int, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		order[j] = j
		mat.Col(col, j, attr)
		var sum float64
		for _, v := range col {
			sum += math.Abs(v)
		}
		finding.Importance[features[j]] = sum / float64(r)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return finding.Importance[features[order[a]]] > finding.Importance[features[order[b]]]
	})
	if len(order) > 3 {
		order = order[:3]
	}

	xs := make([]float64, r)
	for _, j := range order {
		mat.Col(xs, j, X)
		median := medianOf(xs)
		var lowSum, highSum float64
		var lowN, highN int
		for i, x := range xs {
			if x <= median {
				lowSum += attr.At(i, j)
				lowN++
			} else {
				highSum += attr.At(i, j)
				highN++
			}
		}
		if lowN == 0 || highN == 0 {
			continue
		}
		diff := math.Abs(highSum/float64(highN) - lowSum/float64(lowN))
		if diff > threshold {
			finding.Feature = features[j]
			finding.Difference = diff
			finding.Detected = true
			return finding, nil
		}
	}
	return finding, nil
}

func medianOf(v []float64) float64 {
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
