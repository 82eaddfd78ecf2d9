package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
)

func stepData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < n; i++ {
		x0 := float64(i) / float64(n)
		X.Set(i, 0, x0)
		X.Set(i, 1, rng.Float64())
		if x0 <= 0.5 {
			y.Set(i, 0, 1)
		} else {
			y.Set(i, 0, 5)
		}
	}
	return X, y
}

func TestDecisionTreeRegressorLearnsStep(t *testing.T) {
	X, y := stepData(100)
	dt := NewDecisionTreeRegressor(WithMaxDepth(1))
	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if dt.Tree.Leaves() != 2 {
		t.Fatalf("expected a stump with 2 leaves, got %d", dt.Tree.Leaves())
	}
	root := dt.Tree.Nodes[0]
	if root.Feature != 0 {
		t.Errorf("root split on feature %d, want 0", root.Feature)
	}

	pred, err := dt.Predict(mat.NewDense(2, 2, []float64{0.1, 0.3, 0.9, 0.3}))
	if err != nil {
		t.Fatal(err)
	}
	if pred.At(0, 0) != 1 || pred.At(1, 0) != 5 {
		t.Errorf("predictions = [%v %v], want [1 5]", pred.At(0, 0), pred.At(1, 0))
	}
}

func TestDecisionTreeRespectsMinSamplesLeaf(t *testing.T) {
	X, y := stepData(40)
	dt := NewDecisionTreeRegressor(WithMinSamplesLeaf(15))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	for _, n := range dt.Tree.Nodes {
		if n.IsLeaf() && n.Samples < 15 {
			t.Errorf("leaf with %d samples violates min_samples_leaf", n.Samples)
		}
	}
}

func TestDecisionTreeConstantTarget(t *testing.T) {
	X := mat.NewDense(5, 1, []float64{1, 2, 3, 4, 5})
	y := mat.NewDense(5, 1, []float64{7, 7, 7, 7, 7})
	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if len(dt.Tree.Nodes) != 1 || dt.Tree.Nodes[0].Value != 7 {
		t.Errorf("constant target should give a single leaf of 7, got %+v", dt.Tree.Nodes)
	}
}

func TestLeafValueAndGain(t *testing.T) {
	// with g = -y and h = 1 the leaf value is the mean
	if v := LeafValue(-12, 4, 0); v != 3 {
		t.Errorf("LeafValue() = %v, want 3", v)
	}
	if v := LeafValue(-12, 4, 2); v != 2 {
		t.Errorf("LeafValue() with lambda = %v, want 2", v)
	}
	// left y={1,1}, right y={5,5}: 0.5*(4/2 + 100/2 - 144/4) = 8
	if g := SplitGain(-2, 2, -10, 2, 0); math.Abs(g-8) > 1e-12 {
		t.Errorf("SplitGain() = %v, want 8", g)
	}
}

func TestHistogramBinning(t *testing.T) {
	rows := [][]float64{{1}, {2}, {2}, {3}, {10}}
	h := NewHistogram(rows, 255)
	if got := len(h.Cuts[0]); got != 3 {
		t.Fatalf("expected 3 cuts for 4 unique values, got %d", got)
	}
	if h.Binned[1][0] != h.Binned[2][0] {
		t.Error("equal values must share a bin")
	}
	if h.Binned[0][0] != 0 || h.Binned[4][0] != 3 {
		t.Errorf("unexpected bins %v", h.Binned)
	}

	coarse := NewHistogram(rows, 2)
	if coarse.NumBins(0) > 2 {
		t.Errorf("maxBin=2 produced %d bins", coarse.NumBins(0))
	}
}

func TestLeafWiseGrowthLimitsLeaves(t *testing.T) {
	X, y := stepData(200)
	rows := model.Rows(X)
	yv := model.Column(y)
	grad := make([]float64, len(yv))
	hess := make([]float64, len(yv))
	for i, v := range yv {
		grad[i] = -v + float64(i%7)*0.01
		hess[i] = 1
	}
	indices := make([]int, len(rows))
	for i := range indices {
		indices[i] = i
	}

	b := &Builder{Params: Params{MaxLeaves: 4}, Rows: rows, Hist: NewHistogram(rows, 32)}
	tr := b.Build(grad, hess, indices)
	if tr.Leaves() > 4 {
		t.Errorf("leaf-wise tree has %d leaves, want <= 4", tr.Leaves())
	}
	if tr.PredictRow([]float64{0.1, 0.5}) >= tr.PredictRow([]float64{0.9, 0.5}) {
		t.Error("expected the step to be captured")
	}
}

func TestObliviousTree(t *testing.T) {
	X, y := stepData(120)
	rows := model.Rows(X)
	yv := model.Column(y)
	grad := make([]float64, len(yv))
	hess := make([]float64, len(yv))
	for i, v := range yv {
		grad[i] = -v
		hess[i] = 1
	}
	indices := make([]int, len(rows))
	for i := range indices {
		indices[i] = i
	}

	ot := BuildOblivious(NewHistogram(rows, 64), grad, hess, indices, 3, 0, 0)
	if len(ot.Features) == 0 || ot.Features[0] != 0 {
		t.Fatalf("first level should split on feature 0, got %v", ot.Features)
	}
	if len(ot.Values) != 1<<len(ot.Features) {
		t.Errorf("expected %d leaves, got %d", 1<<len(ot.Features), len(ot.Values))
	}
	if math.Abs(ot.PredictRow([]float64{0.1, 0.5})-1) > 1e-9 {
		t.Errorf("left prediction = %v, want 1", ot.PredictRow([]float64{0.1, 0.5}))
	}
	if math.Abs(ot.PredictRow([]float64{0.9, 0.5})-5) > 1e-9 {
		t.Errorf("right prediction = %v, want 5", ot.PredictRow([]float64{0.9, 0.5}))
	}
}
