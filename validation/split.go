// Package validation implements walk-forward cross-validation for time
// ordered data, interleaved with resource monitoring.
package validation

import (
	"gonum.org/v1/gonum/mat"
)

// Fold is one walk-forward cycle: train on rows [0, TrainEnd), evaluate on
// rows [TrainEnd, TestEnd).
type Fold struct {
	Cycle    int
	TrainEnd int
	TestEnd  int
}

// TestSize returns the number of evaluation rows.
func (f Fold) TestSize() int { return f.TestEnd - f.TrainEnd }

// WalkForward splits ordered rows into expanding windows.
type WalkForward struct {
	NumCycles int
}

// NewWalkForward returns a splitter; fewer than one cycle falls back to 5.
func NewWalkForward(numCycles int) *WalkForward {
	if numCycles < 1 {
		numCycles = 5
	}
	return &WalkForward{NumCycles: numCycles}
}

// FoldSize returns n / (NumCycles+1).
func (w *WalkForward) FoldSize(n int) int {
	return n / (w.NumCycles + 1)
}

// Folds returns the cycles that have at least one evaluation row. A fold
// size of zero yields no folds.
func (w *WalkForward) Folds(n int) []Fold {
	size := w.FoldSize(n)
	if size == 0 {
		return nil
	}
	folds := make([]Fold, 0, w.NumCycles)
	for i := 0; i < w.NumCycles; i++ {
		start := (i + 1) * size
		if start >= n {
			break
		}
		end := (i + 2) * size
		if end > n {
			end = n
		}
		folds = append(folds, Fold{Cycle: i, TrainEnd: start, TestEnd: end})
	}
	return folds
}

// Split slices X and y for fold f.
func (f Fold) Split(X, y *mat.Dense) (trainX, trainY, testX, testY *mat.Dense) {
	_, c := X.Dims()
	trainX = X.Slice(0, f.TrainEnd, 0, c).(*mat.Dense)
	trainY = y.Slice(0, f.TrainEnd, 0, 1).(*mat.Dense)
	testX = X.Slice(f.TrainEnd, f.TestEnd, 0, c).(*mat.Dense)
	testY = y.Slice(f.TrainEnd, f.TestEnd, 0, 1).(*mat.Dense)
	return trainX, trainY, testX, testY
}
