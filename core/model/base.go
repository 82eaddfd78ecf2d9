package model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// BaseEstimator は全てのモデルの基底となる構造体。
// gobで永続化できるようにフィールドは公開している。
type BaseEstimator struct {
	Fitted    bool
	NFeatures int
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.Fitted
}

// SetFitted はモデルを学習済み状態に設定し、特徴量数を記録する
func (e *BaseEstimator) SetFitted(nFeatures int) {
	e.Fitted = true
	e.NFeatures = nFeatures
}

// Reset はモデルを初期状態にリセットする
func (e *BaseEstimator) Reset() {
	e.Fitted = false
	e.NFeatures = 0
}

// CheckPredict は予測前の共通チェック（学習済みか、特徴量数が一致するか）を行う
func (e *BaseEstimator) CheckPredict(name string, X mat.Matrix) error {
	if !e.Fitted {
		return errors.NewNotFittedError(name, "Predict")
	}
	_, c := X.Dims()
	if c != e.NFeatures {
		return errors.NewDimensionError(name+".Predict", e.NFeatures, c, 1)
	}
	return nil
}

// CheckFit は学習データの形状を検証し、サンプル数と特徴量数を返す
func CheckFit(name string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewModelError(name+".Fit", "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(name+".Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewValueError(name+".Fit", "y must be a single column")
	}
	if err := errors.CheckMatrix(name+".Fit", X, rows, cols); err != nil {
		return 0, 0, err
	}
	if err := errors.CheckMatrix(name+".Fit", y, yRows, 1); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

// Column は y（n×1）をスライスとして取り出す
func Column(y mat.Matrix) []float64 {
	r, _ := y.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out
}

// Rows は X を行優先のスライスの配列として取り出す
func Rows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		row := make([]float64, c)
		for j := range row {
			row[j] = X.At(i, j)
		}
		out[i] = row
	}
	return out
}
