// Package linear は正規方程式による線形回帰・Ridge回帰と、
// epsilon-insensitive損失のPassive-Aggressive更新による線形SVRを提供します。
package linear

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/core/parallel"
	"github.com/YuminosukeSato/athena/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は最小二乗法による線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator
	Weights      []float64 // 重み（係数）
	Intercept    float64   // 切片
	FitIntercept bool
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &LinearRegression{FitIntercept: p.fitIntercept}
}

// Fit はモデルを訓練データで学習させる。
// 中心化したXに対してSVDで最小二乗解を求めるため、列が線形従属でも解が得られる。
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	r, c, err := model.CheckFit("LinearRegression", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := center(X, y, r, c, lr.FitIntercept)

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}
	rank := svd.Rank(1e-10)
	if rank == 0 {
		// 全ての特徴量が定数: 切片のみのモデル
		lr.Weights = make([]float64, c)
		lr.Intercept = yMean
		lr.SetFitted(c)
		return nil
	}

	w := mat.NewVecDense(c, nil)
	svd.SolveVecTo(w, yc, rank)

	lr.Weights = make([]float64, c)
	for j := 0; j < c; j++ {
		lr.Weights[j] = w.AtVec(j)
	}
	lr.Intercept = intercept(lr.Weights, xMean, yMean)

	lr.SetFitted(c)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.CheckPredict("LinearRegression", X); err != nil {
		return nil, err
	}
	return predictLinear(X, lr.Weights, lr.Intercept), nil
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	out := make([]float64, len(lr.Weights))
	copy(out, lr.Weights)
	return out
}

// GetIntercept は学習された切片を返す
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// Ridge はL2正則化付きの線形回帰モデル。切片は正則化しない。
type Ridge struct {
	model.BaseEstimator
	Weights      []float64
	Intercept    float64
	Alpha        float64
	FitIntercept bool
}

// NewRidge は新しいRidge回帰モデルを作成する（デフォルト alpha=1.0）
func NewRidge(opts ...Option) *Ridge {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &Ridge{Alpha: p.alpha, FitIntercept: p.fitIntercept}
}

// Fit は (XᵀX + αI) w = Xᵀy をCholesky分解で解く
func (rg *Ridge) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "Ridge.Fit")

	if rg.Alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", rg.Alpha)
	}
	r, c, err := model.CheckFit("Ridge", X, y)
	if err != nil {
		return err
	}

	Xc, yc, xMean, yMean := center(X, y, r, c, rg.FitIntercept)

	gram := mat.NewSymDense(c, nil)
	gram.SymOuterK(1, Xc.T())
	for j := 0; j < c; j++ {
		gram.SetSym(j, j, gram.At(j, j)+rg.Alpha)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return errors.NewModelError("Ridge.Fit", "matrix is not positive definite", errors.ErrSingularMatrix)
	}

	var xty mat.VecDense
	xty.MulVec(Xc.T(), yc)

	w := mat.NewVecDense(c, nil)
	if err := chol.SolveVecTo(w, &xty); err != nil {
		return errors.NewModelError("Ridge.Fit", "solve failed", err)
	}

	rg.Weights = make([]float64, c)
	for j := 0; j < c; j++ {
		rg.Weights[j] = w.AtVec(j)
	}
	rg.Intercept = intercept(rg.Weights, xMean, yMean)

	rg.SetFitted(c)
	return nil
}

// Predict は入力データに対する予測を行う
func (rg *Ridge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rg.CheckPredict("Ridge", X); err != nil {
		return nil, err
	}
	return predictLinear(X, rg.Weights, rg.Intercept), nil
}

// GetWeights は学習された重み（係数）を返す
func (rg *Ridge) GetWeights() []float64 {
	out := make([]float64, len(rg.Weights))
	copy(out, rg.Weights)
	return out
}

// GetIntercept は学習された切片を返す
func (rg *Ridge) GetIntercept() float64 {
	return rg.Intercept
}

// center は切片を学習する場合にXとyを列平均で中心化する
func center(X, y mat.Matrix, r, c int, fitIntercept bool) (*mat.Dense, *mat.VecDense, []float64, float64) {
	xMean := make([]float64, c)
	yMean := 0.0
	yv := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yv.SetVec(i, y.At(i, 0))
	}

	if fitIntercept {
		col := make([]float64, r)
		for j := 0; j < c; j++ {
			mat.Col(col, j, X)
			xMean[j] = stat.Mean(col, nil)
		}
		yMean = stat.Mean(yv.RawVector().Data, nil)
	}

	Xc := mat.NewDense(r, c, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < c; j++ {
				Xc.Set(i, j, X.At(i, j)-xMean[j])
			}
			yv.SetVec(i, yv.AtVec(i)-yMean)
		}
	})
	return Xc, yv, xMean, yMean
}

func intercept(w, xMean []float64, yMean float64) float64 {
	b := yMean
	for j, m := range xMean {
		b -= w[j] * m
	}
	return b
}

func predictLinear(X mat.Matrix, w []float64, b float64) *mat.Dense {
	r, c := X.Dims()
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := b
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * w[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions
}

var (
	_ model.Regressor   = (*LinearRegression)(nil)
	_ model.LinearModel = (*LinearRegression)(nil)
	_ model.Regressor   = (*Ridge)(nil)
	_ model.LinearModel = (*Ridge)(nil)
)
