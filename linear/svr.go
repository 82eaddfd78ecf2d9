package linear

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/preprocessing"
)

// LinearSVR は epsilon-insensitive 損失の線形サポートベクター回帰。
// 標準化した特徴量・目的変数に対してPassive-Aggressive更新を行い、
// 各エポックの重みの平均を最終的な係数とする。
type LinearSVR struct {
	model.BaseEstimator

	C            float64
	Epsilon      float64
	MaxIter      int
	Tol          float64
	RandomState  uint64
	FitIntercept bool

	// 学習結果（標準化空間）
	Coef      []float64
	Bias      float64
	Scaler    *preprocessing.StandardScaler
	YMean     float64
	YScale    float64
	NIter     int
	Converged bool
}

// NewLinearSVR は新しいLinearSVRを作成する
func NewLinearSVR(opts ...Option) *LinearSVR {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}
	return &LinearSVR{
		C:            p.c,
		Epsilon:      p.epsilon,
		MaxIter:      p.maxIter,
		Tol:          p.tol,
		RandomState:  p.randomState,
		FitIntercept: p.fitIntercept,
	}
}

// Fit はモデルを訓練データで学習させる
func (s *LinearSVR) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearSVR.Fit")

	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", s.MaxIter)
	}
	rows, cols, err := model.CheckFit("LinearSVR", X, y)
	if err != nil {
		return err
	}

	s.Scaler = preprocessing.NewStandardScalerDefault()
	if err := s.Scaler.Fit(X); err != nil {
		return err
	}
	xs := make([][]float64, rows)
	for i := range xs {
		xs[i] = s.Scaler.TransformRow(nil, mat.Row(nil, i, X))
	}

	ys := model.Column(y)
	s.YMean, s.YScale = meanScale(ys)
	for i := range ys {
		ys[i] = (ys[i] - s.YMean) / s.YScale
	}

	coef := make([]float64, cols)
	bias := 0.0
	avgCoef := make([]float64, cols)
	avgBias := 0.0
	prevAvg := make([]float64, cols)
	steps := 0.0

	rng := rand.New(rand.NewPCG(s.RandomState, s.RandomState^0x9e3779b97f4a7c15))
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}

	s.Converged = false
	s.NIter = 0
	for epoch := 0; epoch < s.MaxIter; epoch++ {
		rng.Shuffle(rows, func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, i := range order {
			x := xs[i]
			pred := floats.Dot(coef, x) + bias
			diff := ys[i] - pred
			loss := math.Max(0, math.Abs(diff)-s.Epsilon)
			if loss > 0 {
				norm := floats.Dot(x, x)
				if s.FitIntercept {
					norm += 1
				}
				tau := loss / (norm + 1.0/(2.0*s.C))
				if diff < 0 {
					tau = -tau
				}
				floats.AddScaled(coef, tau, x)
				if s.FitIntercept {
					bias += tau
				}
			}
			// 平均化PA: 全ステップの重みの移動平均
			steps++
			for j := range avgCoef {
				avgCoef[j] += (coef[j] - avgCoef[j]) / steps
			}
			avgBias += (bias - avgBias) / steps
		}
		s.NIter++

		delta := floats.Distance(avgCoef, prevAvg, math.Inf(1))
		copy(prevAvg, avgCoef)
		if epoch > 0 && delta < s.Tol {
			s.Converged = true
			break
		}
	}

	if !s.Converged {
		errors.Warn(errors.NewConvergenceWarning("LinearSVR", s.NIter, "maximum number of iterations reached"))
	}

	s.Coef = avgCoef
	s.Bias = avgBias
	s.SetFitted(cols)
	return nil
}

// Predict は入力データに対する予測を行う
func (s *LinearSVR) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := s.CheckPredict("LinearSVR", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, s.NFeatures)
	for i := 0; i < r; i++ {
		xs := s.Scaler.TransformRow(row, mat.Row(nil, i, X))
		out.Set(i, 0, (floats.Dot(s.Coef, xs)+s.Bias)*s.YScale+s.YMean)
	}
	return out, nil
}

// GetWeights は元の特徴量スケールでの係数を返す
func (s *LinearSVR) GetWeights() []float64 {
	out := make([]float64, len(s.Coef))
	for j, w := range s.Coef {
		out[j] = w * s.YScale / s.Scaler.Scale[j]
	}
	return out
}

// GetIntercept は元のスケールでの切片を返す
func (s *LinearSVR) GetIntercept() float64 {
	b := s.Bias*s.YScale + s.YMean
	for j, w := range s.GetWeights() {
		b -= w * s.Scaler.Mean[j]
	}
	return b
}

func meanScale(v []float64) (float64, float64) {
	mean := floats.Sum(v) / float64(len(v))
	ss := 0.0
	for _, x := range v {
		ss += (x - mean) * (x - mean)
	}
	sd := math.Sqrt(ss / float64(len(v)))
	if sd < 1e-8 {
		sd = 1
	}
	return mean, sd
}

var (
	_ model.Regressor   = (*LinearSVR)(nil)
	_ model.LinearModel = (*LinearSVR)(nil)
)
