package linear

// params holds the hyperparameters shared by the linear estimators.
// Each constructor ignores the fields it does not use.
type params struct {
	fitIntercept bool
	alpha        float64
	c            float64
	epsilon      float64
	maxIter      int
	tol          float64
	randomState  uint64
}

func defaultParams() params {
	return params{
		fitIntercept: true,
		alpha:        1.0,
		c:            1.0,
		epsilon:      0.1,
		maxIter:      1000,
		tol:          1e-4,
		randomState:  42,
	}
}

// Option configures a linear estimator.
type Option func(*params)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(p *params) {
		p.fitIntercept = fit
	}
}

// WithAlpha sets the L2 penalty strength of Ridge.
func WithAlpha(alpha float64) Option {
	return func(p *params) {
		p.alpha = alpha
	}
}

// WithC sets the aggressiveness parameter of LinearSVR.
func WithC(c float64) Option {
	return func(p *params) {
		p.c = c
	}
}

// WithEpsilon sets the width of the insensitive tube of LinearSVR.
func WithEpsilon(eps float64) Option {
	return func(p *params) {
		p.epsilon = eps
	}
}

// WithMaxIter sets the maximum number of passes over the data.
func WithMaxIter(n int) Option {
	return func(p *params) {
		p.maxIter = n
	}
}

// WithTol sets the tolerance for the optimization
func WithTol(tol float64) Option {
	return func(p *params) {
		p.tol = tol
	}
}

// WithRandomState fixes the shuffling seed.
func WithRandomState(seed uint64) Option {
	return func(p *params) {
		p.randomState = seed
	}
}
