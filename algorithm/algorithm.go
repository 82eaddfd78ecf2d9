// Package algorithm defines the closed catalog of regression algorithms the
// pipeline can try and binds each identifier to a fresh estimator.
package algorithm

import (
	"strings"

	"github.com/YuminosukeSato/athena/core/model"
	"github.com/YuminosukeSato/athena/ensemble"
	"github.com/YuminosukeSato/athena/linear"
	"github.com/YuminosukeSato/athena/neighbors"
	"github.com/YuminosukeSato/athena/pkg/errors"
)

// Algorithm is a catalog identifier.
type Algorithm string

const (
	LinearRegression Algorithm = "linear_regression"
	Ridge            Algorithm = "ridge"
	RandomForest     Algorithm = "random_forest"
	GradientBoosting Algorithm = "gradient_boosting"
	XGBoost          Algorithm = "xgboost"
	LightGBM         Algorithm = "lightgbm"
	SVR              Algorithm = "svr"
	KNN              Algorithm = "knn"
	CatBoost         Algorithm = "catboost"
)

// None marks a zone resolution that produced no model.
const None Algorithm = ""

// All lists the catalog in its canonical order.
var All = []Algorithm{
	LinearRegression, Ridge, RandomForest, GradientBoosting, XGBoost,
	LightGBM, SVR, KNN, CatBoost,
}

// Interactive is the subset offered to an operator choosing candidates by
// number; "all" expands to exactly this list.
var Interactive = []Algorithm{LinearRegression, RandomForest, XGBoost, GradientBoosting}

func (a Algorithm) String() string {
	if a == None {
		return "none"
	}
	return string(a)
}

// Valid reports whether a belongs to the catalog.
func (a Algorithm) Valid() bool {
	_, ok := supported[a]
	return ok
}

// Parse maps a case-insensitive identifier to an Algorithm.
func Parse(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return None, errors.NewUnknownAlgorithmError(s)
	}
	return a, nil
}

// ParseList parses a comma separated list, rejecting any unknown entry.
func ParseList(s string) ([]Algorithm, error) {
	var out []Algorithm
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		a, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Estimators supported by the pipeline, keyed by identifier. Every call
// returns a new, unfitted estimator.
var supported = map[Algorithm]func() model.Regressor{
	LinearRegression: func() model.Regressor { return linear.NewLinearRegression() },
	Ridge:            func() model.Regressor { return linear.NewRidge() },
	SVR:              func() model.Regressor { return linear.NewLinearSVR() },
	RandomForest:     func() model.Regressor { return ensemble.NewRandomForestRegressor() },
	GradientBoosting: func() model.Regressor { return ensemble.NewGradientBoostingRegressor() },
	XGBoost:          func() model.Regressor { return ensemble.NewXGBRegressor() },
	LightGBM:         func() model.Regressor { return ensemble.NewLGBMRegressor() },
	CatBoost:         func() model.Regressor { return ensemble.NewCatBoostRegressor() },
	KNN:              func() model.Regressor { return neighbors.NewKNeighborsRegressor() },
}

// Factory builds estimators for catalog identifiers.
type Factory interface {
	New(a Algorithm) (model.Regressor, error)
}

// Registry is the default Factory. Overrides replace individual entries,
// which lets tests substitute failing or slow estimators.
type Registry struct {
	overrides map[Algorithm]func() model.Regressor
}

// NewRegistry returns a registry backed by the built-in estimators.
func NewRegistry() *Registry {
	return &Registry{overrides: map[Algorithm]func() model.Regressor{}}
}

// Override replaces the constructor for a. Unknown identifiers are rejected.
func (r *Registry) Override(a Algorithm, fn func() model.Regressor) error {
	if !a.Valid() {
		return errors.NewUnknownAlgorithmError(string(a))
	}
	r.overrides[a] = fn
	return nil
}

// New returns a fresh estimator for a.
func (r *Registry) New(a Algorithm) (model.Regressor, error) {
	if fn, ok := r.overrides[a]; ok {
		return fn(), nil
	}
	fn, ok := supported[a]
	if !ok {
		return nil, errors.NewUnknownAlgorithmError(string(a))
	}
	return fn(), nil
}

// Empty returns a zero estimator of the right concrete type, used as the
// decode target when loading a persisted model.
func Empty(a Algorithm) (model.Regressor, error) {
	switch a {
	case LinearRegression:
		return &linear.LinearRegression{}, nil
	case Ridge:
		return &linear.Ridge{}, nil
	case SVR:
		return &linear.LinearSVR{}, nil
	case RandomForest:
		return &ensemble.RandomForestRegressor{}, nil
	case GradientBoosting:
		return &ensemble.GradientBoostingRegressor{}, nil
	case XGBoost:
		return &ensemble.XGBRegressor{}, nil
	case LightGBM:
		return &ensemble.LGBMRegressor{}, nil
	case CatBoost:
		return &ensemble.CatBoostRegressor{}, nil
	case KNN:
		return &neighbors.KNeighborsRegressor{}, nil
	}
	return nil, errors.NewUnknownAlgorithmError(string(a))
}

var _ Factory = (*Registry)(nil)
