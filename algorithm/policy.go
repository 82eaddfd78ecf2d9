package algorithm

import "sort"

// pairs maps a suggestion to the alternative added when bias is detected.
var pairs = map[Algorithm]Algorithm{
	LinearRegression: RandomForest,
	RandomForest:     LinearRegression,
	XGBoost:          GradientBoosting,
	GradientBoosting: XGBoost,
}

// Pair returns the bias-mitigation alternative of a. Algorithms outside the
// four suggestion targets pair with LinearRegression.
func Pair(a Algorithm) Algorithm {
	if p, ok := pairs[a]; ok {
		return p
	}
	return LinearRegression
}

// lightweight lists cheaper algorithms to suggest when a candidate exhausts
// resources.
var lightweight = map[Algorithm][]Algorithm{
	XGBoost:          {LinearRegression, Ridge, GradientBoosting},
	GradientBoosting: {LinearRegression, Ridge, RandomForest},
	RandomForest:     {LinearRegression, Ridge, GradientBoosting},
	LightGBM:         {LinearRegression, Ridge, GradientBoosting},
	SVR:              {LinearRegression, Ridge, KNN},
	KNN:              {LinearRegression, Ridge},
	CatBoost:         {LinearRegression, Ridge, GradientBoosting},
}

// LightweightAlternatives returns the cheaper algorithms for a; linear models
// have none.
func LightweightAlternatives(a Algorithm) []Algorithm {
	return append([]Algorithm(nil), lightweight[a]...)
}

// Shape is an operator-declared hint about the dominant feature type.
type Shape string

const (
	ShapeNumeric     Shape = "numeric"
	ShapeBinary      Shape = "binary"
	ShapeCategorical Shape = "categorical"
	ShapeMixed       Shape = "mixed"
	ShapeUnsure      Shape = "unsure"
)

// Shapes lists the hints in prompt order; index+1 is the menu number and
// ShapeUnsure is offered as 0.
var Shapes = []Shape{ShapeNumeric, ShapeBinary, ShapeCategorical, ShapeMixed}

var shapeOrder = map[Shape][]Algorithm{
	ShapeNumeric:     {LightGBM, XGBoost, GradientBoosting, RandomForest, LinearRegression, SVR, KNN, CatBoost},
	ShapeBinary:      {LightGBM, XGBoost, RandomForest, GradientBoosting, LinearRegression, SVR, KNN, CatBoost},
	ShapeCategorical: {LightGBM, CatBoost, XGBoost, RandomForest, GradientBoosting, LinearRegression, SVR, KNN},
}

// Reorder front-loads the algorithms suited to shape. It never adds or drops
// candidates; entries the shape does not rank keep their relative order after
// the ranked ones. Mixed, unsure and unknown hints leave the list unchanged.
func Reorder(candidates []Algorithm, shape Shape) []Algorithm {
	out := append([]Algorithm(nil), candidates...)
	order, ok := shapeOrder[shape]
	if !ok {
		return out
	}
	rank := make(map[Algorithm]int, len(order))
	for i, a := range order {
		rank[a] = i
	}
	pos := func(a Algorithm) int {
		if r, ok := rank[a]; ok {
			return r
		}
		return len(order)
	}
	sort.SliceStable(out, func(i, j int) bool { return pos(out[i]) < pos(out[j]) })
	return out
}

// Dedupe removes repeated identifiers, keeping the first occurrence.
func Dedupe(in []Algorithm) []Algorithm {
	seen := make(map[Algorithm]bool, len(in))
	out := make([]Algorithm, 0, len(in))
	for _, a := range in {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
