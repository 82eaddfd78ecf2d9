// Package report accumulates per-zone training results, alerts and final
// resolutions, and renders them for operators.
package report

import (
	"math"
	"time"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/validation"
)

// Status is the outcome of one candidate attempt.
type Status string

const (
	StatusTrained   Status = "trained"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusAbandoned Status = "abandoned"
)

// TrainingResult is everything known about one (zone, algorithm) attempt.
type TrainingResult struct {
	Zone      string
	Algorithm algorithm.Algorithm
	Status    Status

	CV validation.Result

	// Fitted is true when the final fit succeeded.
	Fitted bool
	// R2 is measured on the holdout tail, or on the training rows when no
	// holdout is configured.
	R2           float64
	RMSE         float64
	TrainingTime time.Duration
	// Prediction is the model output for the most recent row.
	Prediction float64
	Rows       int
	Shrinks    int
	ModelKey   string
	Error      string
	Alerts     []notify.Alert
}

// Failed returns a result carrying the worst possible score.
func Failed(zone string, a algorithm.Algorithm, err error) TrainingResult {
	r := TrainingResult{
		Zone:       zone,
		Algorithm:  a,
		Status:     StatusFailed,
		R2:         math.Inf(-1),
		RMSE:       math.Inf(1),
		Prediction: math.NaN(),
		CV:         validation.Result{MeanRMSE: math.NaN(), StdRMSE: math.NaN()},
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Usable reports whether the result carries a fitted model with a finite
// score.
func (r TrainingResult) Usable() bool {
	return r.Fitted && !math.IsNaN(r.R2) && !math.IsInf(r.R2, 0)
}

// Stage names the step of the fallback chain that produced a resolution.
type Stage string

const (
	StageCV           Stage = "cv"
	StageR2           Stage = "r2"
	StageHardFallback Stage = "hard_fallback"
	StageAccepted     Stage = "accepted"
	StageNone         Stage = "none"
)

// Resolution is the final outcome for a zone. Algorithm is algorithm.None
// when nothing could be fitted.
type Resolution struct {
	Algorithm  algorithm.Algorithm
	Prediction float64
	Score      float64
	Stage      Stage
	Timestamp  time.Time
}
