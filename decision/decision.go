// Package decision supplies the answers the pipeline needs at its decision
// points. The interactive provider asks an operator through numbered menus;
// the default provider answers every question the same way so unattended
// runs always terminate.
package decision

import (
	"context"

	"github.com/YuminosukeSato/athena/algorithm"
)

// Resolution is the operator's answer to a resource-exhaustion event.
type Resolution int

const (
	// Shrink retries the same candidate on a smaller, more recent dataset.
	Shrink Resolution = iota + 1
	// Skip moves on to the next candidate.
	Skip
	// Abandon drops the candidate and records an alert.
	Abandon
)

func (r Resolution) String() string {
	switch r {
	case Shrink:
		return "shrink"
	case Skip:
		return "skip"
	case Abandon:
		return "abandon"
	default:
		return "unknown"
	}
}

// Exhaustion describes the candidate that ran out of resources.
type Exhaustion struct {
	Zone         string
	Algorithm    algorithm.Algorithm
	Alternatives []algorithm.Algorithm
	CanShrink    bool
}

// Provider answers the pipeline's decision points.
type Provider interface {
	// Interactive reports whether answers come from an operator.
	Interactive() bool
	// ChooseAlgorithms may override the candidate list. ok is false when the
	// automatic selection should be used.
	ChooseAlgorithms(ctx context.Context, suggested algorithm.Algorithm, biasDetected bool) (algos []algorithm.Algorithm, ok bool, err error)
	// DataShape returns the declared shape of the data.
	DataShape(ctx context.Context) (algorithm.Shape, error)
	// ResolveExhaustion picks how to continue after a resource abort.
	ResolveExhaustion(ctx context.Context, e Exhaustion) (Resolution, error)
	// ConfirmAccept asks whether a candidate meeting the threshold should be
	// accepted as final without trying the rest.
	ConfirmAccept(ctx context.Context, zone string, a algorithm.Algorithm, r2, threshold float64) (bool, error)
}

// Defaults is the non-interactive Provider.
type Defaults struct {
	// Shape is returned by DataShape; empty means unsure.
	Shape algorithm.Shape
}

func (Defaults) Interactive() bool { return false }

func (Defaults) ChooseAlgorithms(context.Context, algorithm.Algorithm, bool) ([]algorithm.Algorithm, bool, error) {
	return nil, false, nil
}

func (d Defaults) DataShape(context.Context) (algorithm.Shape, error) {
	if d.Shape == "" {
		return algorithm.ShapeUnsure, nil
	}
	return d.Shape, nil
}

// ResolveExhaustion always skips.
func (Defaults) ResolveExhaustion(context.Context, Exhaustion) (Resolution, error) {
	return Skip, nil
}

// ConfirmAccept never accepts early.
func (Defaults) ConfirmAccept(context.Context, string, algorithm.Algorithm, float64, float64) (bool, error) {
	return false, nil
}

var _ Provider = Defaults{}
