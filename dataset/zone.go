package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// Zone is one prediction target. Its features are every active column except
// the target itself.
type Zone struct {
	Name     string
	Target   string
	Features []string
}

// NewZone builds a zone named after its target column.
func NewZone(target string, active []string) Zone {
	features := make([]string, 0, len(active))
	for _, c := range active {
		if c != target {
			features = append(features, c)
		}
	}
	return Zone{Name: target, Target: target, Features: features}
}

// Zones builds one zone per active column, in order.
func Zones(active []string) []Zone {
	out := make([]Zone, 0, len(active))
	for _, c := range active {
		out = append(out, NewZone(c, active))
	}
	return out
}

// Validate checks that d can be used to train z.
func (z Zone) Validate(d *Dataset) error {
	if d.Empty() {
		return errors.NewDataValidationError(z.Name, "dataset is empty")
	}
	if len(z.Features) == 0 {
		return errors.NewDataValidationError(z.Name, "zone has no feature columns")
	}
	var missing []string
	if !d.Has(z.Target) {
		missing = append(missing, z.Target)
	}
	for _, f := range z.Features {
		if !d.Has(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return errors.NewDataValidationError(z.Name, "missing active columns", missing...)
	}
	return nil
}

// Split extracts the feature matrix and the target column of z from d.
func (z Zone) Split(d *Dataset) (X, y *mat.Dense, err error) {
	if err := z.Validate(d); err != nil {
		return nil, nil, err
	}
	X, err = d.Matrix(z.Features)
	if err != nil {
		return nil, nil, errors.NewDataValidationError(z.Name, err.Error())
	}
	y, err = d.Matrix([]string{z.Target})
	if err != nil {
		return nil, nil, errors.NewDataValidationError(z.Name, err.Error())
	}
	return X, y, nil
}
