// Package dataset holds the time-indexed table shared by every zone and the
// per-zone view (target plus features) that estimators are trained on.
package dataset

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// Dataset is an immutable, time-ordered numeric table. Row i was observed at
// Index[i]; categorical columns hold integer codes.
type Dataset struct {
	index       []time.Time
	columns     []string
	position    map[string]int
	categorical map[string]bool
	data        *mat.Dense
}

// New validates and wraps rows. The index must be strictly increasing and
// every value finite.
func New(index []time.Time, columns []string, rows [][]float64, categorical ...string) (*Dataset, error) {
	if len(index) != len(rows) {
		return nil, errors.NewDimensionError("dataset.New", len(index), len(rows), 0)
	}
	position := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := position[c]; dup {
			return nil, errors.NewValidationError("columns", "duplicate column", c)
		}
		position[c] = i
	}
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, errors.NewValidationError("index", "timestamps must be strictly increasing", index[i])
		}
	}
	cats := make(map[string]bool, len(categorical))
	for _, c := range categorical {
		if _, ok := position[c]; !ok {
			return nil, errors.NewValidationError("categorical", "unknown column", c)
		}
		cats[c] = true
	}

	var data *mat.Dense
	if len(rows) > 0 && len(columns) > 0 {
		data = mat.NewDense(len(rows), len(columns), nil)
		for i, row := range rows {
			if len(row) != len(columns) {
				return nil, errors.NewDimensionError("dataset.New", len(columns), len(row), 1)
			}
			for j, v := range row {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, errors.NewValidationError(columns[j], "non-finite value", v)
				}
			}
			data.SetRow(i, row)
		}
	}

	return &Dataset{
		index:       append([]time.Time(nil), index...),
		columns:     append([]string(nil), columns...),
		position:    position,
		categorical: cats,
		data:        data,
	}, nil
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.index)
}

// Empty reports whether the dataset has no rows or no columns.
func (d *Dataset) Empty() bool {
	return d.Len() == 0 || d.data == nil
}

// Columns returns the column names in table order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// Has reports whether name is a column.
func (d *Dataset) Has(name string) bool {
	_, ok := d.position[name]
	return ok
}

// IsCategorical reports whether name holds category codes.
func (d *Dataset) IsCategorical(name string) bool {
	return d.categorical[name]
}

// Index returns the timestamp of row i.
func (d *Dataset) Index(i int) time.Time {
	return d.index[i]
}

// Last returns the most recent timestamp; zero for an empty dataset.
func (d *Dataset) Last() time.Time {
	if d.Len() == 0 {
		return time.Time{}
	}
	return d.index[len(d.index)-1]
}

// Column returns a copy of the named column.
func (d *Dataset) Column(name string) ([]float64, bool) {
	j, ok := d.position[name]
	if !ok || d.data == nil {
		return nil, ok
	}
	return mat.Col(nil, j, d.data), true
}

// Matrix copies the named columns, in the given order, into a new matrix.
func (d *Dataset) Matrix(names []string) (*mat.Dense, error) {
	if d.Empty() {
		return nil, errors.ErrEmptyData
	}
	out := mat.NewDense(d.Len(), len(names), nil)
	for k, name := range names {
		j, ok := d.position[name]
		if !ok {
			return nil, errors.NewValidationError("column", "unknown column", name)
		}
		for i := 0; i < d.Len(); i++ {
			out.Set(i, k, d.data.At(i, j))
		}
	}
	return out, nil
}

// Tail returns a new dataset holding the last n rows.
func (d *Dataset) Tail(n int) *Dataset {
	if n >= d.Len() {
		return d
	}
	if n < 0 {
		n = 0
	}
	start := d.Len() - n
	out := &Dataset{
		index:       append([]time.Time(nil), d.index[start:]...),
		columns:     d.columns,
		position:    d.position,
		categorical: d.categorical,
	}
	if n > 0 {
		out.data = mat.DenseCopyOf(d.data.Slice(start, d.Len(), 0, len(d.columns)))
	}
	return out
}

// Shrink keeps the most recent fraction of rows (at least one). The receiver
// is not modified.
func (d *Dataset) Shrink(fraction float64) (*Dataset, error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, errors.NewValidationError("shrink_fraction", "must be in (0, 1)", fraction)
	}
	n := int(float64(d.Len()) * fraction)
	if n < 1 {
		n = 1
	}
	return d.Tail(n), nil
}

// Select returns a new dataset restricted to names, in the given order.
// Category flags follow their columns.
func (d *Dataset) Select(names []string) (*Dataset, error) {
	var cats []string
	for _, n := range names {
		if !d.Has(n) {
			return nil, errors.NewValidationError("column", "unknown column", n)
		}
		if d.categorical[n] {
			cats = append(cats, n)
		}
	}
	rows := make([][]float64, d.Len())
	for i := range rows {
		row := make([]float64, len(names))
		for k, n := range names {
			row[k] = d.data.At(i, d.position[n])
		}
		rows[i] = row
	}
	return New(d.index, names, rows, cats...)
}
