package report

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/YuminosukeSato/athena/pkg/errors"
)

// PredictionWriter writes the final per-zone prediction for the last
// timestamp as CSV.
type PredictionWriter struct {
	w      *csv.Writer
	closer io.Closer
	header bool
}

// NewPredictionWriter writes to w.
func NewPredictionWriter(w io.Writer) *PredictionWriter {
	return &PredictionWriter{w: csv.NewWriter(w)}
}

// CreatePredictionFile truncates or creates path.
func CreatePredictionFile(path string) (*PredictionWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create prediction file %s", path)
	}
	pw := NewPredictionWriter(f)
	pw.closer = f
	return pw, nil
}

// Write appends one row per resolved zone.
func (p *PredictionWriter) Write(a *Aggregator, at time.Time) error {
	if !p.header {
		if err := p.w.Write([]string{"timestamp", "zone", "algorithm", "prediction", "score", "stage"}); err != nil {
			return errors.Wrap(err, "write prediction header")
		}
		p.header = true
	}
	for _, z := range a.Zones() {
		if z.Final == nil {
			continue
		}
		f := z.Final
		rec := []string{
			at.UTC().Format(time.RFC3339),
			z.Name,
			f.Algorithm.String(),
			strconv.FormatFloat(f.Prediction, 'g', -1, 64),
			strconv.FormatFloat(f.Score, 'g', -1, 64),
			string(f.Stage),
		}
		if err := p.w.Write(rec); err != nil {
			return errors.Wrapf(err, "write prediction for %s", z.Name)
		}
	}
	p.w.Flush()
	return errors.Wrap(p.w.Error(), "flush predictions")
}

// Close flushes and closes the underlying file, if any.
func (p *PredictionWriter) Close() error {
	p.w.Flush()
	if p.closer != nil {
		return p.closer.Close()
	}
	return p.w.Error()
}
