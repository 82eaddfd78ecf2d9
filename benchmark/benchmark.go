// Package benchmark loads the historical best R² per zone. The pipeline
// raises its acceptance threshold to this value when benchmarking is
// enabled.
package benchmark

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// History maps a zone to its historical best R².
type History map[string]float64

// Best returns the benchmark for zone, if any.
func (h History) Best(zone string) (float64, bool) {
	v, ok := h[zone]
	return v, ok
}

// Provider loads a History.
type Provider interface {
	Load(ctx context.Context) (History, error)
}

// Static is a fixed History.
// Recorder appends scores to the history.
type Recorder interface {
	Save(ctx context.Context, r Record) error
}

type Static History

func (s Static) Load(context.Context) (History, error) {
	out := make(History, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// CSVProvider reads "zone,best_r2" rows. A non-numeric header row is
// ignored; incomplete or malformed rows are skipped with a warning.
type CSVProvider struct {
	Path string
}

func (p *CSVProvider) Load(ctx context.Context) (History, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, errors.NewConnectivityError(p.Path, err)
	}
	defer f.Close()
	return Parse(ctx, f)
}

// Parse reads benchmark rows from r.
func Parse(ctx context.Context, r io.Reader) (History, error) {
	logger := log.GetLoggerWithName("benchmark")
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	h := History{}
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("Unreadable benchmark row skipped", err, "line", line)
			continue
		}
		if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" || strings.TrimSpace(rec[1]) == "" {
			logger.Warn("Incomplete or invalid benchmark row", "line", line, "row", strings.Join(rec, ","))
			continue
		}
		zone := strings.TrimSpace(rec[0])
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			if line == 1 {
				continue
			}
			logger.Warn("Invalid R² value in benchmark", "line", line, "zone", zone, "value", rec[1])
			continue
		}
		h[zone] = v
	}
	logger.Info("Benchmark history loaded", "zones", len(h))
	return h, nil
}
