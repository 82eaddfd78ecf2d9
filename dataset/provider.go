package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/athena/pkg/errors"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// Provider acquires the cleaned dataset for a run.
type Provider interface {
	Load(ctx context.Context) (*Dataset, error)
}

// Static serves a dataset that is already in memory.
type Static struct {
	Data *Dataset
}

// Load returns the wrapped dataset.
func (s Static) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Data, nil
}

// CSVProvider reads a table whose first column is the timestamp. Columns
// listed in Categorical may hold arbitrary labels, which are replaced by
// integer codes in order of first appearance. Rows that fail to parse are
// skipped with a warning.
type CSVProvider struct {
	Path        string
	TimeLayout  string // defaults to time.RFC3339
	Categorical []string
	Columns     []string // when set, only these columns are kept
}

// Load opens and parses the file. A file that cannot be opened is reported as
// a ConnectivityError so the caller's retry policy applies.
func (p *CSVProvider) Load(ctx context.Context) (*Dataset, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, errors.NewConnectivityError(p.Path, err)
	}
	defer f.Close()
	return p.Parse(ctx, f)
}

// Parse reads the CSV from r.
func (p *CSVProvider) Parse(ctx context.Context, r io.Reader) (*Dataset, error) {
	logger := log.GetLoggerWithName("dataset.csv")
	layout := p.TimeLayout
	if layout == "" {
		layout = time.RFC3339
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err == io.EOF {
		return New(nil, nil, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	if len(header) < 2 {
		return nil, errors.NewValidationError("header", "need a timestamp column and at least one value column", header)
	}

	// source column -> output position
	keep := make([]int, 0, len(header)-1)
	columns := make([]string, 0, len(header)-1)
	wanted := make(map[string]bool, len(p.Columns))
	for _, c := range p.Columns {
		wanted[c] = true
	}
	for j, name := range header[1:] {
		name = strings.TrimSpace(name)
		if len(wanted) > 0 && !wanted[name] {
			continue
		}
		keep = append(keep, j+1)
		columns = append(columns, name)
	}

	isCat := make(map[string]bool, len(p.Categorical))
	for _, c := range p.Categorical {
		isCat[c] = true
	}
	codes := make(map[string]map[string]float64)

	var (
		index []time.Time
		rows  [][]float64
		line  = 1
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			logger.Warn("Skipping malformed csv record", "line", line, "error", err)
			continue
		}
		ts, err := time.Parse(layout, strings.TrimSpace(rec[0]))
		if err != nil {
			logger.Warn("Skipping record with invalid timestamp", "line", line, "value", rec[0])
			continue
		}
		row := make([]float64, len(keep))
		valid := true
		for k, j := range keep {
			raw := strings.TrimSpace(rec[j])
			if isCat[columns[k]] {
				row[k] = code(codes, columns[k], raw)
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				logger.Warn("Skipping record with non-numeric value", "line", line, "column", columns[k], "value", raw)
				valid = false
				break
			}
			row[k] = v
		}
		if !valid {
			continue
		}
		index = append(index, ts)
		rows = append(rows, row)
	}

	var cats []string
	for _, c := range columns {
		if isCat[c] {
			cats = append(cats, c)
		}
	}
	return New(index, columns, rows, cats...)
}

func code(codes map[string]map[string]float64, column, label string) float64 {
	m, ok := codes[column]
	if !ok {
		m = make(map[string]float64)
		codes[column] = m
	}
	if v, ok := m[label]; ok {
		return v
	}
	v := float64(len(m))
	m[label] = v
	return v
}
