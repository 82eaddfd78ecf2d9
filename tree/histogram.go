package tree

import (
	"sort"
)

// Histogram holds pre-binned features for histogram-based split search.
// Bin b of feature f contains values v with Cuts[f][b-1] < v <= Cuts[f][b].
type Histogram struct {
	Cuts   [][]float64
	Binned [][]int // Binned[i][f] is the bin of rows[i][f]
}

// NewHistogram bins every feature of rows into at most maxBin bins.
func NewHistogram(rows [][]float64, maxBin int) *Histogram {
	if len(rows) == 0 {
		return &Histogram{}
	}
	if maxBin < 2 {
		maxBin = 2
	}
	p := len(rows[0])
	h := &Histogram{Cuts: make([][]float64, p), Binned: make([][]int, len(rows))}
	col := make([]float64, len(rows))
	for f := 0; f < p; f++ {
		for i, row := range rows {
			col[i] = row[f]
		}
		h.Cuts[f] = binCuts(col, maxBin)
	}
	for i, row := range rows {
		h.Binned[i] = h.BinRow(row)
	}
	return h
}

// BinRow maps a raw row to bin indices.
func (h *Histogram) BinRow(row []float64) []int {
	out := make([]int, len(row))
	for f, v := range row {
		out[f] = sort.SearchFloat64s(h.Cuts[f], v)
	}
	return out
}

// NumBins returns the number of bins of feature f.
func (h *Histogram) NumBins(f int) int {
	return len(h.Cuts[f]) + 1
}

// binCuts places cut points between unique values, spreading maxBin-1 cuts
// evenly over them when there are more unique values than bins.
func binCuts(values []float64, maxBin int) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	unique := sorted[:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	// unique aliases sorted; copy before returning anything derived from it
	unique = append([]float64(nil), unique...)

	if len(unique) <= maxBin {
		cuts := make([]float64, 0, len(unique)-1)
		for i := 1; i < len(unique); i++ {
			cuts = append(cuts, (unique[i-1]+unique[i])/2)
		}
		return cuts
	}

	cuts := make([]float64, 0, maxBin-1)
	for k := 1; k < maxBin; k++ {
		i := k * len(unique) / maxBin
		cuts = append(cuts, (unique[i-1]+unique[i])/2)
	}
	return cuts
}
