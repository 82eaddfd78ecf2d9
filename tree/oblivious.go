package tree

import "math"

// ObliviousTree applies the same (feature, threshold) test to every node of a
// level, so a tree of depth d is 2^d leaf values addressed by a bit pattern.
type ObliviousTree struct {
	Features   []int
	Thresholds []float64
	Values     []float64
}

// PredictRow returns the leaf value selected by row.
func (t *ObliviousTree) PredictRow(row []float64) float64 {
	return t.Values[t.leafIndex(row)]
}

func (t *ObliviousTree) leafIndex(row []float64) int {
	idx := 0
	for level, f := range t.Features {
		if row[f] > t.Thresholds[level] {
			idx |= 1 << level
		}
	}
	return idx
}

// BuildOblivious grows a symmetric tree of at most depth levels. Each level
// picks the histogram cut that maximises the summed gain over all current
// leaves. Growth stops early when no cut improves on Gamma.
func BuildOblivious(h *Histogram, grad, hess []float64, indices []int, depth int, lambda, gamma float64) *ObliviousTree {
	t := &ObliviousTree{}
	leafOf := make(map[int]int, len(indices)) // sample -> leaf id

	for level := 0; level < depth; level++ {
		nLeaves := 1 << level
		bestGain := gamma
		bestF, bestK := -1, -1

		for f := range h.Cuts {
			nb := h.NumBins(f)
			if nb < 2 {
				continue
			}
			// per leaf, per bin sums
			gs := make([]float64, nLeaves*nb)
			hs := make([]float64, nLeaves*nb)
			for _, i := range indices {
				cell := leafOf[i]*nb + h.Binned[i][f]
				gs[cell] += grad[i]
				hs[cell] += hess[i]
			}
			totG := make([]float64, nLeaves)
			totH := make([]float64, nLeaves)
			for l := 0; l < nLeaves; l++ {
				for k := 0; k < nb; k++ {
					totG[l] += gs[l*nb+k]
					totH[l] += hs[l*nb+k]
				}
			}

			gl := make([]float64, nLeaves)
			hl := make([]float64, nLeaves)
			for k := 0; k < nb-1; k++ {
				gain := 0.0
				for l := 0; l < nLeaves; l++ {
					gl[l] += gs[l*nb+k]
					hl[l] += hs[l*nb+k]
					gain += SplitGain(gl[l], hl[l], totG[l]-gl[l], totH[l]-hl[l], lambda)
				}
				if gain > bestGain+1e-12 {
					bestGain, bestF, bestK = gain, f, k
				}
			}
		}

		if bestF < 0 {
			break
		}
		t.Features = append(t.Features, bestF)
		t.Thresholds = append(t.Thresholds, h.Cuts[bestF][bestK])
		for _, i := range indices {
			if h.Binned[i][bestF] > bestK {
				leafOf[i] |= 1 << level
			}
		}
	}

	n := 1 << len(t.Features)
	g := make([]float64, n)
	hh := make([]float64, n)
	for _, i := range indices {
		g[leafOf[i]] += grad[i]
		hh[leafOf[i]] += hess[i]
	}
	t.Values = make([]float64, n)
	for l := range t.Values {
		v := LeafValue(g[l], hh[l], lambda)
		if math.IsNaN(v) {
			v = 0
		}
		t.Values[l] = v
	}
	return t
}
