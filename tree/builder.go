package tree

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Params controls tree growth.
type Params struct {
	MaxDepth        int     // 0 means unlimited
	MaxLeaves       int     // > 0 switches to best-first (leaf-wise) growth
	MinSamplesSplit int     // minimum samples in a node to try a split
	MinSamplesLeaf  int     // minimum samples in each child
	MinChildWeight  float64 // minimum hessian sum in each child
	Lambda          float64 // L2 penalty on leaf values
	Gamma           float64 // minimum gain required to split
	MaxFeatures     int     // features sampled per node, 0 means all
}

// Builder grows a single tree from gradients and hessians.
type Builder struct {
	Params Params
	Rows   [][]float64
	Hist   *Histogram // optional; enables histogram split search
	Rand   *rand.Rand // required when MaxFeatures subsamples
}

// split describes the best split found for a node.
type split struct {
	feature   int
	threshold float64
	bin       int
	gain      float64
	ok        bool
}

// pending is a leaf waiting to be expanded during leaf-wise growth.
type pending struct {
	node    int
	indices []int
	depth   int
	best    split
}

// Build grows a tree over the given sample indices.
func (b *Builder) Build(grad, hess []float64, indices []int) *Tree {
	t := &Tree{}
	if b.Params.MaxLeaves > 0 {
		b.buildLeafWise(t, grad, hess, indices)
	} else {
		b.buildDepthWise(t, grad, hess, indices, 0)
	}
	return t
}

func (b *Builder) buildDepthWise(t *Tree, grad, hess []float64, indices []int, depth int) int {
	idx := b.addLeaf(t, grad, hess, indices)
	if !b.canSplit(len(indices), depth) {
		return idx
	}
	best := b.findBestSplit(grad, hess, indices)
	if !best.ok {
		return idx
	}

	left, right := b.partition(indices, best)
	t.Nodes[idx].Feature = best.feature
	t.Nodes[idx].Threshold = best.threshold
	t.Nodes[idx].Gain = best.gain

	l := b.buildDepthWise(t, grad, hess, left, depth+1)
	r := b.buildDepthWise(t, grad, hess, right, depth+1)
	t.Nodes[idx].Left = l
	t.Nodes[idx].Right = r
	return idx
}

func (b *Builder) buildLeafWise(t *Tree, grad, hess []float64, indices []int) {
	root := b.addLeaf(t, grad, hess, indices)
	queue := []pending{b.candidate(root, grad, hess, indices, 0)}
	leaves := 1

	for leaves < b.Params.MaxLeaves {
		bestAt := -1
		for i, p := range queue {
			if p.best.ok && (bestAt < 0 || p.best.gain > queue[bestAt].best.gain) {
				bestAt = i
			}
		}
		if bestAt < 0 {
			return
		}
		p := queue[bestAt]
		queue = append(queue[:bestAt], queue[bestAt+1:]...)

		left, right := b.partition(p.indices, p.best)
		t.Nodes[p.node].Feature = p.best.feature
		t.Nodes[p.node].Threshold = p.best.threshold
		t.Nodes[p.node].Gain = p.best.gain

		l := b.addLeaf(t, grad, hess, left)
		r := b.addLeaf(t, grad, hess, right)
		t.Nodes[p.node].Left = l
		t.Nodes[p.node].Right = r
		leaves++

		queue = append(queue,
			b.candidate(l, grad, hess, left, p.depth+1),
			b.candidate(r, grad, hess, right, p.depth+1),
		)
	}
}

func (b *Builder) candidate(node int, grad, hess []float64, indices []int, depth int) pending {
	p := pending{node: node, indices: indices, depth: depth}
	if b.canSplit(len(indices), depth) {
		p.best = b.findBestSplit(grad, hess, indices)
	}
	return p
}

func (b *Builder) canSplit(n, depth int) bool {
	if b.Params.MaxDepth > 0 && depth >= b.Params.MaxDepth {
		return false
	}
	minSplit := b.Params.MinSamplesSplit
	if minSplit < 2 {
		minSplit = 2
	}
	return n >= minSplit && n >= 2*b.minLeaf()
}

func (b *Builder) minLeaf() int {
	if b.Params.MinSamplesLeaf < 1 {
		return 1
	}
	return b.Params.MinSamplesLeaf
}

func (b *Builder) addLeaf(t *Tree, grad, hess []float64, indices []int) int {
	var g, h float64
	for _, i := range indices {
		g += grad[i]
		h += hess[i]
	}
	t.Nodes = append(t.Nodes, Node{
		Left:    -1,
		Right:   -1,
		Value:   LeafValue(g, h, b.Params.Lambda),
		Samples: len(indices),
	})
	return len(t.Nodes) - 1
}

// LeafValue is the optimal leaf weight -G/(H+λ).
func LeafValue(g, h, lambda float64) float64 {
	den := h + lambda
	if math.Abs(den) < 1e-12 {
		return 0
	}
	return -g / den
}

// SplitGain is the second-order gain of splitting a node into left and right.
func SplitGain(gl, hl, gr, hr, lambda float64) float64 {
	score := func(g, h float64) float64 {
		den := h + lambda
		if den <= 0 {
			return 0
		}
		return g * g / den
	}
	return 0.5 * (score(gl, hl) + score(gr, hr) - score(gl+gr, hl+hr))
}

func (b *Builder) features() []int {
	p := len(b.Rows[0])
	k := b.Params.MaxFeatures
	if k <= 0 || k >= p || b.Rand == nil {
		all := make([]int, p)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return b.Rand.Perm(p)[:k]
}

func (b *Builder) findBestSplit(grad, hess []float64, indices []int) split {
	var G, H float64
	for _, i := range indices {
		G += grad[i]
		H += hess[i]
	}

	best := split{gain: b.Params.Gamma}
	for _, f := range b.features() {
		var s split
		if b.Hist != nil {
			s = b.histogramSplit(f, grad, hess, indices, G, H)
		} else {
			s = b.exactSplit(f, grad, hess, indices, G, H)
		}
		if s.ok && s.gain > best.gain+1e-12 {
			best = s
		}
	}
	return best
}

func (b *Builder) admissible(nl, nr int, hl, hr float64) bool {
	ml := b.minLeaf()
	if nl < ml || nr < ml {
		return false
	}
	return hl >= b.Params.MinChildWeight && hr >= b.Params.MinChildWeight
}

func (b *Builder) exactSplit(f int, grad, hess []float64, indices []int, G, H float64) split {
	order := make([]int, len(indices))
	copy(order, indices)
	sort.Slice(order, func(i, j int) bool {
		return b.Rows[order[i]][f] < b.Rows[order[j]][f]
	})

	best := split{feature: f, gain: math.Inf(-1)}
	var gl, hl float64
	for k := 0; k < len(order)-1; k++ {
		i := order[k]
		gl += grad[i]
		hl += hess[i]

		v, next := b.Rows[i][f], b.Rows[order[k+1]][f]
		if v == next {
			continue
		}
		nl := k + 1
		nr := len(order) - nl
		gr, hr := G-gl, H-hl
		if !b.admissible(nl, nr, hl, hr) {
			continue
		}
		if gain := SplitGain(gl, hl, gr, hr, b.Params.Lambda); gain > best.gain {
			best.gain = gain
			best.threshold = (v + next) / 2
			best.ok = true
		}
	}
	return best
}

func (b *Builder) histogramSplit(f int, grad, hess []float64, indices []int, G, H float64) split {
	nb := b.Hist.NumBins(f)
	gs := make([]float64, nb)
	hs := make([]float64, nb)
	cs := make([]int, nb)
	for _, i := range indices {
		bin := b.Hist.Binned[i][f]
		gs[bin] += grad[i]
		hs[bin] += hess[i]
		cs[bin]++
	}

	best := split{feature: f, gain: math.Inf(-1)}
	var gl, hl float64
	nl := 0
	for k := 0; k < nb-1; k++ {
		gl += gs[k]
		hl += hs[k]
		nl += cs[k]
		if cs[k] == 0 {
			continue
		}
		nr := len(indices) - nl
		gr, hr := G-gl, H-hl
		if !b.admissible(nl, nr, hl, hr) {
			continue
		}
		if gain := SplitGain(gl, hl, gr, hr, b.Params.Lambda); gain > best.gain {
			best.gain = gain
			best.threshold = b.Hist.Cuts[f][k]
			best.bin = k
			best.ok = true
		}
	}
	return best
}

func (b *Builder) partition(indices []int, s split) ([]int, []int) {
	left := make([]int, 0, len(indices))
	right := make([]int, 0, len(indices))
	for _, i := range indices {
		var goLeft bool
		if b.Hist != nil {
			goLeft = b.Hist.Binned[i][s.feature] <= s.bin
		} else {
			goLeft = b.Rows[i][s.feature] <= s.threshold
		}
		if goLeft {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
