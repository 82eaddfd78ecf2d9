package report

import (
	"math"
	"sort"
	"sync"

	"github.com/YuminosukeSato/athena/algorithm"
	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/errors"
)

// Zone is the accumulated state of one zone.
type Zone struct {
	Name       string
	Results    map[algorithm.Algorithm]*TrainingResult
	Order      []algorithm.Algorithm
	Final      *Resolution
	Alerts     map[algorithm.Algorithm][]notify.Alert
	BiasAlert  bool
	Benchmark  float64
	Threshold  float64
	Err        error
	bestR2     float64
	bestAlgo   algorithm.Algorithm
	bestPred   float64
	hasBest    bool
	alertIndex map[algorithm.Algorithm]map[string]bool
}

// Best returns the best-so-far R², its prediction and algorithm.
func (z *Zone) Best() (algorithm.Algorithm, float64, float64, bool) {
	return z.bestAlgo, z.bestR2, z.bestPred, z.hasBest
}

// Aggregator is the append-only store of run results.
type Aggregator struct {
	mu    sync.RWMutex
	RunID string
	zones map[string]*Zone
	order []string
}

// NewAggregator returns an empty aggregator for runID.
func NewAggregator(runID string) *Aggregator {
	return &Aggregator{RunID: runID, zones: map[string]*Zone{}}
}

func (a *Aggregator) zone(name string) *Zone {
	z, ok := a.zones[name]
	if !ok {
		z = &Zone{
			Name:       name,
			Results:    map[algorithm.Algorithm]*TrainingResult{},
			Alerts:     map[algorithm.Algorithm][]notify.Alert{},
			alertIndex: map[algorithm.Algorithm]map[string]bool{},
			bestR2:     math.Inf(-1),
			Benchmark:  math.NaN(),
			Threshold:  math.NaN(),
		}
		a.zones[name] = z
		a.order = append(a.order, name)
	}
	return z
}

// Record stores r. A second result for the same (zone, algorithm) is
// rejected.
func (a *Aggregator) Record(r TrainingResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	z := a.zone(r.Zone)
	if _, dup := z.Results[r.Algorithm]; dup {
		return errors.NewValidationError("result", "already recorded for "+r.Zone+"/"+r.Algorithm.String(), r.Algorithm)
	}
	z.Order = append(z.Order, r.Algorithm)
	a.store(z, r)
	return nil
}

// Supersede stores r in place of an earlier unusable result for the same
// (zone, algorithm), as when a failed candidate is refit by the hard
// fallback. The earlier alerts and cross-validation data are kept. A usable
// earlier result is never replaced.
func (a *Aggregator) Supersede(r TrainingResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	z := a.zone(r.Zone)
	prev, ok := z.Results[r.Algorithm]
	if !ok {
		z.Order = append(z.Order, r.Algorithm)
		a.store(z, r)
		return nil
	}
	if prev.Usable() {
		return errors.NewValidationError("result", "usable result already recorded for "+r.Zone+"/"+r.Algorithm.String(), r.Algorithm)
	}
	r.Alerts = append(append([]notify.Alert(nil), prev.Alerts...), r.Alerts...)
	if !r.CV.HasData() && prev.CV.HasData() {
		r.CV = prev.CV
	}
	a.store(z, r)
	return nil
}

func (a *Aggregator) store(z *Zone, r TrainingResult) {
	cp := r
	z.Results[r.Algorithm] = &cp
	for _, al := range r.Alerts {
		a.addAlert(z, r.Algorithm, al)
	}
	if r.Usable() && r.R2 > z.bestR2 {
		z.bestR2, z.bestAlgo, z.bestPred, z.hasBest = r.R2, r.Algorithm, r.Prediction, true
	}
}

// Result returns the recorded result for (zone, algorithm).
func (a *Aggregator) Result(zone string, algo algorithm.Algorithm) (TrainingResult, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	z, ok := a.zones[zone]
	if !ok {
		return TrainingResult{}, false
	}
	r, ok := z.Results[algo]
	if !ok {
		return TrainingResult{}, false
	}
	return *r, true
}

// AddAlert attaches an alert to (zone, algorithm); identical messages of the
// same level are kept once.
func (a *Aggregator) AddAlert(zone string, algo algorithm.Algorithm, al notify.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addAlert(a.zone(zone), algo, al)
}

func (a *Aggregator) addAlert(z *Zone, algo algorithm.Algorithm, al notify.Alert) {
	idx := z.alertIndex[algo]
	if idx == nil {
		idx = map[string]bool{}
		z.alertIndex[algo] = idx
	}
	key := string(al.Level) + "|" + al.Message
	if idx[key] {
		return
	}
	idx[key] = true
	z.Alerts[algo] = append(z.Alerts[algo], al)
}

// MarkBias flags zone as having raised a bias alert.
func (a *Aggregator) MarkBias(zone string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.zone(zone).BiasAlert = true
}

// SetThreshold records the effective R² threshold and historical benchmark.
func (a *Aggregator) SetThreshold(zone string, threshold, benchmark float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	z := a.zone(zone)
	z.Threshold, z.Benchmark = threshold, benchmark
}

// Resolve stores the final outcome of zone.
func (a *Aggregator) Resolve(zone string, r Resolution) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := r
	a.zone(zone).Final = &cp
}

// Fail records a zone-fatal error.
func (a *Aggregator) Fail(zone string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.zone(zone).Err = err
}

// Zones returns the zones in processing order.
func (a *Aggregator) Zones() []*Zone {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Zone, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.zones[name])
	}
	return out
}

// Zone returns the state of one zone.
func (a *Aggregator) Zone(name string) (*Zone, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	z, ok := a.zones[name]
	return z, ok
}

// BiasRow is one line of the bias-monitoring report.
type BiasRow struct {
	Zone       string  `json:"zone" yaml:"zone"`
	Algorithm  string  `json:"algorithm" yaml:"algorithm"`
	R2         float64 `json:"r2" yaml:"r2"`
	Prediction float64 `json:"prediction" yaml:"prediction"`
}

// BiasReport lists every trained candidate of the zones that raised a bias
// alert.
func (a *Aggregator) BiasReport() ([]BiasRow, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var rows []BiasRow
	flagged := false
	for _, name := range a.order {
		z := a.zones[name]
		if !z.BiasAlert {
			continue
		}
		flagged = true
		algos := append([]algorithm.Algorithm(nil), z.Order...)
		sort.SliceStable(algos, func(i, j int) bool { return algos[i] < algos[j] })
		for _, algo := range algos {
			r := z.Results[algo]
			if !r.Fitted {
				continue
			}
			rows = append(rows, BiasRow{Zone: name, Algorithm: algo.String(), R2: r.R2, Prediction: r.Prediction})
		}
	}
	return rows, flagged
}
