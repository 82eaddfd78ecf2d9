// Package resource watches CPU and RAM pressure while a candidate algorithm
// is being validated and decides when the attempt has to be aborted.
//
// The Monitor is a finite state machine driven by an injected Sampler and
// advanced explicitly by Tick, so it can be tested without real sleeps:
//
//	NORMAL -> ELEVATED -> CRITICAL -> ABORTED
//
// Every over-threshold tick adds the sampling interval to the elevated
// counter. Reaching HighDuration moves the monitor to ELEVATED; further
// over-threshold ticks accumulate the critical counter until
// CriticalDuration is reached and the attempt is ABORTED. A single tick
// below both maxima resets both counters.
package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YuminosukeSato/athena/notify"
	"github.com/YuminosukeSato/athena/pkg/log"
)

// State is the monitor state.
type State int

const (
	Normal State = iota
	Elevated
	Critical
	Aborted
)

func (s State) String() string {
	switch s {
	case Normal:
		return "NORMAL"
	case Elevated:
		return "ELEVATED"
	case Critical:
		return "CRITICAL"
	case Aborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recommended maxima. Configured values above them trigger a warning.
const (
	RecommendedMaxCPU = 80.0
	RecommendedMaxRAM = 75.0
)

// Monitor tracks sustained resource pressure for one algorithm attempt.
type Monitor struct {
	// Hyperparameters
	maxCPU           float64
	maxRAM           float64
	interval         time.Duration
	highDuration     time.Duration
	criticalDuration time.Duration

	sampler  Sampler
	notifier *notify.Notifier
	logger   log.Logger

	// Attempt scope
	zone      string
	algorithm string

	// State
	state    State
	elevated time.Duration
	critical time.Duration
	last     Sample

	mu sync.Mutex
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMaxCPU sets the CPU percentage above which a tick counts as elevated.
func WithMaxCPU(p float64) Option {
	return func(m *Monitor) { m.maxCPU = p }
}

// WithMaxRAM sets the RAM percentage above which a tick counts as elevated.
func WithMaxRAM(p float64) Option {
	return func(m *Monitor) { m.maxRAM = p }
}

// WithInterval sets the time credited to each tick.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithHighDuration sets the elevated time needed to enter ELEVATED.
func WithHighDuration(d time.Duration) Option {
	return func(m *Monitor) { m.highDuration = d }
}

// WithCriticalDuration sets the additional time after ELEVATED that aborts
// the attempt.
func WithCriticalDuration(d time.Duration) Option {
	return func(m *Monitor) { m.criticalDuration = d }
}

// WithNotifier delivers the ELEVATED warning and the ABORTED error as alerts.
func WithNotifier(n *notify.Notifier) Option {
	return func(m *Monitor) { m.notifier = n }
}

// NewMonitor returns a monitor with the pipeline defaults: 80% CPU, 75% RAM,
// a 5s interval, 10s to ELEVATED and 15s more to ABORTED.
func NewMonitor(sampler Sampler, opts ...Option) *Monitor {
	m := &Monitor{
		maxCPU:           RecommendedMaxCPU,
		maxRAM:           RecommendedMaxRAM,
		interval:         5 * time.Second,
		highDuration:     10 * time.Second,
		criticalDuration: 15 * time.Second,
		sampler:          sampler,
		logger:           log.GetLoggerWithName("resource"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxCPU > RecommendedMaxCPU || m.maxRAM > RecommendedMaxRAM {
		m.logger.Warn("Configured resource maxima exceed recommended values",
			"max_cpu", m.maxCPU, "max_ram", m.maxRAM,
			"recommended_cpu", RecommendedMaxCPU, "recommended_ram", RecommendedMaxRAM,
		)
	}
	return m
}

// Interval returns the sampling interval; callers sleep this long between
// ticks.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Scope resets the monitor for a new attempt of algorithm on zone.
func (m *Monitor) Scope(zone, algorithm string) {
	m.mu.Lock()
	m.zone, m.algorithm = zone, algorithm
	m.mu.Unlock()
	m.Reset()
}

// Reset returns to NORMAL with both counters at zero.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Normal
	m.elevated = 0
	m.critical = 0
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Last returns the most recent sample.
func (m *Monitor) Last() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// ElevatedFor returns the total over-threshold time of the current streak.
func (m *Monitor) ElevatedFor() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elevated + m.critical
}

// Tick samples once and advances the state machine. ABORTED is terminal
// until Reset or Scope. A failed sample leaves the state unchanged.
func (m *Monitor) Tick(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Aborted {
		return m.state
	}

	s, err := m.sampler.Sample(ctx)
	if err != nil {
		m.logger.Warn("Resource sampling failed", err, log.ZoneKey, m.zone, log.AlgorithmKey, m.algorithm)
		return m.state
	}
	m.last = s

	if s.CPU <= m.maxCPU && s.RAM <= m.maxRAM {
		if m.state != Normal {
			m.logger.Info("Resource usage back to normal", m.fields()...)
		}
		m.state = Normal
		m.elevated = 0
		m.critical = 0
		return m.state
	}

	if m.state == Normal {
		m.elevated += m.interval
		if m.elevated >= m.highDuration {
			m.state = Elevated
			m.logger.Warn("High resource usage", m.fields()...)
			m.alert(ctx, notify.Warning, fmt.Sprintf("High resource usage: CPU %.1f%%, RAM %.1f%% for %s", s.CPU, s.RAM, m.elevated))
		}
		return m.state
	}

	m.critical += m.interval
	m.state = Critical
	if m.critical >= m.criticalDuration {
		m.state = Aborted
		m.logger.Error("Critical resource usage, aborting algorithm", m.fields()...)
		m.alert(ctx, notify.Error, fmt.Sprintf("Critical resource usage: CPU %.1f%%, RAM %.1f%%; aborting %s", s.CPU, s.RAM, m.algorithm))
	}
	return m.state
}

func (m *Monitor) fields() []any {
	return []any{
		log.ZoneKey, m.zone,
		log.AlgorithmKey, m.algorithm,
		log.ResourceStateKey, m.state.String(),
		log.CPUPercentKey, m.last.CPU,
		log.RAMPercentKey, m.last.RAM,
		"elevated_for", (m.elevated + m.critical).String(),
	}
}

func (m *Monitor) alert(ctx context.Context, level notify.Level, msg string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Deliver(ctx, level, m.zone, m.algorithm, msg)
}
