// Package notify records pipeline alerts locally and forwards the ones meant
// for operators to external sinks.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/athena/pkg/log"
)

// Level is the severity of an alert.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Alert is one notification. Zone and Algorithm are empty for run-wide alerts.
type Alert struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	Level     Level     `json:"level"`
	Zone      string    `json:"zone,omitempty"`
	Algorithm string    `json:"algorithm,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Sink delivers alerts to an external destination.
type Sink interface {
	Notify(ctx context.Context, a Alert) error
}

// Notifier stamps alerts with the run id, logs them, and forwards external
// ones to every sink. Sink failures are logged and never returned.
type Notifier struct {
	runID  string
	sinks  []Sink
	logger log.Logger
	now    func() time.Time
	muted  bool
}

// New creates a Notifier for one run.
func New(runID string, sinks ...Sink) *Notifier {
	return &Notifier{
		runID:  runID,
		sinks:  sinks,
		logger: log.GetLoggerWithName("notify"),
		now:    time.Now,
	}
}

// Mute stops external delivery; alerts are still logged.
func (n *Notifier) Mute() {
	n.muted = true
}

// WithClock replaces the timestamp source.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Record logs a local alert and returns it with id and timestamp filled in.
func (n *Notifier) Record(ctx context.Context, level Level, zone, algorithm, msg string) Alert {
	a := Alert{
		ID:        uuid.NewString(),
		RunID:     n.runID,
		Level:     level,
		Zone:      zone,
		Algorithm: algorithm,
		Message:   msg,
		Time:      n.now(),
	}
	fields := []any{log.RunIDKey, a.RunID}
	if zone != "" {
		fields = append(fields, log.ZoneKey, zone)
	}
	if algorithm != "" {
		fields = append(fields, log.AlgorithmKey, algorithm)
	}
	switch level {
	case Error:
		n.logger.Error(msg, fields...)
	case Warning:
		n.logger.Warn(msg, fields...)
	default:
		n.logger.Info(msg, fields...)
	}
	return a
}

// Deliver records the alert and forwards it to every sink.
func (n *Notifier) Deliver(ctx context.Context, level Level, zone, algorithm, msg string) Alert {
	a := n.Record(ctx, level, zone, algorithm, msg)
	if n.muted {
		return a
	}
	for _, s := range n.sinks {
		if err := s.Notify(ctx, a); err != nil {
			n.logger.Warn("Alert delivery failed", err, log.RunIDKey, a.RunID)
		}
	}
	return a
}

// MemorySink keeps delivered alerts in memory.
type MemorySink struct {
	mu     sync.Mutex
	alerts []Alert
}

// Notify stores a.
func (m *MemorySink) Notify(ctx context.Context, a Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return nil
}

// Alerts returns a copy of the stored alerts.
func (m *MemorySink) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Alert(nil), m.alerts...)
}
