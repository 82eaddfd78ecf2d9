package errors

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Pipeline error taxonomy. Each type knows whether it ends the whole run,
// only the current zone, or nothing at all.

// Severity classifies how far a failure propagates.
type Severity int

const (
	// Recoverable failures are logged and notified; the run continues unchanged.
	Recoverable Severity = iota
	// ZoneFatal failures skip the affected zone; other zones continue.
	ZoneFatal
	// RunFatal failures terminate the run with a non-zero exit status.
	RunFatal
)

func (s Severity) String() string {
	switch s {
	case Recoverable:
		return "recoverable"
	case ZoneFatal:
		return "zone_fatal"
	case RunFatal:
		return "run_fatal"
	default:
		return "unknown"
	}
}

// ConnectivityError is returned by collaborators that talk to an external store.
// It is retried with a fixed backoff and becomes fatal once attempts run out.
type ConnectivityError struct {
	Target   string
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("athena: connectivity failure to %s after %d attempts: %v", e.Target, e.Attempts, e.Err)
	}
	return fmt.Sprintf("athena: connectivity failure to %s: %v", e.Target, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *ConnectivityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("target", e.Target).
		Int("attempts", e.Attempts).
		Str("type", "ConnectivityError")
}

// NewConnectivityError wraps err as a connectivity failure to target.
func NewConnectivityError(target string, err error) error {
	return errors.WithStack(&ConnectivityError{Target: target, Err: err})
}

// DataValidationError reports a dataset that cannot be used for a zone.
type DataValidationError struct {
	Zone    string
	Reason  string
	Columns []string
}

func (e *DataValidationError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("athena: data validation failed for zone '%s': %s %v", e.Zone, e.Reason, e.Columns)
	}
	return fmt.Sprintf("athena: data validation failed for zone '%s': %s", e.Zone, e.Reason)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *DataValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("zone", e.Zone).
		Str("reason", e.Reason).
		Strs("columns", e.Columns).
		Str("type", "DataValidationError")
}

// NewDataValidationError creates a DataValidationError with a stack trace.
func NewDataValidationError(zone, reason string, columns ...string) error {
	return errors.WithStack(&DataValidationError{Zone: zone, Reason: reason, Columns: columns})
}

// TrainingError wraps a single fit or predict failure.
type TrainingError struct {
	Zone      string
	Algorithm string
	Phase     string // "cv", "fit", "predict", "score"
	Err       error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("athena: training failed for %s/%s during %s: %v", e.Zone, e.Algorithm, e.Phase, e.Err)
}

func (e *TrainingError) Unwrap() error { return e.Err }

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("zone", e.Zone).
		Str("algorithm", e.Algorithm).
		Str("phase", e.Phase).
		Str("type", "TrainingError")
}

// NewTrainingError creates a TrainingError with a stack trace.
func NewTrainingError(zone, algorithm, phase string, err error) error {
	return errors.WithStack(&TrainingError{Zone: zone, Algorithm: algorithm, Phase: phase, Err: err})
}

// ResourceExhaustionError signals that the resource monitor aborted an algorithm attempt.
type ResourceExhaustionError struct {
	Zone            string
	Algorithm       string
	CPUPercent      float64
	RAMPercent      float64
	ElevatedFor     time.Duration
	CompletedCycles int
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("athena: resources exhausted for %s/%s (cpu=%.1f%%, ram=%.1f%%, elevated for %s, %d cycles completed)",
		e.Zone, e.Algorithm, e.CPUPercent, e.RAMPercent, e.ElevatedFor, e.CompletedCycles)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *ResourceExhaustionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("zone", e.Zone).
		Str("algorithm", e.Algorithm).
		Float64("cpu_percent", e.CPUPercent).
		Float64("ram_percent", e.RAMPercent).
		Dur("elevated_for", e.ElevatedFor).
		Int("completed_cycles", e.CompletedCycles).
		Str("type", "ResourceExhaustionError")
}

// NewResourceExhaustionError creates a ResourceExhaustionError with a stack trace.
func NewResourceExhaustionError(zone, algorithm string, cpu, ram float64, elevated time.Duration, cycles int) error {
	return errors.WithStack(&ResourceExhaustionError{
		Zone: zone, Algorithm: algorithm,
		CPUPercent: cpu, RAMPercent: ram,
		ElevatedFor: elevated, CompletedCycles: cycles,
	})
}

// BiasAnalysisError reports that an attribution computation could not be completed.
type BiasAnalysisError struct {
	Sensitive string
	Feature   string
	Err       error
}

func (e *BiasAnalysisError) Error() string {
	return fmt.Sprintf("athena: bias analysis failed for feature '%s' vs sensitive '%s': %v", e.Feature, e.Sensitive, e.Err)
}

func (e *BiasAnalysisError) Unwrap() error { return e.Err }

// NewBiasAnalysisError creates a BiasAnalysisError with a stack trace.
func NewBiasAnalysisError(sensitive, feature string, err error) error {
	return errors.WithStack(&BiasAnalysisError{Sensitive: sensitive, Feature: feature, Err: err})
}

// SelectionExhaustionError means no candidate, including the hard fallback, produced a model.
type SelectionExhaustionError struct {
	Zone     string
	Fallback string
	Err      error
}

func (e *SelectionExhaustionError) Error() string {
	return fmt.Sprintf("athena: no usable model for zone '%s' (fallback %s): %v", e.Zone, e.Fallback, e.Err)
}

func (e *SelectionExhaustionError) Unwrap() error { return e.Err }

// NewSelectionExhaustionError creates a SelectionExhaustionError with a stack trace.
func NewSelectionExhaustionError(zone, fallback string, err error) error {
	return errors.WithStack(&SelectionExhaustionError{Zone: zone, Fallback: fallback, Err: err})
}

// UnknownAlgorithmError is returned by the estimator registry for identifiers outside the catalog.
type UnknownAlgorithmError struct {
	Name string
}

func (e *UnknownAlgorithmError) Error() string {
	return fmt.Sprintf("athena: unknown algorithm '%s'", e.Name)
}

// NewUnknownAlgorithmError creates an UnknownAlgorithmError with a stack trace.
func NewUnknownAlgorithmError(name string) error {
	return errors.WithStack(&UnknownAlgorithmError{Name: name})
}

// SeverityOf classifies err according to the pipeline taxonomy.
// Unclassified errors are treated as fatal to the run.
func SeverityOf(err error) Severity {
	if err == nil {
		return Recoverable
	}
	var (
		conn  *ConnectivityError
		data  *DataValidationError
		train *TrainingError
		res   *ResourceExhaustionError
		bias  *BiasAnalysisError
		sel   *SelectionExhaustionError
	)
	switch {
	case errors.As(err, &conn):
		return RunFatal
	case errors.As(err, &data), errors.As(err, &sel):
		return ZoneFatal
	case errors.As(err, &train), errors.As(err, &res), errors.As(err, &bias):
		return Recoverable
	default:
		return RunFatal
	}
}

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var conn *ConnectivityError
	return errors.As(err, &conn)
}
