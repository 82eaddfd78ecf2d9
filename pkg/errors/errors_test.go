package errors

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "athena: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Predict",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "athena: Predict: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 3, 1)

	want := "athena: Predict: expected 10 features, got 3"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearRegression", "Predict")

	want := "athena: LinearRegression.Predict called before Fit"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("LinearSVR", 1000, "weights still moving")

	want := "LinearSVR did not converge in 1000 iterations: weights still moving"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}
}

func TestWarnUsesHandler(t *testing.T) {
	var got []error
	prev := SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(prev)

	Warn(NewConvergenceWarning("svr", 5, ""))
	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}

	SetWarningHandler(nil)
	Warn(NewConvergenceWarning("svr", 5, ""))
	if len(got) != 1 {
		t.Fatal("nil handler should drop warnings")
	}
}

func TestValidationErrorNamesParameter(t *testing.T) {
	err := NewValidationError("thresholds.r2", "must be in [0, 1]", 1.5)
	want := "athena: invalid thresholds.r2: must be in [0, 1] (got 1.5)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	var ve *ValidationError
	if !As(Wrap(err, "load config"), &ve) || ve.ParamName != "thresholds.r2" {
		t.Errorf("expected wrapped ValidationError, got %v", err)
	}
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Predict", 10, 5)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Predict: expected 10, got 5") {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
}

func TestPipelineErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "connectivity",
			err:  NewConnectivityError("benchmark", fmt.Errorf("dial tcp: refused")),
			want: "athena: connectivity failure to benchmark: dial tcp: refused",
		},
		{
			name: "data validation with columns",
			err:  NewDataValidationError("north", "missing columns", "temp", "load"),
			want: "athena: data validation failed for zone 'north': missing columns [temp load]",
		},
		{
			name: "training",
			err:  NewTrainingError("north", "ridge", "fit", ErrSingularMatrix),
			want: "athena: training failed for north/ridge during fit: singular matrix",
		},
		{
			name: "resource",
			err:  NewResourceExhaustionError("north", "xgboost", 91.5, 80, 15*time.Second, 2),
			want: "athena: resources exhausted for north/xgboost (cpu=91.5%, ram=80.0%, elevated for 15s, 2 cycles completed)",
		},
		{
			name: "unknown algorithm",
			err:  NewUnknownAlgorithmError("prophet"),
			want: "athena: unknown algorithm 'prophet'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"nil", nil, Recoverable},
		{"connectivity", NewConnectivityError("store", New("timeout")), RunFatal},
		{"wrapped connectivity", Wrap(NewConnectivityError("store", New("timeout")), "load"), RunFatal},
		{"data validation", NewDataValidationError("z", "empty"), ZoneFatal},
		{"selection exhausted", NewSelectionExhaustionError("z", "knn", New("fit failed")), ZoneFatal},
		{"training", NewTrainingError("z", "knn", "cv", New("boom")), Recoverable},
		{"resource", NewResourceExhaustionError("z", "knn", 99, 99, time.Second, 0), Recoverable},
		{"bias", NewBiasAnalysisError("gender", "age", New("constant")), Recoverable},
		{"unclassified", New("something else"), RunFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeverityOf(tt.err); got != tt.want {
				t.Errorf("SeverityOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrainingErrorUnwrap(t *testing.T) {
	err := NewTrainingError("z", "ridge", "fit", ErrSingularMatrix)
	if !Is(err, ErrSingularMatrix) {
		t.Error("expected TrainingError to unwrap to ErrSingularMatrix")
	}
}

func TestCheckMatrix(t *testing.T) {
	m := fakeMatrix{{1, 2}, {3, nan()}}
	if err := CheckMatrix("Fit", m, 2, 2); err == nil {
		t.Fatal("expected NaN to be reported")
	}
	ok := fakeMatrix{{1, 2}, {3, 4}}
	if err := CheckMatrix("Fit", ok, 2, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

type fakeMatrix [][]float64

func (m fakeMatrix) At(i, j int) float64 { return m[i][j] }

func nan() float64 {
	zero := 0.0
	return zero / zero
}
