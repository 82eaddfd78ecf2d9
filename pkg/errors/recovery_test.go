package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestRecover(t *testing.T) {
	sentinel := fmt.Errorf("sentinel")
	tests := []struct {
		name      string
		fn        func() error
		wantNil   bool
		wantPanic interface{}
		wantMsg   string
	}{
		{
			name:    "no panic",
			fn:      func() error { return nil },
			wantNil: true,
		},
		{
			name:      "string panic",
			fn:        func() error { panic("boom") },
			wantPanic: "boom",
			wantMsg:   "panic in op: boom",
		},
		{
			name:      "integer panic",
			fn:        func() error { panic(42) },
			wantPanic: 42,
			wantMsg:   "panic in op: 42",
		},
		{
			name:      "error panic",
			fn:        func() error { panic(sentinel) },
			wantPanic: sentinel,
			wantMsg:   "panic in op: sentinel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := func() (err error) {
				defer Recover(&err, "op")
				return tt.fn()
			}()
			if tt.wantNil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var pe *PanicError
			if !As(err, &pe) {
				t.Fatalf("expected *PanicError, got %T", err)
			}
			if pe.PanicValue != tt.wantPanic {
				t.Errorf("PanicValue = %v, want %v", pe.PanicValue, tt.wantPanic)
			}
			if pe.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", pe.Error(), tt.wantMsg)
			}
			if pe.StackTrace == "" {
				t.Error("stack trace should be captured")
			}
		})
	}
}

func TestRecoverKeepsEarlierError(t *testing.T) {
	orig := fmt.Errorf("original")
	err := func() (err error) {
		defer Recover(&err, "op")
		err = orig
		panic("late")
	}()
	if !Is(err, orig) {
		t.Fatalf("original error lost: %v", err)
	}
	if !strings.Contains(err.Error(), "panic in op: late") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestPanicErrorUnwrap(t *testing.T) {
	if NewPanicError("op", "text").Unwrap() != nil {
		t.Error("non-error panic value should not unwrap")
	}
	if !Is(NewPanicError("op", ErrSingularMatrix), ErrSingularMatrix) {
		t.Error("error panic value should unwrap")
	}
	if s := NewPanicError("op", "x").String(); !strings.Contains(s, "Stack trace:") {
		t.Errorf("String() should include the stack: %q", s)
	}
}

func TestSafeExecute(t *testing.T) {
	if err := SafeExecute("ok", func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plain := fmt.Errorf("plain")
	if err := SafeExecute("fail", func() error { return plain }); err != plain {
		t.Fatalf("returned error should pass through, got %v", err)
	}
	err := SafeExecute("cycle", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	var pe *PanicError
	if !As(err, &pe) || pe.Operation != "cycle" {
		t.Fatalf("expected PanicError for cycle, got %v", err)
	}
}

func TestRecoverTrainingIsRecoverable(t *testing.T) {
	err := func() (err error) {
		defer RecoverTraining(&err, "north", "xgboost", "fit")
		panic("index out of range")
	}()
	var te *TrainingError
	if !As(err, &te) {
		t.Fatalf("expected *TrainingError, got %T", err)
	}
	if te.Zone != "north" || te.Algorithm != "xgboost" || te.Phase != "fit" {
		t.Errorf("unexpected context %+v", te)
	}
	if SeverityOf(err) != Recoverable {
		t.Errorf("panic during training should be recoverable, got %v", SeverityOf(err))
	}
	var pe *PanicError
	if !As(err, &pe) || pe.Operation != "xgboost.fit" {
		t.Errorf("panic should stay in the chain: %v", err)
	}
}
