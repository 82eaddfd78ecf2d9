package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"

	athenaerrors "github.com/YuminosukeSato/athena/pkg/errors"
)

// TestLoggerInterface tests the TestLogger implementation
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorEmptyData)
	testLogger.Error("error message", fmt.Errorf("test error"), ZoneKey, "north")

	if buffer.String() == "" {
		t.Fatal("Expected log output, got empty string")
	}

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		if !testLogger.ContainsMessage(msg) {
			t.Errorf("%q not found in output", msg)
		}
	}

	if !testLogger.ContainsField("key1", "value1") {
		t.Error("Expected field key1=value1 not found")
	}
	if !testLogger.ContainsField("number", 42.0) {
		t.Error("Expected field number=42 not found")
	}
	if !testLogger.ContainsField(ErrAttrKey, "test error") {
		t.Error("Expected leading error to be captured")
	}
	if !testLogger.ContainsField(ZoneKey, "north") {
		t.Error("Expected zone field after error")
	}
}

// TestLoggerWith tests context-aware logging
func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	contextLogger := testLogger.With(ZoneKey, "south", AlgorithmKey, "ridge")
	contextLogger.Info("cycle completed", CycleKey, 2)

	if !testLogger.ContainsField(ZoneKey, "south") {
		t.Error("zone context not found")
	}
	if !testLogger.ContainsField(AlgorithmKey, "ridge") {
		t.Error("algorithm context not found")
	}
	if !testLogger.ContainsField(CycleKey, 2.0) {
		t.Error("cycle field not found")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)

	testLogger.Debug("hidden debug")
	testLogger.Info("hidden info")
	testLogger.Warn("visible warn")

	if testLogger.ContainsMessage("hidden") {
		t.Error("records below the minimum level should be dropped")
	}
	if testLogger.CountLevel("WARN") != 1 {
		t.Errorf("expected 1 WARN record, got %d", testLogger.CountLevel("WARN"))
	}
	if testLogger.Enabled(context.Background(), LevelInfo) {
		t.Error("info should not be enabled at warn level")
	}
}

func TestTestLoggerConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			testLogger.With("worker", i).Info("tree built")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	if err != nil {
		t.Fatalf("GetLogEntries() error = %v", err)
	}
	if len(entries) != 20 {
		t.Errorf("expected 20 entries, got %d", len(entries))
	}
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("dropped")
	logger.With(ZoneKey, "east").Error("fit failed",
		athenaerrors.NewTrainingError("east", "svr", "fit", errors.New("diverged")),
		AlgorithmKey, "svr",
	)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %s", len(lines), buf.String())
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
	if entry[ZoneKey] != "east" {
		t.Errorf("zone = %v, want east", entry[ZoneKey])
	}
	details, ok := entry["details"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected structured error details, got %v", entry["details"])
	}
	if details["phase"] != "fit" {
		t.Errorf("details.phase = %v, want fit", details["phase"])
	}
	if !strings.Contains(fmt.Sprint(entry["error"]), "diverged") {
		t.Errorf("error = %v", entry["error"])
	}
}

func TestSlogLoggerAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(&buf, LevelInfo)

	logger.Error("connectivity lost", athenaerrors.NewConnectivityError("benchmark", errors.New("refused")))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["severity"] != "ERROR" {
		t.Errorf("severity = %v, want ERROR", entry["severity"])
	}
	if _, ok := entry[StacktraceAttrKey]; !ok {
		t.Error("expected stacktrace attribute for errors created with a stack")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetLoggerRoutesWarnings(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)

	testLogger, _ := NewTestLogger(LevelDebug)
	SetLogger(testLogger)

	athenaerrors.Warn(athenaerrors.NewConvergenceWarning("LinearSVR", 10, ""))

	if !testLogger.ContainsField(ErrorTypeKey, "ConvergenceWarning") {
		t.Error("expected warning to be routed to the installed logger")
	}
}
