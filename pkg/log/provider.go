package log

import (
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	athenaerrors "github.com/YuminosukeSato/athena/pkg/errors"
)

// Backend selects the logging implementation.
type Backend string

const (
	BackendZerolog Backend = "zerolog"
	BackendConsole Backend = "console"
	BackendSlog    Backend = "slog"
)

var (
	mu            sync.RWMutex
	defaultLogger Logger = NewZerologLogger(os.Stderr, LevelInfo)
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the process-wide logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLogger replaces the process-wide logger. Warnings raised through
// errors.Warn are routed to it as well.
func SetLogger(l Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()

	athenaerrors.SetWarningHandler(func(w error) {
		l.Warn(w.Error(), ErrorTypeKey, errorTypeName(w))
	})
}

// Setup builds a logger for the given backend and installs it with SetLogger.
func Setup(backend Backend, level Level, w io.Writer) (Logger, error) {
	var l Logger
	switch backend {
	case BackendZerolog, "":
		l = NewZerologLogger(w, level)
	case BackendConsole:
		l = NewConsoleLogger(w, level)
	case BackendSlog:
		l = NewSlogLogger(w, level)
	default:
		return nil, errors.Newf("unknown log backend: %s", backend)
	}
	SetLogger(l)
	return l, nil
}

func errorTypeName(err error) string {
	switch err.(type) {
	case *athenaerrors.ConvergenceWarning:
		return "ConvergenceWarning"
	case *athenaerrors.UndefinedMetricWarning:
		return "UndefinedMetricWarning"
	default:
		return "Warning"
	}
}
