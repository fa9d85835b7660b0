// Package logger provides levelled logging for the sercha-rag CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to help users follow the ingestion and retrieval
// pipelines. Warnings are always printed.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.RWMutex
	verbose bool
	jsonOut bool
	output  io.Writer = os.Stderr
	base              = newLogger(os.Stderr, false, false)
)

func newLogger(w io.Writer, v, asJSON bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Level:           log.WarnLevel,
		ReportTimestamp: asJSON,
	})
	if v {
		l.SetLevel(log.DebugLevel)
	}
	if asJSON {
		l.SetFormatter(log.JSONFormatter)
	}
	return l
}

func rebuild() {
	base = newLogger(output, verbose, jsonOut)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetJSON switches between the text and JSON formatters.
func SetJSON(v bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOut = v
	rebuild()
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Logger returns the underlying structured logger for key-value logging.
func Logger() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	Logger().Debugf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	Logger().Debugf("=== %s ===", name)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	Logger().Infof(format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	Logger().Warnf(format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	Logger().Errorf(format, args...)
}
