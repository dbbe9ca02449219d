// Package logger provides leveled logging for the Shelter agent.
// Info, Warn and Error are always emitted; Debug messages appear only
// when verbose mode is enabled via the --verbose flag. The agent runs
// unattended, so every line carries a timestamp.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	clock             = time.Now
)

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Debugf prints a message if verbose mode is enabled.
func Debugf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		emit("DEBUG", format, args...)
	}
}

// Infof prints an informational message.
func Infof(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	emit("INFO", format, args...)
}

// Warnf prints a warning message.
func Warnf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	emit("WARN", format, args...)
}

// Errorf prints an error message.
func Errorf(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	emit("ERROR", format, args...)
}

// emit writes one log line. Callers must hold at least a read lock.
func emit(level, format string, args ...any) {
	fmt.Fprintf(output, "%s [%s] %s\n",
		clock().UTC().Format("2006-01-02T15:04:05Z"), level, fmt.Sprintf(format, args...))
}
