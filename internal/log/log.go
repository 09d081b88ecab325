// ABOUTME: Levelled logging wrapper around slog for the stream client
// ABOUTME: Global level via SetLevel/ParseLevel; stderr by default, redirectable with SetOutput

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level constants matching slog levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var (
	level   atomic.Int64
	mu      sync.RWMutex
	handler slog.Handler
)

func init() {
	level.Store(int64(LevelInfo))
	handler = newHandler(os.Stderr)
}

func newHandler(w io.Writer) slog.Handler {
	// The handler itself accepts everything; filtering happens against the
	// atomic level so SetLevel never has to rebuild it.
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// SetLevel sets the global log level.
func SetLevel(l slog.Level) {
	level.Store(int64(l))
}

// GetLevel returns the current log level.
func GetLevel() slog.Level {
	return slog.Level(level.Load())
}

// ParseLevel maps a config string (debug, info, warn, error) to a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	handler = newHandler(w)
	mu.Unlock()
}

func emit(l slog.Level, format string, args ...any) {
	if l < GetLevel() {
		return
	}
	mu.RLock()
	h := handler
	mu.RUnlock()

	logger := slog.New(h)
	logger.Log(context.Background(), l, fmt.Sprintf(format, args...))
}

// Debug logs a debug message if the level allows it.
func Debug(format string, args ...any) {
	emit(LevelDebug, format, args...)
}

// Info logs an info message if the level allows it.
func Info(format string, args ...any) {
	emit(LevelInfo, format, args...)
}

// Warn logs a warning message if the level allows it.
func Warn(format string, args ...any) {
	emit(LevelWarn, format, args...)
}

// Error logs an error message (always emitted).
func Error(format string, args ...any) {
	mu.RLock()
	h := handler
	mu.RUnlock()
	slog.New(h).Log(context.Background(), LevelError, fmt.Sprintf(format, args...))
}
