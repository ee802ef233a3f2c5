package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging capabilities
type Logger struct {
	*slog.Logger
}

// LogLevel represents log level constants
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config represents logger configuration
type Config struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

// NewLogger creates a new structured logger
func NewLogger(config Config) *Logger {
	var level slog.Level
	switch config.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelInfo:
		level = slog.LevelInfo
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if config.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// GetDefaultLogger returns a logger with sensible defaults
func GetDefaultLogger() *Logger {
	return NewLogger(Config{
		Level:  LevelInfo,
		Format: "text",
		Output: os.Stdout,
	})
}

// ParseLevel maps a config log_level string onto a LogLevel.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// WithContext adds contextual fields to the logger
func (l *Logger) WithContext(args ...any) *Logger {
	return &Logger{
		Logger: l.With(args...),
	}
}

// WithSource adds source-adapter context
func (l *Logger) WithSource(name string) *Logger {
	return l.WithContext("source", name)
}

// WithProxy adds proxy context
func (l *Logger) WithProxy(proxy string) *Logger {
	return l.WithContext("proxy", proxy)
}

// WithDuration adds duration context
func (l *Logger) WithDuration(key string, duration float64) *Logger {
	return l.WithContext(key, duration)
}

// ConfigLoaded logs successful configuration loading
func (l *Logger) ConfigLoaded(file string) {
	l.Info("configuration loaded", "file", file)
}

// ConfigReloaded logs a live configuration reload picked up by the watcher
func (l *Logger) ConfigReloaded(file string) {
	l.Info("configuration reloaded", "file", file)
}

// ConfigNotFound logs when config file is not found
func (l *Logger) ConfigNotFound(file string) {
	l.Warn("config file not found, using defaults", "file", file)
}

// SourceFetchStart logs the start of a source adapter fetch
func (l *Logger) SourceFetchStart(name string) {
	l.WithSource(name).Debug("fetching proxy candidates")
}

// SourceFetchComplete logs a successful source adapter fetch
func (l *Logger) SourceFetchComplete(name string, count int) {
	l.WithSource(name).Info("fetch complete", "candidates", count)
}

// SourceFetchFailed logs a source adapter failure. Per-source failures are
// caught and logged, never fatal to the aggregation cycle.
func (l *Logger) SourceFetchFailed(name string, err error) {
	l.WithSource(name).Error("fetch failed", "error", err)
}

// ValidationCycleStart logs the start of a validation cycle. The
// candidate count isn't known until aggregation finishes, so only the
// configured worker count is logged here.
func (l *Logger) ValidationCycleStart(threads int) {
	l.Info("starting validation cycle", "threads", threads)
}

// ValidationCycleComplete logs completion of a validation cycle
func (l *Logger) ValidationCycleComplete(total, valid int, elapsed time.Duration) {
	l.Info("validation cycle complete", "total", total, "valid", valid, "elapsed_seconds", elapsed.Seconds())
}

// ProxyValid logs a successful proxy probe
func (l *Logger) ProxyValid(proxy string, duration float64, anonymity string) {
	l.WithProxy(proxy).WithDuration("duration_seconds", duration).Debug("proxy valid", "anonymity", anonymity)
}

// ProxyInvalid logs a failed proxy probe
func (l *Logger) ProxyInvalid(proxy string, err error) {
	l.WithProxy(proxy).Debug("proxy invalid", "error", err)
}

// SchedulerStateChange logs a scheduler state transition
func (l *Logger) SchedulerStateChange(from, to string) {
	l.Info("scheduler state change", "from", from, "to", to)
}

// ShutdownReceived logs shutdown signal
func (l *Logger) ShutdownReceived() {
	l.Info("shutdown signal received, cleaning up...")
}

// ShutdownComplete logs shutdown completion
func (l *Logger) ShutdownComplete() {
	l.Info("shutdown complete")
}
