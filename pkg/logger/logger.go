package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type traceIDKey struct{}

// WithTraceID attaches a fresh correlation ID to ctx, or returns ctx
// unchanged if one is already present. Each dispatcher/advance-runner/
// indexer run logs under one trace ID so its lines can be grepped out of
// a shared log stream.
func WithTraceID(ctx context.Context) context.Context {
	if _, ok := ctx.Value(traceIDKey{}).(string); ok {
		return ctx
	}
	return context.WithValue(ctx, traceIDKey{}, uuid.New().String())
}

// TraceID returns the correlation ID stashed by WithTraceID, or "" if none.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// Logger is a wrapper around logrus.Logger
type Logger struct {
	*logrus.Logger
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// New creates a new logger instance
func New(cfg LoggingConfig) *Logger {
	// Create logger
	logger := logrus.New()

	// Set log level
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	// Set log format
	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set log output
	switch strings.ToLower(cfg.Output) {
	case "file":
		if cfg.FilePrefix == "" {
			cfg.FilePrefix = "service_layer"
		}
		// Ensure the logs directory exists
		logDir := "logs"
		err := os.MkdirAll(logDir, 0755)
		if err != nil {
			logger.Errorf("Failed to create logs directory: %v", err)
		} else {
			logPath := filepath.Join(logDir, cfg.FilePrefix+".log")
			file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				logger.Errorf("Failed to open log file: %v", err)
			} else {
				logger.SetOutput(io.MultiWriter(os.Stdout, file))
			}
		}
	default:
		// Use stdout by default
		logger.SetOutput(os.Stdout)
	}

	return &Logger{
		Logger: logger,
	}
}

// NewDefault creates a new logger instance with default configuration
func NewDefault(name string) *Logger {
	// Create logger with default configuration
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetOutput(os.Stdout)

	return &Logger{
		Logger: logger,
	}
}

// WithField returns a new log entry with a field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField(key, value)
}

// WithFields returns a new log entry with multiple fields
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithFields(fields)
}

// WithContext returns a log entry carrying the trace ID stashed in ctx by
// WithTraceID, if any.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	if id := TraceID(ctx); id != "" {
		return l.Logger.WithField("trace_id", id)
	}
	return logrus.NewEntry(l.Logger)
}
