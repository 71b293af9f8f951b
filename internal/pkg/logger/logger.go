package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields map[string]interface{}

type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`

	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type Logger struct {
	*logrus.Logger
}

func New(cfg Config) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	output, err := resolveOutput(cfg)
	if err != nil {
		return nil, err
	}
	log.SetOutput(output)

	return &Logger{Logger: log}, nil
}

func resolveOutput(cfg Config) (io.Writer, error) {
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log output is file but no file path configured")
		}
		return &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}
}

func (l *Logger) WithFields(fields Fields) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields(fields))
}

func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithError(err)
}

// Info logs a message followed by alternating key/value pairs.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.WithFields(toFields(keysAndValues)).Info(msg)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.WithFields(toFields(keysAndValues)).Warn(msg)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.WithFields(toFields(keysAndValues)).Error(msg)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.WithFields(toFields(keysAndValues)).Debug(msg)
}

// LogService records one service-level operation with its duration and outcome.
func (l *Logger) LogService(service, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.Logger.WithFields(logrus.Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	if err != nil {
		entry.WithError(err).Error("service operation failed")
		return
	}
	entry.Debug("service operation completed")
}

// LogAgent records one agent stage of a pipeline run.
func (l *Logger) LogAgent(runID, agent, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.Logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"agent":       agent,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(logrus.Fields(fields))
	}
	if err != nil {
		entry.WithError(err).Warn("agent stage degraded")
		return
	}
	entry.Info("agent stage completed")
}

// LogPipeline records a pipeline lifecycle event.
func (l *Logger) LogPipeline(runID, event string, duration time.Duration, err error) {
	entry := l.Logger.WithFields(logrus.Fields{
		"run_id":      runID,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("pipeline event")
		return
	}
	entry.Info("pipeline event")
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
