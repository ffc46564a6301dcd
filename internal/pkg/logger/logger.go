package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"brandshield-pipeline/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields map[string]interface{}

type Logger struct {
	entry *logrus.Entry
}

func New(cfg config.LogConfig) (*Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		output = &lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	}
	log.SetOutput(output)

	return &Logger{entry: logrus.NewEntry(log)}, nil
}

func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fieldsFromKeyValues(keyValues)).Debug(msg)
}

func (l *Logger) Info(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fieldsFromKeyValues(keyValues)).Info(msg)
}

func (l *Logger) Warn(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fieldsFromKeyValues(keyValues)).Warn(msg)
}

func (l *Logger) Error(msg string, keyValues ...interface{}) {
	l.entry.WithFields(fieldsFromKeyValues(keyValues)).Error(msg)
}

// LogService records one call against an internal or external service.
func (l *Logger) LogService(service, operation string, duration time.Duration, metadata map[string]interface{}, err error) {
	entry := l.entry.WithFields(logrus.Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	for key, value := range metadata {
		entry = entry.WithField(key, value)
	}
	if err != nil {
		entry.WithError(err).Error("service call failed")
		return
	}
	entry.Debug("service call completed")
}

// LogStage records one pipeline stage execution within an analysis session.
func (l *Logger) LogStage(sessionID, stage string, duration time.Duration, metadata map[string]interface{}, err error) {
	entry := l.entry.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"stage":       stage,
		"duration_ms": duration.Milliseconds(),
	})
	for key, value := range metadata {
		entry = entry.WithField(key, value)
	}
	if err != nil {
		entry.WithError(err).Error("stage failed")
		return
	}
	entry.Info("stage completed")
}

// LogWorkflow records a lifecycle event for a whole analysis run.
func (l *Logger) LogWorkflow(sessionID, topic, event string, duration time.Duration, err error) {
	entry := l.entry.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"topic":       topic,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("workflow event")
		return
	}
	entry.Info("workflow event")
}

func fieldsFromKeyValues(keyValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", keyValues[i])
		}
		fields[key] = keyValues[i+1]
	}
	return fields
}
