package observability

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogrusOptions configure the logrus-backed logger.
type LogrusOptions struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File enables rotated file output alongside stderr when non-empty.
	File string
	// MaxSizeMB caps a single log file before rotation. Zero means 100.
	MaxSizeMB int
	// MaxBackups caps retained rotated files. Zero keeps all.
	MaxBackups int
}

// NewLogrusLogger builds a JSON-formatted logrus backend, optionally writing
// through a rotating file.
func NewLogrusLogger(opts LogrusOptions) Logger {
	backend := logrus.New()
	backend.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	backend.SetLevel(level)

	if strings.TrimSpace(opts.File) != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		backend.SetOutput(io.MultiWriter(os.Stderr, rotated))
	}

	return &logrusLogger{backend: backend}
}

type logrusLogger struct {
	backend *logrus.Logger
}

func (l *logrusLogger) Debug(msg string, fields ...Field) {
	l.backend.WithFields(toLogrusFields(fields)).Debug(msg)
}

func (l *logrusLogger) Info(msg string, fields ...Field) {
	l.backend.WithFields(toLogrusFields(fields)).Info(msg)
}

func (l *logrusLogger) Warn(msg string, fields ...Field) {
	l.backend.WithFields(toLogrusFields(fields)).Warn(msg)
}

func (l *logrusLogger) Error(msg string, fields ...Field) {
	l.backend.WithFields(toLogrusFields(fields)).Error(msg)
}

func toLogrusFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, field := range fields {
		out[field.Key] = field.Value
	}
	return out
}
