// Package logging configures the application logger on top of logrus.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Field keys shared by every component.
const (
	FieldProfile = "profile"
	FieldLaunch  = "launch"
	FieldPID     = "pid"
	FieldState   = "state"
)

// Config configures the logger.
type Config struct {
	Level    string
	FilePath string
	JSON     bool
	MaxSize  int64 // Max file size in bytes before rotation (0 = no rotation)
}

// Logger is a logrus logger that owns its output sink.
type Logger struct {
	*logrus.Logger
	sink io.Closer
}

// ParseLevel parses a log level string. An empty string means info.
func ParseLevel(s string) (logrus.Level, error) {
	if strings.TrimSpace(s) == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level: %s", s)
	}
	return level, nil
}

// New creates a logger writing to stderr, or to a rotating file when
// cfg.FilePath is set.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{Logger: logrus.New()}
	l.SetLevel(level)

	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	}

	if cfg.FilePath == "" {
		l.SetOutput(os.Stderr)
		return l, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w, err := openRotatingFile(cfg.FilePath, cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	l.SetOutput(w)
	l.sink = w

	return l, nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *Logger {
	l := &Logger{Logger: logrus.New()}
	l.SetOutput(io.Discard)
	return l
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Close()
}
