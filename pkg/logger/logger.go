package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// Init installs a JSON logger on stdout, at debug level when verbose.
func Init(verbose bool) {
	level := "info"
	if verbose {
		level = "debug"
	}
	// stdout JSON at a known level cannot fail.
	_ = InitWithConfig(level, "json", "stdout", "")
}

// InitWithConfig builds the logger from the log section of the configuration.
// output is one of stdout, stderr or file; filePath is only read for file.
func InitWithConfig(level, format, output, filePath string) error {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	formatter, err := newFormatter(format)
	if err != nil {
		return err
	}
	l.SetFormatter(formatter)

	w, err := newWriter(output, filePath)
	if err != nil {
		return err
	}
	l.SetOutput(w)

	log = l
	return nil
}

func newFormatter(format string) (logrus.Formatter, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05Z07:00"}, nil
	case "text":
		return &logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func newWriter(output, filePath string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		if filePath == "" {
			return nil, fmt.Errorf("log output is file but no file_path is set")
		}
		if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", output)
	}
}

func GetLogger() *logrus.Logger {
	if log == nil {
		Init(false)
	}
	return log
}

func Debug(format string, args ...any) {
	GetLogger().Debugf(format, args...)
}

func Info(format string, args ...any) {
	GetLogger().Infof(format, args...)
}

func Warn(format string, args ...any) {
	GetLogger().Warnf(format, args...)
}

func Error(format string, args ...any) {
	GetLogger().Errorf(format, args...)
}

func Fatal(format string, args ...any) {
	GetLogger().Fatalf(format, args...)
}

// WithEntity tags a log line with the roster entity it concerns.
func WithEntity(entity string, id fmt.Stringer) *logrus.Entry {
	return GetLogger().WithFields(logrus.Fields{"entity": entity, "id": id.String()})
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}
