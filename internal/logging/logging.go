package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config controls the process-wide logger.
type Config struct {
	Level string
	// File, when set, additionally writes rotated logs to this path.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Quiet discards every log line.
	Quiet bool
}

var base = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

// InitFromEnv sets the log level based on LOG_LEVEL (debug|info|warn|error).
func InitFromEnv() {
	Init(Config{Level: os.Getenv("LOG_LEVEL"), File: os.Getenv("LOG_FILE")})
}

// Init applies cfg to the shared logger.
func Init(cfg Config) {
	SetLevel(parseLevel(cfg.Level))

	if cfg.Quiet {
		base.SetOutput(io.Discard)
		return
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}
	base.SetOutput(out)
}

func parseLevel(raw string) Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// SetLevel changes the minimum level that is emitted.
func SetLevel(lvl Level) {
	switch lvl {
	case LevelDebug:
		base.SetLevel(logrus.DebugLevel)
	case LevelWarn:
		base.SetLevel(logrus.WarnLevel)
	case LevelError:
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects the shared logger, mostly for tests.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Logger exposes the underlying logrus logger for structured fields.
func Logger() *logrus.Logger {
	return base
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return base.WithFields(fields)
}

func Debugf(format string, args ...interface{}) {
	base.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	base.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	base.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	base.Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	base.Fatalf(format, args...)
}
