// Package logging provides structured logging for the Rollcall core.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how verbosely the core logs.
type Config struct {
	Level string // debug, info, warn, error (default info)

	// File enables rotating file output in addition to stderr.
	File       string
	MaxSizeMB  int // per log file, default 10
	MaxBackups int // rotated files kept, default 3
}

var (
	global *logrus.Logger
	once   sync.Once
)

// Init initializes the global logger. Safe to call more than once; only the
// first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		global = newLogger(cfg)
	})
}

func newLogger(cfg Config) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
		})
	}
	l.SetOutput(out)

	return l
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	if global == nil {
		Init(Config{})
	}
	return global
}

// Convenience functions using the global logger. The optional context map is
// attached as structured fields.

func Debug(message string, context ...map[string]interface{}) {
	entry(context...).Debug(message)
}

func Info(message string, context ...map[string]interface{}) {
	entry(context...).Info(message)
}

func Warn(message string, context ...map[string]interface{}) {
	entry(context...).Warn(message)
}

func Error(message string, err error, context ...map[string]interface{}) {
	e := entry(context...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

func entry(context ...map[string]interface{}) *logrus.Entry {
	l := Get()
	if len(context) == 0 {
		return logrus.NewEntry(l)
	}
	fields := logrus.Fields{}
	for _, c := range context {
		for k, v := range c {
			fields[k] = v
		}
	}
	return l.WithFields(fields)
}
