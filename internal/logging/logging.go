// Package logging configures the process-wide structured logger.
//
// Components take a *log.Logger and fall back to Default when given nil, so
// library code never has to care whether Init was called.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.RWMutex
	current = newLogger(os.Stderr, "nmjl", log.InfoLevel)
)

func newLogger(w io.Writer, prefix string, level log.Level) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           level,
	})
	return l
}

// Init replaces the default logger. Level is one of debug, info, warn, error;
// anything else means info.
func Init(appName, level string) *log.Logger {
	return InitWriter(os.Stderr, appName, level)
}

// InitWriter is Init with an explicit destination, used by tests and the CLI.
func InitWriter(w io.Writer, appName, level string) *log.Logger {
	l := newLogger(w, appName, ParseLevel(level))
	if l.GetLevel() == log.DebugLevel {
		l.SetReportCaller(true)
	}

	mu.Lock()
	current = l
	mu.Unlock()
	log.SetDefault(l)
	return l
}

// ParseLevel maps a config string to a level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	}
	return log.InfoLevel
}

// SetLevel changes the default logger's level in place, e.g. after a config reload.
func SetLevel(level string) {
	Default().SetLevel(ParseLevel(level))
}

// Default returns the process logger.
func Default() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Or returns l, or the default logger when l is nil.
func Or(l *log.Logger) *log.Logger {
	if l != nil {
		return l
	}
	return Default()
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) *log.Logger {
	return Default().With("component", name)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return newLogger(io.Discard, "", log.FatalLevel)
}
