// Package logging provides session-scoped file logging for the cortex CLI.
// Every process run gets a session ID; all components of that run append to
// the same log file under the cortex home directory.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	sessionID     string
	sessionIDOnce sync.Once
)

// SessionID returns the identifier shared by all loggers of this process.
func SessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

// Logger writes timestamped, component-tagged entries to the session log
// file. When the log file cannot be opened it degrades to stderr instead of
// failing the command.
type Logger struct {
	component string
	logger    *log.Logger
	file      *os.File
	mu        sync.Mutex
	closeOnce sync.Once
}

// New creates a logger for a component, writing to
// <dir>/<session-id>-cortex.log. An empty dir defaults to ~/.cortex/logs.
func New(component, dir string) (*Logger, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fallback(component), fmt.Errorf("logging: resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".cortex", "logs")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fallback(component), fmt.Errorf("logging: create log directory: %w", err)
	}
	path := filepath.Join(dir, SessionID()+"-cortex.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fallback(component), fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{
		component: component,
		logger:    log.New(file, "", 0),
		file:      file,
	}, nil
}

func fallback(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0),
	}
}

func (l *Logger) write(level, format string, v ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.logger.Printf("[%s] [%s] [%s] %s", ts, l.component, level, fmt.Sprintf(format, v...))
}

// Debugf logs a debug-level entry.
func (l *Logger) Debugf(format string, v ...any) { l.write("DEBUG", format, v...) }

// Infof logs an info-level entry.
func (l *Logger) Infof(format string, v ...any) { l.write("INFO", format, v...) }

// Warnf logs a warning-level entry.
func (l *Logger) Warnf(format string, v ...any) { l.write("WARN", format, v...) }

// Errorf logs an error-level entry.
func (l *Logger) Errorf(format string, v ...any) { l.write("ERROR", format, v...) }

// Close closes the underlying log file. Safe to call more than once.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}
