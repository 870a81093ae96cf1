package logger

import (
	"log"
	"os"

	"github.com/syed-hamad/posprint/internal/domain/ports"
)

// StdLogger implements ports.Logger on top of the standard library log
// package.
type StdLogger struct {
	logger *log.Logger
}

// NewStdLogger creates a StdLogger writing to stderr with the given prefix.
func NewStdLogger(prefix string) ports.Logger {
	return &StdLogger{
		logger: log.New(os.Stderr, prefix, log.LstdFlags),
	}
}

// Debug logs diagnostic detail.
func (l *StdLogger) Debug(msg string, args ...interface{}) {
	l.logger.Printf("[DEBUG] "+msg, args...)
}

// Info logs normal operational messages.
func (l *StdLogger) Info(msg string, args ...interface{}) {
	l.logger.Printf("[INFO] "+msg, args...)
}

// Warn logs recoverable problems.
func (l *StdLogger) Warn(msg string, args ...interface{}) {
	l.logger.Printf("[WARN] "+msg, args...)
}

// Error logs failures.
func (l *StdLogger) Error(msg string, args ...interface{}) {
	l.logger.Printf("[ERROR] "+msg, args...)
}

// Printf formats directly (compatibility helper).
func (l *StdLogger) Printf(format string, args ...interface{}) {
	l.logger.Printf(format, args...)
}
