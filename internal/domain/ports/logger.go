package ports

// Logger abstracts logging so services do not depend on a concrete backend.
type Logger interface {
	// Debug logs diagnostic detail
	Debug(msg string, args ...interface{})

	// Info logs normal operational messages
	Info(msg string, args ...interface{})

	// Warn logs recoverable problems
	Warn(msg string, args ...interface{})

	// Error logs failures
	Error(msg string, args ...interface{})

	// Printf formats directly (compatibility helper)
	Printf(format string, args ...interface{})
}
