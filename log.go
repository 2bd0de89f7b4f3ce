package schemarun

// Logger is an interface so callers can pass in their own logging
// implementation. The core never depends on a concrete logging library;
// see internal/cli for a logrus-backed adapter.
type Logger interface {
	// Printf is like fmt.Printf.
	Printf(format string, v ...any)

	// Verbose should return true when verbose logging output is wanted.
	Verbose() bool
}
