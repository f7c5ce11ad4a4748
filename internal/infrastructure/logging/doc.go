// Package logging builds the process-wide structured logger on uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for human readability
//
// Subsystems derive their own loggers with Named, so every session
// manager, sink, and handler line carries its origin:
//
//	logger := logging.NewDefault()
//	termLog := logger.Named("terminal")
//	termLog.Info("session spawned", zap.String("session_id", id))
package logging
