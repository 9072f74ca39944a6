// Package logging provides structured logging using uber/zap.
//
// Two modes:
//   - Production: JSON output for machine parsing
//   - Development: colored console output with stack traces
//
// Subsystems take a *zap.Logger. Component and Session derive named child
// loggers so every session line carries its session_id.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	manager := terminal.NewManager(cfg, terminal.WithLogger(logger.Component("terminal")))
//	logger.Info("Server starting", zap.String("port", "8000"))
package logging
