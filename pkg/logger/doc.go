// Package logger provides the structured logging interface used across ytshorts.
//
// It wraps zerolog and offers leveled logging, structured fields, a colored
// console writer, optional JSON file output and a process-wide global logger.
//
// Basic usage:
//
//	err := logger.Initialize(&config.LoggingConfig{Level: "info"})
//
//	logger.Info("Producer started")
//	logger.WithField("cycle_id", id).Info("Encoding")
//	logger.WithError(err).Error("Cycle failed")
//
// Components usually derive a scoped logger once:
//
//	log := logger.GetLogger().WithField("component", "framegen")
//	log.InfoWithFields("Frame saved", map[string]interface{}{
//	    "index": 12,
//	    "size":  482113,
//	})
//
// Tests can use NewNopLogger to discard output or NewTestLogger to capture
// messages and assert on them.
package logger
