package logger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LogCycle logs the outcome of one generate/encode/cleanup cycle
func LogCycle(cycleID, status string, frames int, duration time.Duration, err error) {
	l := GetLogger().WithFields(map[string]interface{}{
		"cycle_id": cycleID,
		"status":   status,
		"frames":   frames,
		"duration": duration,
	})

	if err != nil {
		l.WithError(err).Error("Cycle failed")
		return
	}
	l.Info("Cycle completed")
}

// LogFrame logs a single generated frame
func LogFrame(index, total int, path string, size int) {
	GetLogger().DebugWithFields("Frame saved", map[string]interface{}{
		"frame":    index + 1,
		"total":    total,
		"path":     path,
		"size":     size,
		"progress": fmt.Sprintf("%d/%d", index+1, total),
	})
}

// LogEncode logs an encoder invocation
func LogEncode(binary string, args []string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"binary":   binary,
		"args":     args,
		"duration": duration,
	}
	if err != nil {
		GetLogger().WithError(err).ErrorWithFields("Encoder failed", fields)
		return
	}
	GetLogger().InfoWithFields("Encoder finished", fields)
}

// LogCleanup logs the result of a frame directory cleanup
func LogCleanup(dir string, removed, failed int) {
	fields := map[string]interface{}{
		"dir":     dir,
		"removed": removed,
		"failed":  failed,
	}
	if failed > 0 {
		GetLogger().WarnWithFields("Cleanup left files behind", fields)
		return
	}
	GetLogger().InfoWithFields("Cleaned up frames", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
