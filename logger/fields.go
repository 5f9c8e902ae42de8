package logger

import "go.uber.org/zap"

// Standard field names for consistent structured logging across imotar.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldJobID      = "job_id"
	FieldGeneration = "generation"
	FieldComponent  = "component"

	// Pipeline
	FieldTick   = "tick"
	FieldState  = "state"
	FieldSteps  = "steps"
	FieldCursor = "cursor"
	FieldMode   = "mode"

	// Streams
	FieldStream    = "stream"
	FieldSeq       = "seq"
	FieldTimestamp = "timestamp"
	FieldSkewMS    = "skew_ms"
	FieldWidth     = "width"
	FieldHeight    = "height"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldStartTime  = "start_time"
	FieldEndTime    = "end_time"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount = "count"
	FieldDrops = "drops"
	FieldSize  = "size"

	// Files and network
	FieldFile    = "file"
	FieldAddress = "address"
	FieldPort    = "port"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
// Before Initialize runs it returns a no-op logger.
//
// Example:
//
//	type Processor struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func NewProcessor() *Processor {
//	    return &Processor{
//	        logger: logger.ComponentLogger("depth.processor"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	if Logger == nil {
		return zap.NewNop().Sugar().Named(name)
	}
	return Logger.Named(name)
}

// ChildLogger creates a child logger with additional context.
// Use for sub-operations that need extra context fields.
//
// Example:
//
//	jobLogger := logger.ChildLogger(baseLogger, logger.FieldJobID, job.ID)
func ChildLogger(parent *zap.SugaredLogger, keysAndValues ...interface{}) *zap.SugaredLogger {
	return parent.With(keysAndValues...)
}
