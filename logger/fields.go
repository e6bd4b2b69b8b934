package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across tablegate.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldDataset = "dataset"
	FieldRunID   = "run_id"

	// Pipeline
	FieldStage    = "stage"
	FieldState    = "state"
	FieldRuleID   = "rule_id"
	FieldVerdict  = "verdict"
	FieldSeverity = "severity"

	// Operations
	FieldOperation = "operation"
	FieldCommand   = "command"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldStartTime  = "start_time"
	FieldEndTime    = "end_time"

	// Errors
	FieldError     = "error"
	FieldErrorCode = "error_code"
	FieldExitCode  = "exit_code"

	// Counts and sizes
	FieldCount    = "count"
	FieldRowCount = "row_count"
	FieldLimit    = "limit"

	// Findings
	FieldCode = "code"

	// Files and paths
	FieldFile   = "file"
	FieldLine   = "line"
	FieldPath   = "path"
	FieldBinary = "binary"
)

// Context keys for propagating logging context
type contextKey string

const (
	runIDKey   contextKey = "logger_run_id"
	datasetKey contextKey = "logger_dataset"
)

// WithRunID adds a run ID to the context for logging
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithDataset adds a dataset identifier to the context for logging
func WithDataset(ctx context.Context, dataset string) context.Context {
	return context.WithValue(ctx, datasetKey, dataset)
}

// FromContext returns a logger enriched with any run ID and dataset stored in
// the context. Returns the global logger unchanged when the context carries
// neither.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	log := Logger
	if log == nil {
		return zap.NewNop().Sugar()
	}
	if runID, ok := ctx.Value(runIDKey).(string); ok && runID != "" {
		log = log.With(FieldRunID, runID)
	}
	if dataset, ok := ctx.Value(datasetKey).(string); ok && dataset != "" {
		log = log.With(FieldDataset, dataset)
	}
	return log
}
