// Package observability provides structured logging, metrics, and
// tracing for the conversion pipeline. Logging goes through slog;
// metrics and traces go through OpenTelemetry. Everything is opt-in
// and has a no-op implementation when disabled.
package observability

import (
	"log/slog"
	"time"
)

// Pipeline stage names used in logs, metrics, and spans.
const (
	StageParse    = "parse"
	StageGenerate = "generate"
	StageValidate = "validate"
	StageFix      = "fix"
	StageCompose  = "compose"
)

// EnrichLogger adds conversion context to a logger: the run id and the
// pipeline stage.
func EnrichLogger(logger *slog.Logger, runID, stage string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("stage", stage),
	)
}

// LogConversionStart logs the start of one document conversion.
func LogConversionStart(logger *slog.Logger, runID, source string) {
	if logger == nil {
		return
	}
	logger.Info("conversion starting",
		slog.String("run_id", runID),
		slog.String("source", source),
	)
}

// LogConversionComplete logs a finished conversion.
func LogConversionComplete(logger *slog.Logger, runID, strategy string, durationMs float64, nodes, issues int) {
	if logger == nil {
		return
	}
	logger.Info("conversion completed",
		slog.String("run_id", runID),
		slog.String("strategy", strategy),
		slog.Float64("duration_ms", durationMs),
		slog.Int("nodes", nodes),
		slog.Int("open_issues", issues),
	)
}

// LogConversionError logs a failed conversion.
func LogConversionError(logger *slog.Logger, runID string, err error, stage string) {
	if logger == nil {
		return
	}
	logger.Error("conversion failed",
		slog.String("run_id", runID),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogStageStart logs a pipeline stage start.
func LogStageStart(logger *slog.Logger, stage string) {
	if logger == nil {
		return
	}
	logger.Debug("stage starting", slog.String("stage", stage))
}

// TimedOperation returns a function that reports elapsed milliseconds
// since TimedOperation was called.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000.0
	}
}

// LogStageComplete logs a finished pipeline stage.
func LogStageComplete(logger *slog.Logger, stage string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("stage completed",
		slog.String("stage", stage),
		slog.Float64("duration_ms", durationMs),
	)
}
