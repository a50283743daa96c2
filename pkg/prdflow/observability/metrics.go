package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records conversion metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStage records one pipeline stage with its duration and
	// error status.
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)

	// RecordConversion records a completed conversion.
	RecordConversion(ctx context.Context, strategy string, success bool, duration time.Duration)

	// RecordIssues records the validation issue counts of one pass.
	RecordIssues(ctx context.Context, errors, warnings int)

	// RecordFixes records auto-fix repairs applied in one run.
	RecordFixes(ctx context.Context, count int)
}

type otelMetrics struct {
	stageExecutions metric.Int64Counter
	stageLatency    metric.Float64Histogram
	stageErrors     metric.Int64Counter
	conversions     metric.Int64Counter
	convLatency     metric.Float64Histogram
	issuesFound     metric.Int64Counter
	fixesApplied    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("prdflow")

	stageExecutions, err := meter.Int64Counter("prdflow.stage.executions",
		metric.WithDescription("Number of pipeline stage executions"),
	)
	if err != nil {
		return nil, err
	}

	stageLatency, err := meter.Float64Histogram("prdflow.stage.latency_ms",
		metric.WithDescription("Pipeline stage latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	stageErrors, err := meter.Int64Counter("prdflow.stage.errors",
		metric.WithDescription("Number of pipeline stage errors"),
	)
	if err != nil {
		return nil, err
	}

	conversions, err := meter.Int64Counter("prdflow.conversions",
		metric.WithDescription("Number of document conversions"),
	)
	if err != nil {
		return nil, err
	}

	convLatency, err := meter.Float64Histogram("prdflow.conversion.latency_ms",
		metric.WithDescription("End-to-end conversion latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	issuesFound, err := meter.Int64Counter("prdflow.validation.issues",
		metric.WithDescription("Number of validation issues found"),
	)
	if err != nil {
		return nil, err
	}

	fixesApplied, err := meter.Int64Counter("prdflow.fixes.applied",
		metric.WithDescription("Number of auto-fix repairs applied"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		stageExecutions: stageExecutions,
		stageLatency:    stageLatency,
		stageErrors:     stageErrors,
		conversions:     conversions,
		convLatency:     convLatency,
		issuesFound:     issuesFound,
		fixesApplied:    fixesApplied,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider; configure the
// provider before calling this function.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordStage records one pipeline stage execution.
func (m *otelMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("stage", stage),
	}

	m.stageExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.stageLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.stageErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordConversion records one conversion.
func (m *otelMetrics) RecordConversion(ctx context.Context, strategy string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("strategy", strategy),
		attribute.Bool("success", success),
	}
	m.conversions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.convLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordIssues records validation issue counts.
func (m *otelMetrics) RecordIssues(ctx context.Context, errors, warnings int) {
	m.issuesFound.Add(ctx, int64(errors),
		metric.WithAttributes(attribute.String("severity", "error")))
	m.issuesFound.Add(ctx, int64(warnings),
		metric.WithAttributes(attribute.String("severity", "warning")))
}

// RecordFixes records applied repairs.
func (m *otelMetrics) RecordFixes(ctx context.Context, count int) {
	m.fixesApplied.Add(ctx, int64(count))
}
