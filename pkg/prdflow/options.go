package prdflow

import (
	"log/slog"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/config"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/extract"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/observability"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/runstore"
)

// pipelineConfig holds configuration for one Pipeline.
type pipelineConfig struct {
	settings  config.Settings
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	assistant extract.Assistant
	store     runstore.Store
	source    string
	dryRun    bool
}

func defaultPipelineConfig() pipelineConfig {
	return pipelineConfig{
		settings: config.DefaultSettings(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		source:   "input.md",
	}
}

// Option configures a Pipeline.
type Option func(*pipelineConfig)

// WithSettings replaces the whole settings block, typically loaded
// from a config file.
func WithSettings(s config.Settings) Option {
	return func(c *pipelineConfig) { c.settings = s }
}

// WithLogger sets the structured logger. Nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *pipelineConfig) { c.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *pipelineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(c *pipelineConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithAssistant sets the optional extraction assistant.
func WithAssistant(a extract.Assistant) Option {
	return func(c *pipelineConfig) { c.assistant = a }
}

// WithStore records each conversion into the given run store.
func WithStore(s runstore.Store) Option {
	return func(c *pipelineConfig) { c.store = s }
}

// WithSource names the input document in logs and run history.
func WithSource(name string) Option {
	return func(c *pipelineConfig) {
		if name != "" {
			c.source = name
		}
	}
}

// WithStrategy overrides automatic strategy selection:
// "simple", "chunked", or "hybrid".
func WithStrategy(name string) Option {
	return func(c *pipelineConfig) { c.settings.Strategy = name }
}

// Strict promotes validation warnings to publication blockers.
func Strict() Option {
	return func(c *pipelineConfig) { c.settings.Strict = true }
}

// NoFix disables the auto-repair loop after validation.
func NoFix() Option {
	return func(c *pipelineConfig) { c.settings.AutoFix = false }
}

// DryRun parses and summarizes without generating a graph.
func DryRun() Option {
	return func(c *pipelineConfig) { c.dryRun = true }
}

// Pretty enables indented JSON output with the given indent width.
func Pretty(indent int) Option {
	return func(c *pipelineConfig) {
		c.settings.Pretty = true
		if indent > 0 {
			c.settings.Indent = indent
		}
	}
}
