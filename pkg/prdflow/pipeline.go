package prdflow

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/extract"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/generate"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/observability"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/runstore"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/validate"
)

// Pipeline runs the full conversion: parse, select a strategy,
// generate, validate, auto-fix, compose.
type Pipeline struct {
	cfg pipelineConfig
}

// Result is the outcome of one conversion.
type Result struct {
	// RunID identifies this conversion in logs and run history.
	RunID string

	// Parsed is the intermediate representation of the input.
	Parsed *model.Document

	// Strategy is the generation strategy that produced the graph.
	Strategy string

	// Document is the composed output; nil in dry-run mode.
	Document *Document

	// JSON is the serialized document; nil in dry-run mode.
	JSON []byte

	// Report is the final validation report; nil in dry-run mode.
	Report *validate.Report

	// Fixes lists the auto-repairs applied, in order.
	Fixes []string

	// Warnings aggregates parse and generation warnings.
	Warnings []string

	// Summary is a one-line description of the parsed input.
	Summary string

	// Duration is the end-to-end conversion time.
	Duration time.Duration
}

// New creates a conversion pipeline.
func New(opts ...Option) *Pipeline {
	cfg := defaultPipelineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pipeline{cfg: cfg}
}

// Convert runs the pipeline on one markdown document.
//
// A *ValidationError return still carries a complete Result: the
// document is composed (with status "invalid") so callers can inspect
// or persist it.
func (p *Pipeline) Convert(ctx context.Context, input string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	if p.cfg.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.settings.Timeout)
		defer cancel()
	}

	observability.LogConversionStart(p.cfg.logger, runID, p.cfg.source)
	ctx, convSpan := p.cfg.spans.StartConversionSpan(ctx, p.cfg.source, runID)

	res, err := p.convert(ctx, runID, input)
	if res != nil {
		res.Duration = time.Since(start)
	}

	p.cfg.spans.EndSpanWithError(convSpan, err)
	if err != nil {
		p.cfg.metrics.RecordConversion(ctx, strategyName(res), false, time.Since(start))
		return res, err
	}

	p.cfg.metrics.RecordConversion(ctx, res.Strategy, true, res.Duration)
	observability.LogConversionComplete(p.cfg.logger, runID, res.Strategy,
		float64(res.Duration.Milliseconds()), nodeCount(res), openIssues(res))
	return res, nil
}

func (p *Pipeline) convert(ctx context.Context, runID string, input string) (*Result, error) {
	res := &Result{RunID: runID}

	// Parse
	doc, err := p.runParse(ctx, runID, input)
	if err != nil {
		observability.LogConversionError(p.cfg.logger, runID, err, observability.StageParse)
		return res, &StageError{Stage: observability.StageParse, Err: err}
	}
	if p.cfg.settings.Language != "" {
		doc.Metadata.Language = p.cfg.settings.Language
	}
	res.Parsed = doc
	res.Summary = doc.Summary()
	res.Warnings = append(res.Warnings, doc.Warnings...)

	strategy, err := generate.Select(doc, p.cfg.settings.Strategy)
	if err != nil {
		return res, &StageError{Stage: observability.StageGenerate, Err: err}
	}
	res.Strategy = strategy.Name()

	if p.cfg.dryRun {
		return res, nil
	}

	// Generate
	genRes, err := p.runGenerate(ctx, runID, strategy, doc)
	if err != nil {
		observability.LogConversionError(p.cfg.logger, runID, err, observability.StageGenerate)
		return res, &StageError{Stage: observability.StageGenerate, Err: err}
	}
	res.Strategy = genRes.Strategy
	res.Warnings = append(res.Warnings, genRes.Warnings...)

	// Validate + fix
	report, fixes := p.runValidate(ctx, runID, genRes)
	res.Report = report
	res.Fixes = fixes

	// Compose
	document, raw, err := p.runCompose(ctx, runID, doc, genRes, report)
	if err != nil {
		observability.LogConversionError(p.cfg.logger, runID, err, observability.StageCompose)
		return res, &StageError{Stage: observability.StageCompose, Err: err}
	}
	res.Document = document
	res.JSON = raw

	p.recordRun(input, res)

	if !report.Valid() {
		verr := &ValidationError{Issues: blockingIssues(report)}
		observability.LogConversionError(p.cfg.logger, runID, verr, observability.StageValidate)
		return res, verr
	}
	return res, nil
}

func (p *Pipeline) runParse(ctx context.Context, runID, input string) (*model.Document, error) {
	logger := observability.EnrichLogger(p.cfg.logger, runID, observability.StageParse)
	observability.LogStageStart(logger, observability.StageParse)
	done := observability.TimedOperation()
	ctx, span := p.cfg.spans.StartStageSpan(ctx, observability.StageParse)

	var parserOpts []extract.ParserOption
	if logger != nil {
		parserOpts = append(parserOpts, extract.WithLogger(logger))
	}
	if p.cfg.assistant != nil {
		parserOpts = append(parserOpts, extract.WithAssistant(p.cfg.assistant))
	}
	doc, err := extract.NewParser(parserOpts...).Parse(ctx, input)

	elapsed := done()
	p.cfg.spans.EndSpanWithError(span, err)
	p.cfg.metrics.RecordStage(ctx, observability.StageParse, time.Duration(elapsed*float64(time.Millisecond)), err)
	observability.LogStageComplete(logger, observability.StageParse, elapsed)
	return doc, err
}

func (p *Pipeline) runGenerate(ctx context.Context, runID string, strategy generate.Strategy, doc *model.Document) (*generate.Result, error) {
	logger := observability.EnrichLogger(p.cfg.logger, runID, observability.StageGenerate)
	observability.LogStageStart(logger, observability.StageGenerate)
	done := observability.TimedOperation()
	ctx, span := p.cfg.spans.StartStageSpan(ctx, observability.StageGenerate)

	genRes, err := strategy.Generate(ctx, doc)

	elapsed := done()
	p.cfg.spans.EndSpanWithError(span, err)
	p.cfg.metrics.RecordStage(ctx, observability.StageGenerate, time.Duration(elapsed*float64(time.Millisecond)), err)
	observability.LogStageComplete(logger, observability.StageGenerate, elapsed)
	return genRes, err
}

func (p *Pipeline) runValidate(ctx context.Context, runID string, genRes *generate.Result) (*validate.Report, []string) {
	logger := observability.EnrichLogger(p.cfg.logger, runID, observability.StageValidate)
	observability.LogStageStart(logger, observability.StageValidate)
	done := observability.TimedOperation()
	ctx, span := p.cfg.spans.StartStageSpan(ctx, observability.StageValidate)

	var validatorOpts []validate.Option
	if p.cfg.settings.Strict {
		validatorOpts = append(validatorOpts, validate.Strict())
	}
	if logger != nil {
		validatorOpts = append(validatorOpts, validate.WithLogger(logger))
	}
	validator := validate.New(validatorOpts...)

	target := &validate.Target{
		Graph:     genRes.Graph,
		Variables: genRes.Variables,
		Tools:     genRes.Tools,
	}

	var report *validate.Report
	var fixes []string
	if p.cfg.settings.AutoFix {
		fixer := p.newFixer(validator, runID)
		fixRes := fixer.Fix(target)
		report = fixRes.Report
		fixes = fixRes.Applied

		// Fixer mutations feed back into the composed output
		genRes.Graph = target.Graph
		genRes.Variables = target.Variables
		genRes.Tools = target.Tools
	} else {
		report = validator.Validate(target)
	}

	elapsed := done()
	p.cfg.spans.EndSpanWithError(span, nil)
	p.cfg.metrics.RecordStage(ctx, observability.StageValidate, time.Duration(elapsed*float64(time.Millisecond)), nil)
	p.cfg.metrics.RecordIssues(ctx, len(report.Errors()), len(report.Warnings()))
	if len(fixes) > 0 {
		p.cfg.metrics.RecordFixes(ctx, len(fixes))
	}
	observability.LogStageComplete(logger, observability.StageValidate, elapsed)
	return report, fixes
}

func (p *Pipeline) newFixer(validator *validate.Validator, runID string) *validate.Fixer {
	var fixerOpts []validate.FixerOption
	if p.cfg.settings.MaxFixIterations > 0 {
		fixerOpts = append(fixerOpts, validate.MaxIterations(p.cfg.settings.MaxFixIterations))
	}
	if p.cfg.settings.OrphanMode != "" {
		fixerOpts = append(fixerOpts, validate.OrphanMode(p.cfg.settings.OrphanMode))
	}
	if logger := observability.EnrichLogger(p.cfg.logger, runID, observability.StageFix); logger != nil {
		fixerOpts = append(fixerOpts, validate.FixerLogger(logger))
	}
	return validate.NewFixer(validator, fixerOpts...)
}

func (p *Pipeline) runCompose(ctx context.Context, runID string, doc *model.Document, genRes *generate.Result, report *validate.Report) (*Document, []byte, error) {
	logger := observability.EnrichLogger(p.cfg.logger, runID, observability.StageCompose)
	observability.LogStageStart(logger, observability.StageCompose)
	done := observability.TimedOperation()
	ctx, span := p.cfg.spans.StartStageSpan(ctx, observability.StageCompose)

	document := Compose(doc, genRes, report)
	raw, err := document.Marshal(p.cfg.settings.Pretty, p.cfg.settings.Indent)

	elapsed := done()
	p.cfg.spans.EndSpanWithError(span, err)
	p.cfg.metrics.RecordStage(ctx, observability.StageCompose, time.Duration(elapsed*float64(time.Millisecond)), err)
	observability.LogStageComplete(logger, observability.StageCompose, elapsed)
	return document, raw, err
}

// recordRun persists the conversion into the run store, best effort.
func (p *Pipeline) recordRun(input string, res *Result) {
	if p.cfg.store == nil {
		return
	}

	run := runstore.NewRun(p.cfg.source, input)
	run.ID = res.RunID
	run.Strategy = res.Strategy
	run.Errors = len(res.Report.Errors())
	run.Warnings = len(res.Report.Warnings())
	run.Fixes = len(res.Fixes)
	run.Duration = float64(time.Since(run.CreatedAt).Milliseconds())
	run.Document = res.JSON

	if err := p.cfg.store.Save(run); err != nil && p.cfg.logger != nil {
		p.cfg.logger.Warn("run history save failed",
			"run_id", res.RunID, "error", err.Error())
	}
}

// ValidateDocument re-validates an existing output document.
func ValidateDocument(data []byte, strict bool) (*validate.Report, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}

	var opts []validate.Option
	if strict {
		opts = append(opts, validate.Strict())
	}
	return validate.New(opts...).Validate(doc.Target()), nil
}

func blockingIssues(report *validate.Report) []validate.Issue {
	issues := report.Errors()
	if report.Strict {
		issues = append(issues, report.Warnings()...)
	}
	return issues
}

func strategyName(res *Result) string {
	if res == nil {
		return ""
	}
	return res.Strategy
}

func nodeCount(res *Result) int {
	if res.Document == nil {
		return 0
	}
	return len(res.Document.FlowDefinition.Flow.Nodes)
}

func openIssues(res *Result) int {
	if res.Report == nil {
		return 0
	}
	return len(res.Report.Issues)
}
