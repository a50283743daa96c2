package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

// ErrEmptyDocument is the only extraction-time fatal condition: input
// with no content at all.
var ErrEmptyDocument = errors.New("document is empty")

// Assistant optionally assists extraction when rule-based segmentation
// finds nothing. Implementations are expected to be side-effect-free
// request/response collaborators.
type Assistant interface {
	Generate(ctx context.Context, prompt, contextText string) (string, error)
}

// Parser orchestrates the extractors into one parsed Document.
type Parser struct {
	logger    *slog.Logger
	assistant Assistant
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) { p.logger = logger }
}

// WithAssistant sets the optional extraction assistant.
func WithAssistant(a Assistant) ParserOption {
	return func(p *Parser) { p.assistant = a }
}

// NewParser creates a parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse runs the extraction pipeline over raw document text. Extraction
// issues never abort the parse; they surface as warnings on the
// document. Only empty input fails.
func (p *Parser) Parse(ctx context.Context, text string) (*model.Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	doc := &model.Document{Raw: text}

	doc.Metadata = Metadata(text)
	if doc.Metadata.Name == "" {
		doc.Metadata.Name = "Unnamed Agent"
		warn(doc, "could not extract agent name, using default")
	}

	doc.Features = Features(text)
	if len(doc.Features) == 0 && p.assistant != nil {
		p.assistParse(ctx, doc)
	}
	if len(doc.Features) == 0 {
		warn(doc, "no features found in document")
	}

	doc.Variables = Variables(text)

	apis, apiWarnings := APIs(text)
	doc.APIs = apis
	for _, w := range apiWarnings {
		warn(doc, w)
	}

	doc.Rules = Rules(text)

	p.crossReference(doc)

	if p.logger != nil {
		p.logger.Info("document parsed",
			slog.String("name", doc.Metadata.Name),
			slog.Int("features", len(doc.Features)),
			slog.Int("variables", len(doc.Variables)),
			slog.Int("apis", len(doc.APIs)),
			slog.Int("rules", len(doc.Rules)),
			slog.String("complexity", string(doc.ComplexityTier())),
		)
	}

	return doc, nil
}

// crossReference prunes feature references down to records that
// actually exist elsewhere in the document.
func (p *Parser) crossReference(doc *model.Document) {
	varNames := make(map[string]bool, len(doc.Variables))
	for _, v := range doc.Variables {
		varNames[v.Name] = true
	}
	apiNames := make(map[string]bool, len(doc.APIs))
	for _, a := range doc.APIs {
		apiNames[a.FunctionName] = true
		apiNames[strings.ToLower(a.Name)] = true
	}
	ruleIDs := make(map[string]bool, len(doc.Rules))
	for _, r := range doc.Rules {
		ruleIDs[r.ID] = true
	}

	for i := range doc.Features {
		f := &doc.Features[i]

		f.VariablesUsed = keep(f.VariablesUsed, func(name string) bool {
			return varNames[name]
		})
		f.APIsUsed = keep(f.APIsUsed, func(name string) bool {
			return apiNames[name] || apiNames[strings.ToLower(name)] || apiNames[flow.Snake(name)]
		})
		f.RulesApplied = keep(f.RulesApplied, func(id string) bool {
			return ruleIDs[id]
		})
		f.Dependencies = keep(f.Dependencies, func(id string) bool {
			return id != f.ID && doc.FeatureByID(id) != nil
		})
	}

	// Rules pointing at unknown features lose those targets; surviving
	// targets are mirrored onto the feature's applied-rules list.
	for i := range doc.Rules {
		r := &doc.Rules[i]
		r.AppliesTo = keep(r.AppliesTo, func(id string) bool {
			return doc.FeatureByID(id) != nil
		})
		for _, id := range r.AppliesTo {
			f := doc.FeatureByID(id)
			if f != nil && !contains(f.RulesApplied, r.ID) {
				f.RulesApplied = append(f.RulesApplied, r.ID)
			}
		}
	}
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

// assistParse asks the assistant for a single-shot structured parse and
// merges whatever valid records come back. Assistant failures are
// warnings, not errors.
func (p *Parser) assistParse(ctx context.Context, doc *model.Document) {
	response, err := p.assistant.Generate(ctx, assistPrompt, doc.Raw)
	if err != nil {
		warn(doc, fmt.Sprintf("extraction assistant failed: %v", err))
		return
	}

	var parsed struct {
		Features []struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			Description string   `json:"description"`
			Steps       []string `json:"steps"`
		} `json:"features"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		warn(doc, fmt.Sprintf("extraction assistant returned invalid JSON: %v", err))
		return
	}

	for _, f := range parsed.Features {
		id := model.NormalizeFeatureID(f.ID)
		if id == "" {
			id = fmt.Sprintf("F-%02d", len(doc.Features)+1)
		}
		feature := model.Feature{
			ID:          id,
			Name:        f.Name,
			Description: f.Description,
			Channel:     doc.Metadata.Channel,
		}
		for i, step := range f.Steps {
			feature.Steps = append(feature.Steps, classifyStep(i+1, step))
		}
		doc.Features = append(doc.Features, feature)
	}
	doc.Features = dedupeFeatures(doc.Features)

	if p.logger != nil {
		p.logger.Debug("assistant contributed features",
			slog.Int("count", len(parsed.Features)))
	}
}

// extractJSON pulls the outermost JSON object out of a response that
// may be wrapped in prose or a code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func keep(items []string, pred func(string) bool) []string {
	out := items[:0]
	for _, item := range items {
		if pred(item) {
			out = append(out, item)
		}
	}
	return out
}

func warn(doc *model.Document, msg string) {
	doc.Warnings = append(doc.Warnings, msg)
}

const assistPrompt = `You segment product-requirements documents into features.
Return ONLY a JSON object of the form:
{"features": [{"id": "F-01", "name": "...", "description": "...", "steps": ["...", "..."]}]}
Each step is one conversational action in order.`
