package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

var (
	apiBlockHeadingRe = regexp.MustCompile(`(?m)^#{3,6}\s*(.+)$`)
	apiFieldRe        = regexp.MustCompile(`(?mi)^\s*(?:[-*]\s*)?\*{0,2}(method|endpoint|url|path|description|purpose)\*{0,2}\s*:\s*(.+)$`)
	paramItemRe       = regexp.MustCompile("^`?([A-Za-z_][A-Za-z0-9_]*)`?\\s*(?:\\(([^)]+)\\))?\\s*(?:[:\\-–—]\\s*(.+))?$")
	extractionRe      = regexp.MustCompile("`?([a-z_][a-z0-9_]*)`?\\s*(?:<-|←|=)\\s*`?(response[.\\w\\[\\]]*|[.\\w\\[\\]]+)`?")
	errorCodeRe       = regexp.MustCompile(`^\*{0,2}(\d{3}|\w+_error|timeout)\*{0,2}\s*[:\-–—]\s*(.+)$`)
)

// APIs parses tabular or prose API sections into API records. Display
// names are normalized to snake_case function names; entries without an
// explicit method default to POST. Response extraction paths are
// normalized to jq queries; paths that do not parse are dropped with a
// warning rather than aborting extraction.
func APIs(text string) ([]model.API, []string) {
	var apis []model.API
	var warnings []string
	index := make(map[string]bool)

	add := func(a model.API) {
		if a.FunctionName == "" || index[a.FunctionName] {
			return
		}
		index[a.FunctionName] = true
		apis = append(apis, a)
	}

	section := findSection(text, "apis", "api", "api endpoints", "integrations", "backend apis", "external apis", "tools")
	if section == "" {
		return nil, nil
	}

	for _, tbl := range parseTables(section) {
		nameCol := columnIndex(tbl.headers, "name", "api", "tool")
		if nameCol < 0 {
			continue
		}
		methodCol := columnIndex(tbl.headers, "method", "verb")
		endpointCol := columnIndex(tbl.headers, "endpoint", "url", "path")
		descCol := columnIndex(tbl.headers, "description", "purpose")

		for _, row := range tbl.rows {
			name := cell(row, nameCol)
			if name == "" {
				continue
			}
			add(model.API{
				Name:         name,
				FunctionName: flow.Snake(name),
				Method:       model.HTTPMethodFromString(cell(row, methodCol)),
				Endpoint:     cell(row, endpointCol),
				Description:  cell(row, descCol),
			})
		}
	}

	// Prose blocks: "### Name" followed by field lines and sub-lists.
	headings := apiBlockHeadingRe.FindAllStringSubmatchIndex(section, -1)
	for i, m := range headings {
		end := len(section)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		name := cleanTitle(section[m[2]:m[3]])
		block := section[m[1]:end]

		a, blockWarnings := parseAPIBlock(name, block)
		warnings = append(warnings, blockWarnings...)
		add(a)
	}

	return apis, warnings
}

func parseAPIBlock(name, block string) (model.API, []string) {
	a := model.API{
		Name:         name,
		FunctionName: flow.Snake(name),
		Method:       model.MethodPost,
	}
	var warnings []string

	for _, m := range apiFieldRe.FindAllStringSubmatch(block, -1) {
		value := strings.TrimSpace(strings.Trim(m[2], "`* "))
		switch strings.ToLower(m[1]) {
		case "method":
			a.Method = model.HTTPMethodFromString(value)
		case "endpoint", "url", "path":
			a.Endpoint = value
		case "description", "purpose":
			if a.Description == "" {
				a.Description = value
			}
		}
	}

	for _, item := range listItems(findSection(block, "parameters", "params", "request parameters", "inputs")) {
		if p, ok := parseParamItem(item); ok {
			a.Parameters = append(a.Parameters, p)
		}
	}

	extractionSection := findSection(block, "response", "extractions", "extract", "outputs", "returns")
	for _, item := range listItems(extractionSection) {
		ex, ok, warn := parseExtraction(item)
		if warn != "" {
			warnings = append(warnings, fmt.Sprintf("api %s: %s", a.FunctionName, warn))
		}
		if ok {
			a.Extractions = append(a.Extractions, ex)
		}
	}

	for _, item := range listItems(findSection(block, "errors", "error codes", "error handling")) {
		if m := errorCodeRe.FindStringSubmatch(item); m != nil {
			a.Errors = append(a.Errors, model.ErrorHandler{
				Code:   m[1],
				Action: strings.TrimSpace(m[2]),
			})
		}
	}

	return a, warnings
}

func parseParamItem(item string) (model.Param, bool) {
	m := paramItemRe.FindStringSubmatch(item)
	if m == nil {
		return model.Param{}, false
	}

	p := model.Param{
		Name:        strings.TrimSpace(m[1]),
		Type:        model.TypeString,
		Description: strings.TrimSpace(m[3]),
	}
	for _, qualifier := range strings.Split(m[2], ",") {
		q := strings.ToLower(strings.TrimSpace(qualifier))
		switch {
		case q == "":
		case q == "required" || q == "mandatory":
			p.Required = true
		case q == "optional":
		default:
			p.Type = model.VariableTypeFromString(q)
		}
	}
	return p, true
}

// parseExtraction parses "variable <- response.path" items, normalizing
// the path to a jq query and rejecting paths gojq cannot parse.
func parseExtraction(item string) (model.Extraction, bool, string) {
	m := extractionRe.FindStringSubmatch(item)
	if m == nil {
		return model.Extraction{}, false, ""
	}

	variable := m[1]
	path, err := normalizePath(m[2])
	if err != nil {
		return model.Extraction{}, false,
			fmt.Sprintf("dropping extraction for %s: %v", variable, err)
	}

	return model.Extraction{Path: path, Variable: variable}, true, ""
}

// normalizePath converts a dotted response path ("response.order.eta")
// into a jq query (".order.eta") and validates it with gojq.
func normalizePath(raw string) (string, error) {
	path := strings.TrimSpace(raw)
	path = strings.TrimPrefix(path, "response")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		path = "."
	} else {
		path = "." + path
	}

	if _, err := gojq.Parse(path); err != nil {
		return "", fmt.Errorf("invalid response path %q: %w", raw, err)
	}
	return path, nil
}
