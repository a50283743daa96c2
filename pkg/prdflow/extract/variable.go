package extract

import (
	"regexp"
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

var (
	varListItemRe = regexp.MustCompile("^\\*{0,2}`?([A-Za-z_][A-Za-z0-9_ -]*?)`?\\*{0,2}\\s*(?:\\(([^)]+)\\))?\\s*[:\\-–—]\\s*(.+)$")

	// Inline tokens that are vocabulary, not variable references.
	refStopwords = map[string]bool{
		"true": true, "false": true, "null": true, "json": true,
		"api": true, "http": true, "https": true, "get": true,
		"post": true, "put": true, "delete": true, "patch": true,
		"string": true, "number": true, "boolean": true, "object": true,
		"array": true, "int": true, "bool": true, "yes": true, "no": true,
		"response": true, "request": true, "error": true, "ok": true,
	}
)

// Variables merges two sources of variable definitions: explicit
// declarations in tables or lists under a Variables section, and inline
// template references anywhere in the text. Declarations are collected
// first and win on conflicting type or source; inline-only references
// default to type string, source collect, and are marked deducible.
func Variables(text string) []model.Variable {
	var vars []model.Variable
	index := make(map[string]int)

	add := func(v model.Variable) {
		if v.Name == "" {
			return
		}
		if _, exists := index[v.Name]; exists {
			return
		}
		index[v.Name] = len(vars)
		vars = append(vars, v)
	}

	section := findSection(text, "variables", "data variables", "collected data", "data model", "data fields")

	for _, tbl := range parseTables(section) {
		nameCol := columnIndex(tbl.headers, "name", "variable", "field")
		if nameCol < 0 {
			continue
		}
		typeCol := columnIndex(tbl.headers, "type")
		sourceCol := columnIndex(tbl.headers, "source", "origin")
		requiredCol := columnIndex(tbl.headers, "required", "mandatory")
		descCol := columnIndex(tbl.headers, "description", "purpose", "notes")
		defaultCol := columnIndex(tbl.headers, "default")
		optionsCol := columnIndex(tbl.headers, "options", "values", "allowed")

		for _, row := range tbl.rows {
			name := flow.Snake(cell(row, nameCol))
			if name == "" {
				continue
			}
			v := model.Variable{
				Name:        name,
				Type:        model.VariableTypeFromString(cell(row, typeCol)),
				Source:      model.VariableSourceFromString(cell(row, sourceCol)),
				Required:    truthy(cell(row, requiredCol)),
				Description: cell(row, descCol),
				Mode:        model.ModeExplicit,
			}
			if d := cell(row, defaultCol); d != "" && d != "-" {
				v.Default = d
			}
			if opts := cell(row, optionsCol); opts != "" && opts != "-" {
				v.Options = splitOptions(opts)
			}
			add(v)
		}
	}

	// List-style declarations: "- name (type): description".
	if len(parseTables(section)) == 0 {
		for _, item := range listItems(section) {
			if v, ok := parseVarListItem(item); ok {
				add(v)
			}
		}
	}

	// Inline references across the whole document.
	for _, name := range inlineRefs(text) {
		add(model.Variable{
			Name:   name,
			Type:   model.TypeString,
			Source: model.SourceCollect,
			Mode:   model.ModeDeducible,
		})
	}

	return vars
}

// parseVarListItem parses one list-declared variable of the form
// "name (type, required): description" or "name - description".
func parseVarListItem(item string) (model.Variable, bool) {
	m := varListItemRe.FindStringSubmatch(item)
	if m == nil {
		return model.Variable{}, false
	}

	v := model.Variable{
		Name:        flow.Snake(strings.TrimSpace(m[1])),
		Type:        model.TypeString,
		Source:      model.SourceCollect,
		Description: strings.TrimSpace(m[3]),
		Mode:        model.ModeExplicit,
	}
	if v.Name == "" {
		return model.Variable{}, false
	}

	for _, qualifier := range strings.Split(m[2], ",") {
		q := strings.ToLower(strings.TrimSpace(qualifier))
		switch {
		case q == "":
		case q == "required" || q == "mandatory":
			v.Required = true
		case q == "optional":
		case q == "user" || q == "collect" || q == "tool":
			v.Source = model.VariableSourceFromString(q)
		default:
			v.Type = model.VariableTypeFromString(q)
		}
	}

	return v, true
}

// inlineRefs scans for {{name}}, ${name}, and `name` template tokens,
// filtering vocabulary words, and returns names in first-seen order.
func inlineRefs(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range inlineVarRe.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			name := strings.ToLower(g)
			if refStopwords[name] || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func splitOptions(s string) []string {
	var opts []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '/' || r == ';' }) {
		part = strings.Trim(strings.TrimSpace(part), "`\"'")
		if part != "" {
			opts = append(opts, part)
		}
	}
	return opts
}
