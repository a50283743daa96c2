// Package model defines the intermediate representation produced by the
// extraction pipeline: agent metadata, features with ordered flow steps,
// variables, API definitions, and business rules. The Document is built
// once per run and is immutable afterwards.
package model

import (
	"fmt"
	"strings"
)

// Metadata describes the agent the document specifies.
type Metadata struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Language    string  `json:"language"` // "he-IL" or "en-US"
	Channel     Channel `json:"channel"`
	Phase       string  `json:"phase,omitempty"`
}

// FlowStep is one ordered action within a feature's conversational flow.
type FlowStep struct {
	Order       int      `json:"order"`
	Type        StepType `json:"type"`
	Description string   `json:"description"`

	// Optional step payload, depending on Type.
	VariableName string `json:"variable_name,omitempty"`
	APIName      string `json:"api_name,omitempty"`
	Condition    string `json:"condition,omitempty"`
}

// Feature is a numbered requirement unit with its own flow.
type Feature struct {
	ID          string  `json:"id"` // pattern F-\d\d
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Channel     Channel `json:"channel"`
	Phase       string  `json:"phase,omitempty"`

	Steps []FlowStep `json:"steps"`

	VariablesUsed []string `json:"variables_used,omitempty"`
	APIsUsed      []string `json:"apis_used,omitempty"`
	RulesApplied  []string `json:"rules_applied,omitempty"`
	Dependencies  []string `json:"dependencies,omitempty"` // other feature ids

	UserStories        []string `json:"user_stories,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	OpenQuestions      []string `json:"open_questions,omitempty"`
}

// Variable is one flow variable, globally unique by name.
type Variable struct {
	Name        string         `json:"name"` // snake_case
	Type        VariableType   `json:"type"`
	Description string         `json:"description,omitempty"`
	Source      VariableSource `json:"source"`
	Required    bool           `json:"required"`
	Default     any            `json:"default,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Validation  []string       `json:"validation_rules,omitempty"`
	Mode        CollectionMode `json:"collection_mode,omitempty"`
}

// Param is one input parameter of an API definition.
type Param struct {
	Name        string       `json:"name"`
	Type        VariableType `json:"type"`
	Required    bool         `json:"required"`
	Description string       `json:"description,omitempty"`
}

// Extraction maps a response path to the variable that stores it.
type Extraction struct {
	Path     string `json:"path"` // jq-style path into the response
	Variable string `json:"variable"`
}

// ErrorHandler describes how a specific API error code is handled.
type ErrorHandler struct {
	Code   string `json:"code"`
	Action string `json:"action"`
}

// API is one external endpoint definition, globally unique by FunctionName.
type API struct {
	Name         string         `json:"name"`
	FunctionName string         `json:"function_name"` // snake_case tool identifier
	Description  string         `json:"description,omitempty"`
	Method       HTTPMethod     `json:"method"`
	Endpoint     string         `json:"endpoint,omitempty"`
	Parameters   []Param        `json:"parameters,omitempty"`
	Extractions  []Extraction   `json:"extractions,omitempty"`
	Errors       []ErrorHandler `json:"error_handlers,omitempty"`
}

// BusinessRule is a cross-feature condition/action pair.
type BusinessRule struct {
	ID        string   `json:"id"` // pattern BR-\d\d
	Condition string   `json:"condition"`
	Action    string   `json:"action"`
	AppliesTo []string `json:"applies_to,omitempty"` // feature ids
	Priority  int      `json:"priority"`
}

// Document is the parsed intermediate representation of one input document.
type Document struct {
	Raw        string `json:"-"`
	SourceFile string `json:"source_file,omitempty"`

	Metadata  Metadata       `json:"metadata"`
	Features  []Feature      `json:"features"`
	Variables []Variable     `json:"variables"`
	APIs      []API          `json:"apis"`
	Rules     []BusinessRule `json:"business_rules"`

	Warnings []string `json:"parse_warnings,omitempty"`
}

// FeatureByID returns the feature with the given id, or nil.
func (d *Document) FeatureByID(id string) *Feature {
	for i := range d.Features {
		if d.Features[i].ID == id {
			return &d.Features[i]
		}
	}
	return nil
}

// VariableByName returns the variable with the given name, or nil.
func (d *Document) VariableByName(name string) *Variable {
	for i := range d.Variables {
		if d.Variables[i].Name == name {
			return &d.Variables[i]
		}
	}
	return nil
}

// APIByFunctionName returns the API with the given function name, or nil.
func (d *Document) APIByFunctionName(name string) *API {
	for i := range d.APIs {
		if d.APIs[i].FunctionName == name {
			return &d.APIs[i]
		}
	}
	return nil
}

// TotalSteps returns the number of flow steps across all features.
func (d *Document) TotalSteps() int {
	n := 0
	for i := range d.Features {
		n += len(d.Features[i].Steps)
	}
	return n
}

// Summary returns a one-line description of the parsed document.
func (d *Document) Summary() string {
	return fmt.Sprintf("%s: %d features, %d variables, %d apis, %d rules (%s)",
		d.Metadata.Name, len(d.Features), len(d.Variables), len(d.APIs),
		len(d.Rules), d.ComplexityTier())
}

// HasHebrew reports whether s contains any character in the Hebrew
// Unicode block.
func HasHebrew(s string) bool {
	for _, r := range s {
		if r >= 0x0590 && r <= 0x05FF {
			return true
		}
	}
	return false
}

// NormalizeFeatureID canonicalizes feature id spellings ("F1", "f-1")
// to the two-digit F-NN form. Returns "" when no id is present.
func NormalizeFeatureID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	upper = strings.TrimPrefix(upper, "F-")
	upper = strings.TrimPrefix(upper, "F")
	n := 0
	for _, r := range upper {
		if r < '0' || r > '9' {
			return ""
		}
		n = n*10 + int(r-'0')
	}
	if upper == "" {
		return ""
	}
	return fmt.Sprintf("F-%02d", n)
}
