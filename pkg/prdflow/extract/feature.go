package extract

import (
	"regexp"
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/flow"
	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

var (
	featureHeadingRe = regexp.MustCompile(`(?m)^#{1,6}\s*\**\s*(?:Feature\s+)?(F-?\d+)\**[.:\s-]+\s*(.+)$`)
	featureIDRe      = regexp.MustCompile(`\bF-?\d+\b`)
	inlineVarRe      = regexp.MustCompile("\\{\\{\\s*([A-Za-z_][A-Za-z0-9_]*)\\s*\\}\\}|\\$\\{([A-Za-z_][A-Za-z0-9_]*)\\}|`([a-z_][a-z0-9_]*)`")
	quotedNameRe     = regexp.MustCompile("[\"“”']([^\"“”']+)[\"“”']|`([^`]+)`")
	collectTargetRe  = regexp.MustCompile(`(?i)(?:collect|ask(?:s)?\s+for|request|gather|prompt\s+for)\s+(?:the\s+|their\s+|a\s+|customer(?:'s)?\s+)?([a-zA-Z ]{2,40})`)
	apiTargetRe      = regexp.MustCompile(`(?i)(?:call|invoke|query|use)\s+(?:the\s+)?([A-Za-z_ ]{2,40}?)\s*(?:API|api|endpoint|service|tool)`)
)

// Features segments the document into feature blocks at headings
// carrying a feature-id marker, then parses each block's sub-sections
// into a Feature record. Blocks run until the next feature heading.
func Features(text string) []model.Feature {
	matches := featureHeadingRe.FindAllStringSubmatchIndex(text, -1)
	features := make([]model.Feature, 0, len(matches))

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		id := model.NormalizeFeatureID(text[m[2]:m[3]])
		if id == "" {
			continue
		}
		name := cleanTitle(text[m[4]:m[5]])
		block := text[m[1]:end]

		f := parseFeatureBlock(id, name, block)
		features = append(features, f)
	}

	return dedupeFeatures(features)
}

func parseFeatureBlock(id, name, block string) model.Feature {
	f := model.Feature{
		ID:      id,
		Name:    name,
		Channel: featureChannel(name, block),
	}

	if desc := findSection(block, "description", "goal", "summary"); desc != "" {
		f.Description = firstParagraph(desc)
	} else {
		f.Description = firstParagraph(block)
	}

	f.Steps = parseFlowSteps(block)

	f.UserStories = listItems(findSection(block, "user stories", "user story", "stories"))
	f.AcceptanceCriteria = listItems(findSection(block, "acceptance criteria", "definition of done", "dod"))
	f.OpenQuestions = listItems(findSection(block, "open questions", "questions", "tbd"))
	f.Dependencies = featureIDs(findSection(block, "dependencies", "depends on", "requires"))
	f.RulesApplied = ruleIDs(block)

	f.VariablesUsed = featureVariables(block, f.Steps)
	f.APIsUsed = featureAPIs(f.Steps, block)

	return f
}

// parseFlowSteps parses the feature's flow as an ordered list of
// classified steps. Audio- and text-flavored flow variants describe the
// same logical steps; the audio variant wins when both are present.
func parseFlowSteps(block string) []model.FlowStep {
	section := findSection(block, "flow (audio)", "audio flow", "voice flow")
	if strings.TrimSpace(section) == "" {
		section = findSection(block, "flow (text)", "text flow", "chat flow")
	}
	if strings.TrimSpace(section) == "" {
		section = findSection(block, "flow", "conversation flow", "steps", "happy path")
	}
	if strings.TrimSpace(section) == "" {
		return nil
	}

	items := listItems(section)
	steps := make([]model.FlowStep, 0, len(items))
	for i, item := range items {
		steps = append(steps, classifyStep(i+1, item))
	}
	return steps
}

// classifyStep maps a flow list item to a typed step using
// keyword/phrase heuristics. The first matching family wins, checked
// in a fixed order so classification stays deterministic.
func classifyStep(order int, text string) model.FlowStep {
	step := model.FlowStep{
		Order:       order,
		Description: strings.TrimSpace(strings.ReplaceAll(text, "**", "")),
	}
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, []string{"collect", "ask for", "asks for", "ask the", "request the", "gather", "prompt for"}):
		step.Type = model.StepCollect
		step.VariableName = stepVariable(text)

	case containsAny(lower, []string{"call ", "calls ", "invoke", "api", "fetch", "look up", "lookup", "query the"}):
		step.Type = model.StepAPICall
		step.APIName = stepAPI(text)

	case containsAny(lower, []string{"if ", "when ", "check whether", "check if", "branch", "otherwise", "depending on"}):
		step.Type = model.StepCondition
		step.Condition = stepCondition(text)

	case containsAny(lower, []string{"transfer", "escalate", "hand off", "handoff", "human agent", "live agent"}):
		step.Type = model.StepTransfer

	case containsAny(lower, []string{"set ", "store", "save", "record the", "mark "}):
		step.Type = model.StepSetVariable
		step.VariableName = stepVariable(text)

	case containsAny(lower, []string{"end the", "end call", "end conversation", "goodbye", "farewell", "wrap up", "close the conversation", "thank the customer and end"}):
		step.Type = model.StepEnd

	default:
		step.Type = model.StepConversation
	}

	return step
}

// stepVariable finds the variable a step refers to: an inline template
// reference when present, otherwise a snake_case name derived from the
// collected noun phrase.
func stepVariable(text string) string {
	if name := firstInlineRef(text); name != "" {
		return name
	}
	if m := collectTargetRe.FindStringSubmatch(text); m != nil {
		phrase := strings.TrimSpace(m[1])
		words := strings.Fields(phrase)
		if len(words) > 3 {
			words = words[:3]
		}
		return flow.Snake(strings.Join(words, " "))
	}
	return ""
}

// stepAPI finds the API a step calls: a quoted or backticked name when
// present, otherwise the phrase preceding "API"/"endpoint".
func stepAPI(text string) string {
	if m := quotedNameRe.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				return strings.TrimSpace(g)
			}
		}
	}
	if m := apiTargetRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// stepCondition isolates the condition clause of an "if X, then Y" step.
func stepCondition(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range []string{"if ", "when "} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		clause := text[idx+len(marker):]
		for _, stop := range []string{", then", " then ", ",", ":", ";"} {
			if cut := strings.Index(strings.ToLower(clause), stop); cut >= 0 {
				clause = clause[:cut]
			}
		}
		return strings.TrimSpace(clause)
	}
	return strings.TrimSpace(text)
}

func firstInlineRef(text string) string {
	for _, m := range inlineVarRe.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g != "" {
				return g
			}
		}
	}
	return ""
}

func featureVariables(block string, steps []model.FlowStep) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, s := range steps {
		add(s.VariableName)
	}
	for _, m := range inlineVarRe.FindAllStringSubmatch(block, -1) {
		for _, g := range m[1:] {
			add(g)
		}
	}
	for _, item := range listItems(findSection(block, "variables used", "variables", "data used")) {
		if name := firstInlineRef(item); name != "" {
			add(name)
		} else if fields := strings.Fields(item); len(fields) > 0 {
			add(flow.Snake(strings.Trim(fields[0], "*`:,")))
		}
	}
	return names
}

func featureAPIs(steps []model.FlowStep, block string) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, s := range steps {
		add(s.APIName)
	}
	for _, item := range listItems(findSection(block, "apis used", "apis", "integrations used")) {
		add(strings.Trim(strings.Fields(item)[0], "*`:,"))
	}
	return names
}

func featureChannel(name, block string) model.Channel {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "(voice)"):
		return model.ChannelVoice
	case strings.Contains(lower, "(text)"), strings.Contains(lower, "(chat)"):
		return model.ChannelText
	}
	return model.ChannelBoth
}

func featureIDs(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, raw := range featureIDRe.FindAllString(text, -1) {
		id := model.NormalizeFeatureID(raw)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func dedupeFeatures(features []model.Feature) []model.Feature {
	seen := make(map[string]bool)
	out := features[:0]
	for _, f := range features {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		out = append(out, f)
	}
	return out
}
