package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/model"
)

var (
	ruleIDRe     = regexp.MustCompile(`\bBR-?\d+\b`)
	ruleLabelRe  = regexp.MustCompile(`(?m)^\s*(?:[-*]\s*)?\*{0,2}(BR-?\d+)\*{0,2}\s*[:\-–—]\s*(.+)$`)
	ifThenRe     = regexp.MustCompile(`(?i)^if\s+(.+?)(?:,\s*then\s+|\s+then\s+|,\s*)(.+)$`)
	arrowSplitRe = regexp.MustCompile(`\s*(?:->|→|⇒)\s*`)
)

// Rules parses business-rule tables, labeled rule lines, and
// "if X, then Y" prose into BusinessRule records. Table rows earlier in
// the document get higher priority. Rules without an explicit id are
// numbered sequentially after the last explicit one.
func Rules(text string) []model.BusinessRule {
	var rules []model.BusinessRule
	seen := make(map[string]bool)

	add := func(r model.BusinessRule) {
		if r.ID == "" || seen[r.ID] || r.Condition == "" {
			return
		}
		seen[r.ID] = true
		rules = append(rules, r)
	}

	section := findSection(text, "business rules", "rules", "policies", "constraints")
	if section == "" {
		return nil
	}

	for _, tbl := range parseTables(section) {
		idCol := columnIndex(tbl.headers, "id", "rule")
		condCol := columnIndex(tbl.headers, "condition", "if", "trigger", "when")
		actionCol := columnIndex(tbl.headers, "action", "then", "behavior", "outcome")
		appliesCol := columnIndex(tbl.headers, "applies", "feature", "scope")
		if condCol < 0 || actionCol < 0 {
			continue
		}

		for i, row := range tbl.rows {
			id := normalizeRuleID(cell(row, idCol))
			if id == "" {
				id = fmt.Sprintf("BR-%02d", len(rules)+1)
			}
			add(model.BusinessRule{
				ID:        id,
				Condition: cell(row, condCol),
				Action:    cell(row, actionCol),
				AppliesTo: featureIDs(cell(row, appliesCol)),
				Priority:  len(tbl.rows) - i,
			})
		}
	}

	// Labeled lines: "BR-01: condition -> action".
	for _, m := range ruleLabelRe.FindAllStringSubmatch(section, -1) {
		id := normalizeRuleID(m[1])
		condition, action := splitRuleBody(m[2])
		add(model.BusinessRule{
			ID:        id,
			Condition: condition,
			Action:    action,
			AppliesTo: featureIDs(m[2]),
			Priority:  1,
		})
	}

	// Unlabeled prose: "If X, then Y" list items.
	for _, item := range listItems(section) {
		if ruleIDRe.MatchString(item) {
			continue
		}
		if m := ifThenRe.FindStringSubmatch(item); m != nil {
			add(model.BusinessRule{
				ID:        fmt.Sprintf("BR-%02d", len(rules)+1),
				Condition: strings.TrimSpace(m[1]),
				Action:    strings.TrimSpace(strings.TrimSuffix(m[2], ".")),
				AppliesTo: featureIDs(item),
				Priority:  1,
			})
		}
	}

	return rules
}

// splitRuleBody separates "condition -> action" or "if X then Y" bodies.
func splitRuleBody(body string) (condition, action string) {
	if parts := arrowSplitRe.Split(body, 2); len(parts) == 2 {
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	if m := ifThenRe.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return strings.TrimSpace(body), ""
}

func normalizeRuleID(s string) string {
	m := ruleIDRe.FindString(s)
	if m == "" {
		return ""
	}
	digits := strings.TrimLeft(strings.ToUpper(m), "BR-")
	n := 0
	for _, r := range digits {
		n = n*10 + int(r-'0')
	}
	return fmt.Sprintf("BR-%02d", n)
}

// ruleIDs collects normalized rule ids mentioned in a block.
func ruleIDs(text string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, raw := range ruleIDRe.FindAllString(text, -1) {
		id := normalizeRuleID(raw)
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
