// Package extract implements the extraction pipeline: stateless
// extractors over raw document text producing the typed records of the
// parsed model, and the Parser that orchestrates them.
package extract

import (
	"regexp"
	"strings"
)

var (
	headingRe     = regexp.MustCompile(`(?m)^(#{1,6})\s*(.+)$`)
	listItemRe    = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+(.+)$`)
	boldLabelRe   = regexp.MustCompile(`(?m)^\*\*([^*]+)\*\*:?\s*$`)
	inlineLabelRe = regexp.MustCompile(`(?m)^\*\*([^*]+)\*\*\s*:\s*(.+)$`)
	tableRowRe    = regexp.MustCompile(`(?m)^\s*\|(.+)\|\s*$`)
	separatorRe   = regexp.MustCompile(`^[\s:|-]+$`)
)

// findSection returns the body of the first sub-section whose heading
// (markdown heading or bold label line) matches one of the given names,
// case-insensitively. The body runs until the next heading of the same
// or higher level, or the next bold label. Returns "" when no section
// matches.
func findSection(block string, names ...string) string {
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}

	matches := headingRe.FindAllStringSubmatchIndex(block, -1)
	for _, m := range matches {
		level := m[3] - m[2]
		title := normalizeHeading(block[m[4]:m[5]])
		if !matchesAny(title, lowered) {
			continue
		}

		body := block[m[1]:]
		// Cut at the next heading with level <= this one.
		end := len(body)
		for _, nm := range headingRe.FindAllStringSubmatchIndex(body, -1) {
			if nm[3]-nm[2] <= level {
				end = nm[0]
				break
			}
		}
		return strings.TrimSpace(body[:end])
	}

	// Bold labels double as section markers in loosely formatted input.
	boldMatches := boldLabelRe.FindAllStringSubmatchIndex(block, -1)
	for i, m := range boldMatches {
		title := normalizeHeading(block[m[2]:m[3]])
		if !matchesAny(title, lowered) {
			continue
		}
		body := block[m[1]:]
		end := len(body)
		if hm := headingRe.FindStringIndex(body); hm != nil {
			end = hm[0]
		}
		if i+1 < len(boldMatches) {
			if next := boldMatches[i+1][0] - m[1]; next < end {
				end = next
			}
		}
		return strings.TrimSpace(body[:end])
	}

	// Inline labels ("**Dependencies**: F-01") carry their value on the
	// same line.
	for _, m := range inlineLabelRe.FindAllStringSubmatch(block, -1) {
		if matchesAny(normalizeHeading(m[1]), lowered) {
			return strings.TrimSpace(m[2])
		}
	}

	return ""
}

// normalizeHeading strips markdown emphasis and trailing colons from a
// heading title.
func normalizeHeading(title string) string {
	title = strings.Trim(title, " \t*_")
	title = strings.TrimSuffix(title, ":")
	return strings.ToLower(strings.TrimSpace(title))
}

func matchesAny(title string, names []string) bool {
	for _, n := range names {
		if title == n || strings.HasPrefix(title, n+" ") || strings.HasPrefix(title, n+":") {
			return true
		}
	}
	return false
}

// listItems returns the text of every bullet or numbered list item in
// the block, in document order.
func listItems(block string) []string {
	var items []string
	for _, m := range listItemRe.FindAllStringSubmatch(block, -1) {
		item := strings.TrimSpace(m[1])
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// table holds one parsed markdown pipe table.
type table struct {
	headers []string
	rows    [][]string
}

// parseTables extracts every markdown table in the block. Separator
// rows (|---|---|) delimit the header from the body.
func parseTables(block string) []table {
	var tables []table
	var current *table

	for _, line := range strings.Split(block, "\n") {
		m := tableRowRe.FindStringSubmatch(line)
		if m == nil {
			current = nil
			continue
		}
		cells := splitCells(m[1])

		if isSeparatorRow(cells) {
			continue
		}

		if current == nil {
			tables = append(tables, table{headers: lowerAll(cells)})
			current = &tables[len(tables)-1]
			continue
		}
		current.rows = append(current.rows, cells)
	}

	return tables
}

func splitCells(row string) []string {
	parts := strings.Split(row, "|")
	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.Trim(strings.TrimSpace(p), "*`"))
	}
	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if c != "" && !separatorRe.MatchString(c) {
			return false
		}
	}
	return true
}

func lowerAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ToLower(c)
	}
	return out
}

// columnIndex finds the index of the first header containing any of the
// given keywords, or -1.
func columnIndex(headers []string, keywords ...string) int {
	for i, h := range headers {
		for _, k := range keywords {
			if strings.Contains(h, k) {
				return i
			}
		}
	}
	return -1
}

// cell safely indexes a row, returning "" when the column is absent.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// truthy interprets common yes/no cell values.
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "required", "✓", "✔", "1", "כן":
		return true
	}
	return false
}

// firstParagraph returns the text up to the first blank line, with
// markdown emphasis stripped.
func firstParagraph(block string) string {
	block = strings.TrimSpace(block)
	if idx := strings.Index(block, "\n\n"); idx >= 0 {
		block = block[:idx]
	}
	return strings.TrimSpace(strings.ReplaceAll(block, "**", ""))
}
