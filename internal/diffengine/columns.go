package diffengine

import (
	"fmt"
	"strings"
)

// column pairs a parsed name with its full textual definition, keeping
// insertion order alongside the lookup map so iteration stays deterministic
// (the diff walks the source columns first, then the target columns, in
// a stable order — a Go map's randomized iteration cannot provide that on
// its own).
type column struct {
	name string
	def  string
}

// columnDiffScripts performs the column-level ALTER TABLE diff:
// ADD for source-only columns, DROP COLUMN for target-only columns, MODIFY
// for shared columns whose definitions differ, emitted in that order.
func columnDiffScripts(owner, table, sourceDDL, targetDDL string) []string {
	sourceCols := parseColumns(sourceDDL)
	targetCols := parseColumns(targetDDL)

	targetByName := make(map[string]string, len(targetCols))
	for _, c := range targetCols {
		targetByName[c.name] = c.def
	}
	sourceByName := make(map[string]string, len(sourceCols))
	for _, c := range sourceCols {
		sourceByName[c.name] = c.def
	}

	var scripts []string
	qualified := fmt.Sprintf("%s.%s", owner, table)

	for _, c := range sourceCols {
		if _, ok := targetByName[c.name]; !ok {
			scripts = append(scripts, fmt.Sprintf("ALTER TABLE %s ADD %s", qualified, c.def))
		}
	}
	for _, c := range targetCols {
		if _, ok := sourceByName[c.name]; !ok {
			scripts = append(scripts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %q", qualified, c.name))
		}
	}
	for _, c := range sourceCols {
		targetDef, ok := targetByName[c.name]
		if !ok {
			continue
		}
		if targetDef != c.def {
			scripts = append(scripts, fmt.Sprintf("ALTER TABLE %s MODIFY %s", qualified, c.def))
		}
	}

	return scripts
}

// parseColumns extracts column definitions from a CREATE TABLE statement's
// outermost parenthesized list, in source order, skipping constraint and
// index clauses.
func parseColumns(ddl string) []column {
	body, ok := extractParenBody(ddl)
	if !ok {
		return nil
	}

	var cols []column
	for _, entry := range splitTopLevelCommas(body) {
		entry = strings.TrimSpace(entry)
		if entry == "" || isConstraintLine(entry) {
			continue
		}
		if c, ok := parseColumn(entry); ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// extractParenBody returns the text between the first '(' and the last
// ')' in ddl.
func extractParenBody(ddl string) (string, bool) {
	first := strings.Index(ddl, "(")
	last := strings.LastIndex(ddl, ")")
	if first < 0 || last < 0 || last <= first {
		return "", false
	}
	return ddl[first+1 : last], true
}

// splitTopLevelCommas splits body on commas that are not nested inside
// parentheses.
func splitTopLevelCommas(body string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, body[start:])
	return parts
}

var constraintPrefixes = []string{"CONSTRAINT", "PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "INDEX"}

// isConstraintLine reports whether entry's first token marks it as a
// constraint/index clause rather than a column definition.
func isConstraintLine(entry string) bool {
	trimmed := strings.TrimSpace(entry)
	if strings.HasPrefix(trimmed, "--") {
		return true
	}
	firstToken := firstField(trimmed)
	upper := strings.ToUpper(firstToken)
	for _, prefix := range constraintPrefixes {
		if upper == prefix {
			return true
		}
	}
	return false
}

// parseColumn extracts a column's name (first whitespace token, quotes
// stripped) and keeps the full definition text. Entries
// with fewer than two tokens are discarded.
func parseColumn(entry string) (column, bool) {
	trimmed := strings.TrimSpace(entry)
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return column{}, false
	}
	name := strings.Trim(fields[0], `"`)
	return column{name: name, def: trimmed}, true
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
