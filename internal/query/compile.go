package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/mdql/internal/apperr"
)

// ExpectedShape is shown to users whose query does not parse.
const ExpectedShape = "SELECT <columns> FROM <file> [WHERE <condition> [AND <condition>]...]"

var (
	selectRe = regexp.MustCompile(`(?is)^SELECT\s+(.+?)\s+FROM\s+(.+?)(?:\s+WHERE\s+(.+))?$`)
	andRe    = regexp.MustCompile(`(?i)\s+AND\s+`)
	likeRe   = regexp.MustCompile(`(?is)^(\w+)\s+LIKE\s+['"]%?(.+?)%?['"]$`)
	eqRe     = regexp.MustCompile(`(?s)^(\w+)\s*=\s*(.+)$`)
)

// DefaultColumns is what "*" expands to.
var DefaultColumns = []string{"status", "text", "section", "notes"}

// Compiled is a parsed mini-language query.
type Compiled struct {
	Columns []string
	// Source is the FROM path with quotes and any "::" suffix removed.
	Source string
	Filter Filter
}

// SyntaxError reports a query that could not be compiled.
type SyntaxError struct {
	Query string
	Msg   string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid query: %s (expected: %s)", e.Msg, ExpectedShape)
}

// Unwrap returns apperr.ErrQuerySyntax.
func (e *SyntaxError) Unwrap() error {
	return apperr.ErrQuerySyntax
}

// Compile parses q. Conditions that name no known predicate, or that match
// neither the LIKE nor the = form, are skipped. LIKE on a column other than
// text or notes is rejected.
func Compile(q string) (*Compiled, error) {
	q = strings.TrimSpace(q)
	m := selectRe.FindStringSubmatch(q)
	if m == nil {
		return nil, &SyntaxError{Query: q, Msg: "missing SELECT ... FROM ..."}
	}

	cols, err := parseColumns(strings.TrimSpace(m[1]))
	if err != nil {
		return nil, &SyntaxError{Query: q, Msg: err.Error()}
	}

	c := &Compiled{
		Columns: cols,
		Source:  parseSource(m[2]),
	}

	if where := strings.TrimSpace(m[3]); where != "" {
		for _, cond := range splitConditions(where) {
			if err := c.addCondition(strings.TrimSpace(cond)); err != nil {
				return nil, &SyntaxError{Query: q, Msg: err.Error()}
			}
		}
	}
	return c, nil
}

// splitConditions splits a WHERE clause on AND keywords that sit outside
// quoted literals.
func splitConditions(where string) []string {
	var parts []string
	start := 0
	for _, loc := range andRe.FindAllStringIndex(where, -1) {
		if inQuotes(where[start:loc[0]]) {
			continue
		}
		parts = append(parts, where[start:loc[0]])
		start = loc[1]
	}
	return append(parts, where[start:])
}

// inQuotes reports whether s leaves a '...' or "..." literal open.
func inQuotes(s string) bool {
	var open rune
	for _, r := range s {
		switch {
		case open == 0 && (r == '\'' || r == '"'):
			open = r
		case r == open:
			open = 0
		}
	}
	return open != 0
}

func parseColumns(s string) ([]string, error) {
	if s == "*" {
		return append([]string(nil), DefaultColumns...), nil
	}
	parts := strings.Split(s, ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return nil, fmt.Errorf("empty column name in %q", s)
		}
		cols = append(cols, p)
	}
	return cols, nil
}

func parseSource(s string) string {
	s = strings.NewReplacer(`"`, "", "'", "").Replace(s)
	s, _, _ = strings.Cut(s, "::")
	return strings.TrimSpace(s)
}

func (c *Compiled) addCondition(cond string) error {
	if m := likeRe.FindStringSubmatch(cond); m != nil {
		pattern := m[2]
		switch strings.ToLower(m[1]) {
		case "text":
			c.Filter.TextContains = &pattern
		case "notes":
			c.Filter.NotesContains = &pattern
		default:
			return fmt.Errorf("LIKE is only supported on text and notes, not %q", m[1])
		}
		return nil
	}

	m := eqRe.FindStringSubmatch(cond)
	if m == nil {
		return nil
	}
	field := strings.ToLower(m[1])
	value := strings.Trim(strings.TrimSpace(m[2]), `'"`)

	switch field {
	case "completed":
		b := truthy(value)
		c.Filter.Completed = &b
	case "has_notes":
		b := truthy(value)
		c.Filter.HasNotes = &b
	case "indent_level", "indent":
		if n, err := strconv.Atoi(value); err == nil {
			c.Filter.IndentLevel = &n
		}
	case "section":
		c.Filter.Section = &value
	case "priority":
		c.Filter.Priority = &value
	case "status":
		c.Filter.Status = &value
	}
	return nil
}

func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}
