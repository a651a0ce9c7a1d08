// Package query filters document tasks and compiles the SELECT/FROM/WHERE
// mini language into the same filters.
package query

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdql/internal/apperr"
	"github.com/starford/mdql/internal/models"
)

// Predicate keys accepted by ParseFilter.
const (
	KeyCompleted     = "completed"
	KeySection       = "section"
	KeyIndentLevel   = "indent_level"
	KeyTextContains  = "text_contains"
	KeyNotesContains = "notes_contains"
	KeyHasNotes      = "has_notes"
	KeyPriority      = "priority"
	KeyStatus        = "status"
)

// Keys lists every predicate key.
var Keys = []string{
	KeyCompleted, KeySection, KeyIndentLevel, KeyTextContains,
	KeyNotesContains, KeyHasNotes, KeyPriority, KeyStatus,
}

// Filter is a conjunction of optional predicates. A nil field is not applied.
type Filter struct {
	Completed     *bool
	Section       *string
	IndentLevel   *int
	TextContains  *string
	NotesContains *string
	HasNotes      *bool
	Priority      *string
	Status        *string
}

// UnknownPredicateError reports a predicate key the evaluator does not know.
type UnknownPredicateError struct {
	Key string
}

func (e *UnknownPredicateError) Error() string {
	return fmt.Sprintf("unknown predicate %q (known: %s)", e.Key, strings.Join(Keys, ", "))
}

// Unwrap returns apperr.ErrUnknownPredicate.
func (e *UnknownPredicateError) Unwrap() error {
	return apperr.ErrUnknownPredicate
}

// ParseFilter builds a Filter from loosely typed key/value pairs, as decoded
// from JSON. Unknown keys reject the whole filter.
func ParseFilter(m map[string]any) (Filter, error) {
	var f Filter

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := m[k]
		var err error
		switch k {
		case KeyCompleted:
			f.Completed, err = boolValue(k, v)
		case KeyHasNotes:
			f.HasNotes, err = boolValue(k, v)
		case KeyIndentLevel:
			f.IndentLevel, err = intValue(k, v)
		case KeySection:
			f.Section, err = stringValue(k, v)
		case KeyTextContains:
			f.TextContains, err = stringValue(k, v)
		case KeyNotesContains:
			f.NotesContains, err = stringValue(k, v)
		case KeyPriority:
			f.Priority, err = stringValue(k, v)
		case KeyStatus:
			f.Status, err = stringValue(k, v)
		default:
			return Filter{}, &UnknownPredicateError{Key: k}
		}
		if err != nil {
			return Filter{}, err
		}
	}
	return f, nil
}

// Run returns the tasks of doc matching every predicate of f, in document order.
func Run(doc *models.Document, f Filter) []*models.Task {
	out := make([]*models.Task, 0, len(doc.Tasks))
	all := f.IsEmpty()
	for i := range doc.Tasks {
		if all || f.Match(doc, &doc.Tasks[i]) {
			out = append(out, &doc.Tasks[i])
		}
	}
	return out
}

// Match reports whether t satisfies all predicates of f.
func (f Filter) Match(doc *models.Document, t *models.Task) bool {
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Section != nil && t.Section != *f.Section {
		return false
	}
	if f.IndentLevel != nil && t.Indent != *f.IndentLevel {
		return false
	}
	if f.TextContains != nil && !containsFold(t.Text, *f.TextContains) {
		return false
	}
	if f.NotesContains != nil && !slices.ContainsFunc(t.Notes, func(n string) bool {
		return containsFold(n, *f.NotesContains)
	}) {
		return false
	}
	if f.HasNotes != nil && (len(t.Notes) > 0) != *f.HasNotes {
		return false
	}
	if f.Priority != nil || f.Status != nil {
		sec := doc.SectionOf(t)
		if sec == nil {
			return false
		}
		if f.Priority != nil && sec.Priority != *f.Priority {
			return false
		}
		if f.Status != nil && sec.Status != *f.Status {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no predicate is set.
func (f Filter) IsEmpty() bool {
	return f == Filter{}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func boolValue(key string, v any) (*bool, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a boolean, got %T", apperr.ErrInvalidPredicate, key, v)
	}
	return &b, nil
}

func stringValue(key string, v any) (*string, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string, got %T", apperr.ErrInvalidPredicate, key, v)
	}
	return &s, nil
}

func intValue(key string, v any) (*int, error) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) {
			return nil, fmt.Errorf("%w: %s must be an integer, got %v", apperr.ErrInvalidPredicate, key, x)
		}
		n = int(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer: %v", apperr.ErrInvalidPredicate, key, err)
		}
		n = int(i)
	default:
		return nil, fmt.Errorf("%w: %s must be an integer, got %T", apperr.ErrInvalidPredicate, key, v)
	}
	if err := validation.Validate(n, validation.Min(0)); err != nil {
		return nil, fmt.Errorf("%w: %s %v", apperr.ErrInvalidPredicate, key, err)
	}
	return &n, nil
}
