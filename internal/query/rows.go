package query

import (
	"strconv"
	"strings"

	"github.com/starford/mdql/internal/models"
)

const maxNotesPreview = 100

// Glyphs used for the status column.
const (
	GlyphDone = "✓"
	GlyphOpen = "☐"
)

// Row holds every computed column for one task.
type Row map[string]string

// RowFor computes the columns of t. Section-derived columns are empty when
// the task's section carries no metadata.
func RowFor(doc *models.Document, t *models.Task) Row {
	r := Row{
		"status":         GlyphOpen,
		"text":           t.Text,
		"section":        t.Section,
		"line":           strconv.Itoa(t.Line),
		"indent":         strconv.Itoa(t.Indent),
		"completed":      strconv.FormatBool(t.Completed),
		"notes":          strconv.Itoa(len(t.Notes)),
		"has_notes":      "no",
		"priority":       "",
		"section_status": "",
		"notes_text":     "",
	}
	if t.Completed {
		r["status"] = GlyphDone
	}
	if len(t.Notes) > 0 {
		r["has_notes"] = "yes"
		r["notes_text"] = notesPreview(t.Notes)
	}
	if sec := doc.SectionOf(t); sec != nil {
		r["priority"] = sec.Priority
		r["section_status"] = sec.Status
	}
	return r
}

// Project returns the values of cols in order; unknown columns are empty.
func (r Row) Project(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = r[c]
	}
	return out
}

// Rows materialises the requested columns for tasks.
func Rows(doc *models.Document, tasks []*models.Task, cols []string) [][]string {
	out := make([][]string, len(tasks))
	for i, t := range tasks {
		out[i] = RowFor(doc, t).Project(cols)
	}
	return out
}

func notesPreview(notes []string) string {
	if len(notes) > 2 {
		notes = notes[:2]
	}
	s := strings.Join(notes, "; ")
	if r := []rune(s); len(r) > maxNotesPreview {
		s = string(r[:maxNotesPreview-3]) + "..."
	}
	return s
}
