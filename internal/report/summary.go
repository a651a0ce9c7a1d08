// Package report summarises documents and renders query results for the
// terminal.
package report

import (
	"math"
	"slices"

	"github.com/starford/mdql/internal/models"
)

// SectionSummary counts the top-level tasks of one section.
type SectionSummary struct {
	Section   string  `json:"section"`
	Priority  string  `json:"priority,omitempty"`
	Status    string  `json:"status,omitempty"`
	Total     int     `json:"total_tasks"`
	Completed int     `json:"completed"`
	Remaining int     `json:"remaining"`
	Percent   float64 `json:"completion_pct"`
}

// Summary is the per-section breakdown of a document plus overall totals.
// Totals count every task, nested ones included.
type Summary struct {
	Sections  []SectionSummary `json:"sections"`
	Total     int              `json:"total_tasks"`
	Completed int              `json:"completed"`
	Remaining int              `json:"remaining"`
}

// Summarize builds the summary of doc. Sections without top-level tasks are
// left out. Sections are ordered by heading line.
func Summarize(doc *models.Document) *Summary {
	secs := make([]*models.Section, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		secs = append(secs, s)
	}
	slices.SortFunc(secs, func(a, b *models.Section) int { return a.Line - b.Line })

	out := &Summary{Sections: make([]SectionSummary, 0, len(secs))}
	for _, s := range secs {
		row := SectionSummary{Section: s.Name, Priority: s.Priority, Status: s.Status}
		for _, t := range doc.Tasks {
			if t.Section != s.Name || t.Indent != 0 {
				continue
			}
			row.Total++
			if t.Completed {
				row.Completed++
			}
		}
		if row.Total == 0 {
			continue
		}
		row.Remaining = row.Total - row.Completed
		row.Percent = percent(row.Completed, row.Total)
		out.Sections = append(out.Sections, row)
	}

	for _, t := range doc.Tasks {
		out.Total++
		if t.Completed {
			out.Completed++
		}
	}
	out.Remaining = out.Total - out.Completed
	return out
}

// percent returns done/total as a percentage rounded to one decimal.
func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(1000*float64(done)/float64(total)) / 10
}
