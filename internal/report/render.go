package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/starford/mdql/internal/models"
	"github.com/starford/mdql/internal/query"
)

// Output formats understood by WriteResults.
const (
	FormatTable  = "table"
	FormatSimple = "simple"
	FormatCount  = "count"
)

// Formats lists the accepted output formats.
var Formats = []string{FormatTable, FormatSimple, FormatCount}

// NoResults is printed by the table format for an empty result.
const NoResults = "No results found."

const maxCellWidth = 70

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// WriteResults prints tasks in the given format. cols applies to the table
// format only.
func WriteResults(w io.Writer, format string, doc *models.Document, tasks []*models.Task, cols []string) error {
	switch format {
	case FormatCount:
		_, err := fmt.Fprintln(w, len(tasks))
		return err
	case FormatSimple:
		for _, t := range tasks {
			status := query.GlyphOpen
			if t.Completed {
				status = query.GlyphDone
			}
			if _, err := fmt.Fprintf(w, "%s %s\n", status, t.Text); err != nil {
				return err
			}
		}
	case FormatTable, "":
		if _, err := fmt.Fprintln(w, Table(cols, query.Rows(doc, tasks, cols))); err != nil {
			return err
		}
	default:
		return fmt.Errorf("report: unknown format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
	_, err := fmt.Fprintf(w, "\n%d result(s)\n", len(tasks))
	return err
}

// Table renders rows under the given column headers.
func Table(cols []string, rows [][]string) string {
	if len(rows) == 0 {
		return NoResults
	}
	clipped := make([][]string, len(rows))
	for i, r := range rows {
		clipped[i] = make([]string, len(r))
		for j, v := range r {
			clipped[i][j] = clip(v, maxCellWidth)
		}
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(cols...).
		Rows(clipped...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Render()
}

// WriteSummary prints s the way the summary command shows it.
func WriteSummary(w io.Writer, s *Summary) error {
	rule := strings.Repeat("=", 80)
	var b strings.Builder
	b.WriteString("\n" + rule + "\nTask Summary\n" + rule + "\n")
	for _, sec := range s.Sections {
		b.WriteString("\n" + sectionStyle.Render(sec.Section) + "\n")
		if sec.Priority != "" {
			b.WriteString("  Priority: " + sec.Priority + "\n")
		}
		if sec.Status != "" {
			b.WriteString("  Status: " + sec.Status + "\n")
		}
		fmt.Fprintf(&b, "  Tasks: %d/%d completed (%s%%)\n",
			sec.Completed, sec.Total, strconv.FormatFloat(sec.Percent, 'f', 1, 64))
	}
	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "Total Tasks: %d\n", s.Total)
	fmt.Fprintf(&b, "Completed: %d\n", s.Completed)
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Remaining: %d", s.Remaining)) + "\n")
	b.WriteString(rule + "\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
