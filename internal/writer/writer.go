// Package writer applies line-level edits to a parsed document.
//
// Every operation is keyed by the 1-based line number the document had when
// it was parsed. Edits never renumber lines: deletions only mark a line and
// insertions are attached to the line they follow, so the line numbers held
// by other tasks stay valid for the whole lifetime of the document. Line
// numbers outside the document are silently ignored.
package writer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/mdql/internal/apperr"
	"github.com/starford/mdql/internal/models"
	"github.com/starford/mdql/internal/parser"
)

var (
	checkboxRe = regexp.MustCompile(`^(\s*- \[)([ xX])(\]\s+.+)$`)
	taskTextRe = regexp.MustCompile(`^(\s*- \[[ xX]\]\s+)(.+)$`)
)

// Toggle sets the checkbox on line to done. Only the checkbox character is
// rewritten; a line that is already in the desired state is left untouched.
func Toggle(doc *models.Document, line int, done bool) {
	raw := rawLine(doc, line)
	if raw == nil {
		return
	}
	m := checkboxRe.FindStringSubmatch(raw.Text)
	if m == nil {
		return
	}
	checked := strings.EqualFold(m[2], "x")
	switch {
	case done && !checked:
		raw.Text = m[1] + "x" + m[3]
	case !done && checked:
		raw.Text = m[1] + " " + m[3]
	}
	if t := doc.TaskAt(line); t != nil {
		t.Completed = done
	}
}

// Retext replaces the task text on line, keeping indentation and marker.
func Retext(doc *models.Document, line int, text string) error {
	text, err := cleanText(text)
	if err != nil {
		return err
	}
	raw := rawLine(doc, line)
	if raw == nil {
		return nil
	}
	m := taskTextRe.FindStringSubmatch(raw.Text)
	if m == nil {
		return nil
	}
	raw.Text = m[1] + text
	if t := doc.TaskAt(line); t != nil {
		t.Text = text
	}
	return nil
}

// Delete removes line from the output and drops whatever the model derived
// from it. Surviving tasks keep their line numbers.
func Delete(doc *models.Document, line int) {
	raw := rawLine(doc, line)
	if raw == nil || raw.Deleted {
		return
	}
	raw.Deleted = true
	parser.Rebuild(doc)
}

// InsertTask places a new checkbox line immediately after line after.
// after == 0 inserts before the first line.
func InsertTask(doc *models.Document, after int, text string, indent int, done bool) error {
	text, err := cleanText(text)
	if err != nil {
		return err
	}
	if indent < 0 {
		return fmt.Errorf("%w: negative indent %d", apperr.ErrInvalidMutation, indent)
	}
	formatted := FormatTask(text, indent, done)
	if after == 0 {
		doc.Head = append(doc.Head, formatted)
		return nil
	}
	raw := rawLine(doc, after)
	if raw == nil {
		return nil
	}
	raw.After = append(raw.After, formatted)
	return nil
}

// AddTaskToSection appends a task as the last line of the named section's
// scope, which ends before the next heading of the same or a higher level.
func AddTaskToSection(doc *models.Document, section, text string, indent int, done bool) error {
	sec, ok := doc.Sections[section]
	if !ok {
		return fmt.Errorf("%w: %q", apperr.ErrSectionNotFound, section)
	}
	last := sec.Line
	for n := sec.Line + 1; n <= doc.LineCount(); n++ {
		raw := doc.Lines[n-1]
		if raw.Deleted {
			continue
		}
		if l := parser.Classify(raw.Text, false); l.Kind == parser.KindHeading && l.Level <= sec.Level {
			break
		}
		last = n
	}
	return InsertTask(doc, last, text, indent, done)
}

// FormatTask renders a checkbox line without terminator.
func FormatTask(text string, indent int, done bool) string {
	mark := " "
	if done {
		mark = "x"
	}
	return strings.Repeat("  ", indent) + "- [" + mark + "] " + text
}

// Serialize renders the document with deletions removed and insertions in
// place. An unmodified document serializes to exactly the bytes it was
// parsed from.
func Serialize(doc *models.Document) []byte {
	var buf bytes.Buffer
	nl := doc.Newline()
	owed := false

	write := func(text, eol string) {
		if owed {
			buf.WriteString(nl)
		}
		buf.WriteString(text)
		buf.WriteString(eol)
		owed = eol == ""
	}

	for _, h := range doc.Head {
		write(h, nl)
	}
	for _, raw := range doc.Lines {
		if !raw.Deleted {
			write(raw.Text, raw.EOL)
		}
		for _, a := range raw.After {
			write(a, nl)
		}
	}
	return buf.Bytes()
}

func rawLine(doc *models.Document, line int) *models.RawLine {
	if line < 1 || line > doc.LineCount() {
		return nil
	}
	return &doc.Lines[line-1]
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: task text is empty", apperr.ErrInvalidMutation)
	}
	if strings.ContainsAny(text, "\r\n") {
		return "", fmt.Errorf("%w: task text spans multiple lines", apperr.ErrInvalidMutation)
	}
	return text, nil
}
