// Package parser turns markdown task files into a models.Document.
package parser

import (
	"bytes"
	"fmt"
	"os"

	"github.com/starford/mdql/internal/models"
)

// Load reads and parses the file at path. The returned error wraps the
// underlying os error, so errors.Is(err, os.ErrNotExist) holds for missing files.
func Load(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parser: read %s: %w", path, err)
	}
	doc := Parse(data)
	doc.Path = path
	return doc, nil
}

// Parse builds a document from raw bytes. Every line is retained verbatim so
// that an unmodified document serializes back to data exactly.
func Parse(data []byte) *models.Document {
	doc := &models.Document{Lines: splitLines(data)}
	build(doc)
	return doc
}

// Rebuild re-derives tasks and sections from the document's current line
// buffer. Deleted lines are skipped and inserted lines are not seen, so every
// surviving task keeps its original line number.
func Rebuild(doc *models.Document) {
	build(doc)
}

// splitLines cuts data into lines, keeping each terminator separately.
func splitLines(data []byte) []models.RawLine {
	var out []models.RawLine
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			out = append(out, models.RawLine{Text: string(data)})
			break
		}
		text, eol := data[:i], "\n"
		if bytes.HasSuffix(text, []byte("\r")) {
			text, eol = text[:len(text)-1], "\r\n"
		}
		out = append(out, models.RawLine{Text: string(text), EOL: eol})
		data = data[i+1:]
	}
	return out
}

type frame struct {
	indent int
	task   int // index into doc.Tasks
}

// scanState is the cursor threaded through a single scan.
type scanState struct {
	section *models.Section
	stack   []frame
	last    int // index of the most recent task, -1 when none
}

func build(doc *models.Document) {
	doc.Tasks = nil
	doc.Sections = make(map[string]*models.Section)

	st := scanState{last: -1}
	for i, raw := range doc.Lines {
		if raw.Deleted {
			continue
		}
		st.step(doc, i+1, Classify(raw.Text, st.section != nil))
	}
	doc.Reindex()
}

func (st *scanState) step(doc *models.Document, lineNo int, l Line) {
	switch l.Kind {
	case KindHeading:
		st.section = &models.Section{
			Name:       l.Text,
			Level:      l.Level,
			Line:       lineNo,
			Properties: make(map[string]string),
		}
		// Duplicate heading text: the last one wins.
		doc.Sections[l.Text] = st.section
		st.stack = st.stack[:0]
		st.last = -1

	case KindSource:
		st.section.SourceFile, st.section.SourceDate, st.section.SourceTime = l.File, l.Date, l.Time

	case KindUpdated:
		st.section.UpdatedFile, st.section.UpdatedDate, st.section.UpdatedTime = l.File, l.Date, l.Time

	case KindProperty:
		switch l.Key {
		case "Priority":
			st.section.Priority = l.Text
		case "Status":
			st.section.Status = l.Text
		default:
			st.section.Properties[l.Key] = l.Text
		}

	case KindTask:
		t := models.Task{
			Text:      l.Text,
			Completed: l.Completed,
			Section:   models.UntitledSection,
			Indent:    l.Indent,
			Line:      lineNo,
		}
		if st.section != nil {
			t.Section = st.section.Name
			t.SectionLevel = st.section.Level
		}

		for len(st.stack) > 0 && st.stack[len(st.stack)-1].indent >= l.Indent {
			st.stack = st.stack[:len(st.stack)-1]
		}

		idx := len(doc.Tasks)
		if len(st.stack) > 0 {
			parent := &doc.Tasks[st.stack[len(st.stack)-1].task]
			t.ParentLine = parent.Line
			parent.HasChildren = true
			parent.ChildLines = append(parent.ChildLines, lineNo)
		}
		doc.Tasks = append(doc.Tasks, t)
		st.stack = append(st.stack, frame{indent: l.Indent, task: idx})
		st.last = idx

	case KindNote:
		// Bullets not deeper than the last task are unrelated and dropped.
		if st.last >= 0 && l.Indent > doc.Tasks[st.last].Indent {
			doc.Tasks[st.last].Notes = append(doc.Tasks[st.last].Notes, l.Text)
		}
	}
}
