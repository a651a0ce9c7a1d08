// Package models defines the domain types for mdql.
package models

// UntitledSection is the section name given to tasks that appear before any heading.
const UntitledSection = "Untitled"

// RawLine is one line of the source file as it was read.
// Text never contains the line terminator; EOL holds it ("\n", "\r\n" or ""
// for a final unterminated line).
type RawLine struct {
	Text    string
	EOL     string
	Deleted bool
	// After holds lines inserted immediately after this one, already formatted
	// and without terminators.
	After []string
}

// Section is a markdown heading and the metadata block beneath it.
type Section struct {
	Name        string            `json:"name"`
	Level       int               `json:"level"`
	Line        int               `json:"line"`
	SourceFile  string            `json:"source_file,omitempty"`
	SourceDate  string            `json:"source_date,omitempty"`
	SourceTime  string            `json:"source_time,omitempty"`
	UpdatedFile string            `json:"updated_file,omitempty"`
	UpdatedDate string            `json:"updated_date,omitempty"`
	UpdatedTime string            `json:"updated_time,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	Status      string            `json:"status,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Task is one checkbox list item.
type Task struct {
	Text         string `json:"text"`
	Completed    bool   `json:"completed"`
	Section      string `json:"section"`
	SectionLevel int    `json:"section_level"`
	Indent       int    `json:"indent_level"`
	Line         int    `json:"line"`
	// ParentLine is the line of the nearest ancestor task, 0 when top level.
	ParentLine  int      `json:"parent_line,omitempty"`
	HasChildren bool     `json:"has_children"`
	ChildLines  []int    `json:"child_lines,omitempty"`
	Notes       []string `json:"notes,omitempty"`
}

// Document is a parsed markdown task file.
type Document struct {
	Path  string    `json:"path,omitempty"`
	Lines []RawLine `json:"-"`
	// Head holds lines inserted before the first line.
	Head     []string            `json:"-"`
	Tasks    []Task              `json:"tasks"`
	Sections map[string]*Section `json:"sections"`

	byLine map[int]int
}

// Reindex rebuilds the line number -> task index map. Builders call it once
// after filling Tasks.
func (d *Document) Reindex() {
	d.byLine = make(map[int]int, len(d.Tasks))
	for i := range d.Tasks {
		d.byLine[d.Tasks[i].Line] = i
	}
}

// TaskAt returns the task parsed from the given line, or nil.
func (d *Document) TaskAt(line int) *Task {
	if d.byLine == nil {
		d.Reindex()
	}
	i, ok := d.byLine[line]
	if !ok {
		return nil
	}
	return &d.Tasks[i]
}

// Parent returns the parent task of t, or nil for top-level tasks.
func (d *Document) Parent(t *Task) *Task {
	if t.ParentLine == 0 {
		return nil
	}
	return d.TaskAt(t.ParentLine)
}

// Children returns t's direct child tasks in file order.
func (d *Document) Children(t *Task) []*Task {
	out := make([]*Task, 0, len(t.ChildLines))
	for _, l := range t.ChildLines {
		if c := d.TaskAt(l); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// SectionOf returns the metadata of the section owning t, or nil.
func (d *Document) SectionOf(t *Task) *Section {
	if d.Sections == nil {
		return nil
	}
	return d.Sections[t.Section]
}

// LineCount returns the number of original lines.
func (d *Document) LineCount() int {
	return len(d.Lines)
}

// Newline returns the line terminator used for inserted lines: the first
// terminator found in the file, "\n" otherwise.
func (d *Document) Newline() string {
	for _, l := range d.Lines {
		if l.EOL != "" {
			return l.EOL
		}
	}
	return "\n"
}
