package parser

import (
	"regexp"
	"strings"
)

// Kind tags a classified line.
type Kind int

// Line kinds, in classification priority order.
const (
	KindPlain Kind = iota
	KindHeading
	KindSource
	KindUpdated
	KindProperty
	KindTask
	KindNote
)

var kindNames = [...]string{"plain", "heading", "source", "updated", "property", "task", "note"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	sourceRe   = regexp.MustCompile(`^\*Source:\s*(.+?\.md)\s*\((.+?)\)\*$`)
	updatedRe  = regexp.MustCompile(`^\*Updated:\s*(.+?\.md)\s*\((.+?)\)\*$`)
	propertyRe = regexp.MustCompile(`^\*\*(.+?):\*\*\s+(.+)$`)
	taskRe     = regexp.MustCompile(`^(\s*)- \[([ xX])\]\s+(.+)$`)
	noteRe     = regexp.MustCompile(`^(\s*)- (.+)$`)
)

// Line is the result of classifying one raw line. Only the fields relevant to
// Kind are set.
type Line struct {
	Kind Kind
	// Level is the heading level (1-6).
	Level int
	// Indent is the indent level of a task or note: leading characters / 2.
	Indent    int
	Completed bool
	// Text is the heading name, task text, note text or property value.
	Text string
	Key  string
	// File, Date and Time are set for source and updated stamps.
	File string
	Date string
	Time string
}

// Classify maps a single line (without terminator) to its kind. Stamps and
// properties are only recognised while a section is open.
func Classify(text string, sectionOpen bool) Line {
	if m := headingRe.FindStringSubmatch(text); m != nil {
		return Line{Kind: KindHeading, Level: len(m[1]), Text: m[2]}
	}

	if sectionOpen {
		if m := sourceRe.FindStringSubmatch(text); m != nil {
			return stamp(KindSource, m[1], m[2])
		}
		if m := updatedRe.FindStringSubmatch(text); m != nil {
			return stamp(KindUpdated, m[1], m[2])
		}
		if m := propertyRe.FindStringSubmatch(text); m != nil {
			return Line{Kind: KindProperty, Key: m[1], Text: m[2]}
		}
	}

	if m := taskRe.FindStringSubmatch(text); m != nil {
		return Line{
			Kind:      KindTask,
			Indent:    len(m[1]) / 2,
			Completed: strings.EqualFold(m[2], "x"),
			Text:      m[3],
		}
	}

	if m := noteRe.FindStringSubmatch(text); m != nil {
		return Line{Kind: KindNote, Indent: len(m[1]) / 2, Text: m[2]}
	}

	return Line{Kind: KindPlain}
}

// stamp splits "<date> [<time>]" on whitespace.
func stamp(kind Kind, file, dateTime string) Line {
	l := Line{Kind: kind, File: file}
	parts := strings.Fields(dateTime)
	if len(parts) > 0 {
		l.Date = parts[0]
	}
	if len(parts) > 1 {
		l.Time = parts[1]
	}
	return l
}
