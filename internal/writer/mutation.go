package writer

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdql/internal/apperr"
	"github.com/starford/mdql/internal/models"
)

// Op names a mutation.
type Op string

// Supported mutation ops.
const (
	OpComplete Op = "complete"
	OpReopen   Op = "reopen"
	OpRetext   Op = "retext"
	OpDelete   Op = "delete"
	OpInsert   Op = "insert"
	OpAdd      Op = "add"
)

// Mutation is a single edit in transport form (CLI, REST, MCP).
type Mutation struct {
	Op Op `json:"op"`
	// Line is the target line, or the line to insert after for OpInsert.
	Line      int    `json:"line,omitempty"`
	Text      string `json:"text,omitempty"`
	Section   string `json:"section,omitempty"`
	Indent    int    `json:"indent,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// Validate checks that Op is known and that the fields it requires are
// present. Line is not checked: a line outside the document is a no-op.
func (m Mutation) Validate() error {
	needsText := m.Op == OpRetext || m.Op == OpInsert || m.Op == OpAdd
	return validation.ValidateStruct(&m,
		validation.Field(&m.Op, validation.Required,
			validation.In(OpComplete, OpReopen, OpRetext, OpDelete, OpInsert, OpAdd)),
		validation.Field(&m.Text, validation.When(needsText, validation.Required)),
		validation.Field(&m.Section, validation.When(m.Op == OpAdd, validation.Required)),
		validation.Field(&m.Indent, validation.Min(0)),
	)
}

// Apply performs m on doc in place and returns doc.
func Apply(doc *models.Document, m Mutation) (*models.Document, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidMutation, err)
	}

	var err error
	switch m.Op {
	case OpComplete:
		Toggle(doc, m.Line, true)
	case OpReopen:
		Toggle(doc, m.Line, false)
	case OpRetext:
		err = Retext(doc, m.Line, m.Text)
	case OpDelete:
		Delete(doc, m.Line)
	case OpInsert:
		err = InsertTask(doc, m.Line, m.Text, m.Indent, m.Completed)
	case OpAdd:
		err = AddTaskToSection(doc, m.Section, m.Text, m.Indent, m.Completed)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}
