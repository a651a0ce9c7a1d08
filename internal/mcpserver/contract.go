package mcpserver

// TaskFormatContract describes the markdown subset mdql understands, for LLM
// consumers that read or edit task files.
const TaskFormatContract = `# mdql Task File Format

Task files are plain Markdown. mdql recognises the following lines; anything
else is kept verbatim and ignored.

## Headings open sections

` + "```" + `markdown
## Kitchen renovation
*Source: inbox.md (2025-01-15 09:30)*
*Updated: inbox.md (2025-01-20)*
**Priority:** High
**Status:** Active
**Owner:** Sam
` + "```" + `

- A heading (` + "`#`" + ` to ` + "`######`" + `) starts a section named by its text.
- The *Source* and *Updated* stamps and ` + "`**Key:** value`" + ` properties are only
  read directly inside a section. ` + "`Priority`" + ` and ` + "`Status`" + ` can be queried.
- Tasks before the first heading belong to the section ` + "`Untitled`" + `.
- Two headings with the same text share one name; the later one wins.

## Tasks and notes

` + "```" + `markdown
- [ ] order tiles
  - [x] measure the floor
    - 12 square metres
- [x] pick a colour
` + "```" + `

- ` + "`- [ ]`" + ` is open, ` + "`- [x]`" + ` or ` + "`- [X]`" + ` is done.
- Every two leading spaces are one indent level. A task is the child of the
  nearest previous task with a smaller indent in the same section.
- A plain bullet indented deeper than the task above it is a note of that task.

## Editing rules

1. Tasks are addressed by their 1-based line number. Read the file or run a
   query first to learn the line.
2. Line numbers are those of the last read; after an edit, read again.
3. Only the checkbox or the task text is rewritten. Every other byte of the
   file, line endings included, is preserved.
4. New tasks go to the end of a section with ` + "`add_task`" + `.

## Queries

` + "```" + `
SELECT <columns> FROM <file> [WHERE <condition> [AND <condition>]...]
` + "```" + `

Columns: status, text, section, line, indent, completed, notes, has_notes,
priority, section_status, notes_text, or ` + "`*`" + `.
Conditions: ` + "`completed = true`" + `, ` + "`section = 'Name'`" + `, ` + "`indent_level = 0`" + `,
` + "`has_notes = true`" + `, ` + "`priority = 'High'`" + `, ` + "`status = 'Active'`" + `,
` + "`text LIKE '%word%'`" + `, ` + "`notes LIKE '%word%'`" + `.
`
