// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes mdql task tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mdql/internal/report"
	"github.com/starford/mdql/internal/taskservice"
	"github.com/starford/mdql/internal/writer"
)

const formatURI = "mdql://task-format"

// Server wraps the MCP server with mdql tools.
type Server struct {
	mcp *server.MCPServer
	svc *taskservice.Service
}

// New creates a new MCP server with all mdql tools registered.
func New(svc *taskservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"mdql",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_tasks",
		mcp.WithDescription("Query the tasks of a Markdown file with "+
			"SELECT <columns> FROM <file> [WHERE <condition> [AND <condition>]...]. "+
			"Read the task format first via the get_task_format tool."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Query, e.g. SELECT * FROM todo.md WHERE completed = false")),
		mcp.WithString("path", mcp.Description("File to query; overrides the FROM clause")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of tasks to return")),
	), s.queryTasks)

	s.mcp.AddTool(mcp.NewTool("list_task_files",
		mcp.WithDescription("List every Markdown task file with its task and completion counts."),
	), s.listTaskFiles)

	s.mcp.AddTool(mcp.NewTool("complete_task",
		mcp.WithDescription("Tick the checkbox of the task on the given line."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number of the task")),
	), s.completeTask)

	s.mcp.AddTool(mcp.NewTool("reopen_task",
		mcp.WithDescription("Clear the checkbox of the task on the given line."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number of the task")),
	), s.reopenTask)

	s.mcp.AddTool(mcp.NewTool("edit_task",
		mcp.WithDescription("Replace the text of the task on the given line, keeping its checkbox and indentation."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number of the task")),
		mcp.WithString("text", mcp.Required(), mcp.Description("New task text, a single line")),
	), s.editTask)

	s.mcp.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete the given line. Later lines move up by one once the file is written."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task file")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number to delete")),
	), s.deleteTask)

	s.mcp.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Append a task at the end of a section."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task file")),
		mcp.WithString("section", mcp.Required(), mcp.Description("Exact heading text of the section")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Task text, a single line")),
		mcp.WithNumber("indent", mcp.Description("Indent level, two spaces each (default 0)")),
		mcp.WithBoolean("completed", mcp.Description("Create the task already ticked")),
	), s.addTask)

	s.mcp.AddTool(mcp.NewTool("section_summary",
		mcp.WithDescription("Per-section completion counts of a task file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the task file")),
	), s.sectionSummary)

	s.mcp.AddTool(mcp.NewTool("search_tasks",
		mcp.WithDescription("Full-text search through the text and notes of every task in the vault."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default 20)")),
	), s.searchTasks)

	s.mcp.AddTool(mcp.NewTool("get_task_format",
		mcp.WithDescription("Returns the Markdown task format and query language understood by mdql."),
	), s.getTaskFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Task File Format",
			mcp.WithResourceDescription("Markdown subset and query language understood by mdql."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTaskFormatResource,
	)

	return s
}

// ServeStdio serves MCP on stdin/stdout until ctx is cancelled or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) queryTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.RunMQL(ctx, req.GetString("path", ""), q, req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(report.Table(res.Columns, res.Rows) +
		fmt.Sprintf("\n\n%d result(s)", res.Total)), nil
}

func (s *Server) listTaskFiles(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.svc.ListFiles(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText("no task files found"), nil
	}
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = fmt.Sprintf("%s\t%d/%d done", f.Path, f.Done, f.Tasks)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) completeTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.toggle(ctx, req, writer.OpComplete)
}

func (s *Server) reopenTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.toggle(ctx, req, writer.OpReopen)
}

// target reads the path and line arguments shared by the line tools.
func target(req mcp.CallToolRequest) (string, int, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return "", 0, err
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return "", 0, err
	}
	if line < 1 {
		return "", 0, fmt.Errorf("line must be at least 1, got %d", line)
	}
	return path, line, nil
}

func (s *Server) toggle(ctx context.Context, req mcp.CallToolRequest, op writer.Op) (*mcp.CallToolResult, error) {
	path, line, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Mutate(ctx, path, writer.Mutation{Op: op, Line: line}, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t := f.TaskAt(line)
	if t == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no task on line %d of %s", line, path)), nil
	}
	return jsonResult(t), nil
}

func (s *Server) editTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, line, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.Mutate(ctx, path, writer.Mutation{Op: writer.OpRetext, Line: line, Text: text}, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t := f.TaskAt(line)
	if t == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no task on line %d of %s", line, path)), nil
	}
	return jsonResult(t), nil
}

func (s *Server) deleteTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, line, err := target(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.Mutate(ctx, path, writer.Mutation{Op: writer.OpDelete, Line: line}, ""); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted line %d of %s", line, path)), nil
}

func (s *Server) addTask(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	section, err := req.RequireString("section")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m := writer.Mutation{
		Op:        writer.OpAdd,
		Section:   section,
		Text:      text,
		Indent:    req.GetInt("indent", 0),
		Completed: req.GetBool("completed", false),
	}
	f, err := s.svc.Mutate(ctx, path, m, "")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("added to %s in %s (checksum %s)", section, path, f.Checksum)), nil
}

func (s *Server) sectionSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sum, err := s.svc.Summary(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(sum), nil
}

func (s *Server) searchTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, q, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getTaskFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TaskFormatContract), nil
}

func (s *Server) readTaskFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     TaskFormatContract,
		},
	}, nil
}
